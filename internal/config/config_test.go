package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", c.Server.Addr())
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, 24*time.Hour, c.Game.TurnTimeout)
	assert.Equal(t, 2, c.Game.DefaultMaxPlayers)
	assert.Equal(t, 24*time.Hour, c.Battle.VoteWindow)
	assert.True(t, c.Sweeper.Enabled)
	assert.Equal(t, 30*time.Second, c.Sweeper.Interval)
	assert.Equal(t, "/ws", c.WebSocket.Path)
}

func TestLoad_FromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
server:
  port: 9090
database:
  driver: memory
game:
  turn_timeout: 90s
  default_max_players: 4
battle:
  vote_window: 2h
sweeper:
  interval: 5s
  batch_size: 10
log:
  modules:
    game: debug
`)))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.True(t, c.Database.IsMemory())
	assert.Equal(t, 90*time.Second, c.Game.TurnTimeout)
	assert.Equal(t, 4, c.Game.DefaultMaxPlayers)
	assert.Equal(t, 2*time.Hour, c.Battle.VoteWindow)
	assert.Equal(t, 5*time.Second, c.Sweeper.Interval)
	assert.Equal(t, 10, c.Sweeper.BatchSize)
	assert.Equal(t, "debug", c.Log.Modules["game"])
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"driver":      {"database.driver": "oracle"},
		"max players": {"game.default_max_players": 9},
		"vote window": {"battle.vote_window": "0s"},
		"sweeper":     {"sweeper.interval": "0s"},
		"jwt":         {"security.jwt.secret": ""},
		"timeout":     {"game.turn_timeout": "-1s"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			for k, val := range overrides {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}
