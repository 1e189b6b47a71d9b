package service

import (
	"time"

	"github.com/wfunc/skate-game/internal/battle"
	"github.com/wfunc/skate-game/internal/game"
	"github.com/wfunc/skate-game/internal/repository"
	"go.uber.org/zap"
)

// Config 服务配置
type Config struct {
	TurnTimeout       time.Duration
	DefaultMaxPlayers int
	VoteWindow        time.Duration
	// Now 时钟，测试中可替换
	Now func() time.Time
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		TurnTimeout:       24 * time.Hour,
		DefaultMaxPlayers: game.MinPlayers,
		VoteWindow:        battle.DefaultVoteWindow,
		Now:               time.Now,
	}
}

func (c *Config) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now()
}

// Services 服务集合
type Services struct {
	Game   GameService
	Battle BattleService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Manager, config *Config, notifier Notifier, log *zap.Logger) *Services {
	if config == nil {
		config = DefaultConfig()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Services{
		Game:   NewGameService(repos.Games(), config, notifier, log),
		Battle: NewBattleService(repos.Battles(), config, notifier, log),
	}
}
