package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/skate-game/internal/config"
	"github.com/wfunc/skate-game/internal/models"
)

func sqliteConfig(t *testing.T) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "skate.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     "silent",
		AutoMigrate:  true,
	}
}

func TestInit_Memory(t *testing.T) {
	require.NoError(t, Init(&config.DatabaseConfig{Driver: "memory"}))
	assert.Nil(t, GetDB())
	assert.False(t, IsConnected())
	assert.NoError(t, Close())
	assert.Error(t, AutoMigrate())
}

func TestInit_UnsupportedDriver(t *testing.T) {
	err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInit_SQLiteMigrates(t *testing.T) {
	cfg := sqliteConfig(t)
	require.NoError(t, Init(cfg))
	t.Cleanup(func() { Close() })

	assert.True(t, IsConnected())
	for _, model := range models.AllModels() {
		assert.True(t, DB.Migrator().HasTable(model), "%T", model)
	}
	assert.True(t, DB.Migrator().HasIndex(&models.SkateGame{}, "idx_skate_games_status_deadline"))
	assert.Equal(t, filepath.Base(cfg.DSN), filepath.Base(getDBPath()))

	// 迁移结束后锁文件已释放
	_, err := os.Stat(cfg.DSN + lockSuffix)
	assert.True(t, os.IsNotExist(err))

	// 重复迁移是幂等的
	require.NoError(t, AutoMigrate())

	require.NoError(t, DropAllTables())
	assert.False(t, DB.Migrator().HasTable(&models.SkateGame{}))
}

func TestMigrationLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lock.db")

	lock, err := acquireMigrationLock(dbPath)
	require.NoError(t, err)
	_, err = os.Stat(dbPath + lockSuffix)
	require.NoError(t, err)

	releaseMigrationLock(lock)
	_, err = os.Stat(dbPath + lockSuffix)
	assert.True(t, os.IsNotExist(err))

	// 过期锁被清理
	stale := dbPath + lockSuffix
	require.NoError(t, os.WriteFile(stale, nil, 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	CleanupStaleLocks(filepath.Dir(dbPath))
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	assert.Equal(t, gormlogger.Warn, parseLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, parseLogLevel(""))
}
