package database

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/wfunc/skate-game/internal/logger"
	"github.com/wfunc/skate-game/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 超时扫描使用的组合索引
var sweepIndexes = []struct {
	name  string
	table string
	cols  string
}{
	{"idx_skate_games_status_deadline", "skate_games", "status, turn_deadline_at"},
	{"idx_battle_votes_status_deadline", "battle_votes", "status, vote_deadline_at"},
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// SQLite 多进程可能同时启动，文件锁串行化迁移
	if dbPath := getDBPath(); dbPath != "" {
		CleanupStaleLocks(filepath.Dir(dbPath))
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	logger.Info("开始数据库迁移...")
	if err := migrate(DB); err != nil {
		return err
	}
	logger.Info("数据库迁移完成")
	return nil
}

// migrate 迁移全部模型并补建索引
func migrate(db *gorm.DB) error {
	for _, model := range models.AllModels() {
		start := time.Now()
		err := db.AutoMigrate(model)
		logger.LogDatabaseOperation("migrate", tableName(db, model), time.Since(start), err)
		if err != nil {
			return fmt.Errorf("迁移%T失败: %w", model, err)
		}
	}

	for _, idx := range sweepIndexes {
		sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idx.name, idx.table, idx.cols)
		if err := db.Exec(sql).Error; err != nil {
			// MySQL 不支持 IF NOT EXISTS，已存在时会报错
			logger.Warn("创建索引失败", zap.String("index", idx.name), zap.Error(err))
		}
	}
	return nil
}

func tableName(db *gorm.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return fmt.Sprintf("%T", model)
	}
	return stmt.Schema.Table
}

// DropAllTables 删除所有表（测试与重置用）
func DropAllTables() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	for _, model := range models.AllModels() {
		if err := DB.Migrator().DropTable(model); err != nil {
			return fmt.Errorf("删除表%s失败: %w", tableName(DB, model), err)
		}
	}
	logger.Warn("已删除所有表")
	return nil
}
