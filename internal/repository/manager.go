package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 存储管理器，按配置提供gorm或内存实现（懒加载）
type Manager struct {
	db *gorm.DB

	gamesOnce sync.Once
	games     GameStore

	battlesOnce sync.Once
	battles     BattleStore
}

// NewManager 创建gorm存储管理器；db为nil时使用内存存储
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// NewMemoryManager 创建内存存储管理器
func NewMemoryManager() *Manager {
	return &Manager{}
}

// GetDB 获取数据库实例，内存模式下为nil
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// IsMemory 是否为内存存储
func (m *Manager) IsMemory() bool {
	return m.db == nil
}

// Games 获取游戏存储
func (m *Manager) Games() GameStore {
	m.gamesOnce.Do(func() {
		if m.db == nil {
			m.games = NewMemoryGameStore()
			return
		}
		m.games = NewGameStore(m.db)
	})
	return m.games
}

// Battles 获取投票存储
func (m *Manager) Battles() BattleStore {
	m.battlesOnce.Do(func() {
		if m.db == nil {
			m.battles = NewMemoryBattleStore()
			return
		}
		m.battles = NewBattleStore(m.db)
	})
	return m.battles
}

// Ping 检查存储可用性，内存存储始终可用
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	return NewBaseRepo(m.db).Ping(ctx)
}
