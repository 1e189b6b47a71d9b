package repository

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/skate-game/internal/battle"
	"github.com/wfunc/skate-game/internal/game"
)

// TurnReader 在更新事务内读取回合记录，不存在时返回nil
type TurnReader interface {
	Turn(ctx context.Context, turnID string) (*game.Turn, error)
}

// GameMutation 一次转换产生的写入：新的游戏状态以及新增或变更的回合
type GameMutation struct {
	Game  *game.Session
	Turns []*game.Turn
}

// GameUpdateFunc 在锁定的游戏状态上执行转换。
// 返回error时不写入任何数据；返回nil变更表示无需写入（例如事件已处理）。
type GameUpdateFunc func(ctx context.Context, current *game.Session, turns TurnReader) (*GameMutation, error)

// GameStore 游戏状态存储。
// 同一游戏ID的UpdateGame必须完全串行，不同ID之间互不影响。
type GameStore interface {
	// CreateGame 按ID创建游戏；已存在时返回已存储的状态且created为false
	CreateGame(ctx context.Context, s *game.Session) (stored *game.Session, created bool, err error)
	// UpdateGame 锁定、读取、转换、写回在同一事务中完成
	UpdateGame(ctx context.Context, gameID string, fn GameUpdateFunc) error
	GetGame(ctx context.Context, gameID string) (*game.Session, error)
	GetTurn(ctx context.Context, gameID, turnID string) (*game.Turn, error)
	ListTurns(ctx context.Context, gameID string) ([]*game.Turn, error)
	// DeleteGame 管理员删除游戏及其回合
	DeleteGame(ctx context.Context, gameID string) error
	// ListExpiredGames 进行中且回合截止时间早于now的游戏ID
	ListExpiredGames(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// BattleUpdateFunc 在锁定的投票状态上执行转换，返回nil表示无需写入
type BattleUpdateFunc func(ctx context.Context, current *battle.VoteState) (*battle.VoteState, error)

// BattleStore 对决投票存储
type BattleStore interface {
	// InitializeBattle 按ID初始化投票；已存在时返回已存储的状态且created为false
	InitializeBattle(ctx context.Context, v *battle.VoteState) (stored *battle.VoteState, created bool, err error)
	UpdateBattle(ctx context.Context, battleID string, fn BattleUpdateFunc) error
	GetBattle(ctx context.Context, battleID string) (*battle.VoteState, error)
	DeleteBattle(ctx context.Context, battleID string) error
	// ListExpiredBattles 仍在投票且截止时间早于now的对决ID
	ListExpiredBattles(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// KeyedMutex 按键加锁，不同键互不阻塞
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex 创建按键互斥锁
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock 锁定key，返回解锁函数
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len 当前持有或等待中的键数量
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
