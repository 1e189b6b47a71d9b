package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/skate-game/internal/battle"
	apperrors "github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/game"
)

// memoryGameStore 内存游戏存储，按游戏ID串行，读写都经过深拷贝
type memoryGameStore struct {
	mu    sync.RWMutex
	games map[string]*game.Session
	turns map[string]map[string]*game.Turn
	locks *KeyedMutex
}

// NewMemoryGameStore 创建内存游戏存储
func NewMemoryGameStore() GameStore {
	return &memoryGameStore{
		games: make(map[string]*game.Session),
		turns: make(map[string]map[string]*game.Turn),
		locks: NewKeyedMutex(),
	}
}

func (m *memoryGameStore) CreateGame(ctx context.Context, s *game.Session) (*game.Session, bool, error) {
	unlock := m.locks.Lock(s.ID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.games[s.ID]; ok {
		return existing.Clone(), false, nil
	}
	m.games[s.ID] = s.Clone()
	m.turns[s.ID] = make(map[string]*game.Turn)
	return s.Clone(), true, nil
}

func (m *memoryGameStore) UpdateGame(ctx context.Context, gameID string, fn GameUpdateFunc) error {
	unlock := m.locks.Lock(gameID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransaction, gameID)
	}

	m.mu.RLock()
	stored, ok := m.games[gameID]
	var current *game.Session
	if ok {
		current = stored.Clone()
	}
	m.mu.RUnlock()
	if !ok {
		return apperrors.New(apperrors.ErrGameNotFound, gameID)
	}

	mutation, err := fn(ctx, current, memoryTurnReader{store: m, gameID: gameID})
	if err != nil {
		return err
	}
	if mutation == nil || mutation.Game == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[gameID]; !ok {
		return apperrors.New(apperrors.ErrGameNotFound, gameID)
	}
	m.games[gameID] = mutation.Game.Clone()
	for _, t := range mutation.Turns {
		m.turns[gameID][t.ID] = t.Clone()
	}
	return nil
}

func (m *memoryGameStore) GetGame(ctx context.Context, gameID string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.games[gameID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrGameNotFound, gameID)
	}
	return s.Clone(), nil
}

func (m *memoryGameStore) GetTurn(ctx context.Context, gameID, turnID string) (*game.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.turns[gameID][turnID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrTurnNotFound, turnID)
	}
	return t.Clone(), nil
}

func (m *memoryGameStore) ListTurns(ctx context.Context, gameID string) ([]*game.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*game.Turn, 0, len(m.turns[gameID]))
	for _, t := range m.turns[gameID] {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnNumber < out[j].TurnNumber })
	return out, nil
}

func (m *memoryGameStore) DeleteGame(ctx context.Context, gameID string) error {
	unlock := m.locks.Lock(gameID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[gameID]; !ok {
		return apperrors.New(apperrors.ErrGameNotFound, gameID)
	}
	delete(m.games, gameID)
	delete(m.turns, gameID)
	return nil
}

func (m *memoryGameStore) ListExpiredGames(ctx context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type expired struct {
		id       string
		deadline time.Time
	}
	var found []expired
	for id, s := range m.games {
		if s.Status == game.StatusActive && s.TurnDeadlineAt != nil && s.TurnDeadlineAt.Before(now) {
			found = append(found, expired{id: id, deadline: *s.TurnDeadlineAt})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].deadline.Before(found[j].deadline) })

	ids := make([]string, 0, len(found))
	for _, e := range found {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, e.id)
	}
	return ids, nil
}

type memoryTurnReader struct {
	store  *memoryGameStore
	gameID string
}

func (r memoryTurnReader) Turn(ctx context.Context, turnID string) (*game.Turn, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if t, ok := r.store.turns[r.gameID][turnID]; ok {
		return t.Clone(), nil
	}
	return nil, nil
}

// memoryBattleStore 内存投票存储
type memoryBattleStore struct {
	mu      sync.RWMutex
	battles map[string]*battle.VoteState
	locks   *KeyedMutex
}

// NewMemoryBattleStore 创建内存投票存储
func NewMemoryBattleStore() BattleStore {
	return &memoryBattleStore{
		battles: make(map[string]*battle.VoteState),
		locks:   NewKeyedMutex(),
	}
}

func (m *memoryBattleStore) InitializeBattle(ctx context.Context, v *battle.VoteState) (*battle.VoteState, bool, error) {
	unlock := m.locks.Lock(v.BattleID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.battles[v.BattleID]; ok {
		return existing.Clone(), false, nil
	}
	m.battles[v.BattleID] = v.Clone()
	return v.Clone(), true, nil
}

func (m *memoryBattleStore) UpdateBattle(ctx context.Context, battleID string, fn BattleUpdateFunc) error {
	unlock := m.locks.Lock(battleID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransaction, battleID)
	}

	m.mu.RLock()
	stored, ok := m.battles[battleID]
	var current *battle.VoteState
	if ok {
		current = stored.Clone()
	}
	m.mu.RUnlock()
	if !ok {
		return apperrors.New(apperrors.ErrBattleNotFound, battleID)
	}

	next, err := fn(ctx, current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.battles[battleID]; !ok {
		return apperrors.New(apperrors.ErrBattleNotFound, battleID)
	}
	m.battles[battleID] = next.Clone()
	return nil
}

func (m *memoryBattleStore) GetBattle(ctx context.Context, battleID string) (*battle.VoteState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.battles[battleID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrBattleNotFound, battleID)
	}
	return v.Clone(), nil
}

func (m *memoryBattleStore) DeleteBattle(ctx context.Context, battleID string) error {
	unlock := m.locks.Lock(battleID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.battles[battleID]; !ok {
		return apperrors.New(apperrors.ErrBattleNotFound, battleID)
	}
	delete(m.battles, battleID)
	return nil
}

func (m *memoryBattleStore) ListExpiredBattles(ctx context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, v := range m.battles {
		if v.Status == battle.StatusVoting && v.VoteDeadlineAt.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
