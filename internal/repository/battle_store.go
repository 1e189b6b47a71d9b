package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/skate-game/internal/battle"
	apperrors "github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/models"
	"gorm.io/gorm"
)

// battleStore 基于gorm的投票存储
type battleStore struct {
	*BaseRepo
	txm   TransactionManager
	locks *KeyedMutex
}

// NewBattleStore 创建gorm投票存储
func NewBattleStore(db *gorm.DB) BattleStore {
	return &battleStore{
		BaseRepo: NewBaseRepo(db),
		txm:      NewTransactionManager(db),
		locks:    NewKeyedMutex(),
	}
}

// InitializeBattle 初始化投票，已存在时保留原有投票原样返回
func (r *battleStore) InitializeBattle(ctx context.Context, v *battle.VoteState) (*battle.VoteState, bool, error) {
	unlock := r.locks.Lock(v.BattleID)
	defer unlock()

	if existing, err := r.GetBattle(ctx, v.BattleID); err == nil {
		return existing, false, nil
	} else if !apperrors.Is(err, apperrors.ErrBattleNotFound) {
		return nil, false, err
	}

	row, err := voteStateToModel(v)
	if err != nil {
		return nil, false, err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if existing, getErr := r.GetBattle(ctx, v.BattleID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "初始化投票失败")
	}
	return v.Clone(), true, nil
}

// UpdateBattle 在事务中锁定投票行并执行转换
func (r *battleStore) UpdateBattle(ctx context.Context, battleID string, fn BattleUpdateFunc) error {
	unlock := r.locks.Lock(battleID)
	defer unlock()

	return r.txm.WithTransaction(ctx, func(tx *Transaction) error {
		var row models.BattleVote
		if err := tx.LockForUpdate(&row, "battle_id = ?", battleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.ErrBattleNotFound, battleID)
			}
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "锁定投票失败")
		}

		current, err := battle.UnmarshalVoteState(row.StateData)
		if err != nil {
			return err
		}
		next, err := fn(ctx, current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		m, err := voteStateToModel(next)
		if err != nil {
			return err
		}
		result := tx.GetDB().Model(&models.BattleVote{}).
			Where("battle_id = ? AND version = ?", battleID, row.Version).
			Updates(map[string]interface{}{
				"status":     m.Status,
				"winner_id":  m.WinnerID,
				"state_data": m.StateData,
				"version":    row.Version + 1,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return apperrors.Wrap(result.Error, apperrors.ErrDatabaseUpdate, "更新投票失败")
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrConcurrentUpdate, battleID)
		}
		return nil
	})
}

// GetBattle 读取投票状态
func (r *battleStore) GetBattle(ctx context.Context, battleID string) (*battle.VoteState, error) {
	var row models.BattleVote
	err := r.db.WithContext(ctx).Where("battle_id = ?", battleID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrBattleNotFound, battleID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询投票失败")
	}
	return battle.UnmarshalVoteState(row.StateData)
}

// DeleteBattle 删除投票
func (r *battleStore) DeleteBattle(ctx context.Context, battleID string) error {
	unlock := r.locks.Lock(battleID)
	defer unlock()

	result := r.db.WithContext(ctx).Where("battle_id = ?", battleID).Delete(&models.BattleVote{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, apperrors.ErrDatabaseDelete, "删除投票失败")
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrBattleNotFound, battleID)
	}
	return nil
}

// ListExpiredBattles 查询已过截止时间仍在投票的对决
func (r *battleStore) ListExpiredBattles(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := r.db.WithContext(ctx)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	err := query.
		Model(&models.BattleVote{}).
		Where("status = ? AND vote_deadline_at < ?", string(battle.StatusVoting), now).
		Order("vote_deadline_at ASC").
		Pluck("battle_id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询过期投票失败")
	}
	return ids, nil
}

func voteStateToModel(v *battle.VoteState) (*models.BattleVote, error) {
	data, err := v.MarshalState()
	if err != nil {
		return nil, err
	}
	return &models.BattleVote{
		BattleID:       v.BattleID,
		CreatorID:      v.CreatorID,
		OpponentID:     v.OpponentID,
		Status:         string(v.Status),
		VoteDeadlineAt: v.VoteDeadlineAt,
		WinnerID:       v.WinnerID,
		StateData:      data,
		CreatedAt:      v.VotingStartedAt,
	}, nil
}
