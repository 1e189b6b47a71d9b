package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/game"
	"github.com/wfunc/skate-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gameStore 基于gorm的游戏存储：事务 + 行锁 + 版本号，进程内再按游戏ID串行
type gameStore struct {
	*BaseRepo
	txm   TransactionManager
	locks *KeyedMutex
}

// NewGameStore 创建gorm游戏存储
func NewGameStore(db *gorm.DB) GameStore {
	return &gameStore{
		BaseRepo: NewBaseRepo(db),
		txm:      NewTransactionManager(db),
		locks:    NewKeyedMutex(),
	}
}

// CreateGame 创建游戏，已存在则返回已存储的状态
func (r *gameStore) CreateGame(ctx context.Context, s *game.Session) (*game.Session, bool, error) {
	unlock := r.locks.Lock(s.ID)
	defer unlock()

	if existing, err := r.GetGame(ctx, s.ID); err == nil {
		return existing, false, nil
	} else if !apperrors.Is(err, apperrors.ErrGameNotFound) {
		return nil, false, err
	}

	row, err := sessionToModel(s)
	if err != nil {
		return nil, false, err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		// 其他进程抢先创建
		if existing, getErr := r.GetGame(ctx, s.ID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建游戏失败")
	}
	return s.Clone(), true, nil
}

// UpdateGame 在事务中锁定游戏行并执行转换
func (r *gameStore) UpdateGame(ctx context.Context, gameID string, fn GameUpdateFunc) error {
	unlock := r.locks.Lock(gameID)
	defer unlock()

	return r.txm.WithTransaction(ctx, func(tx *Transaction) error {
		var row models.SkateGame
		if err := tx.LockForUpdate(&row, "id = ?", gameID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.ErrGameNotFound, gameID)
			}
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "锁定游戏失败")
		}

		current, err := game.UnmarshalSession(row.StateData)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDataIntegrity, gameID)
		}

		mutation, err := fn(ctx, current, &txTurnReader{db: tx.GetDB(), gameID: gameID})
		if err != nil {
			return err
		}
		if mutation == nil || mutation.Game == nil {
			return nil
		}

		next, err := sessionToModel(mutation.Game)
		if err != nil {
			return err
		}
		result := tx.GetDB().Model(&models.SkateGame{}).
			Where("id = ? AND version = ?", gameID, row.Version).
			Updates(map[string]interface{}{
				"status":           next.Status,
				"player_count":     next.PlayerCount,
				"winner_id":        next.WinnerID,
				"turn_deadline_at": next.TurnDeadlineAt,
				"state_data":       next.StateData,
				"version":          row.Version + 1,
				"updated_at":       next.UpdatedAt,
			})
		if result.Error != nil {
			return apperrors.Wrap(result.Error, apperrors.ErrDatabaseUpdate, "更新游戏失败")
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrConcurrentUpdate, gameID)
		}

		for _, t := range mutation.Turns {
			m := turnToModel(t)
			err := tx.GetDB().Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(m).Error
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "写入回合失败")
			}
		}
		return nil
	})
}

// GetGame 读取游戏状态
func (r *gameStore) GetGame(ctx context.Context, gameID string) (*game.Session, error) {
	var row models.SkateGame
	err := r.db.WithContext(ctx).Where("id = ?", gameID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrGameNotFound, gameID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询游戏失败")
	}
	s, err := game.UnmarshalSession(row.StateData)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDataIntegrity, gameID)
	}
	return s, nil
}

// GetTurn 读取单个回合
func (r *gameStore) GetTurn(ctx context.Context, gameID, turnID string) (*game.Turn, error) {
	t, err := (&txTurnReader{db: r.db, gameID: gameID}).Turn(ctx, turnID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperrors.New(apperrors.ErrTurnNotFound, turnID)
	}
	return t, nil
}

// ListTurns 按回合序号列出
func (r *gameStore) ListTurns(ctx context.Context, gameID string) ([]*game.Turn, error) {
	var rows []models.GameTurn
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("turn_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询回合失败")
	}
	turns := make([]*game.Turn, 0, len(rows))
	for i := range rows {
		turns = append(turns, turnFromModel(&rows[i]))
	}
	return turns, nil
}

// DeleteGame 删除游戏及其回合
func (r *gameStore) DeleteGame(ctx context.Context, gameID string) error {
	unlock := r.locks.Lock(gameID)
	defer unlock()

	return r.txm.WithTransaction(ctx, func(tx *Transaction) error {
		result := tx.GetDB().Where("id = ?", gameID).Delete(&models.SkateGame{})
		if result.Error != nil {
			return apperrors.Wrap(result.Error, apperrors.ErrDatabaseDelete, "删除游戏失败")
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrGameNotFound, gameID)
		}
		if err := tx.GetDB().Where("game_id = ?", gameID).Delete(&models.GameTurn{}).Error; err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseDelete, "删除回合失败")
		}
		return nil
	})
}

// ListExpiredGames 查询回合已超时的进行中游戏
func (r *gameStore) ListExpiredGames(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := r.db.WithContext(ctx)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	err := query.
		Model(&models.SkateGame{}).
		Where("status = ? AND turn_deadline_at IS NOT NULL AND turn_deadline_at < ?", string(game.StatusActive), now).
		Order("turn_deadline_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询超时游戏失败")
	}
	return ids, nil
}

// txTurnReader 事务内的回合读取
type txTurnReader struct {
	db     *gorm.DB
	gameID string
}

func (r *txTurnReader) Turn(ctx context.Context, turnID string) (*game.Turn, error) {
	var row models.GameTurn
	err := r.db.WithContext(ctx).
		Where("id = ? AND game_id = ?", turnID, r.gameID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询回合失败")
	}
	return turnFromModel(&row), nil
}

func sessionToModel(s *game.Session) (*models.SkateGame, error) {
	data, err := s.MarshalState()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDataIntegrity, s.ID)
	}
	return &models.SkateGame{
		ID:             s.ID,
		SpotID:         s.SpotID,
		CreatorID:      s.CreatorID,
		Status:         string(s.Status),
		MaxPlayers:     s.MaxPlayers,
		PlayerCount:    len(s.Players),
		WinnerID:       s.WinnerID,
		TurnDeadlineAt: s.TurnDeadlineAt,
		StateData:      data,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

func turnToModel(t *game.Turn) *models.GameTurn {
	return &models.GameTurn{
		ID:               t.ID,
		GameID:           t.GameID,
		TurnNumber:       t.TurnNumber,
		PlayerID:         t.PlayerID,
		TurnType:         string(t.Type),
		TrickDescription: t.TrickDescription,
		VideoURL:         t.VideoURL,
		Result:           string(t.Result),
		JudgedBy:         t.JudgedBy,
		JudgedAt:         t.JudgedAt,
		Overturned:       t.Overturned,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func turnFromModel(m *models.GameTurn) *game.Turn {
	return &game.Turn{
		ID:               m.ID,
		GameID:           m.GameID,
		PlayerID:         m.PlayerID,
		TurnNumber:       m.TurnNumber,
		Type:             game.TurnType(m.TurnType),
		TrickDescription: m.TrickDescription,
		VideoURL:         m.VideoURL,
		Result:           game.TurnResult(m.Result),
		JudgedBy:         m.JudgedBy,
		JudgedAt:         m.JudgedAt,
		Overturned:       m.Overturned,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
