package service

import (
	"context"

	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/game"
	"github.com/wfunc/skate-game/internal/idempotency"
	"github.com/wfunc/skate-game/internal/logger"
	"github.com/wfunc/skate-game/internal/repository"
	"github.com/wfunc/skate-game/internal/utils"
	"go.uber.org/zap"
)

// transitionFunc 在拷贝上执行的游戏转换，返回本次产生或变更的回合
type transitionFunc func(ctx context.Context, next *game.Session, turns repository.TurnReader) (*game.Turn, error)

// gameService 游戏服务实现
type gameService struct {
	store    repository.GameStore
	config   *Config
	notifier Notifier
	log      *zap.Logger
}

// NewGameService 创建游戏服务
func NewGameService(store repository.GameStore, config *Config, notifier Notifier, log *zap.Logger) GameService {
	return &gameService{
		store:    store,
		config:   config,
		notifier: notifier,
		log:      log,
	}
}

// CreateGame 创建游戏；同一ID已存在时返回已存储的游戏
func (s *gameService) CreateGame(ctx context.Context, req *CreateGameRequest) (*Result[*GameOutcome], error) {
	if req.EventID == "" {
		return reject[*GameOutcome](errors.New(errors.ErrInvalidParam, "event_id不能为空")), nil
	}
	if req.CreatorID == "" || req.SpotID == "" {
		return reject[*GameOutcome](errors.New(errors.ErrInvalidParam, "creator_id和spot_id不能为空")), nil
	}

	gameID := req.GameID
	if gameID == "" {
		gameID = utils.DeriveGameID(req.EventID)
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.config.DefaultMaxPlayers
	}

	session := game.NewSession(gameID, req.SpotID, req.CreatorID, maxPlayers, s.config.TurnTimeout, s.config.now())
	session.Ledger().Record(req.EventID)

	stored, created, err := s.store.CreateGame(ctx, session)
	if err != nil {
		s.log.Error("Failed to create game", zap.Error(err), zap.String("gameID", gameID))
		return nil, err
	}
	if !created {
		s.log.Debug("Game already exists", zap.String("gameID", gameID))
		return &Result[*GameOutcome]{
			Success:            true,
			AlreadyInitialized: true,
			Value:              &GameOutcome{Game: stored},
		}, nil
	}

	logger.LogGameEvent("created", gameID, map[string]interface{}{
		"creator_id":  req.CreatorID,
		"spot_id":     req.SpotID,
		"max_players": stored.MaxPlayers,
	})
	s.log.Info("Game created", zap.String("gameID", gameID), zap.String("creatorID", req.CreatorID))
	return succeed(&GameOutcome{Game: stored}), nil
}

// JoinGame 加入游戏
func (s *gameService) JoinGame(ctx context.Context, req *JoinGameRequest) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "joined", req.GameID, req.EventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return nil, next.Join(req.PlayerID, req.Start, now)
	})
}

// StartGame 创建者手动开始
func (s *gameService) StartGame(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "started", cmd.GameID, cmd.EventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return nil, next.Start(cmd.PlayerID, now)
	})
}

// SubmitTrick 出题或提交应答
func (s *gameService) SubmitTrick(ctx context.Context, req *SubmitTrickRequest) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "trick_submitted", req.GameID, req.EventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return next.SubmitTrick(req.PlayerID, req.Trick, req.VideoURL, now)
	})
}

// Pass 应答方放弃
func (s *gameService) Pass(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "passed", cmd.GameID, cmd.EventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return nil, next.Pass(cmd.PlayerID, now)
	})
}

// JudgeTurn 出题方判定应答回合
func (s *gameService) JudgeTurn(ctx context.Context, req *JudgeTurnRequest) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "judged", req.GameID, req.EventID, func(ctx context.Context, next *game.Session, turns repository.TurnReader) (*game.Turn, error) {
		turn, err := loadTurn(ctx, turns, req.TurnID)
		if err != nil {
			return nil, err
		}
		if err := next.Judge(turn, req.JudgeID, req.Result, now); err != nil {
			return nil, err
		}
		return turn, nil
	})
}

// AttachVideo 应答方补交视频
func (s *gameService) AttachVideo(ctx context.Context, req *AttachVideoRequest) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "video_attached", req.GameID, req.EventID, func(ctx context.Context, next *game.Session, turns repository.TurnReader) (*game.Turn, error) {
		turn, err := loadTurn(ctx, turns, req.TurnID)
		if err != nil {
			return nil, err
		}
		if err := next.AttachVideo(turn, req.PlayerID, req.VideoURL, now); err != nil {
			return nil, err
		}
		return turn, nil
	})
}

// Disconnect 玩家掉线
func (s *gameService) Disconnect(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "disconnected", cmd.GameID, cmd.EventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return nil, next.Disconnect(cmd.PlayerID, now)
	})
}

// Reconnect 玩家重连
func (s *gameService) Reconnect(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "reconnected", cmd.GameID, cmd.EventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return nil, next.Reconnect(cmd.PlayerID, now)
	})
}

// Forfeit 认输
func (s *gameService) Forfeit(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error) {
	now := s.config.now()
	reason := cmd.Reason
	if reason == "" {
		reason = "forfeit"
	}
	return s.apply(ctx, "forfeited", cmd.GameID, cmd.EventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return nil, next.Forfeit(cmd.PlayerID, reason, now)
	})
}

// TimeoutTurn 回合超时判负，由超时扫描调用
func (s *gameService) TimeoutTurn(ctx context.Context, gameID, eventID string) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "turn_timeout", gameID, eventID, func(ctx context.Context, next *game.Session, _ repository.TurnReader) (*game.Turn, error) {
		return nil, next.TimeoutTurn(now)
	})
}

// OverturnTurn 管理员推翻判定
func (s *gameService) OverturnTurn(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error) {
	now := s.config.now()
	return s.apply(ctx, "overturned", cmd.GameID, cmd.EventID, func(ctx context.Context, next *game.Session, turns repository.TurnReader) (*game.Turn, error) {
		turn, err := loadTurn(ctx, turns, cmd.TurnID)
		if err != nil {
			return nil, err
		}
		if err := next.Overturn(turn, now); err != nil {
			return nil, err
		}
		return turn, nil
	})
}

// DeleteGame 删除游戏
func (s *gameService) DeleteGame(ctx context.Context, gameID string) error {
	if err := s.store.DeleteGame(ctx, gameID); err != nil {
		return err
	}
	logger.LogGameEvent("deleted", gameID, nil)
	return nil
}

// GetGame 查询游戏
func (s *gameService) GetGame(ctx context.Context, gameID string) (*game.Session, error) {
	return s.store.GetGame(ctx, gameID)
}

// ListTurns 查询回合记录
func (s *gameService) ListTurns(ctx context.Context, gameID string) ([]*game.Turn, error) {
	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return s.store.ListTurns(ctx, gameID)
}

// apply 幂等门控 + 存储事务 + 提交后通知
func (s *gameService) apply(ctx context.Context, action, gameID, eventID string, fn transitionFunc) (*Result[*GameOutcome], error) {
	var (
		prev      *game.Session
		committed *game.Session
		turn      *game.Turn
		outcome   idempotency.Outcome
	)

	err := s.store.UpdateGame(ctx, gameID, func(ctx context.Context, current *game.Session, turns repository.TurnReader) (*repository.GameMutation, error) {
		next, out, err := idempotency.Apply(current, eventID, func(next *game.Session) error {
			var err error
			turn, err = fn(ctx, next, turns)
			return err
		})
		if err != nil {
			return nil, err
		}

		prev, committed, outcome = current, next, out
		if out == idempotency.AlreadyProcessed {
			return nil, nil
		}
		mutation := &repository.GameMutation{Game: next}
		if turn != nil {
			mutation.Turns = []*game.Turn{turn}
		}
		return mutation, nil
	})
	if err != nil {
		if appErr, ok := isRejection(err); ok {
			s.log.Warn("Game command rejected",
				zap.String("action", action),
				zap.String("gameID", gameID),
				zap.String("eventID", eventID),
				zap.Int("code", int(appErr.Code)),
				zap.String("details", appErr.Details),
			)
			return reject[*GameOutcome](appErr), nil
		}
		s.log.Error("Failed to apply game command", zap.Error(err), zap.String("action", action), zap.String("gameID", gameID))
		return nil, err
	}

	if outcome == idempotency.AlreadyProcessed {
		s.log.Debug("Event already processed", zap.String("gameID", gameID), zap.String("eventID", eventID))
		return &Result[*GameOutcome]{
			Success:          true,
			AlreadyProcessed: true,
			Value:            &GameOutcome{Game: committed},
		}, nil
	}

	s.notify(prev, committed)
	logger.LogGameEvent(action, gameID, map[string]interface{}{
		"event_id":   eventID,
		"status":     string(committed.Status),
		"turn_count": committed.TurnCount,
		"action":     string(committed.CurrentAction),
	})
	return succeed(&GameOutcome{Game: committed, Turn: turn}), nil
}

func (s *gameService) notify(prev, next *game.Session) {
	for _, n := range game.Notifications(prev, next) {
		s.notifier.Notify(n.PlayerID, string(n.Kind), n.Payload)
	}
}

func loadTurn(ctx context.Context, turns repository.TurnReader, turnID string) (*game.Turn, error) {
	turn, err := turns.Turn(ctx, turnID)
	if err != nil {
		return nil, err
	}
	if turn == nil {
		return nil, errors.New(errors.ErrTurnNotFound, turnID)
	}
	return turn, nil
}
