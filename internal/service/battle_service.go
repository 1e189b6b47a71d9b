package service

import (
	"context"

	"github.com/wfunc/skate-game/internal/battle"
	"github.com/wfunc/skate-game/internal/idempotency"
	"github.com/wfunc/skate-game/internal/logger"
	"github.com/wfunc/skate-game/internal/repository"
	"go.uber.org/zap"
)

// battleService 对决投票服务实现
type battleService struct {
	store    repository.BattleStore
	config   *Config
	notifier Notifier
	log      *zap.Logger
}

// NewBattleService 创建对决投票服务
func NewBattleService(store repository.BattleStore, config *Config, notifier Notifier, log *zap.Logger) BattleService {
	return &battleService{
		store:    store,
		config:   config,
		notifier: notifier,
		log:      log,
	}
}

// InitializeVoting 开启投票；已存在时保留原有投票
func (s *battleService) InitializeVoting(ctx context.Context, req *InitializeVotingRequest) (*Result[*battle.VoteState], error) {
	state, err := battle.NewVoteState(req.BattleID, req.CreatorID, req.OpponentID, s.config.now(), s.config.VoteWindow)
	if err != nil {
		if appErr, ok := isRejection(err); ok {
			return reject[*battle.VoteState](appErr), nil
		}
		return nil, err
	}
	if req.EventID != "" {
		state.Ledger().Record(req.EventID)
	}

	stored, created, err := s.store.InitializeBattle(ctx, state)
	if err != nil {
		s.log.Error("Failed to initialize voting", zap.Error(err), zap.String("battleID", req.BattleID))
		return nil, err
	}
	if !created {
		return &Result[*battle.VoteState]{
			Success:            true,
			AlreadyInitialized: true,
			Value:              stored,
		}, nil
	}

	logger.LogBattleEvent("voting_started", stored.BattleID, map[string]interface{}{
		"creator_id":  stored.CreatorID,
		"opponent_id": stored.OpponentID,
		"deadline":    stored.VoteDeadlineAt.Unix(),
	})
	return succeed(stored), nil
}

// CastVote 投票或改票
func (s *battleService) CastVote(ctx context.Context, req *CastVoteRequest) (*Result[*battle.VoteState], error) {
	now := s.config.now()
	return s.apply(ctx, "vote_cast", req.BattleID, req.EventID, func(next *battle.VoteState) error {
		return next.CastVote(req.PlayerID, req.Vote, now)
	})
}

// ExpireVoting 投票截止结算，由超时扫描调用
func (s *battleService) ExpireVoting(ctx context.Context, battleID, eventID string) (*Result[*battle.VoteState], error) {
	now := s.config.now()
	return s.apply(ctx, "voting_expired", battleID, eventID, func(next *battle.VoteState) error {
		return next.ExpireVoting(now)
	})
}

// GetBattle 查询投票状态
func (s *battleService) GetBattle(ctx context.Context, battleID string) (*battle.VoteState, error) {
	return s.store.GetBattle(ctx, battleID)
}

// DeleteBattle 删除投票
func (s *battleService) DeleteBattle(ctx context.Context, battleID string) error {
	if err := s.store.DeleteBattle(ctx, battleID); err != nil {
		return err
	}
	logger.LogBattleEvent("deleted", battleID, nil)
	return nil
}

func (s *battleService) apply(ctx context.Context, action, battleID, eventID string, fn func(next *battle.VoteState) error) (*Result[*battle.VoteState], error) {
	var (
		prev      *battle.VoteState
		committed *battle.VoteState
		outcome   idempotency.Outcome
	)

	err := s.store.UpdateBattle(ctx, battleID, func(ctx context.Context, current *battle.VoteState) (*battle.VoteState, error) {
		next, out, err := idempotency.Apply(current, eventID, fn)
		if err != nil {
			return nil, err
		}
		prev, committed, outcome = current, next, out
		if out == idempotency.AlreadyProcessed {
			return nil, nil
		}
		return next, nil
	})
	if err != nil {
		if appErr, ok := isRejection(err); ok {
			s.log.Warn("Battle command rejected",
				zap.String("action", action),
				zap.String("battleID", battleID),
				zap.String("eventID", eventID),
				zap.Int("code", int(appErr.Code)),
			)
			return reject[*battle.VoteState](appErr), nil
		}
		s.log.Error("Failed to apply battle command", zap.Error(err), zap.String("battleID", battleID))
		return nil, err
	}

	if outcome == idempotency.AlreadyProcessed {
		return &Result[*battle.VoteState]{Success: true, AlreadyProcessed: true, Value: committed}, nil
	}

	if !prev.Status.IsTerminal() && committed.Status.IsTerminal() {
		payload := map[string]interface{}{
			"battle_id":   committed.BattleID,
			"status":      string(committed.Status),
			"winner_id":   committed.WinnerID,
			"final_score": committed.FinalScore,
		}
		for _, playerID := range committed.Participants() {
			s.notifier.Notify(playerID, KindBattleComplete, payload)
		}
	}
	logger.LogBattleEvent(action, battleID, map[string]interface{}{
		"event_id": eventID,
		"status":   string(committed.Status),
		"votes":    len(committed.Votes),
	})
	return succeed(committed), nil
}
