package sweeper

import (
	"context"
	"time"

	"github.com/wfunc/skate-game/internal/config"
	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/repository"
	"github.com/wfunc/skate-game/internal/service"
	"github.com/wfunc/skate-game/internal/utils"
	"go.uber.org/zap"
)

// 扫描器以固定身份发出事件
const actor = "sweeper"

const defaultBatchSize = 100

// Report 单轮扫描结果
type Report struct {
	GamesTimedOut  int
	BattlesExpired int
	Failed         int
}

// Sweeper 将过期的回合截止时间和投票截止时间转换成幂等事件。
// 核心状态机不持有定时器，截止时间只由这里驱动。
type Sweeper struct {
	games     repository.GameStore
	battles   repository.BattleStore
	gameSvc   service.GameService
	battleSvc service.BattleService
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

// New 创建扫描器
func New(repos *repository.Manager, services *service.Services, cfg config.SweeperConfig, now func() time.Time, logger *zap.Logger) *Sweeper {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Sweeper{
		games:     repos.Games(),
		battles:   repos.Battles(),
		gameSvc:   services.Game,
		battleSvc: services.Battle,
		interval:  cfg.Interval,
		batchSize: batchSize,
		now:       now,
		logger:    logger,
	}
}

// Run 按间隔循环扫描，直到ctx结束
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			report := s.RunOnce(ctx)
			if report.GamesTimedOut+report.BattlesExpired+report.Failed > 0 {
				s.logger.Info("Sweep finished",
					zap.Int("games_timed_out", report.GamesTimedOut),
					zap.Int("battles_expired", report.BattlesExpired),
					zap.Int("failed", report.Failed))
			}
		}
	}
}

// RunOnce 执行一轮扫描。遇到严重错误（存储不可用或数据损坏）时放弃本轮剩余工作，
// 留给下一个tick重试。
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	var report Report
	now := s.now()

	gameIDs, err := s.games.ListExpiredGames(ctx, now, s.batchSize)
	if err != nil {
		s.logFailure("List expired games failed", err)
		report.Failed++
		if errors.IsCritical(err) {
			return report
		}
	}
	for _, id := range gameIDs {
		ok, err := s.timeoutGame(ctx, id)
		if ok {
			report.GamesTimedOut++
			continue
		}
		report.Failed++
		if errors.IsCritical(err) {
			s.logger.Error("Sweep aborted", zap.String("gameID", id))
			return report
		}
	}

	battleIDs, err := s.battles.ListExpiredBattles(ctx, now, s.batchSize)
	if err != nil {
		s.logFailure("List expired battles failed", err)
		report.Failed++
		if errors.IsCritical(err) {
			return report
		}
	}
	for _, id := range battleIDs {
		ok, err := s.expireBattle(ctx, id)
		if ok {
			report.BattlesExpired++
			continue
		}
		report.Failed++
		if errors.IsCritical(err) {
			s.logger.Error("Sweep aborted", zap.String("battleID", id))
			return report
		}
	}

	return report
}

func (s *Sweeper) logFailure(msg string, err error, fields ...zap.Field) {
	s.logger.Error(msg, append(fields,
		zap.Error(err),
		zap.Bool("retryable", errors.IsRetryable(err)),
	)...)
}

// timeoutGame 事件ID由游戏ID和回合数确定，同一次超时重复扫描只生效一次。
// 被状态机拒绝时返回false和nil错误。
func (s *Sweeper) timeoutGame(ctx context.Context, gameID string) (bool, error) {
	g, err := s.gameSvc.GetGame(ctx, gameID)
	if err != nil {
		s.logFailure("Load expired game failed", err, zap.String("gameID", gameID))
		return false, err
	}

	eventID := utils.DeriveEventID("turn_timeout", actor, gameID, g.TurnCount)
	res, err := s.gameSvc.TimeoutTurn(ctx, gameID, eventID)
	if err != nil {
		s.logFailure("Turn timeout failed", err, zap.String("gameID", gameID))
		return false, err
	}
	if !res.Success {
		s.logger.Warn("Turn timeout rejected",
			zap.String("gameID", gameID),
			zap.Int("code", int(res.Error.Code)),
			zap.String("message", res.Error.Message))
		return false, nil
	}
	return true, nil
}

// expireBattle 投票只会过期一次，事件ID只由对决ID确定
func (s *Sweeper) expireBattle(ctx context.Context, battleID string) (bool, error) {
	eventID := utils.DeriveEventID("voting_expired", actor, battleID, 0)
	res, err := s.battleSvc.ExpireVoting(ctx, battleID, eventID)
	if err != nil {
		s.logFailure("Expire voting failed", err, zap.String("battleID", battleID))
		return false, err
	}
	if !res.Success {
		s.logger.Warn("Expire voting rejected",
			zap.String("battleID", battleID),
			zap.Int("code", int(res.Error.Code)),
			zap.String("message", res.Error.Message))
		return false, nil
	}
	return true, nil
}
