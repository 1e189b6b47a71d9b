// Package game S.K.A.T.E.回合状态机。
//
// 所有转换都是*Session上的纯方法：不做IO、不读时钟（由调用方传入now），
// 失败时返回*errors.AppError。调用方应在idempotency.Apply给出的拷贝上调用，
// 失败的转换随拷贝一起丢弃，存储中的状态保持不变。
//
// 状态流转：waiting -> active <-> paused -> completed | forfeited
package game

import (
	"time"

	"github.com/wfunc/skate-game/internal/errors"
)

// NewSession 创建游戏，创建者占据第一个座位
func NewSession(id, spotID, creatorID string, maxPlayers int, turnTimeout time.Duration, now time.Time) *Session {
	return &Session{
		ID:         id,
		SpotID:     spotID,
		CreatorID:  creatorID,
		MaxPlayers: ClampMaxPlayers(maxPlayers),
		Players: []Player{
			{ID: creatorID, Connected: true},
		},
		Status:        StatusWaiting,
		CurrentAction: ActionSet,
		TurnTimeout:   turnTimeout,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ClampMaxPlayers 将人数上限限制在2到8之间
func ClampMaxPlayers(n int) int {
	if n < MinPlayers {
		return MinPlayers
	}
	if n > MaxPlayersLimit {
		return MaxPlayersLimit
	}
	return n
}

// Join 加入游戏；满员、两人局凑齐或start且至少两人时自动开始
func (s *Session) Join(playerID string, start bool, now time.Time) error {
	if s.indexOf(playerID) >= 0 {
		return errors.New(errors.ErrAlreadyJoined, playerID)
	}
	if len(s.Players) >= s.MaxPlayers {
		return errors.Newf(errors.ErrGameFull, "%d/%d", len(s.Players), s.MaxPlayers)
	}
	if s.Status != StatusWaiting {
		return errors.New(errors.ErrAlreadyStarted, string(s.Status))
	}

	s.Players = append(s.Players, Player{ID: playerID, Connected: true})
	s.touch(now)

	if len(s.Players) == s.MaxPlayers || (start && len(s.Players) >= MinPlayers) {
		s.activate(now)
	}
	return nil
}

// Start 创建者手动开始等待中的多人局
func (s *Session) Start(playerID string, now time.Time) error {
	if s.indexOf(playerID) < 0 {
		return errors.New(errors.ErrPlayerNotInGame, playerID)
	}
	if s.Status != StatusWaiting {
		return errors.New(errors.ErrAlreadyStarted, string(s.Status))
	}
	if playerID != s.CreatorID {
		return errors.New(errors.ErrNotCreator)
	}
	if len(s.Players) < MinPlayers {
		return errors.Newf(errors.ErrNotEnoughPlayers, "%d", len(s.Players))
	}
	s.activate(now)
	s.touch(now)
	return nil
}

// activate 开局：第一个座位出题；有人掉线则直接进入暂停
func (s *Session) activate(now time.Time) {
	s.CurrentTurnIndex = 0
	if !s.allConnected() {
		s.Status = StatusPaused
		s.PausedAt = &now
		s.CurrentAction = ActionSet
		s.clearRound()
		s.TurnDeadlineAt = nil
		return
	}
	s.Status = StatusActive
	s.beginSet(0, now)
}

// SubmitTrick 提交动作。
// set阶段：记录出题回合，转入attempt并轮到下一位可行动玩家；
// attempt阶段：记录待判定的应答回合，转入judge并交由出题方判定。
func (s *Session) SubmitTrick(playerID, trick, videoURL string, now time.Time) (*Turn, error) {
	if s.Status != StatusActive {
		return nil, errors.New(errors.ErrGameNotActive, string(s.Status))
	}
	idx := s.indexOf(playerID)
	if idx < 0 {
		return nil, errors.New(errors.ErrPlayerNotInGame, playerID)
	}
	if idx != s.CurrentTurnIndex {
		return nil, errors.New(errors.ErrNotYourTurn)
	}
	if s.CurrentAction != ActionSet && s.CurrentAction != ActionAttempt {
		return nil, errors.New(errors.ErrWrongPhase, string(s.CurrentAction))
	}
	if s.deadlinePassed(now) {
		return nil, errors.New(errors.ErrDeadlinePassed)
	}

	if s.CurrentAction == ActionSet {
		return s.setTrick(idx, trick, videoURL, now)
	}
	return s.respond(idx, videoURL, now)
}

func (s *Session) setTrick(idx int, trick, videoURL string, now time.Time) (*Turn, error) {
	if trick == "" {
		return nil, errors.New(errors.ErrInvalidParam, "trick不能为空")
	}
	next, ok := s.nextEligible(idx)
	if !ok {
		return nil, errors.New(errors.ErrNoEligiblePlayer)
	}

	turn := s.newTurn(s.Players[idx].ID, TurnTypeSet, trick, videoURL, now)
	turn.Result = ResultLanded

	s.CurrentTrick = trick
	s.SetterID = s.Players[idx].ID
	s.PendingTurnID = ""
	s.CurrentAction = ActionAttempt
	s.CurrentTurnIndex = next
	s.armDeadline(now)
	s.touch(now)
	return turn, nil
}

func (s *Session) respond(idx int, videoURL string, now time.Time) (*Turn, error) {
	setter := s.indexOf(s.SetterID)
	if setter < 0 || !s.eligible(setter) {
		return nil, errors.New(errors.ErrNoEligiblePlayer, "出题方不可判定")
	}

	turn := s.newTurn(s.Players[idx].ID, TurnTypeResponse, s.CurrentTrick, videoURL, now)
	turn.Result = ResultPending

	s.PendingTurnID = turn.ID
	s.CurrentAction = ActionJudge
	s.CurrentTurnIndex = setter
	s.armDeadline(now)
	s.touch(now)
	return turn, nil
}

func (s *Session) newTurn(playerID string, typ TurnType, trick, videoURL string, now time.Time) *Turn {
	s.TurnCount++
	return &Turn{
		ID:               TurnID(s.ID, s.TurnCount),
		GameID:           s.ID,
		PlayerID:         playerID,
		TurnNumber:       s.TurnCount,
		Type:             typ,
		TrickDescription: trick,
		VideoURL:         videoURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Pass 应答方放弃：获得一个字母，可能被淘汰或结束游戏
func (s *Session) Pass(playerID string, now time.Time) error {
	if s.Status != StatusActive {
		return errors.New(errors.ErrGameNotActive, string(s.Status))
	}
	idx := s.indexOf(playerID)
	if idx < 0 {
		return errors.New(errors.ErrPlayerNotInGame, playerID)
	}
	if idx != s.CurrentTurnIndex {
		return errors.New(errors.ErrNotYourTurn)
	}
	if s.CurrentAction != ActionAttempt {
		return errors.New(errors.ErrWrongPhase, string(s.CurrentAction))
	}

	s.penalize(idx, now)
	s.touch(now)
	return nil
}

// penalize 记字母后做淘汰检查；游戏未结束则由下一位可行动玩家出题
func (s *Session) penalize(idx int, now time.Time) {
	s.awardLetter(idx)
	s.clearRound()
	if s.checkCompletion(now) {
		return
	}
	next, ok := s.nextEligible(idx)
	if !ok {
		next, _ = s.nextStanding(idx)
	}
	s.beginSet(next, now)
}

// Disconnect 玩家掉线，进行中的游戏转为暂停，截止时间挂起
func (s *Session) Disconnect(playerID string, now time.Time) error {
	idx := s.indexOf(playerID)
	if idx < 0 {
		return errors.New(errors.ErrPlayerNotInGame, playerID)
	}
	if s.Status.IsTerminal() {
		return errors.New(errors.ErrAlreadyCompleted)
	}

	p := &s.Players[idx]
	if p.Connected {
		p.Connected = false
		p.DisconnectedAt = &now
	}
	if s.Status == StatusActive {
		s.Status = StatusPaused
		s.PausedAt = &now
		s.TurnDeadlineAt = nil
	}
	s.touch(now)
	return nil
}

// Reconnect 玩家重连；全部在线后恢复进行，回合与阶段保持不变
func (s *Session) Reconnect(playerID string, now time.Time) error {
	idx := s.indexOf(playerID)
	if idx < 0 {
		return errors.New(errors.ErrPlayerNotInGame, playerID)
	}
	if s.Status.IsTerminal() {
		return errors.New(errors.ErrAlreadyCompleted)
	}

	p := &s.Players[idx]
	p.Connected = true
	p.DisconnectedAt = nil

	if s.Status == StatusPaused && s.allConnected() {
		s.Status = StatusActive
		s.PausedAt = nil
		s.armDeadline(now)
	}
	s.touch(now)
	return nil
}

// Forfeit 认输，游戏以forfeited结束
func (s *Session) Forfeit(playerID, reason string, now time.Time) error {
	idx := s.indexOf(playerID)
	if idx < 0 {
		return errors.New(errors.ErrPlayerNotInGame, playerID)
	}
	if s.Status.IsTerminal() {
		return errors.New(errors.ErrAlreadyCompleted)
	}

	s.Status = StatusForfeited
	s.ForfeitedBy = playerID
	s.ForfeitReason = reason
	s.WinnerID = s.leaderExcept(idx)
	s.clearRound()
	s.TurnDeadlineAt = nil
	s.PausedAt = nil
	s.touch(now)
	return nil
}

// TimeoutTurn 回合超时：当前行动玩家以timeout原因判负
func (s *Session) TimeoutTurn(now time.Time) error {
	if s.Status != StatusActive {
		return errors.New(errors.ErrGameNotActive, string(s.Status))
	}
	if !s.deadlinePassed(now) {
		return errors.New(errors.ErrDeadlineNotReached)
	}
	return s.Forfeit(s.Players[s.CurrentTurnIndex].ID, ReasonTimeout, now)
}
