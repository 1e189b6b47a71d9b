package game

import (
	"time"

	"github.com/wfunc/skate-game/internal/errors"
)

// Judge 出题方判定应答回合。
// missed：应答方记一个字母，之后与Pass相同；landed：应答方成为出题方。
func (s *Session) Judge(turn *Turn, judgeID string, result TurnResult, now time.Time) error {
	if !result.Valid() {
		return errors.Newf(errors.ErrInvalidParam, "result=%s", result)
	}
	if turn == nil || turn.GameID != s.ID {
		return errors.New(errors.ErrTurnNotFound)
	}
	if turn.Result != ResultPending {
		return errors.New(errors.ErrTurnAlreadyJudged, turn.ID)
	}
	if s.Status != StatusActive {
		return errors.New(errors.ErrGameNotActive, string(s.Status))
	}
	if s.indexOf(judgeID) < 0 {
		return errors.New(errors.ErrPlayerNotInGame, judgeID)
	}
	if judgeID != s.SetterID {
		return errors.New(errors.ErrNotDefender)
	}
	if s.CurrentAction != ActionJudge || s.PendingTurnID != turn.ID {
		return errors.New(errors.ErrWrongPhase, string(s.CurrentAction))
	}
	if s.deadlinePassed(now) {
		return errors.New(errors.ErrDeadlinePassed)
	}
	if turn.VideoURL == "" {
		return errors.New(errors.ErrNoResponseVideo)
	}

	responder := s.indexOf(turn.PlayerID)
	if responder < 0 {
		return errors.New(errors.ErrPlayerNotInGame, turn.PlayerID)
	}

	turn.Result = result
	turn.JudgedBy = judgeID
	turn.JudgedAt = &now
	turn.UpdatedAt = now

	if result == ResultMissed {
		s.penalize(responder, now)
	} else {
		s.beginSet(responder, now)
	}
	s.touch(now)
	return nil
}

// AttachVideo 应答方为待判定回合补交视频
func (s *Session) AttachVideo(turn *Turn, playerID, videoURL string, now time.Time) error {
	if videoURL == "" {
		return errors.New(errors.ErrInvalidParam, "video_url不能为空")
	}
	if turn == nil || turn.GameID != s.ID {
		return errors.New(errors.ErrTurnNotFound)
	}
	if s.Status.IsTerminal() {
		return errors.New(errors.ErrAlreadyCompleted)
	}
	if turn.PlayerID != playerID {
		return errors.New(errors.ErrNotTurnOwner)
	}
	if turn.Result != ResultPending {
		return errors.New(errors.ErrTurnAlreadyJudged, turn.ID)
	}

	turn.VideoURL = videoURL
	turn.UpdatedAt = now
	s.touch(now)
	return nil
}

// Overturn 管理员推翻已判定的应答回合：翻转结果并增减应答方最后一个字母
func (s *Session) Overturn(turn *Turn, now time.Time) error {
	if turn == nil || turn.GameID != s.ID {
		return errors.New(errors.ErrTurnNotFound)
	}
	if s.Status.IsTerminal() {
		return errors.New(errors.ErrAlreadyCompleted)
	}
	if turn.Type != TurnTypeResponse {
		return errors.New(errors.ErrWrongPhase, "只能推翻应答回合")
	}
	if turn.Result == ResultPending {
		return errors.New(errors.ErrTurnNotJudged, turn.ID)
	}
	idx := s.indexOf(turn.PlayerID)
	if idx < 0 {
		return errors.New(errors.ErrPlayerNotInGame, turn.PlayerID)
	}

	if turn.Result == ResultLanded {
		turn.Result = ResultMissed
		s.awardLetter(idx)
	} else {
		turn.Result = ResultLanded
		s.revokeLetter(idx)
	}
	turn.Overturned = !turn.Overturned
	turn.UpdatedAt = now
	s.touch(now)

	if s.Status == StatusWaiting {
		return nil
	}
	if s.checkCompletion(now) {
		return nil
	}
	s.repairTurn(now)
	return nil
}

// repairTurn 当前玩家或出题方被淘汰时，从下一位未淘汰玩家重新出题
func (s *Session) repairTurn(now time.Time) {
	current := s.Players[s.CurrentTurnIndex]
	setterOut := false
	if s.SetterID != "" {
		if p, ok := s.Player(s.SetterID); ok && p.Eliminated() {
			setterOut = true
		}
	}
	if !current.Eliminated() && !setterOut {
		return
	}

	next := s.CurrentTurnIndex
	if current.Eliminated() {
		next, _ = s.nextStanding(s.CurrentTurnIndex)
	}
	if s.Status == StatusActive {
		s.beginSet(next, now)
		return
	}
	// 暂停中只调整位置，截止时间在恢复时重新设置
	s.CurrentTurnIndex = next
	s.CurrentAction = ActionSet
	s.clearRound()
}
