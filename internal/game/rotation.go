package game

import "time"

func (s *Session) indexOf(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// eligible 已连接且未淘汰
func (s *Session) eligible(i int) bool {
	p := s.Players[i]
	return p.Connected && !p.Eliminated()
}

// nextEligible 从from之后环形查找下一个可行动玩家，回到from仍未找到返回false
func (s *Session) nextEligible(from int) (int, bool) {
	return s.walk(from, s.eligible)
}

// nextStanding 同nextEligible，但只跳过已淘汰玩家（暂停期间连接状态不参与判断）
func (s *Session) nextStanding(from int) (int, bool) {
	return s.walk(from, func(i int) bool { return !s.Players[i].Eliminated() })
}

func (s *Session) walk(from int, ok func(int) bool) (int, bool) {
	n := len(s.Players)
	if n == 0 {
		return -1, false
	}
	for step := 1; step < n; step++ {
		j := ((from+step)%n + n) % n
		if ok(j) {
			return j, true
		}
	}
	return -1, false
}

func (s *Session) allConnected() bool {
	for _, p := range s.Players {
		if !p.Connected {
			return false
		}
	}
	return true
}

// standing 未淘汰玩家下标，按座位顺序
func (s *Session) standing() []int {
	out := make([]int, 0, len(s.Players))
	for i, p := range s.Players {
		if !p.Eliminated() {
			out = append(out, i)
		}
	}
	return out
}

// leaderExcept 排除skip后排名最高的玩家：字母最少者，平局按座位顺序
func (s *Session) leaderExcept(skip int) string {
	best := -1
	for i, p := range s.Players {
		if i == skip || p.Eliminated() {
			continue
		}
		if best < 0 || len(p.Letters) < len(s.Players[best].Letters) {
			best = i
		}
	}
	if best < 0 {
		// 其余玩家都已淘汰时仍需给出胜者
		for i := range s.Players {
			if i != skip {
				return s.Players[i].ID
			}
		}
		return ""
	}
	return s.Players[best].ID
}

// awardLetter 给玩家追加下一个字母，返回是否因此淘汰
func (s *Session) awardLetter(i int) bool {
	p := &s.Players[i]
	if p.Eliminated() {
		return true
	}
	p.Letters = Word[:len(p.Letters)+1]
	return p.Eliminated()
}

// revokeLetter 撤销最后一个字母
func (s *Session) revokeLetter(i int) {
	p := &s.Players[i]
	if len(p.Letters) > 0 {
		p.Letters = Word[:len(p.Letters)-1]
	}
}

// checkCompletion 仅剩一名未淘汰玩家时结束游戏
func (s *Session) checkCompletion(now time.Time) bool {
	remaining := s.standing()
	if len(remaining) > 1 {
		return false
	}
	s.Status = StatusCompleted
	if len(remaining) == 1 {
		s.WinnerID = s.Players[remaining[0]].ID
	}
	s.clearRound()
	s.TurnDeadlineAt = nil
	s.PausedAt = nil
	return true
}

func (s *Session) clearRound() {
	s.CurrentTrick = ""
	s.SetterID = ""
	s.PendingTurnID = ""
}

// beginSet 把出题权交给下标i
func (s *Session) beginSet(i int, now time.Time) {
	s.CurrentTurnIndex = i
	s.CurrentAction = ActionSet
	s.clearRound()
	s.armDeadline(now)
}

func (s *Session) armDeadline(now time.Time) {
	if s.TurnTimeout <= 0 || s.Status != StatusActive {
		s.TurnDeadlineAt = nil
		return
	}
	d := now.Add(s.TurnTimeout)
	s.TurnDeadlineAt = &d
}

func (s *Session) deadlinePassed(now time.Time) bool {
	return s.TurnDeadlineAt != nil && now.After(*s.TurnDeadlineAt)
}

func (s *Session) touch(now time.Time) {
	s.UpdatedAt = now
}
