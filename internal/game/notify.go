package game

// NotificationKind 通知类型
type NotificationKind string

const (
	KindYourTurn NotificationKind = "your_turn"
	KindGameOver NotificationKind = "game_over"
)

// Notification 提交成功后需要推送给玩家的通知
type Notification struct {
	PlayerID string                 `json:"player_id"`
	Kind     NotificationKind       `json:"kind"`
	Payload  map[string]interface{} `json:"payload"`
}

// Notifications 比较提交前后的状态，得出需要推送的通知。
// 进入终止状态时通知所有玩家game_over；否则轮到新的玩家或阶段变化时通知当前玩家your_turn。
func Notifications(prev, next *Session) []Notification {
	if next == nil {
		return nil
	}

	if next.Status.IsTerminal() {
		if prev != nil && prev.Status.IsTerminal() {
			return nil
		}
		out := make([]Notification, 0, len(next.Players))
		for _, p := range next.Players {
			out = append(out, Notification{
				PlayerID: p.ID,
				Kind:     KindGameOver,
				Payload: map[string]interface{}{
					"game_id":        next.ID,
					"status":         string(next.Status),
					"winner_id":      next.WinnerID,
					"forfeited_by":   next.ForfeitedBy,
					"forfeit_reason": next.ForfeitReason,
					"letters":        p.Letters,
				},
			})
		}
		return out
	}

	if next.Status != StatusActive {
		return nil
	}
	if prev != nil && prev.Status == StatusActive &&
		prev.CurrentTurnIndex == next.CurrentTurnIndex &&
		prev.CurrentAction == next.CurrentAction {
		return nil
	}

	current := next.Players[next.CurrentTurnIndex]
	payload := map[string]interface{}{
		"game_id":   next.ID,
		"action":    string(next.CurrentAction),
		"trick":     next.CurrentTrick,
		"setter_id": next.SetterID,
		"letters":   current.Letters,
	}
	if next.PendingTurnID != "" {
		payload["turn_id"] = next.PendingTurnID
	}
	if next.TurnDeadlineAt != nil {
		payload["deadline"] = next.TurnDeadlineAt.Unix()
	}
	return []Notification{{PlayerID: current.ID, Kind: KindYourTurn, Payload: payload}}
}
