package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/skate-game/internal/idempotency"
)

// Word 字母累积顺序，集齐即淘汰
const Word = "SKATE"

// 人数限制
const (
	MinPlayers      = 2
	MaxPlayersLimit = 8
)

// ReasonTimeout 超时判负原因
const ReasonTimeout = "timeout"

// Status 游戏状态
type Status string

const (
	StatusWaiting   Status = "waiting"   // 等待玩家加入
	StatusActive    Status = "active"    // 进行中
	StatusPaused    Status = "paused"    // 有玩家掉线，暂停
	StatusCompleted Status = "completed" // 正常结束
	StatusForfeited Status = "forfeited" // 认输结束
)

// IsTerminal 是否为终止状态
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusForfeited
}

// Action 当前回合阶段
type Action string

const (
	ActionSet     Action = "set"     // 出题
	ActionAttempt Action = "attempt" // 应答方尝试或放弃
	ActionJudge   Action = "judge"   // 出题方判定应答
)

// TurnType 回合记录类型
type TurnType string

const (
	TurnTypeSet      TurnType = "set"
	TurnTypeResponse TurnType = "response"
)

// TurnResult 回合判定结果
type TurnResult string

const (
	ResultPending TurnResult = "pending"
	ResultLanded  TurnResult = "landed"
	ResultMissed  TurnResult = "missed"
)

// Valid 是否为可提交的判定结果
func (r TurnResult) Valid() bool {
	return r == ResultLanded || r == ResultMissed
}

// Player 玩家座位
type Player struct {
	ID             string     `json:"id"`
	Letters        string     `json:"letters"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// Eliminated 是否已集齐SKATE
func (p Player) Eliminated() bool {
	return len(p.Letters) >= len(Word)
}

// Session 一局S.K.A.T.E.游戏的完整状态
type Session struct {
	ID         string   `json:"id"`
	SpotID     string   `json:"spot_id"`
	CreatorID  string   `json:"creator_id"`
	MaxPlayers int      `json:"max_players"`
	Players    []Player `json:"players"`
	Status     Status   `json:"status"`

	CurrentTurnIndex int    `json:"current_turn_index"`
	CurrentAction    Action `json:"current_action"`
	CurrentTrick     string `json:"current_trick,omitempty"`
	SetterID         string `json:"setter_id,omitempty"`
	PendingTurnID    string `json:"pending_turn_id,omitempty"`

	WinnerID      string `json:"winner_id,omitempty"`
	ForfeitedBy   string `json:"forfeited_by,omitempty"`
	ForfeitReason string `json:"forfeit_reason,omitempty"`

	TurnDeadlineAt *time.Time    `json:"turn_deadline_at,omitempty"`
	PausedAt       *time.Time    `json:"paused_at,omitempty"`
	TurnTimeout    time.Duration `json:"turn_timeout"`
	TurnCount      int           `json:"turn_count"`

	ProcessedEventIDs idempotency.Ledger `json:"processed_event_ids"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Clone 深拷贝
func (s *Session) Clone() *Session {
	out := *s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.DisconnectedAt = cloneTime(p.DisconnectedAt)
		out.Players[i] = p
	}
	out.TurnDeadlineAt = cloneTime(s.TurnDeadlineAt)
	out.PausedAt = cloneTime(s.PausedAt)
	out.ProcessedEventIDs = s.ProcessedEventIDs.Clone()
	return &out
}

// Ledger 事件账本
func (s *Session) Ledger() *idempotency.Ledger {
	return &s.ProcessedEventIDs
}

// Player 按ID查找玩家
func (s *Session) Player(playerID string) (Player, bool) {
	if i := s.indexOf(playerID); i >= 0 {
		return s.Players[i], true
	}
	return Player{}, false
}

// CurrentPlayerID 当前轮到的玩家，未开始时为空
func (s *Session) CurrentPlayerID() string {
	if s.Status == StatusWaiting || s.CurrentTurnIndex < 0 || s.CurrentTurnIndex >= len(s.Players) {
		return ""
	}
	return s.Players[s.CurrentTurnIndex].ID
}

// Turn 回合记录（只追加，判定后不可变）
type Turn struct {
	ID               string     `json:"id"`
	GameID           string     `json:"game_id"`
	PlayerID         string     `json:"player_id"`
	TurnNumber       int        `json:"turn_number"`
	Type             TurnType   `json:"turn_type"`
	TrickDescription string     `json:"trick_description"`
	VideoURL         string     `json:"video_url,omitempty"`
	Result           TurnResult `json:"result"`
	JudgedBy         string     `json:"judged_by,omitempty"`
	JudgedAt         *time.Time `json:"judged_at,omitempty"`
	Overturned       bool       `json:"overturned"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Clone 深拷贝
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	out := *t
	out.JudgedAt = cloneTime(t.JudgedAt)
	return &out
}

// turnNamespace 回合ID命名空间
var turnNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("skate-game/turn"))

// TurnID 由游戏ID和回合序号确定性生成回合ID，重放同一事件得到同一ID
func TurnID(gameID string, number int) string {
	return uuid.NewSHA1(turnNamespace, []byte(fmt.Sprintf("%s:%d", gameID, number))).String()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
