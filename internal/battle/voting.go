// Package battle 视频对决投票引擎。
//
// 每场对决只有创建者与对手两名参与者，双方互评对方视频：
// clean记为对方得一分，sketch不得分。双方都投票后结算，平局由创建者获胜。
package battle

import (
	"encoding/json"
	"time"

	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/idempotency"
)

// DefaultVoteWindow 未配置投票时长时使用
const DefaultVoteWindow = 24 * time.Hour

// Status 投票状态
type Status string

const (
	StatusVoting    Status = "voting"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired" // 截止时仍未收齐投票
)

// IsTerminal 是否已结算
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// Choice 投票选项
type Choice string

const (
	ChoiceClean  Choice = "clean"
	ChoiceSketch Choice = "sketch"
)

// Valid 是否为合法选项
func (c Choice) Valid() bool {
	return c == ChoiceClean || c == ChoiceSketch
}

// Vote 单个参与者的投票，重投覆盖
type Vote struct {
	Choice  Choice    `json:"vote"`
	VotedAt time.Time `json:"voted_at"`
}

// VoteState 一场对决的投票状态
type VoteState struct {
	BattleID        string          `json:"battle_id"`
	CreatorID       string          `json:"creator_id"`
	OpponentID      string          `json:"opponent_id"`
	Status          Status          `json:"status"`
	Votes           map[string]Vote `json:"votes"`
	VotingStartedAt time.Time       `json:"voting_started_at"`
	VoteDeadlineAt  time.Time       `json:"vote_deadline_at"`
	WinnerID        string          `json:"winner_id,omitempty"`
	FinalScore      map[string]int  `json:"final_score,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`

	ProcessedEventIDs idempotency.Ledger `json:"processed_event_ids"`
}

// NewVoteState 初始化投票，window<=0时使用DefaultVoteWindow
func NewVoteState(battleID, creatorID, opponentID string, now time.Time, window time.Duration) (*VoteState, error) {
	if battleID == "" || creatorID == "" || opponentID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "battle_id、creator_id、opponent_id不能为空")
	}
	if creatorID == opponentID {
		return nil, errors.New(errors.ErrInvalidParticipants, "创建者与对手不能相同")
	}
	if window <= 0 {
		window = DefaultVoteWindow
	}
	return &VoteState{
		BattleID:        battleID,
		CreatorID:       creatorID,
		OpponentID:      opponentID,
		Status:          StatusVoting,
		Votes:           make(map[string]Vote, 2),
		VotingStartedAt: now,
		VoteDeadlineAt:  now.Add(window),
	}, nil
}

// Clone 深拷贝
func (v *VoteState) Clone() *VoteState {
	out := *v
	out.Votes = make(map[string]Vote, len(v.Votes))
	for k, vote := range v.Votes {
		out.Votes[k] = vote
	}
	if v.FinalScore != nil {
		out.FinalScore = make(map[string]int, len(v.FinalScore))
		for k, s := range v.FinalScore {
			out.FinalScore[k] = s
		}
	}
	if v.CompletedAt != nil {
		t := *v.CompletedAt
		out.CompletedAt = &t
	}
	out.ProcessedEventIDs = v.ProcessedEventIDs.Clone()
	return &out
}

// Ledger 事件账本
func (v *VoteState) Ledger() *idempotency.Ledger {
	return &v.ProcessedEventIDs
}

// IsParticipant 是否为参与者
func (v *VoteState) IsParticipant(playerID string) bool {
	return playerID != "" && (playerID == v.CreatorID || playerID == v.OpponentID)
}

// Participants 创建者在前
func (v *VoteState) Participants() []string {
	return []string{v.CreatorID, v.OpponentID}
}

// CastVote 投票或改票；双方都已投票时结算
func (v *VoteState) CastVote(playerID string, choice Choice, now time.Time) error {
	if !choice.Valid() {
		return errors.Newf(errors.ErrInvalidVote, "vote=%s", choice)
	}
	if !v.IsParticipant(playerID) {
		return errors.New(errors.ErrNotAParticipant, playerID)
	}
	if v.Status != StatusVoting {
		return errors.New(errors.ErrVotingNotActive, string(v.Status))
	}
	if !v.VoteDeadlineAt.IsZero() && now.After(v.VoteDeadlineAt) {
		return errors.New(errors.ErrVotingDeadlinePassed)
	}

	if v.Votes == nil {
		v.Votes = make(map[string]Vote, 2)
	}
	v.Votes[playerID] = Vote{Choice: choice, VotedAt: now}

	_, creatorVoted := v.Votes[v.CreatorID]
	_, opponentVoted := v.Votes[v.OpponentID]
	if creatorVoted && opponentVoted {
		v.finish(StatusCompleted, now)
	}
	return nil
}

// ExpireVoting 投票截止后按已有投票结算，状态为expired
func (v *VoteState) ExpireVoting(now time.Time) error {
	if v.Status != StatusVoting {
		return errors.New(errors.ErrVotingNotActive, string(v.Status))
	}
	if !now.After(v.VoteDeadlineAt) {
		return errors.New(errors.ErrDeadlineNotReached)
	}
	v.finish(StatusExpired, now)
	return nil
}

func (v *VoteState) finish(status Status, now time.Time) {
	v.FinalScore = Score(v.CreatorID, v.OpponentID, v.Votes)
	v.WinnerID = CreatorWinsTies(v.CreatorID, v.OpponentID, v.FinalScore)
	v.Status = status
	v.CompletedAt = &now
}

// Score 每位参与者的得分等于对方是否投了clean
func Score(creatorID, opponentID string, votes map[string]Vote) map[string]int {
	score := map[string]int{creatorID: 0, opponentID: 0}
	if votes[opponentID].Choice == ChoiceClean {
		score[creatorID] = 1
	}
	if votes[creatorID].Choice == ChoiceClean {
		score[opponentID] = 1
	}
	return score
}

// TieBreak 根据得分决定胜者
type TieBreak func(creatorID, opponentID string, score map[string]int) string

// CreatorWinsTies 得分严格更高者获胜，平局（包括0比0）判创建者胜
var CreatorWinsTies TieBreak = func(creatorID, opponentID string, score map[string]int) string {
	if score[opponentID] > score[creatorID] {
		return opponentID
	}
	return creatorID
}

// MarshalState 序列化为存储格式
func (v *VoteState) MarshalState() (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrDataIntegrity, "序列化投票状态失败")
	}
	return string(data), nil
}

// UnmarshalVoteState 从存储格式恢复
func UnmarshalVoteState(data string) (*VoteState, error) {
	var v VoteState
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "解析投票状态失败")
	}
	if v.Votes == nil {
		v.Votes = make(map[string]Vote, 2)
	}
	return &v, nil
}
