package service

import (
	"context"

	"github.com/wfunc/skate-game/internal/battle"
	"github.com/wfunc/skate-game/internal/game"
)

// GameService 游戏服务接口
type GameService interface {
	// 创建与加入
	CreateGame(ctx context.Context, req *CreateGameRequest) (*Result[*GameOutcome], error)
	JoinGame(ctx context.Context, req *JoinGameRequest) (*Result[*GameOutcome], error)
	StartGame(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error)

	// 回合
	SubmitTrick(ctx context.Context, req *SubmitTrickRequest) (*Result[*GameOutcome], error)
	Pass(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error)
	JudgeTurn(ctx context.Context, req *JudgeTurnRequest) (*Result[*GameOutcome], error)
	AttachVideo(ctx context.Context, req *AttachVideoRequest) (*Result[*GameOutcome], error)

	// 连接与结束
	Disconnect(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error)
	Reconnect(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error)
	Forfeit(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error)
	TimeoutTurn(ctx context.Context, gameID, eventID string) (*Result[*GameOutcome], error)

	// 管理
	OverturnTurn(ctx context.Context, cmd *GameCommand) (*Result[*GameOutcome], error)
	DeleteGame(ctx context.Context, gameID string) error

	// 查询
	GetGame(ctx context.Context, gameID string) (*game.Session, error)
	ListTurns(ctx context.Context, gameID string) ([]*game.Turn, error)
}

// BattleService 对决投票服务接口
type BattleService interface {
	InitializeVoting(ctx context.Context, req *InitializeVotingRequest) (*Result[*battle.VoteState], error)
	CastVote(ctx context.Context, req *CastVoteRequest) (*Result[*battle.VoteState], error)
	ExpireVoting(ctx context.Context, battleID, eventID string) (*Result[*battle.VoteState], error)
	GetBattle(ctx context.Context, battleID string) (*battle.VoteState, error)
	DeleteBattle(ctx context.Context, battleID string) error
}

// GameOutcome 游戏命令结果：提交后的状态以及本次产生或变更的回合
type GameOutcome struct {
	Game *game.Session `json:"game"`
	Turn *game.Turn    `json:"turn,omitempty"`
}

// CreateGameRequest 创建游戏请求
type CreateGameRequest struct {
	GameID     string `json:"game_id"` // 为空时由event_id派生
	SpotID     string `json:"spot_id" binding:"required"`
	MaxPlayers int    `json:"max_players"`
	EventID    string `json:"event_id"`
	CreatorID  string `json:"-"` // 由handler根据令牌设置
}

// JoinGameRequest 加入游戏请求
type JoinGameRequest struct {
	Start    bool   `json:"start"`
	EventID  string `json:"event_id"`
	GameID   string `json:"-"`
	PlayerID string `json:"-"`
}

// SubmitTrickRequest 提交动作请求
type SubmitTrickRequest struct {
	Trick    string `json:"trick"`
	VideoURL string `json:"video_url"`
	EventID  string `json:"event_id"`
	GameID   string `json:"-"`
	PlayerID string `json:"-"`
}

// JudgeTurnRequest 判定请求
type JudgeTurnRequest struct {
	Result  game.TurnResult `json:"result" binding:"required"`
	EventID string          `json:"event_id"`
	GameID  string          `json:"-"`
	TurnID  string          `json:"-"`
	JudgeID string          `json:"-"`
}

// AttachVideoRequest 补交视频请求
type AttachVideoRequest struct {
	VideoURL string `json:"video_url" binding:"required"`
	EventID  string `json:"event_id"`
	GameID   string `json:"-"`
	TurnID   string `json:"-"`
	PlayerID string `json:"-"`
}

// GameCommand 通用游戏命令（开始、放弃、掉线、重连、认输、推翻）
type GameCommand struct {
	Reason   string `json:"reason"`
	EventID  string `json:"event_id"`
	GameID   string `json:"-"`
	PlayerID string `json:"-"`
	TurnID   string `json:"-"`
}

// InitializeVotingRequest 初始化投票请求
type InitializeVotingRequest struct {
	CreatorID  string `json:"creator_id" binding:"required"`
	OpponentID string `json:"opponent_id" binding:"required"`
	EventID    string `json:"event_id"`
	BattleID   string `json:"-"`
}

// CastVoteRequest 投票请求
type CastVoteRequest struct {
	Vote     battle.Choice `json:"vote" binding:"required"`
	EventID  string        `json:"event_id"`
	BattleID string        `json:"-"`
	PlayerID string        `json:"-"`
}
