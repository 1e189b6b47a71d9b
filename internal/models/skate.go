package models

import (
	"time"
)

// SkateGame 游戏状态表，完整状态以JSON存在StateData，常用查询字段冗余成列
type SkateGame struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	SpotID         string     `gorm:"size:64;index" json:"spot_id"`
	CreatorID      string     `gorm:"size:64;index;not null" json:"creator_id"`
	Status         string     `gorm:"size:20;index;not null" json:"status"` // waiting, active, paused, completed, forfeited
	MaxPlayers     int        `gorm:"not null" json:"max_players"`
	PlayerCount    int        `gorm:"default:0" json:"player_count"`
	WinnerID       string     `gorm:"size:64" json:"winner_id"`
	TurnDeadlineAt *time.Time `gorm:"index" json:"turn_deadline_at,omitempty"`
	StateData      string     `gorm:"type:text;not null" json:"state_data"`
	Version        int64      `gorm:"not null;default:0" json:"version"` // 乐观锁
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (SkateGame) TableName() string {
	return "skate_games"
}

// GameTurn 回合记录表（只追加）
type GameTurn struct {
	ID               string     `gorm:"primaryKey;size:64" json:"id"`
	GameID           string     `gorm:"size:64;not null;uniqueIndex:idx_game_turn_number" json:"game_id"`
	TurnNumber       int        `gorm:"not null;uniqueIndex:idx_game_turn_number" json:"turn_number"`
	PlayerID         string     `gorm:"size:64;index;not null" json:"player_id"`
	TurnType         string     `gorm:"size:16;not null" json:"turn_type"` // set, response
	TrickDescription string     `gorm:"size:255" json:"trick_description"`
	VideoURL         string     `gorm:"size:512" json:"video_url"`
	Result           string     `gorm:"size:16;not null" json:"result"` // pending, landed, missed
	JudgedBy         string     `gorm:"size:64" json:"judged_by"`
	JudgedAt         *time.Time `json:"judged_at,omitempty"`
	Overturned       bool       `gorm:"default:false" json:"overturned"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (GameTurn) TableName() string {
	return "game_turns"
}

// BattleVote 对决投票状态表
type BattleVote struct {
	BattleID       string    `gorm:"primaryKey;size:64" json:"battle_id"`
	CreatorID      string    `gorm:"size:64;index;not null" json:"creator_id"`
	OpponentID     string    `gorm:"size:64;index;not null" json:"opponent_id"`
	Status         string    `gorm:"size:20;index;not null" json:"status"` // voting, completed, expired
	VoteDeadlineAt time.Time `gorm:"index" json:"vote_deadline_at"`
	WinnerID       string    `gorm:"size:64" json:"winner_id"`
	StateData      string    `gorm:"type:text;not null" json:"state_data"`
	Version        int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (BattleVote) TableName() string {
	return "battle_votes"
}

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&SkateGame{},
		&GameTurn{},
		&BattleVote{},
	}
}
