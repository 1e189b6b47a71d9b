package game

import (
	"encoding/json"
	"fmt"
)

// MarshalState 序列化游戏状态（存入state_data列）
func (s *Session) MarshalState() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("序列化游戏状态失败: %w", err)
	}
	return string(data), nil
}

// UnmarshalSession 反序列化游戏状态
func UnmarshalSession(data string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("反序列化游戏状态失败: %w", err)
	}
	return &s, nil
}
