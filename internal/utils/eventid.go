package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// eventNamespace 派生事件ID的命名空间
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("skate-game/event"))

// DeriveEventID 由动作、操作者、目标和序号确定性生成事件ID，
// 供服务端自身发起的事件（如超时扫描）使用。
func DeriveEventID(action, actor, target string, seq int) string {
	name := fmt.Sprintf("%s|%s|%s|%d", action, actor, target, seq)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// gameNamespace 派生游戏ID的命名空间
var gameNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("skate-game/game"))

// DeriveGameID 由创建事件ID派生游戏ID，创建请求重放时落到同一局游戏
func DeriveGameID(eventID string) string {
	return uuid.NewSHA1(gameNamespace, []byte(eventID)).String()
}
