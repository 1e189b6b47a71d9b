package service

import (
	"github.com/wfunc/skate-game/internal/errors"
)

// Result 一次命令的处理结果。
// 前置条件或参数不满足时Success为false并携带Error；存储失败不会出现在这里，
// 而是作为Go error返回给调用方重试。
type Result[T any] struct {
	Success            bool             `json:"success"`
	Error              *errors.AppError `json:"error,omitempty"`
	AlreadyProcessed   bool             `json:"already_processed,omitempty"`
	AlreadyInitialized bool             `json:"already_initialized,omitempty"`
	Value              T                `json:"value"`
}

func succeed[T any](value T) *Result[T] {
	return &Result[T]{Success: true, Value: value}
}

func reject[T any](err *errors.AppError) *Result[T] {
	return &Result[T]{Success: false, Error: err}
}

// isRejection 是否为应返回给调用方的业务拒绝（而非存储故障）
func isRejection(err error) (*errors.AppError, bool) {
	if !errors.IsPrecondition(err) && !errors.IsValidation(err) {
		return nil, false
	}
	appErr, ok := errors.As(err)
	return appErr, ok
}

// Notifier 提交成功后的通知出口
type Notifier interface {
	Notify(playerID string, kind string, payload map[string]interface{})
}

// NopNotifier 丢弃所有通知
type NopNotifier struct{}

// Notify 实现Notifier
func (NopNotifier) Notify(string, string, map[string]interface{}) {}

// KindBattleComplete 对决投票结束通知
const KindBattleComplete = "battle_complete"
