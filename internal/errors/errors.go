package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown      ErrorCode = 1000
	ErrInvalidParam ErrorCode = 1001
	ErrNotFound     ErrorCode = 1002
	ErrTimeout      ErrorCode = 1005

	// 游戏错误 (2000-2999)
	ErrGameNotFound       ErrorCode = 2000
	ErrNotYourTurn        ErrorCode = 2001
	ErrWrongPhase         ErrorCode = 2002
	ErrGameNotActive      ErrorCode = 2003
	ErrAlreadyCompleted   ErrorCode = 2004
	ErrPlayerNotInGame    ErrorCode = 2005
	ErrGameFull           ErrorCode = 2006
	ErrAlreadyStarted     ErrorCode = 2007
	ErrDeadlinePassed     ErrorCode = 2008
	ErrNoEligiblePlayer   ErrorCode = 2009
	ErrAlreadyJoined      ErrorCode = 2010
	ErrNotEnoughPlayers   ErrorCode = 2011
	ErrNotCreator         ErrorCode = 2012
	ErrTurnNotFound       ErrorCode = 2013
	ErrTurnAlreadyJudged  ErrorCode = 2014
	ErrNoResponseVideo    ErrorCode = 2015
	ErrNotDefender        ErrorCode = 2016
	ErrNotTurnOwner       ErrorCode = 2017
	ErrTurnNotJudged      ErrorCode = 2018
	ErrDeadlineNotReached ErrorCode = 2019

	// 对战投票错误 (3000-3999)
	ErrBattleNotFound       ErrorCode = 3000
	ErrNotAParticipant      ErrorCode = 3001
	ErrVotingNotActive      ErrorCode = 3002
	ErrInvalidParticipants  ErrorCode = 3003
	ErrInvalidVote          ErrorCode = 3004
	ErrVotingDeadlinePassed ErrorCode = 3005

	// 通信错误 (4000-4999)
	ErrMessageFormat ErrorCode = 4007

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect  ErrorCode = 5000
	ErrDatabaseQuery    ErrorCode = 5001
	ErrDatabaseInsert   ErrorCode = 5002
	ErrDatabaseUpdate   ErrorCode = 5003
	ErrDatabaseDelete   ErrorCode = 5004
	ErrTransaction      ErrorCode = 5005
	ErrDataIntegrity    ErrorCode = 5006
	ErrConcurrentUpdate ErrorCode = 5007

	// 安全错误 (7000-7999)
	ErrTokenExpired ErrorCode = 7002
	ErrTokenInvalid ErrorCode = 7003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	// 通用错误
	ErrUnknown:      "未知错误",
	ErrInvalidParam: "无效的参数",
	ErrNotFound:     "资源未找到",
	ErrTimeout:      "操作超时",

	// 游戏错误
	ErrGameNotFound:       "游戏不存在",
	ErrNotYourTurn:        "还没轮到你",
	ErrWrongPhase:         "当前阶段不允许该操作",
	ErrGameNotActive:      "游戏未在进行中",
	ErrAlreadyCompleted:   "游戏已结束",
	ErrPlayerNotInGame:    "玩家不在游戏中",
	ErrGameFull:           "游戏人数已满",
	ErrAlreadyStarted:     "游戏已经开始",
	ErrDeadlinePassed:     "已超过回合截止时间",
	ErrNoEligiblePlayer:   "没有可轮转的玩家",
	ErrAlreadyJoined:      "玩家已在游戏中",
	ErrNotEnoughPlayers:   "玩家人数不足",
	ErrNotCreator:         "只有创建者可以执行该操作",
	ErrTurnNotFound:       "回合不存在",
	ErrTurnAlreadyJudged:  "回合已判定",
	ErrNoResponseVideo:    "尚未提交回应视频",
	ErrNotDefender:        "只有防守方可以判定",
	ErrNotTurnOwner:       "不是该回合的玩家",
	ErrTurnNotJudged:      "回合尚未判定",
	ErrDeadlineNotReached: "回合尚未超时",

	// 对战投票错误
	ErrBattleNotFound:       "对战不存在",
	ErrNotAParticipant:      "不是对战参与者",
	ErrVotingNotActive:      "投票未在进行中",
	ErrInvalidParticipants:  "无效的对战参与者",
	ErrInvalidVote:          "无效的投票",
	ErrVotingDeadlinePassed: "已超过投票截止时间",

	// 通信错误
	ErrMessageFormat: "消息格式错误",

	// 数据库错误
	ErrDatabaseConnect:  "数据库连接失败",
	ErrDatabaseQuery:    "数据库查询失败",
	ErrDatabaseInsert:   "数据库插入失败",
	ErrDatabaseUpdate:   "数据库更新失败",
	ErrDatabaseDelete:   "数据库删除失败",
	ErrTransaction:      "事务处理失败",
	ErrDataIntegrity:    "数据完整性错误",
	ErrConcurrentUpdate: "并发更新冲突",

	// 安全错误
	ErrTokenExpired: "令牌已过期",
	ErrTokenInvalid: "无效的令牌",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`    // 错误码
	Message string       `json:"message"` // 错误消息
	Details string       `json:"details"` // 详细信息
	Cause   error        `json:"-"`       // 原始错误
	Stack   []StackFrame `json:"-"`       // 调用栈，只用于日志
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	// 捕获调用栈
	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := As(err); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// As 从错误链中提取AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := As(err); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/skate-game/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound, e.Code == ErrGameNotFound,
		e.Code == ErrBattleNotFound, e.Code == ErrTurnNotFound:
		return 404 // Not Found
	case e.Code == ErrInvalidParam,
		e.Code == ErrInvalidParticipants, e.Code == ErrInvalidVote:
		return 400 // Bad Request
	case e.Code == ErrNotCreator, e.Code == ErrNotAParticipant,
		e.Code == ErrPlayerNotInGame, e.Code == ErrNotDefender,
		e.Code == ErrNotTurnOwner:
		return 403 // Forbidden
	case e.Code == ErrTimeout:
		return 408 // Request Timeout
	case e.Code >= 2000 && e.Code <= 3999:
		return 409 // Conflict
	case e.Code == ErrTokenExpired, e.Code == ErrTokenInvalid:
		return 401 // Unauthorized
	case e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	switch code {
	case ErrTimeout,
		ErrDatabaseConnect,
		ErrTransaction,
		ErrConcurrentUpdate:
		return true
	default:
		return false
	}
}

// IsPrecondition 判断是否为前置条件错误（游戏/对战状态不满足）
func IsPrecondition(err error) bool {
	code := GetCode(err)
	return code >= 2000 && code <= 3999 &&
		code != ErrInvalidParticipants && code != ErrInvalidVote
}

// IsValidation 判断是否为参数校验错误
func IsValidation(err error) bool {
	code := GetCode(err)
	return code == ErrInvalidParam || code == ErrInvalidParticipants || code == ErrInvalidVote
}

// IsCritical 判断是否为严重错误（存储不可用或数据损坏，继续处理同批请求没有意义）
func IsCritical(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	switch code {
	case ErrDatabaseConnect,
		ErrDataIntegrity:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
