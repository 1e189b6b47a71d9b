package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	// 测试基本错误创建
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	// 测试带详情的错误
	err = New(ErrNotFound, "用户不存在")
	suite.NotNil(err)
	suite.Equal(ErrNotFound, err.Code)
	suite.Equal("资源未找到", err.Message)
	suite.Equal("用户不存在", err.Details)

	// 测试多个详情
	err = New(ErrDatabaseConnect, "连接失败", "主机: localhost", "端口: 3306")
	suite.Equal("连接失败; 主机: localhost; 端口: 3306", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidParam, "参数 %s 的值 %d 无效", "age", -1)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("参数 age 的值 -1 无效", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	// 包装标准错误
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	// 包装nil错误
	nilErr := Wrap(nil, ErrUnknown)
	suite.Nil(nilErr)

	// 包装已有的AppError
	appErr := New(ErrNotFound, "资源不存在")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code) // 保留原始错误码
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrNotYourTurn)
	suite.True(Is(err, ErrNotYourTurn))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrNotYourTurn))

	// 测试标准错误
	standardErr := errors.New("标准错误")
	suite.False(Is(standardErr, ErrUnknown))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	// AppError
	appErr := New(ErrTokenExpired)
	suite.Equal(ErrTokenExpired, GetCode(appErr))

	// 标准错误
	standardErr := errors.New("标准错误")
	suite.Equal(ErrUnknown, GetCode(standardErr))

	// nil错误
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	// 只有消息
	err := &AppError{
		Code:    ErrNotFound,
		Message: "资源未找到",
	}
	suite.Equal("[1002] 资源未找到", err.Error())

	// 有详情
	err.Details = "用户ID: 123"
	suite.Equal("[1002] 资源未找到: 用户ID: 123", err.Error())
}

// 测试Unwrap
func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrUnknown)
	suite.Equal(originalErr, wrappedErr.Unwrap())

	// 没有原因的错误
	err := New(ErrUnknown)
	suite.Nil(err.Unwrap())
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrInvalidParticipants, 400},
		{ErrNotFound, 404},
		{ErrGameNotFound, 404},
		{ErrTurnNotFound, 404},
		{ErrBattleNotFound, 404},
		{ErrNotCreator, 403},
		{ErrNotAParticipant, 403},
		{ErrNotDefender, 403},
		{ErrNotYourTurn, 409},
		{ErrWrongPhase, 409},
		{ErrVotingNotActive, 409},
		{ErrTimeout, 408},
		{ErrTokenExpired, 401},
		{ErrTokenInvalid, 401},
		{ErrDatabaseConnect, 503},
		{ErrConcurrentUpdate, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	retryableErrors := []ErrorCode{
		ErrTimeout,
		ErrDatabaseConnect,
		ErrTransaction,
		ErrConcurrentUpdate,
	}

	for _, code := range retryableErrors {
		err := New(code)
		suite.True(IsRetryable(err), "错误码 %d 应该是可重试的", code)
	}

	// 不可重试的错误
	nonRetryableErrors := []ErrorCode{
		ErrInvalidParam,
		ErrNotFound,
		ErrNotYourTurn,
		ErrMessageFormat,
	}

	for _, code := range nonRetryableErrors {
		err := New(code)
		suite.False(IsRetryable(err), "错误码 %d 不应该是可重试的", code)
	}

	// nil错误
	suite.False(IsRetryable(nil))
}

// 测试前置条件与参数校验分类
func (suite *ErrorsTestSuite) TestIsPreconditionAndValidation() {
	preconditions := []ErrorCode{
		ErrGameNotFound,
		ErrNotYourTurn,
		ErrWrongPhase,
		ErrGameNotActive,
		ErrAlreadyCompleted,
		ErrPlayerNotInGame,
		ErrGameFull,
		ErrAlreadyStarted,
		ErrDeadlinePassed,
		ErrNotAParticipant,
		ErrVotingNotActive,
	}
	for _, code := range preconditions {
		suite.True(IsPrecondition(New(code)), "错误码 %d 应该是前置条件错误", code)
		suite.False(IsValidation(New(code)))
	}

	suite.True(IsValidation(New(ErrInvalidParam)))
	suite.True(IsValidation(New(ErrInvalidParticipants)))
	suite.False(IsPrecondition(New(ErrInvalidParticipants)))
	suite.False(IsPrecondition(New(ErrDatabaseQuery)))
	suite.False(IsPrecondition(nil))
}

// 测试从包装链中识别AppError
func (suite *ErrorsTestSuite) TestAsThroughWrapping() {
	appErr := New(ErrWrongPhase)
	wrapped := fmt.Errorf("提交动作: %w", appErr)

	found, ok := As(wrapped)
	suite.True(ok)
	suite.Equal(appErr, found)
	suite.True(Is(wrapped, ErrWrongPhase))
	suite.Equal(ErrWrongPhase, GetCode(wrapped))

	_, ok = As(errors.New("普通错误"))
	suite.False(ok)
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	criticalErrors := []ErrorCode{
		ErrDatabaseConnect,
		ErrDataIntegrity,
	}

	for _, code := range criticalErrors {
		err := New(code)
		suite.True(IsCritical(err), "错误码 %d 应该是严重错误", code)
	}

	// 非严重错误
	nonCriticalErrors := []ErrorCode{
		ErrInvalidParam,
		ErrNotFound,
		ErrTimeout,
		ErrGameFull,
		ErrConcurrentUpdate,
	}

	for _, code := range nonCriticalErrors {
		err := New(code)
		suite.False(IsCritical(err), "错误码 %d 不应该是严重错误", code)
	}

	// nil错误
	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotNil(err.Stack)
	suite.Greater(len(err.Stack), 0)
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrGameNotFound, "game-1")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))

	// 调用栈只留在服务端，不出现在响应体里
	suite.Require().NotEmpty(err.Stack)
	data, marshalErr := json.Marshal(response)
	suite.Require().NoError(marshalErr)
	var body map[string]interface{}
	suite.Require().NoError(json.Unmarshal(data, &body))
	errBody := body["error"].(map[string]interface{})
	suite.NotContains(errBody, "stack")
	suite.Equal(float64(ErrGameNotFound), errBody["code"])
	suite.Equal("game-1", errBody["details"])
	suite.NotContains(string(data), "errors_test.go")
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	// 使用未定义的错误码
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message) // 应该使用默认消息
}

// 测试游戏相关错误
func (suite *ErrorsTestSuite) TestGameErrors() {
	gameErrors := map[ErrorCode]string{
		ErrGameNotFound:     "游戏不存在",
		ErrNotYourTurn:      "还没轮到你",
		ErrWrongPhase:       "当前阶段不允许该操作",
		ErrGameNotActive:    "游戏未在进行中",
		ErrAlreadyCompleted: "游戏已结束",
		ErrPlayerNotInGame:  "玩家不在游戏中",
		ErrGameFull:         "游戏人数已满",
		ErrAlreadyStarted:   "游戏已经开始",
		ErrDeadlinePassed:   "已超过回合截止时间",
		ErrNoResponseVideo:  "尚未提交回应视频",
	}

	for code, expectedMsg := range gameErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

// 测试对战投票相关错误
func (suite *ErrorsTestSuite) TestBattleErrors() {
	battleErrors := map[ErrorCode]string{
		ErrBattleNotFound:      "对战不存在",
		ErrNotAParticipant:     "不是对战参与者",
		ErrVotingNotActive:     "投票未在进行中",
		ErrInvalidParticipants: "无效的对战参与者",
	}

	for code, expectedMsg := range battleErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

// 测试数据库相关错误
func (suite *ErrorsTestSuite) TestDatabaseErrors() {
	dbErrors := map[ErrorCode]string{
		ErrDatabaseConnect:  "数据库连接失败",
		ErrDatabaseQuery:    "数据库查询失败",
		ErrDatabaseInsert:   "数据库插入失败",
		ErrDatabaseUpdate:   "数据库更新失败",
		ErrDatabaseDelete:   "数据库删除失败",
		ErrTransaction:      "事务处理失败",
		ErrDataIntegrity:    "数据完整性错误",
		ErrConcurrentUpdate: "并发更新冲突",
	}

	for code, expectedMsg := range dbErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

// 测试安全相关错误
func (suite *ErrorsTestSuite) TestSecurityErrors() {
	securityErrors := map[ErrorCode]string{
		ErrTokenExpired: "令牌已过期",
		ErrTokenInvalid: "无效的令牌",
	}

	for code, expectedMsg := range securityErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
