package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/middleware"
	"github.com/wfunc/skate-game/internal/service"
)

// HeaderIdempotencyKey 客户端幂等键
const HeaderIdempotencyKey = "Idempotency-Key"

// Response 成功响应
type Response struct {
	Success            bool        `json:"success"`
	AlreadyProcessed   bool        `json:"already_processed,omitempty"`
	AlreadyInitialized bool        `json:"already_initialized,omitempty"`
	Data               interface{} `json:"data,omitempty"`
	RequestID          string      `json:"request_id,omitempty"`
}

// respondResult 输出命令结果：业务拒绝按错误码映射状态码，存储故障按Go error处理
func respondResult[T any](c *gin.Context, res *service.Result[T], err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.Success {
		c.JSON(res.Error.HTTPStatus(), errors.NewErrorResponse(res.Error, middleware.GetRequestID(c)))
		return
	}
	c.JSON(http.StatusOK, Response{
		Success:            true,
		AlreadyProcessed:   res.AlreadyProcessed,
		AlreadyInitialized: res.AlreadyInitialized,
		Data:               res.Value,
		RequestID:          middleware.GetRequestID(c),
	})
}

// respondData 输出查询结果
func respondData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetRequestID(c),
	})
}

// respondError 输出错误
func respondError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	c.Error(err)
	c.JSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, middleware.GetRequestID(c)))
}

// badRequest 请求参数错误
func badRequest(c *gin.Context, err error) {
	respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
}

// bindOptional 请求体可为空时绑定JSON
func bindOptional(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}

// requireEventID 按Idempotency-Key头、请求体event_id的顺序取事件ID。
// 两者都没有时回写400；服务端派生的ID在提交后会变化，无法保证重试幂等。
func requireEventID(c *gin.Context, bodyID string) (string, bool) {
	if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
		return key, true
	}
	if bodyID != "" {
		return bodyID, true
	}
	respondError(c, errors.New(errors.ErrInvalidParam, "缺少"+HeaderIdempotencyKey))
	return "", false
}
