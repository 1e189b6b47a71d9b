package logger

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestEntry 一次HTTP请求的日志字段
type RequestEntry struct {
	Method    string
	Path      string
	Status    int
	Latency   time.Duration
	ClientIP  string
	RequestID string
	PlayerID  string
	Errors    string
	Fields    []zap.Field
}

// LogRequest 记录请求日志，级别随状态码：5xx为error，4xx为warn
func LogRequest(log *zap.Logger, e RequestEntry) {
	if log == nil {
		log = GetModuleLogger("http")
	}

	fields := append([]zap.Field{
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.Int("status", e.Status),
		zap.Duration("latency", e.Latency),
		zap.String("client_ip", e.ClientIP),
		zap.String("request_id", e.RequestID),
	}, e.Fields...)
	if e.PlayerID != "" {
		fields = append(fields, zap.String("player_id", e.PlayerID))
	}
	if e.Errors != "" {
		fields = append(fields, zap.String("errors", e.Errors))
	}

	switch {
	case e.Status >= http.StatusInternalServerError:
		log.Error("request", fields...)
	case e.Status >= http.StatusBadRequest:
		log.Warn("request", fields...)
	default:
		log.Info("request", fields...)
	}
}

// LogPanic 记录panic和堆栈
func LogPanic(log *zap.Logger, recovered interface{}, stack []byte, fields ...zap.Field) {
	if log == nil {
		log = GetLogger()
	}
	log.Error("panic recovered", append([]zap.Field{
		zap.Any("panic", recovered),
		zap.ByteString("stack", stack),
	}, fields...)...)
}

// LogGameEvent 记录游戏事件
func LogGameEvent(event string, gameID string, data map[string]interface{}) {
	GetModuleLogger("game").Info("game_event",
		zap.String("event", event),
		zap.String("game_id", gameID),
		zap.Any("data", data),
	)
}

// LogBattleEvent 记录对决投票事件
func LogBattleEvent(event string, battleID string, data map[string]interface{}) {
	GetModuleLogger("battle").Info("battle_event",
		zap.String("event", event),
		zap.String("battle_id", battleID),
		zap.Any("data", data),
	)
}

// LogWebSocketMessage 记录WebSocket消息，direction为send或receive
func LogWebSocketMessage(direction string, messageType string, payload interface{}) {
	GetModuleLogger("websocket").Debug("ws_message",
		zap.String("direction", direction),
		zap.String("type", messageType),
		zap.Any("payload", payload),
	)
}

// LogDatabaseOperation 记录数据库操作，失败时为error
func LogDatabaseOperation(operation string, table string, duration time.Duration, err error) {
	log := GetModuleLogger("database")
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("table", table),
		zap.Duration("duration", duration),
	}
	if err != nil {
		log.Error("database_operation_failed", append(fields, zap.Error(err))...)
		return
	}
	log.Debug("database_operation", fields...)
}
