package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/skate-game/internal/config"
	"github.com/wfunc/skate-game/internal/logger"
	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心，按玩家ID推送通知
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 玩家ID到客户端的映射（同一玩家可多端在线）
	playerClients map[string][]*Client
	playerMu      sync.RWMutex

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once

	config *config.WebSocketConfig
	logger *zap.Logger
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"` // 消息类型
	PlayerID  string          `json:"player_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"` // 消息数据
	Timestamp int64           `json:"timestamp"`      // 时间戳
}

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 通知消息
	MessageTypeYourTurn       = "your_turn"
	MessageTypeGameOver       = "game_over"
	MessageTypeBattleComplete = "battle_complete"
)

// NewHub 创建Hub
func NewHub(cfg *config.WebSocketConfig, logger *zap.Logger) *Hub {
	if cfg == nil {
		cfg = defaultConfig()
	}
	return &Hub{
		clients:       make(map[string]*Client),
		playerClients: make(map[string][]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		config:        cfg,
		logger:        logger,
	}
}

func defaultConfig() *config.WebSocketConfig {
	return &config.WebSocketConfig{
		Path:            "/ws",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxMessageSize:  8192,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendBufferSize:  256,
	}
}

// Run 运行Hub，ctx取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.doneOnce.Do(func() { close(h.done) })
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.playerMu.Lock()
	h.playerClients[client.PlayerID] = append(h.playerClients[client.PlayerID], client)
	h.playerMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))

	msg := &Message{
		Type:      MessageTypeConnected,
		PlayerID:  client.PlayerID,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"message":"连接成功"}`),
	}
	h.SendToClient(client.ID, msg)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.playerMu.Lock()
	clients := h.playerClients[client.PlayerID]
	for i, c := range clients {
		if c.ID == client.ID {
			h.playerClients[client.PlayerID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.playerClients[client.PlayerID]) == 0 {
		delete(h.playerClients, client.PlayerID)
	}
	h.playerMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.playerMu.Lock()
	h.playerClients = make(map[string][]*Client)
	h.playerMu.Unlock()
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToPlayer 发送消息给指定玩家的所有客户端
func (h *Hub) SendToPlayer(playerID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.playerMu.RLock()
	clients := append([]*Client(nil), h.playerClients[playerID]...)
	h.playerMu.RUnlock()

	if len(clients) == 0 {
		return ErrPlayerNotConnected
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range clients {
		if _, ok := h.clients[client.ID]; !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("玩家客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("player_id", playerID))
		}
	}
	return nil
}

// Notify 推送游戏/对决通知，玩家不在线时丢弃
func (h *Hub) Notify(playerID string, kind string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("序列化通知失败", zap.Error(err), zap.String("kind", kind))
		return
	}

	msg := &Message{
		Type:      kind,
		PlayerID:  playerID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := h.SendToPlayer(playerID, msg); err != nil {
		h.logger.Debug("通知未送达",
			zap.String("player_id", playerID),
			zap.String("kind", kind),
			zap.Error(err))
		return
	}
	logger.LogWebSocketMessage("send", kind, payload)
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Register 注册客户端（公开方法），Hub已停止时返回false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Path 接入路径
func (h *Hub) Path() string {
	if h.config.Path == "" {
		return "/ws"
	}
	return h.config.Path
}
