package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/camwood/camwood-site/backend/internal/service/conversation"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// ConversationFactory creates the conversation owned by one connection.
type ConversationFactory func() *conversation.Controller

// WebSocketHandler WebSocket聊天窗口处理器，每个连接拥有一个独立会话
type WebSocketHandler struct {
	factory  ConversationFactory
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(factory ConversationFactory, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		factory: factory,
		logger:  logger.Named("widget"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/assistant/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// socketWriter serializes writes; gorilla connections allow one concurrent writer.
type socketWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketWriter) writeJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *socketWriter) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conv := h.factory()
	defer conv.Dispose()

	writer := &socketWriter{conn: conn}
	h.logger.Debug("new widget connection", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, writer)
	}()
	go func() {
		defer wg.Done()
		h.forwardSnapshots(ctx, writer, conv)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.handleMessage(conv, &msg); err != nil {
			h.sendError(writer, err.Error())
		}
	}
}

var errUnknownType = errors.New("unsupported message type")

// handleMessage 将客户端消息分发给会话控制器
func (h *WebSocketHandler) handleMessage(conv *conversation.Controller, msg *inboundMessage) error {
	switch msg.Type {
	case "open":
		return conv.Open()
	case "close":
		return conv.Close()
	case "draft", "submit":
		var text TextMessage
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &text); err != nil {
				return errors.New("invalid text payload")
			}
		}
		if msg.Type == "draft" {
			return conv.SetDraft(text.Text)
		}
		return conv.Submit(text.Text)
	default:
		return errUnknownType
	}
}

// forwardSnapshots 推送会话状态变化
func (h *WebSocketHandler) forwardSnapshots(ctx context.Context, writer *socketWriter, conv *conversation.Controller) {
	updates, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-updates:
			if !open {
				return
			}
			msg := outgoingMessage{Type: "snapshot", Data: snap, Timestamp: time.Now().Unix()}
			if err := writer.writeJSON(msg); err != nil {
				h.logger.Debug("write snapshot failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendError(writer *socketWriter, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := writer.writeJSON(msg); err != nil {
		h.logger.Debug("write error failed", zap.Error(err))
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, writer *socketWriter) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.ping(); err != nil {
				return
			}
		}
	}
}
