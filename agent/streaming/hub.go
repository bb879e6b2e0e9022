package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
)

// HubConfig 配置 WebSocket 广播中心
type HubConfig struct {
	// ClientBuffer 每个客户端的待发送队列长度，满时断开该客户端
	ClientBuffer int
	// WriteTimeout 单条消息写超时
	WriteTimeout time.Duration
	// OriginPatterns 允许的跨域来源，为空时仅允许同源
	OriginPatterns []string
}

// DefaultHubConfig 返回默认配置
func DefaultHubConfig() HubConfig {
	return HubConfig{
		ClientBuffer: 64,
		WriteTimeout: 5 * time.Second,
	}
}

// Hub 把对话事件以 JSON 文本帧广播给所有 WebSocket 客户端。
// 客户端只接收，发来的数据被忽略。
type Hub struct {
	cfg    HubConfig
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

var _ Sink = (*Hub)(nil)

// NewHub 创建广播中心
func NewHub(cfg HubConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultHubConfig()
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "ws_hub")),
		clients: make(map[*client]struct{}),
	}
}

// client 是一个已连接的 WebSocket 订阅者。写操作只在 writeLoop 中进行，
// 因为 WebSocket 不支持并发写。
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// enqueue 非阻塞入队，队列已满时关闭 send 并返回 false
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeHTTP 升级连接并持续推送事件，直到客户端断开或被判定为慢消费者。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.cfg.ClientBuffer)}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	h.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))
	ctx := conn.CloseRead(r.Context())
	h.writeLoop(ctx, c)
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			_ = c.conn.Close(websocket.StatusNormalClosure, "")
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusGoingAway, "stream closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.shutdown()
}

// Handle 实现 Sink，向所有客户端广播事件
func (h *Hub) Handle(_ context.Context, ev conversation.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.enqueue(data) {
			h.logger.Warn("dropping slow websocket client", zap.String("event", string(ev.Type)))
		}
	}
	return nil
}

// Clients 返回当前连接数
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开所有客户端，之后的连接请求被拒绝
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.shutdown()
	}
}
