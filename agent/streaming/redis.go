package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/internal/cache"
)

// DefaultChannel 是事件发布的默认 Redis 频道
const DefaultChannel = "agentforum:events"

// StatusKey 返回保存对话最新生命周期状态的键
func StatusKey(conversationID string) string {
	return "agentforum:conversation:" + conversationID + ":status"
}

// StatusRecord 是写入 StatusKey 的内容
type StatusRecord struct {
	Type      conversation.EventType `json:"type"`
	Reason    string                 `json:"reason,omitempty"`
	Round     int                    `json:"round"`
	Timestamp time.Time              `json:"timestamp"`
}

// RedisPublisher 把事件 JSON 发布到 Redis 频道，
// 并在生命周期事件时更新对话状态键。
type RedisPublisher struct {
	cache     *cache.Client
	channel   string
	statusTTL time.Duration
	logger    *zap.Logger
}

var _ Sink = (*RedisPublisher)(nil)

// NewRedisPublisher 创建发布器，channel 为空时使用 DefaultChannel
func NewRedisPublisher(m *cache.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		cache:     m,
		channel:   channel,
		statusTTL: 24 * time.Hour,
		logger:    logger.With(zap.String("component", "redis_publisher")),
	}
}

// Handle 实现 Sink
func (p *RedisPublisher) Handle(ctx context.Context, ev conversation.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	n, err := p.cache.Publish(ctx, p.channel, data)
	if err != nil {
		return err
	}
	p.logger.Debug("event published",
		zap.String("event", string(ev.Type)),
		zap.Int64("receivers", n))

	switch ev.Type {
	case conversation.EventConversationStarted,
		conversation.EventConversationCompleted,
		conversation.EventConversationAborted:
		rec := StatusRecord{Type: ev.Type, Reason: ev.Reason, Round: ev.Round, Timestamp: ev.Timestamp}
		if err := p.cache.Put(ctx, StatusKey(ev.ConversationID), rec, p.statusTTL); err != nil {
			return err
		}
	}
	return nil
}

// LastStatus 读取对话最近一次发布的生命周期状态，尚未发布时返回 nil
func LastStatus(ctx context.Context, m *cache.Client, conversationID string) (*StatusRecord, error) {
	var rec StatusRecord
	if err := m.Get(ctx, StatusKey(conversationID), &rec); err != nil {
		if cache.IsCacheMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
