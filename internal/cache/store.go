package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publish 向频道发布一条消息，返回收到的订阅者数量
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	var n int64
	err := c.use(func(rdb *redis.Client) error {
		var err error
		n, err = rdb.Publish(ctx, channel, payload).Result()
		return err
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		return 0, fmt.Errorf("publish to %s: %w", channel, err)
	}
	return n, err
}

// Subscribe 订阅频道，调用方负责关闭返回的 PubSub
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}

// Put 以 JSON 写入键；ttl 为 0 时使用默认 TTL
func (c *Client) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	err = c.use(func(rdb *redis.Client) error {
		return rdb.Set(ctx, key, data, ttl).Err()
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return err
}

// Get 读取 JSON 键到 dest，不存在时返回 ErrCacheMiss
func (c *Client) Get(ctx context.Context, key string, dest any) error {
	var data []byte
	err := c.use(func(rdb *redis.Client) error {
		var err error
		data, err = rdb.Get(ctx, key).Bytes()
		return err
	})
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case errors.Is(err, ErrClosed):
		return err
	case err != nil:
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
