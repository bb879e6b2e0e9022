package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/config"
	"github.com/BaSui01/agentforum/internal/tlsutil"
)

const dialTimeout = 5 * time.Second

var (
	// ErrClosed Client 已关闭
	ErrClosed = errors.New("redis client is closed")
	// ErrCacheMiss 键不存在
	ErrCacheMiss = errors.New("cache miss")
)

// IsCacheMiss 判断是否为键不存在
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Client 持有事件发布与状态键使用的 Redis 连接
type Client struct {
	rdb        *redis.Client
	addr       string
	defaultTTL time.Duration
	interval   time.Duration
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
}

// Option 配置 Client
type Option func(*Client)

// WithDefaultTTL Put 未指定 TTL 时使用的过期时间
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Client) { c.defaultTTL = ttl }
}

// WithHealthCheck 后台 Ping 间隔，0 关闭
func WithHealthCheck(interval time.Duration) Option {
	return func(c *Client) { c.interval = interval }
}

// Dial 连接 Redis 并在 5 秒内完成一次 PING
func Dial(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ro := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLSEnabled {
		host, _, _ := net.SplitHostPort(cfg.Addr)
		ro.TLSConfig = tlsutil.ClientConfig(host)
	}
	rdb := redis.NewClient(ro)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("dial redis %s: %w", cfg.Addr, err)
	}

	c := &Client{
		rdb:        rdb,
		addr:       cfg.Addr,
		defaultTTL: 24 * time.Hour,
		interval:   30 * time.Second,
		logger:     logger.With(zap.String("component", "redis")),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.interval > 0 {
		go c.watch()
	}

	c.logger.Info("redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls", cfg.TLSEnabled))
	return c, nil
}

// use 在读锁内执行 fn，已关闭时返回 ErrClosed
func (c *Client) use(fn func(rdb *redis.Client) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return fn(c.rdb)
}

// Ping 检查连接
func (c *Client) Ping(ctx context.Context) error {
	return c.use(func(rdb *redis.Client) error {
		return rdb.Ping(ctx).Err()
	})
}

// Close 停止后台探活并关闭连接，可重复调用
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)
	c.logger.Debug("redis connection closing", zap.String("addr", c.addr))
	return c.rdb.Close()
}

func (c *Client) watch() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
			err := c.Ping(ctx)
			cancel()
			if err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Warn("redis ping failed", zap.Error(err))
			}
		}
	}
}
