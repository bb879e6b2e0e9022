package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/types"
)

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String 返回日志与 /health 中使用的状态名
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// Name 一般为 provider 名称
	Name string

	// Threshold 连续失败多少次后打开
	Threshold int

	// Timeout 单次调用超时，超时记为 UPSTREAM_TIMEOUT 失败
	Timeout time.Duration

	// ResetTimeout 打开后多久允许试探
	ResetTimeout time.Duration

	// HalfOpenMaxCalls 半开状态下同时放行的试探请求数
	HalfOpenMaxCalls int

	// OnStateChange 在独立 goroutine 中回调
	OnStateChange func(name string, from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Threshold:        5,
		Timeout:          60 * time.Second,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

var (
	ErrCircuitOpen            = types.NewError(types.ErrProviderUnavailable, "circuit breaker is open")
	ErrTooManyCallsInHalfOpen = types.NewError(types.ErrProviderUnavailable, "circuit breaker is probing, call rejected")
)

// Breaker 保护单个 provider 的上游调用
type Breaker struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// New 创建熔断器，非法的配置项回退为默认值
func New(config *Config, logger *zap.Logger) *Breaker {
	def := DefaultConfig()
	cfg := *def
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}

	return &Breaker{
		config: cfg,
		logger: logger.With(zap.String("component", "circuit_breaker"), zap.String("provider", cfg.Name)),
		now:    time.Now,
	}
}

// Do 经熔断器执行 fn。
// 调用方取消与客户端错误（请求非法、鉴权失败、模型不存在）不计入失败。
func Do[T any](b *Breaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.acquire(); err != nil {
		return zero, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	result, err := fn(callCtx)
	switch {
	case err == nil:
		b.release(true)
		return result, nil
	case ctx.Err() != nil:
		b.release(true)
		return zero, err
	}

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !types.IsErrorCode(err, types.ErrUpstreamTimeout) {
		err = types.WrapError(err, types.ErrUpstreamTimeout,
			fmt.Sprintf("call exceeded %s", b.config.Timeout)).WithRetryable(true)
	}
	b.release(isClientError(err))
	return zero, err
}

func isClientError(err error) bool {
	switch types.CodeOf(err) {
	case types.ErrInvalidRequest, types.ErrAuthentication, types.ErrModelNotFound:
		return true
	}
	return false
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.probes = 1
		b.logger.Info("circuit half-open, probing provider")
	case StateHalfOpen:
		if b.probes >= b.config.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) release(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state == StateHalfOpen {
			b.logger.Info("circuit closed, provider recovered")
			b.transition(StateClosed)
			b.probes = 0
		}
		b.failures = 0
		return
	}

	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.logger.Warn("probe failed, circuit reopened")
		b.trip()
	case b.state == StateClosed && b.failures >= b.config.Threshold:
		b.logger.Warn("circuit opened",
			zap.Int("failures", b.failures),
			zap.Int("threshold", b.config.Threshold))
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.transition(StateOpen)
	b.openedAt = b.now()
	b.probes = 0
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.config.Name, from, to)
	}
}

// State 返回当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
