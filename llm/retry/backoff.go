package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/types"
)

// RetryPolicy 定义重试策略配置
type RetryPolicy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟；0 表示立即重试
	MaxDelay     time.Duration // 最大延迟时间
	Multiplier   float64       // 指数退避倍数
	Jitter       bool          // 是否添加 ±25% 随机抖动
	// RetryableErrors 按 errors.Is 匹配；*types.Error 按错误码匹配。
	// 与 Classifier 同时为空时所有错误均可重试。
	RetryableErrors []error
	// Classifier 在 RetryableErrors 未命中时作为补充判定
	Classifier func(err error) bool
	OnRetry    func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy 返回默认的重试策略，适用于网关的网络与限流错误
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		Classifier:   types.IsRetryable,
	}
}

// ImmediateRetryPolicy 返回立即重试 n 次、仅针对给定错误码的策略
func ImmediateRetryPolicy(n int, codes ...types.ErrorCode) *RetryPolicy {
	errs := make([]error, 0, len(codes))
	for _, c := range codes {
		errs = append(errs, types.NewError(c, ""))
	}
	return &RetryPolicy{
		MaxRetries:      n,
		Multiplier:      1.0,
		RetryableErrors: errs,
		Classifier:      func(error) bool { return false },
	}
}

// Retryer 按 RetryPolicy 执行指数退避重试
type Retryer struct {
	policy RetryPolicy
	logger *zap.Logger
}

// New 创建重试器，nil 策略使用 DefaultRetryPolicy
func New(policy *RetryPolicy, logger *zap.Logger) *Retryer {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := *policy
	p.MaxRetries = max(p.MaxRetries, 0)
	p.InitialDelay = max(p.InitialDelay, 0)
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	return &Retryer{policy: p, logger: logger.With(zap.String("component", "retry"))}
}

// Do 执行 fn，失败且可重试时按策略重试。
// 重试耗尽返回 *ExhaustedError；不可重试的错误原样返回。
func Do[T any](r *Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}
			if err := sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("retry cancelled: %w", err)
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !r.retryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, &ExhaustedError{Attempts: r.policy.MaxRetries + 1, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// delay 计算第 attempt 次重试前的等待：initial * multiplier^(attempt-1)，受 MaxDelay 限制
func (r *Retryer) delay(attempt int) time.Duration {
	if r.policy.InitialDelay == 0 {
		return 0
	}
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.policy.MaxDelay))
	if r.policy.Jitter {
		d += (rand.Float64()*2 - 1) * d * 0.25
	}
	return time.Duration(math.Max(d, float64(r.policy.InitialDelay)))
}

func (r *Retryer) retryable(err error) bool {
	if len(r.policy.RetryableErrors) == 0 && r.policy.Classifier == nil {
		return true
	}
	for _, target := range r.policy.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return r.policy.Classifier != nil && r.policy.Classifier(err)
}

// ExhaustedError 在重试次数耗尽后返回，包装最后一次的错误
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Attempts 返回 err 对应的调用次数；未经过重试耗尽的错误返回 0
func Attempts(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 0
}
