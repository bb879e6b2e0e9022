package gateway

import (
	"time"

	"github.com/BaSui01/agentforum/llm/circuitbreaker"
	"github.com/BaSui01/agentforum/llm/retry"
)

// Config 网关配置
type Config struct {
	// DefaultProvider 处理不带 "provider/" 前缀的模型引用
	DefaultProvider string
	// Timeout 单次上游调用超时（含熔断器计时）
	Timeout time.Duration
	// MaxTokens 单次回复的最大输出 token 数，0 表示由 Provider 决定
	MaxTokens int
	// MaxHistoryTokens 发送给模型的历史预算，0 表示不裁剪
	MaxHistoryTokens int
	// RateLimitRPS 网关整体每秒请求数，0 表示不限流
	RateLimitRPS   float64
	RateLimitBurst int
	// Retry 网络类错误的重试策略
	Retry *retry.RetryPolicy
	// Breaker 每个 Provider 独立的熔断器配置模板
	Breaker *circuitbreaker.Config
}

// DefaultConfig 返回默认网关配置
func DefaultConfig() Config {
	return Config{
		DefaultProvider:  "openai",
		Timeout:          60 * time.Second,
		MaxHistoryTokens: 12000,
		RateLimitRPS:     5,
		RateLimitBurst:   5,
		Retry: &retry.RetryPolicy{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		Breaker: circuitbreaker.DefaultConfig(),
	}
}
