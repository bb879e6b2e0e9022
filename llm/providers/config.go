package providers

import "time"

// Config 是 openai 与 anthropic 适配器共用的连接参数，零值字段使用 SDK 默认值
type Config struct {
	APIKey  string
	BaseURL string
	// Model 请求未指定模型时使用
	Model string
	// Organization 仅 OpenAI 使用
	Organization string
	Timeout      time.Duration
	// MaxTokens 请求未指定上限时使用
	MaxTokens int
}
