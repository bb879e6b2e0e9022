// =============================================================================
// 📦 AgentForum 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/agentforum/agent/conversation"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Conversation: DefaultConversationConfig(),
		Models:       DefaultModelsConfig(),
		LLM:          DefaultLLMConfig(),
		Media:        DefaultMediaConfig(),
		Database:     DefaultDatabaseConfig(),
		Redis:        DefaultRedisConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultConversationConfig 返回默认对话配置
func DefaultConversationConfig() ConversationConfig {
	s := conversation.DefaultSettings()
	return ConversationConfig{
		Mode:               string(s.Mode),
		MaxTurns:           s.MaxTurns,
		NumParticipants:    3,
		MaxParticipants:    s.MaxParticipants,
		InviteTier:         string(s.InviteTier),
		Scenario:           "Philosophy Debate",
		ScenarioSource:     "yaml",
		ScenarioFile:       "scenarios.yaml",
		DefaultTemperature: s.DefaultTemperature,
	}
}

// DefaultModelsConfig 返回默认模型配置
func DefaultModelsConfig() ModelsConfig {
	return ModelsConfig{
		Default: "openai/gpt-4o-mini",
		Catalog: []CatalogEntry{
			{Ref: "openai/gpt-4o-mini", Tier: "free"},
			{Ref: "anthropic/claude-3-5-haiku-latest", Tier: "free"},
			{Ref: "openai/gpt-4o", Tier: "paid"},
			{Ref: "anthropic/claude-sonnet-4-20250514", Tier: "paid"},
		},
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider:  "openai",
		Timeout:          60 * time.Second,
		MaxTokens:        1024,
		MaxRetries:       2,
		MaxHistoryTokens: 12000,
		RateLimitRPS:     5,
		RateLimitBurst:   5,
	}
}

// DefaultMediaConfig 返回默认媒体配置
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		ImageBaseURL:  "https://api.openai.com",
		ImageModel:    "dall-e-3",
		VideoBaseURL:  "https://api.dev.runwayml.com",
		VideoModel:    "gen4_turbo",
		VideoWaitFor:  30 * time.Second,
		SearchResults: 5,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "agentforum",
		Password:        "",
		Name:            "agentforum",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		Channel:      "agentforum:events",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentforum",
		SampleRate:   0.1,
		Insecure:     true,
	}
}
