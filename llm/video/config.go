package video

import "time"

// RunwayConfig 配置了 Runway ML 视频生成提供者.
type RunwayConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // gen4_turbo, veo3
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// WaitFor 是 Generate 等待任务完成的最长时间，超过后返回 Pending。
	// 为 0 时提交后立即返回。
	WaitFor time.Duration `json:"wait_for,omitempty" yaml:"wait_for,omitempty"`
	// PollInterval 轮询间隔
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
}

// DefaultRunwayConfig 返回默认 Runway 配置。
func DefaultRunwayConfig() RunwayConfig {
	return RunwayConfig{
		BaseURL:      "https://api.dev.runwayml.com",
		Model:        "gen4_turbo",
		Timeout:      60 * time.Second,
		WaitFor:      30 * time.Second,
		PollInterval: 5 * time.Second,
	}
}
