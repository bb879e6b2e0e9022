package search

import (
	"context"
	"time"
)

// Provider 定义网页搜索后端接口。
// 实现可以包装 Tavily、SerpAPI、SearXNG、Jina 等服务。
type Provider interface {
	// Search 执行搜索并返回结果
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
	// Name 返回提供者名称
	Name() string
}

// Options 配置一次搜索请求。
type Options struct {
	MaxResults     int      `json:"max_results"`               // 最大结果数 (默认: 5)
	Language       string   `json:"language,omitempty"`        // 语言代码 (如 "en", "zh")
	Region         string   `json:"region,omitempty"`          // 地区代码 (如 "us", "cn")
	SafeSearch     bool     `json:"safe_search,omitempty"`     // 安全搜索
	TimeRange      string   `json:"time_range,omitempty"`      // day, week, month, year
	Domains        []string `json:"domains,omitempty"`         // 限定域名
	ExcludeDomains []string `json:"exclude_domains,omitempty"` // 排除域名
}

// DefaultOptions 返回默认搜索选项。
func DefaultOptions() Options {
	return Options{
		MaxResults: 5,
		Language:   "en",
		SafeSearch: true,
	}
}

// Result 是单条搜索结果。
type Result struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Snippet     string  `json:"snippet"`
	Content     string  `json:"content,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// HTTPConfig 配置通用 JSON 搜索端点。
type HTTPConfig struct {
	Endpoint string        `json:"endpoint" yaml:"endpoint"`
	APIKey   string        `json:"api_key" yaml:"api_key"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Defaults Options       `json:"defaults" yaml:"defaults"`
}

// DefaultHTTPConfig 返回默认配置。
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:  15 * time.Second,
		Defaults: DefaultOptions(),
	}
}
