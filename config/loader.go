// =============================================================================
// 📦 AgentForum 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentforum.yaml").
//	    WithEnvPrefix("AGENTFORUM").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/agentforum/agent/conversation"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 AgentForum 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Conversation 对话设置
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`

	// Models 模型目录与席位
	Models ModelsConfig `yaml:"models" env:"MODELS"`

	// LLM 文本模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Media 图片、视频与搜索
	Media MediaConfig `yaml:"media" env:"MEDIA"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 事件发布配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Auth 控制接口鉴权
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个 IP 的限流速率
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// TLS 证书与私钥，均为空时使用明文 HTTP
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
	// WebSocket 允许的跨域来源
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// ConversationConfig 对话配置
type ConversationConfig struct {
	// 模式: ai-ai, human-ai
	Mode string `yaml:"mode" env:"MODE"`
	// 轮数，推荐取值 1, 2, 4, 6, 12, 100
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// 初始参与者数量 (1-5)
	NumParticipants int `yaml:"num_participants" env:"NUM_PARTICIPANTS"`
	// 活跃参与者上限
	MaxParticipants int `yaml:"max_participants" env:"MAX_PARTICIPANTS"`
	// 允许 !add_ai 选择已在使用的模型
	AllowDuplicateModels bool `yaml:"allow_duplicate_models" env:"ALLOW_DUPLICATE_MODELS"`
	// 邀请档位: free, paid, both
	InviteTier string `yaml:"invite_tier" env:"INVITE_TIER"`
	// 场景名称
	Scenario string `yaml:"scenario" env:"SCENARIO"`
	// 场景来源: yaml, db
	ScenarioSource string `yaml:"scenario_source" env:"SCENARIO_SOURCE"`
	// YAML 场景文件路径
	ScenarioFile string `yaml:"scenario_file" env:"SCENARIO_FILE"`
	// 副作用指令开关
	Features FeaturesConfig `yaml:"features" env:"FEATURES"`
	// 默认温度
	DefaultTemperature float64 `yaml:"default_temperature" env:"DEFAULT_TEMPERATURE"`
}

// FeaturesConfig 指令功能开关
type FeaturesConfig struct {
	Images    bool `yaml:"images" env:"IMAGES"`
	Videos    bool `yaml:"videos" env:"VIDEOS"`
	Search    bool `yaml:"search" env:"SEARCH"`
	AutoImage bool `yaml:"auto_image" env:"AUTO_IMAGE"`
}

// ModelsConfig 模型配置
type ModelsConfig struct {
	// 席位未指定模型时使用
	Default string `yaml:"default" env:"DEFAULT"`
	// Slots[i] 是 AI-(i+1) 的模型引用
	Slots []string `yaml:"slots" env:"SLOTS"`
	// Catalog 是 !add_ai 可选的模型，仅支持 YAML
	Catalog []CatalogEntry `yaml:"catalog" env:"-"`
}

// CatalogEntry 模型目录条目
type CatalogEntry struct {
	Ref  string `yaml:"ref"`
	Tier string `yaml:"tier"`
}

// ProviderConfig 单个文本模型服务商
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// 默认 Provider
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	// OpenAI 兼容接口
	OpenAI ProviderConfig `yaml:"openai" env:"OPENAI"`
	// Anthropic 接口
	Anthropic ProviderConfig `yaml:"anthropic" env:"ANTHROPIC"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 单次回复最大 Token
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 历史窗口 Token 上限，0 表示不裁剪
	MaxHistoryTokens int `yaml:"max_history_tokens" env:"MAX_HISTORY_TOKENS"`
	// 网关限流
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// MediaConfig 媒体生成与搜索配置
type MediaConfig struct {
	ImageAPIKey    string        `yaml:"image_api_key" env:"IMAGE_API_KEY"`
	ImageBaseURL   string        `yaml:"image_base_url" env:"IMAGE_BASE_URL"`
	ImageModel     string        `yaml:"image_model" env:"IMAGE_MODEL"`
	VideoAPIKey    string        `yaml:"video_api_key" env:"VIDEO_API_KEY"`
	VideoBaseURL   string        `yaml:"video_base_url" env:"VIDEO_BASE_URL"`
	VideoModel     string        `yaml:"video_model" env:"VIDEO_MODEL"`
	VideoWaitFor   time.Duration `yaml:"video_wait_for" env:"VIDEO_WAIT_FOR"`
	SearchEndpoint string        `yaml:"search_endpoint" env:"SEARCH_ENDPOINT"`
	SearchAPIKey   string        `yaml:"search_api_key" env:"SEARCH_API_KEY"`
	SearchResults  int           `yaml:"search_results" env:"SEARCH_RESULTS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名，sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否发布事件到 Redis
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 启用 TLS
	TLSEnabled bool `yaml:"tls_enabled" env:"TLS_ENABLED"`
	// 事件频道
	Channel string `yaml:"channel" env:"CHANNEL"`
}

// AuthConfig 鉴权配置，JWTSecret 与 APIKeys 都为空时不鉴权
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string   `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	APIKeys   []string `yaml:"api_keys" env:"API_KEYS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 以明文 gRPC 连接 collector，否则使用 TLS
	Insecure bool `yaml:"insecure" env:"INSECURE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 按 默认值 → YAML 文件 → 环境变量 的顺序构建 Config
type Loader struct {
	path       string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建加载器，环境变量前缀默认为 AGENTFORUM
func NewLoader() *Loader {
	return &Loader{envPrefix: "AGENTFORUM"}
}

// WithConfigPath 设置 YAML 文件路径，文件不存在时只使用默认值与环境变量
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 追加校验函数，按添加顺序执行
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 构建配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := l.readFile(cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	for _, validate := range l.validators {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) readFile(cfg *Config) error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("read config %s: %w", l.path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", l.path, err)
	}
	return nil
}

// Validate 验证配置，返回所有问题的合并错误
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port %d", c.Server.HTTPPort))
	}

	conv := c.Conversation
	if conv.NumParticipants < 1 || conv.NumParticipants > conversation.HardParticipantLimit {
		errs = append(errs, fmt.Errorf("num_participants must be between 1 and %d, got %d",
			conversation.HardParticipantLimit, conv.NumParticipants))
	}
	if conv.NumParticipants > conv.MaxParticipants && conv.MaxParticipants > 0 {
		errs = append(errs, fmt.Errorf("num_participants %d exceeds max_participants %d",
			conv.NumParticipants, conv.MaxParticipants))
	}
	if err := c.Settings().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch conv.ScenarioSource {
	case "yaml", "db":
	default:
		errs = append(errs, fmt.Errorf("unknown scenario_source %q", conv.ScenarioSource))
	}
	for i, entry := range c.Models.Catalog {
		if strings.TrimSpace(entry.Ref) == "" {
			errs = append(errs, fmt.Errorf("models.catalog[%d]: empty ref", i))
		}
		switch conversation.InviteTier(entry.Tier) {
		case conversation.TierFree, conversation.TierPaid:
		default:
			errs = append(errs, fmt.Errorf("models.catalog[%d]: unknown tier %q", i, entry.Tier))
		}
	}

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls_cert_file and tls_key_file must be set together"))
	}

	return errors.Join(errs...)
}

// Settings 转换为对话设置
func (c *Config) Settings() conversation.Settings {
	s := conversation.DefaultSettings()
	conv := c.Conversation
	s.Mode = conversation.Mode(conv.Mode)
	s.MaxTurns = conv.MaxTurns
	if conv.MaxParticipants > 0 {
		s.MaxParticipants = conv.MaxParticipants
	}
	s.AllowDuplicateModels = conv.AllowDuplicateModels
	s.InviteTier = conversation.InviteTier(conv.InviteTier)
	s.Features = conversation.Features{
		Images:    conv.Features.Images,
		Videos:    conv.Features.Videos,
		Search:    conv.Features.Search,
		AutoImage: conv.Features.AutoImage,
	}
	s.DefaultTemperature = conv.DefaultTemperature
	return s
}

// Catalog 转换为邀请模型目录
func (c *Config) Catalog() conversation.Catalog {
	out := make(conversation.Catalog, 0, len(c.Models.Catalog))
	for _, entry := range c.Models.Catalog {
		out = append(out, conversation.ModelOption{
			Ref:  entry.Ref,
			Tier: conversation.InviteTier(entry.Tier),
		})
	}
	return out
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
