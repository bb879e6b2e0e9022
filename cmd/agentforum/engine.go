package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/agent/scenario"
	"github.com/BaSui01/agentforum/agent/streaming"
	"github.com/BaSui01/agentforum/config"
	"github.com/BaSui01/agentforum/internal/cache"
	"github.com/BaSui01/agentforum/internal/database"
	"github.com/BaSui01/agentforum/internal/metrics"
	"github.com/BaSui01/agentforum/internal/telemetry"
	"github.com/BaSui01/agentforum/llm"
	"github.com/BaSui01/agentforum/llm/gateway"
	"github.com/BaSui01/agentforum/llm/image"
	"github.com/BaSui01/agentforum/llm/providers"
	"github.com/BaSui01/agentforum/llm/providers/anthropic"
	"github.com/BaSui01/agentforum/llm/providers/openai"
	"github.com/BaSui01/agentforum/llm/search"
	"github.com/BaSui01/agentforum/llm/tokenizer"
	"github.com/BaSui01/agentforum/llm/video"
)

// =============================================================================
// 🧩 对话引擎装配
// =============================================================================

// engine 持有一次对话运行所需的全部依赖。
type engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	telemetry *telemetry.Providers
	gateway   *gateway.Gateway
	db        *database.Pool
	cache     *cache.Client
	conv      *conversation.Conversation

	sinks []func()
}

// engineOption 调整引擎装配，主要用于测试注入 Provider。
type engineOption func(*engineOptions)

type engineOptions struct {
	providers []llm.Provider
}

// withProviders 注册额外的文本模型 Provider，同名时覆盖配置中的 Provider。
func withProviders(ps ...llm.Provider) engineOption {
	return func(o *engineOptions) { o.providers = append(o.providers, ps...) }
}

// newEngine 按配置装配对话：遥测、指标、网关、媒体适配器、场景与事件扇出。
// 失败时已创建的资源会被释放。
func newEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...engineOption) (_ *engine, err error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	e := &engine{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			e.Close(context.Background())
		}
	}()

	e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	e.collector = metrics.NewCollector("agentforum", e.registry, logger)

	e.telemetry, err = telemetry.Init(ctx, cfg.Telemetry, telemetry.Service{
		Version:  Version,
		Scenario: cfg.Conversation.Scenario,
		Mode:     cfg.Conversation.Mode,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry, continuing without tracing", zap.Error(err))
		e.telemetry, err = &telemetry.Providers{}, nil
	}

	e.gateway, err = buildGateway(cfg, logger, e.collector, e.telemetry.Tracer(telemetry.TracerGateway), o.providers)
	if err != nil {
		return nil, err
	}

	sc, err := e.loadScenario(ctx)
	if err != nil {
		return nil, err
	}
	seeds, err := sc.Seeds(cfg.Conversation.NumParticipants, cfg.Models.Slots, cfg.Models.Default)
	if err != nil {
		return nil, err
	}

	settings := cfg.Settings()
	if sc.InvitePrompt != "" {
		settings.InvitePrompt = sc.InvitePrompt
	}

	tokenizer.RegisterOpenAITokenizers()
	counter := tokenizer.NewFallback(tokenizer.GetTokenizerOrEstimator(tokenizer.StripProvider(cfg.Models.Default)))

	convOpts := []conversation.Option{
		conversation.WithSettings(settings),
		conversation.WithCatalog(cfg.Catalog()),
		conversation.WithGateway(e.gateway),
		conversation.WithMetrics(e.collector),
		conversation.WithTracer(e.telemetry.Tracer(telemetry.TracerConversation)),
		conversation.WithTokenCounter(counter),
		conversation.WithLogger(logger),
	}
	convOpts = append(convOpts, mediaOptions(cfg, logger)...)

	e.conv, err = conversation.New(seeds, convOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		if err := e.attachRedis(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info("conversation assembled",
		zap.String("conversation_id", e.conv.ID()),
		zap.String("scenario", sc.Name),
		zap.Int("participants", len(seeds)),
		zap.Int("max_turns", settings.MaxTurns),
		zap.String("mode", string(settings.Mode)),
		zap.Strings("providers", e.gateway.Providers()),
	)
	return e, nil
}

// buildGateway 创建模型网关并注册已配置密钥的 Provider。
func buildGateway(cfg *config.Config, logger *zap.Logger, observer gateway.Observer, tracer trace.Tracer, extra []llm.Provider) (*gateway.Gateway, error) {
	gcfg := gateway.DefaultConfig()
	gcfg.DefaultProvider = cfg.LLM.DefaultProvider
	gcfg.Timeout = cfg.LLM.Timeout
	gcfg.MaxTokens = cfg.LLM.MaxTokens
	gcfg.MaxHistoryTokens = cfg.LLM.MaxHistoryTokens
	gcfg.RateLimitRPS = cfg.LLM.RateLimitRPS
	gcfg.RateLimitBurst = cfg.LLM.RateLimitBurst
	if gcfg.Retry != nil {
		gcfg.Retry.MaxRetries = cfg.LLM.MaxRetries
	}

	gw := gateway.New(gcfg, logger, gateway.WithObserver(observer), gateway.WithTracer(tracer))

	if key := cfg.LLM.OpenAI.APIKey; key != "" {
		gw.Register(openai.NewOpenAIProvider(providers.Config{
			APIKey:    key,
			BaseURL:   cfg.LLM.OpenAI.BaseURL,
			Timeout:   cfg.LLM.Timeout,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger))
	}
	if key := cfg.LLM.Anthropic.APIKey; key != "" {
		gw.Register(anthropic.NewClaudeProvider(providers.Config{
			APIKey:    key,
			BaseURL:   cfg.LLM.Anthropic.BaseURL,
			Timeout:   cfg.LLM.Timeout,
			MaxTokens: cfg.LLM.MaxTokens,
		}, logger))
	}
	for _, p := range extra {
		gw.Register(p)
	}

	if len(gw.Providers()) == 0 {
		return nil, errors.New("no text model provider configured: set llm.openai.api_key or llm.anthropic.api_key")
	}
	return gw, nil
}

// mediaOptions 为开启的功能创建媒体适配器。功能开启但缺少密钥时，
// 对应指令会以 ServiceUnavailable 被拒绝。
func mediaOptions(cfg *config.Config, logger *zap.Logger) []conversation.Option {
	var opts []conversation.Option
	features := cfg.Conversation.Features
	media := cfg.Media

	if features.Images && media.ImageAPIKey != "" {
		icfg := image.DefaultOpenAIConfig()
		icfg.APIKey = media.ImageAPIKey
		if media.ImageBaseURL != "" {
			icfg.BaseURL = media.ImageBaseURL
		}
		if media.ImageModel != "" {
			icfg.Model = media.ImageModel
		}
		opts = append(opts, conversation.WithImageGenerator(gateway.NewImageAdapter(image.NewOpenAIProvider(icfg), logger)))
	}

	if features.Videos && media.VideoAPIKey != "" {
		vcfg := video.DefaultRunwayConfig()
		vcfg.APIKey = media.VideoAPIKey
		if media.VideoBaseURL != "" {
			vcfg.BaseURL = media.VideoBaseURL
		}
		if media.VideoModel != "" {
			vcfg.Model = media.VideoModel
		}
		vcfg.WaitFor = media.VideoWaitFor
		opts = append(opts, conversation.WithVideoGenerator(gateway.NewVideoAdapter(video.NewRunwayProvider(vcfg), logger)))
	}

	if features.Search && media.SearchEndpoint != "" {
		scfg := search.DefaultHTTPConfig()
		scfg.Endpoint = media.SearchEndpoint
		scfg.APIKey = media.SearchAPIKey
		if media.SearchResults > 0 {
			scfg.Defaults.MaxResults = media.SearchResults
		}
		p := search.NewHTTPProvider(scfg, logger)
		opts = append(opts, conversation.WithSearcher(gateway.NewSearchAdapter(p, p.Defaults())))
	}

	return opts
}

// loadScenario 从 YAML 文件或数据库读取场景，只在启动时读取一次。
func (e *engine) loadScenario(ctx context.Context) (*scenario.Scenario, error) {
	conv := e.cfg.Conversation

	var src scenario.Source
	switch conv.ScenarioSource {
	case "db":
		pool, err := database.Open(e.cfg.Database, e.logger, database.WithStatsRecorder(e.cfg.Database.Name, e.collector))
		if err != nil {
			return nil, err
		}
		e.db = pool
		dbSrc := scenario.NewDBSource(pool.DB(), e.logger)
		if e.cfg.Database.Driver == "sqlite" {
			if err := dbSrc.AutoMigrate(); err != nil {
				return nil, fmt.Errorf("failed to migrate sqlite scenarios: %w", err)
			}
		}
		src = dbSrc
	default:
		yamlSrc, err := scenario.LoadYAMLFile(conv.ScenarioFile)
		if err != nil {
			return nil, err
		}
		src = yamlSrc
	}

	return src.Load(ctx, conv.Scenario)
}

// attachRedis 把对话事件发布到 Redis 频道。
func (e *engine) attachRedis(ctx context.Context) error {
	rc := e.cfg.Redis
	m, err := cache.Dial(ctx, rc, e.logger)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	e.cache = m

	pub := streaming.NewRedisPublisher(m, rc.Channel, e.logger)
	e.attach(pub)
	return nil
}

// attach 订阅事件总线，Close 时停止。
func (e *engine) attach(sink streaming.Sink) {
	stop := streaming.Attach(e.conv.Events(), sink, 256, 5*time.Second, e.logger)
	e.sinks = append(e.sinks, stop)
}

// Close 按依赖逆序释放资源，可重复调用。运行中的对话会被取消。
func (e *engine) Close(ctx context.Context) {
	if e.conv != nil {
		e.conv.Cancel("shutdown")
		// 等待在途回合结束，让终止事件送达各订阅者
		if e.conv.Status() == conversation.StatusRunning {
			if err := e.conv.Wait(ctx); err != nil {
				e.logger.Warn("conversation did not stop before shutdown deadline", zap.Error(err))
			}
		}
		e.conv.Events().Close()
	}
	for _, stop := range e.sinks {
		stop()
	}
	e.sinks = nil

	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Warn("redis close failed", zap.Error(err))
		}
		e.cache = nil
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.logger.Warn("database close failed", zap.Error(err))
		}
		e.db = nil
	}
	if e.telemetry != nil {
		if err := e.telemetry.Shutdown(ctx); err != nil {
			e.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
		e.telemetry = nil
	}
}
