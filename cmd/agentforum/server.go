package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentforum/agent/streaming"
	"github.com/BaSui01/agentforum/config"
	"github.com/BaSui01/agentforum/internal/server"
	"github.com/BaSui01/agentforum/internal/telemetry"
	"github.com/BaSui01/agentforum/internal/tlsutil"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var flags commonFlags
	flags.register(fs)
	fs.Parse(args)

	cfg, err := flags.load()
	if err != nil {
		return err
	}

	logger, level := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting AgentForum",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := NewServer(cfg, eng, logger)
	if err != nil {
		eng.Close(context.Background())
		return err
	}

	if flags.configPath != "" {
		reloader, err := config.NewReloader(flags.configPath, cfg, level, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			reloader.OnReload(func(_, next *config.Config) {
				logger.Info("configuration reloaded; only log level is applied at runtime",
					zap.String("log_level", next.Log.Level))
			})
			srv.reloader = reloader
		}
	}

	err = srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	eng.Close(shutdownCtx)

	logger.Info("AgentForum stopped")
	return err
}

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 运行对话并通过 HTTP 暴露控制接口、事件流与指标
type Server struct {
	cfg    *config.Config
	engine *engine
	logger *zap.Logger

	hub      *streaming.Hub
	reloader *config.Reloader

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 创建服务器实例并构建两个端口的路由
func NewServer(cfg *config.Config, eng *engine, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		logger: logger.With(zap.String("component", "server")),
	}

	hubCfg := streaming.DefaultHubConfig()
	hubCfg.OriginPatterns = cfg.Server.AllowedOrigins
	s.hub = streaming.NewHub(hubCfg, logger)

	httpCfg := server.Config{
		Name:        "api",
		Addr:        fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout: cfg.Server.ReadTimeout,
		// /ws/events 是长连接，写超时由 Hub 按消息控制
		WriteTimeout:    0,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Server.TLSCertFile != "" {
		tlsCfg, err := tlsutil.ServerConfig(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		httpCfg.TLSConfig = tlsCfg
	}
	s.httpManager = server.NewManager(s.Handler(), httpCfg, logger)
	s.httpManager.OnShutdown(s.hub.Close)

	s.metricsManager = server.NewManager(s.MetricsHandler(), server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return s, nil
}

// =============================================================================
// 🌐 路由
// =============================================================================

// Handler 返回 API 端口的完整处理链
func (s *Server) Handler() http.Handler {
	conv := newConversationHandler(s.engine.conv, s.logger)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/conversation", conv.HandleSnapshot)
	api.HandleFunc("GET /api/v1/conversation/messages", conv.HandleMessages)
	api.HandleFunc("POST /api/v1/conversation/cancel", conv.HandleCancel)
	api.HandleFunc("POST /api/v1/conversation/inject", conv.HandleInject)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", handleVersion)
	mux.Handle("/ws/events", s.hub)
	mux.Handle("/api/v1/", Chain(api, Auth(s.cfg.Auth, s.logger)))

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.engine.collector),
		OTelTracing(s.engine.telemetry.Tracer(telemetry.TracerHTTP)),
		CORS(s.cfg.Server.AllowedOrigins),
		RateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst),
	)
}

// MetricsHandler 返回 Metrics 端口的处理器
func (s *Server) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.engine.registry, promhttp.HandlerOpts{
		Registry: s.engine.registry,
	}))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":       "ok",
		"conversation": s.engine.conv.Status(),
		"providers":    s.engine.gateway.BreakerStates(),
	}
	if s.engine.db != nil {
		if err := s.engine.db.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}
	if s.engine.cache != nil {
		if err := s.engine.cache.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = err.Error()
		} else if rec, err := streaming.LastStatus(r.Context(), s.engine.cache, s.engine.conv.ID()); err == nil && rec != nil {
			// 已发布到 Redis 的最新生命周期事件，用于确认扇出链路
			body["published_status"] = rec.Type
		}
	}
	writeJSON(w, status, body)
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 并行运行 API、Metrics、配置热重载与对话，直到 ctx 结束或任一服务失败。
// 对话结束后服务继续运行，日志与快照仍可查询。
func (s *Server) Run(ctx context.Context) error {
	s.engine.attach(s.hub)
	defer s.hub.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.httpManager.Run(gctx) })
	g.Go(func() error { return s.metricsManager.Run(gctx) })

	if s.reloader != nil {
		g.Go(func() error {
			if err := s.reloader.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			return s.reloader.Stop()
		})
	}

	g.Go(func() error {
		conv := s.engine.conv
		if err := conv.Start(context.WithoutCancel(gctx)); err != nil {
			return err
		}
		select {
		case <-conv.Done():
			snap := conv.Snapshot()
			s.logger.Info("conversation finished, API stays available",
				zap.String("status", string(snap.Status)),
				zap.Int("messages", snap.Messages))
		case <-gctx.Done():
			conv.Cancel("shutdown")
		}
		return nil
	})

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("tls", s.cfg.Server.TLSCertFile != ""),
		zap.Bool("hot_reload_enabled", s.reloader != nil),
		zap.String("mode", string(s.engine.conv.Snapshot().Mode)),
	)

	return g.Wait()
}
