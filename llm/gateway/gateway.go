package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/llm"
	"github.com/BaSui01/agentforum/llm/circuitbreaker"
	"github.com/BaSui01/agentforum/llm/providers"
	"github.com/BaSui01/agentforum/llm/retry"
	"github.com/BaSui01/agentforum/llm/tokenizer"
	"github.com/BaSui01/agentforum/types"
)

// Observer 接收每次上游调用的耗时与结果，status 为 "ok" 或错误码。
type Observer interface {
	ObserveGateway(provider, status string, d time.Duration)
}

type route struct {
	provider llm.Provider
	breaker  *circuitbreaker.Breaker
}

// Gateway 把 conversation.ModelGateway 请求路由到已注册的 llm.Provider。
// 模型引用形如 "provider/model"；不带前缀时使用 DefaultProvider。
// 每次调用依次经过限流、重试与该 Provider 的熔断器。
type Gateway struct {
	cfg      Config
	retryer  *retry.Retryer
	limiter  *rate.Limiter
	tracer   trace.Tracer
	observer Observer
	logger   *zap.Logger

	mu     sync.RWMutex
	routes map[string]*route
}

// Option 配置 Gateway
type Option func(*Gateway)

// WithTracer 设置 gateway.complete span 使用的 tracer
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithObserver 设置调用观察者（一般为 metrics.Recorder）
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// New 创建网关
func New(cfg Config, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry == nil {
		cfg.Retry = def.Retry
	}
	if cfg.Breaker == nil {
		cfg.Breaker = def.Breaker
	}
	policy := *cfg.Retry
	if policy.Classifier == nil && len(policy.RetryableErrors) == 0 {
		policy.Classifier = types.IsRetryable
	}

	g := &Gateway{
		cfg:    cfg,
		tracer: noop.NewTracerProvider().Tracer("agentforum/gateway"),
		logger: logger.With(zap.String("component", "gateway")),
		routes: make(map[string]*route),
	}
	g.retryer = retry.New(&policy, g.logger)
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register 注册 Provider，同名覆盖。
func (g *Gateway) Register(p llm.Provider) {
	bc := *g.cfg.Breaker
	bc.Name = p.Name()
	bc.Timeout = g.cfg.Timeout
	logger := g.logger
	bc.OnStateChange = func(name string, from, to circuitbreaker.State) {
		logger.Warn("provider circuit state changed",
			zap.String("provider", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[p.Name()] = &route{
		provider: p,
		breaker:  circuitbreaker.New(&bc, g.logger),
	}
}

// Providers 返回已注册的 Provider 名称（排序后）
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.routes))
	for name := range g.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BreakerStates 返回每个 Provider 熔断器的当前状态，供 /health 展示
func (g *Gateway) BreakerStates() map[string]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	states := make(map[string]string, len(g.routes))
	for name, r := range g.routes {
		states[name] = r.breaker.State().String()
	}
	return states
}

// Resolve 将模型引用拆分为 Provider 与模型名。
func (g *Gateway) Resolve(ref string) (llm.Provider, string, error) {
	r, model, err := g.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	return r.provider, model, nil
}

func (g *Gateway) resolve(ref string) (*route, string, error) {
	name, model := g.cfg.DefaultProvider, strings.TrimSpace(ref)
	if i := strings.IndexByte(model, '/'); i >= 0 {
		name, model = model[:i], model[i+1:]
	}

	g.mu.RLock()
	r, ok := g.routes[name]
	g.mu.RUnlock()
	if !ok {
		return nil, "", types.Errorf(types.ErrModelNotFound, "no provider registered for model %q", ref)
	}
	return r, model, nil
}

// Complete 实现 conversation.ModelGateway
func (g *Gateway) Complete(ctx context.Context, req conversation.CompletionRequest) (string, error) {
	r, model, err := g.resolve(req.ModelRef)
	if err != nil {
		return "", err
	}
	name := r.provider.Name()

	ctx, span := g.tracer.Start(ctx, "gateway.complete",
		trace.WithAttributes(
			attribute.String("provider", name),
			attribute.String("model", model),
			attribute.String("speaker", req.SpeakerLabel),
		))
	defer span.End()

	messages, dropped, err := g.buildMessages(req, model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if dropped > 0 {
		g.logger.Debug("history trimmed",
			zap.String("speaker", req.SpeakerLabel),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(messages)))
	}

	chatReq := &llm.ChatRequest{
		Model:       model,
		System:      req.SystemPrompt,
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: req.Temperature,
		Timeout:     g.cfg.Timeout,
		Metadata:    map[string]string{"speaker_id": req.SpeakerID},
	}

	start := time.Now()
	resp, err := retry.Do(g.retryer, ctx, func() (*llm.ChatResponse, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, providers.MapTransportError(ctx.Err(), name)
				}
				return nil, types.WrapError(err, types.ErrRateLimited, "gateway rate limit exceeded").WithProvider(name)
			}
		}
		return circuitbreaker.Do(r.breaker, ctx, func(ctx context.Context) (*llm.ChatResponse, error) {
			return r.provider.Completion(ctx, chatReq)
		})
	})
	elapsed := time.Since(start)

	if err != nil {
		attempts := retry.Attempts(err)
		err = normalizeError(err, name)
		g.observe(name, string(types.CodeOf(err)), elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("completion failed",
			zap.String("provider", name),
			zap.String("model", model),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return "", err
	}

	g.observe(name, "ok", elapsed)
	span.SetAttributes(
		attribute.Int("usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Content, nil
}

func (g *Gateway) observe(provider, status string, d time.Duration) {
	if g.observer != nil {
		g.observer.ObserveGateway(provider, status, d)
	}
}

// buildMessages 把共享历史转换为该发言者视角的消息序列：
// 自己的发言为 assistant，其他人（含人类）的发言为带标签的 user 消息。
func (g *Gateway) buildMessages(req conversation.CompletionRequest, model string) ([]llm.Message, int, error) {
	window := make([]tokenizer.Message, 0, len(req.History)+1)
	for _, h := range req.History {
		if h.Kind == conversation.MessageParticipant && h.SpeakerID == req.SpeakerID {
			window = append(window, tokenizer.Message{Role: string(llm.RoleAssistant), Content: h.Text})
			continue
		}
		window = append(window, tokenizer.Message{
			Role:    string(llm.RoleUser),
			Content: fmt.Sprintf("%s: %s", h.SpeakerLabel, h.Text),
		})
	}
	if len(window) == 0 || window[len(window)-1].Role == string(llm.RoleAssistant) {
		window = append(window, tokenizer.Message{Role: string(llm.RoleUser), Content: kickoff(req, len(window) == 0)})
	}

	dropped := 0
	if g.cfg.MaxHistoryTokens > 0 {
		tk := tokenizer.NewFallback(tokenizer.GetTokenizerOrEstimator(model))
		var err error
		window, dropped, err = tokenizer.FitWindow(tk, req.SystemPrompt, window, g.cfg.MaxHistoryTokens)
		if err != nil {
			return nil, 0, types.WrapError(err, types.ErrInternalError, "failed to count history tokens")
		}
	}

	messages := make([]llm.Message, len(window))
	for i, m := range window {
		messages[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return messages, dropped, nil
}

func kickoff(req conversation.CompletionRequest, first bool) string {
	if first {
		return fmt.Sprintf("You are %s. Open the discussion.", req.SpeakerLabel)
	}
	return fmt.Sprintf("You are %s. Continue the discussion.", req.SpeakerLabel)
}

// normalizeError 剥离重试包装，并把非 *types.Error 的错误映射为网关错误码。
func normalizeError(err error, provider string) error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) && exhausted.Err != nil {
		err = exhausted.Err
	}
	if te, ok := types.AsError(err); ok {
		if te.Provider == "" {
			te = cloneWithProvider(te, provider)
		}
		return te
	}
	return providers.MapTransportError(err, provider)
}

func cloneWithProvider(e *types.Error, provider string) *types.Error {
	c := *e
	c.Provider = provider
	return &c
}
