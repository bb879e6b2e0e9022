package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/llm"
	"github.com/BaSui01/agentforum/llm/providers"
	"github.com/BaSui01/agentforum/types"
)

const (
	providerName     = "anthropic"
	fallbackModel    = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
)

// ClaudeProvider 实现 Anthropic Messages API 提供者.
type ClaudeProvider struct {
	client anthropicsdk.Client
	cfg    providers.Config
	logger *zap.Logger
}

// NewClaudeProvider 创建 Claude 提供者实例.
func NewClaudeProvider(cfg providers.Config, logger *zap.Logger) *ClaudeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &ClaudeProvider{
		client: anthropicsdk.NewClient(opts...),
		cfg:    cfg,
		logger: logger.With(zap.String("provider", providerName)),
	}
}

// Name 返回 Provider 名称
func (p *ClaudeProvider) Name() string { return providerName }

// Completion 调用 Messages API。Anthropic 要求 user/assistant 交替且以
// user 开头，相邻同角色消息会被合并。
func (p *ClaudeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.cfg.Model, fallbackModel)
	n := req.MaxTokens
	if n <= 0 {
		n = p.cfg.MaxTokens
	}
	if n <= 0 {
		n = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(model),
		Messages:    buildMessages(req.Messages),
		MaxTokens:   int64(n),
		Temperature: anthropicsdk.Float(clampTemperature(req.Temperature)),
	}
	if system := systemPrompt(req); system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		mapped := p.mapError(err)
		p.logger.Debug("completion failed",
			zap.String("model", model),
			zap.String("code", string(mapped.Code)),
			zap.Duration("latency", time.Since(start)),
		)
		return nil, mapped
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	p.logger.Debug("completion succeeded",
		zap.String("model", string(resp.Model)),
		zap.Int("total_tokens", in+out),
		zap.Duration("latency", time.Since(start)),
	)
	return &llm.ChatResponse{
		ID:           resp.ID,
		Provider:     providerName,
		Model:        string(resp.Model),
		Content:      text.String(),
		FinishReason: string(resp.StopReason),
		Usage: llm.ChatUsage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
		CreatedAt: time.Now(),
	}, nil
}

// systemPrompt 合并 req.System 与消息列表中的 system 消息
func systemPrompt(req *llm.ChatRequest) string {
	parts := make([]string, 0, 1)
	if req.System != "" {
		parts = append(parts, req.System)
	}
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func buildMessages(msgs []llm.Message) []anthropicsdk.MessageParam {
	type turn struct {
		role  llm.Role
		texts []string
	}
	var turns []turn
	for _, m := range msgs {
		if m.Role == llm.RoleSystem || m.Content == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		if len(turns) == 0 && role == llm.RoleAssistant {
			turns = append(turns, turn{role: llm.RoleUser, texts: []string{"(conversation start)"}})
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].texts = append(turns[n-1].texts, m.Content)
			continue
		}
		turns = append(turns, turn{role: role, texts: []string{m.Content}})
	}

	out := make([]anthropicsdk.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropicsdk.NewTextBlock(strings.Join(t.texts, "\n\n"))
		if t.role == llm.RoleAssistant {
			out = append(out, anthropicsdk.NewAssistantMessage(block))
		} else {
			out = append(out, anthropicsdk.NewUserMessage(block))
		}
	}
	return out
}

// Anthropic 的温度范围是 [0, 1]
func clampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

func (p *ClaudeProvider) mapError(err error) *types.Error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return providers.MapHTTPError(apiErr.StatusCode, providers.CompactMessage(apiErr.Error()), providerName).WithCause(err)
	}
	return providers.MapTransportError(err, providerName)
}
