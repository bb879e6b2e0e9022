package openai

import (
	"context"
	"errors"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/llm"
	"github.com/BaSui01/agentforum/llm/providers"
	"github.com/BaSui01/agentforum/types"
)

const (
	providerName  = "openai"
	fallbackModel = openaisdk.ChatModelGPT4oMini
)

// OpenAIProvider 实现 OpenAI LLM 提供者，基于官方 SDK 的 Chat Completions API.
type OpenAIProvider struct {
	client openaisdk.Client
	cfg    providers.Config
	logger *zap.Logger
}

// NewOpenAIProvider 创建新的 OpenAI 提供者实例.
// SDK 内置重试被关闭，重试由上层网关统一负责。
func NewOpenAIProvider(cfg providers.Config, logger *zap.Logger) *OpenAIProvider {
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
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIProvider{
		client: openaisdk.NewClient(opts...),
		cfg:    cfg,
		logger: logger.With(zap.String("provider", providerName)),
	}
}

// Name 返回 Provider 名称
func (p *OpenAIProvider) Name() string { return providerName }

// Completion 发起同步 Chat Completions 请求
func (p *OpenAIProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.cfg.Model, fallbackModel)
	params := openaisdk.ChatCompletionNewParams{
		Messages:    buildMessages(req),
		Model:       model,
		Temperature: openaisdk.Float(req.Temperature),
	}
	if n := maxTokens(req, p.cfg.MaxTokens); n > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(n))
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		mapped := p.mapError(err)
		p.logger.Debug("completion failed",
			zap.String("model", model),
			zap.String("code", string(mapped.Code)),
			zap.Duration("latency", time.Since(start)),
		)
		return nil, mapped
	}

	out := &llm.ChatResponse{
		ID:       resp.ID,
		Provider: providerName,
		Model:    resp.Model,
		Usage: llm.ChatUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	p.logger.Debug("completion succeeded",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

func buildMessages(req *llm.ChatRequest) []openaisdk.ChatCompletionMessageParamUnion {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(m.Content))
		case llm.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(m.Content))
		default:
			messages = append(messages, openaisdk.UserMessage(m.Content))
		}
	}
	return messages
}

func maxTokens(req *llm.ChatRequest, configured int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return configured
}

func (p *OpenAIProvider) mapError(err error) *types.Error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return providers.MapHTTPError(apiErr.StatusCode, providers.CompactMessage(msg), providerName).WithCause(err)
	}
	return providers.MapTransportError(err, providerName)
}
