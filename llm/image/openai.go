package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentforum/internal/tlsutil"
	"github.com/BaSui01/agentforum/llm/providers"
	"github.com/BaSui01/agentforum/types"
)

const (
	openAIImageProvider = "openai-image"
	generationsPath     = "/v1/images/generations"
)

// OpenAIConfig 配置 OpenAI Images API，零值字段使用 DefaultOpenAIConfig 中的值
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string // dall-e-3, gpt-image-1
	Size    string
	Timeout time.Duration
}

// DefaultOpenAIConfig 返回默认 OpenAI 图像配置。
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL: "https://api.openai.com",
		Model:   "dall-e-3",
		Size:    "1024x1024",
		Timeout: 2 * time.Minute,
	}
}

func (c OpenAIConfig) orDefault() OpenAIConfig {
	def := DefaultOpenAIConfig()
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	c.BaseURL = strings.TrimRight(pick(c.BaseURL, def.BaseURL), "/")
	c.Model = pick(c.Model, def.Model)
	c.Size = pick(c.Size, def.Size)
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// OpenAIProvider 通过 Images API 生成插图
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider 创建 OpenAI 图像提供者
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	cfg = cfg.orDefault()
	return &OpenAIProvider{cfg: cfg, client: tlsutil.HTTPClient(cfg.Timeout)}
}

func (p *OpenAIProvider) Name() string { return openAIImageProvider }

// generationBody 是 Images API 的请求体
type generationBody struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type generationResult struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// Generate 按提示词生成图像，N 为 0 时生成一张
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, types.NewError(types.ErrMissingArgument, "image prompt is empty")
	}

	body := generationBody{
		Model:          req.Model,
		Prompt:         req.Prompt,
		N:              max(req.N, 1),
		Size:           req.Size,
		Quality:        req.Quality,
		Style:          req.Style,
		ResponseFormat: req.ResponseFormat,
	}
	if body.Model == "" {
		body.Model = p.cfg.Model
	}
	if body.Size == "" {
		body.Size = p.cfg.Size
	}

	var result generationResult
	if err := p.post(ctx, body, &result); err != nil {
		return nil, err
	}
	return &GenerateResponse{
		Provider:  openAIImageProvider,
		Model:     body.Model,
		Images:    result.Data,
		CreatedAt: time.Unix(result.Created, 0),
	}, nil
}

func (p *OpenAIProvider) post(ctx context.Context, in generationBody, out *generationResult) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode image request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+generationsPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return providers.MapTransportError(err, openAIImageProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), openAIImageProvider)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.WrapError(err, types.ErrUpstreamError, "decode image response").WithProvider(openAIImageProvider)
	}
	return nil
}
