package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/internal/tlsutil"
	"github.com/BaSui01/agentforum/llm/providers"
	"github.com/BaSui01/agentforum/types"
)

const httpProviderName = "web-search"

// HTTPProvider 调用返回 JSON 结果列表的搜索端点。
//
// 请求: GET {endpoint}?q=...&count=N[&lang=..&region=..&time_range=..&site=..]
// 响应: {"results": [{"title", "url", "snippet"|"description", "content", "published_at", "score"}]}
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPProvider 创建 HTTP 搜索提供者。
func NewHTTPProvider(cfg HTTPConfig, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultHTTPConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Defaults.MaxResults <= 0 {
		cfg.Defaults.MaxResults = def.Defaults.MaxResults
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: tlsutil.HTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "search")),
	}
}

func (p *HTTPProvider) Name() string { return httpProviderName }

// Defaults 返回未显式指定时使用的选项。
func (p *HTTPProvider) Defaults() Options { return p.cfg.Defaults }

type searchResponse struct {
	Results []struct {
		Title       string  `json:"title"`
		URL         string  `json:"url"`
		Snippet     string  `json:"snippet"`
		Description string  `json:"description"`
		Content     string  `json:"content"`
		PublishedAt string  `json:"published_at"`
		Score       float64 `json:"score"`
	} `json:"results"`
}

// Search 执行一次搜索。摘要中的 HTML 标记会被去除。
func (p *HTTPProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewError(types.ErrMissingArgument, "search query is empty")
	}
	if p.cfg.Endpoint == "" {
		return nil, types.NewError(types.ErrFeatureDisabled, "search endpoint not configured")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = p.cfg.Defaults.MaxResults
	}

	u, err := url.Parse(p.cfg.Endpoint)
	if err != nil {
		return nil, types.WrapError(err, types.ErrInvalidRequest, "invalid search endpoint")
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(opts.MaxResults))
	if opts.Language != "" {
		q.Set("lang", opts.Language)
	}
	if opts.Region != "" {
		q.Set("region", opts.Region)
	}
	if opts.TimeRange != "" {
		q.Set("time_range", opts.TimeRange)
	}
	if opts.SafeSearch {
		q.Set("safe", "1")
	}
	for _, d := range opts.Domains {
		q.Add("site", d)
	}
	for _, d := range opts.ExcludeDomains {
		q.Add("exclude_site", d)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, types.WrapError(err, types.ErrInvalidRequest, "failed to create search request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.MapTransportError(err, httpProviderName)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, httpProviderName)
	}

	var sResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sResp); err != nil {
		return nil, types.WrapError(err, types.ErrUpstreamError, "failed to decode search response").
			WithProvider(httpProviderName)
	}

	results := make([]Result, 0, len(sResp.Results))
	for _, r := range sResp.Results {
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Description
		}
		results = append(results, Result{
			Title:       StripHTML(r.Title),
			URL:         r.URL,
			Snippet:     StripHTML(snippet),
			Content:     StripHTML(r.Content),
			PublishedAt: r.PublishedAt,
			Score:       r.Score,
		})
		if len(results) == opts.MaxResults {
			break
		}
	}

	p.logger.Debug("web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}
