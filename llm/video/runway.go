package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/agentforum/internal/tlsutil"
	"github.com/BaSui01/agentforum/llm/providers"
	"github.com/BaSui01/agentforum/types"
)

const (
	runwayProvider = "runway"
	runwayVersion  = "2024-11-06"
	defaultSeconds = 5
)

// RunwayProvider 使用 Runway API 生成视频.
// API 文档: https://docs.dev.runwayml.com/api/
type RunwayProvider struct {
	cfg    RunwayConfig
	client *http.Client
}

// NewRunwayProvider 创建新的 Runway 视频提供商.
func NewRunwayProvider(cfg RunwayConfig) *RunwayProvider {
	def := DefaultRunwayConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &RunwayProvider{
		cfg:    cfg,
		client: tlsutil.HTTPClient(cfg.Timeout),
	}
}

func (p *RunwayProvider) Name() string { return runwayProvider }

type runwayRequest struct {
	Model       string `json:"model"`
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"` // HTTPS URL or data URI
	Ratio       string `json:"ratio,omitempty"`       // e.g., "1280:720", "720:1280"
	Duration    int    `json:"duration,omitempty"`    // 2-10 seconds
	Seed        int64  `json:"seed,omitempty"`
}

type runwayTask struct {
	ID      string     `json:"id"`
	Status  TaskStatus `json:"status"`
	Output  []string   `json:"output,omitempty"`
	Failure string     `json:"failure,omitempty"`
}

// Generate 提交生成任务，并在 WaitFor 窗口内轮询结果。
// 窗口结束时任务仍未完成则返回 Pending 响应。
func (p *RunwayProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, types.NewError(types.ErrMissingArgument, "video prompt is empty")
	}
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	duration := clampDuration(int(req.Duration))

	body := runwayRequest{
		Model:       model,
		PromptText:  req.Prompt,
		PromptImage: req.ImageURL,
		Ratio:       ratioFor(req.AspectRatio),
		Duration:    duration,
		Seed:        req.Seed,
	}
	endpoint := "/v1/text_to_video"
	if req.ImageURL != "" {
		endpoint = "/v1/image_to_video"
	}

	var task runwayTask
	if err := p.do(ctx, http.MethodPost, endpoint, body, &task); err != nil {
		return nil, err
	}
	if task.ID == "" {
		return nil, types.NewError(types.ErrUpstreamError, "runway returned no task id").WithProvider(runwayProvider)
	}

	if p.cfg.WaitFor > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, p.cfg.WaitFor)
		defer cancel()
		finished, err := p.poll(waitCtx, task.ID)
		switch {
		case err == nil:
			task = *finished
		case ctx.Err() != nil:
			return nil, providers.MapTransportError(ctx.Err(), runwayProvider)
		case waitCtx.Err() == nil:
			return nil, err
		}
	}
	return p.toResponse(model, float64(duration), &task)
}

// Status 查询一次任务状态
func (p *RunwayProvider) Status(ctx context.Context, taskID string) (*GenerateResponse, error) {
	var task runwayTask
	if err := p.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, err
	}
	return p.toResponse(p.cfg.Model, 0, &task)
}

func (p *RunwayProvider) poll(ctx context.Context, id string) (*runwayTask, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var task runwayTask
			if err := p.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(id), nil, &task); err != nil {
				if types.IsRetryable(err) {
					continue
				}
				return nil, err
			}
			switch task.Status {
			case TaskSucceeded, TaskFailed:
				return &task, nil
			}
		}
	}
}

func (p *RunwayProvider) toResponse(model string, seconds float64, task *runwayTask) (*GenerateResponse, error) {
	resp := &GenerateResponse{
		Provider:  runwayProvider,
		Model:     model,
		TaskID:    task.ID,
		CreatedAt: time.Now(),
	}
	switch task.Status {
	case TaskSucceeded:
		for _, u := range task.Output {
			resp.Videos = append(resp.Videos, VideoData{URL: u, Duration: seconds})
		}
	case TaskFailed:
		msg := "runway generation failed"
		if task.Failure != "" {
			msg = fmt.Sprintf("%s: %s", msg, task.Failure)
		}
		return nil, types.NewError(types.ErrUpstreamError, msg).WithProvider(runwayProvider)
	default:
		resp.Pending = true
	}
	return resp, nil
}

func (p *RunwayProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal runway request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Runway-Version", runwayVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return providers.MapTransportError(err, runwayProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), runwayProvider)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.WrapError(err, types.ErrUpstreamError, "failed to decode runway response").WithProvider(runwayProvider)
	}
	return nil
}

func clampDuration(seconds int) int {
	switch {
	case seconds == 0:
		return defaultSeconds
	case seconds < 2:
		return 2
	case seconds > 10:
		return 10
	}
	return seconds
}

// ratioFor 将宽高比转换为 Runway 的像素比格式
func ratioFor(aspect string) string {
	switch aspect {
	case "", "16:9":
		return "1280:720"
	case "9:16":
		return "720:1280"
	case "1:1":
		return "960:960"
	default:
		return aspect
	}
}
