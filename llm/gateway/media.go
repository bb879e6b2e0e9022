package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/llm/image"
	"github.com/BaSui01/agentforum/llm/search"
	"github.com/BaSui01/agentforum/llm/video"
	"github.com/BaSui01/agentforum/types"
)

// ImageAdapter 将 image.Provider 适配为 conversation.ImageGenerator。
type ImageAdapter struct {
	provider image.Provider
	logger   *zap.Logger
}

var _ conversation.ImageGenerator = (*ImageAdapter)(nil)

// NewImageAdapter 创建图像适配器
func NewImageAdapter(p image.Provider, logger *zap.Logger) *ImageAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageAdapter{provider: p, logger: logger.With(zap.String("component", "image_adapter"))}
}

// GenerateImage 生成一张图像并返回其引用
func (a *ImageAdapter) GenerateImage(ctx context.Context, description string) (string, error) {
	resp, err := a.provider.Generate(ctx, &image.GenerateRequest{Prompt: description, N: 1})
	if err != nil {
		return "", err
	}
	for _, img := range resp.Images {
		if ref := img.Ref(); ref != "" {
			a.logger.Debug("image generated", zap.String("provider", resp.Provider), zap.String("model", resp.Model))
			return ref, nil
		}
	}
	return "", types.NewError(types.ErrUpstreamError, "image provider returned no images").
		WithProvider(a.provider.Name())
}

// VideoAdapter 将 video.Provider 适配为 conversation.VideoGenerator。
// 未在等待窗口内完成的任务以 Pending 返回，Ref 为任务 ID。
type VideoAdapter struct {
	provider video.Provider
	logger   *zap.Logger
}

var _ conversation.VideoGenerator = (*VideoAdapter)(nil)

// NewVideoAdapter 创建视频适配器
func NewVideoAdapter(p video.Provider, logger *zap.Logger) *VideoAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoAdapter{provider: p, logger: logger.With(zap.String("component", "video_adapter"))}
}

// GenerateVideo 提交视频任务
func (a *VideoAdapter) GenerateVideo(ctx context.Context, description string) (conversation.VideoJob, error) {
	resp, err := a.provider.Generate(ctx, &video.GenerateRequest{Prompt: description})
	if err != nil {
		return conversation.VideoJob{}, err
	}
	if resp.Pending {
		a.logger.Info("video task deferred", zap.String("task_id", resp.TaskID))
		return conversation.VideoJob{Ref: resp.TaskID, Pending: true}, nil
	}
	for _, v := range resp.Videos {
		if v.URL != "" {
			return conversation.VideoJob{Ref: v.URL}, nil
		}
	}
	return conversation.VideoJob{}, types.NewError(types.ErrUpstreamError, "video provider returned no videos").
		WithProvider(a.provider.Name())
}

// SearchAdapter 将 search.Provider 适配为 conversation.Searcher，
// 结果渲染为编号文本。
type SearchAdapter struct {
	provider search.Provider
	opts     search.Options
}

var _ conversation.Searcher = (*SearchAdapter)(nil)

// NewSearchAdapter 创建搜索适配器，opts 为每次搜索使用的选项
func NewSearchAdapter(p search.Provider, opts search.Options) *SearchAdapter {
	return &SearchAdapter{provider: p, opts: opts}
}

// Search 执行搜索并返回可展示文本
func (a *SearchAdapter) Search(ctx context.Context, query string) (string, error) {
	results, err := a.provider.Search(ctx, query, a.opts)
	if err != nil {
		return "", err
	}
	return search.Format(query, results), nil
}
