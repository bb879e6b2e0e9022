package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/agentforum/llm/image"
	"github.com/BaSui01/agentforum/llm/search"
	"github.com/BaSui01/agentforum/llm/video"
)

// MockImageProvider 是 image.Provider 的模拟实现
type MockImageProvider struct {
	mu      sync.Mutex
	URL     string
	Err     error
	Prompts []string
}

// Generate 记录提示词并返回固定 URL
func (m *MockImageProvider) Generate(_ context.Context, req *image.GenerateRequest) (*image.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, req.Prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	resp := &image.GenerateResponse{Provider: "mock-image", Model: "mock", CreatedAt: time.Now()}
	if m.URL != "" {
		resp.Images = []image.ImageData{{URL: m.URL}}
	}
	return resp, nil
}

func (m *MockImageProvider) Name() string { return "mock-image" }

// MockVideoProvider 是 video.Provider 的模拟实现。Pending 为 true 时
// 返回未完成的任务。
type MockVideoProvider struct {
	mu      sync.Mutex
	URL     string
	TaskID  string
	Pending bool
	Err     error
	Prompts []string
}

// Generate 记录提示词并按配置返回完成或待处理的任务
func (m *MockVideoProvider) Generate(_ context.Context, req *video.GenerateRequest) (*video.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, req.Prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.response(), nil
}

// Status 返回当前配置的任务状态
func (m *MockVideoProvider) Status(_ context.Context, _ string) (*video.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.response(), nil
}

func (m *MockVideoProvider) response() *video.GenerateResponse {
	resp := &video.GenerateResponse{Provider: "mock-video", Model: "mock", TaskID: m.TaskID, Pending: m.Pending, CreatedAt: time.Now()}
	if !m.Pending && m.URL != "" {
		resp.Videos = []video.VideoData{{URL: m.URL}}
	}
	return resp
}

func (m *MockVideoProvider) Name() string { return "mock-video" }

// MockSearchProvider 是 search.Provider 的模拟实现
type MockSearchProvider struct {
	mu      sync.Mutex
	Results []search.Result
	Err     error
	Queries []string
	Options []search.Options
}

// Search 记录查询并返回固定结果
func (m *MockSearchProvider) Search(_ context.Context, query string, opts search.Options) ([]search.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	m.Options = append(m.Options, opts)
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]search.Result(nil), m.Results...), nil
}

func (m *MockSearchProvider) Name() string { return "mock-search" }
