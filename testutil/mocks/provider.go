// Package mocks 提供网关与对话测试使用的可脚本化 Provider 和媒体模拟。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/agentforum/llm"
)

// errFailAfter 由 WithFailAfter 配置的 Provider 在超出次数后返回
var errFailAfter = errors.New("mock provider: configured to fail after N calls")

// MockReply 是脚本中的一次回复，Err 非空时该次调用失败
type MockReply struct {
	Content string
	Err     error
}

// MockProviderCall 记录一次 Completion 调用及其结果
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// MockProvider 实现 llm.Provider。
//
// 回复优先级：固定错误 > 失败阈值 > 脚本 > 固定回复。
type MockProvider struct {
	mu        sync.Mutex
	name      string
	fallback  string
	script    []MockReply
	err       error
	delay     time.Duration
	failAfter int
	attempts  int
	calls     []MockProviderCall
}

// NewMockProvider 返回名为 "mock" 的 Provider，默认回复 "Mock response"
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock", fallback: "Mock response"}
}

// NewErrorProvider 每次调用都返回 err
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

// NewFlakeyProvider 前 failAfter 次返回 response，之后一律失败
func NewFlakeyProvider(failAfter int, response string) *MockProvider {
	return NewMockProvider().WithResponse(response).WithFailAfter(failAfter)
}

func (m *MockProvider) configure(fn func()) *MockProvider {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	return m
}

// WithName 设置名称，网关据此路由 "name/model"
func (m *MockProvider) WithName(name string) *MockProvider {
	return m.configure(func() { m.name = name })
}

// WithResponse 设置脚本耗尽后的固定回复
func (m *MockProvider) WithResponse(content string) *MockProvider {
	return m.configure(func() { m.fallback = content })
}

// WithScript 追加按顺序消费的回复
func (m *MockProvider) WithScript(replies ...MockReply) *MockProvider {
	return m.configure(func() { m.script = append(m.script, replies...) })
}

// WithError 让每次调用都失败
func (m *MockProvider) WithError(err error) *MockProvider {
	return m.configure(func() { m.err = err })
}

// WithDelay 在回复前等待 d，等待期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	return m.configure(func() { m.delay = d })
}

// WithFailAfter 让第 n 次之后的调用失败
func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	return m.configure(func() { m.failAfter = n })
}

// Name 实现 llm.Provider
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Completion 实现 llm.Provider
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := m.wait(ctx); err != nil {
		m.record(req, nil, err)
		return nil, err
	}

	m.mu.Lock()
	content, err := m.next()
	name := m.name
	m.mu.Unlock()
	if err != nil {
		m.record(req, nil, err)
		return nil, err
	}

	resp := &llm.ChatResponse{
		ID:           "mock-response-id",
		Provider:     name,
		Model:        req.Model,
		Content:      content,
		FinishReason: "stop",
		Usage:        usage(req, content),
		CreatedAt:    time.Now(),
	}
	m.record(req, resp, nil)
	return resp, nil
}

func (m *MockProvider) wait(ctx context.Context) error {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// next 决定本次回复，调用方持有 m.mu
func (m *MockProvider) next() (string, error) {
	m.attempts++
	switch {
	case m.err != nil:
		return "", m.err
	case m.failAfter > 0 && m.attempts > m.failAfter:
		return "", errFailAfter
	case len(m.script) > 0:
		reply := m.script[0]
		m.script = m.script[1:]
		return reply.Content, reply.Err
	default:
		return m.fallback, nil
	}
}

func usage(req *llm.ChatRequest, content string) llm.ChatUsage {
	prompt := len(req.Messages) * 10
	completion := len(content) / 4
	return llm.ChatUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func (m *MockProvider) record(req *llm.ChatRequest, resp *llm.ChatResponse, err error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
	m.mu.Unlock()
}

// GetCallCount 返回已记录的调用次数（含失败与取消）
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// GetLastCall 返回最近一次调用的副本，没有调用时返回 nil
func (m *MockProvider) GetLastCall() *MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	last := m.calls[len(m.calls)-1]
	return &last
}
