package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/BaSui01/agentforum/llm"
	"github.com/BaSui01/agentforum/types"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 *types.Error
// 这是所有提供者使用的通用错误映射函数
func MapHTTPError(status int, msg string, provider string) *types.Error {
	e := &types.Error{
		Message:    msg,
		HTTPStatus: status,
		Provider:   provider,
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Code = types.ErrAuthentication
	case http.StatusTooManyRequests:
		e.Code = types.ErrRateLimited
		e.Retryable = true
	case http.StatusNotFound:
		e.Code = types.ErrModelNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		e.Code = types.ErrInvalidRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		e.Code = types.ErrUpstreamTimeout
		e.Retryable = true
	case http.StatusServiceUnavailable, http.StatusBadGateway, 529: // 529: 部分服务商的过载状态
		e.Code = types.ErrUpstreamError
		e.Retryable = true
	default:
		e.Code = types.ErrUpstreamError
		e.Retryable = status >= 500
	}
	return e
}

// MapTransportError 将非 HTTP 状态类错误（超时、连接失败等）映射为 *types.Error。
// 已经是 *types.Error 的错误原样返回。
func MapTransportError(err error, provider string) *types.Error {
	if err == nil {
		return nil
	}
	if e, ok := types.AsError(err); ok {
		return e
	}
	switch {
	case errors.Is(err, context.Canceled):
		return types.WrapError(err, types.ErrNetwork, "request cancelled").WithProvider(provider)
	case errors.Is(err, context.DeadlineExceeded):
		return types.WrapError(err, types.ErrUpstreamTimeout, "request timed out").
			WithProvider(provider).WithRetryable(true)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		code := types.ErrNetwork
		if netErr.Timeout() {
			code = types.ErrUpstreamTimeout
		}
		return types.WrapError(err, code, "transport failure").WithProvider(provider).WithRetryable(true)
	}
	return types.WrapError(err, types.ErrNetwork, "request failed").WithProvider(provider).WithRetryable(true)
}

// ReadErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return CompactMessage(string(data))
}

// ChooseModel 按请求、配置默认值、兜底模型的顺序选择模型名。
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}

// CompactMessage 把 SDK 错误文本压缩为单行，便于日志与 Effect 展示。
func CompactMessage(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}
