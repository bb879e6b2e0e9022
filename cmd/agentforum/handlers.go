package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/types"
)

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// maxRequestBody 控制接口请求体上限
const maxRequestBody = 64 << 10

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeSuccess 写入成功响应
func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// writeError 写入错误响应。非 *types.Error 视为内部错误。
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	te, ok := types.AsError(err)
	if !ok {
		te = types.WrapError(err, types.ErrInternalError, "internal error")
	}
	status := te.HTTPStatus
	if status == 0 {
		status = httpStatus(te.Code)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("API error",
			zap.String("code", string(te.Code)),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		logger.Debug("API request rejected",
			zap.String("code", string(te.Code)),
			zap.String("path", r.URL.Path),
			zap.String("message", te.Message))
	}

	writeJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(te.Code),
			Message:   te.Message,
			Retryable: te.Retryable,
		},
		Timestamp: time.Now(),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// httpStatus 错误码到 HTTP 状态码映射
func httpStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest, types.ErrInvalidArgument, types.ErrMissingArgument:
		return http.StatusBadRequest
	case types.ErrAuthentication:
		return http.StatusUnauthorized
	case types.ErrInvalidState:
		return http.StatusConflict
	case types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrScenarioNotFound, types.ErrParticipantNotFound, types.ErrModelNotFound:
		return http.StatusNotFound
	case types.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// 💬 对话控制接口
// =============================================================================

// conversationHandler 暴露单场对话的快照、日志、取消与人类插话
type conversationHandler struct {
	conv   *conversation.Conversation
	logger *zap.Logger
}

func newConversationHandler(conv *conversation.Conversation, logger *zap.Logger) *conversationHandler {
	return &conversationHandler{
		conv:   conv,
		logger: logger.With(zap.String("component", "conversation_api")),
	}
}

// HandleSnapshot GET /api/v1/conversation
func (h *conversationHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, h.conv.Snapshot())
}

// messagesPage 是消息列表响应
type messagesPage struct {
	Messages []conversation.Message `json:"messages"`
	Next     int                    `json:"next"`
	Total    int                    `json:"total"`
}

// HandleMessages GET /api/v1/conversation/messages?since=N
// 返回 Sequence >= since 的消息，Next 可作为下一次轮询的 since。
func (h *conversationHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	since := 0
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, types.Errorf(types.ErrInvalidArgument, "since must be a non-negative integer, got %q", raw), h.logger)
			return
		}
		since = n
	}

	log := h.conv.Log()
	msgs := log.Since(since)
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	next := since
	if len(msgs) > 0 {
		next = msgs[len(msgs)-1].Sequence + 1
	}
	writeSuccess(w, r, http.StatusOK, messagesPage{
		Messages: msgs,
		Next:     next,
		Total:    log.Len(),
	})
}

// cancelRequest 是取消请求体，可为空
type cancelRequest struct {
	Reason string `json:"reason"`
}

// HandleCancel POST /api/v1/conversation/cancel
// 取消在当前回合完成后生效，因此返回 202。
func (h *conversationHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	switch h.conv.Status() {
	case conversation.StatusCompleted, conversation.StatusAborted:
		writeError(w, r, types.NewError(types.ErrInvalidState, "conversation has finished"), h.logger)
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled via API"
	}
	h.conv.Cancel(req.Reason)
	h.logger.Info("cancellation requested via API", zap.String("reason", req.Reason))
	writeSuccess(w, r, http.StatusAccepted, h.conv.Snapshot())
}

// injectRequest 是人类插话请求体
type injectRequest struct {
	Text string `json:"text"`
}

// HandleInject POST /api/v1/conversation/inject
// 仅 human-ai 模式可用，消息在下一个回合边界写入日志。
func (h *conversationHandler) HandleInject(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := h.conv.Inject(req.Text); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeSuccess(w, r, http.StatusAccepted, map[string]any{"queued": true})
}

// decodeJSON 解析请求体。allowEmpty 时空请求体不算错误。
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return types.WrapError(err, types.ErrInvalidRequest, "invalid JSON body")
	}
	return nil
}
