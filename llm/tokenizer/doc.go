// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于消息日志的 token 统计
// 以及网关请求历史窗口的裁剪。
package tokenizer
