// Copyright 2026 AgentForum Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 openai 提供 OpenAI 模型的 Provider 适配实现，基于官方
github.com/openai/openai-go SDK 调用 Chat Completions API。

# 核心结构体

  - OpenAIProvider — 实现 llm.Provider，System 提示词作为首条 system 消息发送

# 错误映射

SDK 返回的 *openai.Error 按 HTTP 状态码映射为 *types.Error；
连接失败与超时映射为 NETWORK_ERROR / UPSTREAM_TIMEOUT。
SDK 自带的重试被关闭，由网关层统一重试。
*/
package openai
