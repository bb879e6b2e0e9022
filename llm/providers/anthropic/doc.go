// Copyright 2026 AgentForum Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 anthropic 提供 Claude 模型的 Provider 适配实现，基于官方
github.com/anthropics/anthropic-sdk-go SDK 调用 Messages API。

# 核心结构体

  - ClaudeProvider — 实现 llm.Provider

# 协议适配

  - System 提示词放入 system 字段，而不是消息列表
  - 相邻同角色消息合并，首条消息保证为 user
  - 温度截断到 Anthropic 支持的 [0, 1] 区间
  - MaxTokens 为必填项，未配置时默认 1024
*/
package anthropic
