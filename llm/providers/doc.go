// Copyright 2026 AgentForum Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供跨模型服务商的通用适配与辅助能力，是具体 Provider
实现（openai、anthropic 子包）的公共基础层，负责配置结构与错误映射。

# 核心类型

  - Config — openai 与 anthropic 适配器共用的连接参数（APIKey、BaseURL、Model、Organization、Timeout、MaxTokens）

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 *types.Error（含 Retryable 标记）
  - MapTransportError — 将超时、连接失败等传输层错误映射为 NETWORK_ERROR / UPSTREAM_TIMEOUT
  - ChooseModel — 按请求 → 默认值 → 兜底顺序选择模型
*/
package providers
