// Copyright (c) AgentForum Authors.
// Licensed under the MIT License.

/*
Package types 提供 agentforum 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、config
等上层模块提供统一的错误码与上下文键。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - 上下文传播：WithTraceID / WithConversationID / WithParticipantID / WithRound

# 错误工具链

  - NewError / Errorf / WrapError 构造错误
  - AsError / CodeOf / IsErrorCode / IsRetryable 沿 Unwrap 链查询
  - Error.Is 按错误码比较，可直接用于 errors.Is
*/
package types
