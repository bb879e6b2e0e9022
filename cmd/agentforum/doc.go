// Copyright (c) AgentForum Authors.
// Licensed under the MIT License.

/*
Package main 提供 AgentForum 的程序入口。

# 概述

cmd/agentforum 把对话引擎、模型网关、媒体适配器、场景来源与事件
扇出组装在一起，提供前台运行、HTTP 服务、数据库迁移、健康检查和
版本查询等子命令。配置来自 YAML 文件与 AGENTFORUM_ 前缀的环境变量，
日志使用 zap，指标使用 Prometheus，链路追踪使用 OpenTelemetry。

# 核心类型

  - engine：一次对话运行所需的全部依赖（网关、数据库、Redis、遥测）
  - Server：API 与 Metrics 双端口服务，由 errgroup 并行运行
  - conversationHandler：对话快照、日志、取消与人类插话接口
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 子命令

  - run：前台运行一场对话，消息实时打印到标准输出
  - serve：后台运行对话并暴露 HTTP API、/ws/events 与 /metrics
  - migrate：up / down / version / status，--seed 导入 YAML 场景
  - version、health

# 中间件链

Recovery、RequestID、SecurityHeaders、RequestLogger、Metrics、
OTelTracing、CORS、RateLimiter（基于 IP），控制接口额外要求
JWT（HS256）或 X-API-Key。

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
