// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集。

# 概述

Collector 通过 promauto.With 注册到调用方提供的 Registry，
同时实现 conversation.MetricsRecorder 与 gateway.Observer，
由 serve 子命令注入对话引擎与模型网关。

# 指标

  - turns_total{outcome}：回合结果
  - directives_total{kind,outcome}：指令执行结果
  - empty_retries_total：空回复重试次数
  - active_participants：活跃参与者数量
  - gateway_duration_seconds{provider,status}：网关调用耗时
  - http_requests_total / http_request_duration_seconds /
    http_response_size_bytes：HTTP 请求，状态码归类为 2xx/3xx/4xx/5xx
  - db_connections_open / db_connections_idle：数据库连接池
*/
package metrics
