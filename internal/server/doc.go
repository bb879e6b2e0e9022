// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
API 服务与 metrics 服务各持有一个 Manager，由 cmd/agentforum 通过
errgroup 并行运行；系统信号由调用方转换为 context 取消。

# 核心类型

  - Manager：持有 http.Server 与 net.Listener，
    提供 Start/Run/Shutdown 生命周期方法与 OnShutdown 关闭回调。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小、
    优雅关闭超时与可选的 TLS 配置。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在 ctx 结束或服务异常时触发优雅关闭并返回。
  - TLS：Config.TLSConfig 非空时以 HTTPS 监听，证书由 tlsutil 加载。
  - 关闭回调：OnShutdown 在关闭开始时执行，用于断开 /ws/events 长连接。
  - 状态查询：IsRunning/ListenAddr。
*/
package server
