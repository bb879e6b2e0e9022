// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 streaming 把对话事件总线扇出到外部订阅者。

# 核心类型

  - Sink：事件接收方接口，由 Attach 启动的转发协程顺序调用
  - Hub：WebSocket 广播中心（github.com/coder/websocket），挂载在
    /ws/events，以 JSON 文本帧推送事件；发送队列已满的慢客户端会被断开
  - RedisPublisher：把同样的 JSON 发布到 Redis 频道，并在对话开始、
    完成、中止时更新状态键

# 使用示例

	hub := streaming.NewHub(streaming.DefaultHubConfig(), logger)
	stop := streaming.Attach(conv.Events(), hub, 256, 0, logger)
	defer stop()
	mux.Handle("/ws/events", hub)
*/
package streaming
