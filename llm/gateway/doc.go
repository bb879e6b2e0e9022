// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 gateway 把对话引擎的协作接口连接到具体的模型与媒体提供者。

# 文本补全

Gateway 实现 conversation.ModelGateway。模型引用写作 "provider/model"，
不带前缀时交给 DefaultProvider。每次调用的处理顺序：

  - 历史转换：发言者自己的发言为 assistant 消息，其余为 "标签: 内容" 的 user 消息
  - 按 MaxHistoryTokens 从最早的历史开始裁剪（tiktoken，失败时回退估算）
  - 令牌桶限流（golang.org/x/time/rate）
  - 对可重试错误做指数退避重试
  - 每个 Provider 独立的熔断器

# 媒体适配器

ImageAdapter、VideoAdapter、SearchAdapter 分别把 image、video、search
包的 Provider 适配为 conversation.ImageGenerator、VideoGenerator 与 Searcher。
*/
package gateway
