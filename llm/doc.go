// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义文本模型接入的最小公共模型：[Provider] 接口以及
[ChatRequest] / [ChatResponse] 请求响应结构。

# 概述

对话中的每个参与者都绑定一个 "provider/model" 形式的模型引用。
网关按前缀选出 [Provider]，把参与者的系统提示与对话历史组装为
[ChatRequest]，再把 [ChatResponse] 的 Content 作为原始回复交给
指令解析与执行。

Provider 只负责一次同步补全，不做重试、限流或熔断；这些由
llm/gateway 统一处理，因此各实现应关闭 SDK 自带的重试。

# 错误约定

Provider 失败时返回 *types.Error，错误码取自网关错误码：

  - NETWORK_ERROR / UPSTREAM_TIMEOUT：可重试
  - RATE_LIMITED：不重试，回合以拒绝效果结束
  - AUTHENTICATION / INVALID_REQUEST / MODEL_NOT_FOUND：不重试
  - UPSTREAM_ERROR：5xx 可重试，其余不重试

# 相关子包

  - llm/providers：OpenAI 兼容接口与 Anthropic Messages 接口实现
  - llm/gateway：模型路由、历史窗口、限流、重试、熔断与媒体适配
  - llm/retry：指数退避重试
  - llm/circuitbreaker：按 Provider 的熔断器
  - llm/tokenizer：tiktoken 计数与 CJK 估算器
  - llm/image、llm/video、llm/search：!image、!video、!search 指令的后端
*/
package llm
