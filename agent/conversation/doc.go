// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conversation 提供多模型圆桌对话的编排引擎。

# 概述

多个由不同模型驱动的参与者按固定顺序轮流发言。每条回复中可以嵌入
以 "!" 开头的指令（邀请新参与者、生成图片/视频、搜索、修改自身
提示词与温度、静音一轮），引擎在回复写入日志之前解析并执行这些指令。

# 核心类型

  - Registry：参与者注册表，活跃参与者上限为 5，按加入顺序排列
  - Conversation：轮询调度器，负责回合、静音、空回复重试与取消
  - Executor：指令执行器，逐条执行并为每条指令生成 Effect
  - Log：只追加的消息日志，序号从 0 开始连续递增
  - EventBus：非阻塞事件广播，供界面与报表订阅

# 调度规则

  - 每一轮开始时对活跃参与者做快照，本轮新加入者从下一轮开始发言
  - 被静音的参与者跳过恰好一个回合
  - 空回复立即重试一次，仍为空则记录 EmptyResponse 效果并继续
  - 网关错误不会终止对话，记录 GatewayError 效果
  - 取消在当前参与者完成后生效，已完成的回合保留在日志中

# 协作方

模型网关、图片/视频生成、搜索与指标均以接口注入（ModelGateway、
ImageGenerator、VideoGenerator、Searcher、MetricsRecorder），
具体实现位于 llm 与 internal/metrics 包。

# 使用示例

	conv, err := conversation.New(seeds,
	    conversation.WithGateway(gw),
	    conversation.WithLogger(logger),
	)
	if err != nil {
	    return err
	}
	return conv.Run(ctx)
*/
package conversation
