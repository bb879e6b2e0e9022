// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 command 解析参与者输出中的带内指令。

# 语法

指令必须位于行首（允许前导空白），形如：

	!add_ai "标签" "人设"
	!image "描述"
	!video "描述"
	!search 查询词
	!prompt "新的系统提示词"
	!temperature 0.7
	!mute_self

参数使用双引号包裹，支持 \" 与 \\ 转义，可跨行；未加引号时整行剩余
部分作为单个参数。

# 容错

  - 引号未闭合：生成一条 Unparseable 指令，原文保留在展示文本中
  - 未知指令名：原样保留在展示文本中，并记录于 Result.Unknown
  - 温度值无法解析为有限小数：指令携带 INVALID_ARGUMENT 错误
  - 缺少必需参数：指令携带 MISSING_ARGUMENT 错误

Parse 是纯函数，不产生任何副作用；指令的执行由 conversation.Executor 负责。
*/
package command
