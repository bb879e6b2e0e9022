// Copyright 2026 AgentForum Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package testutil 提供 AgentForum 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，自动注册 Cleanup
  - 断言工具: AssertLabels（发言者顺序）/ AssertErrorCode（types.Error 错误码）
  - 异步断言: AssertEventuallyTrue / WaitForEvent

# 子包

  - testutil/mocks: MockProvider（llm.Provider，支持脚本化响应与错误注入），
    以及图像、视频、搜索 Provider 的模拟实现
  - testutil/fixtures: 参与者种子、对话历史与场景 YAML 样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithName("mock").WithResponse("hello")
	gw := gateway.New(gateway.Config{DefaultProvider: "mock"}, nil)
	gw.Register(provider)
*/
package testutil
