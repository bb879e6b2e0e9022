// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 video 提供视频生成接口与 Runway 实现。

# 概述

视频生成是异步任务：Generate 提交任务后在 RunwayConfig.WaitFor 窗口内
轮询，窗口内完成则返回视频地址，否则返回 Pending 响应与 TaskID，
调用方可稍后通过 Status 查询。

# 核心类型

  - Provider：Generate / Status / Name
  - GenerateRequest / GenerateResponse / VideoData
  - RunwayProvider：Runway text_to_video 与 image_to_video
*/
package video
