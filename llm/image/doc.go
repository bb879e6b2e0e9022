// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 提供图像生成服务抽象与 OpenAI Images API 实现。

# 核心接口

  - Provider：图像生成提供者接口，包含 Generate 与 Name。
  - GenerateRequest / GenerateResponse：生成请求与响应模型。
  - ImageData：生成结果，Ref 返回 URL 或 data URI。

# 错误

HTTP 错误经 providers.MapHTTPError 映射为 *types.Error，
传输失败映射为 NETWORK_ERROR。
*/
package image
