// Copyright 2026 AgentForum Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package search 提供网页搜索客户端，为 !search 指令返回可展示的文本。

HTTPProvider 调用通用的 JSON 搜索端点，去除摘要中的 HTML 标记；
Format 把结果渲染为编号列表，写入指令效果的 Result 字段。
*/
package search
