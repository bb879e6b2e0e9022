// Copyright 2026 AgentForum Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package scenario 定义对话场景及其只读来源。

场景为 AI-1 至 AI-5 五个槽位各提供一段角色提示词，另可提供 !add_ai
的默认角色。YAMLSource 从文件读取，DBSource 通过 gorm 读写 scenarios 表；
Save 仅供 migrate --seed 导入使用。
*/
package scenario
