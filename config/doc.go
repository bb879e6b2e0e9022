// Package config 提供 AgentForum 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → AGENTFORUM_ 前缀环境变量 的顺序合并，
// Validate 汇总全部错误后一次返回。Reloader 轮询配置文件，
// 变更后重新加载并即时应用日志级别。
package config
