// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 基于 golang-migrate 管理 scenarios 表的结构迁移。

迁移脚本以 embed.FS 嵌入二进制，按 postgres 与 mysql 分目录存放，
通过 iofs 源驱动加载。sqlite 没有 SQL 迁移，返回 ErrUnsupported，
由 agent/scenario.DBSource.AutoMigrate 建表。

# 核心类型

  - Dialect：postgres 或 mysql，由 DialectFor 从 database.driver 解析
  - Migrator：Up、Down、Version、Status、Info、Close
  - SQLMigrator：golang-migrate 实现，版本记录在 agentforum_schema_migrations 表
  - CLI：migrate 子命令的文本输出
*/
package migration
