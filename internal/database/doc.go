// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接与连接池管理。

# 核心类型

  - Open / Dialector：按 config.DatabaseConfig 的驱动名选择
    postgres、mysql 或 sqlite（github.com/glebarez/sqlite，纯 Go）方言。
  - Pool：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、Close()；
    后台定时探活，并通过 StatsRecorder 上报打开与空闲连接数。
  - Limits：连接上限，sqlite 固定为单连接。

场景表 scenarios 由 agent/scenario.DBSource 读写，表结构由
internal/migration 创建。
*/
package database
