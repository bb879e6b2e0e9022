// 版权所有 2024 AgentForum Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 封装 go-redis 客户端，供对话事件发布到 Redis 频道并维护
每场对话的最新状态键。

# 核心类型

  - Client：由 Dial 按 config.RedisConfig 建立，提供 Publish/Subscribe
    与 Put/Get（JSON 编码的状态键）。
  - Option：WithDefaultTTL 设置状态键默认过期时间，WithHealthCheck
    设置后台 Ping 间隔。

# 主要能力

  - TLS：RedisConfig.TLSEnabled 时使用 tlsutil.ClientConfig。
  - 错误语义：ErrCacheMiss（键不存在）与 ErrClosed（已关闭）。
*/
package cache
