// Package tlsutil 集中管理 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）：
// 媒体与搜索适配器的 HTTP 客户端、Redis 与 OTLP collector 的出站连接，
// 以及 serve 子命令的服务端证书。
package tlsutil
