// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/llm/gateway"
)

var (
	_ conversation.MetricsRecorder = (*Collector)(nil)
	_ gateway.Observer             = (*Collector)(nil)
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

type conversationMetrics struct {
	turns        *prometheus.CounterVec // outcome: ok, skipped, empty, error
	directives   *prometheus.CounterVec
	emptyRetries prometheus.Counter
	participants prometheus.Gauge
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	size     *prometheus.HistogramVec
}

type poolMetrics struct {
	open *prometheus.GaugeVec
	idle *prometheus.GaugeVec
}

// Collector 汇总对话、网关、HTTP 与数据库连接池指标
type Collector struct {
	conv    conversationMetrics
	gateway *prometheus.HistogramVec
	http    httpMetrics
	pool    poolMetrics
}

// NewCollector 创建指标收集器并注册到 reg。reg 为 nil 时使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return f.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}

	c := &Collector{
		conv: conversationMetrics{
			turns:      counter("turns_total", "Total number of participant turns by outcome", "outcome"),
			directives: counter("directives_total", "Total number of executed directives", "kind", "outcome"),
			emptyRetries: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace, Name: "empty_retries_total", Help: "Total number of retries after an empty reply",
			}),
			participants: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace, Name: "active_participants", Help: "Number of active participants",
			}),
		},
		gateway: histogram("gateway_duration_seconds", "Model gateway call duration in seconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, "provider", "status"),
		http: httpMetrics{
			requests: counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
			latency:  histogram("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets, "method", "path"),
			size:     histogram("http_response_size_bytes", "HTTP response size in bytes", prometheus.ExponentialBuckets(100, 10, 8), "method", "path"),
		},
		pool: poolMetrics{
			open: gauge("db_connections_open", "Number of open database connections", "database"),
			idle: gauge("db_connections_idle", "Number of idle database connections", "database"),
		},
	}

	logger.Debug("metrics collector registered", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 💬 对话与网关
// =============================================================================

// RecordTurn 记录一个回合的结果
func (c *Collector) RecordTurn(outcome string) { c.conv.turns.WithLabelValues(outcome).Inc() }

// RecordDirective 记录一条指令的执行结果
func (c *Collector) RecordDirective(kind, outcome string) {
	c.conv.directives.WithLabelValues(kind, outcome).Inc()
}

// RecordEmptyRetry 记录空回复重试
func (c *Collector) RecordEmptyRetry() { c.conv.emptyRetries.Inc() }

// SetActiveParticipants 设置活跃参与者数量
func (c *Collector) SetActiveParticipants(n int) { c.conv.participants.Set(float64(n)) }

// ObserveGateway 记录一次网关调用
func (c *Collector) ObserveGateway(provider, status string, d time.Duration) {
	c.gateway.WithLabelValues(provider, status).Observe(d.Seconds())
}

// =============================================================================
// 🎯 HTTP 与连接池
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求，状态码按类别计数
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.http.requests.WithLabelValues(method, path, statusClass(status)).Inc()
	c.http.latency.WithLabelValues(method, path).Observe(duration.Seconds())
	c.http.size.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.pool.open.WithLabelValues(database).Set(float64(open))
	c.pool.idle.WithLabelValues(database).Set(float64(idle))
}

func statusClass(code int) string {
	if code < 200 || code >= 600 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
