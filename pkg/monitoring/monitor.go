package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// RealtimeConnections 当前实例上的 WebSocket 连接数
	RealtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Number of open realtime connections on this instance",
		},
	)

	// FanoutMessages 按事件类型统计的推送次数，result 为 published / failed / delivered / dropped
	FanoutMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_fanout_messages_total",
			Help: "Realtime fan-out messages by event kind and result",
		},
		[]string{"event", "result"},
	)

	// AttemptSubmissions 按触发原因统计交卷
	AttemptSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempt_submissions_total",
			Help: "Completed attempts by submission reason",
		},
		[]string{"reason"},
	)

	// ProctorViolations 按违规类型统计上报
	ProctorViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_violations_total",
			Help: "Accepted proctoring violation reports by type",
		},
		[]string{"type"},
	)

	// CredentialUpdateFailures 轮次开始/重置时凭证开关更新失败次数
	CredentialUpdateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_update_failures_total",
			Help: "Event credential testEnabled updates that failed",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			RealtimeConnections,
			FanoutMessages,
			AttemptSubmissions,
			ProctorViolations,
			CredentialUpdateFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
