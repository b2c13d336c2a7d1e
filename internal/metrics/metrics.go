package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zencloud",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zencloud",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zencloud",
			Subsystem: "ops",
			Name:      "operations_total",
			Help:      "Instance operations by outcome of the background provider call.",
		},
		[]string{"operation", "result"},
	)
	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zencloud",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Full reconciliation passes by resource and outcome.",
		},
		[]string{"resource", "result"},
	)
)

// Register 注册所有指标,可重复调用
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, operations, syncPasses)
	})
}

// RecordHTTPRequest 记录一次 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	Register()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordOperation 记录一次实例操作的后台结果
func RecordOperation(operation string, success bool) {
	Register()
	result := "success"
	if !success {
		result = "failure"
	}
	operations.WithLabelValues(operation, result).Inc()
}

// RecordSyncPass 记录一次全量同步
func RecordSyncPass(resource string, degraded bool) {
	Register()
	result := "ok"
	if degraded {
		result = "degraded"
	}
	syncPasses.WithLabelValues(resource, result).Inc()
}
