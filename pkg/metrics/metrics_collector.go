package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
// 覆盖三类指标：权威服务调用、缓存降级/回源、缓存分区状态
type MetricsCollector struct {
	// 权威服务指标
	authorityRequestsTotal   *prometheus.CounterVec
	authorityRequestDuration *prometheus.HistogramVec

	// 缓存协调指标
	cacheFallbacksTotal     *prometheus.CounterVec
	partitionRefreshesTotal *prometheus.CounterVec
	shadowWriteErrorsTotal  *prometheus.CounterVec

	// 缓存分区行数
	partitionRows *prometheus.GaugeVec
}

var (
	globalCollector *MetricsCollector
	once            sync.Once
)

// GetGlobalCollector 获取全局指标收集器（单例）
func GetGlobalCollector() *MetricsCollector {
	once.Do(func() {
		globalCollector = newMetricsCollector()
	})
	return globalCollector
}

func newMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		authorityRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authority_requests_total",
				Help: "Total number of calls to the remote benefits authority",
			},
			[]string{"operation", "status"},
		),

		authorityRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authority_request_duration_seconds",
				Help:    "Remote authority call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		cacheFallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_fallbacks_total",
				Help: "Reads served from the local cache because the authority was unreachable",
			},
			[]string{"operation"},
		),

		partitionRefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_partition_refreshes_total",
				Help: "Full partition replacements performed after a successful authority read",
			},
			[]string{"partition"},
		),

		shadowWriteErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_shadow_write_errors_total",
				Help: "Cache writes that failed after a successful authority call (logged, not raised)",
			},
			[]string{"partition"},
		),

		partitionRows: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_partition_rows",
				Help: "Current number of rows per cache partition",
			},
			[]string{"partition"},
		),
	}
}

// RecordAuthorityRequest 记录一次权威服务调用
func (m *MetricsCollector) RecordAuthorityRequest(operation, status string, duration time.Duration) {
	m.authorityRequestsTotal.WithLabelValues(operation, status).Inc()
	m.authorityRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheFallback 记录一次降级读取
func (m *MetricsCollector) RecordCacheFallback(operation string) {
	m.cacheFallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordPartitionRefresh 记录一次分区全量替换
func (m *MetricsCollector) RecordPartitionRefresh(partition string) {
	m.partitionRefreshesTotal.WithLabelValues(partition).Inc()
}

// RecordShadowWriteError 记录一次影子写失败
func (m *MetricsCollector) RecordShadowWriteError(partition string) {
	m.shadowWriteErrorsTotal.WithLabelValues(partition).Inc()
}

// SetPartitionRows 更新分区行数
func (m *MetricsCollector) SetPartitionRows(partition string, rows int64) {
	m.partitionRows.WithLabelValues(partition).Set(float64(rows))
}
