package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once 用来保证指标只注册一次。
	// Prometheus 的 registry 不允许重复注册同名指标，否则会直接 panic。
	once sync.Once

	// ResolveTotal：解析结果计数（Counter）。
	//
	// labels：
	// - outcome：ok / not_found / inactive / internal_error
	ResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_resolve_total",
			Help: "短码解析的总数（按结果分类）",
		},
		[]string{"outcome"},
	)

	// ResolveDurationSeconds：解析耗时分布（Histogram），用于算 P95/P99。
	ResolveDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "link_resolve_duration_seconds",
			Help:    "Link resolution latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CacheOperations：缓存命中情况。
	//
	// labels：
	// - layer：l1（本地）/ l2（redis）
	// - result：hit / hit_negative / miss / error
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_cache_operations_total",
			Help: "缓存读取结果（按层级和结果分类）",
		},
		[]string{"layer", "result"},
	)

	// StatusTransitions：状态机流转计数。
	// 惰性过期（active -> inactive）走的也是这里，便于观察过期量。
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_status_transitions_total",
			Help: "链接状态流转次数",
		},
		[]string{"from", "to"},
	)

	// UsageEventsDropped：异步使用事件被丢弃的次数（缓冲满）。
	UsageEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "link_usage_events_dropped_total",
			Help: "因缓冲区满被丢弃的使用事件数",
		},
	)
)

// Init 注册指标：只允许注册一次（否则 panic: duplicate metrics collector registration）
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			ResolveTotal,
			ResolveDurationSeconds,
			CacheOperations,
			StatusTransitions,
			UsageEventsDropped,
		)
	})
}
