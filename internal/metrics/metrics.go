// Package metrics 服务端 Prometheus 指标
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pointstream"

// Registry 服务端专用的指标注册表
var Registry = prometheus.NewRegistry()

var (
	ticksCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Number of scheduler ticks, including ticks without subscribers.",
		},
	)
	framesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_published_total",
			Help:      "Number of frames packaged and handed to the fanout.",
		},
	)
	framesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Number of per-subscriber frame copies dropped because the subscriber queue was full.",
		},
	)
	computeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_latency_microseconds",
			Help:      "Wall-clock duration of one transform call.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 16),
		},
		[]string{"engine"},
	)
	skippedComputes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_skipped_total",
			Help:      "Number of ticks whose engine selector had no backend.",
		},
	)
	commandsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_commands_total",
			Help:      "Control commands received, by kind and result.",
		},
		[]string{"kind", "result"},
	)
	connectionsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Currently open client connections, by transport.",
		},
		[]string{"transport"},
	)
)

// 控制命令处理结果
const (
	ResultApplied   = "applied"
	ResultRejected  = "rejected"
	ResultMalformed = "malformed"
	ResultLimited   = "rate_limited"
)

var registerMetrics sync.Once

// Register 注册全部指标（可重复调用）
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(
			ticksCounter,
			framesPublished,
			framesDropped,
			computeLatency,
			skippedComputes,
			commandsCounter,
			connectionsGauge,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTick 记录一次调度 tick
func RecordTick() {
	ticksCounter.Inc()
}

// RecordFramePublished 记录一帧被打包发布
func RecordFramePublished() {
	framesPublished.Inc()
}

// RecordFrameDropped 记录一个订阅者丢弃的帧
func RecordFrameDropped() {
	framesDropped.Inc()
}

// RecordComputeLatency 记录一次变换耗时
func RecordComputeLatency(engine string, us float64) {
	computeLatency.WithLabelValues(engine).Observe(us)
}

// RecordComputeSkipped 记录未知引擎导致的跳过
func RecordComputeSkipped() {
	skippedComputes.Inc()
}

// RecordCommand 记录一条控制命令
func RecordCommand(kind, result string) {
	commandsCounter.WithLabelValues(kind, result).Inc()
}

// ConnectionOpened / ConnectionClosed 维护连接数
func ConnectionOpened(transport string) {
	connectionsGauge.WithLabelValues(transport).Inc()
}

func ConnectionClosed(transport string) {
	connectionsGauge.WithLabelValues(transport).Dec()
}
