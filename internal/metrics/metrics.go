package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 应用自己的指标注册表, 避免和默认注册表冲突
var Registry = prometheus.NewRegistry()

var (
	ChainCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrofund",
			Subsystem: "chain",
			Name:      "calls_total",
			Help:      "Total number of chain gateway calls.",
		},
		[]string{"method", "result"}, // result: ok/error/rejected
	)

	ChainCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrofund",
			Subsystem: "chain",
			Name:      "call_duration_seconds",
			Help:      "Duration of chain gateway calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"method"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agrofund",
			Subsystem: "chain",
			Name:      "circuitbreaker_state",
			Help:      "Chain circuit breaker state (0/1).",
		},
		[]string{"state"}, // closed/open/half-open
	)

	DegradedReads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agrofund",
			Subsystem: "funding",
			Name:      "degraded_reads_total",
			Help:      "Funding views served from local records because the chain was unreachable.",
		},
	)

	Contributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrofund",
			Subsystem: "funding",
			Name:      "contributions_total",
			Help:      "Contribution write attempts by outcome.",
		},
		[]string{"result"}, // confirmed/conflict/rejected/error
	)

	Deployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrofund",
			Subsystem: "project",
			Name:      "deployments_total",
			Help:      "On-chain project deployments by outcome.",
		},
		[]string{"result"}, // created/failed
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrofund",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrofund",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ChainCalls, ChainCallDuration, BreakerState,
		DegradedReads, Contributions, Deployments,
		httpRequests, httpDuration,
	)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveChainCall 记录一次链调用
func ObserveChainCall(method, result string, started time.Time) {
	ChainCalls.WithLabelValues(method, result).Inc()
	ChainCallDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

// SetBreakerState 把熔断器状态写成互斥的gauge
func SetBreakerState(state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		BreakerState.WithLabelValues(s).Set(v)
	}
}

// ObserveHTTPRequest 记录一次HTTP请求
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
