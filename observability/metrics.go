package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records campaign and token operations executed by the node.
type LedgerMetrics struct {
	operations  *prometheus.CounterVec
	errors      *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	settlements *prometheus.CounterVec
	campaigns   prometheus.Gauge
	published   prometheus.Counter
	dropped     prometheus.Gauge
}

// RPCMetrics records JSON-RPC activity segmented by module and method.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "raise",
				Subsystem: "campaign",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "raise",
				Subsystem: "campaign",
				Name:      "errors_total",
				Help:      "Failed ledger operations segmented by operation and failure kind.",
			}, []string{"operation", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "raise",
				Subsystem: "campaign",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "raise",
				Subsystem: "campaign",
				Name:      "settlements_total",
				Help:      "Campaign settlements segmented by kind (withdrawn or refunded).",
			}, []string{"kind"}),
			campaigns: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "raise",
				Name:      "campaign_count",
				Help:      "Number of campaigns created on this node.",
			}),
			published: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "raise",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Committed ledger events published to subscribers.",
			}),
			dropped: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "raise",
				Subsystem: "events",
				Name:      "dropped_deliveries",
				Help:      "Event deliveries skipped because a subscriber buffer was full.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.errors,
			ledgerRegistry.latency,
			ledgerRegistry.settlements,
			ledgerRegistry.campaigns,
			ledgerRegistry.published,
			ledgerRegistry.dropped,
		)
	})
	return ledgerRegistry
}

// Observe records the outcome of an operation. kind is the failure kind for
// failed operations and ignored otherwise.
func (m *LedgerMetrics) Observe(operation string, kind string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if failed {
		outcome = "error"
		if kind == "" {
			kind = "Internal"
		}
		m.errors.WithLabelValues(operation, kind).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSettlement increments the settlement counter for kind.
func (m *LedgerMetrics) RecordSettlement(kind string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind).Inc()
}

// SetCampaignCount updates the campaign gauge.
func (m *LedgerMetrics) SetCampaignCount(count uint64) {
	if m == nil {
		return
	}
	m.campaigns.Set(float64(count))
}

// RecordPublished adds n to the published events counter.
func (m *LedgerMetrics) RecordPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.published.Add(float64(n))
}

// SetDroppedDeliveries mirrors the event bus drop count.
func (m *LedgerMetrics) SetDroppedDeliveries(total uint64) {
	if m == nil {
		return
	}
	m.dropped.Set(float64(total))
}

// RPC returns the lazily-initialised RPC metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "raise",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "raise",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and JSON-RPC code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "raise",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "raise",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records a handled request. code is the JSON-RPC error code, zero on
// success.
func (m *RPCMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, strconv.Itoa(code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *RPCMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
