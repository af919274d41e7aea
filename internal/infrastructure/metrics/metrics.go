package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storeledger"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	PostingsTotal       *prometheus.CounterVec
	PostingRejections   *prometheus.CounterVec
	PostingDuration     *prometheus.HistogramVec
	ConsistencyFailures *prometheus.CounterVec
	CashboxResets       prometheus.Counter

	// Inventory and invoices
	InvoicesRecorded *prometheus.CounterVec
	StockAdjustments *prometheus.CounterVec

	// Dashboard metrics
	DashboardSourceFailures *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter

	// API metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	HTTPInFlight  prometheus.Gauge
	IPCRequests   *prometheus.CounterVec
	RateLimitHits prometheus.Counter
	AuthFailures  *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PostingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "postings_total",
				Help:      "Ledger entries posted, by ledger and type",
			},
			[]string{"ledger", "type"},
		),
		PostingRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "posting_rejections_total",
				Help:      "Rejected postings by ledger and reason",
			},
			[]string{"ledger", "reason"},
		),
		PostingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "posting_duration_seconds",
				Help:      "Duration of posting transactions",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"ledger"},
		),
		ConsistencyFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consistency_failures_total",
				Help:      "Ledgers whose replayed log disagreed with the cached balance",
			},
			[]string{"ledger"},
		),
		CashboxResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cashbox_resets_total",
			Help:      "Cashbox resets",
		}),

		InvoicesRecorded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoices_recorded_total",
				Help:      "Invoices recorded by kind",
			},
			[]string{"kind"},
		),
		StockAdjustments: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stock_adjustments_total",
				Help:      "Stock movements by direction",
			},
			[]string{"direction"},
		),

		DashboardSourceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_source_failures_total",
				Help:      "Dashboard figures that could not be computed, by source",
			},
			[]string{"source"},
		),

		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events published",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_failures_total",
			Help:      "Outbox events that failed to publish",
		}),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		IPCRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ipc_requests_total",
				Help:      "Requests served over the IPC bridge",
			},
			[]string{"method", "status"},
		),
		RateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		AuthFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total authentication failures",
			},
			[]string{"reason"},
		),
	}
}
