package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wastemetrics"

// Metrics holds the Prometheus collectors shared by the API, the import
// workers and the directory cache. Build one per process and pass it down.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: route, method, status
	HTTPDuration *prometheus.HistogramVec // labels: route

	RecordsAggregated   prometheus.Counter
	UnclassifiedRecords prometheus.Counter
	OutOfRangeSnapshots prometheus.Counter

	ImportsProcessed   *prometheus.CounterVec // labels: outcome={completed,failed}
	ImportRowsAccepted prometheus.Counter
	ImportRowsRejected prometheus.Counter

	DirectoryCache *prometheus.CounterVec // labels: result={hit,miss,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		RecordsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_aggregated_total",
			Help:      "Waste-stream records folded into period aggregates.",
		}),
		UnclassifiedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unclassified_records_total",
			Help:      "Records excluded because their treatment method is not recognised.",
		}),
		OutOfRangeSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "out_of_range_snapshots_total",
			Help:      "Company recovery rates outside the histogram range.",
		}),
		ImportsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_processed_total",
			Help:      "CSV imports processed by outcome.",
		}, []string{"outcome"}),
		ImportRowsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_accepted_total",
			Help:      "CSV rows stored as waste-stream records.",
		}),
		ImportRowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_rejected_total",
			Help:      "CSV rows rejected during validation.",
		}),
		DirectoryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_cache_total",
			Help:      "Company directory cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HTTPRequests,
		m.HTTPDuration,
		m.RecordsAggregated,
		m.UnclassifiedRecords,
		m.OutOfRangeSnapshots,
		m.ImportsProcessed,
		m.ImportRowsAccepted,
		m.ImportRowsRejected,
		m.DirectoryCache,
	}
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
