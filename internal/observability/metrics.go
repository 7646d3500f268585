package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Recorder metrics
	RecordsEnqueued    *prometheus.CounterVec
	RecordsOverwritten *prometheus.CounterVec
	QueueDepth         *prometheus.GaugeVec
	CounterIncrements  *prometheus.CounterVec

	// Dump metrics
	Dumps        *prometheus.CounterVec
	DumpBytes    *prometheus.HistogramVec
	DumpDuration *prometheus.HistogramVec
	FilesRotated *prometheus.CounterVec
	DumpErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		RecordsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memlog_records_enqueued_total",
				Help: "Total number of records enqueued",
			},
			[]string{"type"},
		),
		RecordsOverwritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memlog_records_overwritten_total",
				Help: "Total number of records overwritten by a full queue",
			},
			[]string{"type"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memlog_queue_depth",
				Help: "Current number of records held in a queue",
			},
			[]string{"type"},
		),
		CounterIncrements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memlog_counter_increments_total",
				Help: "Total number of counter increments",
			},
			[]string{"type"},
		),

		Dumps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memlog_dumps_total",
				Help: "Total number of dumps attempted",
			},
			[]string{"type", "status"},
		),
		DumpBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memlog_dump_bytes",
				Help:    "Bytes written per dump",
				Buckets: prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
			},
			[]string{"type"},
		),
		DumpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memlog_dump_duration_seconds",
				Help:    "Duration of dump operations",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"type"},
		),
		FilesRotated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memlog_files_rotated_total",
				Help: "Total number of dump files deleted by rotation",
			},
			[]string{"type"},
		),
		DumpErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memlog_dump_errors_total",
				Help: "Total number of dump errors",
			},
			[]string{"type", "operation"},
		),
	}
}

// IncRecordsEnqueued increments the enqueued records counter.
func (m *Metrics) IncRecordsEnqueued(kind string) {
	m.RecordsEnqueued.WithLabelValues(kind).Inc()
}

// IncRecordsOverwritten increments the overwritten records counter.
func (m *Metrics) IncRecordsOverwritten(kind string) {
	m.RecordsOverwritten.WithLabelValues(kind).Inc()
}

// SetQueueDepth sets the queue depth gauge.
func (m *Metrics) SetQueueDepth(kind string, depth int) {
	m.QueueDepth.WithLabelValues(kind).Set(float64(depth))
}

// IncCounterIncrements increments the counter increments counter.
func (m *Metrics) IncCounterIncrements(kind string) {
	m.CounterIncrements.WithLabelValues(kind).Inc()
}

// IncDumps increments the dumps counter.
func (m *Metrics) IncDumps(kind, status string) {
	m.Dumps.WithLabelValues(kind, status).Inc()
}

// ObserveDumpBytes observes dump file size.
func (m *Metrics) ObserveDumpBytes(kind string, size float64) {
	m.DumpBytes.WithLabelValues(kind).Observe(size)
}

// ObserveDumpDuration observes dump duration.
func (m *Metrics) ObserveDumpDuration(kind string, seconds float64) {
	m.DumpDuration.WithLabelValues(kind).Observe(seconds)
}

// IncFilesRotated adds n to the rotated files counter.
func (m *Metrics) IncFilesRotated(kind string, n int) {
	m.FilesRotated.WithLabelValues(kind).Add(float64(n))
}

// IncDumpErrors increments dump errors counter.
func (m *Metrics) IncDumpErrors(kind, operation string) {
	m.DumpErrors.WithLabelValues(kind, operation).Inc()
}
