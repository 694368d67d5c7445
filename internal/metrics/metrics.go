package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for the events_dropped_total counter.
const (
	DropSpoolFull    = "spool_full"
	DropScrubbed     = "scrubbed"
	DropSpoolFailed  = "spool_failed"
	DropAbandoned    = "abandoned"
	DropEncodeFailed = "encode_failed"
)

// Upload outcomes for the upload_batches_total counter.
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"
	OutcomeRetried   = "retried"
)

// Metrics holds all Prometheus metrics for beacon.
type Metrics struct {
	EventsRecorded  prometheus.Counter
	EventsDropped   *prometheus.CounterVec
	EventsScrubbed  prometheus.Counter
	SpoolDepth      prometheus.Gauge
	UploadBatches   *prometheus.CounterVec
	UploadDuration  *prometheus.HistogramVec
	UploadsInFlight prometheus.Gauge
	TokenLookups    *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics. A nil registerer
// means the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsRecorded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "beacon",
				Name:      "events_recorded_total",
				Help:      "Total number of diagnostics events accepted into the spool",
			},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "beacon",
				Name:      "events_dropped_total",
				Help:      "Total number of events dropped before delivery, by reason",
			},
			[]string{"reason"},
		),
		EventsScrubbed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "beacon",
				Name:      "events_scrubbed_total",
				Help:      "Total number of events rewritten by the scrub hook",
			},
		),
		SpoolDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "beacon",
				Name:      "spool_depth",
				Help:      "Number of events currently spooled on disk",
			},
		),
		UploadBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "beacon",
				Name:      "upload_batches_total",
				Help:      "Total number of upload batches by target and outcome",
			},
			[]string{"target", "outcome"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "beacon",
				Name:      "upload_duration_seconds",
				Help:      "Upload round-trip latency histogram",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"target"},
		),
		UploadsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "beacon",
				Name:      "uploads_in_flight",
				Help:      "Current number of upload requests being processed",
			},
		),
		TokenLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "beacon",
				Name:      "token_lookups_total",
				Help:      "Total number of registration token lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordEvent counts an event accepted into the spool.
func (m *Metrics) RecordEvent() {
	m.EventsRecorded.Inc()
}

// DropEvent counts an event dropped before delivery.
func (m *Metrics) DropEvent(reason string) {
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// ScrubEvent counts an event the scrub hook rewrote.
func (m *Metrics) ScrubEvent() {
	m.EventsScrubbed.Inc()
}

// SetSpoolDepth updates the spool depth gauge.
func (m *Metrics) SetSpoolDepth(n int) {
	m.SpoolDepth.Set(float64(n))
}

// RecordUpload records metrics for a completed upload batch.
func (m *Metrics) RecordUpload(target, outcome string, durationSeconds float64) {
	m.UploadBatches.WithLabelValues(target, outcome).Inc()
	m.UploadDuration.WithLabelValues(target).Observe(durationSeconds)
}

// RecordTokenLookup records whether a token lookup found anything.
func (m *Metrics) RecordTokenLookup(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	m.TokenLookups.WithLabelValues(result).Inc()
}

// IncUploadsInFlight increments the in-flight uploads gauge.
func (m *Metrics) IncUploadsInFlight() {
	m.UploadsInFlight.Inc()
}

// DecUploadsInFlight decrements the in-flight uploads gauge.
func (m *Metrics) DecUploadsInFlight() {
	m.UploadsInFlight.Dec()
}
