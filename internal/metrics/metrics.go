// Package metrics provides Prometheus metrics for the transcription pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "audio_scribe"

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionsFailed  *prometheus.CounterVec
	ChunksReceived  *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	SlicesTotal     prometheus.Counter
	SlicesFailed    prometheus.Counter
	SavesTotal      prometheus.Counter
	UploadsFailed   prometheus.Counter
}

// Default is the global metrics instance.
var Default = New()

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_started_total",
			Help: "Number of processing runs started.",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_failed_total",
			Help: "Number of failed processing runs by failure kind.",
		}, []string{"kind"}),
		ChunksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_received_total",
			Help: "Streamed text chunks by stage.",
		}, []string{"stage"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Wall-clock duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		SlicesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slices_total",
			Help: "Number of audio slice requests.",
		}),
		SlicesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slices_failed_total",
			Help: "Number of failed audio slice requests.",
		}),
		SavesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "saves_total",
			Help: "Number of record save calls.",
		}),
		UploadsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audio_uploads_failed_total",
			Help: "Number of failed background audio uploads.",
		}),
	}
}
