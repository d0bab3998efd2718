package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics
var (
	QueueFilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_files_processed_total",
			Help: "Total number of files that finished processing",
		},
		[]string{"kind", "status"}, // status: "done", "failed"
	)

	QueuePipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration per file",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_queue_depth",
			Help: "Number of files currently queued for processing",
		},
	)

	QueueProcessing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_processing",
			Help: "Whether a file is currently being processed (1 = busy, 0 = idle)",
		},
	)

	QueueStaleSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_stale_processing_swept_total",
			Help: "Total number of stale PROCESSING rows swept to FAILED",
		},
	)

	QueueExpiredReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_expired_files_reaped_total",
			Help: "Total number of expired provisional files deleted",
		},
	)
)

// Subprocess metrics
var (
	SubprocessRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_subprocess_runs_total",
			Help: "Total number of ffmpeg/ffprobe invocations",
		},
		[]string{"operation", "status"}, // operation: probe, transcode, screenshot, loudness, waveform
	)

	SubprocessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_subprocess_duration_seconds",
			Help:    "Subprocess wall-clock duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)
)

// Catalog metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_db_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Storage metrics
var (
	StorageRelocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_storage_relocations_total",
			Help: "Total number of artifact relocations into content storage",
		},
		[]string{"status"},
	)

	StorageRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_storage_retry_attempts_total",
			Help: "Total number of retried filesystem operations",
		},
		[]string{"operation"},
	)

	StorageBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_storage_bytes_written_total",
			Help: "Total bytes relocated into content storage",
		},
	)
)

// HTTP metrics for the ops listener
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_http_requests_total",
			Help: "Total number of HTTP requests to the ops listener",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_http_requests_in_flight",
			Help: "Number of ops listener requests currently being served",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_http_request_duration_seconds",
			Help:    "Ops listener request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
