package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsprep_images_processed_total",
			Help: "Source images handled by the normalizer, by outcome",
		},
		[]string{"status"},
	)

	BytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dsprep_bytes_written_total",
			Help: "Bytes of normalized images written",
		},
	)

	ImageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dsprep_image_duration_seconds",
			Help:    "Time to decode, normalize and encode one image",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	ClassesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dsprep_classes_processed_total",
			Help: "Class folders fully processed",
		},
	)

	RunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dsprep_last_run_duration_seconds",
			Help: "Wall time of the last normalization run",
		},
	)

	FilesUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsprep_files_uploaded_total",
			Help: "Files handled by the upload command, by outcome",
		},
		[]string{"provider", "status"},
	)
)

// RecordImage records one normalizer outcome.
func RecordImage(status string, bytes int64, took time.Duration) {
	ImagesProcessed.WithLabelValues(status).Inc()
	if bytes > 0 {
		BytesWritten.Add(float64(bytes))
	}
	ImageDuration.Observe(took.Seconds())
}

// RecordUpload records one upload outcome.
func RecordUpload(provider, status string) {
	FilesUploaded.WithLabelValues(provider, status).Inc()
}

// WriteFile dumps the default registry in text exposition format, for the
// node_exporter textfile collector.
func WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
