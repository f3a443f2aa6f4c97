package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"image-drop/internal/presence"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	uploadsTotal      prometheus.Counter
	uploadedFiles     prometheus.Counter
	uploadedBytes     prometheus.Counter
	uploadErrorsTotal *prometheus.CounterVec
	uploadDuration    prometheus.Histogram

	listingsTotal prometheus.Counter
}

// NewMetrics registers every collector on reg. When presence is non-nil the
// live guest count is exported as a gauge read at scrape time.
func NewMetrics(reg *prometheus.Registry, b *presence.Broadcaster) *Metrics {
	m := &Metrics{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagedrop_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagedrop_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		uploadsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_upload_batches_total",
			Help: "Total number of upload batches accepted",
		}),
		uploadedFiles: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_uploaded_files_total",
			Help: "Total number of image files stored",
		}),
		uploadedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_uploaded_bytes_total",
			Help: "Total bytes received in accepted upload batches",
		}),
		uploadErrorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagedrop_upload_errors_total",
				Help: "Total number of rejected or failed upload batches by reason",
			},
			[]string{"reason"},
		),
		uploadDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "imagedrop_upload_duration_seconds",
			Help: "Duration of upload batches from first byte to response",
			Buckets: []float64{
				0.01, // 10ms
				0.1,  // 100ms
				1,    // 1s
				10,   // 10s
				60,   // 1m
			},
		}),
		listingsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "imagedrop_listings_total",
			Help: "Total number of successful gallery listings",
		}),
	}

	if b != nil {
		promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Name: "imagedrop_guests_connected",
			Help: "Number of currently connected presence sessions",
		}, func() float64 { return float64(b.Snapshot()) })
	}
	return m
}

// RecordRequest counts one finished request.
func (m *Metrics) RecordRequest(route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordUpload counts an accepted batch.
func (m *Metrics) RecordUpload(files int, bytes int64, d time.Duration) {
	m.uploadsTotal.Inc()
	m.uploadedFiles.Add(float64(files))
	m.uploadedBytes.Add(float64(bytes))
	m.uploadDuration.Observe(d.Seconds())
}

// RecordUploadError counts a failed batch under reason.
func (m *Metrics) RecordUploadError(reason string) {
	m.uploadErrorsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordListing() {
	m.listingsTotal.Inc()
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
