package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus instruments exposed on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	ExportJobs   *prometheus.CounterVec
	ActiveJobs   prometheus.Gauge
	LibraryFiles prometheus.Gauge
	Collections  prometheus.Gauge
}

// NewMetrics creates and registers all instruments on a fresh registry,
// alongside the standard Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentrysix",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status class.",
		}, []string{"method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentrysix",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ExportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentrysix",
			Name:      "export_jobs_total",
			Help:      "Export jobs by terminal outcome.",
		}, []string{"outcome"}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentrysix",
			Name:      "export_jobs_active",
			Help:      "Export jobs currently running.",
		}),
		LibraryFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentrysix",
			Name:      "library_files",
			Help:      "Files in the current library index.",
		}),
		Collections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentrysix",
			Name:      "library_collections",
			Help:      "Collections in the current library index.",
		}),
	}

	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.ExportJobs,
		m.ActiveJobs, m.LibraryFiles, m.Collections)
	return m
}
