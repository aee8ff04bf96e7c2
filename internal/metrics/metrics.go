// Package metrics provides Prometheus metrics for the photo map.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the ingestion and enrichment paths.
type Metrics struct {
	// Photos that finished ingestion, by final lifecycle state
	PhotosIngested *prometheus.CounterVec

	// HEIC/HEIF transcodes
	Transcodes *prometheus.CounterVec

	// Time from placeholder insertion to the final update of one file
	IngestDuration prometheus.Histogram

	// Geocoding oracle calls
	GeocodeRequests *prometheus.CounterVec

	// Photos currently in the collection
	Photos prometheus.Gauge

	// Preview handles currently live
	PreviewHandles prometheus.Gauge
}

// New creates all metrics and registers them on reg.
// Passing a fresh prometheus.NewRegistry() keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PhotosIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photomap_photos_ingested_total",
			Help: "Total number of photos that completed ingestion",
		}, []string{"state"}), // state: processed, error

		Transcodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photomap_transcodes_total",
			Help: "Total number of HEIC/HEIF to JPEG transcodes",
		}, []string{"result"}), // result: success, failed

		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "photomap_ingest_duration_seconds",
			Help:    "Time taken to ingest a single file",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		GeocodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "photomap_geocode_requests_total",
			Help: "Total number of AI geocoding requests",
		}, []string{"result"}), // result: success, failed

		Photos: f.NewGauge(prometheus.GaugeOpts{
			Name: "photomap_photos",
			Help: "Number of photos in the collection",
		}),

		PreviewHandles: f.NewGauge(prometheus.GaugeOpts{
			Name: "photomap_preview_handles",
			Help: "Number of live preview handles",
		}),
	}
}

// NewNop returns metrics registered on a private registry, for callers that do not export them.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
