package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-map/internal/ai"
	"github.com/kozaktomas/photo-map/internal/config"
	"github.com/kozaktomas/photo-map/internal/constants"
	"github.com/kozaktomas/photo-map/internal/enrich"
	"github.com/kozaktomas/photo-map/internal/ingest"
	"github.com/kozaktomas/photo-map/internal/metadata"
	"github.com/kozaktomas/photo-map/internal/metrics"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/kozaktomas/photo-map/internal/preview"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// app wires the components shared by the serve and locate commands.
type app struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	previews *preview.Registry
	store    *photo.Store
	pipeline *ingest.Pipeline
	locator  ai.Locator
	enricher *enrich.Controller
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	locator, err := ai.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s locator: %w", cfg.Geocoder.Provider, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	normalize.StartupVips()

	previews := preview.NewRegistry(m)
	store := photo.NewStore(previews, logger, m)
	normalizer := normalize.NewNormalizer(normalize.NewVipsTranscoder(constants.TranscodeQuality), previews, m)
	extractor := metadata.NewExtractor(metadata.GoexifParser{})

	return &app{
		registry: registry,
		metrics:  m,
		previews: previews,
		store:    store,
		pipeline: ingest.NewPipeline(store, normalizer, extractor, previews, logger, m, constants.IngestConcurrency),
		locator:  locator,
		enricher: enrich.NewController(store, locator, logger, m),
	}, nil
}

// close waits for background work and releases every preview handle.
func (a *app) close() {
	a.pipeline.Wait()
	a.enricher.Wait()
	a.store.Clear()
	normalize.ShutdownVips()
}
