package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-map/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	photosHandler := handlers.NewPhotosHandler(
		s.deps.BaseCtx,
		s.deps.Store,
		s.deps.Ingester,
		s.deps.Locator,
		s.deps.Previews,
		s.logger,
	)
	mapHandler := handlers.NewMapHandler(s.deps.Markers, s.deps.Stream)
	configHandler := handlers.NewConfigHandler(s.config, s.deps.Oracle)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		// Photos
		r.Get("/photos", photosHandler.List)
		r.Post("/photos", photosHandler.Upload)
		r.Get("/photos/{id}", photosHandler.Get)
		r.Delete("/photos/{id}", photosHandler.Delete)
		r.Post("/photos/{id}/locate", photosHandler.Locate)
		r.Get("/previews/{handle}", photosHandler.Preview)

		// Selection
		r.Get("/active", photosHandler.GetActive)
		r.Put("/active", photosHandler.SetActive)

		// Map
		r.Get("/map/markers", mapHandler.Markers)
		r.Post("/map/markers/{id}/activate", mapHandler.Activate)
		r.Get("/map/events", mapHandler.Events)
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a landing page pointing at the API.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Photo Map</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Photo Map</h1>
        <p>Upload photos with <code>POST /api/v1/photos</code> and follow the map at <a href="/api/v1/map/events">/api/v1/map/events</a>.</p>
        <p>Health: <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
