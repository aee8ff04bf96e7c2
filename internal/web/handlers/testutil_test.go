package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-map/internal/config"
	"github.com/kozaktomas/photo-map/internal/constants"
	"github.com/kozaktomas/photo-map/internal/ingest"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/kozaktomas/photo-map/internal/preview"
	"github.com/rs/zerolog"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Geocoder: config.GeocoderConfig{Provider: config.ProviderGemini},
		Gemini:   config.GeminiConfig{APIKey: "test-key"},
		Map: config.MapConfig{
			DefaultLat:  constants.DefaultMapLat,
			DefaultLng:  constants.DefaultMapLng,
			DefaultZoom: constants.DefaultMapZoom,
			FocusZoom:   constants.FocusZoom,
		},
	}
}

// newTestStore creates an empty store backed by a fresh preview registry.
func newTestStore(t *testing.T) (*photo.Store, *preview.Registry) {
	t.Helper()
	previews := preview.NewRegistry(nil)
	return photo.NewStore(previews, zerolog.Nop(), nil), previews
}

// addPhoto inserts a placeholder and applies patch to it.
func addPhoto(t *testing.T, store *photo.Store, previews *preview.Registry, name string, patch photo.Patch) photo.Photo {
	t.Helper()
	data := []byte("image-" + name)
	p := photo.NewPlaceholder(name, "image/jpeg", data, previews.Create(data, "image/jpeg"))
	if err := store.AddPlaceholder(p); err != nil {
		t.Fatalf("failed to add placeholder: %v", err)
	}
	if patch != nil && !store.UpdateByID(p.ID, patch) {
		t.Fatalf("failed to patch photo %s", p.ID)
	}
	got, _ := store.Get(p.ID)
	return got
}

// processedAt returns a patch that marks a photo processed at a camera location.
func processedAt(lat, lng float64) photo.Patch {
	return func(p *photo.Photo) {
		p.State = photo.StateProcessed
		p.Location = &photo.Location{Lat: lat, Lng: lng}
		p.Provenance = photo.ProvenanceCamera
	}
}

// fakeIngester inserts placeholders the way the pipeline does and records the files.
type fakeIngester struct {
	store    *photo.Store
	previews *preview.Registry

	mu    sync.Mutex
	files []normalize.File
	ctx   context.Context
}

func (f *fakeIngester) Start(ctx context.Context, files []normalize.File) *ingest.Batch {
	f.mu.Lock()
	f.files = append(f.files, files...)
	f.ctx = ctx
	f.mu.Unlock()

	ids := make([]string, 0, len(files))
	for _, file := range files {
		p := photo.NewPlaceholder(file.Name, file.ContentType, file.Data, f.previews.Create(file.Data, file.ContentType))
		if err := f.store.AddPlaceholder(p); err != nil {
			continue
		}
		_ = f.store.SetActive(p.ID)
		ids = append(ids, p.ID)
	}
	return &ingest.Batch{IDs: ids}
}

// fakeTrigger records triggered ids and returns a configured error.
type fakeTrigger struct {
	err error

	mu  sync.Mutex
	ids []string
	ctx context.Context
}

func (f *fakeTrigger) Trigger(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	f.ctx = ctx
	return f.err
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
