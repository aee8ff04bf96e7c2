package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-map/internal/mapsync"
	"github.com/kozaktomas/photo-map/internal/photo"
)

// MarkerSource is the map side of the synchronizer. *mapsync.Synchronizer implements it.
type MarkerSource interface {
	Markers() []mapsync.Marker
	MarkerActivated(id string) error
}

// MapHandler handles map endpoints.
type MapHandler struct {
	sync   MarkerSource
	stream *MapStream
}

// NewMapHandler creates a new map handler.
func NewMapHandler(sync MarkerSource, stream *MapStream) *MapHandler {
	return &MapHandler{sync: sync, stream: stream}
}

// Markers returns the current marker descriptors.
func (h *MapHandler) Markers(w http.ResponseWriter, r *http.Request) {
	markers := h.sync.Markers()
	if markers == nil {
		markers = []mapsync.Marker{}
	}
	respondJSON(w, http.StatusOK, markers)
}

// Activate handles a click on a marker.
func (h *MapHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sync.MarkerActivated(id); err != nil {
		if errors.Is(err, photo.ErrPhotoNotFound) {
			respondError(w, http.StatusNotFound, errPhotoNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"active_id": id})
}

// Events streams "markers" and "center" events.
func (h *MapHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamMapEvents(w, r, h.stream)
}
