package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-map/internal/constants"
	"github.com/kozaktomas/photo-map/internal/enrich"
	"github.com/kozaktomas/photo-map/internal/ingest"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/kozaktomas/photo-map/internal/preview"
	"github.com/rs/zerolog"
)

// Ingester starts ingestion of a selection. *ingest.Pipeline implements it.
type Ingester interface {
	Start(ctx context.Context, files []normalize.File) *ingest.Batch
}

// LocationTrigger starts AI location enrichment. *enrich.Controller implements it.
type LocationTrigger interface {
	Trigger(ctx context.Context, id string) error
}

// PreviewSource resolves preview handles. *preview.Registry implements it.
type PreviewSource interface {
	Get(handle string) (preview.Blob, bool)
}

// PhotosHandler handles photo collection endpoints.
type PhotosHandler struct {
	store    *photo.Store
	ingester Ingester
	locator  LocationTrigger
	previews PreviewSource
	logger   zerolog.Logger

	// maxUploadSize caps the request body of one upload.
	maxUploadSize int64

	// baseCtx outlives single requests so background work survives the response.
	baseCtx context.Context
}

// NewPhotosHandler creates a new photos handler. Background ingestion and
// lookups run under baseCtx.
func NewPhotosHandler(
	baseCtx context.Context,
	store *photo.Store,
	ingester Ingester,
	locator LocationTrigger,
	previews PreviewSource,
	logger zerolog.Logger,
) *PhotosHandler {
	return &PhotosHandler{
		store:    store,
		ingester: ingester,
		locator:  locator,
		previews: previews,
		logger:   logger,
		baseCtx:  baseCtx,

		maxUploadSize: constants.MaxUploadSize,
	}
}

// PhotoResponse is a photo plus the URL its preview is served from.
type PhotoResponse struct {
	photo.Photo
	PreviewURL string `json:"preview_url"`
}

// CollectionResponse is the collection snapshot.
type CollectionResponse struct {
	Photos   []PhotoResponse `json:"photos"`
	ActiveID *string         `json:"active_id"`
}

// ActiveRequest selects a photo. A null id clears the selection.
type ActiveRequest struct {
	ID *string `json:"id"`
}

func toPhotoResponse(p photo.Photo) PhotoResponse {
	return PhotoResponse{
		Photo:      p,
		PreviewURL: "/api/v1/previews/" + preview.ID(p.PreviewHandle),
	}
}

func activeIDPtr(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// List returns all photos in selection order and the active id.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	resp := CollectionResponse{
		Photos:   make([]PhotoResponse, 0, len(snap.Photos)),
		ActiveID: activeIDPtr(snap.ActiveID),
	}
	for _, p := range snap.Photos {
		resp.Photos = append(resp.Photos, toPhotoResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns a single photo.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, errPhotoNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toPhotoResponse(p))
}

// readUploadedFiles reads multipart files in form order.
func readUploadedFiles(headers []*multipart.FileHeader) ([]normalize.File, error) {
	files := make([]normalize.File, 0, len(headers))
	for _, fh := range headers {
		data, err := func() ([]byte, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return io.ReadAll(f)
		}()
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %s", fh.Filename)
		}

		name := filepath.Base(fh.Filename)
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = normalize.ContentType(name, data)
		}
		files = append(files, normalize.File{Name: name, ContentType: contentType, Data: data})
	}
	return files, nil
}

// Upload ingests the multipart "files" field. Placeholders exist by the time
// the response is written; processing continues in the background.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(constants.MultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to remove multipart temp files")
		}
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files, err := readUploadedFiles(headers)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch := h.ingester.Start(h.baseCtx, files)
	h.logger.Info().Int("files", len(files)).Msg("ingestion started")

	respondJSON(w, http.StatusAccepted, map[string]any{
		"ids": batch.IDs,
	})
}

// Delete removes a photo and releases its preview handle.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, photo.ErrPhotoNotFound) {
			respondError(w, http.StatusNotFound, errPhotoNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Locate triggers an AI location lookup for a photo.
func (h *PhotosHandler) Locate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.locator.Trigger(h.baseCtx, id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
	case errors.Is(err, photo.ErrPhotoNotFound):
		respondError(w, http.StatusNotFound, errPhotoNotFound)
	case errors.Is(err, enrich.ErrAlreadyLocating), errors.Is(err, enrich.ErrDisplayNotReady):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Str("photo_id", sanitizeForLog(id)).Msg("failed to start location lookup")
		respondError(w, http.StatusInternalServerError, "failed to start location lookup")
	}
}

// GetActive returns the active photo id, or null.
func (h *PhotosHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ActiveRequest{ID: activeIDPtr(h.store.ActiveID())})
}

// SetActive changes the active selection.
func (h *PhotosHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	id := ""
	if req.ID != nil {
		id = *req.ID
	}
	if err := h.store.SetActive(id); err != nil {
		if errors.Is(err, photo.ErrPhotoNotFound) {
			respondError(w, http.StatusNotFound, errPhotoNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ActiveRequest{ID: activeIDPtr(id)})
}

// Preview serves the bytes behind a live preview handle.
func (h *PhotosHandler) Preview(w http.ResponseWriter, r *http.Request) {
	blob, ok := h.previews.Get(preview.Handle(chi.URLParam(r, "handle")))
	if !ok {
		respondError(w, http.StatusNotFound, "preview not found")
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
