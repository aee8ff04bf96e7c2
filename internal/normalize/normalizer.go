// Package normalize turns uploaded files into blobs any image viewer can render.
// HEIC/HEIF input is transcoded to JPEG, everything else passes through untouched.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/photo-map/internal/metrics"
)

// JPEGContentType is the content type of transcoded output.
const JPEGContentType = "image/jpeg"

// heifTypes are the declared MIME types that need transcoding.
var heifTypes = map[string]bool{
	"image/heic":          true,
	"image/heif":          true,
	"image/heic-sequence": true,
	"image/heif-sequence": true,
}

// ErrNoVariants is returned when the transcoder produced nothing.
var ErrNoVariants = errors.New("transcoder returned no images")

// Transcoder converts image data to the requested format. Multi-image
// containers may yield several variants.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, format string) ([][]byte, error)
}

// HandleAllocator allocates preview handles. preview.Registry implements it.
type HandleAllocator interface {
	Create(data []byte, contentType string) string
}

// File is one user-selected file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the display-ready form of a file.
type Result struct {
	Data        []byte
	ContentType string
	// Handle is set only when a new blob was produced.
	Handle     string
	Transcoded bool
}

// Normalizer decides whether a file needs transcoding and performs it.
type Normalizer struct {
	transcoder Transcoder
	handles    HandleAllocator
	metrics    *metrics.Metrics
}

// NewNormalizer creates a normalizer. m may be nil.
func NewNormalizer(transcoder Transcoder, handles HandleAllocator, m *metrics.Metrics) *Normalizer {
	return &Normalizer{
		transcoder: transcoder,
		handles:    handles,
		metrics:    m,
	}
}

// NeedsTranscode reports whether a file is HEIC/HEIF by declared type or by name.
// Both are checked because browsers and OSes disagree on the MIME type.
func NeedsTranscode(contentType, name string) bool {
	if heifTypes[strings.ToLower(strings.TrimSpace(contentType))] {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".heic", ".heif":
		return true
	}
	return false
}

// Normalize returns a renderable blob for f. Files that need no transcoding are
// returned as-is without allocating a handle.
func (n *Normalizer) Normalize(ctx context.Context, f File) (*Result, error) {
	if !NeedsTranscode(f.ContentType, f.Name) {
		return &Result{Data: f.Data, ContentType: f.ContentType}, nil
	}

	variants, err := n.transcoder.Transcode(ctx, f.Data, "jpeg")
	if err == nil && len(variants) == 0 {
		err = ErrNoVariants
	}
	if err != nil {
		n.observe("failed")
		return nil, fmt.Errorf("failed to transcode %s: %w", f.Name, err)
	}
	n.observe("success")

	data := variants[0]
	return &Result{
		Data:        data,
		ContentType: JPEGContentType,
		Handle:      n.handles.Create(data, JPEGContentType),
		Transcoded:  true,
	}, nil
}

func (n *Normalizer) observe(result string) {
	if n.metrics != nil {
		n.metrics.Transcodes.WithLabelValues(result).Inc()
	}
}
