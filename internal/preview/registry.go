// Package preview hands out revocable handles to in-memory image blobs.
// A handle plays the role of an object URL: it stays valid until revoked
// and must be revoked exactly once by its owner.
package preview

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-map/internal/metrics"
)

// handlePrefix marks strings issued by a Registry.
const handlePrefix = "blob:"

// ErrHandleNotFound is returned when a handle is unknown or already revoked.
var ErrHandleNotFound = errors.New("preview handle not found")

// Blob is the content behind a handle.
type Blob struct {
	Data        []byte
	ContentType string
}

// Registry stores blobs by handle.
type Registry struct {
	mu      sync.RWMutex
	blobs   map[string]Blob
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		blobs:   make(map[string]Blob),
		metrics: m,
	}
}

// Create registers data and returns a new handle for it.
func (r *Registry) Create(data []byte, contentType string) string {
	handle := handlePrefix + uuid.NewString()

	r.mu.Lock()
	r.blobs[handle] = Blob{Data: data, ContentType: contentType}
	n := len(r.blobs)
	r.mu.Unlock()

	r.observe(n)
	return handle
}

// Get returns the blob behind a live handle.
func (r *Registry) Get(handle string) (Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[handle]
	return b, ok
}

// Revoke releases a handle. Revoking twice returns ErrHandleNotFound.
func (r *Registry) Revoke(handle string) error {
	r.mu.Lock()
	if _, ok := r.blobs[handle]; !ok {
		r.mu.Unlock()
		return ErrHandleNotFound
	}
	delete(r.blobs, handle)
	n := len(r.blobs)
	r.mu.Unlock()

	r.observe(n)
	return nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// ID strips the scheme prefix so a handle can be used as a URL path segment.
func ID(handle string) string {
	return strings.TrimPrefix(handle, handlePrefix)
}

// Handle restores a handle from a URL path segment produced by ID.
func Handle(id string) string {
	return handlePrefix + id
}

func (r *Registry) observe(n int) {
	if r.metrics != nil {
		r.metrics.PreviewHandles.Set(float64(n))
	}
}
