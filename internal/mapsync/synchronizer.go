// Package mapsync keeps a map renderer in step with the photo collection:
// one marker per located photo, and the camera following the active photo.
package mapsync

import (
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/photo-map/internal/photo"
)

// Marker describes one located photo on the map.
type Marker struct {
	ID     string  `json:"id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Active bool    `json:"active"`
}

// Camera is a centerOn command for the renderer.
type Camera struct {
	Lat      float64       `json:"lat"`
	Lng      float64       `json:"lng"`
	Zoom     int           `json:"zoom"`
	Duration time.Duration `json:"duration"`
}

// Renderer is the map rendering boundary. Calls arrive from inside store
// notifications and must not block or call back into the store.
type Renderer interface {
	SetMarkers(markers []Marker)
	CenterOn(camera Camera)
}

// Options tune camera movement.
type Options struct {
	FocusZoom   int
	FlyDuration time.Duration
}

// Synchronizer subscribes to a store and drives a renderer.
type Synchronizer struct {
	store    *photo.Store
	renderer Renderer
	opts     Options

	mu          sync.Mutex
	markers     []Marker
	activeID    string
	activeLoc   *photo.Location
	unsubscribe func()
}

// New creates a synchronizer. Call Start to begin tracking the store.
func New(store *photo.Store, renderer Renderer, opts Options) *Synchronizer {
	return &Synchronizer{
		store:    store,
		renderer: renderer,
		opts:     opts,
	}
}

// Start subscribes to the store. The renderer immediately receives the current markers.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	unsubscribe := s.store.Subscribe(s.onChange)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Stop unsubscribes from the store.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Markers returns the markers last sent to the renderer.
func (s *Synchronizer) Markers() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.markers)
}

// MarkerActivated handles a marker click from the renderer.
func (s *Synchronizer) MarkerActivated(id string) error {
	return s.store.SetActive(id)
}

func (s *Synchronizer) onChange(snap photo.Snapshot) {
	markers := BuildMarkers(snap)
	active, hasActive := snap.Active()

	s.mu.Lock()
	markersChanged := s.markers == nil || !slices.Equal(markers, s.markers)
	s.markers = markers

	var center *Camera
	if hasActive && active.Location != nil {
		moved := s.activeLoc == nil || *s.activeLoc != *active.Location
		if active.ID != s.activeID || moved {
			center = &Camera{
				Lat:      active.Location.Lat,
				Lng:      active.Location.Lng,
				Zoom:     s.opts.FocusZoom,
				Duration: s.opts.FlyDuration,
			}
		}
	}
	s.activeID = snap.ActiveID
	s.activeLoc = nil
	if hasActive && active.Location != nil {
		loc := *active.Location
		s.activeLoc = &loc
	}
	s.mu.Unlock()

	if markersChanged {
		s.renderer.SetMarkers(slices.Clone(markers))
	}
	if center != nil {
		s.renderer.CenterOn(*center)
	}
}

// BuildMarkers returns one marker per photo with a location, in collection order.
// Photos without a location get no marker.
func BuildMarkers(snap photo.Snapshot) []Marker {
	markers := make([]Marker, 0, len(snap.Photos))
	for _, p := range snap.Photos {
		if p.Location == nil {
			continue
		}
		markers = append(markers, Marker{
			ID:     p.ID,
			Lat:    p.Location.Lat,
			Lng:    p.Location.Lng,
			Active: p.ID == snap.ActiveID,
		})
	}
	return markers
}
