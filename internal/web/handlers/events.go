package handlers

import (
	"sync"

	"github.com/kozaktomas/photo-map/internal/constants"
	"github.com/kozaktomas/photo-map/internal/mapsync"
)

// MapEvent is one server-sent event on the map stream.
type MapEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting.
type EventBroadcaster struct {
	listeners []chan MapEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan MapEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan MapEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan MapEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners without blocking.
func (b *EventBroadcaster) SendEvent(event MapEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// CameraEvent is the payload of a "center" event.
type CameraEvent struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Zoom       int     `json:"zoom"`
	DurationMS int64   `json:"duration_ms"`
}

// MapStream is the map renderer behind the SSE endpoint. It remembers the last
// markers and camera so a client connecting late starts from the current view.
type MapStream struct {
	EventBroadcaster

	stateMu sync.RWMutex
	markers []mapsync.Marker
	camera  *CameraEvent
}

// NewMapStream creates an empty stream.
func NewMapStream() *MapStream {
	return &MapStream{markers: []mapsync.Marker{}}
}

// SetMarkers implements mapsync.Renderer.
func (s *MapStream) SetMarkers(markers []mapsync.Marker) {
	s.stateMu.Lock()
	s.markers = markers
	s.stateMu.Unlock()
	s.SendEvent(MapEvent{Type: "markers", Data: markers})
}

// CenterOn implements mapsync.Renderer.
func (s *MapStream) CenterOn(camera mapsync.Camera) {
	event := &CameraEvent{
		Lat:        camera.Lat,
		Lng:        camera.Lng,
		Zoom:       camera.Zoom,
		DurationMS: camera.Duration.Milliseconds(),
	}
	s.stateMu.Lock()
	s.camera = event
	s.stateMu.Unlock()
	s.SendEvent(MapEvent{Type: "center", Data: event})
}

// State returns the last markers and camera command. camera is nil until the first centerOn.
func (s *MapStream) State() ([]mapsync.Marker, *CameraEvent) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.markers, s.camera
}
