// Package photo holds the Photo record and the collection store that is the
// single source of truth for every photo in the session.
package photo

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the ingestion state of a photo.
type LifecycleState string

// LifecycleState values. Processed and Error are terminal.
const (
	StateLoading   LifecycleState = "loading"
	StateProcessed LifecycleState = "processed"
	StateError     LifecycleState = "error"
)

// AIState is the state of the AI location enrichment path, independent of LifecycleState.
type AIState string

// AIState values.
const (
	AIIdle    AIState = "idle"
	AILoading AIState = "loading"
	AISuccess AIState = "success"
	AIError   AIState = "error"
)

// Provenance records which source set a photo's location.
type Provenance string

// Provenance values.
const (
	ProvenanceNone   Provenance = "none"
	ProvenanceCamera Provenance = "camera"
	ProvenanceAI     Provenance = "ai"
)

// Location is a coordinate in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within decimal-degree range.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Metadata is the camera metadata extracted from the original file.
type Metadata struct {
	Make       string     `json:"make,omitempty"`
	Model      string     `json:"model,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// Photo is one user-supplied image and everything derived from it.
type Photo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`

	// OriginalBytes is the file as uploaded and is never mutated.
	OriginalBytes []byte `json:"-"`
	// DisplayBytes is used for rendering and AI submission. Same slice as
	// OriginalBytes unless the file was transcoded.
	DisplayBytes       []byte `json:"-"`
	DisplayContentType string `json:"display_content_type"`
	PreviewHandle      string `json:"preview_handle"`

	State          LifecycleState `json:"state"`
	Location       *Location      `json:"location"`
	Provenance     Provenance     `json:"provenance"`
	Metadata       *Metadata      `json:"metadata"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	AIState        AIState        `json:"ai_state"`
	AILocationName string         `json:"ai_location_name,omitempty"`
}

// NewPlaceholder creates a photo in the loading state for a freshly selected file.
// The display bytes start out as the original bytes.
func NewPlaceholder(name, contentType string, data []byte, previewHandle string) Photo {
	return Photo{
		ID:                 uuid.NewString(),
		Name:               name,
		ContentType:        contentType,
		OriginalBytes:      data,
		DisplayBytes:       data,
		DisplayContentType: contentType,
		PreviewHandle:      previewHandle,
		State:              StateLoading,
		Provenance:         ProvenanceNone,
		AIState:            AIIdle,
	}
}

// HasLocation reports whether the photo has a known location.
func (p Photo) HasLocation() bool {
	return p.Location != nil
}

// clone returns a copy that shares no mutable pointers with p.
// Byte slices are shared because they are never written after intake.
func (p Photo) clone() Photo {
	c := p
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	if p.Metadata != nil {
		md := *p.Metadata
		if md.CapturedAt != nil {
			at := *md.CapturedAt
			md.CapturedAt = &at
		}
		c.Metadata = &md
	}
	return c
}

// validate checks the record invariants.
func (p Photo) validate() error {
	switch p.State {
	case StateLoading, StateProcessed, StateError:
	default:
		return errors.New("invalid lifecycle state")
	}
	switch p.AIState {
	case AIIdle, AILoading, AISuccess, AIError:
	default:
		return errors.New("invalid AI state")
	}
	if p.Location != nil && p.Provenance == ProvenanceNone {
		return errors.New("location without provenance")
	}
	if p.Location == nil && p.Provenance != ProvenanceNone {
		return errors.New("provenance without location")
	}
	if p.AILocationName != "" && p.AIState != AISuccess {
		return errors.New("AI location name outside success state")
	}
	if p.AIState == AISuccess && p.Provenance != ProvenanceAI {
		return errors.New("AI success without AI location")
	}
	return nil
}
