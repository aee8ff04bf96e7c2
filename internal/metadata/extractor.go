// Package metadata extracts GPS location and camera metadata from original image bytes.
package metadata

import (
	"fmt"
	"time"

	"github.com/kozaktomas/photo-map/internal/photo"
)

// User-facing failure reasons.
const (
	ReasonUnparsable  = "could not parse image metadata"
	ReasonNoGPS       = "no GPS data found"
	ReasonUnsupported = "file type may not be supported"
)

// Raw is what a parser found in the file. Nil fields were absent.
type Raw struct {
	Latitude   *float64
	Longitude  *float64
	Make       string
	Model      string
	CapturedAt *time.Time
}

// Parser reads EXIF data including GPS tags.
// It returns (nil, nil) when the file carries no metadata at all and an
// error when the file cannot be read as an image.
type Parser interface {
	Parse(data []byte) (*Raw, error)
}

// Result is the outcome of extraction, ready to be merged into a photo.
type Result struct {
	State         photo.LifecycleState
	Location      *photo.Location
	Provenance    photo.Provenance
	Metadata      *photo.Metadata
	FailureReason string
}

// Apply merges the result into a photo record. A location the AI already
// supplied survives an extraction that found none. A camera fix replaces an AI
// location, and the AI result that produced it is dropped with it.
func (r Result) Apply(p *photo.Photo) {
	p.State = r.State
	p.Metadata = r.Metadata
	p.FailureReason = r.FailureReason
	if r.Location == nil && p.Provenance == photo.ProvenanceAI {
		return
	}
	if p.Provenance == photo.ProvenanceAI && p.AIState == photo.AISuccess {
		p.AIState = photo.AIIdle
		p.AILocationName = ""
	}
	p.Location = r.Location
	p.Provenance = r.Provenance
}

// Extractor turns parser output into a Result.
type Extractor struct {
	parser Parser
}

// NewExtractor creates an extractor on top of parser.
func NewExtractor(parser Parser) *Extractor {
	return &Extractor{parser: parser}
}

// Extract parses the original file bytes. It never returns an error: every
// failure is encoded in the Result.
func (e *Extractor) Extract(data []byte) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = failed(ReasonUnsupported)
		}
	}()

	raw, err := e.parser.Parse(data)
	if err != nil {
		return failed(ReasonUnsupported)
	}
	if raw == nil {
		return failed(ReasonUnparsable)
	}

	result = Result{
		State:      photo.StateProcessed,
		Provenance: photo.ProvenanceNone,
		Metadata: &photo.Metadata{
			Make:       raw.Make,
			Model:      raw.Model,
			CapturedAt: raw.CapturedAt,
		},
	}

	if loc, ok := coordinate(raw); ok {
		result.Location = loc
		result.Provenance = photo.ProvenanceCamera
	} else {
		result.FailureReason = ReasonNoGPS
	}
	return result
}

// coordinate returns a location when both coordinates are present and valid.
func coordinate(raw *Raw) (*photo.Location, bool) {
	if raw.Latitude == nil || raw.Longitude == nil {
		return nil, false
	}
	loc := photo.Location{Lat: *raw.Latitude, Lng: *raw.Longitude}
	if !loc.Valid() {
		return nil, false
	}
	return &loc, true
}

func failed(reason string) Result {
	return Result{
		State:         photo.StateError,
		Provenance:    photo.ProvenanceNone,
		FailureReason: reason,
	}
}

// String is used in log lines.
func (r Result) String() string {
	if r.Location != nil {
		return fmt.Sprintf("%s (%.5f, %.5f)", r.State, r.Location.Lat, r.Location.Lng)
	}
	if r.FailureReason != "" {
		return fmt.Sprintf("%s: %s", r.State, r.FailureReason)
	}
	return string(r.State)
}
