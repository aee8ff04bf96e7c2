package metadata

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/rs/zerolog"
)

// fakeParser returns a fixed result.
type fakeParser struct {
	raw   *Raw
	err   error
	panic bool
}

func (f fakeParser) Parse([]byte) (*Raw, error) {
	if f.panic {
		panic("corrupt segment")
	}
	return f.raw, f.err
}

func ptr(f float64) *float64 { return &f }

func TestExtract(t *testing.T) {
	taken := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		parser         fakeParser
		wantState      photo.LifecycleState
		wantProvenance photo.Provenance
		wantLocation   bool
		wantReason     string
		wantMetadata   bool
	}{
		{
			name:           "gps present",
			parser:         fakeParser{raw: &Raw{Latitude: ptr(50.087), Longitude: ptr(14.421), Make: "Apple", Model: "iPhone 13", CapturedAt: &taken}},
			wantState:      photo.StateProcessed,
			wantProvenance: photo.ProvenanceCamera,
			wantLocation:   true,
			wantMetadata:   true,
		},
		{
			name:           "zero coordinates are a real location",
			parser:         fakeParser{raw: &Raw{Latitude: ptr(0), Longitude: ptr(0)}},
			wantState:      photo.StateProcessed,
			wantProvenance: photo.ProvenanceCamera,
			wantLocation:   true,
			wantMetadata:   true,
		},
		{
			name:           "no gps is a soft failure",
			parser:         fakeParser{raw: &Raw{Make: "Canon"}},
			wantState:      photo.StateProcessed,
			wantProvenance: photo.ProvenanceNone,
			wantReason:     ReasonNoGPS,
			wantMetadata:   true,
		},
		{
			name:           "only latitude",
			parser:         fakeParser{raw: &Raw{Latitude: ptr(10)}},
			wantState:      photo.StateProcessed,
			wantProvenance: photo.ProvenanceNone,
			wantReason:     ReasonNoGPS,
			wantMetadata:   true,
		},
		{
			name:           "out of range coordinates",
			parser:         fakeParser{raw: &Raw{Latitude: ptr(123), Longitude: ptr(14)}},
			wantState:      photo.StateProcessed,
			wantProvenance: photo.ProvenanceNone,
			wantReason:     ReasonNoGPS,
			wantMetadata:   true,
		},
		{
			name:           "NaN coordinates",
			parser:         fakeParser{raw: &Raw{Latitude: ptr(math.NaN()), Longitude: ptr(14)}},
			wantState:      photo.StateProcessed,
			wantProvenance: photo.ProvenanceNone,
			wantReason:     ReasonNoGPS,
			wantMetadata:   true,
		},
		{
			name:           "no data at all",
			parser:         fakeParser{},
			wantState:      photo.StateError,
			wantProvenance: photo.ProvenanceNone,
			wantReason:     ReasonUnparsable,
		},
		{
			name:           "parser error",
			parser:         fakeParser{err: errors.New("bad magic")},
			wantState:      photo.StateError,
			wantProvenance: photo.ProvenanceNone,
			wantReason:     ReasonUnsupported,
		},
		{
			name:           "parser panic",
			parser:         fakeParser{panic: true},
			wantState:      photo.StateError,
			wantProvenance: photo.ProvenanceNone,
			wantReason:     ReasonUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewExtractor(tt.parser).Extract([]byte("data"))

			if got.State != tt.wantState {
				t.Errorf("state: expected %s, got %s", tt.wantState, got.State)
			}
			if got.Provenance != tt.wantProvenance {
				t.Errorf("provenance: expected %s, got %s", tt.wantProvenance, got.Provenance)
			}
			if (got.Location != nil) != tt.wantLocation {
				t.Errorf("location: expected present=%v, got %+v", tt.wantLocation, got.Location)
			}
			if got.FailureReason != tt.wantReason {
				t.Errorf("reason: expected %q, got %q", tt.wantReason, got.FailureReason)
			}
			if (got.Metadata != nil) != tt.wantMetadata {
				t.Errorf("metadata: expected present=%v, got %+v", tt.wantMetadata, got.Metadata)
			}
		})
	}
}

func TestExtract_CopiesCameraFields(t *testing.T) {
	taken := time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)
	parser := fakeParser{raw: &Raw{Latitude: ptr(48.8584), Longitude: ptr(2.2945), Make: "Apple", Model: "iPhone 13", CapturedAt: &taken}}

	got := NewExtractor(parser).Extract(nil)

	if got.Metadata.Make != "Apple" || got.Metadata.Model != "iPhone 13" {
		t.Errorf("unexpected camera: %+v", got.Metadata)
	}
	if !got.Metadata.CapturedAt.Equal(taken) {
		t.Errorf("expected captured at %v, got %v", taken, got.Metadata.CapturedAt)
	}
	if got.Location.Lat != 48.8584 || got.Location.Lng != 2.2945 {
		t.Errorf("unexpected location %+v", got.Location)
	}
}

func TestResult_ApplyKeepsInvariants(t *testing.T) {
	p := photo.NewPlaceholder("a.jpg", "image/jpeg", nil, "")
	NewExtractor(fakeParser{raw: &Raw{Latitude: ptr(1), Longitude: ptr(2)}}).Extract(nil).Apply(&p)

	if p.Location == nil || p.Provenance != photo.ProvenanceCamera {
		t.Errorf("expected camera location, got %+v / %s", p.Location, p.Provenance)
	}
	if p.AIState != photo.AIIdle {
		t.Errorf("expected AI state untouched, got %s", p.AIState)
	}
}

func TestResult_ApplyKeepsAILocationWithoutGPS(t *testing.T) {
	p := photo.NewPlaceholder("a.jpg", "image/jpeg", nil, "")
	p.Location = &photo.Location{Lat: 50, Lng: 14}
	p.Provenance = photo.ProvenanceAI
	p.AIState = photo.AISuccess

	NewExtractor(fakeParser{raw: &Raw{Make: "Canon"}}).Extract(nil).Apply(&p)

	if p.Location == nil || p.Provenance != photo.ProvenanceAI {
		t.Errorf("expected AI location to survive, got %+v / %s", p.Location, p.Provenance)
	}
	if p.State != photo.StateProcessed || p.FailureReason != ReasonNoGPS {
		t.Errorf("unexpected state %s / %q", p.State, p.FailureReason)
	}
}

func TestResult_ApplyCameraWinsOverAI(t *testing.T) {
	p := photo.NewPlaceholder("a.jpg", "image/jpeg", nil, "")
	p.Location = &photo.Location{Lat: 50, Lng: 14}
	p.Provenance = photo.ProvenanceAI
	p.AIState = photo.AISuccess
	p.AILocationName = "Eiffel Tower"

	NewExtractor(fakeParser{raw: &Raw{Latitude: ptr(1), Longitude: ptr(2)}}).Extract(nil).Apply(&p)

	if p.Provenance != photo.ProvenanceCamera || p.Location.Lat != 1 {
		t.Errorf("expected camera location, got %+v / %s", p.Location, p.Provenance)
	}
	if p.AIState != photo.AIIdle {
		t.Errorf("expected AI state reset, got %s", p.AIState)
	}
	if p.AILocationName != "" {
		t.Errorf("expected AI location name cleared, got %q", p.AILocationName)
	}
}

func TestResult_ApplyCameraWinsOverAIPassesStoreValidation(t *testing.T) {
	store := photo.NewStore(nil, zerolog.Nop(), nil)
	p := photo.NewPlaceholder("a.jpg", "image/jpeg", nil, "")
	if err := store.AddPlaceholder(p); err != nil {
		t.Fatalf("AddPlaceholder: %v", err)
	}
	if !store.UpdateByID(p.ID, func(ph *photo.Photo) {
		ph.Location = &photo.Location{Lat: 48.85, Lng: 2.29}
		ph.Provenance = photo.ProvenanceAI
		ph.AIState = photo.AISuccess
		ph.AILocationName = "Eiffel Tower"
	}) {
		t.Fatal("failed to record AI location")
	}

	result := NewExtractor(fakeParser{raw: &Raw{Latitude: ptr(1), Longitude: ptr(2)}}).Extract(nil)
	if !store.UpdateByID(p.ID, result.Apply) {
		t.Fatal("expected camera result to be accepted by the store")
	}

	got, _ := store.Get(p.ID)
	if got.Provenance != photo.ProvenanceCamera || got.AIState != photo.AIIdle || got.AILocationName != "" {
		t.Errorf("unexpected photo after camera fix: %+v", got)
	}
}
