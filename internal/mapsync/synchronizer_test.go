package mapsync

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/rs/zerolog"
)

type fakeRenderer struct {
	mu      sync.Mutex
	markers [][]Marker
	centers []Camera
}

func (f *fakeRenderer) SetMarkers(markers []Marker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers = append(f.markers, markers)
}

func (f *fakeRenderer) CenterOn(camera Camera) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.centers = append(f.centers, camera)
}

func (f *fakeRenderer) lastMarkers() []Marker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.markers) == 0 {
		return nil
	}
	return f.markers[len(f.markers)-1]
}

func (f *fakeRenderer) centerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.centers)
}

var testOptions = Options{FocusZoom: 14, FlyDuration: time.Second}

func newStore() *photo.Store {
	return photo.NewStore(nil, zerolog.Nop(), nil)
}

// add inserts a processed photo, located when loc is non-nil. It does not change the selection.
func add(t *testing.T, store *photo.Store, name string, loc *photo.Location) string {
	t.Helper()
	p := photo.NewPlaceholder(name, "image/jpeg", nil, "")
	if err := store.AddPlaceholder(p); err != nil {
		t.Fatal(err)
	}
	store.UpdateByID(p.ID, func(ph *photo.Photo) {
		ph.State = photo.StateProcessed
		if loc != nil {
			ph.Location = loc
			ph.Provenance = photo.ProvenanceCamera
		}
	})
	return p.ID
}

func TestBuildMarkers(t *testing.T) {
	snap := photo.Snapshot{
		Photos: []photo.Photo{
			{ID: "a", Location: &photo.Location{Lat: 1, Lng: 2}},
			{ID: "b"},
			{ID: "c", Location: &photo.Location{Lat: 3, Lng: 4}},
		},
		ActiveID: "c",
	}

	got := BuildMarkers(snap)

	want := []Marker{
		{ID: "a", Lat: 1, Lng: 2},
		{ID: "c", Lat: 3, Lng: 4, Active: true},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d markers, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("marker %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestBuildMarkers_ActiveWithoutLocation(t *testing.T) {
	snap := photo.Snapshot{
		Photos:   []photo.Photo{{ID: "a", Location: &photo.Location{Lat: 1, Lng: 2}}, {ID: "b"}},
		ActiveID: "b",
	}
	for _, m := range BuildMarkers(snap) {
		if m.Active {
			t.Errorf("no marker should be active, got %+v", m)
		}
	}
}

func TestStart_SendsInitialMarkers(t *testing.T) {
	store := newStore()
	add(t, store, "a.jpg", &photo.Location{Lat: 50, Lng: 14})
	renderer := &fakeRenderer{}

	s := New(store, renderer, testOptions)
	s.Start()
	defer s.Stop()

	if got := renderer.lastMarkers(); len(got) != 1 {
		t.Fatalf("expected 1 initial marker, got %+v", got)
	}
	if len(s.Markers()) != 1 {
		t.Errorf("expected Markers to report 1 marker, got %d", len(s.Markers()))
	}
}

func TestCentersOnActiveWithLocation(t *testing.T) {
	store := newStore()
	renderer := &fakeRenderer{}
	s := New(store, renderer, testOptions)
	s.Start()
	defer s.Stop()

	located := add(t, store, "a.jpg", &photo.Location{Lat: 48.8584, Lng: 2.2945})
	unlocated := add(t, store, "b.jpg", nil)

	if err := store.SetActive(unlocated); err != nil {
		t.Fatal(err)
	}
	if renderer.centerCount() != 0 {
		t.Fatalf("no camera movement expected for a photo without location, got %d", renderer.centerCount())
	}

	if err := s.MarkerActivated(located); err != nil {
		t.Fatal(err)
	}
	if renderer.centerCount() != 1 {
		t.Fatalf("expected 1 camera movement, got %d", renderer.centerCount())
	}
	want := Camera{Lat: 48.8584, Lng: 2.2945, Zoom: 14, Duration: time.Second}
	if renderer.centers[0] != want {
		t.Errorf("expected %+v, got %+v", want, renderer.centers[0])
	}

	markers := renderer.lastMarkers()
	if len(markers) != 1 || !markers[0].Active || markers[0].ID != located {
		t.Errorf("expected the active marker, got %+v", markers)
	}
}

func TestNoRecenterOnUnrelatedChange(t *testing.T) {
	store := newStore()
	renderer := &fakeRenderer{}
	s := New(store, renderer, testOptions)
	s.Start()
	defer s.Stop()

	active := add(t, store, "a.jpg", &photo.Location{Lat: 1, Lng: 1})
	_ = store.SetActive(active)
	other := add(t, store, "b.jpg", nil)
	store.UpdateByID(other, func(p *photo.Photo) { p.AIState = photo.AIError })

	if renderer.centerCount() != 1 {
		t.Errorf("expected a single camera movement, got %d", renderer.centerCount())
	}
}

func TestCentersWhenActivePhotoGetsLocation(t *testing.T) {
	store := newStore()
	renderer := &fakeRenderer{}
	s := New(store, renderer, testOptions)
	s.Start()
	defer s.Stop()

	id := add(t, store, "a.jpg", nil)
	_ = store.SetActive(id)
	if renderer.centerCount() != 0 {
		t.Fatal("unexpected camera movement")
	}

	store.UpdateByID(id, func(p *photo.Photo) {
		p.Location = &photo.Location{Lat: 41.9, Lng: 12.5}
		p.Provenance = photo.ProvenanceAI
		p.AIState = photo.AISuccess
		p.AILocationName = "Rome"
	})

	if renderer.centerCount() != 1 {
		t.Fatalf("expected camera to follow the new location, got %d moves", renderer.centerCount())
	}
	if renderer.centers[0].Lat != 41.9 {
		t.Errorf("unexpected camera %+v", renderer.centers[0])
	}
}

func TestRemoveActiveCentersOnReplacement(t *testing.T) {
	store := newStore()
	renderer := &fakeRenderer{}
	s := New(store, renderer, testOptions)
	s.Start()
	defer s.Stop()

	a := add(t, store, "a.jpg", &photo.Location{Lat: 1, Lng: 1})
	add(t, store, "b.jpg", &photo.Location{Lat: 2, Lng: 2})
	_ = store.SetActive(a)

	if err := store.Remove(a); err != nil {
		t.Fatal(err)
	}

	if renderer.centerCount() != 2 {
		t.Fatalf("expected 2 camera movements, got %d", renderer.centerCount())
	}
	if renderer.centers[1].Lat != 2 {
		t.Errorf("expected camera on the replacement, got %+v", renderer.centers[1])
	}
	markers := renderer.lastMarkers()
	if len(markers) != 1 || !markers[0].Active {
		t.Errorf("expected the replacement marker to be active, got %+v", markers)
	}
}

func TestMarkersMatchRebuildAfterMutations(t *testing.T) {
	store := newStore()
	renderer := &fakeRenderer{}
	s := New(store, renderer, testOptions)
	s.Start()
	defer s.Stop()

	a := add(t, store, "a.jpg", &photo.Location{Lat: 1, Lng: 1})
	b := add(t, store, "b.jpg", nil)
	c := add(t, store, "c.jpg", &photo.Location{Lat: 3, Lng: 3})
	_ = store.SetActive(b)
	store.UpdateByID(b, func(p *photo.Photo) {
		p.Location = &photo.Location{Lat: 2, Lng: 2}
		p.Provenance = photo.ProvenanceAI
	})
	_ = store.Remove(a)
	_ = store.SetActive(c)

	want := BuildMarkers(store.Snapshot())
	got := renderer.lastMarkers()
	if len(got) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("marker %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestMarkerActivated_UnknownID(t *testing.T) {
	s := New(newStore(), &fakeRenderer{}, testOptions)
	if err := s.MarkerActivated("nope"); !errors.Is(err, photo.ErrPhotoNotFound) {
		t.Errorf("expected ErrPhotoNotFound, got %v", err)
	}
}

func TestStop(t *testing.T) {
	store := newStore()
	renderer := &fakeRenderer{}
	s := New(store, renderer, testOptions)
	s.Start()
	s.Stop()

	id := add(t, store, "a.jpg", &photo.Location{Lat: 1, Lng: 1})
	_ = store.SetActive(id)

	if renderer.centerCount() != 0 {
		t.Error("renderer called after Stop")
	}
	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if len(renderer.markers) != 1 {
		t.Errorf("expected only the initial marker update, got %d", len(renderer.markers))
	}
}
