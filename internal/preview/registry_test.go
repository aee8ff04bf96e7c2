package preview

import (
	"errors"
	"strings"
	"testing"

	"github.com/kozaktomas/photo-map/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_CreateGetRevoke(t *testing.T) {
	r := NewRegistry(nil)

	h := r.Create([]byte("jpeg"), "image/jpeg")
	if !strings.HasPrefix(h, "blob:") {
		t.Errorf("expected blob: prefix, got %q", h)
	}

	b, ok := r.Get(h)
	if !ok {
		t.Fatal("expected handle to be live")
	}
	if string(b.Data) != "jpeg" || b.ContentType != "image/jpeg" {
		t.Errorf("unexpected blob %+v", b)
	}

	if err := r.Revoke(h); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, ok := r.Get(h); ok {
		t.Error("expected handle to be gone after revoke")
	}
}

func TestRegistry_RevokeTwice(t *testing.T) {
	r := NewRegistry(nil)
	h := r.Create(nil, "image/png")

	if err := r.Revoke(h); err != nil {
		t.Fatalf("first Revoke failed: %v", err)
	}
	if err := r.Revoke(h); !errors.Is(err, ErrHandleNotFound) {
		t.Errorf("expected ErrHandleNotFound on second revoke, got %v", err)
	}
}

func TestRegistry_UniqueHandles(t *testing.T) {
	r := NewRegistry(nil)
	seen := make(map[string]bool)
	for range 100 {
		h := r.Create(nil, "")
		if seen[h] {
			t.Fatalf("duplicate handle %q", h)
		}
		seen[h] = true
	}
	if r.Len() != 100 {
		t.Errorf("expected 100 live handles, got %d", r.Len())
	}
}

func TestRegistry_IDRoundTrip(t *testing.T) {
	r := NewRegistry(nil)
	h := r.Create(nil, "")

	if got := Handle(ID(h)); got != h {
		t.Errorf("expected %q, got %q", h, got)
	}
}

func TestRegistry_GaugeTracksLiveHandles(t *testing.T) {
	m := metrics.NewNop()
	r := NewRegistry(m)

	a := r.Create(nil, "")
	r.Create(nil, "")
	if got := testutil.ToFloat64(m.PreviewHandles); got != 2 {
		t.Errorf("expected gauge 2, got %v", got)
	}

	r.Revoke(a)
	if got := testutil.ToFloat64(m.PreviewHandles); got != 1 {
		t.Errorf("expected gauge 1, got %v", got)
	}
}
