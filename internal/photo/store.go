package photo

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/photo-map/internal/metrics"
	"github.com/rs/zerolog"
)

// Store errors.
var (
	ErrPhotoNotFound = errors.New("photo not found")
	ErrDuplicateID   = errors.New("photo id already in collection")
	ErrInvalidPatch  = errors.New("patch violates photo invariants")
)

// Releaser releases preview handles. preview.Registry implements it.
type Releaser interface {
	Revoke(handle string) error
}

// Patch mutates a copy of a photo. The store commits the copy only if the
// result still satisfies the record invariants.
type Patch func(p *Photo)

// Snapshot is an immutable view of the collection and the active selection.
type Snapshot struct {
	Photos   []Photo `json:"photos"`
	ActiveID string  `json:"active_id"`
}

// Active returns the photo whose id equals the active selection.
func (s Snapshot) Active() (Photo, bool) {
	if s.ActiveID == "" {
		return Photo{}, false
	}
	for _, p := range s.Photos {
		if p.ID == s.ActiveID {
			return p, true
		}
	}
	return Photo{}, false
}

// Store is the ordered photo collection plus the active selection.
// All mutation goes through its methods. Subscribers are called after every
// mutation, in mutation order, and must not mutate the store from the callback.
type Store struct {
	notifyMu sync.Mutex // serializes mutate+notify so subscribers see mutations in order
	mu       sync.RWMutex
	photos   []Photo
	activeID string

	subs    map[int]func(Snapshot)
	nextSub int

	releaser Releaser
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewStore creates an empty store. m may be nil.
func NewStore(releaser Releaser, logger zerolog.Logger, m *metrics.Metrics) *Store {
	return &Store{
		subs:     make(map[int]func(Snapshot)),
		releaser: releaser,
		logger:   logger.With().Str("component", "store").Logger(),
		metrics:  m,
	}
}

// Subscribe registers fn for change notifications and immediately calls it
// with the current snapshot. The returned function unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snap := s.snapshotLocked()
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// AddPlaceholder appends a photo to the end of the collection.
func (s *Store) AddPlaceholder(p Photo) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return s.mutate(func() error {
		if s.indexLocked(p.ID) >= 0 {
			return ErrDuplicateID
		}
		s.photos = append(s.photos, p.clone())
		return nil
	})
}

// UpdateByID merges patch into the photo with the given id.
// It reports whether the photo exists and the patch was applied; an absent id is a no-op.
func (s *Store) UpdateByID(id string, patch Patch) bool {
	err := s.Transition(id, func(p *Photo) error {
		patch(p)
		return nil
	})
	if err != nil && !errors.Is(err, ErrPhotoNotFound) {
		s.logger.Warn().Err(err).Str("photo_id", id).Msg("rejected photo update")
	}
	return err == nil
}

// Transition applies fn to a copy of the photo and commits it when fn returns nil
// and the invariants still hold. The check and the commit are atomic.
func (s *Store) Transition(id string, fn func(p *Photo) error) error {
	return s.mutate(func() error {
		i := s.indexLocked(id)
		if i < 0 {
			return ErrPhotoNotFound
		}
		old := s.photos[i]
		next := old.clone()
		if err := fn(&next); err != nil {
			return err
		}
		if err := checkTransition(old, next); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		s.photos[i] = next
		return nil
	})
}

// ReplaceDisplay swaps the display blob and preview handle of a photo and releases
// the previous handle. When the photo no longer exists the new handle is released
// instead so it cannot leak.
func (s *Store) ReplaceDisplay(id string, data []byte, contentType, handle string) bool {
	var stale string
	err := s.mutate(func() error {
		i := s.indexLocked(id)
		if i < 0 {
			stale = handle
			return ErrPhotoNotFound
		}
		stale = s.photos[i].PreviewHandle
		s.photos[i].DisplayBytes = data
		s.photos[i].DisplayContentType = contentType
		s.photos[i].PreviewHandle = handle
		return nil
	})
	s.release(id, stale)
	return err == nil
}

// Remove deletes a photo and releases its preview handle. If it was active, the
// photo that followed it becomes active, or the new last photo when it was last,
// or nothing when the collection is now empty.
func (s *Store) Remove(id string) error {
	var handle string
	err := s.mutate(func() error {
		i := s.indexLocked(id)
		if i < 0 {
			return ErrPhotoNotFound
		}
		handle = s.photos[i].PreviewHandle
		s.photos = slices.Delete(s.photos, i, i+1)

		if s.activeID == id {
			switch {
			case len(s.photos) == 0:
				s.activeID = ""
			case i < len(s.photos):
				s.activeID = s.photos[i].ID
			default:
				s.activeID = s.photos[len(s.photos)-1].ID
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.release(id, handle)
	return nil
}

// Clear removes every photo, releasing each preview handle once.
func (s *Store) Clear() {
	var removed []Photo
	_ = s.mutate(func() error {
		removed = s.photos
		s.photos = nil
		s.activeID = ""
		return nil
	})
	for _, p := range removed {
		s.release(p.ID, p.PreviewHandle)
	}
}

// SetActive selects the photo with the given id. An empty id clears the selection.
func (s *Store) SetActive(id string) error {
	return s.mutate(func() error {
		if id != "" && s.indexLocked(id) < 0 {
			return ErrPhotoNotFound
		}
		s.activeID = id
		return nil
	})
}

// ActivePhoto returns the currently active photo, if any.
func (s *Store) ActivePhoto() (Photo, bool) {
	return s.Snapshot().Active()
}

// ActiveID returns the active selection, or "" when nothing is selected.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Get returns a copy of the photo with the given id.
func (s *Store) Get(id string) (Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Photo{}, false
	}
	return s.photos[i].clone(), true
}

// Photos returns a copy of the collection in insertion order.
func (s *Store) Photos() []Photo {
	return s.Snapshot().Photos
}

// Len returns the number of photos in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos)
}

// Snapshot returns a copy of the collection and the active selection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// mutate runs fn under the write lock and, when it succeeds, notifies subscribers
// before the next mutation can start.
func (s *Store) mutate(fn func() error) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, id := range sortedKeys(s.subs) {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Photos.Set(float64(len(snap.Photos)))
	}
	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	photos := make([]Photo, len(s.photos))
	for i, p := range s.photos {
		photos[i] = p.clone()
	}
	return Snapshot{Photos: photos, ActiveID: s.activeID}
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.photos, func(p Photo) bool { return p.ID == id })
}

func (s *Store) release(id, handle string) {
	if handle == "" || s.releaser == nil {
		return
	}
	if err := s.releaser.Revoke(handle); err != nil {
		s.logger.Warn().Err(err).Str("photo_id", id).Str("handle", handle).Msg("failed to release preview handle")
	}
}

// checkTransition validates next against the invariants and against old.
func checkTransition(old, next Photo) error {
	if next.ID != old.ID {
		return errors.New("id is immutable")
	}
	if next.PreviewHandle != old.PreviewHandle {
		return errors.New("preview handle changes only through ReplaceDisplay")
	}
	if old.State != StateLoading && next.State != old.State {
		return fmt.Errorf("lifecycle state %s is terminal", old.State)
	}
	return next.validate()
}

func sortedKeys(m map[int]func(Snapshot)) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
