// Package enrich runs the user-triggered AI location lookup for a single photo.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kozaktomas/photo-map/internal/ai"
	"github.com/kozaktomas/photo-map/internal/constants"
	"github.com/kozaktomas/photo-map/internal/metrics"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/rs/zerolog"
)

// ErrAlreadyLocating is returned when a lookup for the photo is still in flight.
var ErrAlreadyLocating = errors.New("location lookup already in progress")

// ErrDisplayNotReady is returned while a photo that needs transcoding still
// carries its original bytes as display bytes.
var ErrDisplayNotReady = errors.New("photo is still being converted, retry once it has loaded")

// Controller drives the AI state machine of photos: idle -> loading -> success | error.
// A failed lookup never touches the photo's location.
type Controller struct {
	store   *photo.Store
	locator ai.Locator
	logger  zerolog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewController creates a controller. m may be nil.
func NewController(store *photo.Store, locator ai.Locator, logger zerolog.Logger, m *metrics.Metrics) *Controller {
	return &Controller{
		store:   store,
		locator: locator,
		logger:  logger.With().Str("component", "enrich").Str("oracle", locator.Name()).Logger(),
		metrics: m,
	}
}

// Trigger moves the photo to the loading state and runs the lookup in the background.
// It returns photo.ErrPhotoNotFound for an unknown id and ErrAlreadyLocating when a
// lookup is still running. ctx should outlive the caller's request.
func (c *Controller) Trigger(ctx context.Context, id string) error {
	p, err := c.begin(id)
	if err != nil {
		return err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.run(ctx, p)
	}()
	return nil
}

// Locate runs a lookup and waits for it. The returned error is the lookup failure,
// which is also recorded on the photo as the error AI state.
func (c *Controller) Locate(ctx context.Context, id string) error {
	p, err := c.begin(id)
	if err != nil {
		return err
	}
	return c.run(ctx, p)
}

// Wait blocks until all background lookups finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// begin atomically checks for a running lookup and enters loading.
func (c *Controller) begin(id string) (photo.Photo, error) {
	var started photo.Photo
	err := c.store.Transition(id, func(p *photo.Photo) error {
		if p.AIState == photo.AILoading {
			return ErrAlreadyLocating
		}
		if awaitingTranscode(p) {
			return ErrDisplayNotReady
		}
		p.AIState = photo.AILoading
		p.AILocationName = ""
		started = *p
		return nil
	})
	return started, err
}

func awaitingTranscode(p *photo.Photo) bool {
	return p.State == photo.StateLoading &&
		p.DisplayContentType == p.ContentType &&
		normalize.NeedsTranscode(p.ContentType, p.Name)
}

func (c *Controller) run(ctx context.Context, p photo.Photo) error {
	log := c.logger.With().Str("photo_id", p.ID).Str("file", p.Name).Logger()

	guess, err := c.lookup(ctx, p.DisplayBytes)
	if err != nil {
		log.Warn().Err(err).Msg("AI location lookup failed")
		c.observe("failed")
		c.store.UpdateByID(p.ID, func(ph *photo.Photo) {
			ph.AIState = photo.AIError
		})
		return err
	}

	c.observe("success")
	if !c.store.UpdateByID(p.ID, func(ph *photo.Photo) {
		ph.Location = &photo.Location{Lat: guess.Lat, Lng: guess.Lng}
		ph.Provenance = photo.ProvenanceAI
		ph.AILocationName = guess.Name
		ph.AIState = photo.AISuccess
	}) {
		log.Debug().Msg("photo removed before AI lookup finished")
		return nil
	}
	log.Info().Str("name", guess.Name).Float64("lat", guess.Lat).Float64("lng", guess.Lng).Msg("AI location found")
	return nil
}

// lookup encodes the display bytes and asks the oracle.
func (c *Controller) lookup(ctx context.Context, display []byte) (guess *ai.LocationGuess, err error) {
	defer func() {
		if r := recover(); r != nil {
			guess, err = nil, fmt.Errorf("panic in location lookup: %v", r)
		}
	}()

	encoded, err := ai.EncodeImage(display, constants.OracleImageMaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	guess, err = c.locator.Locate(ctx, encoded)
	if err != nil {
		return nil, err
	}
	switch {
	case guess == nil:
		return nil, ai.ErrNoLocation
	case strings.TrimSpace(guess.Name) == "":
		return nil, ai.ErrIncompleteLocation
	case !(photo.Location{Lat: guess.Lat, Lng: guess.Lng}).Valid():
		return nil, ai.ErrInvalidCoordinates
	}
	return guess, nil
}

func (c *Controller) observe(result string) {
	if c.metrics != nil {
		c.metrics.GeocodeRequests.WithLabelValues(result).Inc()
	}
}
