package ai

import (
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kozaktomas/photo-map/internal/photo"
	"golang.org/x/text/unicode/norm"
)

//go:embed prompts/locate.txt
var locatePrompt string

var (
	// ErrNoLocation means the oracle answered but could not identify any place.
	ErrNoLocation = errors.New("no location identified")
	// ErrIncompleteLocation means the oracle answered with some fields missing.
	ErrIncompleteLocation = errors.New("incomplete location in oracle response")
	// ErrInvalidCoordinates means the oracle returned coordinates outside decimal-degree range.
	ErrInvalidCoordinates = errors.New("oracle returned invalid coordinates")
)

// locationResponse mirrors the JSON shape requested in the prompt. Every field is nullable.
type locationResponse struct {
	Name *string  `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// decodeLocation parses the raw model output. An error here is worth a retry.
func decodeLocation(content string) (locationResponse, error) {
	var r locationResponse
	err := json.Unmarshal([]byte(extractJSON(content)), &r)
	return r, err
}

// guess validates a decoded response.
func (r locationResponse) guess() (*LocationGuess, error) {
	name := ""
	if r.Name != nil {
		name = norm.NFC.String(strings.TrimSpace(*r.Name))
	}
	if name == "" && r.Lat == nil && r.Lng == nil {
		return nil, ErrNoLocation
	}
	if name == "" || r.Lat == nil || r.Lng == nil {
		return nil, ErrIncompleteLocation
	}
	if !(photo.Location{Lat: *r.Lat, Lng: *r.Lng}).Valid() {
		return nil, ErrInvalidCoordinates
	}
	return &LocationGuess{Name: name, Lat: *r.Lat, Lng: *r.Lng}, nil
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	return content[start:]
}

func retryFeedback(err error) string {
	return "JSON parse error: " + err.Error() + ". Please fix the JSON and try again. Output ONLY a JSON object with name, lat and lng."
}
