// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Map view constants
const (
	// DefaultMapLat is the latitude the map is centered on before any photo is focused
	DefaultMapLat = 20.0

	// DefaultMapLng is the longitude the map is centered on before any photo is focused
	DefaultMapLng = 0.0

	// DefaultMapZoom is the initial zoom level of the map
	DefaultMapZoom = 2

	// FocusZoom is the zoom level used when flying to the active photo
	FocusZoom = 14

	// FlyDuration is the duration of the animated camera move to the active photo
	FlyDuration = time.Second
)

// Ingestion constants
const (
	// IngestConcurrency is the number of files of one batch processed in parallel.
	// Results are still applied to the collection in selection order.
	IngestConcurrency = 4

	// WatchSettleDelay is how long a dropped file must stay unchanged before it is ingested
	WatchSettleDelay = 500 * time.Millisecond

	// TranscodeQuality is the JPEG quality of HEIC/HEIF conversions
	TranscodeQuality = 90
)

// Geocoding constants
const (
	// OracleImageMaxSize is the maximum dimension (width or height) of images sent to the oracle
	OracleImageMaxSize = 800

	// OracleMaxRetries is the number of attempts made when the oracle returns unparsable JSON
	OracleMaxRetries = 3
)
