// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum request body of one upload in bytes (1GB)
	MaxUploadSize = 1 << 30

	// MultipartMemory is how much of an upload is kept in memory before
	// spilling to temp files (32MB)
	MultipartMemory = 32 << 20
)
