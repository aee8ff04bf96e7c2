package normalize

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var vipsOnce sync.Once

// StartupVips initializes libvips. Safe to call more than once.
func StartupVips() {
	vipsOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(nil)
	})
}

// ShutdownVips releases libvips. Should be called when the application exits.
func ShutdownVips() {
	vips.Shutdown()
}

// VipsTranscoder transcodes with libvips, which reads HEIF through libheif.
type VipsTranscoder struct {
	// Quality is the JPEG quality (1-100).
	Quality int
}

// NewVipsTranscoder starts libvips and returns a transcoder.
func NewVipsTranscoder(quality int) *VipsTranscoder {
	StartupVips()
	return &VipsTranscoder{Quality: quality}
}

// Transcode implements Transcoder. Only JPEG output is supported; libvips
// loads the primary image of a HEIF container, so one variant is returned.
func (t *VipsTranscoder) Transcode(ctx context.Context, data []byte, format string) ([][]byte, error) {
	if format != "jpeg" {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	// Auto-rotate based on EXIF orientation
	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("failed to auto-rotate: %w", err)
	}

	params := vips.NewJpegExportParams()
	if t.Quality > 0 {
		params.Quality = t.Quality
	}

	out, _, err := img.ExportJpeg(params)
	if err != nil {
		return nil, fmt.Errorf("failed to export JPEG: %w", err)
	}
	return [][]byte{out}, nil
}
