package metadata

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// Register maker note parsers for better camera support
	exif.RegisterParsers(mknote.All...)
}

var errUnknownFormat = errors.New("unrecognized image format")

// exifHeader precedes the TIFF block in JPEG APP1 segments and HEIF Exif items.
var exifHeader = []byte("Exif\x00\x00")

// GoexifParser parses EXIF with github.com/rwcarlsen/goexif.
// JPEG and TIFF are decoded directly; for containers goexif cannot walk
// (HEIC/HEIF, WebP, PNG eXIf) the embedded TIFF block is located first.
type GoexifParser struct{}

// Parse implements Parser.
func (GoexifParser) Parse(data []byte) (*Raw, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil && !usable(x, err) {
		x = nil
		if block := embeddedTIFF(data); block != nil {
			x, err = exif.Decode(bytes.NewReader(block))
			if err != nil && !usable(x, err) {
				x = nil
			}
		}
	}

	if x == nil {
		if !isKnownImage(data) {
			return nil, errUnknownFormat
		}
		// A readable image without an EXIF block.
		return nil, nil
	}

	raw := &Raw{}
	if lat, lng, err := x.LatLong(); err == nil {
		raw.Latitude = &lat
		raw.Longitude = &lng
	}
	if dt, err := x.DateTime(); err == nil {
		raw.CapturedAt = &dt
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if val, err := tag.StringVal(); err == nil {
			raw.Make = strings.TrimSpace(val)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if val, err := tag.StringVal(); err == nil {
			raw.Model = strings.TrimSpace(val)
		}
	}
	return raw, nil
}

// usable reports whether a decode error still left a queryable result.
func usable(x *exif.Exif, err error) bool {
	return x != nil && !exif.IsCriticalError(err)
}

// embeddedTIFF returns the TIFF structure following the first Exif header, if any.
func embeddedTIFF(data []byte) []byte {
	i := bytes.Index(data, exifHeader)
	if i < 0 {
		return nil
	}
	block := data[i+len(exifHeader):]
	if len(block) < 8 {
		return nil
	}
	if !bytes.HasPrefix(block, []byte("II*\x00")) && !bytes.HasPrefix(block, []byte("MM\x00*")) {
		return nil
	}
	return block
}

// isKnownImage sniffs the content for an image format a viewer or transcoder can read.
func isKnownImage(data []byte) bool {
	if isHEIF(data) {
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}

// isHEIF checks for an ISO-BMFF ftyp box with a HEIF brand.
func isHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "heim", "heis", "mif1", "msf1", "avif":
		return true
	}
	return false
}
