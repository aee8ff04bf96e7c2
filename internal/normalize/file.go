package normalize

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".heic": true,
	".heif": true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".bmp":  true,
	".dng":  true,
}

// IsImageFile reports whether name has an extension worth ingesting.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ContentType guesses the declared type of a file from its name, then its content.
func ContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// ReadFile loads a file from disk for ingestion.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	name := filepath.Base(path)
	return File{
		Name:        name,
		ContentType: ContentType(name, data),
		Data:        data,
	}, nil
}
