package asset

import (
	"path/filepath"
	"strings"
)

const (
	// MaxImageSizeMB is the largest image the upload client accepts, in megabytes.
	MaxImageSizeMB = 3

	// MaxImageSize is MaxImageSizeMB in bytes.
	MaxImageSize = MaxImageSizeMB * 1024 * 1024
)

// ExtToMIME maps the image extensions the upload client offers to their MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".avif": "image/avif",
	".heic": "image/heic",
	".heif": "image/heif",
}

// MIMEFromFileName returns the image MIME type for the file's extension.
func MIMEFromFileName(fileName string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 {
		return "", false
	}
	mime, ok := ExtToMIME[ext]
	return mime, ok
}
