// Package vision turns bill images into item payloads through a
// multimodal model.
package vision

import (
	"context"
	"path/filepath"
	"strings"
)

// Provider reads one bill page and returns the model's raw answer, which
// is expected to hold a JSON array of items.
type Provider interface {
	Name() string
	ExtractPage(ctx context.Context, data []byte, mimeType string) (string, error)
}

var supportedTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// MIMETypeFor returns the MIME type of a bill file the provider can read,
// judged by extension.
func MIMETypeFor(path string) (string, bool) {
	mimeType, ok := supportedTypes[strings.ToLower(filepath.Ext(path))]
	return mimeType, ok
}

// IsSupported reports whether mimeType can be sent to a provider
func IsSupported(mimeType string) bool {
	for _, t := range supportedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}
