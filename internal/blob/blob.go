// Package blob stores extraction outputs and source files under string keys.
package blob

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("blob not found")

// TimestampLayout formats the time component of generated keys.
const TimestampLayout = "20060102T150405Z"

// Store is a flat key/value blob store.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Timestamp renders t for use in keys.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// KeyStem returns a per-save key prefix: the timestamp of t followed by a
// random suffix, so saves within the same second never share a key.
func KeyStem(t time.Time) string {
	return Timestamp(t) + "_" + uuid.NewString()[:8]
}

// ExtractedDataKey names the JSON output of one extraction run.
func ExtractedDataKey(ts string) string {
	return "extracted_data/" + ts + "_data.json"
}

// PDFKey names the stored copy of an uploaded source document.
func PDFKey(ts, sourceName string) string {
	return "pdfs/" + ts + "_" + SanitizeName(sourceName)
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces a client-supplied file name to a safe key segment.
func SanitizeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document"
	}
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return name
}

// validKey rejects keys that could escape a directory-backed store.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
