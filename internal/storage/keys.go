package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Kind separates original uploads from generated results in the key space.
type Kind string

const (
	KindUpload Kind = "uploads"
	KindResult Kind = "results"
)

var extByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// BuildKey produces a collision-resistant blob key scoped to its owner:
// <prefix>/<kind>/<ownerType>/<ownerID>/<unix-ms>.<ext>. Millisecond
// timestamps keep keys sortable by creation time within an owner.
func BuildKey(prefix string, kind Kind, ownerType, ownerID, contentType string, now time.Time) string {
	ext, ok := extByContentType[contentType]
	if !ok {
		ext = "bin"
	}
	return path.Join(prefix, string(kind), ownerType, ownerID,
		fmt.Sprintf("%d.%s", now.UnixMilli(), ext))
}

// FileURL is the public path a stored key is served under.
func FileURL(key string) string {
	return "/files/" + key
}

// ValidKey rejects keys that could escape the blob namespace when taken
// from a request path.
func ValidKey(key string) bool {
	if key == "" || strings.Contains(key, "..") {
		return false
	}
	return !strings.HasPrefix(key, "/")
}
