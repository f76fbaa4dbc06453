package storage

import (
	"fmt"
	"strings"
)

// Upload kinds. The kind prefixes the object key and decides which access
// rule applies when the object is read back.
const (
	KindAvatar = "avatar"
	KindRecipe = "recipe"
)

var extensionByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ExtensionFor maps an allowed image content type to its file extension.
// The empty result marks the type as rejected.
func ExtensionFor(contentType string) string {
	return extensionByContentType[contentType]
}

// BuildKey assembles an object key as kind/ownerID/objectID.ext. The owner id
// in the key identifies the uploader; read access is decided per kind, not
// from the key alone.
func BuildKey(kind, ownerID, objectID, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", kind, ownerID, objectID, ext)
}

// ParsedKey is the decomposed form of an upload key.
type ParsedKey struct {
	Kind    string
	OwnerID string
	File    string
}

// ParseKey splits and validates an object key. Keys with traversal segments,
// unknown kinds or a segment count other than three are rejected.
func ParseKey(key string) (ParsedKey, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return ParsedKey{}, fmt.Errorf("malformed upload key %q", key)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return ParsedKey{}, fmt.Errorf("malformed upload key %q", key)
		}
	}
	if parts[0] != KindAvatar && parts[0] != KindRecipe {
		return ParsedKey{}, fmt.Errorf("unknown upload kind %q", parts[0])
	}
	return ParsedKey{Kind: parts[0], OwnerID: parts[1], File: parts[2]}, nil
}
