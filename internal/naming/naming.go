// Package naming maps logical object keys onto group identities and the
// storage keys DeltaGlider uses inside a bucket. Grouping is purely
// path/extension driven so that put/get stay deterministic and
// list-compatible; content never influences group identity.
package naming

import (
	"path"
	"strings"

	"github.com/prn-tf/deltaglider/internal/classify"
)

const (
	// ReferenceName is the filename of a group's reference object.
	ReferenceName = "reference.bin"

	// DeltaSuffix marks a stored delta body.
	DeltaSuffix = ".dg"
)

// Identity describes where an object and its group live inside a bucket.
type Identity struct {
	// Key is the caller-visible logical key.
	Key string

	// Prefix is everything up to the last "/" of Key, without the slash.
	Prefix string

	// Filename is the final path element of Key.
	Filename string

	// Family is the normalized extension cluster of Filename.
	Family string

	// GroupID identifies the group, "{prefix}::{family}".
	GroupID string

	// ReferenceKey is the canonical storage key of the group reference.
	ReferenceKey string

	// DeltaKey is the storage key of the delta body for Key.
	DeltaKey string
}

// Identify derives the group identity for a logical key.
func Identify(key string) Identity {
	key = strings.TrimPrefix(key, "/")
	prefix := ""
	filename := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		prefix = key[:i]
		filename = key[i+1:]
	}

	family := classify.Extension(filename)

	refKey := ReferenceName
	if prefix != "" {
		refKey = prefix + "/" + ReferenceName
	}

	return Identity{
		Key:          key,
		Prefix:       prefix,
		Filename:     filename,
		Family:       family,
		GroupID:      prefix + "::" + family,
		ReferenceKey: refKey,
		DeltaKey:     key + DeltaSuffix,
	}
}

// IsDeltaKey reports whether a storage key holds a delta body.
func IsDeltaKey(key string) bool {
	return strings.HasSuffix(key, DeltaSuffix)
}

// IsReferenceKey reports whether a storage key is a group reference.
func IsReferenceKey(key string) bool {
	return path.Base(key) == ReferenceName
}

// LogicalKey strips the delta suffix from a storage key, returning the
// caller-visible name. Non-delta keys are returned unchanged.
func LogicalKey(storageKey string) string {
	return strings.TrimSuffix(storageKey, DeltaSuffix)
}
