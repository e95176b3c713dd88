// Package classify decides how an incoming object should be stored:
// as a delta candidate, verbatim, or verbatim because it is too small
// for delta encoding to pay off.
package classify

import (
	"path"
	"strings"
)

// Verdict is the storage strategy suggested for an object.
type Verdict string

const (
	// DeltaCandidate marks objects worth delta-encoding against a group reference.
	DeltaCandidate Verdict = "delta_candidate"

	// Direct marks objects stored verbatim.
	Direct Verdict = "direct"

	// SkipSmall marks objects stored verbatim because delta overhead
	// dominates below the size floor.
	SkipSmall Verdict = "skip_small"
)

// MinDeltaSize is the size floor below which objects are never delta-encoded.
const MinDeltaSize = 1 << 20 // 1 MiB

// archiveExtensions are the extension families with high delta yield
// between successive versions of the same artifact.
var archiveExtensions = map[string]bool{
	"zip": true, "tar": true, "tar.gz": true, "tgz": true,
	"tar.bz2": true, "tbz2": true, "tar.xz": true, "txz": true,
	"7z": true, "jar": true, "war": true, "ear": true,
	"apk": true, "ipa": true, "dmg": true, "deb": true,
	"rpm": true, "msi": true, "nupkg": true, "whl": true,
}

// textExtensions are small text/metadata files stored verbatim.
var textExtensions = map[string]bool{
	"txt": true, "md": true, "json": true, "yaml": true, "yml": true,
	"xml": true, "csv": true, "log": true,
	"sha1": true, "sha256": true, "sha512": true, "md5": true,
	"asc": true, "sig": true,
}

// executableExtensions are raw executables with empirically poor delta yield.
var executableExtensions = map[string]bool{
	"exe": true, "dll": true, "so": true, "dylib": true,
}

// File classifies an object by its filename and size. The verdict is
// advisory: the engine may still downgrade a candidate to direct storage
// when the produced delta exceeds the configured ratio cutoff.
func File(name string, size int64) Verdict {
	if size < MinDeltaSize {
		if ext := Extension(name); archiveExtensions[ext] || (!textExtensions[ext] && !executableExtensions[ext]) {
			return SkipSmall
		}
		return Direct
	}

	ext := Extension(name)
	switch {
	case archiveExtensions[ext]:
		return DeltaCandidate
	case textExtensions[ext]:
		return Direct
	case executableExtensions[ext]:
		return Direct
	default:
		// Unknown large binaries usually version well.
		return DeltaCandidate
	}
}

// Extension returns the normalized extension cluster of name, keeping
// compound archive suffixes ("tar.gz", "tar.bz2", "tar.xz") intact.
func Extension(name string) string {
	base := strings.ToLower(path.Base(name))

	for _, compound := range []string{".tar.gz", ".tar.bz2", ".tar.xz"} {
		if strings.HasSuffix(base, compound) {
			return compound[1:]
		}
	}

	ext := path.Ext(base)
	if ext == "" {
		return ""
	}
	return ext[1:]
}

// IsArchiveFamily reports whether the extension cluster belongs to the
// archive family used for savings projection.
func IsArchiveFamily(ext string) bool {
	return archiveExtensions[normalizeAlias(ext)]
}

// normalizeAlias folds short aliases onto their canonical cluster.
func normalizeAlias(ext string) string {
	switch ext {
	case "tgz":
		return "tar.gz"
	case "tbz2":
		return "tar.bz2"
	case "txz":
		return "tar.xz"
	}
	return ext
}
