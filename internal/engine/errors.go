package engine

import "errors"

// Engine errors. Integrity errors are never masked or retried beyond the
// single reference re-download; callers check with errors.Is.
var (
	// ErrObjectNotFound indicates no variant of the requested key exists.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStorageInconsistency indicates both the plain key and its delta
	// sibling exist. Never auto-repaired.
	ErrStorageInconsistency = errors.New("storage inconsistency: both plain and delta variants exist")

	// ErrIntegrityFailure indicates reconstructed bytes failed the
	// SHA-256 or length check.
	ErrIntegrityFailure = errors.New("integrity failure")

	// ErrReferenceCorrupt indicates the reference body failed SHA-256
	// verification after the automatic re-download.
	ErrReferenceCorrupt = errors.New("reference corrupt")

	// ErrReferencedByDeltas indicates a reference deletion was refused
	// because deltas still name it.
	ErrReferencedByDeltas = errors.New("reference still named by deltas")
)
