// Package codec provides binary delta computation and application for
// DeltaGlider. A codec must be deterministic (the same base and target
// always produce the same delta) and reversible (applying the delta to
// the base reproduces the target bit-for-bit).
package codec

// Differ computes a binary delta that transforms base into target.
type Differ interface {
	// Diff returns a delta blob such that Patch(base, delta) == target.
	Diff(base, target []byte) ([]byte, error)
}

// Patcher reconstructs a target blob from a base blob and a delta.
type Patcher interface {
	// Patch applies delta to base and returns the reconstructed target.
	Patch(base, delta []byte) ([]byte, error)
}

// Codec combines delta computation and application.
type Codec interface {
	Differ
	Patcher
}
