package codec

import (
	"fmt"

	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
)

// Bsdiff implements Codec using the bsdiff4 binary delta algorithm.
// bsdiff requires the full base in memory for suffix sorting, which fits
// the whole-object reconstruction model of the engine.
type Bsdiff struct{}

// NewBsdiff returns a bsdiff-backed codec.
func NewBsdiff() *Bsdiff {
	return &Bsdiff{}
}

// Diff implements Differ.
func (b *Bsdiff) Diff(base, target []byte) ([]byte, error) {
	patch, err := bsdiff.Bytes(base, target)
	if err != nil {
		return nil, fmt.Errorf("bsdiff: %w", err)
	}
	return patch, nil
}

// Patch implements Patcher.
func (b *Bsdiff) Patch(base, delta []byte) ([]byte, error) {
	target, err := bspatch.Bytes(base, delta)
	if err != nil {
		return nil, fmt.Errorf("bspatch: %w", err)
	}
	return target, nil
}

var _ Codec = (*Bsdiff)(nil)
