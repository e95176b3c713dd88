package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pseudoRandom returns deterministic pseudo-random bytes for test data.
func pseudoRandom(t *testing.T, seed int64, n int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	_, err := rng.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestBsdiff_RoundTrip(t *testing.T) {
	c := NewBsdiff()

	base := pseudoRandom(t, 1, 256*1024)
	target := append([]byte(nil), base...)
	// Flip a region near the end so the delta stays small.
	copy(target[len(target)-1024:], pseudoRandom(t, 2, 1024))

	delta, err := c.Diff(base, target)
	require.NoError(t, err)

	restored, err := c.Patch(base, delta)
	require.NoError(t, err)
	assert.Equal(t, target, restored)
}

func TestBsdiff_SmallDeltaForSimilarInputs(t *testing.T) {
	c := NewBsdiff()

	base := pseudoRandom(t, 3, 512*1024)
	target := append([]byte(nil), base...)
	copy(target[100:200], pseudoRandom(t, 4, 100))

	delta, err := c.Diff(base, target)
	require.NoError(t, err)
	assert.Less(t, len(delta), len(target)/4, "delta for near-identical inputs should be far smaller than the target")
}

func TestBsdiff_Deterministic(t *testing.T) {
	c := NewBsdiff()

	base := pseudoRandom(t, 5, 64*1024)
	target := pseudoRandom(t, 6, 64*1024)

	d1, err := c.Diff(base, target)
	require.NoError(t, err)
	d2, err := c.Diff(base, target)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestBsdiff_IdenticalInputs(t *testing.T) {
	c := NewBsdiff()

	base := pseudoRandom(t, 7, 32*1024)

	delta, err := c.Diff(base, base)
	require.NoError(t, err)

	restored, err := c.Patch(base, delta)
	require.NoError(t, err)
	assert.Equal(t, base, restored)
}

func TestBsdiff_CorruptDelta(t *testing.T) {
	c := NewBsdiff()

	base := pseudoRandom(t, 8, 16*1024)
	_, err := c.Patch(base, []byte("not a bsdiff patch"))
	assert.Error(t, err)
}
