package engine

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/deltaglider/internal/cache"
	"github.com/prn-tf/deltaglider/internal/codec"
	"github.com/prn-tf/deltaglider/internal/hash"
	"github.com/prn-tf/deltaglider/internal/store/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	svc := memory.New()
	refCache := cache.NewMemory(cache.MemConfig{}, zerolog.Nop())
	return New(svc, refCache, codec.NewBsdiff(), Options{}, zerolog.Nop()), svc
}

// archive returns deterministic pseudo-random bytes large enough to be
// classified as a delta candidate.
func archive(t *testing.T, seed int64, n int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	_, err := rng.Read(buf)
	require.NoError(t, err)
	return buf
}

// variantOf returns base with the trailing n bytes replaced.
func variantOf(t *testing.T, base []byte, seed int64, n int) []byte {
	t.Helper()
	out := append([]byte(nil), base...)
	copy(out[len(out)-n:], archive(t, seed, n))
	return out
}

func put(t *testing.T, e *Engine, bucket, key string, body []byte) *PutObjectOutput {
	t.Helper()
	out, err := e.PutObject(context.Background(), &PutObjectInput{
		Bucket: bucket,
		Key:    key,
		Body:   bytes.NewReader(body),
	})
	require.NoError(t, err)
	return out
}

func get(t *testing.T, e *Engine, bucket, key string) ([]byte, *GetObjectOutput) {
	t.Helper()
	out, err := e.GetObject(context.Background(), &GetObjectInput{Bucket: bucket, Key: key})
	require.NoError(t, err)
	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	require.NoError(t, out.Body.Close())
	return body, out
}

func TestPutGet_DirectSmallText(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	body := []byte("release notes\n")
	put(t, e, "b", "rel/notes.txt", body)

	// Stored verbatim under the plain key; no reference, no delta.
	info, err := svc.Head(ctx, "b", "rel/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "direct", info.Metadata["dg-kind"])

	_, err = svc.Head(ctx, "b", "rel/notes.txt.dg")
	assert.Error(t, err)
	_, err = svc.Head(ctx, "b", "rel/reference.bin")
	assert.Error(t, err)

	got, out := get(t, e, "b", "rel/notes.txt")
	assert.Equal(t, body, got)
	assert.Equal(t, "false", out.Metadata["deltaglider-is-delta"])
}

func TestPut_FirstCandidateSeedsReference(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 1, 2<<20)
	put(t, e, "b", "rel/v1.zip", v1)

	// Reference holds the original bytes.
	ref, refInfo, err := svc.Get(ctx, "b", "rel/reference.bin")
	require.NoError(t, err)
	assert.Equal(t, v1, ref)
	assert.Equal(t, "reference", refInfo.Metadata["dg-kind"])
	assert.Equal(t, "rel::zip", refInfo.Metadata["dg-group-id"])
	assert.Equal(t, hash.Bytes(v1), refInfo.Metadata["dg-sha256"])

	// The anchor keeps the filename addressable: zero-byte delta body.
	anchor, anchorInfo, err := svc.Get(ctx, "b", "rel/v1.zip.dg")
	require.NoError(t, err)
	assert.Empty(t, anchor)
	assert.Equal(t, "delta", anchorInfo.Metadata["dg-kind"])
	assert.Equal(t, "0", anchorInfo.Metadata["dg-delta-size"])
	assert.Equal(t, "rel/reference.bin", anchorInfo.Metadata["dg-ref-key"])
	assert.Equal(t, hash.Bytes(v1), anchorInfo.Metadata["dg-ref-sha256"])

	// No plain-key variant remains.
	_, err = svc.Head(ctx, "b", "rel/v1.zip")
	assert.Error(t, err)

	// The anchor reconstructs to the original.
	got, _ := get(t, e, "b", "rel/v1.zip")
	assert.Equal(t, v1, got)
}

func TestPutGet_DeltaRoundTrip(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 2, 2<<20)
	v2 := variantOf(t, v1, 3, 1024)

	put(t, e, "b", "rel/v1.zip", v1)
	out := put(t, e, "b", "rel/v2.zip", v2)

	assert.Equal(t, "true", out.Metadata["deltaglider-is-delta"])
	assert.Equal(t, strconv.Itoa(len(v2)), out.Metadata["deltaglider-original-size"])

	// The stored delta is a small fraction of the original.
	deltaInfo, err := svc.Head(ctx, "b", "rel/v2.zip.dg")
	require.NoError(t, err)
	assert.Less(t, deltaInfo.Size, int64(64<<10))
	assert.Equal(t, "rel/reference.bin", deltaInfo.Metadata["dg-ref-key"])

	got, getOut := get(t, e, "b", "rel/v2.zip")
	assert.Equal(t, v2, got)
	assert.Equal(t, int64(len(v2)), getOut.ContentLength)
	assert.Equal(t, hash.Bytes(v2), getOut.ETag)
}

func TestPut_RatioCutoffDowngrades(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	// Two unrelated incompressible blobs: the delta for the second
	// cannot beat the 0.5 cutoff.
	a := archive(t, 4, 3<<20/2)
	b := archive(t, 5, 3<<20/2)

	put(t, e, "b", "rel/a.zip", a)
	out := put(t, e, "b", "rel/b.zip", b)
	assert.Equal(t, "false", out.Metadata["deltaglider-is-delta"])

	info, err := svc.Head(ctx, "b", "rel/b.zip")
	require.NoError(t, err)
	assert.Equal(t, "direct", info.Metadata["dg-kind"])

	_, err = svc.Head(ctx, "b", "rel/b.zip.dg")
	assert.Error(t, err, "no delta sibling may exist after the downgrade")

	got, _ := get(t, e, "b", "rel/b.zip")
	assert.Equal(t, b, got)
}

func TestPut_HashIdentity(t *testing.T) {
	e, _ := newTestEngine(t)

	body := archive(t, 6, 2<<20)
	put(t, e, "b", "rel/v1.zip", body)

	head, err := e.HeadObject(context.Background(), &HeadObjectInput{Bucket: "b", Key: "rel/v1.zip"})
	require.NoError(t, err)
	assert.Equal(t, hash.Bytes(body), head.Metadata["deltaglider-sha256"])
	assert.Equal(t, int64(len(body)), head.ContentLength)
	assert.Equal(t, hash.Bytes(body), head.ETag)
}

func TestPut_ConcurrentReferenceRace(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	base := archive(t, 7, 2<<20)
	inputs := map[string][]byte{
		"rel/r.zip": base,
		"rel/x.zip": variantOf(t, base, 8, 2048),
		"rel/y.zip": variantOf(t, base, 9, 2048),
		"rel/z.zip": variantOf(t, base, 10, 2048),
	}

	var wg sync.WaitGroup
	for key, body := range inputs {
		wg.Add(1)
		go func(key string, body []byte) {
			defer wg.Done()
			_, err := e.PutObject(ctx, &PutObjectInput{Bucket: "b", Key: key, Body: bytes.NewReader(body)})
			assert.NoError(t, err)
		}(key, body)
	}
	wg.Wait()

	// Exactly one reference, holding the bytes of one of the inputs.
	ref, refInfo, err := svc.Get(ctx, "b", "rel/reference.bin")
	require.NoError(t, err)
	assert.Equal(t, "reference", refInfo.Metadata["dg-kind"])
	found := false
	for _, body := range inputs {
		if bytes.Equal(ref, body) {
			found = true
			break
		}
	}
	assert.True(t, found, "reference must be one of the uploaded originals")

	// Every key round-trips bit-for-bit.
	for key, body := range inputs {
		got, _ := get(t, e, "b", key)
		assert.Equal(t, body, got, key)
	}
}

func TestPut_ReferenceImmutable(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 11, 2<<20)
	put(t, e, "b", "rel/v1.zip", v1)

	refBefore, _, err := svc.Get(ctx, "b", "rel/reference.bin")
	require.NoError(t, err)

	for i := int64(0); i < 3; i++ {
		put(t, e, "b", "rel/v"+strconv.FormatInt(i+2, 10)+".zip", variantOf(t, v1, 20+i, 4096))
	}
	_, err = e.DeleteObject(ctx, &DeleteObjectInput{Bucket: "b", Key: "rel/v2.zip"})
	require.NoError(t, err)

	refAfter, _, err := svc.Get(ctx, "b", "rel/reference.bin")
	require.NoError(t, err)
	assert.Equal(t, hash.Bytes(refBefore), hash.Bytes(refAfter))
}

func TestDelete_RemovesBothVariants(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 12, 2<<20)
	v2 := variantOf(t, v1, 13, 1024)
	put(t, e, "b", "rel/v1.zip", v1)
	put(t, e, "b", "rel/v2.zip", v2)

	_, err := e.DeleteObject(ctx, &DeleteObjectInput{Bucket: "b", Key: "rel/v2.zip"})
	require.NoError(t, err)

	_, err = svc.Head(ctx, "b", "rel/v2.zip.dg")
	assert.Error(t, err)
	_, err = e.GetObject(ctx, &GetObjectInput{Bucket: "b", Key: "rel/v2.zip"})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// Deleting a delta never touches the reference or other deltas.
	got, _ := get(t, e, "b", "rel/v1.zip")
	assert.Equal(t, v1, got)
}

func TestDelete_RefusesReference(t *testing.T) {
	e, _ := newTestEngine(t)

	put(t, e, "b", "rel/v1.zip", archive(t, 14, 2<<20))

	_, err := e.DeleteObject(context.Background(), &DeleteObjectInput{Bucket: "b", Key: "rel/reference.bin"})
	assert.ErrorIs(t, err, ErrReferencedByDeltas)
}

func TestDeleteObjects_Batch(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 15, 2<<20)
	put(t, e, "b", "rel/v1.zip", v1)
	put(t, e, "b", "rel/v2.zip", variantOf(t, v1, 16, 512))
	put(t, e, "b", "rel/notes.txt", []byte("notes"))

	out, err := e.DeleteObjects(ctx, &DeleteObjectsInput{
		Bucket: "b",
		Objects: []ObjectIdentifier{
			{Key: "rel/v1.zip"},
			{Key: "rel/v2.zip"},
			{Key: "rel/notes.txt"},
			{Key: "rel/reference.bin"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, out.Deleted, 3)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "rel/reference.bin", out.Errors[0].Key)
}

func TestPurgeGroup(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 17, 2<<20)
	put(t, e, "b", "rel/v1.zip", v1)
	put(t, e, "b", "rel/v2.zip", variantOf(t, v1, 18, 512))

	// Refused while deltas remain.
	err := e.PurgeGroup(ctx, "b", "rel::zip")
	assert.ErrorIs(t, err, ErrReferencedByDeltas)

	for _, key := range []string{"rel/v1.zip", "rel/v2.zip"} {
		_, err := e.DeleteObject(ctx, &DeleteObjectInput{Bucket: "b", Key: key})
		require.NoError(t, err)
	}

	require.NoError(t, e.PurgeGroup(ctx, "b", "rel::zip"))
	_, err = svc.Head(ctx, "b", "rel/reference.bin")
	assert.Error(t, err)

	// Idempotent once gone.
	require.NoError(t, e.PurgeGroup(ctx, "b", "rel::zip"))
}

func TestGet_BothVariantsIsInconsistent(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, "b", "rel/v1.zip", []byte("plain"), map[string]string{"dg-kind": "direct"})
	require.NoError(t, err)
	_, err = svc.Put(ctx, "b", "rel/v1.zip.dg", []byte("delta"), map[string]string{"dg-kind": "delta"})
	require.NoError(t, err)

	_, err = e.GetObject(ctx, &GetObjectInput{Bucket: "b", Key: "rel/v1.zip"})
	assert.ErrorIs(t, err, ErrStorageInconsistency)

	_, err = e.HeadObject(ctx, &HeadObjectInput{Bucket: "b", Key: "rel/v1.zip"})
	assert.ErrorIs(t, err, ErrStorageInconsistency)
}

func TestGet_Missing(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.GetObject(context.Background(), &GetObjectInput{Bucket: "b", Key: "rel/none.zip"})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestGet_CacheTransparency(t *testing.T) {
	e, _ := newTestEngine(t)

	v1 := archive(t, 19, 2<<20)
	v2 := variantOf(t, v1, 20, 1024)
	put(t, e, "b", "rel/v1.zip", v1)
	put(t, e, "b", "rel/v2.zip", v2)

	// Clearing the local cache between put and get must not change the
	// result; it only costs a re-download.
	require.NoError(t, e.ClearCache())

	got, _ := get(t, e, "b", "rel/v2.zip")
	assert.Equal(t, v2, got)
}

func TestGet_CorruptReference(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 21, 2<<20)
	v2 := variantOf(t, v1, 22, 1024)
	put(t, e, "b", "rel/v1.zip", v1)
	put(t, e, "b", "rel/v2.zip", v2)

	// Corrupt the reference body in the store and drop the local copy.
	require.True(t, svc.Corrupt("b", "rel/reference.bin", archive(t, 23, 2<<20)))
	require.NoError(t, e.ClearCache())

	// Verification fails, the automatic re-download fails again, and the
	// failure surfaces as an integrity error. Never auto-repaired.
	_, err := e.GetObject(ctx, &GetObjectInput{Bucket: "b", Key: "rel/v2.zip"})
	assert.ErrorIs(t, err, ErrIntegrityFailure)
	assert.ErrorIs(t, err, ErrReferenceCorrupt)
}

func TestGet_CorruptDirectBody(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	put(t, e, "b", "rel/notes.txt", []byte("original"))
	require.True(t, svc.Corrupt("b", "rel/notes.txt", []byte("tampered")))

	_, err := e.GetObject(ctx, &GetObjectInput{Bucket: "b", Key: "rel/notes.txt"})
	assert.ErrorIs(t, err, ErrIntegrityFailure)
}

func TestList_LogicalView(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 24, 2<<20)
	v2 := variantOf(t, v1, 25, 1024)
	put(t, e, "b", "rel/v1.zip", v1)
	put(t, e, "b", "rel/v2.zip", v2)
	put(t, e, "b", "rel/notes.txt", []byte("notes"))

	out, err := e.ListObjectsV2(ctx, &ListObjectsV2Input{Bucket: "b", Prefix: "rel/"})
	require.NoError(t, err)

	var keys []string
	for _, obj := range out.Contents {
		keys = append(keys, obj.Key)
		assert.NotContains(t, obj.Key, ".dg")
	}
	assert.Equal(t, []string{"rel/notes.txt", "rel/v1.zip", "rel/v2.zip"}, keys)

	byKey := make(map[string]ObjectSummary)
	for _, obj := range out.Contents {
		byKey[obj.Key] = obj
	}

	// Sizes are logical, not on-disk delta sizes.
	assert.Equal(t, int64(len(v1)), byKey["rel/v1.zip"].Size)
	assert.Equal(t, int64(len(v2)), byKey["rel/v2.zip"].Size)
	assert.Equal(t, "true", byKey["rel/v2.zip"].Metadata["deltaglider-is-delta"])
	assert.Equal(t, "false", byKey["rel/notes.txt"].Metadata["deltaglider-is-delta"])

	// The reference stays hidden by default and appears on request.
	assert.NotContains(t, keys, "rel/reference.bin")

	admin, err := e.ListObjectsV2(ctx, &ListObjectsV2Input{Bucket: "b", Prefix: "rel/", IncludeReferences: true})
	require.NoError(t, err)
	var adminKeys []string
	for _, obj := range admin.Contents {
		adminKeys = append(adminKeys, obj.Key)
	}
	assert.Contains(t, adminKeys, "rel/reference.bin")
}

func TestCopy_AcrossPrefixes(t *testing.T) {
	e, svc := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 26, 2<<20)
	v2 := variantOf(t, v1, 27, 1024)
	put(t, e, "b", "src/v1.zip", v1)
	put(t, e, "b", "src/v2.zip", v2)

	_, err := e.CopyObject(ctx, &CopyObjectInput{
		SrcBucket: "b", SrcKey: "src/v2.zip",
		DstBucket: "b", DstKey: "dst/v2.zip",
	})
	require.NoError(t, err)

	// The destination opened its own group.
	_, err = svc.Head(ctx, "b", "dst/reference.bin")
	require.NoError(t, err)

	got, _ := get(t, e, "b", "dst/v2.zip")
	assert.Equal(t, v2, got)
}

func TestStats(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	v1 := archive(t, 28, 2<<20)
	put(t, e, "b", "rel/v1.zip", v1)
	put(t, e, "b", "rel/v2.zip", variantOf(t, v1, 29, 1024))
	put(t, e, "b", "rel/notes.txt", []byte("notes"))

	out, err := e.Stats(ctx, "b", "rel/")
	require.NoError(t, err)

	assert.Equal(t, 3, out.ObjectCount)
	// Two logical archives of ~2 MiB each vs one reference + tiny delta.
	assert.Greater(t, out.LogicalBytes, out.StoredBytes)
	assert.Greater(t, out.SavedPct, 20.0)

	var groupIDs []string
	for _, g := range out.Groups {
		groupIDs = append(groupIDs, g.GroupID)
	}
	assert.Contains(t, groupIDs, "rel::zip")
	assert.Contains(t, groupIDs, "rel::txt")
}

func TestPut_UserMetadataSurvives(t *testing.T) {
	e, _ := newTestEngine(t)

	out, err := e.PutObject(context.Background(), &PutObjectInput{
		Bucket:   "b",
		Key:      "rel/notes.txt",
		Body:     bytes.NewReader([]byte("hello")),
		Metadata: map[string]string{"team": "release-eng", "dg-kind": "forged"},
	})
	require.NoError(t, err)
	assert.Equal(t, "release-eng", out.Metadata["team"])

	head, err := e.HeadObject(context.Background(), &HeadObjectInput{Bucket: "b", Key: "rel/notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, "release-eng", head.Metadata["team"])
	// The forged dg- key was dropped, not stored.
	assert.Equal(t, "false", head.Metadata["deltaglider-is-delta"])
}

func TestPut_MaxRatioEqualityAccepted(t *testing.T) {
	svc := memory.New()
	refCache := cache.NewMemory(cache.MemConfig{}, zerolog.Nop())
	e := New(svc, refCache, equalRatioCodec{}, Options{MaxRatio: 0.5}, zerolog.Nop())

	base := archive(t, 30, 2<<20)
	target := archive(t, 31, 2<<20)
	put(t, e, "b", "rel/v1.zip", base)
	put(t, e, "b", "rel/v2.zip", target)

	// The fake codec produced a delta of exactly MaxRatio x size;
	// strict evaluation keeps it as a delta.
	info, err := svc.Head(context.Background(), "b", "rel/v2.zip.dg")
	require.NoError(t, err)
	assert.Equal(t, "delta", info.Metadata["dg-kind"])
}

// equalRatioCodec emits the first half of the target as its delta, a
// delta of exactly half the target size. Patch is a stub that restores
// nothing.
type equalRatioCodec struct{}

func (equalRatioCodec) Diff(base, target []byte) ([]byte, error) {
	return append([]byte(nil), target[:len(target)/2]...), nil
}

func (equalRatioCodec) Patch(base, delta []byte) ([]byte, error) {
	// Not exercised by the equality test.
	return nil, nil
}
