package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/deltaglider/internal/store"
)

func TestStore_PutGetHead(t *testing.T) {
	s := New()
	ctx := context.Background()

	body := []byte("hello")
	meta := map[string]string{"dg-kind": "direct"}

	_, err := s.Put(ctx, "b", "a/k.txt", body, meta)
	require.NoError(t, err)

	got, info, err := s.Get(ctx, "b", "a/k.txt")
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, "direct", info.Metadata["dg-kind"])

	head, err := s.Head(ctx, "b", "a/k.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), head.Size)
}

func TestStore_NotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Head(ctx, "b", "missing")
	assert.True(t, store.IsNotFound(err))

	_, _, err = s.Get(ctx, "b", "missing")
	assert.True(t, store.IsNotFound(err))
}

func TestStore_PutIfAbsent(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.PutIfAbsent(ctx, "b", "k", []byte("first"), nil)
	require.NoError(t, err)

	_, err = s.PutIfAbsent(ctx, "b", "k", []byte("second"), nil)
	assert.True(t, errors.Is(err, store.ErrPreconditionFailed))

	// Loser must not have clobbered the winner.
	body, _, err := s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), body)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Put(ctx, "b", "k", []byte("x"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "b", "k"))
	require.NoError(t, s.Delete(ctx, "b", "k"))

	_, err = s.Head(ctx, "b", "k")
	assert.True(t, store.IsNotFound(err))
}

func TestStore_ListPrefixAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, k := range []string{"rel/b.zip", "rel/a.zip", "other/c.zip"} {
		_, err := s.Put(ctx, "b", k, []byte("x"), nil)
		require.NoError(t, err)
	}

	out, err := s.List(ctx, store.ListInput{Bucket: "b", Prefix: "rel/"})
	require.NoError(t, err)
	require.Len(t, out.Objects, 2)
	assert.Equal(t, "rel/a.zip", out.Objects[0].Key)
	assert.Equal(t, "rel/b.zip", out.Objects[1].Key)
}

func TestStore_ListDelimiter(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, k := range []string{"rel/v1/a.zip", "rel/v2/a.zip", "rel/top.zip"} {
		_, err := s.Put(ctx, "b", k, []byte("x"), nil)
		require.NoError(t, err)
	}

	out, err := s.List(ctx, store.ListInput{Bucket: "b", Prefix: "rel/", Delimiter: "/"})
	require.NoError(t, err)
	require.Len(t, out.Objects, 1)
	assert.Equal(t, "rel/top.zip", out.Objects[0].Key)
	assert.ElementsMatch(t, []string{"rel/v1/", "rel/v2/"}, out.CommonPrefixes)
}

func TestStore_ListPagination(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		_, err := s.Put(ctx, "b", k, []byte("x"), nil)
		require.NoError(t, err)
	}

	var keys []string
	token := ""
	for {
		out, err := s.List(ctx, store.ListInput{Bucket: "b", MaxKeys: 2, ContinuationToken: token})
		require.NoError(t, err)
		for _, o := range out.Objects {
			keys = append(keys, o.Key)
		}
		if !out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, keys)
}

func TestStore_Copy(t *testing.T) {
	s := New()
	ctx := context.Background()

	meta := map[string]string{"dg-sha256": "abc"}
	_, err := s.Put(ctx, "b1", "src", []byte("data"), meta)
	require.NoError(t, err)

	require.NoError(t, s.Copy(ctx, "b1", "src", "b2", "dst"))

	body, info, err := s.Get(ctx, "b2", "dst")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), body)
	assert.Equal(t, "abc", info.Metadata["dg-sha256"])
}

func TestStore_BodyIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	body := []byte("mutable")
	_, err := s.Put(ctx, "b", "k", body, nil)
	require.NoError(t, err)
	body[0] = 'X'

	got, _, err := s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got)

	got[0] = 'Y'
	again, _, err := s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), again)
}
