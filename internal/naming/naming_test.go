package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentify(t *testing.T) {
	id := Identify("releases/stable/v1.0.0.zip")

	assert.Equal(t, "releases/stable", id.Prefix)
	assert.Equal(t, "v1.0.0.zip", id.Filename)
	assert.Equal(t, "zip", id.Family)
	assert.Equal(t, "releases/stable::zip", id.GroupID)
	assert.Equal(t, "releases/stable/reference.bin", id.ReferenceKey)
	assert.Equal(t, "releases/stable/v1.0.0.zip.dg", id.DeltaKey)
}

func TestIdentify_RootLevelKey(t *testing.T) {
	id := Identify("bundle.tar.gz")

	assert.Equal(t, "", id.Prefix)
	assert.Equal(t, "tar.gz", id.Family)
	assert.Equal(t, "::tar.gz", id.GroupID)
	assert.Equal(t, "reference.bin", id.ReferenceKey)
	assert.Equal(t, "bundle.tar.gz.dg", id.DeltaKey)
}

func TestIdentify_LeadingSlash(t *testing.T) {
	id := Identify("/a/b.zip")
	assert.Equal(t, "a/b.zip", id.Key)
	assert.Equal(t, "a", id.Prefix)
}

func TestIdentify_DistinctFamiliesShareReferenceKey(t *testing.T) {
	// One reference per prefix; grouping separates families through GroupID.
	zip := Identify("rel/v1.zip")
	deb := Identify("rel/v1.deb")
	assert.Equal(t, zip.ReferenceKey, deb.ReferenceKey)
	assert.NotEqual(t, zip.GroupID, deb.GroupID)
}

func TestKeyPredicates(t *testing.T) {
	assert.True(t, IsDeltaKey("a/v1.zip.dg"))
	assert.False(t, IsDeltaKey("a/v1.zip"))
	assert.True(t, IsReferenceKey("a/reference.bin"))
	assert.True(t, IsReferenceKey("reference.bin"))
	assert.False(t, IsReferenceKey("a/v1.zip"))
}

func TestLogicalKey(t *testing.T) {
	assert.Equal(t, "a/v1.zip", LogicalKey("a/v1.zip.dg"))
	assert.Equal(t, "a/v1.zip", LogicalKey("a/v1.zip"))
}
