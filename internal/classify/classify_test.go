package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFile_ArchiveCandidates(t *testing.T) {
	assert.Equal(t, DeltaCandidate, File("release-v1.0.0.zip", 10<<20))
	assert.Equal(t, DeltaCandidate, File("bundle.tar.gz", 2<<20))
	assert.Equal(t, DeltaCandidate, File("installer.msi", 50<<20))
	assert.Equal(t, DeltaCandidate, File("pkg.deb", MinDeltaSize))
}

func TestFile_SmallFloor(t *testing.T) {
	assert.Equal(t, SkipSmall, File("tiny.zip", MinDeltaSize-1))
	assert.Equal(t, SkipSmall, File("blob.bin", 4096))
	assert.Equal(t, Direct, File("notes.txt", 4096))
	assert.Equal(t, Direct, File("lib.so", 1024))
}

func TestFile_TextFamily(t *testing.T) {
	assert.Equal(t, Direct, File("CHANGELOG.md", 5<<20))
	assert.Equal(t, Direct, File("manifest.json", 2<<20))
	assert.Equal(t, Direct, File("release.sha256", 2<<20))
}

func TestFile_Executables(t *testing.T) {
	assert.Equal(t, Direct, File("setup.exe", 20<<20))
	assert.Equal(t, Direct, File("libfoo.so", 8<<20))
	assert.Equal(t, Direct, File("core.dylib", 8<<20))
}

func TestFile_UnknownLarge(t *testing.T) {
	assert.Equal(t, DeltaCandidate, File("disk.img", 100<<20))
	assert.Equal(t, DeltaCandidate, File("no-extension", 2<<20))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "zip", Extension("a/b/v1.zip"))
	assert.Equal(t, "tar.gz", Extension("bundle.tar.gz"))
	assert.Equal(t, "tar.bz2", Extension("bundle.TAR.BZ2"))
	assert.Equal(t, "tgz", Extension("bundle.tgz"))
	assert.Equal(t, "", Extension("Makefile"))
}

func TestIsArchiveFamily(t *testing.T) {
	assert.True(t, IsArchiveFamily("zip"))
	assert.True(t, IsArchiveFamily("tgz"))
	assert.False(t, IsArchiveFamily("txt"))
	assert.False(t, IsArchiveFamily(""))
}
