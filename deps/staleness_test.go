package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirtyEntry struct {
	lib, path string
	reason    DirtyReason
}

func dirtyEntries(files []DirtyFile) []dirtyEntry {
	var result []dirtyEntry
	for _, df := range files {
		result = append(result, dirtyEntry{df.Library.Name, df.File.Path, df.Reason})
	}

	return result
}

// chain lays out X -> Y -> Z with per-file caches.  y1 depends on z1, x1 on
// y1; y2 and z2 are unrelated.
func chain(t *testing.T) (*libFixture, *Library, *Library, *Library) {
	lf := newLibFixture(t)
	z := lf.library("z", nil, map[string]string{"z1.kt": "z1", "z2.kt": "z2"})
	y := lf.library("y", []string{"z"}, map[string]string{"y1.kt": "y1", "y2.kt": "y2"})
	x := lf.library("x", []string{"y"}, map[string]string{"x1.kt": "x1"})

	lf.cachePerFile(z, nil)
	lf.cachePerFile(y, map[string][]ResolvedDependency{
		"y1.kt": {filesDep(z, "z1.kt")},
		"y2.kt": {filesDep(z, "z2.kt")},
	})
	lf.cachePerFile(x, map[string][]ResolvedDependency{"x1.kt": {filesDep(y, "y1.kt")}})

	return lf, x, y, z
}

func TestFindDirtyFiles_UnchangedIsClean(t *testing.T) {
	lf, _, _, _ := chain(t)

	dirty, err := FindDirtyFiles(lf.caches(true), []string{"x", "y", "z"})
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestFindDirtyFiles_PropagatesAlongDependencies(t *testing.T) {
	lf, _, _, z := chain(t)
	lf.edit(z, "z1.kt", "z1 changed")

	dirty, err := FindDirtyFiles(lf.caches(true), []string{"x", "y", "z"})
	require.NoError(t, err)

	assert.Equal(t, []dirtyEntry{
		{"z", "z1.kt", DirtyModified},
		{"y", "y1.kt", DirtyDependsOnDirty},
		{"x", "x1.kt", DirtyDependsOnDirty},
	}, dirtyEntries(dirty))
}

func TestFindDirtyFiles_OnlyEligibleLibrariesAreReported(t *testing.T) {
	lf, _, _, z := chain(t)
	lf.edit(z, "z1.kt", "z1 changed")

	dirty, err := FindDirtyFiles(lf.caches(true), []string{"y"})
	require.NoError(t, err)
	assert.Equal(t, []dirtyEntry{{"y", "y1.kt", DirtyDependsOnDirty}}, dirtyEntries(dirty))
}

func TestFindDirtyFiles_AddedAndRemoved(t *testing.T) {
	lf, x, y, _ := chain(t)

	removed := fileOf(y, "y1.kt").ID()
	y.Files = []LibraryFile{fileOf(y, "y2.kt"), fileOf(y, "y3.kt")}
	lf.edit(y, "y3.kt", "y3")

	dirty, err := FindDirtyFiles(lf.caches(true), []string{"x", "y"})
	require.NoError(t, err)

	reasons := make(map[string]DirtyReason)
	for _, df := range dirty {
		reasons[df.FileID] = df.Reason
	}

	assert.Equal(t, map[string]DirtyReason{
		removed:                 DirtyRemoved,
		fileOf(y, "y3.kt").ID(): DirtyAdded,
		fileOf(x, "x1.kt").ID(): DirtyDependsOnDirty,
	}, reasons)
}

func TestFindDirtyFiles_WholeModuleDependency(t *testing.T) {
	lf := newLibFixture(t)
	z := lf.library("z", nil, map[string]string{"z1.kt": "z1", "z2.kt": "z2"})
	y := lf.library("y", []string{"z"}, map[string]string{"y1.kt": "y1"})

	lf.cachePerFile(z, nil)
	lf.cachePerFile(y, map[string][]ResolvedDependency{"y1.kt": {moduleDep(z)}})
	lf.edit(z, "z2.kt", "z2 changed")

	dirty, err := FindDirtyFiles(lf.caches(true), []string{"y"})
	require.NoError(t, err)
	assert.Equal(t, []dirtyEntry{{"y", "y1.kt", DirtyDependsOnDirty}}, dirtyEntries(dirty))
}

func TestFindDirtyFiles_UnknownLibrary(t *testing.T) {
	lf, _, _, _ := chain(t)
	_, err := FindDirtyFiles(lf.caches(true), []string{"w"})
	assert.Error(t, err)
}

func TestFingerprint_DependsOnPathAndContent(t *testing.T) {
	a := LibraryFile{FqName: "p", Path: "a.kt"}
	b := LibraryFile{FqName: "p", Path: "b.kt"}

	assert.Equal(t, Fingerprint(a, []byte("x")), Fingerprint(a, []byte("x")))
	assert.NotEqual(t, Fingerprint(a, []byte("x")), Fingerprint(a, []byte("y")))
	assert.NotEqual(t, Fingerprint(a, []byte("x")), Fingerprint(b, []byte("x")))
	assert.Len(t, Fingerprint(a, nil), 64)
}
