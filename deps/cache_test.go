package deps

import (
	"os"
	"path/filepath"
	"testing"

	"nativec/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheWriter_MonolithicLayout(t *testing.T) {
	lf := newLibFixture(t)
	base := lf.library("base", nil, map[string]string{"b.kt": "b"})
	io := lf.library("io", []string{"base"}, map[string]string{"io.kt": "io"})

	require.NoError(t, NewCacheWriter(lf.cacheDir, io).WriteMonolithic(&CacheContents{
		Binary:       []byte("archive"),
		BitcodeDeps:  []ResolvedDependency{moduleDep(base)},
		InlineBodies: []byte("bodies"),
		EagerInit:    []string{fileOf(io, "io.kt").ID()},
	}))

	root := filepath.Join(lf.cacheDir, "io-cache")
	for _, rel := range []string{
		"bin/io.a", "ir/bitcode_deps", "ir/inline_bodies", "ir/class_fields", "ir/eager_init",
	} {
		assert.FileExists(t, filepath.Join(root, filepath.FromSlash(rel)))
	}

	deps, err := os.ReadFile(filepath.Join(root, common.CacheIRDirName, common.BitcodeDepsFileName))
	require.NoError(t, err)
	assert.Equal(t, "base|\n", string(deps))

	// No staging directory is left behind.
	entries, err := os.ReadDir(lf.cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	c, err := lf.caches(false).LibraryCache(io)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, CacheMonolithic, c.Kind())
	assert.Equal(t, []string{filepath.Join(root, "bin", "io.a")}, c.BinaryPaths())

	eager, err := c.EagerInitFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{fileOf(io, "io.kt").ID()}, eager)
}

func TestCachedLibraries_PerFileCache(t *testing.T) {
	lf := newLibFixture(t)
	base := lf.library("base", nil, map[string]string{"b.kt": "b"})
	io := lf.library("io", []string{"base"}, map[string]string{"r.kt": "r", "w.kt": "w"})
	lf.cachePerFile(io, map[string][]ResolvedDependency{
		"r.kt": {filesDep(base, "b.kt")},
		"w.kt": {moduleDep(base), filesDep(base, "b.kt")},
	})

	c, err := lf.caches(false).LibraryCache(io)
	require.NoError(t, err)
	require.NotNil(t, c)

	pc := c.(*PerFileCache)
	assert.Len(t, pc.BinaryPaths(), 2)

	hash, err := pc.HashOf(fileOf(io, "r.kt").ID())
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(fileOf(io, "r.kt"), []byte("r")), hash)

	fileDeps, err := pc.FileDependencies(fileOf(io, "r.kt").ID())
	require.NoError(t, err)
	require.Len(t, fileDeps, 1)
	assert.Equal(t, []string{fileOf(base, "b.kt").ID()}, fileDeps[0].Kind.Files())

	all, err := pc.BitcodeDependencies()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Kind.IsWholeModule())

	_, err = pc.FileDependencies("io.missing")
	assert.Error(t, err)
}

func TestCachedLibraries_IncompleteCache(t *testing.T) {
	lf := newLibFixture(t)
	io := lf.library("io", nil, map[string]string{"r.kt": "r"})
	lf.cachePerFile(io, nil)
	io.Files = append(io.Files, fileOf(io, "w.kt"))

	assert.False(t, lf.caches(false).IsCached(io))
	assert.True(t, lf.caches(true).IsCached(io))
}

func TestCachedLibraries_Uncached(t *testing.T) {
	lf := newLibFixture(t)
	io := lf.library("io", nil, map[string]string{"r.kt": "r"})

	c, err := lf.caches(false).LibraryCache(io)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = lf.caches(false).LibraryCache(&Library{Name: "stranger"})
	assert.Error(t, err)
}

func TestCacheWriter_ReplacesSingleFile(t *testing.T) {
	lf := newLibFixture(t)
	io := lf.library("io", nil, map[string]string{"r.kt": "r", "w.kt": "w"})
	lf.cachePerFile(io, nil)

	lf.edit(io, "w.kt", "w2")
	w := fileOf(io, "w.kt")
	require.NoError(t, NewCacheWriter(lf.cacheDir, io).WriteFiles([]*FileCacheContents{{
		File:        w,
		Fingerprint: Fingerprint(w, []byte("w2")),
	}}))

	dirty, err := FindDirtyFiles(lf.caches(true), []string{"io"})
	require.NoError(t, err)
	assert.Empty(t, dirty)

	require.NoError(t, NewCacheWriter(lf.cacheDir, io).RemoveFile(w.ID()))
	assert.False(t, lf.caches(false).IsCached(io))
}

func TestCachedLibraries_Preload(t *testing.T) {
	lf := newLibFixture(t)
	base := lf.library("base", nil, map[string]string{"b.kt": "b"})
	io := lf.library("io", []string{"base"}, map[string]string{"io.kt": "io"})
	net := lf.library("net", []string{"base"}, map[string]string{"net.kt": "net"})
	app := lf.library("app", []string{"io", "net"}, map[string]string{"app.kt": "app"})

	lf.cacheMonolithic(base)
	lf.cacheMonolithic(io, moduleDep(base))
	lf.cachePerFile(net, map[string][]ResolvedDependency{"net.kt": {moduleDep(base)}})

	caches := lf.caches(false)
	levels := caches.levels()
	require.Len(t, levels, 3)
	assert.Equal(t, []string{"base"}, SortedLibraries(levels[0]).Names())
	assert.ElementsMatch(t, []string{"io", "net"}, SortedLibraries(levels[1]).Names())
	assert.Equal(t, []string{"app"}, SortedLibraries(levels[2]).Names())

	require.NoError(t, caches.Preload())
	assert.True(t, caches.IsCached(net))
	assert.False(t, caches.IsCached(app))
}

func TestCheckCacheConsistency(t *testing.T) {
	lf := newLibFixture(t)
	base := lf.library("base", nil, map[string]string{"b.kt": "b"})
	io := lf.library("io", []string{"base"}, map[string]string{"io.kt": "io"})
	lf.library("app", []string{"io"}, map[string]string{"app.kt": "app"})
	lf.cacheMonolithic(io)

	errs := CheckCacheConsistency(lf.caches(false), []string{"io", "app"})
	require.Len(t, errs, 2)

	assert.Equal(t, "io", errs[0].Library)
	assert.Contains(t, errs[0].Message, "dependency `base` is not")
	assert.Equal(t, "io", errs[1].Library)
	assert.Contains(t, errs[1].Message, "already cached")

	lf.cacheMonolithic(base)
	assert.Empty(t, CheckCacheConsistency(lf.caches(false), []string{"app"}))
}
