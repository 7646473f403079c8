package deps

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// libFixture lays out libraries and their caches in temporary directories.
type libFixture struct {
	t        *testing.T
	root     string
	cacheDir string
	libs     []*Library
}

func newLibFixture(t *testing.T) *libFixture {
	return &libFixture{t: t, root: t.TempDir(), cacheDir: t.TempDir()}
}

// library creates a library whose files live in package `name` and have the
// given contents.
func (lf *libFixture) library(name string, depends []string, files map[string]string) *Library {
	lib := &Library{Name: name, Path: filepath.Join(lf.root, name), Depends: depends}
	require.NoError(lf.t, os.MkdirAll(lib.Path, os.ModePerm))

	var paths []string
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		lib.Files = append(lib.Files, LibraryFile{FqName: name, Path: path})
		require.NoError(lf.t, os.WriteFile(filepath.Join(lib.Path, path), []byte(files[path]), 0644))
	}

	lf.libs = append(lf.libs, lib)
	return lib
}

func (lf *libFixture) sorted() SortedLibraries {
	sorted, err := ResolveLibraries(lf.libs)
	require.NoError(lf.t, err)
	return sorted
}

func (lf *libFixture) caches(allowIncomplete bool) *CachedLibraries {
	return NewCachedLibraries(lf.sorted(), []string{lf.cacheDir}, allowIncomplete)
}

// edit changes the content of a library file.
func (lf *libFixture) edit(lib *Library, path, content string) {
	require.NoError(lf.t, os.WriteFile(filepath.Join(lib.Path, path), []byte(content), 0644))
}

// cachePerFile writes a per-file cache of the library, fingerprinting the
// current sources.  `deps` gives the bitcode dependencies of each file.
func (lf *libFixture) cachePerFile(lib *Library, deps map[string][]ResolvedDependency) {
	var files []*FileCacheContents
	for _, f := range lib.Files {
		content, err := os.ReadFile(lib.SourcePath(f))
		require.NoError(lf.t, err)

		files = append(files, &FileCacheContents{
			File:          f,
			Fingerprint:   Fingerprint(f, content),
			CacheContents: CacheContents{Binary: []byte("obj"), BitcodeDeps: deps[f.Path]},
		})
	}

	require.NoError(lf.t, NewCacheWriter(lf.cacheDir, lib).WriteFiles(files))
}

// cacheMonolithic writes a monolithic cache of the library.
func (lf *libFixture) cacheMonolithic(lib *Library, deps ...ResolvedDependency) {
	contents := &CacheContents{Binary: []byte("obj"), BitcodeDeps: deps}
	require.NoError(lf.t, NewCacheWriter(lf.cacheDir, lib).WriteMonolithic(contents))
}

func fileOf(lib *Library, path string) LibraryFile {
	return LibraryFile{FqName: lib.Name, Path: path}
}

func filesDep(lib *Library, paths ...string) ResolvedDependency {
	ids := make([]string, len(paths))
	for i, path := range paths {
		ids[i] = fileOf(lib, path).ID()
	}

	return ResolvedDependency{Library: lib, Kind: CertainFiles(ids...)}
}

func moduleDep(lib *Library) ResolvedDependency {
	return ResolvedDependency{Library: lib, Kind: WholeModule()}
}
