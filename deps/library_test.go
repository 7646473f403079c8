package deps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
name: http
depends: [io, text]
files:
  - package: net.http
    path: src/client.kt
  - package: net.http
    path: src/server.kt
linker-opts: [-lssl]
setup-hint: install OpenSSL development headers
`

func TestParseManifest_Fields(t *testing.T) {
	lib, err := ParseManifest("/libs/http", []byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "http", lib.Name)
	assert.Equal(t, "/libs/http", lib.Path)
	assert.Equal(t, []string{"io", "text"}, lib.Depends)
	assert.Equal(t, []string{"-lssl"}, lib.LinkerOpts)
	assert.Equal(t, "install OpenSSL development headers", lib.SetupHint)
	assert.False(t, lib.IsDefault)

	require.Len(t, lib.Files, 2)
	assert.Equal(t, LibraryFile{FqName: "net.http", Path: "src/client.kt"}, lib.Files[0])
	assert.Equal(t, filepath.Join("/libs/http", "src", "server.kt"), lib.SourcePath(lib.Files[1]))

	found, ok := lib.FileByID(lib.Files[1].ID())
	assert.True(t, ok)
	assert.Equal(t, lib.Files[1], found)
}

func TestParseManifest_MissingName(t *testing.T) {
	_, err := ParseManifest("/libs/x", []byte("files: []\n"))
	assert.ErrorContains(t, err, "missing a name")
}

func TestParseManifest_DuplicateFile(t *testing.T) {
	manifest := "name: x\nfiles:\n  - {package: p, path: a.kt}\n  - {package: p, path: a.kt}\n"
	_, err := ParseManifest("/libs/x", []byte(manifest))
	assert.ErrorContains(t, err, "twice")
}

func TestResolveLibraries_DependenciesFirst(t *testing.T) {
	a := &Library{Name: "a", Depends: []string{"b"}}
	b := &Library{Name: "b", Depends: []string{"c"}}
	c := &Library{Name: "c"}
	d := &Library{Name: "d", Depends: []string{"c"}}

	sorted, err := ResolveLibraries([]*Library{a, b, c, d})
	require.NoError(t, err)

	pos := make(map[string]int)
	for i, name := range sorted.Names() {
		pos[name] = i
	}

	assert.Len(t, sorted, 4)
	assert.Less(t, pos["c"], pos["b"])
	assert.Less(t, pos["b"], pos["a"])
	assert.Less(t, pos["c"], pos["d"])
	assert.Same(t, d, sorted.Find("d"))
	assert.Nil(t, sorted.Find("e"))
}

func TestResolveLibraries_CycleOrderedByName(t *testing.T) {
	app := &Library{Name: "app", Depends: []string{"zeta"}}
	zeta := &Library{Name: "zeta", Depends: []string{"alpha"}}
	alpha := &Library{Name: "alpha", Depends: []string{"zeta", "base"}}
	base := &Library{Name: "base"}

	sorted, err := ResolveLibraries([]*Library{app, zeta, alpha, base})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "alpha", "zeta", "app"}, sorted.Names())
}

func TestResolveLibraries_UnknownDependency(t *testing.T) {
	_, err := ResolveLibraries([]*Library{{Name: "a", Depends: []string{"ghost"}}})
	assert.ErrorContains(t, err, "unknown library `ghost`")
}

func TestResolveLibraries_DuplicateName(t *testing.T) {
	_, err := ResolveLibraries([]*Library{{Name: "a"}, {Name: "a"}})
	assert.Error(t, err)
}

func TestFindLibraries_LoadsTransitiveDependencies(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()

	writeManifest := func(dir, name, body string) {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), os.ModePerm))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name, "manifest.yaml"), []byte(body), 0644))
	}

	writeManifest(first, "app", "name: app\ndepends: [util]\n")
	writeManifest(second, "util", "name: util\ndepends: [app]\n")
	writeManifest(second, "app", "name: shadowed\n")

	libs, err := FindLibraries([]string{first, second}, []string{"app"})
	require.NoError(t, err)
	require.Len(t, libs, 2)
	assert.Equal(t, "app", libs[0].Name)
	assert.Equal(t, "util", libs[1].Name)
	assert.Equal(t, filepath.Join(second, "util"), libs[1].Path)

	_, err = FindLibraries([]string{first}, []string{"util"})
	assert.ErrorContains(t, err, "unable to locate library `util`")
}
