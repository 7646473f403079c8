// Package deps tracks the libraries a compilation depends on: library
// manifests and their resolution order, the dependency tracker consulted by
// code generation, and the on-disk library caches.
package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"nativec/common"
	"nativec/graph"

	"gopkg.in/yaml.v3"
)

// Library is a compiled library the program can depend on.
type Library struct {
	// Name is the unique name of the library.
	Name string

	// Path is the absolute path to the library directory.
	Path string

	// Depends lists the names of the libraries this library depends on.
	Depends []string

	// Files lists the source files making up the library.
	Files []LibraryFile

	// IsDefault indicates a library that is always available (eg. the
	// runtime).  Default libraries are only linked when they are used.
	IsDefault bool

	// IsInterop indicates a library wrapping native code.  Dependencies on it
	// are always on the whole module.
	IsInterop bool

	// LinkerOpts are extra flags passed to the linker when the library is
	// linked.
	LinkerOpts []string

	// SetupHint is a human-authored hint shown when a build step fails in a
	// way that implicates this library.
	SetupHint string
}

// LibraryFile is a single source file of a library.
type LibraryFile struct {
	// FqName is the package of the file.
	FqName string

	// Path is the path of the file relative to the library directory.
	Path string
}

// ID returns the stable cache identifier of the file.
func (lf LibraryFile) ID() string {
	return common.FileID(lf.FqName, lf.Path)
}

// SourcePath returns the absolute path of a file of the library.
func (l *Library) SourcePath(lf LibraryFile) string {
	return filepath.Join(l.Path, filepath.FromSlash(lf.Path))
}

// FileByID returns the file of the library with the given cache id.
func (l *Library) FileByID(id string) (LibraryFile, bool) {
	for _, lf := range l.Files {
		if lf.ID() == id {
			return lf, true
		}
	}

	return LibraryFile{}, false
}

// -----------------------------------------------------------------------------

// yamlManifest is a library manifest as it is encoded in YAML.
type yamlManifest struct {
	Name       string      `yaml:"name"`
	Depends    []string    `yaml:"depends,omitempty"`
	Default    bool        `yaml:"default,omitempty"`
	Interop    bool        `yaml:"interop,omitempty"`
	Files      []*yamlFile `yaml:"files"`
	LinkerOpts []string    `yaml:"linker-opts,omitempty"`
	SetupHint  string      `yaml:"setup-hint,omitempty"`
}

type yamlFile struct {
	Package string `yaml:"package"`
	Path    string `yaml:"path"`
}

// LoadManifest loads the library whose manifest is in the directory `dir`.
func LoadManifest(dir string) (*Library, error) {
	abspath, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	buff, err := os.ReadFile(filepath.Join(abspath, common.ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("unable to read library manifest at `%s`: %w", abspath, err)
	}

	return ParseManifest(abspath, buff)
}

// ParseManifest decodes a library manifest.  `dir` is the library directory.
func ParseManifest(dir string, buff []byte) (*Library, error) {
	ym := &yamlManifest{}
	if err := yaml.Unmarshal(buff, ym); err != nil {
		return nil, fmt.Errorf("error parsing library manifest at `%s`: %w", dir, err)
	}

	if ym.Name == "" {
		return nil, fmt.Errorf("library manifest at `%s` is missing a name", dir)
	}

	lib := &Library{
		Name:       ym.Name,
		Path:       dir,
		Depends:    ym.Depends,
		IsDefault:  ym.Default,
		IsInterop:  ym.Interop,
		LinkerOpts: ym.LinkerOpts,
		SetupHint:  ym.SetupHint,
	}

	seen := make(map[string]struct{})
	for _, yf := range ym.Files {
		if yf.Path == "" {
			return nil, fmt.Errorf("library `%s` lists a file with no path", ym.Name)
		}

		lf := LibraryFile{FqName: yf.Package, Path: filepath.ToSlash(yf.Path)}
		if _, ok := seen[lf.ID()]; ok {
			return nil, fmt.Errorf("library `%s` lists the file `%s` twice", ym.Name, yf.Path)
		}
		seen[lf.ID()] = struct{}{}

		lib.Files = append(lib.Files, lf)
	}

	return lib, nil
}

// FindLibraries loads the libraries with the given names along with all of
// their transitive dependencies.  Every library is looked up as a directory
// named after it in the search paths, in order.
func FindLibraries(searchPaths []string, names []string) ([]*Library, error) {
	loaded := make(map[string]*Library)
	var libs []*Library

	work := append([]string(nil), names...)
	for len(work) > 0 {
		name := work[0]
		work = work[1:]

		if _, ok := loaded[name]; ok {
			continue
		}

		lib, err := findLibrary(searchPaths, name)
		if err != nil {
			return nil, err
		}

		loaded[name] = lib
		libs = append(libs, lib)
		work = append(work, lib.Depends...)
	}

	return libs, nil
}

// findLibrary loads a single library from the search paths.
func findLibrary(searchPaths []string, name string) (*Library, error) {
	for _, sp := range searchPaths {
		dir := filepath.Join(sp, name)
		if _, err := os.Stat(filepath.Join(dir, common.ManifestFileName)); err != nil {
			continue
		}

		lib, err := LoadManifest(dir)
		if err != nil {
			return nil, err
		}

		if lib.Name != name {
			return nil, fmt.Errorf("library at `%s` is named `%s`, expected `%s`", dir, lib.Name, name)
		}

		return lib, nil
	}

	return nil, fmt.Errorf("unable to locate library `%s`", name)
}

// -----------------------------------------------------------------------------

// SortedLibraries is a list of libraries in topological order: every library
// comes after the libraries it depends on.
type SortedLibraries []*Library

// Find returns the library with the given name or nil if there is none.
func (sl SortedLibraries) Find(name string) *Library {
	for _, lib := range sl {
		if lib.Name == name {
			return lib
		}
	}

	return nil
}

// Names returns the names of the libraries in order.
func (sl SortedLibraries) Names() []string {
	names := make([]string, len(sl))
	for i, lib := range sl {
		names[i] = lib.Name
	}

	return names
}

// ResolveLibraries sorts the libraries topologically, dependencies first.  The
// libraries of a dependency cycle are kept together and ordered by name.
func ResolveLibraries(libs []*Library) (SortedLibraries, error) {
	byName := make(map[string]*Library, len(libs))
	g := graph.New[string]()

	for _, lib := range libs {
		if _, ok := byName[lib.Name]; ok {
			return nil, fmt.Errorf("multiple libraries named `%s`", lib.Name)
		}

		byName[lib.Name] = lib
		g.AddNode(lib.Name)
	}

	for _, lib := range libs {
		for _, dep := range lib.Depends {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("library `%s` depends on unknown library `%s`", lib.Name, dep)
			}

			g.AddEdge(lib.Name, dep)
		}
	}

	// The condensation puts dependents before their dependencies.
	components := graph.Condense(g)

	sorted := make(SortedLibraries, 0, len(libs))
	for i := len(components) - 1; i >= 0; i-- {
		keys := append([]string(nil), components[i].Keys...)
		sort.Strings(keys)

		for _, key := range keys {
			sorted = append(sorted, byName[key])
		}
	}

	return sorted, nil
}
