package deps

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DependencyKind describes how much of a library is depended upon: either the
// whole module or a number of its files.
type DependencyKind struct {
	// files is nil for a whole module dependency.
	files []string
}

// WholeModule is the kind of a dependency on an entire library.
func WholeModule() DependencyKind {
	return DependencyKind{}
}

// CertainFiles is the kind of a dependency on the given files of a library.
// The files are identified by their cache ids.
func CertainFiles(ids ...string) DependencyKind {
	if ids == nil {
		ids = []string{}
	}

	return DependencyKind{files: ids}
}

// IsWholeModule returns whether the kind covers the entire library.
func (dk DependencyKind) IsWholeModule() bool {
	return dk.files == nil
}

// Files returns the file ids of a `CertainFiles` dependency.
func (dk DependencyKind) Files() []string {
	return dk.files
}

func (dk DependencyKind) String() string {
	if dk.IsWholeModule() {
		return "whole module"
	}

	return fmt.Sprintf("files [%s]", strings.Join(dk.files, ", "))
}

// UnresolvedDependency is a dependency recorded by library name, as it is
// stored on disk.
type UnresolvedDependency struct {
	LibName string
	Kind    DependencyKind
}

// ResolvedDependency is a dependency on a known library.
type ResolvedDependency struct {
	Library *Library
	Kind    DependencyKind
}

// Resolve looks up the library of the dependency.
func (ud UnresolvedDependency) Resolve(libs SortedLibraries) (ResolvedDependency, error) {
	lib := libs.Find(ud.LibName)
	if lib == nil {
		return ResolvedDependency{}, fmt.Errorf("unknown library: %s", ud.LibName)
	}

	return ResolvedDependency{Library: lib, Kind: ud.Kind}, nil
}

// -----------------------------------------------------------------------------

// dependencyDelimiter separates the library name from the file id in a
// serialized dependency.  A whole module dependency has an empty file id.
const dependencyDelimiter = "|"

// SerializeDependencies converts dependencies to their line format: `lib|` for
// a whole module and one `lib|fileId` line per file otherwise.
func SerializeDependencies(dependencies []ResolvedDependency) []string {
	var lines []string
	for _, dep := range dependencies {
		if dep.Kind.IsWholeModule() {
			lines = append(lines, dep.Library.Name+dependencyDelimiter)
			continue
		}

		for _, id := range dep.Kind.Files() {
			lines = append(lines, dep.Library.Name+dependencyDelimiter+id)
		}
	}

	return lines
}

// DeserializeDependencies parses dependency lines.  Whole module dependencies
// come first; the file dependencies of a library are grouped in the order the
// library first appears.  `path` is only used for error messages.
func DeserializeDependencies(path string, lines []string) ([]UnresolvedDependency, error) {
	var (
		wholeModules []string
		fileLibs     []string
		files        = make(map[string][]string)
	)

	for _, line := range lines {
		ndx := strings.LastIndex(line, dependencyDelimiter)
		if ndx < 0 {
			return nil, fmt.Errorf("invalid dependency `%s` at `%s`", line, path)
		}

		libName, file := line[:ndx], line[ndx+1:]
		if file == "" {
			wholeModules = append(wholeModules, libName)
			continue
		}

		if _, ok := files[libName]; !ok {
			fileLibs = append(fileLibs, libName)
		}

		files[libName] = append(files[libName], file)
	}

	deps := make([]UnresolvedDependency, 0, len(wholeModules)+len(fileLibs))
	for _, name := range wholeModules {
		deps = append(deps, UnresolvedDependency{LibName: name, Kind: WholeModule()})
	}

	for _, name := range fileLibs {
		deps = append(deps, UnresolvedDependency{LibName: name, Kind: CertainFiles(files[name]...)})
	}

	return deps, nil
}

// -----------------------------------------------------------------------------

// DependenciesTrackingResult is the sealed outcome of dependency tracking.  It
// is written to disk so the link step can run separately from code generation.
type DependenciesTrackingResult struct {
	// NativeDependenciesToLink are the libraries whose binaries must be linked.
	NativeDependenciesToLink []*Library

	// AllNativeDependencies are the libraries whose native dependencies (eg.
	// linker options) apply: the libraries to link plus the libraries pulled
	// in by cached bitcode.
	AllNativeDependencies []*Library

	// AllCachedBitcodeDependencies is the transitive closure of the
	// dependencies served from caches.
	AllCachedBitcodeDependencies []ResolvedDependency
}

// The section headers of a serialized tracking result.
const (
	nativeDependenciesToLinkHeader     = "NATIVE_DEPENDENCIES_TO_LINK"
	allNativeDependenciesHeader        = "ALL_NATIVE_DEPENDENCIES"
	allCachedBitcodeDependenciesHeader = "ALL_CACHED_BITCODE_DEPENDENCIES"
)

// Lines serializes the result: each section is a header line followed by the
// serialized dependencies of that section.
func (dtr *DependenciesTrackingResult) Lines() []string {
	lines := []string{nativeDependenciesToLinkHeader}
	lines = append(lines, SerializeDependencies(wholeModules(dtr.NativeDependenciesToLink))...)
	lines = append(lines, allNativeDependenciesHeader)
	lines = append(lines, SerializeDependencies(wholeModules(dtr.AllNativeDependencies))...)
	lines = append(lines, allCachedBitcodeDependenciesHeader)
	return append(lines, SerializeDependencies(dtr.AllCachedBitcodeDependencies)...)
}

// Write writes the serialized result to `w`, one entry per line.
func (dtr *DependenciesTrackingResult) Write(w io.Writer) error {
	for _, line := range dtr.Lines() {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}

	return nil
}

// WriteFile writes the serialized result to the file at `path`.
func (dtr *DependenciesTrackingResult) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := dtr.Write(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func wholeModules(libs []*Library) []ResolvedDependency {
	deps := make([]ResolvedDependency, len(libs))
	for i, lib := range libs {
		deps[i] = ResolvedDependency{Library: lib, Kind: WholeModule()}
	}

	return deps
}

// ParseTrackingResult reads back a serialized result.  Native dependencies are
// returned in the order of `libs`.
func ParseTrackingResult(path string, lines []string, libs SortedLibraries) (*DependenciesTrackingResult, error) {
	section := func(header string) (int, error) {
		for i, line := range lines {
			if line == header {
				return i, nil
			}
		}

		return 0, fmt.Errorf("invalid dependency file at `%s`: missing %s", path, header)
	}

	toLinkNdx, err := section(nativeDependenciesToLinkHeader)
	if err != nil {
		return nil, err
	}

	allNativeNdx, err := section(allNativeDependenciesHeader)
	if err != nil {
		return nil, err
	}

	cachedNdx, err := section(allCachedBitcodeDependenciesHeader)
	if err != nil {
		return nil, err
	}

	if !(toLinkNdx < allNativeNdx && allNativeNdx < cachedNdx) {
		return nil, fmt.Errorf("invalid dependency file at `%s`: sections out of order", path)
	}

	toLink, err := parseLibraryNames(path, lines[toLinkNdx+1:allNativeNdx], libs)
	if err != nil {
		return nil, err
	}

	allNative, err := parseLibraryNames(path, lines[allNativeNdx+1:cachedNdx], libs)
	if err != nil {
		return nil, err
	}

	unresolved, err := DeserializeDependencies(path, lines[cachedNdx+1:])
	if err != nil {
		return nil, err
	}

	cached := make([]ResolvedDependency, 0, len(unresolved))
	for _, ud := range unresolved {
		rd, err := ud.Resolve(libs)
		if err != nil {
			return nil, fmt.Errorf("invalid dependency %s at `%s`", ud.LibName, path)
		}

		cached = append(cached, rd)
	}

	return &DependenciesTrackingResult{
		NativeDependenciesToLink:     toLink,
		AllNativeDependencies:        allNative,
		AllCachedBitcodeDependencies: cached,
	}, nil
}

// parseLibraryNames parses a section of whole module dependencies and returns
// the named libraries in topological order.
func parseLibraryNames(path string, lines []string, libs SortedLibraries) ([]*Library, error) {
	unresolved, err := DeserializeDependencies(path, lines)
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(unresolved))
	for _, ud := range unresolved {
		if libs.Find(ud.LibName) == nil {
			return nil, fmt.Errorf("invalid dependency %s at `%s`", ud.LibName, path)
		}

		names[ud.LibName] = struct{}{}
	}

	var result []*Library
	for _, lib := range libs {
		if _, ok := names[lib.Name]; ok {
			result = append(result, lib)
		}
	}

	return result, nil
}

// ReadTrackingResult reads a result written by `WriteFile`.
func ReadTrackingResult(path string, libs SortedLibraries) (*DependenciesTrackingResult, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	return ParseTrackingResult(path, lines, libs)
}

// readLines reads the non-empty lines of a file.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}

	return lines, scanner.Err()
}
