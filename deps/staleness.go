package deps

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DirtyReason is why a cached file must be rebuilt.
type DirtyReason int

const (
	// DirtyAdded is a file with no cache entry yet.
	DirtyAdded DirtyReason = iota

	// DirtyModified is a file whose content changed since it was cached.
	DirtyModified

	// DirtyRemoved is a cache entry whose file no longer exists.
	DirtyRemoved

	// DirtyDependsOnDirty is an unchanged file whose cache recorded a
	// dependency on a dirty file.
	DirtyDependsOnDirty
)

func (dr DirtyReason) String() string {
	switch dr {
	case DirtyAdded:
		return "added"
	case DirtyModified:
		return "modified"
	case DirtyRemoved:
		return "removed"
	case DirtyDependsOnDirty:
		return "depends on dirty"
	}

	return fmt.Sprintf("DirtyReason(%d)", int(dr))
}

// DirtyFile is a cached file that must be rebuilt.
type DirtyFile struct {
	Library *Library
	FileID  string

	// File is the source file.  It is zero for a removed file.
	File LibraryFile

	Reason DirtyReason
}

// Fingerprint computes the content fingerprint of a source file as recorded
// in the `hash` file of its cache.  The path takes part in the fingerprint so
// that moving a file invalidates its cache.
func Fingerprint(lf LibraryFile, content []byte) string {
	h := sha256.New()
	h.Write([]byte(norm.NFC.String(lf.FqName)))
	h.Write([]byte{0})
	h.Write([]byte(norm.NFC.String(lf.Path)))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// fileKey identifies a file across libraries.  An empty file id stands for
// the library as a whole.
type fileKey struct {
	lib, id string
}

// FindDirtyFiles determines which cached files of the `eligible` libraries
// must be rebuilt.  Files whose fingerprint changed, removed files and new
// files are dirty; so is every cached file that, directly or through other
// files, depends on a dirty file.  Dependencies are followed across every
// per-file cache, but only files of eligible libraries are reported.
func FindDirtyFiles(caches *CachedLibraries, eligible []string) ([]DirtyFile, error) {
	libs := caches.Libraries()
	isEligible := make(map[string]bool, len(eligible))
	for _, name := range eligible {
		if libs.Find(name) == nil {
			return nil, fmt.Errorf("unknown library: %s", name)
		}

		isEligible[name] = true
	}

	dirty := make(map[fileKey]DirtyFile)
	var seeds []fileKey

	// Diff the fingerprints of every per-file cache.  Libraries that are not
	// eligible still seed the propagation.
	perFile := make(map[string]*PerFileCache)
	for _, lib := range libs {
		c, err := caches.LibraryCache(lib)
		if err != nil {
			return nil, err
		}

		pc, ok := c.(*PerFileCache)
		if !ok {
			continue
		}
		perFile[lib.Name] = pc

		changes, err := diffLibrary(lib, pc)
		if err != nil {
			return nil, err
		}

		for _, df := range changes {
			key := fileKey{lib.Name, df.FileID}
			dirty[key] = df

			if df.Reason != DirtyAdded {
				seeds = append(seeds, key)
			}
		}
	}

	// Reverse the recorded dependency edges: a dependency on a whole library
	// is an edge from every one of its files.
	reversed := make(map[fileKey][]fileKey)
	for _, lib := range libs {
		pc, ok := perFile[lib.Name]
		if !ok {
			continue
		}

		for _, id := range pc.FileIDs() {
			deps, err := pc.FileDependencies(id)
			if err != nil {
				return nil, err
			}

			dependent := fileKey{lib.Name, id}
			for _, dep := range deps {
				if dep.Kind.IsWholeModule() {
					target := fileKey{dep.LibName, ""}
					reversed[target] = append(reversed[target], dependent)
					continue
				}

				for _, depID := range dep.Kind.Files() {
					target := fileKey{dep.LibName, depID}
					reversed[target] = append(reversed[target], dependent)
				}
			}
		}
	}

	// Propagate along the reversed edges.
	visited := make(map[fileKey]bool)
	var walk func(key fileKey)
	walk = func(key fileKey) {
		for _, target := range []fileKey{key, {key.lib, ""}} {
			for _, dependent := range reversed[target] {
				if visited[dependent] {
					continue
				}
				visited[dependent] = true

				if _, ok := dirty[dependent]; !ok {
					lib := libs.Find(dependent.lib)
					lf, _ := lib.FileByID(dependent.id)
					dirty[dependent] = DirtyFile{
						Library: lib,
						FileID:  dependent.id,
						File:    lf,
						Reason:  DirtyDependsOnDirty,
					}
				}

				walk(dependent)
			}
		}
	}

	for _, seed := range seeds {
		visited[seed] = true
	}

	for _, seed := range seeds {
		walk(seed)
	}

	// Report in library order, then by file id.
	position := make(map[string]int, len(libs))
	for i, lib := range libs {
		position[lib.Name] = i
	}

	var result []DirtyFile
	for key, df := range dirty {
		if isEligible[key.lib] {
			result = append(result, df)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		pi, pj := position[result[i].Library.Name], position[result[j].Library.Name]
		if pi != pj {
			return pi < pj
		}

		return result[i].FileID < result[j].FileID
	})

	return result, nil
}

// diffLibrary compares the current files of a library against its cache.
func diffLibrary(lib *Library, pc *PerFileCache) ([]DirtyFile, error) {
	var changes []DirtyFile
	current := make(map[string]struct{}, len(lib.Files))

	for _, lf := range lib.Files {
		id := lf.ID()
		current[id] = struct{}{}

		if !pc.Has(id) {
			changes = append(changes, DirtyFile{Library: lib, FileID: id, File: lf, Reason: DirtyAdded})
			continue
		}

		content, err := os.ReadFile(lib.SourcePath(lf))
		if err != nil {
			return nil, fmt.Errorf("unable to read source file `%s` of library `%s`: %w", lf.Path, lib.Name, err)
		}

		cached, err := pc.HashOf(id)
		if err != nil {
			return nil, fmt.Errorf("unable to read cached fingerprint of `%s`: %w", lf.Path, err)
		}

		if cached != Fingerprint(lf, content) {
			changes = append(changes, DirtyFile{Library: lib, FileID: id, File: lf, Reason: DirtyModified})
		}
	}

	for _, id := range pc.FileIDs() {
		if _, ok := current[id]; !ok {
			changes = append(changes, DirtyFile{Library: lib, FileID: id, Reason: DirtyRemoved})
		}
	}

	return changes, nil
}
