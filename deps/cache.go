package deps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"nativec/common"
	"nativec/report"
)

// CacheKind is the granularity of a library cache.
type CacheKind int

const (
	// CacheMonolithic is one binary for the whole library.
	CacheMonolithic CacheKind = iota

	// CachePerFile is one binary per source file of the library.
	CachePerFile
)

func (ck CacheKind) String() string {
	if ck == CacheMonolithic {
		return "monolithic"
	}

	return "per-file"
}

// Cache is a prebuilt native form of a library.  Its metadata is read lazily
// and kept for the lifetime of the process.
type Cache interface {
	// Library is the library the cache was built from.
	Library() *Library

	// Kind is the granularity of the cache.
	Kind() CacheKind

	// Path is the root directory of the cache.
	Path() string

	// BinaryPaths lists the binary artifacts to link.
	BinaryPaths() []string

	// BitcodeDependencies lists the dependencies of the whole cache.
	BitcodeDependencies() ([]UnresolvedDependency, error)

	// FileDependencies lists the dependencies of a single file.  For a
	// monolithic cache this is the dependencies of the whole cache.
	FileDependencies(fileID string) ([]UnresolvedDependency, error)

	// EagerInitFiles lists the ids of the files whose initializers run at
	// program start.  They are always used when the library is.
	EagerInitFiles() ([]string, error)
}

// -----------------------------------------------------------------------------

// MonolithicCache is a cache with a single binary and metadata directory.
type MonolithicCache struct {
	lib  *Library
	path string

	depsOnce sync.Once
	deps     []UnresolvedDependency
	depsErr  error

	eagerOnce sync.Once
	eager     []string
	eagerErr  error
}

func (mc *MonolithicCache) Library() *Library { return mc.lib }
func (mc *MonolithicCache) Kind() CacheKind   { return CacheMonolithic }
func (mc *MonolithicCache) Path() string      { return mc.path }

func (mc *MonolithicCache) BinaryPaths() []string {
	return []string{filepath.Join(mc.path, common.CacheBinDirName, mc.lib.Name+common.StaticCacheExt)}
}

func (mc *MonolithicCache) BitcodeDependencies() ([]UnresolvedDependency, error) {
	mc.depsOnce.Do(func() {
		mc.deps, mc.depsErr = readBitcodeDeps(filepath.Join(mc.path, common.CacheIRDirName))
	})

	return mc.deps, mc.depsErr
}

func (mc *MonolithicCache) FileDependencies(string) ([]UnresolvedDependency, error) {
	return mc.BitcodeDependencies()
}

func (mc *MonolithicCache) EagerInitFiles() ([]string, error) {
	mc.eagerOnce.Do(func() {
		mc.eager, mc.eagerErr = readOptionalLines(filepath.Join(mc.path, common.CacheIRDirName, common.EagerInitFileName))
	})

	return mc.eager, mc.eagerErr
}

// -----------------------------------------------------------------------------

// PerFileCache is a cache with one subdirectory per source file.
type PerFileCache struct {
	lib  *Library
	path string

	// fileIDs are the ids of the files present in the cache, sorted.
	fileIDs []string

	mu       sync.Mutex
	fileDeps map[string][]UnresolvedDependency

	allOnce sync.Once
	all     []UnresolvedDependency
	allErr  error

	eagerOnce sync.Once
	eager     []string
	eagerErr  error
}

func (pc *PerFileCache) Library() *Library { return pc.lib }
func (pc *PerFileCache) Kind() CacheKind   { return CachePerFile }
func (pc *PerFileCache) Path() string      { return pc.path }

// FileIDs returns the ids of the files present in the cache.
func (pc *PerFileCache) FileIDs() []string {
	return pc.fileIDs
}

// FileDir returns the cache directory of a file.
func (pc *PerFileCache) FileDir(fileID string) string {
	return filepath.Join(pc.path, fileID)
}

// Has returns whether the cache holds the file.
func (pc *PerFileCache) Has(fileID string) bool {
	ndx := sort.SearchStrings(pc.fileIDs, fileID)
	return ndx < len(pc.fileIDs) && pc.fileIDs[ndx] == fileID
}

func (pc *PerFileCache) BinaryPaths() []string {
	paths := make([]string, len(pc.fileIDs))
	for i, id := range pc.fileIDs {
		paths[i] = filepath.Join(pc.FileDir(id), common.CacheBinDirName, pc.lib.Name+common.StaticCacheExt)
	}

	return paths
}

func (pc *PerFileCache) FileDependencies(fileID string) ([]UnresolvedDependency, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if deps, ok := pc.fileDeps[fileID]; ok {
		return deps, nil
	}

	if !pc.Has(fileID) {
		return nil, &report.CacheError{
			Library: pc.lib.Name,
			Message: fmt.Sprintf("no cache for file `%s`", fileID),
		}
	}

	deps, err := readBitcodeDeps(filepath.Join(pc.FileDir(fileID), common.CacheIRDirName))
	if err != nil {
		return nil, err
	}

	pc.fileDeps[fileID] = deps
	return deps, nil
}

func (pc *PerFileCache) BitcodeDependencies() ([]UnresolvedDependency, error) {
	pc.allOnce.Do(func() {
		var lines []string
		for _, id := range pc.fileIDs {
			deps, err := pc.FileDependencies(id)
			if err != nil {
				pc.allErr = err
				return
			}

			for _, dep := range deps {
				lines = append(lines, serializeUnresolved(dep)...)
			}
		}

		pc.all, pc.allErr = DeserializeDependencies(pc.path, dedupe(lines))
	})

	return pc.all, pc.allErr
}

func (pc *PerFileCache) EagerInitFiles() ([]string, error) {
	pc.eagerOnce.Do(func() {
		for _, id := range pc.fileIDs {
			lines, err := readOptionalLines(filepath.Join(pc.FileDir(id), common.CacheIRDirName, common.EagerInitFileName))
			if err != nil {
				pc.eagerErr = err
				return
			}

			if len(lines) > 0 {
				pc.eager = append(pc.eager, id)
			}
		}
	})

	return pc.eager, pc.eagerErr
}

// HashOf returns the fingerprint recorded for a cached file.
func (pc *PerFileCache) HashOf(fileID string) (string, error) {
	buff, err := os.ReadFile(filepath.Join(pc.FileDir(fileID), common.CacheHashFileName))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(buff)), nil
}

func serializeUnresolved(ud UnresolvedDependency) []string {
	if ud.Kind.IsWholeModule() {
		return []string{ud.LibName + dependencyDelimiter}
	}

	lines := make([]string, len(ud.Kind.Files()))
	for i, id := range ud.Kind.Files() {
		lines[i] = ud.LibName + dependencyDelimiter + id
	}

	return lines
}

func dedupe(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	result := lines[:0]
	for _, line := range lines {
		if _, ok := seen[line]; !ok {
			seen[line] = struct{}{}
			result = append(result, line)
		}
	}

	return result
}

// readBitcodeDeps reads the `bitcode_deps` file of an `ir` directory.  A
// missing file means there are no dependencies.
func readBitcodeDeps(irDir string) ([]UnresolvedDependency, error) {
	path := filepath.Join(irDir, common.BitcodeDepsFileName)
	lines, err := readOptionalLines(path)
	if err != nil {
		return nil, err
	}

	return DeserializeDependencies(path, lines)
}

func readOptionalLines(path string) ([]string, error) {
	lines, err := readLines(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	return lines, err
}

// -----------------------------------------------------------------------------

// CachedLibraries finds the caches of the libraries of a compilation.  Each
// library is looked up once, on first use.
type CachedLibraries struct {
	libs            SortedLibraries
	dirs            []string
	allowIncomplete bool

	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once  sync.Once
	cache Cache
	err   error
}

// NewCachedLibraries creates a cache lookup over the given cache directories,
// searched in order.  Incomplete per-file caches are ignored unless
// `allowIncomplete` is set.
func NewCachedLibraries(libs SortedLibraries, dirs []string, allowIncomplete bool) *CachedLibraries {
	cl := &CachedLibraries{
		libs:            libs,
		dirs:            dirs,
		allowIncomplete: allowIncomplete,
		entries:         make(map[string]*cacheEntry, len(libs)),
	}

	for _, lib := range libs {
		cl.entries[lib.Name] = &cacheEntry{}
	}

	return cl
}

// Libraries returns the libraries the lookup covers.
func (cl *CachedLibraries) Libraries() SortedLibraries {
	return cl.libs
}

// LibraryCache returns the cache of a library or nil if it is not cached.
func (cl *CachedLibraries) LibraryCache(lib *Library) (Cache, error) {
	entry, ok := cl.entries[lib.Name]
	if !ok {
		return nil, fmt.Errorf("library `%s` is not part of the compilation", lib.Name)
	}

	entry.once.Do(func() {
		entry.cache, entry.err = cl.discover(lib)
	})

	return entry.cache, entry.err
}

// IsCached returns whether a library has a usable cache.
func (cl *CachedLibraries) IsCached(lib *Library) bool {
	c, err := cl.LibraryCache(lib)
	return err == nil && c != nil
}

// discover looks for the cache of a library in the cache directories.
func (cl *CachedLibraries) discover(lib *Library) (Cache, error) {
	for _, dir := range cl.dirs {
		monoPath := filepath.Join(dir, lib.Name+common.MonolithicCacheSuffix)
		if isDir(monoPath) {
			report.Debugf("cache", "found monolithic cache of `%s` at `%s`", lib.Name, monoPath)
			return &MonolithicCache{lib: lib, path: monoPath}, nil
		}

		perFilePath := filepath.Join(dir, lib.Name+common.PerFileCacheSuffix)
		if !isDir(perFilePath) {
			continue
		}

		entries, err := os.ReadDir(perFilePath)
		if err != nil {
			return nil, fmt.Errorf("unable to read cache at `%s`: %w", perFilePath, err)
		}

		var ids []string
		for _, e := range entries {
			// Hidden entries are staging directories of an unfinished write.
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				ids = append(ids, e.Name())
			}
		}
		sort.Strings(ids)

		pc := &PerFileCache{
			lib:      lib,
			path:     perFilePath,
			fileIDs:  ids,
			fileDeps: make(map[string][]UnresolvedDependency),
		}

		if missing := missingFiles(pc); len(missing) > 0 && !cl.allowIncomplete {
			report.Debugf("cache", "ignoring incomplete cache of `%s`: %d files missing", lib.Name, len(missing))
			return nil, nil
		}

		report.Debugf("cache", "found per-file cache of `%s` at `%s`", lib.Name, perFilePath)
		return pc, nil
	}

	return nil, nil
}

// missingFiles returns the ids of the library files the cache does not hold.
func missingFiles(pc *PerFileCache) []string {
	var missing []string
	for _, lf := range pc.lib.Files {
		if !pc.Has(lf.ID()) {
			missing = append(missing, lf.ID())
		}
	}

	return missing
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Preload discovers every cache and reads its bitcode dependencies ahead of
// time.  Libraries are handled in levels: every library of a level only
// depends on libraries of earlier levels, and the libraries of a level are
// loaded concurrently.
func (cl *CachedLibraries) Preload() error {
	for _, level := range cl.levels() {
		wg := &sync.WaitGroup{}
		errs := make([]error, len(level))

		for i, lib := range level {
			wg.Add(1)
			go func(i int, lib *Library) {
				defer wg.Done()

				c, err := cl.LibraryCache(lib)
				if err == nil && c != nil {
					_, err = c.BitcodeDependencies()
				}

				errs[i] = err
			}(i, lib)
		}

		wg.Wait()

		if err := errors.Join(errs...); err != nil {
			return err
		}
	}

	return nil
}

// levels groups the libraries by the length of their longest dependency
// chain.  Dependencies that come later in the sorted order belong to a cycle
// and are ignored.
func (cl *CachedLibraries) levels() [][]*Library {
	position := make(map[string]int, len(cl.libs))
	depth := make(map[string]int, len(cl.libs))
	var levels [][]*Library

	for i, lib := range cl.libs {
		position[lib.Name] = i

		d := 0
		for _, dep := range lib.Depends {
			if pos, ok := position[dep]; ok && pos < i && depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}

		depth[lib.Name] = d
		if d == len(levels) {
			levels = append(levels, nil)
		}

		levels[d] = append(levels[d], lib)
	}

	return levels
}
