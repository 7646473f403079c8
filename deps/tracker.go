package deps

import (
	"fmt"
	"path"

	"nativec/common"
	"nativec/ir"
	"nativec/report"
)

// Tracker records which libraries and library files the generated code
// actually references.  A dependency is either a full native dependency (the
// library's binary must be linked) or a bitcode-only one (its code is
// concatenated into the output rather than linked separately).
//
// `CollectResult` seals the tracker: adding a dependency afterwards is an
// internal error.
type Tracker struct {
	libs   SortedLibraries
	caches *CachedLibraries

	// current is the library being compiled, if any.  Its files are only
	// recorded when it is being built into a per-file cache.
	current        string
	currentPerFile bool

	usedBitcode       map[string]struct{}
	usedNative        map[string]struct{}
	usedBitcodeOfFile map[string][]LibraryFile
	seenFiles         map[string]map[LibraryFile]struct{}

	sealed bool
	deps   *dependencies
}

// TrackerOptions configures a tracker.
type TrackerOptions struct {
	// Current names the library being compiled into a cache.  Leave it empty
	// when compiling a program.
	Current string

	// CurrentPerFile is set when the current library is built into a
	// per-file cache.  References between its files are then recorded.
	CurrentPerFile bool
}

// NewTracker creates a new dependency tracker.
func NewTracker(libs SortedLibraries, caches *CachedLibraries, opts TrackerOptions) *Tracker {
	return &Tracker{
		libs:              libs,
		caches:            caches,
		current:           opts.Current,
		currentPerFile:    opts.CurrentPerFile,
		usedBitcode:       make(map[string]struct{}),
		usedNative:        make(map[string]struct{}),
		usedBitcodeOfFile: make(map[string][]LibraryFile),
		seenFiles:         make(map[string]map[LibraryFile]struct{}),
	}
}

// Add records a dependency on the file declaring `decl`.
func (t *Tracker) Add(decl ir.Declaration, onlyBitcode bool) {
	file := ir.FileOf(decl)
	if file == nil {
		report.ICE("dependency on detached declaration %s", ir.Describe(decl))
	}

	t.AddFile(file, onlyBitcode)
}

// AddFile records a dependency on a file.
func (t *Tracker) AddFile(file *ir.File, onlyBitcode bool) {
	t.checkNotSealed()

	libName := file.Library
	if libName == "" || (libName == t.current && !t.currentPerFile) {
		return
	}

	lib := t.requireLibrary(libName)
	if lib.IsInterop {
		t.add(lib, nil, onlyBitcode)
		return
	}

	lf := LibraryFile{FqName: file.FqName, Path: file.Path}
	t.add(lib, &lf, onlyBitcode)
}

// AddNativeRuntime records a dependency on the runtime.
func (t *Tracker) AddNativeRuntime(onlyBitcode bool) {
	t.checkNotSealed()

	lib := t.requireLibrary(common.RuntimeLibraryName)
	for _, lf := range lib.Files {
		if lf.FqName == common.RuntimePackageName && path.Base(lf.Path) == common.RuntimeFileName {
			t.add(lib, &lf, onlyBitcode)
			return
		}
	}

	report.ICE("no %s in package %s of the runtime library", common.RuntimeFileName, common.RuntimePackageName)
}

// ObserveDeclaration records a declaration referenced while lowering.
func (t *Tracker) ObserveDeclaration(d ir.Declaration) {
	t.Add(d, false)
}

func (t *Tracker) checkNotSealed() {
	if t.sealed {
		report.ICE("the dependencies have been sealed off")
	}
}

func (t *Tracker) requireLibrary(name string) *Library {
	lib := t.libs.Find(name)
	if lib == nil {
		report.ICE("library `%s` is used but not requested; requested libraries: %v", name, t.libs.Names())
	}

	return lib
}

func (t *Tracker) add(lib *Library, lf *LibraryFile, onlyBitcode bool) {
	t.usedBitcode[lib.Name] = struct{}{}
	if !onlyBitcode {
		t.usedNative[lib.Name] = struct{}{}
	}

	if lf == nil {
		return
	}

	seen, ok := t.seenFiles[lib.Name]
	if !ok {
		seen = make(map[LibraryFile]struct{})
		t.seenFiles[lib.Name] = seen
	}

	if _, ok := seen[*lf]; !ok {
		seen[*lf] = struct{}{}
		t.usedBitcodeOfFile[lib.Name] = append(t.usedBitcodeOfFile[lib.Name], *lf)
	}
}

func (t *Tracker) bitcodeIsUsed(lib *Library) bool {
	_, ok := t.usedBitcode[lib.Name]
	return ok
}

// -----------------------------------------------------------------------------

// dependencies is everything computed from the recorded dependencies when the
// tracker is sealed.
type dependencies struct {
	immediateBitcode []ResolvedDependency
	allCached        []ResolvedDependency
	allBitcode       []ResolvedDependency
	nativeToLink     []*Library
	allNative        []*Library
}

// CollectResult seals the tracker and returns the result of the tracking.
func (t *Tracker) CollectResult() (*DependenciesTrackingResult, error) {
	d, err := t.dependencies()
	if err != nil {
		return nil, err
	}

	return &DependenciesTrackingResult{
		NativeDependenciesToLink:     d.nativeToLink,
		AllNativeDependencies:        d.allNative,
		AllCachedBitcodeDependencies: d.allCached,
	}, nil
}

// ImmediateBitcodeDependencies returns the dependencies recorded directly,
// whole modules first.  It seals the tracker.
func (t *Tracker) ImmediateBitcodeDependencies() ([]ResolvedDependency, error) {
	d, err := t.dependencies()
	if err != nil {
		return nil, err
	}

	return d.immediateBitcode, nil
}

// AllBitcodeDependencies returns the final bitcode link list in topological
// order: uncached libraries as whole modules and cached ones as computed from
// their caches.  It seals the tracker.
func (t *Tracker) AllBitcodeDependencies() ([]ResolvedDependency, error) {
	d, err := t.dependencies()
	if err != nil {
		return nil, err
	}

	return d.allBitcode, nil
}

func (t *Tracker) dependencies() (*dependencies, error) {
	t.sealed = true
	if t.deps != nil {
		return t.deps, nil
	}

	d := &dependencies{}

	// Immediate dependencies.
	var files []ResolvedDependency
	for _, lib := range t.libs {
		used := t.usedBitcodeOfFile[lib.Name]
		if len(used) == 0 && t.bitcodeIsUsed(lib) && lib.Name != t.current {
			d.immediateBitcode = append(d.immediateBitcode, ResolvedDependency{Library: lib, Kind: WholeModule()})
		}

		if len(used) > 0 {
			ids := make([]string, len(used))
			for i, lf := range used {
				ids[i] = lf.ID()
			}

			files = append(files, ResolvedDependency{Library: lib, Kind: CertainFiles(ids...)})
		}
	}
	d.immediateBitcode = append(d.immediateBitcode, files...)

	// Cached dependencies.
	computer := newCachedDepsComputer(t)
	if err := computer.run(); err != nil {
		return nil, err
	}
	d.allCached = computer.result()

	// The full bitcode list: every uncached library whole, overridden by the
	// cached dependencies.
	allBitcode := make(map[string]ResolvedDependency)
	for _, lib := range t.libs {
		if lib.Name == t.current || !t.caches.IsCached(lib) {
			allBitcode[lib.Name] = ResolvedDependency{Library: lib, Kind: WholeModule()}
		}
	}

	for _, dep := range d.allCached {
		allBitcode[dep.Library.Name] = dep
	}

	for _, lib := range t.libs {
		if dep, ok := allBitcode[lib.Name]; ok {
			d.allBitcode = append(d.allBitcode, dep)
		}
	}

	// Native dependencies.
	native := make(map[string]struct{})
	for _, lib := range t.libs {
		if _, used := t.usedNative[lib.Name]; !lib.IsDefault || used {
			d.nativeToLink = append(d.nativeToLink, lib)
			native[lib.Name] = struct{}{}
		}
	}

	for _, dep := range d.allCached {
		native[dep.Library.Name] = struct{}{}
	}

	for _, lib := range t.libs {
		if _, ok := native[lib.Name]; ok {
			d.allNative = append(d.allNative, lib)
		}
	}

	t.deps = d
	return d, nil
}

// -----------------------------------------------------------------------------

// cachedDepsComputer computes the transitive closure of the dependencies
// served from library caches.  Per-file caches only contribute the edges of
// the files actually used; once a library is depended on as a whole, its
// per-file dependencies are no longer tracked.
type cachedDepsComputer struct {
	t *Tracker

	moduleDeps map[string]struct{}
	moduleList []*Library

	fileDeps map[string]map[string]struct{}
	fileList map[string][]string
	fileLibs []*Library
}

func newCachedDepsComputer(t *Tracker) *cachedDepsComputer {
	return &cachedDepsComputer{
		t:          t,
		moduleDeps: make(map[string]struct{}),
		fileDeps:   make(map[string]map[string]struct{}),
		fileList:   make(map[string][]string),
	}
}

func (cdc *cachedDepsComputer) run() error {
	for _, lib := range cdc.t.libs {
		if lib.IsDefault && !cdc.t.bitcodeIsUsed(lib) {
			continue
		}

		if lib.Name == cdc.t.current {
			continue
		}

		cache, err := cdc.t.caches.LibraryCache(lib)
		if err != nil {
			return err
		}

		if cache == nil {
			continue
		}

		var filesUsed []string
		for _, lf := range cdc.t.usedBitcodeOfFile[lib.Name] {
			filesUsed = append(filesUsed, lf.ID())
		}

		eager, err := cache.EagerInitFiles()
		if err != nil {
			return err
		}

		filesUsed = append(filesUsed, eager...)

		if len(filesUsed) == 0 {
			// The whole module is used rather than a number of files.
			cdc.addModule(lib)
			if err := cdc.addAllDependencies(cache); err != nil {
				return err
			}

			continue
		}

		filesUsed = cdc.markFiles(lib, filesUsed)
		if err := cdc.addDependencies(cache, filesUsed); err != nil {
			return err
		}
	}

	return nil
}

func (cdc *cachedDepsComputer) result() []ResolvedDependency {
	var result []ResolvedDependency
	for _, lib := range cdc.moduleList {
		result = append(result, ResolvedDependency{Library: lib, Kind: WholeModule()})
	}

	for _, lib := range cdc.fileLibs {
		if _, ok := cdc.moduleDeps[lib.Name]; ok {
			continue
		}

		result = append(result, ResolvedDependency{Library: lib, Kind: CertainFiles(cdc.fileList[lib.Name]...)})
	}

	return result
}

func (cdc *cachedDepsComputer) addModule(lib *Library) {
	cdc.moduleDeps[lib.Name] = struct{}{}
	cdc.moduleList = append(cdc.moduleList, lib)
}

// markFiles records the files as used and returns the ones not seen before.
func (cdc *cachedDepsComputer) markFiles(lib *Library, ids []string) []string {
	handled, ok := cdc.fileDeps[lib.Name]
	if !ok {
		handled = make(map[string]struct{})
		cdc.fileDeps[lib.Name] = handled
		cdc.fileLibs = append(cdc.fileLibs, lib)
	}

	var fresh []string
	for _, id := range ids {
		if _, ok := handled[id]; !ok {
			handled[id] = struct{}{}
			cdc.fileList[lib.Name] = append(cdc.fileList[lib.Name], id)
			fresh = append(fresh, id)
		}
	}

	return fresh
}

func (cdc *cachedDepsComputer) addAllDependencies(cache Cache) error {
	deps, err := cache.BitcodeDependencies()
	if err != nil {
		return err
	}

	return cdc.addUnresolved(deps)
}

func (cdc *cachedDepsComputer) addDependencies(cache Cache, files []string) error {
	if cache.Kind() == CacheMonolithic {
		return cdc.addAllDependencies(cache)
	}

	for _, id := range files {
		deps, err := cache.FileDependencies(id)
		if err != nil {
			return err
		}

		if err := cdc.addUnresolved(deps); err != nil {
			return err
		}
	}

	return nil
}

func (cdc *cachedDepsComputer) addUnresolved(deps []UnresolvedDependency) error {
	for _, ud := range deps {
		rd, err := ud.Resolve(cdc.t.libs)
		if err != nil {
			return err
		}

		if err := cdc.addDependency(rd); err != nil {
			return err
		}
	}

	return nil
}

func (cdc *cachedDepsComputer) addDependency(dep ResolvedDependency) error {
	lib := dep.Library
	if _, ok := cdc.moduleDeps[lib.Name]; ok {
		return nil
	}

	cache, err := cdc.t.caches.LibraryCache(lib)
	if err != nil {
		return err
	}

	if cache == nil {
		return &report.CacheError{
			Library: lib.Name,
			Message: fmt.Sprintf("expected to be cached as a dependency (%s)", dep.Kind),
		}
	}

	if dep.Kind.IsWholeModule() {
		cdc.addModule(lib)
		return cdc.addAllDependencies(cache)
	}

	if fresh := cdc.markFiles(lib, dep.Kind.Files()); len(fresh) > 0 {
		return cdc.addDependencies(cache, fresh)
	}

	return nil
}
