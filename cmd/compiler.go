package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"nativec/common"
	"nativec/config"
	"nativec/deps"
	"nativec/generate"
	"nativec/ir"
	"nativec/lower"
	"nativec/report"

	"github.com/google/uuid"
)

// Frontend produces the IR the compiler lowers.  The frontend is not part of
// this repository: it is registered by the program embedding the compiler.
type Frontend interface {
	// Load builds the module described by the request.  The module holds the
	// requested files only.  Declarations referenced from other files live in
	// files that are not part of the module; those files must carry the name
	// of their library and their path relative to the library directory.
	Load(req *LoadRequest) (*ir.Module, error)
}

// LoadRequest describes the files a frontend must load.
type LoadRequest struct {
	Config *config.Config

	// Libraries are all the libraries of the compilation, dependencies first.
	Libraries deps.SortedLibraries

	// Library is the library whose files are loaded.  It is nil when the
	// program is loaded: program files have an empty library name.
	Library *deps.Library

	// Files are the files of Library to load.
	Files []deps.LibraryFile

	// Sources are the libraries without a cache.  Their files are compiled
	// into the program and must be part of the module.
	Sources []*deps.Library

	// Factory and Builtins must be used to build the module.
	Factory  *ir.Factory
	Builtins *ir.Builtins
}

// -----------------------------------------------------------------------------

// Compiler drives a single compilation: it resolves the libraries of the build
// profile, checks and refreshes the library caches, lowers and generates the
// program or the libraries to cache and runs the external tools.
type Compiler struct {
	cfg      *config.Config
	frontend Frontend

	// libs are the libraries of the compilation in dependency order.
	libs   deps.SortedLibraries
	caches *deps.CachedLibraries

	// toCache are the libraries whose caches this compilation writes.
	toCache []string

	// workDir holds the intermediate files of the compilation.  It is removed
	// when the compilation finishes.
	workDir string

	// objCounter numbers the intermediate object files.
	objCounter int
}

// NewCompiler creates a new compiler.  The frontend may be nil for operations
// that do not compile anything.
func NewCompiler(cfg *config.Config, fe Frontend) *Compiler {
	return &Compiler{cfg: cfg, frontend: fe}
}

// Build runs the compilation described by the build profile.
func (c *Compiler) Build() error {
	report.ReportCompileHeader(c.cfg.Target.String(), len(c.cfg.CacheDirs) > 0)

	if err := c.resolve(); err != nil {
		return err
	}

	if err := c.checkCaches(); err != nil {
		return err
	}

	if err := c.openWorkDir(); err != nil {
		return err
	}
	defer os.RemoveAll(c.workDir)

	if err := c.refreshCaches(); err != nil {
		return err
	}

	if err := c.buildCaches(c.toCache); err != nil {
		return err
	}

	if c.cfg.OutputKind == config.OutputStaticCache {
		return nil
	}

	return c.buildProgram()
}

// resolve finds the libraries of the compilation and sorts them.
func (c *Compiler) resolve() error {
	report.BeginPhase("Resolving")

	names := append([]string(nil), c.cfg.Libraries...)
	names = append(names, c.cfg.LibrariesToCache...)
	if c.cfg.OutputKind == config.OutputStaticCache {
		names = append(names, c.cfg.Name)
	}
	names = append(names, common.RuntimeLibraryName)

	found, err := deps.FindLibraries(c.cfg.LibraryPaths, names)
	if err != nil {
		report.EndPhase(false)
		return err
	}

	sorted, err := deps.ResolveLibraries(found)
	if err != nil {
		report.EndPhase(false)
		return err
	}

	c.libs = sorted
	c.reloadCaches(c.cfg.AllowIncompleteCaches)

	report.EndPhase(true)
	report.Debugf("resolve", "libraries: %v", sorted.Names())
	return nil
}

// Resolve resolves the libraries of the profile.  It returns them in
// dependency order along with their caches.
func (c *Compiler) Resolve() (deps.SortedLibraries, *deps.CachedLibraries, error) {
	if err := c.resolve(); err != nil {
		return nil, nil, err
	}

	return c.libs, c.caches, nil
}

// reloadCaches forgets every cache discovered so far.
func (c *Compiler) reloadCaches(allowIncomplete bool) {
	c.caches = deps.NewCachedLibraries(c.libs, c.cfg.CacheDirs, allowIncomplete)
}

// checkCaches validates the caches before any build work starts.  All
// consistency problems are reported together.
func (c *Compiler) checkCaches() error {
	if err := c.caches.Preload(); err != nil {
		return err
	}

	// Libraries of the profile cached by an earlier build are kept.  Asking
	// for a static cache of a cached library is an error.
	c.toCache = nil
	for _, name := range c.cfg.LibrariesToCache {
		if lib := c.libs.Find(name); lib == nil || !c.caches.IsCached(lib) {
			c.toCache = append(c.toCache, name)
		}
	}

	if c.cfg.OutputKind == config.OutputStaticCache {
		c.toCache = append(c.toCache, c.cfg.Name)
	}

	if len(c.toCache) > 0 && len(c.cfg.CacheDirs) == 0 {
		return fmt.Errorf("no cache directory to write the caches of %v to", c.toCache)
	}

	var errs []error
	for _, ce := range deps.CheckCacheConsistency(c.caches, c.toCache) {
		errs = append(errs, ce)
	}

	return errors.Join(errs...)
}

// openWorkDir creates the directory holding the intermediate files.
func (c *Compiler) openWorkDir() error {
	c.workDir = filepath.Join(os.TempDir(), "nativec-"+uuid.NewString())
	if err := os.MkdirAll(c.workDir, os.ModePerm); err != nil {
		return fmt.Errorf("unable to create work directory: %w", err)
	}

	report.Debugf("build", "work directory: %s", c.workDir)
	return nil
}

// -----------------------------------------------------------------------------

// loadAndLower asks the frontend for a module and runs the lowering pipeline
// over it.  A nil library loads the program.  If a tracker is given, it
// observes the declarations the lowering passes reference.
func (c *Compiler) loadAndLower(lib *deps.Library, files []deps.LibraryFile, tracker *deps.Tracker) (*ir.Module, *ir.Builtins, error) {
	if c.frontend == nil {
		return nil, nil, errors.New("no frontend is registered")
	}

	f := ir.NewFactory()
	b := ir.NewBuiltins(f)

	req := &LoadRequest{
		Config:    c.cfg,
		Libraries: c.libs,
		Library:   lib,
		Files:     files,
		Factory:   f,
		Builtins:  b,
	}

	what := "program"
	if lib != nil {
		what = "library " + lib.Name
	} else {
		req.Sources = c.uncachedLibraries()
	}

	report.BeginPhase("Loading")
	mod, err := c.frontend.Load(req)
	report.EndPhase(err == nil)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to load %s: %w", what, err)
	}

	ctx := lower.NewContext(f, b)
	ctx.VerifyAfterPhase = report.LogLevel() >= report.LogLevelDebug
	if tracker != nil {
		ctx.Observer = &trackerObserver{tracker: tracker, b: b}
	}

	if err := lower.NewPipeline(ctx).Lower(mod); err != nil {
		return nil, nil, err
	}

	return mod, b, nil
}

// uncachedLibraries returns the libraries whose code has to be compiled into
// the program.
func (c *Compiler) uncachedLibraries() []*deps.Library {
	var uncached []*deps.Library
	for _, lib := range c.libs {
		if !c.caches.IsCached(lib) {
			uncached = append(uncached, lib)
		}
	}

	return uncached
}

// generate runs the backend over a lowered module.  Constructs the backend
// cannot translate are reported as warnings: they trap when executed.
func (c *Compiler) generate(mod *ir.Module, b *ir.Builtins, tracker *deps.Tracker) *generate.Output {
	report.BeginPhase("Generating")

	backend := &generate.LLVMBackend{Builtins: b, Deps: tracker}
	out, diags := backend.Generate(mod, c.cfg.Target)
	for _, diag := range diags {
		report.ReportCompileWarning(diag.FilePath, diag.Span, "%s", diag.Message)
	}

	report.EndPhase(true)
	report.Debugf("generate", "%s: %d functions", mod.Name, out.Functions)
	return out
}

// trackerObserver routes the declarations observed during lowering to the
// dependency tracker.  Builtins are provided by the runtime.
type trackerObserver struct {
	tracker *deps.Tracker
	b       *ir.Builtins
}

func (to *trackerObserver) ObserveDeclaration(d ir.Declaration) {
	if to.b.IsBuiltin(d) {
		to.tracker.AddNativeRuntime(false)
		return
	}

	to.tracker.ObserveDeclaration(d)
}

var _ generate.DependencyRecorder = (*deps.Tracker)(nil)

// -----------------------------------------------------------------------------

// buildProgram compiles the program and produces the requested output.
func (c *Compiler) buildProgram() error {
	tracker := deps.NewTracker(c.libs, c.caches, deps.TrackerOptions{})

	mod, b, err := c.loadAndLower(nil, nil, tracker)
	if err != nil {
		return err
	}

	if mod.Name == "" {
		mod.Name = c.cfg.Name
	}

	out := c.generate(mod, b, tracker)

	result, err := tracker.CollectResult()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.cfg.OutputPath), os.ModePerm); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	switch c.cfg.OutputKind {
	case config.OutputLLVM:
		if err := out.WriteLL(c.cfg.OutputPath); err != nil {
			return err
		}
	case config.OutputObject:
		if err := c.compileLLVMModule(out, c.cfg.OutputPath); err != nil {
			return err
		}
	default:
		objPath := c.objPath(c.cfg.Name)
		if err := c.compileLLVMModule(out, objPath); err != nil {
			return err
		}

		return c.link(objPath, result)
	}

	// The output is linked by someone else: they need to know what to link
	// it with.
	return result.WriteFile(c.cfg.OutputPath + ".deps")
}
