package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nativec/deps"
	"nativec/ir"
	"nativec/report"
	"nativec/util"
)

// buildCaches builds the caches of the given libraries, dependencies first.
// New caches are written to the first cache directory.
func (c *Compiler) buildCaches(names []string) error {
	for _, lib := range c.libs {
		if !util.Contains(names, lib.Name) {
			continue
		}

		writer := deps.NewCacheWriter(c.cfg.CacheDirs[0], lib)

		var err error
		if c.cfg.PerFileCaches {
			report.ReportInfo("Caching", "%s (per-file, %d files)", lib.Name, len(lib.Files))
			err = c.buildFileCaches(lib, writer, lib.Files)
		} else {
			report.ReportInfo("Caching", "%s (monolithic)", lib.Name)
			err = c.buildMonolithicCache(lib, writer)
		}

		if err != nil {
			return fmt.Errorf("unable to cache library `%s`: %w", lib.Name, err)
		}

		// Later libraries may depend on the cache just written.
		c.reloadCaches(c.cfg.AllowIncompleteCaches)
	}

	return nil
}

// buildMonolithicCache compiles a whole library into a single cache.
func (c *Compiler) buildMonolithicCache(lib *deps.Library, writer *deps.CacheWriter) error {
	tracker := deps.NewTracker(c.libs, c.caches, deps.TrackerOptions{Current: lib.Name})

	mod, b, err := c.loadAndLower(lib, lib.Files, tracker)
	if err != nil {
		return err
	}

	if mod.Name == "" {
		mod.Name = lib.Name
	}

	out := c.generate(mod, b, tracker)
	binary, err := c.compileToBinary(out, lib.Name)
	if err != nil {
		return err
	}

	bitcodeDeps, err := tracker.ImmediateBitcodeDependencies()
	if err != nil {
		return err
	}

	return writer.WriteMonolithic(&deps.CacheContents{
		Binary:       binary,
		BitcodeDeps:  bitcodeDeps,
		InlineBodies: inlineBodies(mod.Files),
		ClassFields:  joinLines(out.ClassFields),
		EagerInit:    fileIDs(out.InitializedFiles),
	})
}

// buildFileCaches compiles the given files of a library into its per-file
// cache.  The files are lowered together but every file is generated on its
// own, so that the dependencies recorded for a file are exactly the
// declarations it references, including those of sibling files.
func (c *Compiler) buildFileCaches(lib *deps.Library, writer *deps.CacheWriter, files []deps.LibraryFile) error {
	if len(files) == 0 {
		return nil
	}

	mod, b, err := c.loadAndLower(lib, files, nil)
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(files))
	for _, lf := range files {
		wanted[lf.ID()] = struct{}{}
	}

	var contents []*deps.FileCacheContents
	for _, file := range mod.Files {
		lf := deps.LibraryFile{FqName: file.FqName, Path: file.Path}
		if _, ok := wanted[lf.ID()]; !ok {
			continue
		}
		delete(wanted, lf.ID())

		fc, err := c.buildFileCache(lib, lf, file, b)
		if err != nil {
			return err
		}

		contents = append(contents, fc)
	}

	if len(wanted) > 0 {
		missing := util.Filter(files, func(lf deps.LibraryFile) bool {
			_, ok := wanted[lf.ID()]
			return ok
		})

		paths := util.Map(missing, func(lf deps.LibraryFile) string { return lf.Path })
		return fmt.Errorf("the frontend did not load %s", strings.Join(paths, ", "))
	}

	return writer.WriteFiles(contents)
}

// buildFileCache generates a single file of a per-file cache.
func (c *Compiler) buildFileCache(lib *deps.Library, lf deps.LibraryFile, file *ir.File, b *ir.Builtins) (*deps.FileCacheContents, error) {
	tracker := deps.NewTracker(c.libs, c.caches, deps.TrackerOptions{Current: lib.Name, CurrentPerFile: true})

	out := c.generate(&ir.Module{Name: file.Path, Files: []*ir.File{file}}, b, tracker)
	binary, err := c.compileToBinary(out, lib.Name)
	if err != nil {
		return nil, err
	}

	bitcodeDeps, err := tracker.ImmediateBitcodeDependencies()
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(lib.SourcePath(lf))
	if err != nil {
		return nil, fmt.Errorf("unable to fingerprint `%s`: %w", lf.Path, err)
	}

	return &deps.FileCacheContents{
		File:        lf,
		Fingerprint: deps.Fingerprint(lf, source),
		CacheContents: deps.CacheContents{
			Binary:       binary,
			BitcodeDeps:  bitcodeDeps,
			InlineBodies: inlineBodies([]*ir.File{file}),
			ClassFields:  joinLines(out.ClassFields),
			EagerInit:    fileIDs(out.InitializedFiles),
		},
	}, nil
}

// -----------------------------------------------------------------------------

// DirtyFiles returns the cached files that are out of date with respect to
// the sources of their library.
func (c *Compiler) DirtyFiles() ([]deps.DirtyFile, error) {
	if c.libs == nil {
		if err := c.resolve(); err != nil {
			return nil, err
		}
	}

	view := deps.NewCachedLibraries(c.libs, c.cfg.CacheDirs, true)
	return deps.FindDirtyFiles(view, c.libs.Names())
}

// refreshCaches brings the per-file caches up to date: dirty files are
// rebuilt and the caches of removed files are deleted.  Libraries are
// refreshed dependencies first so that a rebuilt file sees the refreshed
// caches of the files it depends on.
func (c *Compiler) refreshCaches() error {
	dirty, err := c.DirtyFiles()
	if err != nil {
		return err
	}

	if len(dirty) == 0 {
		return nil
	}

	byLib := make(map[string][]deps.DirtyFile)
	for _, df := range dirty {
		byLib[df.Library.Name] = append(byLib[df.Library.Name], df)
	}

	report.BeginPhase("Refreshing Caches")
	defer c.reloadCaches(c.cfg.AllowIncompleteCaches)

	for _, lib := range c.libs {
		files := byLib[lib.Name]
		if len(files) == 0 {
			continue
		}

		// Dependencies must be found even while they miss files.
		c.reloadCaches(true)
		cache, err := c.caches.LibraryCache(lib)
		if err != nil || cache == nil {
			report.EndPhase(false)
			return fmt.Errorf("cache of library `%s` disappeared while refreshing it", lib.Name)
		}

		writer := deps.NewCacheWriter(filepath.Dir(cache.Path()), lib)

		var rebuild []deps.LibraryFile
		for _, df := range files {
			report.Debugf("cache", "%s: %s is dirty (%s)", lib.Name, df.FileID, df.Reason)

			if df.Reason == deps.DirtyRemoved {
				if err := writer.RemoveFile(df.FileID); err != nil {
					report.EndPhase(false)
					return err
				}

				continue
			}

			rebuild = append(rebuild, df.File)
		}

		if err := c.buildFileCaches(lib, writer, rebuild); err != nil {
			report.EndPhase(false)
			return fmt.Errorf("unable to refresh cache of library `%s`: %w", lib.Name, err)
		}
	}

	report.EndPhase(true)
	return nil
}

// UpdateCaches resolves the libraries of the profile and refreshes their
// per-file caches.
func (c *Compiler) UpdateCaches() error {
	if err := c.resolve(); err != nil {
		return err
	}

	if err := c.openWorkDir(); err != nil {
		return err
	}
	defer os.RemoveAll(c.workDir)

	return c.refreshCaches()
}

// -----------------------------------------------------------------------------

// inlineBodies renders the bodies of the inline functions of the given files.
// Callers in other libraries inline them from the cache.
func inlineBodies(files []*ir.File) []byte {
	sb := strings.Builder{}
	for _, file := range files {
		ir.VisitAll(file, func(e ir.Element) {
			if fn, ok := e.(*ir.Function); ok && fn.IsInline && fn.Body != nil {
				sb.WriteString(ir.Dump(fn))
			}
		})
	}

	return []byte(sb.String())
}

func fileIDs(files []*ir.File) []string {
	return util.Map(files, func(file *ir.File) string {
		return deps.LibraryFile{FqName: file.FqName, Path: file.Path}.ID()
	})
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}

	return []byte(strings.Join(lines, "\n") + "\n")
}
