package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nativec/common"

	"github.com/google/uuid"
)

// CacheContents is what a cache, or one file of a per-file cache, holds.
type CacheContents struct {
	// Binary is the static library built for the cache.
	Binary []byte

	BitcodeDeps  []ResolvedDependency
	InlineBodies []byte
	ClassFields  []byte

	// EagerInit lists eagerly initialized file ids.  For a single file of a
	// per-file cache, any entry marks the file itself.
	EagerInit []string
}

// FileCacheContents is the cache of one file of a per-file cache.
type FileCacheContents struct {
	File LibraryFile

	// Fingerprint is the value of `Fingerprint` for the file's source.
	Fingerprint string

	CacheContents
}

// CacheWriter writes new caches for a library.  Every write is staged in a
// uniquely named hidden directory and moved into place once complete, so an
// interrupted write never leaves a half written cache behind.
type CacheWriter struct {
	dir string
	lib *Library
}

// NewCacheWriter creates a writer placing the caches of `lib` in `dir`.
func NewCacheWriter(dir string, lib *Library) *CacheWriter {
	return &CacheWriter{dir: dir, lib: lib}
}

// MonolithicPath is the directory of the library's monolithic cache.
func (cw *CacheWriter) MonolithicPath() string {
	return filepath.Join(cw.dir, cw.lib.Name+common.MonolithicCacheSuffix)
}

// PerFilePath is the directory of the library's per-file cache.
func (cw *CacheWriter) PerFilePath() string {
	return filepath.Join(cw.dir, cw.lib.Name+common.PerFileCacheSuffix)
}

// WriteMonolithic writes the monolithic cache of the library, replacing any
// existing one.
func (cw *CacheWriter) WriteMonolithic(contents *CacheContents) error {
	if err := os.MkdirAll(cw.dir, os.ModePerm); err != nil {
		return fmt.Errorf("unable to create cache directory: %w", err)
	}

	staging := filepath.Join(cw.dir, stagingName())
	if err := cw.writeParts(staging, contents); err != nil {
		os.RemoveAll(staging)
		return err
	}

	return commit(staging, cw.MonolithicPath())
}

// WriteFiles writes or replaces the given files of the per-file cache.  Files
// not listed are left as they are.
func (cw *CacheWriter) WriteFiles(files []*FileCacheContents) error {
	root := cw.PerFilePath()
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return fmt.Errorf("unable to create cache directory: %w", err)
	}

	for _, fc := range files {
		staging := filepath.Join(root, stagingName())

		contents := fc.CacheContents
		if len(contents.EagerInit) > 0 {
			contents.EagerInit = []string{fc.File.ID()}
		}

		err := cw.writeParts(staging, &contents)
		if err == nil {
			err = writeFile(filepath.Join(staging, common.CacheHashFileName), []byte(fc.Fingerprint+"\n"))
		}

		if err != nil {
			os.RemoveAll(staging)
			return err
		}

		if err := commit(staging, filepath.Join(root, fc.File.ID())); err != nil {
			return err
		}
	}

	return nil
}

// RemoveFile deletes the cache of a single file of the per-file cache.
func (cw *CacheWriter) RemoveFile(fileID string) error {
	return os.RemoveAll(filepath.Join(cw.PerFilePath(), fileID))
}

// writeParts writes the `bin` and `ir` parts of a cache under `root`.
func (cw *CacheWriter) writeParts(root string, contents *CacheContents) error {
	binDir := filepath.Join(root, common.CacheBinDirName)
	irDir := filepath.Join(root, common.CacheIRDirName)

	for _, dir := range []string{binDir, irDir} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("unable to create cache directory: %w", err)
		}
	}

	if err := writeFile(filepath.Join(binDir, cw.lib.Name+common.StaticCacheExt), contents.Binary); err != nil {
		return err
	}

	parts := []struct {
		name string
		data []byte
	}{
		{common.BitcodeDepsFileName, joinLines(SerializeDependencies(contents.BitcodeDeps))},
		{common.InlineBodiesFileName, contents.InlineBodies},
		{common.ClassFieldsFileName, contents.ClassFields},
		{common.EagerInitFileName, joinLines(contents.EagerInit)},
	}

	for _, part := range parts {
		if err := writeFile(filepath.Join(irDir, part.name), part.data); err != nil {
			return err
		}
	}

	return nil
}

func stagingName() string {
	return ".staging-" + uuid.NewString()
}

// commit moves a staged directory to its final location.
func commit(staging, final string) error {
	if err := os.RemoveAll(final); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("unable to replace cache at `%s`: %w", final, err)
	}

	if err := os.Rename(staging, final); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("unable to move cache into `%s`: %w", final, err)
	}

	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write cache file `%s`: %w", path, err)
	}

	return nil
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}

	return []byte(strings.Join(lines, "\n") + "\n")
}
