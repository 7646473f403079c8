package common

import (
	"fmt"
	"hash/fnv"
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// FileID returns the stable identifier of a source file inside a library. It
// names the per-file cache directory of that file and is the unit recorded in
// `bitcode_deps`.  The path is NFC-normalised first so that the same file
// spelled with different Unicode compositions maps to the same cache entry.
func FileID(fqName, path string) string {
	normPath := norm.NFC.String(filepath.ToSlash(path))

	h := fnv.New64a()
	h.Write([]byte(normPath))

	if fqName == "" {
		fqName = "ROOT"
	}

	return fmt.Sprintf("%s.%016x", fqName, h.Sum64())
}
