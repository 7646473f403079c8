package deps

import (
	"fmt"

	"nativec/report"
)

// CheckCacheConsistency validates the caches before any build work starts.
// A cached library must have every one of its dependencies cached as well,
// and a library requested for caching must not already be cached.
func CheckCacheConsistency(caches *CachedLibraries, toCache []string) []*report.CacheError {
	libs := caches.Libraries()
	var errs []*report.CacheError

	for _, lib := range libs {
		c, err := caches.LibraryCache(lib)
		if err != nil {
			errs = append(errs, &report.CacheError{Library: lib.Name, Message: err.Error()})
			continue
		}

		if c == nil {
			continue
		}

		for _, depName := range lib.Depends {
			dep := libs.Find(depName)
			if dep == nil || !caches.IsCached(dep) {
				errs = append(errs, &report.CacheError{
					Library: lib.Name,
					Message: fmt.Sprintf("is cached but its dependency `%s` is not", depName),
				})
			}
		}
	}

	for _, name := range toCache {
		lib := libs.Find(name)
		if lib == nil {
			errs = append(errs, &report.CacheError{Library: name, Message: "requested for caching but not part of the compilation"})
			continue
		}

		if c, err := caches.LibraryCache(lib); err == nil && c != nil {
			errs = append(errs, &report.CacheError{
				Library: name,
				Message: fmt.Sprintf("requested for caching but already cached at `%s`", c.Path()),
			})
		}
	}

	return errs
}
