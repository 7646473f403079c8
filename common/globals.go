package common

// NativecHome is the path to the compiler installation directory: the parent
// directory of the bundled `tools/bin` and `runtime` directories.
var NativecHome string = ""

// NativecVersion is the current compiler version as a string.
const NativecVersion string = "0.1.0"

// ProfileFileName is the name of a build profile file.
const ProfileFileName string = "nativec.toml"

// ManifestFileName is the name of the manifest file at the root of every
// library directory.
const ManifestFileName string = "manifest.yaml"

// RuntimeLibraryName is the name of the library holding the native runtime.
const RuntimeLibraryName string = "nativec-runtime"

// -----------------------------------------------------------------------------

// The fixed names making up the on-disk cache layout.  Existing caches are
// read and written using exactly these names.
const (
	CacheHashFileName     = "hash"
	BitcodeDepsFileName   = "bitcode_deps"
	InlineBodiesFileName  = "inline_bodies"
	ClassFieldsFileName   = "class_fields"
	EagerInitFileName     = "eager_init"
	CacheBinDirName       = "bin"
	CacheIRDirName        = "ir"
	MonolithicCacheSuffix = "-cache"
	PerFileCacheSuffix    = "-per-file-cache"
	StaticCacheExt        = ".a"
)

// The package and file name of the runtime entry file inside the runtime
// library.  Code calling into the runtime depends on this file.
const (
	RuntimePackageName = "nativec.internal"
	RuntimeFileName    = "Runtime.kt"
)
