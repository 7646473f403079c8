// Package config loads the build configuration: the TOML build profile, its
// environment overrides, the target description and the binary options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nativec/common"

	"github.com/pelletier/go-toml"
	"github.com/xyproto/env/v2"
)

// OutputKind is the kind of artifact a build produces.
type OutputKind int

const (
	OutputExecutable OutputKind = iota
	OutputObject
	OutputLLVM
	OutputStaticCache
)

var outputKindNames = map[string]OutputKind{
	"executable":   OutputExecutable,
	"object":       OutputObject,
	"llvm":         OutputLLVM,
	"static-cache": OutputStaticCache,
}

// Config is the configuration of a single compilation.
type Config struct {
	// ProfilePath is the absolute path to the build profile.
	ProfilePath string

	// Name is the name of the program or library being built.
	Name string

	Target *Target

	OutputPath string
	OutputKind OutputKind

	// Libraries are the libraries the program depends on directly.
	Libraries []string

	// LibraryPaths are the directories libraries are searched in.
	LibraryPaths []string

	// CacheDirs are the directories caches are searched in.  New caches are
	// written to the first one.
	CacheDirs []string

	// LibrariesToCache are the libraries to build caches for.
	LibrariesToCache []string

	// PerFileCaches makes new caches per-file rather than monolithic.
	PerFileCaches bool

	AllowIncompleteCaches bool

	BinaryOptions BinaryOptionValues

	// LinkerFlags are raw flags passed to the linker.
	LinkerFlags []string

	// The paths to the external tools.
	LLCPath, LinkerPath string

	// LogLevel is the log level requested through the environment, if any.
	LogLevel string
}

// tomlProfile is a build profile as it is encoded in TOML.
type tomlProfile struct {
	Name          string      `toml:"name"`
	Target        *tomlTarget `toml:"target"`
	Output        *tomlOutput `toml:"output"`
	Libraries     []string    `toml:"libraries"`
	LibraryPaths  []string    `toml:"library-paths,omitempty"`
	Caches        *tomlCaches `toml:"caches"`
	BinaryOptions []string    `toml:"binary-options,omitempty"`
	LinkerFlags   []string    `toml:"linker-flags,omitempty"`
}

type tomlTarget struct {
	Triple    string   `toml:"triple"`
	CPU       string   `toml:"cpu"`
	Features  []string `toml:"features,omitempty"`
	OptLevel  int      `toml:"opt-level"`
	SizeLevel int      `toml:"size-level"`
	Reloc     string   `toml:"reloc"`
}

type tomlOutput struct {
	Path string `toml:"path"`
	Kind string `toml:"kind"`
}

type tomlCaches struct {
	Dirs            []string `toml:"dirs"`
	Libraries       []string `toml:"libraries,omitempty"`
	PerFile         bool     `toml:"per-file"`
	AllowIncomplete bool     `toml:"allow-incomplete"`
}

// Load loads the build profile at `path` and applies the environment
// overrides.
func Load(path string) (*Config, error) {
	abspath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	buff, err := os.ReadFile(abspath)
	if err != nil {
		return nil, fmt.Errorf("unable to read build profile at `%s`: %w", abspath, err)
	}

	cfg, err := Parse(abspath, buff)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// Parse decodes and validates a build profile.  Relative paths are resolved
// against the directory of `profilePath`.
func Parse(profilePath string, buff []byte) (*Config, error) {
	tp := &tomlProfile{}
	if err := toml.Unmarshal(buff, tp); err != nil {
		return nil, fmt.Errorf("error parsing build profile at `%s`: %w", profilePath, err)
	}

	if tp.Name == "" {
		return nil, fmt.Errorf("build profile at `%s` is missing a name", profilePath)
	}

	root := filepath.Dir(profilePath)
	cfg := &Config{
		ProfilePath:  profilePath,
		Name:         tp.Name,
		Libraries:    tp.Libraries,
		LibraryPaths: resolvePaths(root, tp.LibraryPaths),
		LinkerFlags:  tp.LinkerFlags,
		LLCPath:      "llc",
		LinkerPath:   "ld",
	}

	target, err := convertTarget(tp.Target)
	if err != nil {
		return nil, fmt.Errorf("build profile `%s`: %w", tp.Name, err)
	}
	cfg.Target = target

	cfg.OutputPath = filepath.Join(root, "out", tp.Name)
	if tp.Output != nil {
		if tp.Output.Path != "" {
			cfg.OutputPath = resolvePath(root, tp.Output.Path)
		}

		if tp.Output.Kind != "" {
			kind, ok := outputKindNames[tp.Output.Kind]
			if !ok {
				return nil, fmt.Errorf("build profile `%s`: invalid output kind `%s`", tp.Name, tp.Output.Kind)
			}

			cfg.OutputKind = kind
		}
	}

	if tp.Caches != nil {
		cfg.CacheDirs = resolvePaths(root, tp.Caches.Dirs)
		cfg.LibrariesToCache = tp.Caches.Libraries
		cfg.PerFileCaches = tp.Caches.PerFile
		cfg.AllowIncompleteCaches = tp.Caches.AllowIncomplete
	}

	if len(cfg.LibrariesToCache) > 0 && len(cfg.CacheDirs) == 0 {
		return nil, fmt.Errorf("build profile `%s`: libraries to cache given without a cache directory", tp.Name)
	}

	opts, err := ParseBinaryOptions(tp.BinaryOptions)
	if err != nil {
		return nil, fmt.Errorf("build profile `%s`: %w", tp.Name, err)
	}
	cfg.BinaryOptions = opts

	return cfg, nil
}

func convertTarget(tt *tomlTarget) (*Target, error) {
	if tt == nil {
		tt = &tomlTarget{}
	}

	t := &Target{
		Triple:    tt.Triple,
		CPU:       tt.CPU,
		Features:  tt.Features,
		OptLevel:  tt.OptLevel,
		SizeLevel: tt.SizeLevel,
	}

	if t.Triple == "" {
		t.Triple = HostTriple()
	}

	if t.OptLevel < 0 || t.OptLevel > 3 {
		return nil, fmt.Errorf("optimization level must be between 0 and 3, got %d", t.OptLevel)
	}

	if t.SizeLevel < 0 || t.SizeLevel > 2 {
		return nil, fmt.Errorf("size level must be between 0 and 2, got %d", t.SizeLevel)
	}

	if tt.Reloc != "" {
		reloc, ok := relocModeNames[strings.ToLower(tt.Reloc)]
		if !ok {
			return nil, fmt.Errorf("invalid relocation mode `%s`", tt.Reloc)
		}

		t.Reloc = reloc
	}

	t.resolveHost()
	return t, nil
}

// applyEnv applies the environment overrides.
func (c *Config) applyEnv() {
	if home := env.Str("NATIVEC_HOME"); home != "" {
		common.NativecHome = home
	}

	defaultLLC := c.LLCPath
	if common.NativecHome != "" {
		defaultLLC = filepath.Join(common.NativecHome, "tools", "bin", "llc")
	}

	c.LLCPath = env.Str("NATIVEC_LLC", defaultLLC)
	c.LinkerPath = env.Str("NATIVEC_LINKER", c.LinkerPath)
	c.LogLevel = env.Str("NATIVEC_LOGLEVEL")
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(root, filepath.FromSlash(path))
}

func resolvePaths(root string, paths []string) []string {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		resolved[i] = resolvePath(root, p)
	}

	return resolved
}
