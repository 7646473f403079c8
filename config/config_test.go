package config

import (
	"os"
	"path/filepath"
	"testing"

	"nativec/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `
name = "hello"
libraries = ["io"]
library-paths = ["libs", "/opt/nativec/libs"]
binary-options = ["gc=stwms"]
linker-flags = ["-lm"]

[target]
triple = "x86_64-unknown-linux-gnu"
cpu = "skylake"
features = ["+avx2"]
opt-level = 2
reloc = "PIC"

[output]
path = "bin/hello"
kind = "executable"

[caches]
dirs = ["cache"]
libraries = ["io"]
per-file = true
`

func TestParse_Profile(t *testing.T) {
	cfg, err := Parse("/work/hello/nativec.toml", []byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "hello", cfg.Name)
	assert.Equal(t, []string{"io"}, cfg.Libraries)
	assert.Equal(t, []string{filepath.Join("/work/hello", "libs"), "/opt/nativec/libs"}, cfg.LibraryPaths)
	assert.Equal(t, filepath.Join("/work/hello", "bin", "hello"), cfg.OutputPath)
	assert.Equal(t, OutputExecutable, cfg.OutputKind)
	assert.Equal(t, []string{filepath.Join("/work/hello", "cache")}, cfg.CacheDirs)
	assert.Equal(t, []string{"io"}, cfg.LibrariesToCache)
	assert.True(t, cfg.PerFileCaches)
	assert.Equal(t, GCStopTheWorldMarkAndSweep, cfg.BinaryOptions.GC())
	assert.Equal(t, []string{"-lm"}, cfg.LinkerFlags)

	assert.Equal(t, &Target{
		Triple:   "x86_64-unknown-linux-gnu",
		CPU:      "skylake",
		Features: []string{"+avx2"},
		OptLevel: 2,
		Reloc:    RelocPIC,
	}, cfg.Target)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse("/work/p/nativec.toml", []byte(`name = "p"`))
	require.NoError(t, err)

	assert.Equal(t, HostTriple(), cfg.Target.Triple)
	assert.Equal(t, filepath.Join("/work/p", "out", "p"), cfg.OutputPath)
	assert.Equal(t, "llc", cfg.LLCPath)
	assert.Empty(t, cfg.CacheDirs)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"missing name":      `libraries = []`,
		"bad output kind":   "name = \"p\"\n[output]\nkind = \"dll\"\n",
		"bad opt level":     "name = \"p\"\n[target]\nopt-level = 7\n",
		"bad reloc":         "name = \"p\"\n[target]\nreloc = \"ropi\"\n",
		"bad option":        "name = \"p\"\nbinary-options = [\"gc=magic\"]\n",
		"cache without dir": "name = \"p\"\n[caches]\nlibraries = [\"io\"]\n",
		"not toml":          "name = ",
	}

	for name, profile := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("/work/p/nativec.toml", []byte(profile))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, common.ProfileFileName)
	require.NoError(t, os.WriteFile(path, []byte(`name = "p"`), 0644))

	oldHome := common.NativecHome
	t.Cleanup(func() { common.NativecHome = oldHome })

	t.Setenv("NATIVEC_HOME", "/opt/nativec")
	t.Setenv("NATIVEC_LLC", "")
	t.Setenv("NATIVEC_LINKER", "/usr/bin/ld.lld")
	t.Setenv("NATIVEC_LOGLEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/nativec", common.NativecHome)
	assert.Equal(t, filepath.Join("/opt/nativec", "tools", "bin", "llc"), cfg.LLCPath)
	assert.Equal(t, "/usr/bin/ld.lld", cfg.LinkerPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestTarget_LLCArgs(t *testing.T) {
	target := &Target{Triple: "aarch64-apple-darwin", CPU: "apple-m1", Features: []string{"+neon", "-sve"}, OptLevel: 3, Reloc: RelocStatic}

	assert.Equal(t, []string{
		"-mtriple=aarch64-apple-darwin",
		"-O3",
		"-mcpu=apple-m1",
		"-mattr=+neon,-sve",
		"-relocation-model=static",
	}, target.LLCArgs())
}

func TestTarget_HostKeepsExplicitFeatures(t *testing.T) {
	target := &Target{CPU: "host", Features: []string{"-avx2", "-neon"}}
	target.resolveHost()

	assert.Equal(t, "generic", target.CPU)
	assert.Equal(t, []string{"-avx2", "-neon"}, target.Features[:2])
	assert.NotContains(t, target.Features, "+avx2")
	assert.NotContains(t, target.Features, "+neon")
}
