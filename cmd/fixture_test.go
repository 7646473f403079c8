package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"nativec/common"
	"nativec/config"
	"nativec/ir"

	"github.com/stretchr/testify/require"
)

// project lays out a build profile, its libraries and fake external tools in
// a temporary directory.
type project struct {
	t    *testing.T
	root string

	// linkLog receives the arguments of every linker invocation.
	linkLog string
}

func newProject(t *testing.T) *project {
	if runtime.GOOS == "windows" {
		t.Skip("the fake tools are shell scripts")
	}

	p := &project{t: t, root: t.TempDir()}
	p.linkLog = filepath.Join(p.root, "link.log")

	p.library(common.RuntimeLibraryName, common.RuntimePackageName, []string{common.RuntimeFileName}, "default: true\n")
	return p
}

// library writes a library whose files all belong to package `pkg`.  `extra`
// is appended to the manifest.
func (p *project) library(name, pkg string, files []string, extra string) string {
	dir := filepath.Join(p.root, "libs", name)
	require.NoError(p.t, os.MkdirAll(dir, os.ModePerm))

	sb := strings.Builder{}
	fmt.Fprintf(&sb, "name: %s\nfiles:\n", name)
	for _, file := range files {
		fmt.Fprintf(&sb, "  - package: %s\n    path: %s\n", pkg, file)
		p.edit(name, file, "// "+file)
	}
	sb.WriteString(extra)

	require.NoError(p.t, os.WriteFile(filepath.Join(dir, common.ManifestFileName), []byte(sb.String()), 0644))
	return dir
}

// edit changes the source of a library file.
func (p *project) edit(lib, file, content string) {
	path := filepath.Join(p.root, "libs", lib, file)
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0644))
}

// profile writes and loads a build profile.  The fake tools are used unless
// the caller replaces them.
func (p *project) profile(body string) *config.Config {
	path := filepath.Join(p.root, common.ProfileFileName)
	require.NoError(p.t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := config.Parse(path, []byte(body))
	require.NoError(p.t, err)

	cfg.LLCPath = p.tool("llc", writeOutputScript(""))
	cfg.LinkerPath = p.tool("ld", writeOutputScript(`echo "$@" >> `+p.linkLog))
	return cfg
}

// tool writes an executable shell script.
func (p *project) tool(name, script string) string {
	path := filepath.Join(p.root, "tools", name)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(p.t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

// writeOutputScript is a tool that writes `obj` to the file following `-o`
// after running `prelude`.
func writeOutputScript(prelude string) string {
	return prelude + `
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then
		out="$2"
		shift
	fi
	shift
done
printf 'obj' > "$out"
`
}

// failingScript is a tool that prints `output` and fails.
func failingScript(output string) string {
	return fmt.Sprintf("echo '%s' >&2\nexit 1\n", output)
}

func (p *project) cacheDir() string {
	return filepath.Join(p.root, "cache")
}

// -----------------------------------------------------------------------------

// stubFrontend builds a function `fun <name>(): Int` for every library file,
// named after the file.  calls[name] names the function whose result the
// function returns; other functions return 1.  The program is a single
// function `main` returning the result of calls["main"].
type stubFrontend struct {
	calls map[string]string

	requests []*LoadRequest
}

func (sf *stubFrontend) Load(req *LoadRequest) (*ir.Module, error) {
	sf.requests = append(sf.requests, req)
	f, b := req.Factory, req.Builtins

	funcs := make(map[string]*ir.Function)
	files := make(map[string]map[string]*ir.File)

	for _, lib := range req.Libraries {
		files[lib.Name] = make(map[string]*ir.File)
		for _, lf := range lib.Files {
			file := f.BuildFile(filepath.Base(lf.Path), lf.FqName, lib.Name)
			file.Path = lf.Path

			name := strings.TrimSuffix(filepath.Base(lf.Path), filepath.Ext(lf.Path))
			fn := f.BuildFun(name, b.IntType(), ir.OriginDefined)
			file.AddMember(fn)

			funcs[name] = fn
			files[lib.Name][lf.ID()] = file
		}
	}

	mod := &ir.Module{}
	if req.Library == nil {
		mod.Name = req.Config.Name

		main := f.BuildFile("main.kt", "demo", "")
		funcs["main"] = f.BuildFun("main", b.IntType(), ir.OriginDefined)
		main.AddMember(funcs["main"])
		files[""] = map[string]*ir.File{"main": main}
		mod.AddFile(main)

		for _, lib := range req.Sources {
			for _, file := range sortedFiles(files[lib.Name]) {
				mod.AddFile(file)
			}
		}
	} else {
		mod.Name = req.Library.Name
		for _, lf := range req.Files {
			file, ok := files[req.Library.Name][lf.ID()]
			if !ok {
				return nil, fmt.Errorf("no such file: %s", lf.Path)
			}

			mod.AddFile(file)
		}
	}

	for name, fn := range funcs {
		var result ir.Expr = b.IntConst(1)
		if callee, ok := sf.calls[name]; ok {
			result = ir.NewCall(funcs[callee])
		}

		fn.Body = ir.NewBlock(b.NothingType(), ir.NewReturn(fn, result, b.NothingType()))
	}

	for _, byID := range files {
		for _, file := range byID {
			ir.PatchDeclarationParents(file, nil)
		}
	}

	return mod, nil
}

func sortedFiles(files map[string]*ir.File) []*ir.File {
	var result []*ir.File
	for _, file := range files {
		result = append(result, file)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})

	return result
}

// requestedLibraries returns the names of the libraries loaded so far; the
// program is named `<program>`.
func (sf *stubFrontend) requestedLibraries() []string {
	var names []string
	for _, req := range sf.requests {
		if req.Library == nil {
			names = append(names, "<program>")
		} else {
			names = append(names, req.Library.Name)
		}
	}

	return names
}
