package cmd

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"

	"nativec/deps"
	"nativec/report"
)

// link links the object file of the program with the binaries of the cached
// libraries it depends on.  Uncached libraries were compiled into the program
// object: only their linker options are needed.
func (c *Compiler) link(objPath string, result *deps.DependenciesTrackingResult) error {
	report.BeginPhase("Linking")

	args := []string{"-o", c.cfg.OutputPath, objPath}
	binaries := make(map[string][]string)

	for _, lib := range result.NativeDependenciesToLink {
		cache, err := c.caches.LibraryCache(lib)
		if err != nil {
			report.EndPhase(false)
			return err
		}

		if cache != nil {
			binaries[lib.Name] = cache.BinaryPaths()
			args = append(args, binaries[lib.Name]...)
		}
	}

	for _, lib := range result.AllNativeDependencies {
		args = append(args, lib.LinkerOpts...)
	}

	args = append(args, c.cfg.LinkerFlags...)
	report.Debugf("link", "%s %s", c.cfg.LinkerPath, strings.Join(args, " "))

	outBuff := bytes.Buffer{}
	linker := exec.Command(c.cfg.LinkerPath, args...)
	linker.Stdout = &outBuff
	linker.Stderr = &outBuff

	if err := linker.Run(); err != nil {
		report.EndPhase(false)

		be := &report.BuildError{Tool: "linker", Output: outBuff.String(), Err: err}
		c.attachHint(be, result.AllNativeDependencies, binaries)
		return be
	}

	report.EndPhase(true)
	return nil
}

// attachHint attaches the setup hint of the library most likely responsible
// for a tool failure to the build error.
func (c *Compiler) attachHint(be *report.BuildError, libs []*deps.Library, binaries map[string][]string) {
	if lib := implicatedLibrary(be.Output, libs, binaries); lib != nil {
		be.Library = lib.Name
		be.Hint = lib.SetupHint
	}
}

// implicatedLibrary returns the first library whose name or one of whose link
// artifacts is mentioned by the output of a tool.
func implicatedLibrary(output string, libs []*deps.Library, binaries map[string][]string) *deps.Library {
	if output == "" {
		return nil
	}

	for _, lib := range libs {
		if mentionsWord(output, lib.Name) {
			return lib
		}

		for _, bin := range binaries[lib.Name] {
			if strings.Contains(output, filepath.Base(bin)) {
				return lib
			}
		}
	}

	return nil
}

// mentionsWord returns whether `word` appears in `text` delimited by
// characters other than ASCII letters, digits, `_` and `-`.
func mentionsWord(text, word string) bool {
	if word == "" {
		return false
	}

	for from := 0; from < len(text); {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}

		start, end := from+i, from+i+len(word)
		if (start == 0 || !isNameByte(text[start-1])) && (end == len(text) || !isNameByte(text[end])) {
			return true
		}

		from = start + 1
	}

	return false
}

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}
