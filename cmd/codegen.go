package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"nativec/generate"
	"nativec/report"
)

// objPath returns a fresh path for an intermediate object file.
func (c *Compiler) objPath(name string) string {
	c.objCounter++
	return filepath.Join(c.workDir, fmt.Sprintf("%s-%d.o", name, c.objCounter))
}

// compileLLVMModule writes the LLVM module of a backend output next to
// `objPath` and compiles it to an object file with `llc`.
func (c *Compiler) compileLLVMModule(out *generate.Output, objPath string) error {
	llPath := strings.TrimSuffix(objPath, filepath.Ext(objPath)) + ".ll"
	if c.workDir != "" && !strings.HasPrefix(llPath, c.workDir) {
		llPath = filepath.Join(c.workDir, filepath.Base(llPath))
	}

	if err := out.WriteLL(llPath); err != nil {
		return err
	}

	args := append(c.cfg.Target.LLCArgs(), "-filetype", "obj", "-o", objPath, llPath)
	report.Debugf("llc", "%s %s", c.cfg.LLCPath, strings.Join(args, " "))

	stderrBuff := bytes.Buffer{}
	llc := exec.Command(c.cfg.LLCPath, args...)
	llc.Stderr = &stderrBuff

	if err := llc.Run(); err != nil {
		be := &report.BuildError{Tool: "llc", Output: stderrBuff.String(), Err: err}
		if errors.Is(err, exec.ErrNotFound) {
			be.Hint = "set NATIVEC_LLC or NATIVEC_HOME to point at an LLVM installation"
			return be
		}

		c.attachHint(be, c.libs, nil)
		return be
	}

	return nil
}

// compileToBinary compiles a backend output and returns the produced object
// code.
func (c *Compiler) compileToBinary(out *generate.Output, name string) ([]byte, error) {
	objPath := c.objPath(name)
	if err := c.compileLLVMModule(out, objPath); err != nil {
		return nil, err
	}

	binary, err := os.ReadFile(objPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read object file produced by llc: %w", err)
	}

	return binary, nil
}
