// Package generate is the native backend adapter: it turns a fully lowered
// module into an LLVM module ready to be compiled by `llc`.
package generate

import (
	"fmt"
	"os"

	"nativec/config"
	"nativec/ir"
	"nativec/report"

	llir "github.com/llir/llvm/ir"
)

// Backend generates native code for a lowered module.
type Backend interface {
	// Generate translates a module.  Diagnostics are returned for the
	// constructs the backend could not translate; they do not stop generation.
	Generate(mod *ir.Module, target *config.Target) (*Output, []Diagnostic)
}

// DependencyRecorder is told about every declaration the generated code
// references outside of the module being compiled.
type DependencyRecorder interface {
	Add(decl ir.Declaration, onlyBitcode bool)
	AddNativeRuntime(onlyBitcode bool)
}

// Output is the result of generating a module.
type Output struct {
	// Module is the generated LLVM module.
	Module *llir.Module

	// Functions is the number of function definitions in the module.
	Functions int

	// InitializedFiles are the files that got a static initializer.  Their
	// initializers must run when the program starts.
	InitializedFiles []*ir.File

	// ClassFields describes the layout of every class defined by the module,
	// one line per class: the class name followed by its fields in layout
	// order.
	ClassFields []string
}

// WriteLL writes the textual LLVM IR of the output to `path`.
func (o *Output) WriteLL(path string) error {
	if err := os.WriteFile(path, []byte(o.Module.String()), 0644); err != nil {
		return fmt.Errorf("failed to write LLVM module to `%s`: %w", path, err)
	}

	return nil
}

// Diagnostic is a problem found while generating code.
type Diagnostic struct {
	FilePath string
	Span     report.TextSpan
	Message  string
}

func (d Diagnostic) String() string {
	if d.FilePath == "" {
		return d.Message
	}

	return fmt.Sprintf("%s: %s", d.FilePath, d.Message)
}

// -----------------------------------------------------------------------------

// LLVMBackend generates LLVM IR with llir.  Class layouts become named
// structs and functions become definitions.  Function bodies are translated
// for the straight-line subset of the IR; any other construct is replaced by a
// call to the runtime trap `nativec_unsupported` and reported as a diagnostic.
type LLVMBackend struct {
	Builtins *ir.Builtins

	// Deps, if set, receives every cross-library reference.
	Deps DependencyRecorder
}

// Generate implements Backend.
func (lb *LLVMBackend) Generate(mod *ir.Module, target *config.Target) (*Output, []Diagnostic) {
	g := newGenerator(lb, mod)
	if target != nil {
		g.mod.TargetTriple = target.Triple
	}

	g.generate()

	return &Output{
		Module:           g.mod,
		Functions:        g.definedFuncs,
		InitializedFiles: g.initializedFiles,
		ClassFields:      g.classFields(),
	}, g.diagnostics
}
