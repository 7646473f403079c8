package generate

import (
	"strings"

	"nativec/ir"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// generator converts a single lowered module into an LLVM module.
type generator struct {
	b    *ir.Builtins
	deps DependencyRecorder

	// irMod is the module being converted and mod the LLVM module produced.
	irMod *ir.Module
	mod   *llir.Module

	// files is the set of files of irMod.  Declarations of any other file
	// are foreign, even when they belong to the same library.
	files map[*ir.File]struct{}

	// objHeader is the header every heap object starts with and objPtr the
	// type of object references.
	objHeader *types.StructType
	objPtr    *types.PointerType

	funcs   map[*ir.Function]*llir.Func
	globals map[*ir.Field]*llir.Global
	layouts map[*ir.Class]*classLayout

	runtime       map[string]*llir.Func
	unitInstance  *llir.Global
	usesRuntime   bool
	stringCounter int

	initializedFiles []*ir.File

	definedFuncs int
	diagnostics  []Diagnostic
}

func newGenerator(lb *LLVMBackend, mod *ir.Module) *generator {
	g := &generator{
		b:       lb.Builtins,
		deps:    lb.Deps,
		irMod:   mod,
		mod:     llir.NewModule(),
		files:   make(map[*ir.File]struct{}, len(mod.Files)),
		funcs:   make(map[*ir.Function]*llir.Func),
		globals: make(map[*ir.Field]*llir.Global),
		layouts: make(map[*ir.Class]*classLayout),
		runtime: make(map[string]*llir.Func),
	}

	for _, file := range mod.Files {
		g.files[file] = struct{}{}
	}

	g.mod.SourceFilename = mod.Name

	// %ObjHeader = type { i8* }: the pointer to the type info of the object.
	g.objHeader = types.NewStruct(types.I8Ptr)
	g.mod.NewTypeDef("ObjHeader", g.objHeader)
	g.objPtr = types.NewPointer(g.objHeader)

	return g
}

// generate runs the two generation passes: every declaration of the module is
// declared first so that bodies can refer to declarations in any order, then
// the bodies are generated.
func (g *generator) generate() {
	for _, file := range g.irMod.Files {
		for _, d := range file.Declarations {
			g.declare(d)
		}
	}

	for _, file := range g.irMod.Files {
		for _, d := range file.Declarations {
			g.define(d)
		}

		g.genFileInit(file)
	}
}

// declare creates the LLVM declarations of a module declaration.
func (g *generator) declare(d ir.Declaration) {
	switch v := d.(type) {
	case *ir.Class:
		if !v.IsInterface() {
			g.layoutOf(v)
		}

		for _, member := range v.Declarations {
			g.declare(member)
		}
	case *ir.Function:
		g.funcOf(v)
	case *ir.Property:
		if v.BackingField != nil {
			g.declare(v.BackingField)
		}

		if v.Getter != nil {
			g.funcOf(v.Getter)
		}

		if v.Setter != nil {
			g.funcOf(v.Setter)
		}
	case *ir.Field:
		if v.IsStatic {
			g.globalOf(v)
		}
	}
}

// define generates the bodies of a module declaration.
func (g *generator) define(d ir.Declaration) {
	switch v := d.(type) {
	case *ir.Class:
		for _, member := range v.Declarations {
			g.define(member)
		}
	case *ir.Function:
		g.genFunc(v)
	case *ir.Property:
		if v.Getter != nil {
			g.genFunc(v.Getter)
		}

		if v.Setter != nil {
			g.genFunc(v.Setter)
		}
	}
}

// -----------------------------------------------------------------------------

// funcOf returns the LLVM function of a function declaration, declaring it
// on first use.
func (g *generator) funcOf(fn *ir.Function) *llir.Func {
	if llFunc, ok := g.funcs[fn]; ok {
		return llFunc
	}

	g.noteReference(fn)

	var params []*llir.Param
	if fn.IsConstructor {
		params = append(params, llir.NewParam("this", g.objPtr))
	}

	for _, vp := range fn.AllParams() {
		params = append(params, llir.NewParam(paramName(vp), g.convType(vp.Type)))
	}

	var retType types.Type = types.Void
	if !fn.IsConstructor {
		retType = g.convReturnType(fn.ReturnType)
	}

	name := g.mangle(fn)
	if fn.IsExternal && !g.b.IsBuiltin(fn) {
		name = fn.Name
	}

	llFunc := g.mod.NewFunc(name, retType, params...)
	if !fn.IsConstructor && g.isNothing(fn.ReturnType) {
		llFunc.FuncAttrs = append(llFunc.FuncAttrs, enum.FuncAttrNoReturn)
	}

	g.funcs[fn] = llFunc
	return llFunc
}

// globalOf returns the global of a static field, declaring it on first use.
// Fields of this module are zero-initialized; their initializers run in the
// file initializer.
func (g *generator) globalOf(fd *ir.Field) *llir.Global {
	if glob, ok := g.globals[fd]; ok {
		return glob
	}

	g.noteReference(fd)

	name := "kvar:" + qualifiedName(fd)
	typ := g.convType(fd.Type)

	var glob *llir.Global
	if g.isLocal(fd) {
		glob = g.mod.NewGlobalDef(name, zeroValue(typ))
	} else {
		glob = g.mod.NewGlobal(name, typ)
		glob.Linkage = enum.LinkageExternal
	}

	g.globals[fd] = glob
	return glob
}

// noteReference records a reference to a declaration outside of the module.
// Builtins are provided by the runtime.
func (g *generator) noteReference(d ir.Declaration) {
	if g.b.IsBuiltin(d) {
		g.useRuntime()
		return
	}

	if g.deps != nil && !g.isLocal(d) {
		g.deps.Add(d, false)
	}
}

// isLocal returns whether a declaration belongs to the module being compiled.
func (g *generator) isLocal(d ir.Declaration) bool {
	file := ir.FileOf(d)
	if file == nil {
		return false
	}

	_, ok := g.files[file]
	return ok
}

// diagnose records a diagnostic against an element of a declaration.
func (g *generator) diagnose(d ir.Declaration, e ir.Element, msg string) {
	diag := Diagnostic{Message: msg}
	if file := ir.FileOf(d); file != nil {
		diag.FilePath = file.Path
	}

	if e != nil {
		diag.Span = e.Span()
	}

	g.diagnostics = append(g.diagnostics, diag)
}

// -----------------------------------------------------------------------------

// mangle returns the symbol name of a function:
// `kfun:<package>.<Class>#<name>(<parameter types>)`.
func (g *generator) mangle(fn *ir.Function) string {
	sb := strings.Builder{}
	sb.WriteString("kfun:")
	sb.WriteString(qualifiedName(fn))

	sb.WriteRune('(')
	for i, vp := range fn.AllParams() {
		if i > 0 {
			sb.WriteRune(';')
		}

		sb.WriteString(typeName(vp.Type))
	}
	sb.WriteRune(')')

	return sb.String()
}

// qualifiedName returns the package-qualified name of a declaration.  Member
// names are separated from their class by `#`.
func qualifiedName(d ir.Declaration) string {
	var path []string
	for cur := d; cur != nil; {
		path = append(path, cur.DeclName())

		parent, ok := cur.Parent().(ir.Declaration)
		if !ok {
			break
		}

		cur = parent
	}

	var sb strings.Builder
	if file := ir.FileOf(d); file != nil && file.FqName != "" {
		sb.WriteString(file.FqName)
		sb.WriteRune('.')
	}

	_, isClass := d.(*ir.Class)
	for i := len(path) - 1; i >= 0; i-- {
		sb.WriteString(path[i])

		switch {
		case i > 1, i == 1 && isClass:
			sb.WriteRune('.')
		case i == 1:
			sb.WriteRune('#')
		}
	}

	return sb.String()
}

// typeName returns the name of a type used in mangled names.  Type
// parameters are erased.
func typeName(t ir.Type) string {
	name := "#GENERIC"
	if c := ir.ClassOf(t); c != nil {
		name = qualifiedName(c)
	}

	if t.IsNullable() {
		return name + "?"
	}

	return name
}

// paramName returns the LLVM name of a parameter.  Synthesized names which
// are not identifiers are left for LLVM to number.
func paramName(vp *ir.ValueParameter) string {
	for _, r := range vp.Name {
		if !(r == '_' || r == '$' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return ""
		}
	}

	return vp.Name
}
