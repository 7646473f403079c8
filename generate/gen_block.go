package generate

import (
	"fmt"

	"nativec/ir"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// localValue is the LLVM value of a parameter or variable.  Mutable values are
// stack slots which must be loaded.
type localValue struct {
	val     value.Value
	mutable bool
}

// funcGen holds the state of generating a single function body.
type funcGen struct {
	g *generator

	// decl is the declaration owning the body: the function or, for file
	// initializers, the first static field.
	decl ir.Declaration

	llFunc *llir.Func
	block  *llir.Block

	// this is the receiver of constructors and member functions.
	this value.Value

	locals map[*ir.Symbol]localValue
}

func (g *generator) newFuncGen(decl ir.Declaration, llFunc *llir.Func) *funcGen {
	fg := &funcGen{
		g:      g,
		decl:   decl,
		llFunc: llFunc,
		locals: make(map[*ir.Symbol]localValue),
	}

	fg.block = llFunc.NewBlock("entry")
	return fg
}

// genFunc generates the body of a function of the module.
func (g *generator) genFunc(fn *ir.Function) {
	if fn.Body == nil {
		return
	}

	llFunc := g.funcOf(fn)
	fg := g.newFuncGen(fn, llFunc)

	params := llFunc.Params
	if fn.IsConstructor {
		fg.this = params[0]
		fg.locals[fn.ConstructedClass().ThisReceiver.Symbol()] = localValue{val: params[0]}
		params = params[1:]
	}

	for i, vp := range fn.AllParams() {
		fg.defineParam(vp, params[i])
	}

	if fn.DispatchReceiver != nil {
		fg.this = params[0]
		if c := ir.ParentClass(fn); c != nil {
			fg.locals[c.ThisReceiver.Symbol()] = localValue{val: params[0]}
		}
	}

	if fn.IsPrimary {
		fg.genFieldInitializers(fn.ConstructedClass())
	}

	result := fg.genExpr(fn.Body)
	if !fg.terminated() {
		fg.genImplicitReturn(fn, result)
	}

	g.definedFuncs++
}

// defineParam binds a parameter.  Assignable parameters are spilled to a
// stack slot.
func (fg *funcGen) defineParam(vp *ir.ValueParameter, param *llir.Param) {
	if !vp.IsAssignable {
		fg.locals[vp.Symbol()] = localValue{val: param}
		return
	}

	slot := fg.llFunc.Blocks[0].NewAlloca(param.Typ)
	fg.block.NewStore(param, slot)
	fg.locals[vp.Symbol()] = localValue{val: slot, mutable: true}
}

// genFieldInitializers stores the initializers of the instance fields of a
// class at the start of its primary constructor.
func (fg *funcGen) genFieldInitializers(c *ir.Class) {
	layout := fg.g.layoutOf(c)
	for _, fd := range instanceFields(c) {
		if fd.Initializer == nil {
			continue
		}

		val := fg.genValue(fd.Initializer, fg.g.convType(fd.Type))
		if fg.terminated() {
			return
		}

		fg.block.NewStore(val, fg.fieldPtr(layout, fd, fg.this))
	}
}

// genImplicitReturn terminates a body which falls off its end.
func (fg *funcGen) genImplicitReturn(fn *ir.Function, result value.Value) {
	retType := fg.llFunc.Sig.RetType
	if retType.Equal(types.Void) {
		fg.block.NewRet(nil)
		return
	}

	if result == nil {
		fg.trap(fn.Body, "missing return value")
		return
	}

	if val, ok := fg.coerce(result, retType); ok {
		fg.block.NewRet(val)
	} else {
		fg.trap(fn.Body, "return value of mismatched representation")
	}
}

// genFileInit generates the initializer of the static fields of a file.  The
// file initializer is only emitted when some static field has an initializer.
func (g *generator) genFileInit(file *ir.File) {
	var fields []*ir.Field
	for _, d := range file.Declarations {
		var fd *ir.Field
		switch v := d.(type) {
		case *ir.Field:
			fd = v
		case *ir.Property:
			fd = v.BackingField
		}

		if fd != nil && fd.IsStatic && fd.Initializer != nil {
			fields = append(fields, fd)
		}
	}

	if len(fields) == 0 {
		return
	}

	name := fmt.Sprintf("kinit:%s/%s", file.FqName, file.Name)
	fg := g.newFuncGen(fields[0], g.mod.NewFunc(name, types.Void))

	for _, fd := range fields {
		fg.decl = fd
		val := fg.genValue(fd.Initializer, g.convType(fd.Type))
		if fg.terminated() {
			break
		}

		fg.block.NewStore(val, g.globalOf(fd))
	}

	if !fg.terminated() {
		fg.block.NewRet(nil)
	}

	g.initializedFiles = append(g.initializedFiles, file)
	g.definedFuncs++
}

// -----------------------------------------------------------------------------

// genBlock generates the statements of a block.  It returns the value of the
// last statement if it is an expression producing a value.
func (fg *funcGen) genBlock(block *ir.Block) value.Value {
	var result value.Value
	for _, stmt := range block.Statements {
		result = nil

		switch v := stmt.(type) {
		case *ir.Variable:
			fg.genVariable(v)
		case ir.Expr:
			result = fg.genExpr(v)
		default:
			fg.trap(v, fmt.Sprintf("local declaration %T", v))
		}

		if fg.terminated() {
			return nil
		}
	}

	return result
}

// genVariable generates a local variable.  Immutable variables are plain SSA
// values; mutable ones get a stack slot in the entry block.
func (fg *funcGen) genVariable(v *ir.Variable) {
	typ := fg.g.convType(v.Type)

	var init value.Value
	if v.Initializer != nil {
		init = fg.genValue(v.Initializer, typ)
		if fg.terminated() {
			return
		}
	}

	if !v.IsVar && init != nil {
		fg.locals[v.Symbol()] = localValue{val: init}
		return
	}

	slot := fg.llFunc.Blocks[0].NewAlloca(typ)
	if init != nil {
		fg.block.NewStore(init, slot)
	}

	fg.locals[v.Symbol()] = localValue{val: slot, mutable: true}
}

// terminated returns whether the current block already has a terminator: no
// more code can be generated into it.
func (fg *funcGen) terminated() bool {
	return fg.block.Term != nil
}

// trap replaces an untranslatable construct by a call to the runtime trap
// and reports it.
func (fg *funcGen) trap(e ir.Element, what string) {
	fg.g.diagnose(fg.decl, e, fmt.Sprintf("%s: unsupported by the native backend: %s", ir.Describe(fg.decl), what))

	fg.block.NewCall(fg.g.runtimeFunc(rtUnsupported), fg.g.cString(what))
	fg.block.NewUnreachable()
}
