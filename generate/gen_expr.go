package generate

import (
	"fmt"
	"strings"

	"nativec/ir"
	"nativec/report"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// genExpr generates an expression.  It returns nil if the expression produces
// no value (Unit) or if the current block was terminated.
func (fg *funcGen) genExpr(expr ir.Expr) value.Value {
	switch v := expr.(type) {
	case *ir.Block:
		return fg.genBlock(v)
	case *ir.Const:
		return fg.genConst(v)
	case *ir.GetValue:
		return fg.genGetValue(v)
	case *ir.SetValue:
		fg.genSetValue(v)
	case *ir.GetField:
		return fg.genGetField(v)
	case *ir.SetField:
		fg.genSetField(v)
	case *ir.Call:
		return fg.genCall(v)
	case *ir.ConstructorCall:
		return fg.genConstructorCall(v)
	case *ir.DelegatingConstructorCall:
		fg.genDelegatingCall(v)
	case *ir.Return:
		fg.genReturn(v)
	case *ir.Throw:
		if exc := fg.genValue(v.Value, fg.g.objPtr); exc != nil {
			fg.block.NewCall(fg.g.runtimeFunc(rtThrow), exc)
			fg.block.NewUnreachable()
		}
	case *ir.TypeOperatorCall:
		return fg.genTypeOperator(v)
	default:
		fg.trap(expr, nodeName(expr))
	}

	return nil
}

// genValue generates an expression whose value is required with the given
// representation.  It returns nil only if the block was terminated.
func (fg *funcGen) genValue(expr ir.Expr, want types.Type) value.Value {
	val := fg.genExpr(expr)
	if fg.terminated() {
		return nil
	}

	if val == nil {
		if want.Equal(fg.g.objPtr) {
			return fg.g.unit()
		}

		fg.trap(expr, "Unit used as a primitive value")
		return nil
	}

	if coerced, ok := fg.coerce(val, want); ok {
		return coerced
	}

	fg.trap(expr, fmt.Sprintf("conversion from %s to %s", val.Type(), want))
	return nil
}

// coerce converts a value to another representation.  Only references can
// be converted; boxing is not supported.
func (fg *funcGen) coerce(val value.Value, want types.Type) (value.Value, bool) {
	if val.Type().Equal(want) {
		return val, true
	}

	if _, ok := val.Type().(*types.PointerType); ok {
		if _, ok := want.(*types.PointerType); ok {
			return fg.block.NewBitCast(val, want), true
		}
	}

	return nil, false
}

// -----------------------------------------------------------------------------

func (fg *funcGen) genConst(c *ir.Const) value.Value {
	want := fg.g.convType(c.Type())

	var val value.Value
	switch c.Kind {
	case ir.ConstNull:
		return constant.NewNull(fg.g.objPtr)
	case ir.ConstUnit:
		return fg.g.unit()
	case ir.ConstBoolean:
		val = constant.NewBool(c.Value.(bool))
	case ir.ConstInt:
		val = constant.NewInt(types.I32, int64(c.Value.(int32)))
	case ir.ConstLong:
		val = constant.NewInt(types.I64, c.Value.(int64))
	case ir.ConstString:
		s := c.Value.(string)
		return fg.block.NewCall(fg.g.runtimeFunc(rtStringLiteral), fg.g.cString(s), constant.NewInt(types.I32, int64(len(s))))
	}

	if !val.Type().Equal(want) {
		fg.trap(c, "boxed constant")
		return nil
	}

	return val
}

func (fg *funcGen) genGetValue(gv *ir.GetValue) value.Value {
	local, ok := fg.locals[gv.Sym]
	if !ok {
		fg.trap(gv, "reference to "+ir.Describe(gv.Sym.Owner())+" from another function")
		return nil
	}

	if local.mutable {
		return fg.block.NewLoad(local.val.Type().(*types.PointerType).ElemType, local.val)
	}

	return local.val
}

func (fg *funcGen) genSetValue(sv *ir.SetValue) {
	local, ok := fg.locals[sv.Sym]
	if !ok || !local.mutable {
		fg.trap(sv, "assignment of "+ir.Describe(sv.Sym.Owner()))
		return
	}

	val := fg.genValue(sv.Value, local.val.Type().(*types.PointerType).ElemType)
	if val != nil {
		fg.block.NewStore(val, local.val)
	}
}

// -----------------------------------------------------------------------------

// fieldAddress returns the address of a field: the global of static fields
// and a pointer into the receiver for instance fields.  It returns nil if the
// block was terminated.
func (fg *funcGen) fieldAddress(fd *ir.Field, receiver ir.Expr) value.Value {
	if fd.IsStatic {
		return fg.g.globalOf(fd)
	}

	c := ir.ParentClass(fd)
	if c == nil || receiver == nil {
		report.ICE("instance field %s accessed without receiver", ir.Describe(fd))
	}

	obj := fg.genValue(receiver, fg.g.objPtr)
	if obj == nil {
		return nil
	}

	fg.g.noteReference(fd)
	return fg.fieldPtr(fg.g.layoutOf(c), fd, obj)
}

// fieldPtr returns the address of an instance field of an object.
func (fg *funcGen) fieldPtr(layout *classLayout, fd *ir.Field, obj value.Value) value.Value {
	idx, ok := layout.index[fd]
	if !ok {
		report.ICE("%s is not part of the layout of %s", ir.Describe(fd), layout.typ.Name())
	}

	typed := fg.block.NewBitCast(obj, types.NewPointer(layout.typ))
	return fg.block.NewGetElementPtr(layout.typ, typed, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(idx)))
}

func (fg *funcGen) genGetField(gf *ir.GetField) value.Value {
	fd := gf.Sym.Field()

	addr := fg.fieldAddress(fd, gf.Receiver)
	if addr == nil {
		return nil
	}

	return fg.block.NewLoad(fg.g.convType(fd.Type), addr)
}

func (fg *funcGen) genSetField(sf *ir.SetField) {
	fd := sf.Sym.Field()

	addr := fg.fieldAddress(fd, sf.Receiver)
	if addr == nil {
		return
	}

	if val := fg.genValue(sf.Value, fg.g.convType(fd.Type)); val != nil {
		fg.block.NewStore(val, addr)
	}
}

// -----------------------------------------------------------------------------

// genArgs generates the arguments of a call: receivers first, then the value
// arguments, converted to the representation of the parameters.
func (fg *funcGen) genArgs(call ir.Expr, fn *ir.Function, receivers []ir.Expr, args []ir.Expr) ([]value.Value, bool) {
	var exprs []ir.Expr
	for _, recv := range receivers {
		if recv != nil {
			exprs = append(exprs, recv)
		}
	}

	for _, arg := range args {
		if arg == nil {
			fg.trap(call, "omitted argument of "+ir.Describe(fn))
			return nil, false
		}

		exprs = append(exprs, arg)
	}

	params := fn.AllParams()
	if len(exprs) != len(params) {
		fg.trap(call, fmt.Sprintf("call of %s with %d arguments for %d parameters", ir.Describe(fn), len(exprs), len(params)))
		return nil, false
	}

	vals := make([]value.Value, len(exprs))
	for i, e := range exprs {
		if vals[i] = fg.genValue(e, fg.g.convType(params[i].Type)); vals[i] == nil {
			return nil, false
		}
	}

	return vals, true
}

func (fg *funcGen) genCall(call *ir.Call) value.Value {
	fn := call.Sym.Function()
	if fn == fg.g.b.EqEq {
		return fg.genEqEq(call)
	}

	args, ok := fg.genArgs(call, fn, []ir.Expr{call.DispatchReceiver, call.ExtensionReceiver}, call.Args)
	if !ok {
		return nil
	}

	if val := fg.genIntrinsic(fn, args); val != nil {
		return val
	}

	llFunc := fg.g.funcOf(fn)
	result := fg.block.NewCall(llFunc, args...)

	if fg.g.isNothing(fn.ReturnType) {
		fg.block.NewUnreachable()
		return nil
	}

	if llFunc.Sig.RetType.Equal(types.Void) {
		return nil
	}

	return result
}

// genIntrinsic generates the builtin operators inline.  It returns nil for
// every other function.
func (fg *funcGen) genIntrinsic(fn *ir.Function, args []value.Value) value.Value {
	b := fg.g.b

	switch fn {
	case b.IntPlus:
		return fg.block.NewAdd(args[0], args[1])
	case b.IntAnd:
		return fg.block.NewAnd(args[0], args[1])
	case b.IntXor:
		return fg.block.NewXor(args[0], args[1])
	case b.IntLess:
		return fg.block.NewICmp(enum.IPredSLT, args[0], args[1])
	case b.Not:
		return fg.block.NewXor(args[0], constant.NewBool(true))
	}

	return nil
}

// genEqEq generates `==` on operands of the same representation as an
// identity comparison.
func (fg *funcGen) genEqEq(call *ir.Call) value.Value {
	if len(call.Args) != 2 || call.Args[0] == nil || call.Args[1] == nil {
		fg.trap(call, "malformed equality")
		return nil
	}

	lhs := fg.genExpr(call.Args[0])
	if fg.terminated() {
		return nil
	}

	rhs := fg.genExpr(call.Args[1])
	if fg.terminated() {
		return nil
	}

	if lhs == nil || rhs == nil {
		fg.trap(call, "equality of Unit values")
		return nil
	}

	if _, isPtr := lhs.Type().(*types.PointerType); isPtr {
		rhs, _ = fg.coerce(rhs, lhs.Type())
	}

	if rhs == nil || !lhs.Type().Equal(rhs.Type()) {
		fg.trap(call, "equality of values of different representations")
		return nil
	}

	return fg.block.NewICmp(enum.IPredEQ, lhs, rhs)
}

func (fg *funcGen) genConstructorCall(cc *ir.ConstructorCall) value.Value {
	ctor := cc.Sym.Function()
	if cc.DispatchReceiver != nil {
		fg.trap(cc, "construction of an inner class with an outer receiver")
		return nil
	}

	args, ok := fg.genArgs(cc, ctor, nil, cc.Args)
	if !ok {
		return nil
	}

	layout := fg.g.layoutOf(ctor.ConstructedClass())
	obj := fg.block.NewCall(fg.g.runtimeFunc(rtAllocInstance), sizeOf(layout.typ))
	fg.block.NewCall(fg.g.funcOf(ctor), append([]value.Value{obj}, args...)...)

	return obj
}

func (fg *funcGen) genDelegatingCall(dc *ir.DelegatingConstructorCall) {
	ctor := dc.Sym.Function()
	if ctor.ConstructedClass() == fg.g.b.Any {
		return
	}

	if fg.this == nil {
		fg.trap(dc, "delegating constructor call outside of a constructor")
		return
	}

	args, ok := fg.genArgs(dc, ctor, []ir.Expr{dc.DispatchReceiver}, dc.Args)
	if !ok {
		return
	}

	fg.block.NewCall(fg.g.funcOf(ctor), append([]value.Value{fg.this}, args...)...)
}

func (fg *funcGen) genReturn(ret *ir.Return) {
	if ret.Target.Owner() != fg.decl {
		fg.trap(ret, "non-local return")
		return
	}

	retType := fg.llFunc.Sig.RetType
	if retType.Equal(types.Void) {
		if ret.Value != nil {
			fg.genExpr(ret.Value)
			if fg.terminated() {
				return
			}
		}

		fg.block.NewRet(nil)
		return
	}

	if ret.Value == nil {
		fg.trap(ret, "return without a value")
		return
	}

	if val := fg.genValue(ret.Value, retType); val != nil {
		fg.block.NewRet(val)
	}
}

func (fg *funcGen) genTypeOperator(toc *ir.TypeOperatorCall) value.Value {
	switch toc.Operator {
	case ir.OpImplicitCoercionToUnit:
		fg.genExpr(toc.Argument)
		return nil
	case ir.OpImplicitCast:
		return fg.genValue(toc.Argument, fg.g.convType(toc.Type()))
	}

	fg.trap(toc, "type operator")
	return nil
}

// nodeName returns the name of the kind of an IR node.
func nodeName(e ir.Element) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", e), "*ir.")
}
