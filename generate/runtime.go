package generate

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Names of the runtime entry points the generated code calls.
const (
	rtAllocInstance = "nativec_alloc_instance"
	rtStringLiteral = "nativec_string_literal"
	rtThrow         = "nativec_throw"
	rtUnsupported   = "nativec_unsupported"
	rtUnitInstance  = "nativec_unit_instance"
)

// useRuntime records that the module references the runtime.
func (g *generator) useRuntime() {
	if !g.usesRuntime {
		g.usesRuntime = true
		if g.deps != nil {
			g.deps.AddNativeRuntime(false)
		}
	}
}

// runtimeFunc returns the declaration of a runtime function, declaring it on
// first use.
func (g *generator) runtimeFunc(name string) *llir.Func {
	if f, ok := g.runtime[name]; ok {
		return f
	}

	g.useRuntime()

	var f *llir.Func
	switch name {
	case rtAllocInstance:
		f = g.mod.NewFunc(name, g.objPtr, llir.NewParam("size", types.I64))
	case rtStringLiteral:
		f = g.mod.NewFunc(name, g.objPtr, llir.NewParam("chars", types.I8Ptr), llir.NewParam("length", types.I32))
	case rtThrow:
		f = g.mod.NewFunc(name, types.Void, llir.NewParam("exception", g.objPtr))
		f.FuncAttrs = append(f.FuncAttrs, enum.FuncAttrNoReturn)
	case rtUnsupported:
		f = g.mod.NewFunc(name, types.Void, llir.NewParam("what", types.I8Ptr))
		f.FuncAttrs = append(f.FuncAttrs, enum.FuncAttrNoReturn)
	default:
		panic(fmt.Sprintf("unknown runtime function `%s`", name))
	}

	g.runtime[name] = f
	return f
}

// unit returns a reference to the Unit instance.
func (g *generator) unit() value.Value {
	if g.unitInstance == nil {
		g.useRuntime()

		g.unitInstance = g.mod.NewGlobal(rtUnitInstance, g.objHeader)
		g.unitInstance.Linkage = enum.LinkageExternal
	}

	return g.unitInstance
}

// cString interns a NUL-terminated string constant and returns a pointer to
// its first character.
func (g *generator) cString(s string) constant.Constant {
	data := constant.NewCharArrayFromString(s + "\x00")

	glob := g.mod.NewGlobalDef(fmt.Sprintf(".str.%d", g.stringCounter), data)
	glob.Linkage = enum.LinkagePrivate
	glob.Immutable = true
	g.stringCounter++

	zero := constant.NewInt(types.I32, 0)
	return constant.NewGetElementPtr(data.Typ, glob, zero, zero)
}

// sizeOf returns the allocation size of a struct as a constant expression:
// `ptrtoint (T* getelementptr (T, T* null, i32 1) to i64)`.
func sizeOf(t *types.StructType) constant.Constant {
	end := constant.NewGetElementPtr(t, constant.NewNull(types.NewPointer(t)), constant.NewInt(types.I32, 1))
	return constant.NewPtrToInt(end, types.I64)
}
