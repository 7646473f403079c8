package generate

import (
	"sort"
	"strings"

	"nativec/ir"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

// convType converts a value type.  Non-nullable Int, Long and Boolean are
// unboxed; every other type is an object reference.
func (g *generator) convType(t ir.Type) types.Type {
	if t == nil || t.IsNullable() {
		return g.objPtr
	}

	switch ir.ClassOf(t) {
	case g.b.Int:
		return types.I32
	case g.b.Long:
		return types.I64
	case g.b.Boolean:
		return types.I1
	}

	return g.objPtr
}

// convReturnType converts a return type: functions returning Unit or Nothing
// return void.
func (g *generator) convReturnType(t ir.Type) types.Type {
	if g.isUnit(t) || g.isNothing(t) {
		return types.Void
	}

	return g.convType(t)
}

func (g *generator) isUnit(t ir.Type) bool {
	return t != nil && !t.IsNullable() && ir.ClassOf(t) == g.b.Unit
}

func (g *generator) isNothing(t ir.Type) bool {
	return t != nil && ir.ClassOf(t) == g.b.Nothing
}

// zeroValue returns the zero value of a converted value type.
func zeroValue(t types.Type) constant.Constant {
	switch v := t.(type) {
	case *types.IntType:
		return constant.NewInt(v, 0)
	case *types.PointerType:
		return constant.NewNull(v)
	}

	return constant.NewZeroInitializer(t)
}

// -----------------------------------------------------------------------------

// classLayout is the memory layout of the instances of a class: the object
// header followed by the instance fields of its superclasses and then its
// own.
type classLayout struct {
	typ    *types.StructType
	fields []*ir.Field
	index  map[*ir.Field]int
}

// layoutOf returns the layout of a class, creating its named struct on first
// use.
func (g *generator) layoutOf(c *ir.Class) *classLayout {
	if l, ok := g.layouts[c]; ok {
		return l
	}

	g.noteReference(c)

	l := &classLayout{typ: types.NewStruct(), index: make(map[*ir.Field]int)}
	g.layouts[c] = l
	g.mod.NewTypeDef("class."+qualifiedName(c), l.typ)

	if super := g.superClass(c); super != nil {
		l.fields = append(l.fields, g.layoutOf(super).fields...)
	}

	l.fields = append(l.fields, instanceFields(c)...)

	l.typ.Fields = []types.Type{g.objHeader}
	for i, fd := range l.fields {
		l.index[fd] = i + 1
		l.typ.Fields = append(l.typ.Fields, g.convType(fd.Type))
	}

	return l
}

// superClass returns the superclass of a class whose fields are part of its
// layout, or nil.
func (g *generator) superClass(c *ir.Class) *ir.Class {
	for _, st := range c.SuperTypes {
		if sc := ir.ClassOf(st); sc != nil && !sc.IsInterface() && sc != g.b.Any {
			return sc
		}
	}

	return nil
}

// instanceFields returns the instance fields declared directly by a class,
// including property backing fields.
func instanceFields(c *ir.Class) []*ir.Field {
	var fields []*ir.Field
	for _, d := range c.Declarations {
		switch v := d.(type) {
		case *ir.Field:
			if !v.IsStatic {
				fields = append(fields, v)
			}
		case *ir.Property:
			if v.BackingField != nil && !v.BackingField.IsStatic {
				fields = append(fields, v.BackingField)
			}
		}
	}

	return fields
}

// classFields describes the layouts of the classes defined by the module,
// sorted by class name.
func (g *generator) classFields() []string {
	var lines []string
	for c, l := range g.layouts {
		if !g.isLocal(c) {
			continue
		}

		sb := strings.Builder{}
		sb.WriteString(qualifiedName(c))
		for _, fd := range l.fields {
			sb.WriteRune(' ')
			sb.WriteString(fd.Name)
			sb.WriteRune(':')
			sb.WriteString(typeName(fd.Type))
		}

		lines = append(lines, sb.String())
	}

	sort.Strings(lines)
	return lines
}
