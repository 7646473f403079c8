package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders the tree rooted at `e` as indented text, one node per line.
// The rendering is deterministic and is used for debug traces and tests.
func Dump(e Element) string {
	sb := &strings.Builder{}
	dump(sb, e, 0)
	return sb.String()
}

func dump(sb *strings.Builder, e Element, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(header(e))

	if e.Origin() != OriginDefined {
		sb.WriteString(" origin=")
		sb.WriteString(string(e.Origin()))
	}

	sb.WriteRune('\n')

	for _, c := range Children(e) {
		dump(sb, c, depth+1)
	}
}

func typeStr(t Type) string {
	if t == nil {
		return "<no type>"
	}

	return t.String()
}

func symName(s *Symbol) string {
	if s == nil {
		return "<nil>"
	}

	if !s.IsBound() {
		return s.String()
	}

	return s.Owner().DeclName()
}

func header(e Element) string {
	switch v := e.(type) {
	case *File:
		return "FILE " + v.Path
	case *Class:
		var flags []string
		if v.IsInner {
			flags = append(flags, "inner")
		}

		if v.IsFun {
			flags = append(flags, "fun")
		}

		kind := [...]string{"CLASS", "INTERFACE", "OBJECT", "ANNOTATION_CLASS"}[v.Kind]
		if len(flags) > 0 {
			return fmt.Sprintf("%s %s [%s]", kind, v.Name, strings.Join(flags, ","))
		}

		return kind + " " + v.Name
	case *Function:
		var flags []string
		if v.IsSuspend {
			flags = append(flags, "suspend")
		}

		if v.IsInline {
			flags = append(flags, "inline")
		}

		if v.IsAbstract {
			flags = append(flags, "abstract")
		}

		kind := "FUN"
		if v.IsConstructor {
			kind = "CONSTRUCTOR"
		}

		params := make([]string, len(v.Params))
		for i, vp := range v.Params {
			params[i] = vp.Name + ": " + typeStr(vp.Type)
		}

		h := fmt.Sprintf("%s %s(%s): %s", kind, v.Name, strings.Join(params, ", "), typeStr(v.ReturnType))
		if len(flags) > 0 {
			h += " [" + strings.Join(flags, ",") + "]"
		}

		return h
	case *Property:
		if v.IsLateinit {
			return "PROPERTY " + v.Name + " [lateinit]"
		}

		return "PROPERTY " + v.Name
	case *Field:
		return "FIELD " + v.Name + ": " + typeStr(v.Type)
	case *TypeParameter:
		return "TYPE_PARAMETER " + v.Name
	case *ValueParameter:
		return "VALUE_PARAMETER " + v.Name + ": " + typeStr(v.Type)
	case *Variable:
		kw := "VAL"
		if v.IsVar {
			kw = "VAR"
		}

		if v.IsLateinit {
			kw = "LATEINIT_VAR"
		}

		return kw + " " + v.Name + ": " + typeStr(v.Type)
	case *Const:
		switch v.Kind {
		case ConstNull:
			return "CONST null"
		case ConstUnit:
			return "CONST Unit"
		case ConstString:
			return "CONST String " + strconv.Quote(v.Value.(string))
		default:
			return fmt.Sprintf("CONST %s %v", typeStr(v.Type()), v.Value)
		}
	case *GetValue:
		return "GET_VAR " + symName(v.Sym)
	case *SetValue:
		return "SET_VAR " + symName(v.Sym)
	case *GetField:
		return "GET_FIELD " + symName(v.Sym)
	case *SetField:
		return "SET_FIELD " + symName(v.Sym)
	case *Call:
		return "CALL " + symName(v.Sym)
	case *ConstructorCall:
		return "CONSTRUCTOR_CALL " + typeStr(v.Type())
	case *DelegatingConstructorCall:
		return "DELEGATING_CONSTRUCTOR_CALL " + symName(v.Sym)
	case *Block:
		if v.IsTransparent {
			return "COMPOSITE"
		}

		return "BLOCK"
	case *Return:
		return "RETURN " + symName(v.Target)
	case *Try:
		return "TRY"
	case *Catch:
		return "CATCH"
	case *Throw:
		return "THROW"
	case *Loop:
		if v.IsDoWhile {
			return "DO_WHILE " + v.Label
		}

		return "WHILE " + v.Label
	case *Break:
		return "BREAK"
	case *Continue:
		return "CONTINUE"
	case *When:
		return "WHEN"
	case *Branch:
		return "BRANCH"
	case *StringConcat:
		return "STRING_CONCATENATION"
	case *FunctionReference:
		return "FUNCTION_REFERENCE " + symName(v.Sym)
	case *FunctionExpression:
		return "FUN_EXPR"
	case *PropertyReference:
		return "PROPERTY_REFERENCE " + symName(v.Sym)
	case *TypeOperatorCall:
		ops := [...]string{"CAST", "IMPLICIT_CAST", "SAFE_CAST", "INSTANCEOF", "NOT_INSTANCEOF", "IMPLICIT_COERCION_TO_UNIT", "SAM_CONVERSION"}
		return "TYPE_OP " + ops[v.Operator] + " " + typeStr(v.TypeOperand)
	}

	return fmt.Sprintf("%T", e)
}
