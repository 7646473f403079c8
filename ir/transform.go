package ir

import "nativec/report"

// Transformer is the transform contract: Transform receives an element and
// returns its replacement (possibly the element itself).  Implementations
// handle the node kinds they care about in a type switch and fall back to
// TransformChildren for everything else.
type Transformer interface {
	Transform(e Element) Element
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(e Element) Element

func (f TransformerFunc) Transform(e Element) Element {
	return f(e)
}

// TransformChildren replaces every child of `e` by the result of transforming
// it.  The element itself is mutated in place.
func TransformChildren(e Element, t Transformer) {
	switch v := e.(type) {
	case *File:
		transformDecls(&v.Declarations, t)
	case *Class:
		for i, tp := range v.TypeParameters {
			v.TypeParameters[i] = transformAs(t, tp)
		}

		if v.ThisReceiver != nil {
			v.ThisReceiver = transformAs(t, v.ThisReceiver)
		}

		transformDecls(&v.Declarations, t)
	case *Function:
		for i, tp := range v.TypeParameters {
			v.TypeParameters[i] = transformAs(t, tp)
		}

		if v.DispatchReceiver != nil {
			v.DispatchReceiver = transformAs(t, v.DispatchReceiver)
		}

		if v.ExtensionReceiver != nil {
			v.ExtensionReceiver = transformAs(t, v.ExtensionReceiver)
		}

		for i, vp := range v.Params {
			v.Params[i] = transformAs(t, vp)
		}

		if v.Body != nil {
			v.Body = AsBlock(transformExpr(t, v.Body))
		}
	case *Property:
		if v.BackingField != nil {
			v.BackingField = transformAs(t, v.BackingField)
		}

		if v.Getter != nil {
			v.Getter = transformAs(t, v.Getter)
		}

		if v.Setter != nil {
			v.Setter = transformAs(t, v.Setter)
		}
	case *Field:
		v.Initializer = transformExpr(t, v.Initializer)
	case *ValueParameter:
		v.DefaultValue = transformExpr(t, v.DefaultValue)
	case *Variable:
		v.Initializer = transformExpr(t, v.Initializer)
	case *TypeParameter, *Const, *GetValue, *Break, *Continue:
		// Leaves.
	case *SetValue:
		v.Value = transformExpr(t, v.Value)
	case *GetField:
		v.Receiver = transformExpr(t, v.Receiver)
	case *SetField:
		v.Receiver = transformExpr(t, v.Receiver)
		v.Value = transformExpr(t, v.Value)
	case *Call:
		v.DispatchReceiver = transformExpr(t, v.DispatchReceiver)
		v.ExtensionReceiver = transformExpr(t, v.ExtensionReceiver)
		transformExprs(v.Args, t)
	case *ConstructorCall:
		v.DispatchReceiver = transformExpr(t, v.DispatchReceiver)
		transformExprs(v.Args, t)
	case *DelegatingConstructorCall:
		v.DispatchReceiver = transformExpr(t, v.DispatchReceiver)
		transformExprs(v.Args, t)
	case *Block:
		for i, stmt := range v.Statements {
			v.Statements[i] = transformStmt(t, stmt)
		}
	case *Return:
		v.Value = transformExpr(t, v.Value)
	case *Try:
		v.Body = transformExpr(t, v.Body)
		for i, c := range v.Catches {
			v.Catches[i] = transformAs(t, c)
		}
		v.Finally = transformExpr(t, v.Finally)
	case *Catch:
		v.Param = transformAs(t, v.Param)
		v.Result = transformExpr(t, v.Result)
	case *Throw:
		v.Value = transformExpr(t, v.Value)
	case *Loop:
		if v.IsDoWhile {
			v.Body = transformExpr(t, v.Body)
			v.Condition = transformExpr(t, v.Condition)
		} else {
			v.Condition = transformExpr(t, v.Condition)
			v.Body = transformExpr(t, v.Body)
		}
	case *When:
		for i, br := range v.Branches {
			v.Branches[i] = transformAs(t, br)
		}
	case *Branch:
		v.Condition = transformExpr(t, v.Condition)
		v.Result = transformExpr(t, v.Result)
	case *StringConcat:
		transformExprs(v.Args, t)
	case *FunctionReference:
		v.DispatchReceiver = transformExpr(t, v.DispatchReceiver)
		v.ExtensionReceiver = transformExpr(t, v.ExtensionReceiver)
	case *FunctionExpression:
		v.Function = transformAs(t, v.Function)
	case *PropertyReference:
		v.DispatchReceiver = transformExpr(t, v.DispatchReceiver)
	case *TypeOperatorCall:
		v.Argument = transformExpr(t, v.Argument)
	default:
		report.ICE("unknown IR element %T", e)
	}
}

// transformAs transforms an element whose slot requires a specific node kind.
func transformAs[T Element](t Transformer, e T) T {
	r := t.Transform(e)

	x, ok := r.(T)
	if !ok {
		report.ICE("%T transformed into incompatible %T", e, r)
	}

	return x
}

// transformExpr transforms an optional expression slot.
func transformExpr(t Transformer, e Expr) Expr {
	if e == nil {
		return nil
	}

	r := t.Transform(e)

	x, ok := r.(Expr)
	if !ok {
		report.ICE("expression %T transformed into non-expression %T", e, r)
	}

	return x
}

// transformExprs transforms a list of optional expression slots in place.
func transformExprs(exprs []Expr, t Transformer) {
	for i, e := range exprs {
		exprs[i] = transformExpr(t, e)
	}
}

// transformStmt transforms a statement slot.
func transformStmt(t Transformer, s Statement) Statement {
	r := t.Transform(s)

	x, ok := r.(Statement)
	if !ok {
		report.ICE("statement %T transformed into non-statement %T", s, r)
	}

	return x
}

// transformDecls transforms a member declaration list in place.
func transformDecls(decls *[]Declaration, t Transformer) {
	for i, d := range *decls {
		r := t.Transform(d)

		x, ok := r.(Declaration)
		if !ok {
			report.ICE("declaration %s transformed into non-declaration %T", Describe(d), r)
		}

		(*decls)[i] = x
	}
}

// AsBlock returns the expression as a block, wrapping it if necessary.
func AsBlock(e Expr) *Block {
	if b, ok := e.(*Block); ok {
		return b
	}

	return NewBlock(e.Type(), e)
}

// -----------------------------------------------------------------------------

// TransformFlat is the declaration-level transform contract.  `f` is called for
// every member of the container and, recursively, of every nested class.  A
// nil result keeps the member unchanged; a non-nil result replaces it by the
// returned list, which may be empty.  Nested classes are processed before
// their containing member list is rewritten, and members introduced by `f` are
// not themselves revisited.  Parents of the new members are set to the
// container.
func TransformFlat(container DeclarationContainer, f func(Declaration) []Declaration) {
	members := container.Members()

	var result []Declaration
	changed := false

	for _, d := range *members {
		if c, ok := d.(*Class); ok {
			TransformFlat(c, f)
		}

		replacement := f(d)
		if replacement == nil {
			result = append(result, d)
			continue
		}

		changed = true
		for _, r := range replacement {
			r.SetParent(container)
			result = append(result, r)
		}
	}

	if changed {
		*members = result
	}
}

// TransformFlatLocal applies `f` to the local declaration statements of every
// block within `e`, with the same contract as TransformFlat.  New local
// declarations get their parent set to `parent`.
func TransformFlatLocal(e Element, parent DeclarationParent, f func(Declaration) []Declaration) {
	var visit func(e Element, parent DeclarationParent)
	visit = func(e Element, parent DeclarationParent) {
		for _, c := range Children(e) {
			next := parent
			if p, ok := c.(DeclarationParent); ok {
				if _, isFile := c.(*File); !isFile {
					next = p
				}
			}

			visit(c, next)
		}

		blk, ok := e.(*Block)
		if !ok {
			return
		}

		var result []Statement
		changed := false

		for _, stmt := range blk.Statements {
			d, isDecl := stmt.(Declaration)
			if !isDecl {
				result = append(result, stmt)
				continue
			}

			replacement := f(d)
			if replacement == nil {
				result = append(result, stmt)
				continue
			}

			changed = true
			for _, r := range replacement {
				r.SetParent(parent)
				result = append(result, r)
			}
		}

		if changed {
			blk.Statements = result
		}
	}

	visit(e, parent)
}
