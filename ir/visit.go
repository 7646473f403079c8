package ir

import "nativec/report"

// Children returns the direct children of an element in evaluation order.
// This is the single place that knows the shape of every node kind: both
// traversal styles and the transformer are built on top of it.
func Children(e Element) []Element {
	var children []Element

	add := func(c Element) {
		children = append(children, c)
	}

	addExpr := func(x Expr) {
		if x != nil {
			children = append(children, x)
		}
	}

	switch v := e.(type) {
	case *File:
		for _, d := range v.Declarations {
			add(d)
		}
	case *Class:
		for _, tp := range v.TypeParameters {
			add(tp)
		}

		if v.ThisReceiver != nil {
			add(v.ThisReceiver)
		}

		for _, d := range v.Declarations {
			add(d)
		}
	case *Function:
		for _, tp := range v.TypeParameters {
			add(tp)
		}

		if v.DispatchReceiver != nil {
			add(v.DispatchReceiver)
		}

		if v.ExtensionReceiver != nil {
			add(v.ExtensionReceiver)
		}

		for _, vp := range v.Params {
			add(vp)
		}

		if v.Body != nil {
			add(v.Body)
		}
	case *Property:
		if v.BackingField != nil {
			add(v.BackingField)
		}

		if v.Getter != nil {
			add(v.Getter)
		}

		if v.Setter != nil {
			add(v.Setter)
		}
	case *Field:
		addExpr(v.Initializer)
	case *ValueParameter:
		addExpr(v.DefaultValue)
	case *Variable:
		addExpr(v.Initializer)
	case *TypeParameter, *Const, *GetValue, *Break, *Continue:
		// Leaves.
	case *SetValue:
		addExpr(v.Value)
	case *GetField:
		addExpr(v.Receiver)
	case *SetField:
		addExpr(v.Receiver)
		addExpr(v.Value)
	case *Call:
		addExpr(v.DispatchReceiver)
		addExpr(v.ExtensionReceiver)
		for _, arg := range v.Args {
			addExpr(arg)
		}
	case *ConstructorCall:
		addExpr(v.DispatchReceiver)
		for _, arg := range v.Args {
			addExpr(arg)
		}
	case *DelegatingConstructorCall:
		addExpr(v.DispatchReceiver)
		for _, arg := range v.Args {
			addExpr(arg)
		}
	case *Block:
		for _, stmt := range v.Statements {
			add(stmt)
		}
	case *Return:
		addExpr(v.Value)
	case *Try:
		addExpr(v.Body)
		for _, c := range v.Catches {
			add(c)
		}
		addExpr(v.Finally)
	case *Catch:
		add(v.Param)
		addExpr(v.Result)
	case *Throw:
		addExpr(v.Value)
	case *Loop:
		if v.IsDoWhile {
			addExpr(v.Body)
			addExpr(v.Condition)
		} else {
			addExpr(v.Condition)
			addExpr(v.Body)
		}
	case *When:
		for _, br := range v.Branches {
			add(br)
		}
	case *Branch:
		addExpr(v.Condition)
		addExpr(v.Result)
	case *StringConcat:
		for _, arg := range v.Args {
			addExpr(arg)
		}
	case *FunctionReference:
		addExpr(v.DispatchReceiver)
		addExpr(v.ExtensionReceiver)
	case *FunctionExpression:
		add(v.Function)
	case *PropertyReference:
		addExpr(v.DispatchReceiver)
	case *TypeOperatorCall:
		addExpr(v.Argument)
	default:
		report.ICE("unknown IR element %T", e)
	}

	return children
}

// -----------------------------------------------------------------------------

// Visitor is the "visit and recurse automatically" traversal contract: Visit
// is called for every element; if it returns a non-nil visitor, that visitor
// is used for the children of the element, followed by a call to Visit(nil).
type Visitor interface {
	Visit(e Element) (w Visitor)
}

// Walk traverses the tree rooted at `e` in depth-first order.
func Walk(v Visitor, e Element) {
	if v = v.Visit(e); v == nil {
		return
	}

	for _, c := range Children(e) {
		Walk(v, c)
	}

	v.Visit(nil)
}

type inspector func(Element) bool

func (f inspector) Visit(e Element) Visitor {
	if e != nil && f(e) {
		return f
	}

	return nil
}

// Inspect is the "visit, then decide whether to recurse" traversal: `f` is
// called for every element and the children of an element are only visited
// if `f` returns true for it.
func Inspect(e Element, f func(Element) bool) {
	Walk(inspector(f), e)
}

// VisitAll calls `f` for every element of the tree rooted at `e`.
func VisitAll(e Element, f func(Element)) {
	Inspect(e, func(e Element) bool {
		f(e)
		return true
	})
}
