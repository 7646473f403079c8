package ir

import (
	"fmt"

	"nativec/report"
)

// Verify checks the structural invariants of a file: every referenced symbol
// is bound, every concrete function has a body and every declaration's parent
// is its structural owner.  The first violation found is returned as an
// internal error.
func Verify(file *File) error {
	v := &verifier{}
	v.verify(file, nil)
	return v.err
}

type verifier struct {
	err error
}

func (v *verifier) fail(msg string, args ...interface{}) {
	if v.err == nil {
		v.err = &report.InternalError{Message: fmt.Sprintf(msg, args...)}
	}
}

func (v *verifier) checkSym(e Element, s *Symbol) {
	if s == nil {
		v.fail("%T has no symbol", e)
	} else if !s.IsBound() {
		v.fail("%T refers to %s", e, s)
	}
}

func (v *verifier) verify(e Element, parent DeclarationParent) {
	if v.err != nil {
		return
	}

	if d, ok := e.(Declaration); ok {
		if d.Parent() != parent {
			v.fail("%s has the wrong parent", Describe(d))
			return
		}

		if !d.Symbol().IsBound() || d.Symbol().Owner() != d {
			v.fail("%s is not the owner of its symbol", Describe(d))
			return
		}
	}

	switch n := e.(type) {
	case *Function:
		if n.Body == nil && !n.IsAbstract && !n.IsExternal {
			v.fail("%s has no body", Describe(n))
		}
	case *GetValue:
		v.checkSym(n, n.Sym)
	case *SetValue:
		v.checkSym(n, n.Sym)
	case *GetField:
		v.checkSym(n, n.Sym)
	case *SetField:
		v.checkSym(n, n.Sym)
	case *Call:
		v.checkSym(n, n.Sym)
	case *ConstructorCall:
		v.checkSym(n, n.Sym)
	case *DelegatingConstructorCall:
		v.checkSym(n, n.Sym)
	case *Return:
		v.checkSym(n, n.Target)
	case *FunctionReference:
		v.checkSym(n, n.Sym)
	case *PropertyReference:
		v.checkSym(n, n.Sym)
	case *Break:
		if n.Loop == nil {
			v.fail("break without a loop")
		}
	case *Continue:
		if n.Loop == nil {
			v.fail("continue without a loop")
		}
	}

	next := parent
	if p, ok := e.(DeclarationParent); ok {
		next = p
	}

	for _, c := range Children(e) {
		v.verify(c, next)
	}
}
