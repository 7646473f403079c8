package ir

import (
	"fmt"
	"strings"
)

// PatchDeclarationParents sets the parent of every declaration in the tree
// rooted at `root` to its structural owner.  `parent` is the owner of `root`
// itself (ignored when `root` is a file).  Every pass that moves or copies a
// subtree must call this before it finishes.
func PatchDeclarationParents(root Element, parent DeclarationParent) {
	if d, ok := root.(Declaration); ok && parent != nil {
		d.SetParent(parent)
	}

	next := parent
	if p, ok := root.(DeclarationParent); ok {
		next = p
	}

	for _, c := range Children(root) {
		PatchDeclarationParents(c, next)
	}
}

// FileOf returns the file a declaration belongs to or nil if it is detached.
func FileOf(d Declaration) *File {
	var p DeclarationParent = d.Parent()
	for i := 0; p != nil && i < 1<<16; i++ {
		switch v := p.(type) {
		case *File:
			return v
		case Declaration:
			p = v.Parent()
		default:
			return nil
		}
	}

	return nil
}

// IsLocal returns whether a declaration is local: nested, at some depth, inside
// a function body.
func IsLocal(d Declaration) bool {
	p := d.Parent()
	for p != nil {
		switch v := p.(type) {
		case *Function:
			return true
		case *Class:
			p = v.Parent()
		default:
			return false
		}
	}

	return false
}

// ParentClass returns the class directly owning a declaration or nil.
func ParentClass(d Declaration) *Class {
	c, _ := d.Parent().(*Class)
	return c
}

// EnclosingClass returns the innermost class containing a declaration or nil.
func EnclosingClass(d Declaration) *Class {
	p := d.Parent()
	for p != nil {
		switch v := p.(type) {
		case *Class:
			return v
		case Declaration:
			p = v.Parent()
		default:
			return nil
		}
	}

	return nil
}

// TopLevelContainer returns the file or top-level class that (transitively)
// contains the declaration.  Synthesized helpers that must not be local are
// placed there.
func TopLevelContainer(d Declaration) DeclarationContainer {
	var last Declaration = d
	p := d.Parent()

	for p != nil {
		switch v := p.(type) {
		case *File:
			if c, ok := last.(*Class); ok {
				return c
			}

			return v
		case Declaration:
			last = v
			p = v.Parent()
		default:
			return nil
		}
	}

	return nil
}

// Describe returns a short human-readable rendering of a declaration used in
// diagnostics: its kind, its qualified name and its file.
func Describe(d Declaration) string {
	var kind string
	switch v := d.(type) {
	case *Class:
		kind = "class"
	case *Function:
		if v.IsConstructor {
			kind = "constructor"
		} else {
			kind = "fun"
		}
	case *Property:
		kind = "property"
	case *Field:
		kind = "field"
	case *ValueParameter:
		kind = "parameter"
	case *Variable:
		kind = "var"
	case *TypeParameter:
		kind = "type parameter"
	default:
		kind = fmt.Sprintf("%T", d)
	}

	var names []string
	var p Element = d
	for i := 0; p != nil && i < 64; i++ {
		decl, ok := p.(Declaration)
		if !ok {
			break
		}

		names = append(names, decl.DeclName())
		p = decl.Parent()
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	f := FileOf(d)
	if f != nil && f.FqName != "" {
		names = append([]string{f.FqName}, names...)
	}

	desc := kind + " " + strings.Join(names, ".")
	if f != nil {
		desc += " (" + f.Path + ")"
	}

	return desc
}
