package pipeline

import "github.com/ardanlabs/cextract/ir"

type nestedFinder struct {
	seen    map[*ir.Scoped]bool
	pending map[*ir.Scoped]bool
	order   []*ir.Scoped
}

// FindNested marks Nested on the records and enums that are only reachable
// through the types of other declarations, such as the unnamed struct of
// "typedef struct { int x; } point;". Declarations that are members of a
// scope are not nested. It returns the marked declarations in the order
// they were reached.
func FindNested(top *ir.Scoped) []*ir.Scoped {
	f := nestedFinder{
		seen:    make(map[*ir.Scoped]bool),
		pending: make(map[*ir.Scoped]bool),
	}
	for _, m := range top.Members {
		f.visit(m)
	}

	var nested []*ir.Scoped
	for _, s := range f.order {
		if f.seen[s] {
			continue
		}
		ir.SetNested(s)
		nested = append(nested, s)
	}
	return nested
}

func (f *nestedFinder) visit(d ir.Declaration) {
	switch d := d.(type) {
	case *ir.Scoped:
		f.seen[d] = true
		for _, m := range d.Members {
			f.visit(m)
		}
	case *ir.Function:
		f.visitType(d.Type)
	case *ir.Variable:
		f.visitType(d.Type)
	case *ir.Typedef:
		f.visitType(d.Type)
	}
}

// visitType adds the records reachable from t to the pending set. The
// fields of a record reached this way are followed too, since nothing else
// visits them.
func (f *nestedFinder) visitType(t ir.Type) {
	switch x := t.(type) {
	case *ir.Array:
		f.visitType(x.Elem)

	case *ir.Delegated:
		f.visitType(x.Type())

	case *ir.FunctionType:
		f.visitType(x.Return)
		for _, a := range x.Args {
			f.visitType(a)
		}

	case *ir.Declared:
		if ir.IsErroneous(x) || f.pending[x.Decl] {
			return
		}
		f.pending[x.Decl] = true
		f.order = append(f.order, x.Decl)
		f.visitMembers(x.Decl)
	}
}

func (f *nestedFinder) visitMembers(s *ir.Scoped) {
	for _, m := range s.Members {
		switch m := m.(type) {
		case *ir.Variable:
			f.visitType(m.Type)
		case *ir.Scoped:
			f.visitMembers(m)
		}
	}
}
