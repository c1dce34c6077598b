package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/report"
)

type unsupportedFilter struct {
	abi     ir.ABI
	rep     *report.Reporter
	skipped int
}

// FilterUnsupported marks Skip on declarations that use a type no binding
// can represent, that have no layout or function descriptor, or that take
// or return a variadic callback. It returns how many it marked.
func FilterUnsupported(top *ir.Scoped, abi ir.ABI, rep *report.Reporter) int {
	f := unsupportedFilter{abi: abi, rep: rep}
	for _, m := range top.Members {
		f.visit(m, nil)
	}
	return f.skipped
}

func (f *unsupportedFilter) visit(d ir.Declaration, parent ir.Declaration) {
	if ir.IsSkipped(d) {
		return
	}

	switch d := d.(type) {
	case *ir.Function:
		f.function(d, parent)
	case *ir.Variable:
		f.variable(d, parent)
	case *ir.Typedef:
		f.typedef(d, parent)
	case *ir.Scoped:
		f.scoped(d, parent)
	}
}

func (f *unsupportedFilter) nested(d ir.Declaration, parent ir.Declaration) {
	for _, s := range ir.NestedDecls(d) {
		f.visit(s, parent)
	}
}

func (f *unsupportedFilter) function(fn *ir.Function, parent ir.Declaration) {
	f.nested(fn, parent)

	if t := f.firstUnsupported(fn.Type, false); t != nil {
		f.skip(fn, fn.Name(), "unsupported type usage: "+t.String())
		return
	}

	for _, p := range fn.Params {
		f.nested(p, parent)
		if cb, ok := ir.FunctionPointee(p.Type); ok && !f.callbackSupported(fn, fn.Name(), cb) {
			return
		}
	}

	if cb, ok := ir.FunctionPointee(fn.Type.Return); ok && !f.callbackSupported(fn, fn.Name(), cb) {
		return
	}

	if _, err := f.abi.DescriptorOf(fn.Type); err != nil {
		f.skip(fn, fn.Name(), "no function descriptor: "+err.Error())
	}
}

func (f *unsupportedFilter) variable(v *ir.Variable, parent ir.Declaration) {
	f.nested(v, v)

	name := fieldName(parent, v)
	if t := f.firstUnsupported(v.Type, false); t != nil {
		f.skip(v, name, "unsupported type usage: "+t.String())
		return
	}

	if cb, ok := ir.FunctionPointee(v.Type); ok && !f.callbackSupported(v, name, cb) {
		return
	}

	if v.Kind == ir.VarBitfield {
		return
	}
	if _, err := f.abi.LayoutOf(v.Type); err != nil {
		f.skip(v, name, "no layout: "+err.Error())
	}
}

func (f *unsupportedFilter) typedef(td *ir.Typedef, parent ir.Declaration) {
	f.nested(td, nil)

	if t := f.firstUnsupported(td.Type, false); t != nil {
		f.skip(td, td.Name(), "unsupported type usage: "+t.String())
		return
	}

	if cb, ok := ir.FunctionPointee(td.Type); ok {
		f.callbackSupported(td, td.Name(), cb)
	}
}

func (f *unsupportedFilter) scoped(s *ir.Scoped, parent ir.Declaration) {
	if s.IsRecord() {
		if t := f.firstUnsupported(ir.NewDeclared(s), false); t != nil {
			f.skip(s, fieldName(parent, s), "unsupported type usage: "+t.String())
			return
		}
	}

	named := parent
	if s.Name() != "" {
		named = s
	}
	for _, m := range s.Members {
		f.visit(m, named)
	}
}

// callbackSupported checks a function type used through a pointer. On
// failure d is skipped and false is returned.
func (f *unsupportedFilter) callbackSupported(d ir.Declaration, name string, fn *ir.FunctionType) bool {
	if t := f.firstUnsupported(fn, false); t != nil {
		f.skip(d, name, "unsupported type usage: "+t.String())
		return false
	}
	if fn.Varargs && len(fn.Args) > 0 {
		f.skip(d, name, "varargs in callbacks is not supported")
		return false
	}
	return true
}

// firstUnsupported returns the first type reachable from t that cannot be
// represented, or nil. Pointees are not visited: a pointer is an address
// whatever it points to.
func (f *unsupportedFilter) firstUnsupported(t ir.Type, allowVoid bool) ir.Type {
	switch x := t.(type) {
	case *ir.Primitive:
		switch x.Kind {
		case ir.Char16, ir.Float128, ir.HalfFloat, ir.Int128, ir.WChar:
			return x
		case ir.LongDouble:
			if !f.abi.LongDoubleIsDouble() {
				return x
			}
		case ir.Void:
			if !allowVoid {
				return x
			}
		}

	case *ir.FunctionType:
		for _, a := range x.Args {
			if u := f.firstUnsupported(a, false); u != nil {
				return u
			}
		}
		return f.firstUnsupported(x.Return, true)

	case *ir.Declared:
		if ir.IsErroneous(x) {
			return x
		}
		if x.Decl.IsRecord() && !validRecord(x.Decl) {
			return x
		}

	case *ir.Delegated:
		if x.Kind != ir.DelegatedPointer {
			return f.firstUnsupported(x.Type(), allowVoid)
		}

	case *ir.Array:
		return f.firstUnsupported(x.Elem, false)
	}

	return nil
}

// validRecord reports whether a record can be used by value: it has a size
// and, if it is an anonymous member, a byte offset.
func validRecord(s *ir.Scoped) bool {
	if _, ok := ir.ClangSize(s); !ok {
		return false
	}
	if a, ok := ir.AnonymousStructOf(s); ok && !a.HasOffset {
		return false
	}
	return true
}

func (f *unsupportedFilter) skip(d ir.Declaration, name, reason string) {
	ir.Skip(d)
	f.skipped++
	f.rep.Warn("skipping "+name,
		zap.String("reason", reason),
		zap.Stringer("pos", d.Pos()),
	)
}

func fieldName(parent, d ir.Declaration) string {
	name := d.Name()
	if name == "" {
		name = "<anonymous>"
	}
	if parent != nil && parent.Name() != "" {
		return fmt.Sprintf("%s.%s", parent.Name(), name)
	}
	return name
}
