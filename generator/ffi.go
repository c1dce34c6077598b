package generator

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/cextract/ir"
)

// ffiScalar returns the libffi type of a scalar, or "" for a size libffi has
// no type for.
func ffiScalar(v *ir.ValueLayout) string {
	switch v.Carrier {
	case ir.CarrierAddress:
		return "&ffi.TypePointer"
	case ir.CarrierBool:
		if v.Size == 8 {
			return "&ffi.TypeUint8"
		}
	case ir.CarrierFloat:
		switch v.Size {
		case 32:
			return "&ffi.TypeFloat"
		case 64:
			return "&ffi.TypeDouble"
		}
	case ir.CarrierInt:
		switch v.Size {
		case 8, 16, 32, 64:
			return fmt.Sprintf("&ffi.TypeSint%d", v.Size)
		}
	case ir.CarrierUint:
		switch v.Size {
		case 8, 16, 32, 64:
			return fmt.Sprintf("&ffi.TypeUint%d", v.Size)
		}
	}
	return ""
}

// ffiType returns an expression for the libffi type of l. Aggregates are
// declared once as package variables: records get an exported FFIType
// variable next to their Go type.
func (e *emission) ffiType(l ir.Layout) string {
	if v, ok := l.(*ir.ValueLayout); ok {
		if t := ffiScalar(v); t != "" {
			return t
		}
	}
	if name, ok := e.ffiNames[l]; ok {
		return "&" + name
	}

	name := fmt.Sprintf("ffiType%d", len(e.ffiNames))
	w := &e.ffiTypes
	if owner, ok := e.owners[l]; ok {
		name = "FFIType" + owner
		w = &e.recordTypes
	}
	e.ffiNames[l] = name

	elems := e.ffiElements(l)
	fmt.Fprintf(w, "var %s = ffi.NewType(\n", name)
	for _, el := range elems {
		fmt.Fprintf(w, "\t%s,\n", el)
	}
	fmt.Fprintf(w, ")\n\n")

	return "&" + name
}

func (e *emission) ffiElements(l ir.Layout) []string {
	switch x := l.(type) {
	case *ir.GroupLayout:
		if x.Kind == ir.GroupUnion || irregular(x) {
			return chunks(x)
		}
		var out []string
		for _, m := range x.Members {
			if p, ok := m.(*ir.PaddingLayout); ok {
				out = append(out, repeat("&ffi.TypeUint8", p.Size/8)...)
				continue
			}
			out = append(out, e.ffiType(m))
		}
		return out

	case *ir.SequenceLayout:
		return repeat(e.ffiType(x.Elem), x.Count)
	}

	return repeat("&ffi.TypeUint8", l.BitSize()/8)
}

// irregular reports whether a struct group holds bitfields or padding that
// is not a whole number of bytes.
func irregular(g *ir.GroupLayout) bool {
	for _, m := range g.Members {
		switch x := m.(type) {
		case *ir.ValueLayout:
			if ffiScalar(x) == "" {
				return true
			}
		case *ir.PaddingLayout:
			if x.Size%8 != 0 {
				return true
			}
		}
	}
	return false
}

// chunks splits a union or a bitfield group into scalars of its alignment.
// A union of floating point members is passed as floats.
func chunks(g *ir.GroupLayout) []string {
	align := min(max(g.BitAlign(), 8), 64)

	floats := g.Kind == ir.GroupUnion && len(g.Members) > 0
	for _, m := range g.Members {
		if v, ok := m.(*ir.ValueLayout); !ok || v.Carrier != ir.CarrierFloat {
			floats = false
		}
	}

	elem := fmt.Sprintf("&ffi.TypeUint%d", align)
	switch {
	case floats && align == 32:
		elem = "&ffi.TypeFloat"
	case floats && align == 64:
		elem = "&ffi.TypeDouble"
	}

	return repeat(elem, g.BitSize()/align)
}

func repeat(s string, n int64) []string {
	out := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, s)
	}
	return out
}

func ffiArgs(types []string) string {
	return strings.Join(types, ", ")
}
