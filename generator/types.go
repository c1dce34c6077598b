package generator

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
)

// emission is the state of one Emit call.
type emission struct {
	abi ir.ABI
	log *zap.Logger

	globals  namer
	typedefs map[string]string
	names    map[*ir.Scoped]string
	queue    []*ir.Scoped

	// owners maps the layout of a record to the record's Go name.
	owners   map[ir.Layout]string
	ffiNames map[ir.Layout]string

	records     bytes.Buffer
	recordTypes bytes.Buffer
	aliases     bytes.Buffer
	constants   bytes.Buffer
	symbols     bytes.Buffer
	loads       bytes.Buffer
	wrappers    bytes.Buffer
	ffiTypes    bytes.Buffer

	funcs    int
	vars     int
	lastEnum string
}

func newEmission(abi ir.ABI, log *zap.Logger) *emission {
	e := emission{
		abi:      abi,
		log:      log,
		globals:  make(namer),
		typedefs: make(map[string]string),
		names:    make(map[*ir.Scoped]string),
		owners:   make(map[ir.Layout]string),
		ffiNames: make(map[ir.Layout]string),
	}
	e.globals.reserve("Load")
	return &e
}

func (e *emission) collect(top *ir.Scoped) error {
	for _, d := range top.Members {
		if ir.IsSkipped(d) {
			continue
		}
		for _, n := range ir.NestedDecls(d) {
			e.record(n)
		}
		switch d := d.(type) {
		case *ir.Scoped:
			e.record(d)
		case *ir.Typedef:
			e.writeTypedef(d)
		}
	}

	for _, d := range top.Members {
		if ir.IsSkipped(d) {
			continue
		}
		switch d := d.(type) {
		case *ir.Function:
			if err := e.writeFunction(d); err != nil {
				return fmt.Errorf("%s: function %s: %w", d.Pos(), d.Name(), err)
			}
		case *ir.Variable:
			e.writeVariable(d)
		case *ir.Constant:
			e.writeConstant(d)
		}
	}

	// Writing a record can name more records.
	for i := 0; i < len(e.queue); i++ {
		e.writeRecord(e.queue[i])
	}

	return nil
}

// record returns the Go name of a struct or union, queueing it for output
// the first time it is seen.
func (e *emission) record(s *ir.Scoped) (string, bool) {
	if name, ok := e.names[s]; ok {
		return name, true
	}
	if !s.IsRecord() || ir.IsSkipped(s) {
		return "", false
	}
	path, ok := ir.TargetName(s)
	if !ok {
		return "", false
	}

	name := e.globals.name(toGoName(strings.Join(path, "_")))
	e.names[s] = name
	e.queue = append(e.queue, s)
	if l, ok := s.Layout(); ok {
		e.owners[l] = name
	}

	return name, true
}

// goType returns the Go type standing for t, or "" when t has no storage.
func (e *emission) goType(t ir.Type) string {
	switch x := t.(type) {
	case *ir.Delegated:
		switch x.Kind {
		case ir.DelegatedTypedef:
			if name, ok := e.typedefs[x.Name]; ok {
				return name
			}
			return e.goType(x.Type())
		case ir.DelegatedPointer:
			return e.pointerType(x.Type())
		case ir.DelegatedVolatile, ir.DelegatedAtomic:
			return e.goType(x.Type())
		}

	case *ir.Array:
		elem := e.goType(x.Elem)
		if elem == "" {
			return ""
		}
		if !x.HasCount {
			return "[0]" + elem
		}
		return fmt.Sprintf("[%d]%s", x.Count, elem)

	case *ir.Declared:
		if _, laidOut := x.Decl.Layout(); laidOut {
			if name, ok := e.record(x.Decl); ok {
				return name
			}
		}

	case *ir.FunctionType, nil:
		return ""
	}

	l, err := e.abi.LayoutOf(t)
	if err != nil {
		return ""
	}
	return layoutType(l)
}

// pointerType points to records that are laid out. Every other pointer is
// a uintptr.
func (e *emission) pointerType(pointee ir.Type) string {
	if pointee == nil {
		return "uintptr"
	}

	s, ok := ir.DeclaredRecord(pointee)
	if !ok {
		return "uintptr"
	}
	if _, laidOut := s.Layout(); !laidOut {
		return "uintptr"
	}
	if _, ok := e.record(s); !ok {
		return "uintptr"
	}

	return "*" + e.goType(pointee)
}

// layoutType maps a layout to a Go type of the same size.
func layoutType(l ir.Layout) string {
	switch x := l.(type) {
	case *ir.ValueLayout:
		switch x.Carrier {
		case ir.CarrierBool:
			if x.Size == 8 {
				return "bool"
			}
		case ir.CarrierAddress:
			return "uintptr"
		case ir.CarrierFloat:
			switch x.Size {
			case 32, 64:
				return fmt.Sprintf("float%d", x.Size)
			}
		case ir.CarrierInt:
			switch x.Size {
			case 8, 16, 32, 64:
				return fmt.Sprintf("int%d", x.Size)
			}
		case ir.CarrierUint:
			switch x.Size {
			case 8, 16, 32, 64:
				return fmt.Sprintf("uint%d", x.Size)
			}
		}

	case *ir.SequenceLayout:
		return fmt.Sprintf("[%d]%s", x.Count, layoutType(x.Elem))
	}

	return bytesOf(l)
}

func bytesOf(l ir.Layout) string {
	return fmt.Sprintf("[%d]byte", l.BitSize()/8)
}

// goAlign is the alignment in bits Go gives to the type layoutType or a
// record emitted for l picks.
func goAlign(l ir.Layout) int64 {
	switch x := l.(type) {
	case *ir.ValueLayout:
		switch x.Size {
		case 16, 32, 64:
			return x.Size
		}
		return 8
	case *ir.SequenceLayout:
		return goAlign(x.Elem)
	}
	return min(max(l.BitAlign(), 8), 64)
}

func alignType(bits int64) string {
	switch {
	case bits >= 64:
		return "uint64"
	case bits >= 32:
		return "uint32"
	case bits >= 16:
		return "uint16"
	}
	return ""
}

// packed reports whether Go would place a member of g at another offset
// than C does, or round the size of g up.
func packed(g *ir.GroupLayout) bool {
	var off int64
	align := int64(8)
	for _, m := range g.Members {
		if _, ok := m.(*ir.PaddingLayout); !ok {
			a := goAlign(m)
			if off%a != 0 {
				return true
			}
			align = max(align, a)
		}
		off += m.BitSize()
	}
	return off%align != 0
}

func describe(s *ir.Scoped) string {
	name := s.Name()
	if name == "" {
		name = "<anonymous>"
	}
	return s.Kind.String() + " " + name
}

func (e *emission) writeRecord(s *ir.Scoped) {
	name := e.names[s]
	w := &e.records

	l, ok := s.Layout()
	if !ok {
		fmt.Fprintf(w, "// %s is a handle to the opaque %s.\n", name, describe(s))
		fmt.Fprintf(w, "type %s uintptr\n\n", name)
		return
	}

	g, isGroup := l.(*ir.GroupLayout)
	if !isGroup || g.Kind == ir.GroupUnion || packed(g) {
		fmt.Fprintf(w, "// %s holds the bytes of %s.\n", name, describe(s))
		fmt.Fprintf(w, "type %s struct {\n", name)
		if a := alignType(l.BitAlign()); a != "" {
			fmt.Fprintf(w, "\t_ [0]%s\n", a)
		}
		fmt.Fprintf(w, "\tData [%d]byte\n", l.BitSize()/8)
		fmt.Fprintf(w, "}\n\n")
		return
	}

	fmt.Fprintf(w, "// %s mirrors %s.\n", name, describe(s))
	fmt.Fprintf(w, "type %s struct {\n", name)

	fields := make(namer)
	decls := s.Members
	var pad int64
	var groups int
	for _, m := range g.Members {
		if p, ok := m.(*ir.PaddingLayout); ok {
			pad += p.Size
			continue
		}
		if pad >= 8 {
			fmt.Fprintf(w, "\t_ [%d]byte\n", pad/8)
		}
		pad = 0

		if len(decls) == 0 {
			fmt.Fprintf(w, "\t_ %s\n", bytesOf(m))
			continue
		}
		d := decls[0]
		decls = decls[1:]

		switch d := d.(type) {
		case *ir.Variable:
			e.writeField(w, fields, d, m)

		case *ir.Scoped:
			if d.Kind == ir.ScopedBitfields {
				var names []string
				for _, b := range d.Members {
					names = append(names, b.Name())
				}
				fmt.Fprintf(w, "\t// bitfields %s\n", strings.Join(names, ", "))
				fmt.Fprintf(w, "\t%s %s\n", fields.name(fmt.Sprintf("Bits%d", groups)), bytesOf(m))
				groups++
				continue
			}
			typ, ok := e.record(d)
			if !ok {
				fmt.Fprintf(w, "\t_ %s\n", bytesOf(m))
				continue
			}
			if field := fields.name(typ); field != typ {
				fmt.Fprintf(w, "\t%s %s\n", field, typ)
				continue
			}
			fmt.Fprintf(w, "\t%s\n", typ)

		default:
			fmt.Fprintf(w, "\t_ %s\n", bytesOf(m))
		}
	}
	if pad >= 8 {
		fmt.Fprintf(w, "\t_ [%d]byte\n", pad/8)
	}

	fmt.Fprintf(w, "}\n\n")
}

func (e *emission) writeField(w *bytes.Buffer, fields namer, v *ir.Variable, l ir.Layout) {
	typ := e.goType(v.Type)
	name, named := ir.TargetSimpleName(v)
	if ir.IsSkipped(v) || !named || typ == "" {
		fmt.Fprintf(w, "\t_ %s\n", bytesOf(l))
		return
	}
	fmt.Fprintf(w, "\t%s %s\n", fields.name(toGoName(name)), typ)
}

// writeTypedef declares an alias for a typedef of anything with storage.
func (e *emission) writeTypedef(td *ir.Typedef) {
	name, ok := ir.TargetSimpleName(td)
	if !ok || ir.IsVoid(td.Type) {
		return
	}
	if _, ok := ir.Canonical(td.Type).(*ir.FunctionType); ok {
		return
	}

	target := e.goType(td.Type)
	if target == "" {
		return
	}

	goName := e.globals.name(toGoName(name))
	e.typedefs[td.Name()] = goName
	fmt.Fprintf(&e.aliases, "type %s = %s\n\n", goName, target)
}
