package parser

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// recordLayout holds the state shared by the struct and union layout
// computers. Offsets are in bits and measured from the start of parent, the
// outermost record, which is the type clang answers offset queries on.
type recordLayout struct {
	types     *TypeMaker
	log       *zap.Logger
	parent    clang.Type
	typ       clang.Type
	cursor    clang.Cursor
	start     int64
	decls     []ir.Declaration
	layouts   []ir.Layout
	anonCount int
}

// layoutComputer is implemented by structLayout and unionLayout.
type layoutComputer interface {
	startBitfield()
	processField(c clang.Cursor) error
	addDecl(offset int64, d ir.Declaration) error
	addPadding(bits int64)
	finishRecord(layoutName, declName string) (*ir.Scoped, error)
}

// ComputeLayout lays out the struct or union t, found at bit offset
// offsetInParent inside parent, and returns a Declared type for it. A record
// without a definition yields ir.Erroneous.
func (tm *TypeMaker) ComputeLayout(offsetInParent int64, parent, t clang.Type) (ir.Type, error) {
	return computeLayout(tm, offsetInParent, parent, t, "")
}

func computeLayout(tm *TypeMaker, offset int64, parent, t clang.Type, anonName string) (ir.Type, error) {
	decl := t.Declaration()
	if decl == nil {
		return ir.Erroneous, nil
	}
	def := decl.Definition()
	if def == nil {
		return ir.Erroneous, nil
	}

	rl := recordLayout{
		types:  tm,
		log:    tm.tree.log,
		parent: parent,
		typ:    t,
		cursor: def,
		start:  offset,
	}

	var lc layoutComputer
	switch def.Kind() {
	case clang.CursorUnionDecl:
		lc = &unionLayout{recordLayout: &rl}
	default:
		lc = &structLayout{recordLayout: &rl, offset: offset}
	}

	return rl.compute(lc, anonName)
}

func (rl *recordLayout) compute(lc layoutComputer, anonName string) (ir.Type, error) {
	for _, fc := range rl.cursor.Children() {
		if !isFlattenable(fc) {
			continue
		}

		// Unnamed and zero width bitfields only move the offset of the next
		// field; the gap becomes padding.
		if fc.IsBitField() && (fc.BitFieldWidth() == 0 || fc.Spelling() == "") {
			lc.startBitfield()
			continue
		}

		if err := lc.processField(fc); err != nil {
			return nil, err
		}
	}

	declName := rl.cursor.Spelling()
	if rl.cursor.IsAnonymous() {
		declName = ""
	}
	layoutName := declName
	if anonName != "" {
		layoutName = anonName
	}

	s, err := lc.finishRecord(layoutName, declName)
	if err != nil {
		return nil, err
	}

	ir.SetClangSize(s, rl.typ.Size()*8)
	ir.SetClangAlign(s, rl.typ.Align()*8)

	return ir.NewDeclared(s), nil
}

// addField builds the declaration for the field cursor c found at offset
// and hands it to lc. Anonymous members are laid out in place.
func (rl *recordLayout) addField(lc layoutComputer, offset int64, c clang.Cursor) error {
	if c.Kind().IsRecord() && c.IsAnonymousRecord() {
		t, err := computeLayout(rl.types, offset, rl.parent, c.Type(), rl.nextAnonymousName())
		if err != nil {
			return err
		}
		d, ok := t.(*ir.Declared)
		if !ok || ir.IsErroneous(t) {
			return errors.Errorf("anonymous record at %s has no definition", c.Location())
		}

		rel := offset - rl.start
		ir.SetAnonymousStruct(d.Decl, ir.AnonymousStruct{Offset: rel / 8, HasOffset: rel%8 == 0})
		return lc.addDecl(offset, d.Decl)
	}

	d, err := rl.field(offset, c)
	if err != nil {
		return err
	}
	return lc.addDecl(offset, d)
}

func (rl *recordLayout) nextAnonymousName() string {
	name := fmt.Sprintf("$anon$%d", rl.anonCount)
	rl.anonCount++
	return name
}

func (rl *recordLayout) field(offset int64, c clang.Cursor) (*ir.Variable, error) {
	t, err := rl.types.MakeType(c.Type())
	if err != nil {
		return nil, errors.Wrapf(err, "field %s", c.Spelling())
	}

	var v *ir.Variable
	switch {
	case c.IsBitField():
		v = ir.NewBitfield(positionOf(c), c.Spelling(), t, c.BitFieldWidth())
	default:
		v = ir.NewVariable(ir.VarField, positionOf(c), c.Spelling(), t)
	}
	ir.SetClangOffset(v, offset-rl.start)

	return v, nil
}

// appendDecl adds a member declaration and its layout.
func (rl *recordLayout) appendDecl(d ir.Declaration) error {
	rl.decls = append(rl.decls, d)

	var l ir.Layout
	switch d := d.(type) {
	case *ir.Scoped:
		l, _ = d.Layout()
	case *ir.Variable:
		vl, err := rl.types.abi.LayoutOf(d.Type)
		if err != nil {
			return errors.Wrapf(err, "field %s", d.Name())
		}
		l = vl
	}

	if l == nil {
		return nil
	}
	if d.Name() != "" {
		l = ir.WithName(l, d.Name())
	}
	rl.layouts = append(rl.layouts, l)

	return nil
}

func (rl *recordLayout) appendPadding(bits int64) {
	rl.layouts = append(rl.layouts, ir.NewPadding(bits))
}

// bitfieldLayout returns a value layout as wide as the bitfield, carried
// like its declared type.
func (rl *recordLayout) bitfieldLayout(v *ir.Variable) ir.Layout {
	carrier := ir.CarrierInt
	if l, err := rl.types.abi.LayoutOf(v.Type); err == nil {
		if vl, ok := l.(*ir.ValueLayout); ok {
			carrier = vl.Carrier
		}
	}
	return ir.WithName(ir.NewValue(carrier, v.Width, 1), v.Name())
}

// offsetOf returns the offset of a field, or of the first field of an
// anonymous member.
func (rl *recordLayout) offsetOf(c clang.Cursor) (int64, error) {
	if c.Kind() == clang.CursorFieldDecl {
		off := rl.parent.OffsetOf(c.Spelling())
		if off < 0 {
			return 0, errors.Errorf("cannot find offset of %s in %s", c.Spelling(), rl.parent.Spelling())
		}
		return off, nil
	}

	for _, child := range c.Children() {
		if isFlattenable(child) {
			return rl.offsetOf(child)
		}
	}
	return 0, errors.Errorf("cannot find offset of anonymous record at %s in %s", c.Location(), rl.parent.Spelling())
}

func (rl *recordLayout) checkSize(g ir.Layout) error {
	want := rl.typ.Size() * 8
	if g.BitSize() != want {
		return errors.Errorf("unexpected size for layout %s: found %d, expected %d", g, g.BitSize(), want)
	}
	return nil
}

// alignFields lowers the alignment of member layouts to the record's own,
// which only differs for packed records.
func (rl *recordLayout) alignFields() []ir.Layout {
	align := rl.typ.Align() * 8
	out := make([]ir.Layout, len(rl.layouts))
	for i, l := range rl.layouts {
		out[i] = forceAlign(l, align)
	}
	return out
}

func forceAlign(l ir.Layout, align int64) ir.Layout {
	if align >= l.BitAlign() {
		return l
	}

	switch x := l.(type) {
	case *ir.GroupLayout:
		members := make([]ir.Layout, len(x.Members))
		for i, m := range x.Members {
			members[i] = forceAlign(m, align)
		}
		g := ir.NewStructGroup(members...)
		if x.Kind == ir.GroupUnion {
			g = ir.NewUnionGroup(members...)
		}
		return ir.WithName(g, x.Name())

	case *ir.SequenceLayout:
		return ir.WithName(ir.NewSequence(x.Count, forceAlign(x.Elem, align)), x.Name())

	case *ir.ValueLayout:
		c := *x
		c.Align = align
		return &c
	}
	return l
}

func fieldSize(c clang.Cursor) int64 {
	switch {
	case c.Type().Canonical().Kind() == clang.TypeIncompleteArray:
		return 0
	case c.IsBitField():
		return c.BitFieldWidth()
	}
	return c.Type().Size() * 8
}

// isFlattenable reports whether a record child takes storage in the record:
// a field or an anonymous struct or union member.
func isFlattenable(c clang.Cursor) bool {
	return c.Kind() == clang.CursorFieldDecl || (c.Kind().IsRecord() && c.IsAnonymousRecord())
}

func positionOf(c clang.Cursor) ir.Position {
	loc := c.Location()
	if !loc.IsValid() {
		return ir.NoPosition
	}
	return ir.Position{Path: loc.Path, Line: loc.Line, Col: loc.Col}
}
