package parser

import (
	"github.com/pkg/errors"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// unionLayout places every member at the start of the union.
type unionLayout struct {
	*recordLayout
	actualSize int64
}

func (u *unionLayout) startBitfield() {}

func (u *unionLayout) processField(c clang.Cursor) error {
	expected, err := u.offsetOf(c)
	if err != nil {
		return err
	}
	if expected != u.start {
		return errors.Errorf("member %s of union %s is at offset %d", c.Spelling(), u.typ.Spelling(), expected-u.start)
	}

	if err := u.addField(u, u.start, c); err != nil {
		return err
	}
	u.actualSize = max(u.actualSize, fieldSize(c))

	return nil
}

// addDecl gives each bitfield of a union its own group, padded to a whole
// number of bytes.
func (u *unionLayout) addDecl(offset int64, d ir.Declaration) error {
	v, ok := d.(*ir.Variable)
	if !ok || v.Kind != ir.VarBitfield {
		return u.appendDecl(d)
	}

	layouts := []ir.Layout{u.bitfieldLayout(v)}
	if rem := v.Width % 8; rem != 0 {
		layouts = append(layouts, ir.NewPadding(8-rem))
	}

	group := ir.NewScoped(ir.ScopedBitfields, v.Pos(), "", v)
	ir.SetLayout(group, ir.NewStructGroup(layouts...))

	return u.appendDecl(group)
}

func (u *unionLayout) addPadding(bits int64) {
	u.appendPadding(bits)
}

func (u *unionLayout) finishRecord(layoutName, declName string) (*ir.Scoped, error) {
	expected := u.typ.Size() * 8
	switch {
	case u.actualSize < expected:
		u.addPadding(expected)
	case u.actualSize > expected:
		return nil, errors.Errorf("invalid size for union %s: found %d, expected %d", u.typ.Spelling(), u.actualSize, expected)
	}

	g := ir.NewUnionGroup(u.alignFields()...)
	if err := u.checkSize(g); err != nil {
		return nil, err
	}

	decl := ir.NewScoped(ir.ScopedUnion, positionOf(u.cursor), declName, u.decls...)
	ir.SetLayout(decl, ir.WithName(g, layoutName))

	return decl, nil
}
