package parser

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// structLayout walks the fields of a struct in order, inserting padding for
// gaps and collecting runs of bitfields into bitfield groups.
type structLayout struct {
	*recordLayout
	offset     int64
	actualSize int64

	inBitfields     bool
	split           bool
	bitfieldDecls   []ir.Declaration
	bitfieldLayouts []ir.Layout
	bitfieldSize    int64
}

// startBitfield is called for unnamed and zero width bitfields. They end
// the current group, or open one so the gap they leave lands inside it.
func (s *structLayout) startBitfield() {
	if s.inBitfields {
		s.split = true
		return
	}
	s.beginBitfields()
}

func (s *structLayout) beginBitfields() {
	if s.inBitfields {
		return
	}
	s.inBitfields = true
	s.bitfieldDecls = nil
	s.bitfieldLayouts = nil
	s.bitfieldSize = 0
}

func (s *structLayout) processField(c clang.Cursor) error {
	expected, err := s.offsetOf(c)
	if err != nil {
		return err
	}

	// A split group ends at the next field's offset. The gap up to it
	// belongs to the group, so a zero width bitfield after a partial byte
	// still closes it.
	if s.split && s.inBitfields {
		if expected > s.offset {
			s.addPadding(expected - s.offset)
			s.actualSize += expected - s.offset
			s.offset = expected
		}
		if s.bitfieldSize%8 == 0 {
			if err := s.handleBitfields(); err != nil {
				return err
			}
		}
	}
	s.split = false

	if s.offset > expected {
		s.log.Warn("ignoring out of order field",
			zap.String("field", c.Spelling()),
			zap.String("struct", s.typ.Spelling()),
			zap.Stringer("pos", positionOf(c)),
		)
		return nil
	}

	if expected > s.offset {
		s.addPadding(expected - s.offset)
		s.actualSize += expected - s.offset
		s.offset = expected
	}

	switch {
	case c.IsBitField():
		s.beginBitfields()
	default:
		if err := s.handleBitfields(); err != nil {
			return err
		}
	}

	if err := s.addField(s, s.offset, c); err != nil {
		return err
	}

	size := fieldSize(c)
	s.offset += size
	s.actualSize += size

	return nil
}

func (s *structLayout) addDecl(offset int64, d ir.Declaration) error {
	if !s.inBitfields {
		return s.appendDecl(d)
	}

	v, ok := d.(*ir.Variable)
	if !ok || v.Kind != ir.VarBitfield {
		return errors.Errorf("%s is not a bitfield", d.Name())
	}
	s.bitfieldDecls = append(s.bitfieldDecls, v)
	s.bitfieldLayouts = append(s.bitfieldLayouts, s.bitfieldLayout(v))
	s.bitfieldSize += v.Width

	return nil
}

func (s *structLayout) addPadding(bits int64) {
	if !s.inBitfields {
		s.appendPadding(bits)
		return
	}
	s.bitfieldLayouts = append(s.bitfieldLayouts, ir.NewPadding(bits))
	s.bitfieldSize += bits
}

// handleBitfields closes the current bitfield group, if any, and adds it to
// the struct. A group holding only padding is spliced into the struct.
func (s *structLayout) handleBitfields() error {
	if !s.inBitfields {
		return nil
	}

	decls, layouts, size := s.bitfieldDecls, s.bitfieldLayouts, s.bitfieldSize
	s.inBitfields = false
	s.split = false
	s.bitfieldDecls = nil
	s.bitfieldLayouts = nil
	s.bitfieldSize = 0

	if size%8 != 0 {
		return errors.Errorf("bitfield group in %s is %d bits, not a whole number of bytes", s.typ.Spelling(), size)
	}

	if len(decls) == 0 {
		s.layouts = append(s.layouts, layouts...)
		return nil
	}

	group := ir.NewScoped(ir.ScopedBitfields, decls[0].Pos(), "", decls...)
	ir.SetLayout(group, ir.NewStructGroup(layouts...))

	return s.appendDecl(group)
}

func (s *structLayout) finishRecord(layoutName, declName string) (*ir.Scoped, error) {
	expected := s.typ.Size() * 8
	if s.actualSize < expected {
		s.addPadding(expected - s.actualSize)
	}

	if err := s.handleBitfields(); err != nil {
		return nil, err
	}

	g := ir.NewStructGroup(s.alignFields()...)
	if err := s.checkSize(g); err != nil {
		return nil, err
	}

	decl := ir.NewScoped(ir.ScopedStruct, positionOf(s.cursor), declName, s.decls...)
	ir.SetLayout(decl, ir.WithName(g, layoutName))

	return decl, nil
}
