package ir

import (
	"fmt"
	"strings"
)

// Layout describes the memory shape of a type. Sizes and alignments are in
// bits.
type Layout interface {
	BitSize() int64
	BitAlign() int64
	Name() string
	fmt.Stringer
	isLayout()
}

// Carrier is the kind of scalar a ValueLayout holds.
type Carrier uint8

const (
	CarrierInt Carrier = iota
	CarrierUint
	CarrierFloat
	CarrierAddress
	CarrierBool
)

var carrierLetters = [...]string{"i", "u", "f", "a", "z"}

type ValueLayout struct {
	Carrier Carrier
	Size    int64
	Align   int64
	name    string
}

func NewValue(carrier Carrier, size, align int64) *ValueLayout {
	return &ValueLayout{Carrier: carrier, Size: size, Align: align}
}

func (v *ValueLayout) BitSize() int64  { return v.Size }
func (v *ValueLayout) BitAlign() int64 { return v.Align }
func (v *ValueLayout) Name() string    { return v.name }
func (*ValueLayout) isLayout()         {}

func (v *ValueLayout) String() string {
	return decorate(fmt.Sprintf("%s%d", carrierLetters[v.Carrier], v.Size), v.name)
}

type PaddingLayout struct {
	Size int64
}

func NewPadding(size int64) *PaddingLayout {
	return &PaddingLayout{Size: size}
}

func (p *PaddingLayout) BitSize() int64  { return p.Size }
func (p *PaddingLayout) BitAlign() int64 { return 1 }
func (p *PaddingLayout) Name() string    { return "" }
func (*PaddingLayout) isLayout()         {}

func (p *PaddingLayout) String() string {
	return fmt.Sprintf("x%d", p.Size)
}

type GroupKind uint8

const (
	GroupStruct GroupKind = iota
	GroupUnion
)

type GroupLayout struct {
	Kind    GroupKind
	Members []Layout
	name    string
}

func NewStructGroup(members ...Layout) *GroupLayout {
	return &GroupLayout{Kind: GroupStruct, Members: members}
}

func NewUnionGroup(members ...Layout) *GroupLayout {
	return &GroupLayout{Kind: GroupUnion, Members: members}
}

func (g *GroupLayout) BitSize() int64 {
	var size int64
	for _, m := range g.Members {
		switch g.Kind {
		case GroupStruct:
			size += m.BitSize()
		case GroupUnion:
			size = max(size, m.BitSize())
		}
	}
	return size
}

func (g *GroupLayout) BitAlign() int64 {
	var align int64 = 1
	for _, m := range g.Members {
		align = max(align, m.BitAlign())
	}
	return align
}

func (g *GroupLayout) Name() string { return g.name }
func (*GroupLayout) isLayout()      {}

func (g *GroupLayout) String() string {
	open, sep, closing := "[", "", "]"
	if g.Kind == GroupUnion {
		sep = "|"
	}
	parts := make([]string, len(g.Members))
	for i, m := range g.Members {
		parts[i] = m.String()
	}
	return decorate(open+strings.Join(parts, sep)+closing, g.name)
}

type SequenceLayout struct {
	Count int64
	Elem  Layout
	name  string
}

func NewSequence(count int64, elem Layout) *SequenceLayout {
	return &SequenceLayout{Count: count, Elem: elem}
}

func (s *SequenceLayout) BitSize() int64  { return s.Count * s.Elem.BitSize() }
func (s *SequenceLayout) BitAlign() int64 { return s.Elem.BitAlign() }
func (s *SequenceLayout) Name() string    { return s.name }
func (*SequenceLayout) isLayout()         {}

func (s *SequenceLayout) String() string {
	return decorate(fmt.Sprintf("[%d:%s]", s.Count, s.Elem), s.name)
}

func decorate(s, name string) string {
	if name == "" {
		return s
	}
	return s + "(" + name + ")"
}

// WithName returns a copy of l carrying name. Padding has no name and is
// returned unchanged.
func WithName(l Layout, name string) Layout {
	switch x := l.(type) {
	case *ValueLayout:
		c := *x
		c.name = name
		return &c
	case *GroupLayout:
		c := *x
		c.name = name
		return &c
	case *SequenceLayout:
		c := *x
		c.name = name
		return &c
	}
	return l
}

// EqualLayouts compares two layouts member by member, names included.
func EqualLayouts(a, b Layout) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case *ValueLayout:
		y, ok := b.(*ValueLayout)
		return ok && *x == *y
	case *PaddingLayout:
		y, ok := b.(*PaddingLayout)
		return ok && *x == *y
	case *SequenceLayout:
		y, ok := b.(*SequenceLayout)
		return ok && x.Count == y.Count && x.name == y.name && EqualLayouts(x.Elem, y.Elem)
	case *GroupLayout:
		y, ok := b.(*GroupLayout)
		if !ok || x.Kind != y.Kind || x.name != y.name || len(x.Members) != len(y.Members) {
			return false
		}
		for i := range x.Members {
			if !EqualLayouts(x.Members[i], y.Members[i]) {
				return false
			}
		}
		return true
	}
	return false
}
