package ir

import "fmt"

// Declaration is the closed set of C declarations: *Constant, *Variable,
// *Function, *Typedef and *Scoped.
type Declaration interface {
	Attributed
	Name() string
	Pos() Position
	isDecl()
}

type declBase struct {
	name  string
	pos   Position
	attrs Attributes
}

func (b *declBase) Name() string       { return b.name }
func (b *declBase) Pos() Position      { return b.pos }
func (b *declBase) Attrs() *Attributes { return &b.attrs }
func (*declBase) isDecl()              {}

// Constant is an enum constant or a resolved macro. Value is an int64,
// uint64, float64 or string.
type Constant struct {
	declBase
	Type  Type
	Value any
}

func NewConstant(pos Position, name string, value any, t Type) *Constant {
	return &Constant{declBase: declBase{name: name, pos: pos}, Type: t, Value: value}
}

type VarKind uint8

const (
	VarGlobal VarKind = iota
	VarField
	VarParameter
	VarBitfield
)

var varKindNames = [...]string{"global", "field", "parameter", "bitfield"}

func (k VarKind) String() string {
	if int(k) < len(varKindNames) {
		return varKindNames[k]
	}
	return fmt.Sprintf("VarKind(%d)", uint8(k))
}

type Variable struct {
	declBase
	Kind  VarKind
	Type  Type
	Width int64
}

func NewVariable(kind VarKind, pos Position, name string, t Type) *Variable {
	return &Variable{declBase: declBase{name: name, pos: pos}, Kind: kind, Type: t}
}

func NewBitfield(pos Position, name string, t Type, width int64) *Variable {
	return &Variable{declBase: declBase{name: name, pos: pos}, Kind: VarBitfield, Type: t, Width: width}
}

type Function struct {
	declBase
	Type   *FunctionType
	Params []*Variable
}

func NewFunction(pos Position, name string, t *FunctionType, params ...*Variable) *Function {
	return &Function{declBase: declBase{name: name, pos: pos}, Type: t, Params: params}
}

type Typedef struct {
	declBase
	Type Type
}

func NewTypedefDecl(pos Position, name string, t Type) *Typedef {
	return &Typedef{declBase: declBase{name: name, pos: pos}, Type: t}
}

type ScopedKind uint8

const (
	ScopedStruct ScopedKind = iota
	ScopedUnion
	ScopedEnum
	ScopedToplevel
	ScopedBitfields
)

var scopedKindNames = [...]string{"struct", "union", "enum", "toplevel", "bitfields"}

func (k ScopedKind) String() string {
	if int(k) < len(scopedKindNames) {
		return scopedKindNames[k]
	}
	return fmt.Sprintf("ScopedKind(%d)", uint8(k))
}

// Scoped is a declaration that owns members: a record, an enum, a group of
// bitfields or the whole translation unit.
type Scoped struct {
	declBase
	Kind    ScopedKind
	Members []Declaration
}

func NewScoped(kind ScopedKind, pos Position, name string, members ...Declaration) *Scoped {
	return &Scoped{declBase: declBase{name: name, pos: pos}, Kind: kind, Members: members}
}

func NewToplevel(pos Position, members ...Declaration) *Scoped {
	return NewScoped(ScopedToplevel, pos, "", members...)
}

// Layout returns the memory layout computed for the declaration, if any.
func (s *Scoped) Layout() (Layout, bool) {
	return LayoutOf(s)
}

// IsRecord reports whether s is a struct or union.
func (s *Scoped) IsRecord() bool {
	return s.Kind == ScopedStruct || s.Kind == ScopedUnion
}

// TypeOf returns the type carried by a declaration, or nil for a Scoped.
func TypeOf(d Declaration) Type {
	switch d := d.(type) {
	case *Constant:
		return d.Type
	case *Variable:
		return d.Type
	case *Function:
		return d.Type
	case *Typedef:
		return d.Type
	}
	return nil
}

// WithMembers returns a declaration of the same kind, name, position and
// attributes as s holding members instead of s's.
func (s *Scoped) WithMembers(members ...Declaration) *Scoped {
	c := NewScoped(s.Kind, s.pos, s.name, members...)
	c.attrs = s.attrs.Copy()
	return c
}
