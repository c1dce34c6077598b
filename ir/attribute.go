package ir

import (
	"fmt"
	"slices"
	"sort"
)

// AttrKind names one slot of an attribute bag.
type AttrKind uint8

const (
	AttrSkip AttrKind = iota + 1
	AttrClangSize
	AttrClangAlign
	AttrClangOffset
	AttrAnonymousStruct
	AttrEnumConstant
	AttrTargetName
	AttrNested
	AttrNestedDecls
	AttrLayout
)

var attrNames = map[AttrKind]string{
	AttrSkip:            "Skip",
	AttrClangSize:       "ClangSize",
	AttrClangAlign:      "ClangAlign",
	AttrClangOffset:     "ClangOffset",
	AttrAnonymousStruct: "AnonymousStruct",
	AttrEnumConstant:    "EnumConstant",
	AttrTargetName:      "TargetName",
	AttrNested:          "Nested",
	AttrNestedDecls:     "NestedDecls",
	AttrLayout:          "Layout",
}

func (k AttrKind) String() string {
	if s, ok := attrNames[k]; ok {
		return s
	}
	return fmt.Sprintf("AttrKind(%d)", uint8(k))
}

// AttributeError reports an attempt to overwrite an attribute with a
// different value.
type AttributeError struct {
	Kind AttrKind
	Old  any
	New  any
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute %s already set to %v, cannot set %v", e.Kind, e.Old, e.New)
}

// Attributes is a bag holding at most one value per AttrKind. The zero value
// is ready to use.
type Attributes struct {
	vals map[AttrKind]any
}

// Attributed is implemented by every declaration and type node.
type Attributed interface {
	Attrs() *Attributes
}

func (a *Attributes) Lookup(kind AttrKind) (any, bool) {
	v, ok := a.vals[kind]
	return v, ok
}

func (a *Attributes) Has(kind AttrKind) bool {
	_, ok := a.vals[kind]
	return ok
}

// Add stores value under kind. Adding a value equal to the stored one is a
// no-op; adding a different one fails.
func (a *Attributes) Add(kind AttrKind, value any) error {
	if old, ok := a.vals[kind]; ok {
		if attrEqual(old, value) {
			return nil
		}
		return &AttributeError{Kind: kind, Old: old, New: value}
	}
	if a.vals == nil {
		a.vals = make(map[AttrKind]any)
	}
	a.vals[kind] = value
	return nil
}

// MustAdd is Add for callers that treat a conflicting value as an internal
// fault.
func (a *Attributes) MustAdd(kind AttrKind, value any) {
	if err := a.Add(kind, value); err != nil {
		panic(err)
	}
}

// Kinds returns the kinds present in the bag in ascending order.
func (a *Attributes) Kinds() []AttrKind {
	kinds := make([]AttrKind, 0, len(a.vals))
	for k := range a.vals {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Copy returns an independent bag with the same entries.
func (a *Attributes) Copy() Attributes {
	var c Attributes
	for k, v := range a.vals {
		c.MustAdd(k, v)
	}
	return c
}

func attrEqual(a, b any) bool {
	switch x := a.(type) {
	case Layout:
		y, ok := b.(Layout)
		return ok && EqualLayouts(x, y)
	case []string:
		y, ok := b.([]string)
		return ok && slices.Equal(x, y)
	case []*Scoped:
		y, ok := b.([]*Scoped)
		return ok && slices.Equal(x, y)
	}
	return a == b
}

// AnonymousStruct marks a record spliced into its parent as an anonymous
// member. Offset is in bytes from the start of the enclosing record.
type AnonymousStruct struct {
	Offset    int64
	HasOffset bool
}

func Skip(n Attributed) {
	n.Attrs().MustAdd(AttrSkip, true)
}

func IsSkipped(n Attributed) bool {
	return n.Attrs().Has(AttrSkip)
}

func SetClangSize(n Attributed, bits int64) {
	n.Attrs().MustAdd(AttrClangSize, bits)
}

func ClangSize(n Attributed) (int64, bool) {
	return int64Attr(n, AttrClangSize)
}

func SetClangAlign(n Attributed, bits int64) {
	n.Attrs().MustAdd(AttrClangAlign, bits)
}

func ClangAlign(n Attributed) (int64, bool) {
	return int64Attr(n, AttrClangAlign)
}

func SetClangOffset(n Attributed, bits int64) {
	n.Attrs().MustAdd(AttrClangOffset, bits)
}

func ClangOffset(n Attributed) (int64, bool) {
	return int64Attr(n, AttrClangOffset)
}

func int64Attr(n Attributed, kind AttrKind) (int64, bool) {
	v, ok := n.Attrs().Lookup(kind)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func SetAnonymousStruct(n Attributed, a AnonymousStruct) {
	n.Attrs().MustAdd(AttrAnonymousStruct, a)
}

func AnonymousStructOf(n Attributed) (AnonymousStruct, bool) {
	v, ok := n.Attrs().Lookup(AttrAnonymousStruct)
	if !ok {
		return AnonymousStruct{}, false
	}
	return v.(AnonymousStruct), true
}

func IsAnonymousStruct(n Attributed) bool {
	return n.Attrs().Has(AttrAnonymousStruct)
}

func SetEnumConstant(n Attributed, enumName string) {
	n.Attrs().MustAdd(AttrEnumConstant, enumName)
}

func EnumConstantOf(n Attributed) (string, bool) {
	v, ok := n.Attrs().Lookup(AttrEnumConstant)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SetTargetName records the qualified target name: the enclosing scope names
// followed by the declaration's own name.
func SetTargetName(n Attributed, path []string) {
	n.Attrs().MustAdd(AttrTargetName, slices.Clone(path))
}

func TargetName(n Attributed) ([]string, bool) {
	v, ok := n.Attrs().Lookup(AttrTargetName)
	if !ok {
		return nil, false
	}
	return v.([]string), true
}

// TargetSimpleName returns the last element of the target name.
func TargetSimpleName(n Attributed) (string, bool) {
	path, ok := TargetName(n)
	if !ok || len(path) == 0 {
		return "", false
	}
	return path[len(path)-1], true
}

func SetNested(n Attributed) {
	n.Attrs().MustAdd(AttrNested, true)
}

func IsNested(n Attributed) bool {
	return n.Attrs().Has(AttrNested)
}

func SetNestedDecls(n Attributed, decls []*Scoped) {
	n.Attrs().MustAdd(AttrNestedDecls, slices.Clone(decls))
}

// NestedDecls returns the unnamed records defined inline by a typedef,
// variable or function declaration.
func NestedDecls(n Attributed) []*Scoped {
	v, ok := n.Attrs().Lookup(AttrNestedDecls)
	if !ok {
		return nil
	}
	return v.([]*Scoped)
}

func SetLayout(n Attributed, l Layout) {
	n.Attrs().MustAdd(AttrLayout, l)
}

func LayoutOf(n Attributed) (Layout, bool) {
	v, ok := n.Attrs().Lookup(AttrLayout)
	if !ok {
		return nil, false
	}
	return v.(Layout), true
}
