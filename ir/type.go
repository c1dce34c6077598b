package ir

import (
	"fmt"
	"strings"
)

// Type is the closed set of C types: *Primitive, *Delegated, *FunctionType,
// *Array and *Declared.
type Type interface {
	Attributed
	fmt.Stringer
	isType()
}

type typeBase struct {
	attrs Attributes
}

func (b *typeBase) Attrs() *Attributes { return &b.attrs }
func (*typeBase) isType()              {}

type PrimitiveKind uint8

const (
	Void PrimitiveKind = iota
	Bool
	Char
	Short
	Int
	Long
	LongLong
	Int128
	Float
	Double
	LongDouble
	Float128
	HalfFloat
	WChar
	Char16
)

var primitiveNames = [...]string{
	Void:       "void",
	Bool:       "bool",
	Char:       "char",
	Short:      "short",
	Int:        "int",
	Long:       "long",
	LongLong:   "long long",
	Int128:     "__int128",
	Float:      "float",
	Double:     "double",
	LongDouble: "long double",
	Float128:   "__float128",
	HalfFloat:  "_Float16",
	WChar:      "wchar_t",
	Char16:     "char16_t",
}

func (k PrimitiveKind) String() string {
	if int(k) < len(primitiveNames) {
		return primitiveNames[k]
	}
	return fmt.Sprintf("PrimitiveKind(%d)", uint8(k))
}

type Primitive struct {
	typeBase
	Kind PrimitiveKind
}

func NewPrimitive(kind PrimitiveKind) *Primitive {
	return &Primitive{Kind: kind}
}

func (p *Primitive) String() string {
	return p.Kind.String()
}

type DelegatedKind uint8

const (
	DelegatedTypedef DelegatedKind = iota
	DelegatedPointer
	DelegatedUnsigned
	DelegatedSigned
	DelegatedVolatile
	DelegatedComplex
	DelegatedAtomic
)

var delegatedNames = [...]string{
	DelegatedTypedef:  "typedef",
	DelegatedPointer:  "pointer",
	DelegatedUnsigned: "unsigned",
	DelegatedSigned:   "signed",
	DelegatedVolatile: "volatile",
	DelegatedComplex:  "_Complex",
	DelegatedAtomic:   "_Atomic",
}

func (k DelegatedKind) String() string {
	if int(k) < len(delegatedNames) {
		return delegatedNames[k]
	}
	return fmt.Sprintf("DelegatedKind(%d)", uint8(k))
}

// TypeRef is a cell holding a type that may be filled in after the cell is
// handed out. Pointers to records use it so a record can point to itself.
type TypeRef struct {
	t Type
}

// Resolved returns a cell already holding t.
func Resolved(t Type) *TypeRef {
	return &TypeRef{t: t}
}

func (r *TypeRef) Resolve(t Type) {
	if r.t != nil && r.t != t {
		panic("ir: type reference resolved twice")
	}
	r.t = t
}

func (r *TypeRef) IsResolved() bool {
	return r.t != nil
}

// Get returns the referenced type, or nil while unresolved.
func (r *TypeRef) Get() Type {
	return r.t
}

// Delegated wraps another type with a typedef name, a pointer or a
// qualifier.
type Delegated struct {
	typeBase
	Kind DelegatedKind
	Name string
	ref  *TypeRef
}

func NewTypedef(name string, t Type) *Delegated {
	return &Delegated{Kind: DelegatedTypedef, Name: name, ref: Resolved(t)}
}

func NewPointer(t Type) *Delegated {
	return &Delegated{Kind: DelegatedPointer, ref: Resolved(t)}
}

// NewLazyPointer returns a pointer whose pointee is read from ref on demand.
func NewLazyPointer(ref *TypeRef) *Delegated {
	return &Delegated{Kind: DelegatedPointer, ref: ref}
}

func NewQualified(kind DelegatedKind, t Type) *Delegated {
	return &Delegated{Kind: kind, ref: Resolved(t)}
}

// Type returns the wrapped type. It is nil only for a lazy pointer that has
// not been resolved yet.
func (d *Delegated) Type() Type {
	return d.ref.Get()
}

func (d *Delegated) String() string {
	switch d.Kind {
	case DelegatedTypedef:
		return d.Name
	case DelegatedPointer:
		inner := d.Type()
		if inner == nil {
			return "<unresolved>*"
		}
		if decl, ok := inner.(*Declared); ok {
			return decl.String() + "*"
		}
		return inner.String() + "*"
	}
	return d.Kind.String() + " " + stringOf(d.Type())
}

type FunctionType struct {
	typeBase
	Varargs    bool
	Args       []Type
	Return     Type
	ParamNames []string
}

func NewFunctionType(varargs bool, ret Type, args ...Type) *FunctionType {
	return &FunctionType{Varargs: varargs, Args: args, Return: ret}
}

// WithParamNames returns a copy of f carrying parameter names.
func (f *FunctionType) WithParamNames(names []string) *FunctionType {
	return &FunctionType{Varargs: f.Varargs, Args: f.Args, Return: f.Return, ParamNames: names}
}

func (f *FunctionType) String() string {
	args := make([]string, 0, len(f.Args)+1)
	for _, a := range f.Args {
		args = append(args, stringOf(a))
	}
	if f.Varargs {
		args = append(args, "...")
	}
	return fmt.Sprintf("%s(%s)", stringOf(f.Return), strings.Join(args, ","))
}

type ArrayKind uint8

const (
	ArrayPlain ArrayKind = iota
	ArrayVector
)

type Array struct {
	typeBase
	Kind     ArrayKind
	Elem     Type
	Count    int64
	HasCount bool
}

func NewArray(elem Type, count int64) *Array {
	return &Array{Kind: ArrayPlain, Elem: elem, Count: count, HasCount: true}
}

// NewIncompleteArray returns an array without element count, the type of a
// flexible array member.
func NewIncompleteArray(elem Type) *Array {
	return &Array{Kind: ArrayPlain, Elem: elem}
}

func NewVector(elem Type, count int64) *Array {
	return &Array{Kind: ArrayVector, Elem: elem, Count: count, HasCount: true}
}

func (a *Array) String() string {
	if !a.HasCount {
		return stringOf(a.Elem) + "[]"
	}
	if a.Kind == ArrayVector {
		return fmt.Sprintf("vector<%s,%d>", stringOf(a.Elem), a.Count)
	}
	return fmt.Sprintf("%s[%d]", stringOf(a.Elem), a.Count)
}

// Declared refers to a struct, union or enum declaration. The declaration is
// shared by every type that names it.
type Declared struct {
	typeBase
	Decl *Scoped
}

func NewDeclared(decl *Scoped) *Declared {
	return &Declared{Decl: decl}
}

func (d *Declared) String() string {
	name := d.Decl.Name()
	if name == "" {
		name = "<anonymous>"
	}
	return d.Decl.Kind.String() + " " + name
}

// Erroneous stands in for a record whose definition could not be resolved.
// Consumers must not emit anything that refers to it.
var Erroneous Type = newErroneous()

func newErroneous() *Declared {
	s := NewScoped(ScopedStruct, NoPosition, "")
	SetLayout(s, NewPadding(0))
	return NewDeclared(s)
}

func IsErroneous(t Type) bool {
	return t == Erroneous
}

func stringOf(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// Canonical strips typedefs, returning the first non-typedef type.
func Canonical(t Type) Type {
	for {
		d, ok := t.(*Delegated)
		if !ok || d.Kind != DelegatedTypedef {
			return t
		}
		t = d.Type()
	}
}

// FunctionPointee returns the function type a pointer type points to,
// looking through typedefs on both sides.
func FunctionPointee(t Type) (*FunctionType, bool) {
	d, ok := Canonical(t).(*Delegated)
	if !ok || d.Kind != DelegatedPointer {
		return nil, false
	}
	pointee := d.Type()
	if pointee == nil {
		return nil, false
	}
	fn, ok := Canonical(pointee).(*FunctionType)
	return fn, ok
}

// DeclaredRecord returns the struct or union a type names by value, looking
// through typedefs and qualifiers but not pointers.
func DeclaredRecord(t Type) (*Scoped, bool) {
	for {
		switch x := t.(type) {
		case *Declared:
			if x.Decl.Kind == ScopedStruct || x.Decl.Kind == ScopedUnion {
				return x.Decl, true
			}
			return nil, false
		case *Delegated:
			if x.Kind == DelegatedPointer {
				return nil, false
			}
			t = x.Type()
		default:
			return nil, false
		}
	}
}
