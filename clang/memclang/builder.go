package memclang

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// Member is a member of a record under construction.
type Member struct {
	name     string
	typ      *Type
	width    int64
	bitField bool
	anon     *Type
}

// Field declares a named member.
func Field(name string, t *Type) Member {
	return Member{name: name, typ: t}
}

// Bitfield declares a bit-field member. An empty name declares an unnamed
// bit-field.
func Bitfield(name string, t *Type, width int64) Member {
	return Member{name: name, typ: t, width: width, bitField: true}
}

// Anonymous declares an anonymous struct or union member, built with
// Builder.AnonymousStruct or Builder.AnonymousUnion.
func Anonymous(record *Type) Member {
	return Member{anon: record}
}

// Param is a function parameter.
type Param struct {
	Name string
	Type *Type
}

// EnumConst is an enumerator.
type EnumConst struct {
	Name  string
	Value int64
}

// Builder assembles a translation unit declaration by declaration. Every
// declaration is placed on its own line of the header.
type Builder struct {
	abi     ir.ABI
	path    string
	line    int
	root    *Cursor
	prims   map[clang.TypeKind]*Type
	diags   []clang.Diagnostic
	results map[string]evalResult
}

func NewBuilder(path string, abi ir.ABI) *Builder {
	return &Builder{
		abi:     abi,
		path:    path,
		root:    &Cursor{kind: clang.CursorTranslationUnit, spelling: path},
		prims:   make(map[clang.TypeKind]*Type),
		results: make(map[string]evalResult),
	}
}

// Build returns the translation unit. The builder must not be used after.
func (b *Builder) Build() *TranslationUnit {
	return &TranslationUnit{root: b.root, diags: b.diags, b: b}
}

func (b *Builder) nextLoc() clang.Location {
	b.line++
	return clang.Location{Path: b.path, Line: b.line, Col: 1}
}

func (b *Builder) add(c *Cursor) {
	b.root.children = append(b.root.children, c)
}

// Diagnostic records a parser diagnostic on the current line.
func (b *Builder) Diagnostic(sev clang.Severity, msg string) {
	b.diags = append(b.diags, clang.Diagnostic{
		Severity: sev,
		Message:  msg,
		Location: clang.Location{Path: b.path, Line: b.line, Col: 1},
	})
}

var primSpellings = map[clang.TypeKind]string{
	clang.TypeVoid: "void", clang.TypeBool: "_Bool",
	clang.TypeCharS: "char", clang.TypeCharU: "char",
	clang.TypeSChar: "signed char", clang.TypeUChar: "unsigned char",
	clang.TypeShort: "short", clang.TypeUShort: "unsigned short",
	clang.TypeInt: "int", clang.TypeUInt: "unsigned int",
	clang.TypeLong: "long", clang.TypeULong: "unsigned long",
	clang.TypeLongLong: "long long", clang.TypeULongLong: "unsigned long long",
	clang.TypeInt128: "__int128", clang.TypeUInt128: "unsigned __int128",
	clang.TypeFloat: "float", clang.TypeDouble: "double",
	clang.TypeLongDouble: "long double", clang.TypeFloat128: "__float128",
	clang.TypeHalf: "_Float16", clang.TypeWChar: "wchar_t",
	clang.TypeChar16: "char16_t", clang.TypeChar32: "char32_t",
}

// Prim returns the builtin type of the given kind.
func (b *Builder) Prim(kind clang.TypeKind) *Type {
	if t, ok := b.prims[kind]; ok {
		return t
	}
	spelling, ok := primSpellings[kind]
	if !ok {
		panic(fmt.Sprintf("memclang: %s is not a builtin type", kind))
	}
	size, align := b.primSize(kind)
	t := &Type{kind: kind, spelling: spelling, size: size, align: align}
	b.prims[kind] = t
	return t
}

func (b *Builder) primSize(kind clang.TypeKind) (int64, int64) {
	switch kind {
	case clang.TypeVoid:
		return -1, -1
	case clang.TypeBool, clang.TypeCharS, clang.TypeCharU, clang.TypeSChar, clang.TypeUChar:
		return 1, 1
	case clang.TypeShort, clang.TypeUShort, clang.TypeHalf, clang.TypeChar16:
		return 2, 2
	case clang.TypeInt, clang.TypeUInt, clang.TypeFloat, clang.TypeChar32:
		return 4, 4
	case clang.TypeLong, clang.TypeULong:
		return b.abi.LongSize / 8, b.abi.LongSize / 8
	case clang.TypeLongLong, clang.TypeULongLong, clang.TypeDouble:
		return 8, 8
	case clang.TypeInt128, clang.TypeUInt128, clang.TypeFloat128:
		return 16, 16
	case clang.TypeLongDouble:
		return b.abi.LongDoubleSize / 8, b.abi.LongDoubleAlign / 8
	case clang.TypeWChar:
		return b.abi.WCharSize / 8, b.abi.WCharSize / 8
	}
	return -1, -1
}

func (b *Builder) Void() *Type { return b.Prim(clang.TypeVoid) }
func (b *Builder) Int() *Type  { return b.Prim(clang.TypeInt) }
func (b *Builder) UInt() *Type { return b.Prim(clang.TypeUInt) }
func (b *Builder) Long() *Type { return b.Prim(clang.TypeLong) }

// Char returns plain char, signed or not depending on the ABI.
func (b *Builder) Char() *Type {
	if b.abi.CharSigned {
		return b.Prim(clang.TypeCharS)
	}
	return b.Prim(clang.TypeCharU)
}

func (b *Builder) Pointer(t *Type) *Type {
	ptr := b.abi.PointerSize / 8
	return &Type{kind: clang.TypePointer, spelling: t.spelling + " *", size: ptr, align: ptr, pointee: t}
}

func (b *Builder) Array(t *Type, n int64) *Type {
	return &Type{
		kind:     clang.TypeConstantArray,
		spelling: fmt.Sprintf("%s[%d]", t.spelling, n),
		size:     t.size * n,
		align:    t.align,
		elem:     t,
		count:    n,
	}
}

func (b *Builder) IncompleteArray(t *Type) *Type {
	return &Type{kind: clang.TypeIncompleteArray, spelling: t.spelling + "[]", size: -1, align: t.align, elem: t}
}

func (b *Builder) Complex(t *Type) *Type {
	return &Type{kind: clang.TypeComplex, spelling: "_Complex " + t.spelling, size: 2 * t.size, align: t.align, elem: t}
}

func (b *Builder) Atomic(t *Type) *Type {
	return &Type{kind: clang.TypeAtomic, spelling: "_Atomic(" + t.spelling + ")", size: t.size, align: t.align, elem: t}
}

// FuncProto returns a function prototype type.
func (b *Builder) FuncProto(ret *Type, variadic bool, args ...*Type) *Type {
	spelling := ret.spelling + " ("
	for i, a := range args {
		if i > 0 {
			spelling += ", "
		}
		spelling += a.spelling
	}
	if variadic {
		spelling += ", ..."
	}
	spelling += ")"
	return &Type{kind: clang.TypeFunctionProto, spelling: spelling, size: -1, align: -1, result: ret, args: args, variadic: variadic}
}

// Elaborated wraps t the way a "struct Foo" spelling does.
func (b *Builder) Elaborated(t *Type) *Type {
	return &Type{kind: clang.TypeElaborated, spelling: t.spelling, canonical: t.canonicalType(), size: t.size, align: t.align, decl: t.decl}
}

// Typedef declares a typedef and returns its type.
func (b *Builder) Typedef(name string, t *Type) *Type {
	if d := b.unplaced(t); d != nil {
		b.add(d)
	}
	c := &Cursor{kind: clang.CursorTypedefDecl, spelling: name, loc: b.nextLoc(), isDef: true, underlying: t}
	td := &Type{
		kind:      clang.TypeTypedef,
		spelling:  name,
		canonical: t.canonicalType(),
		size:      t.size,
		align:     t.align,
		decl:      c,
	}
	c.typ = td
	fn := t
	if fn.kind == clang.TypePointer && fn.pointee.kind == clang.TypeFunctionProto {
		fn = fn.pointee
	}
	if fn.kind == clang.TypeFunctionProto {
		for _, a := range fn.args {
			c.children = append(c.children, &Cursor{kind: clang.CursorParmDecl, typ: a, loc: c.loc})
		}
	}
	b.add(c)
	return td
}

// TypedefParams declares a function typedef with named parameters.
func (b *Builder) TypedefParams(name string, ret *Type, variadic bool, params ...Param) *Type {
	args := make([]*Type, len(params))
	for i, p := range params {
		args[i] = p.Type
	}
	td := b.Typedef(name, b.FuncProto(ret, variadic, args...))
	c := td.decl
	for i, p := range params {
		c.children[i].spelling = p.Name
	}
	return td
}

// DeclareStruct adds a forward declaration of a struct. The returned type is
// incomplete until passed to Define.
func (b *Builder) DeclareStruct(name string) *Type {
	return b.declareRecord(clang.CursorStructDecl, name)
}

// DeclareUnion adds a forward declaration of a union.
func (b *Builder) DeclareUnion(name string) *Type {
	return b.declareRecord(clang.CursorUnionDecl, name)
}

func (b *Builder) declareRecord(kind clang.CursorKind, name string) *Type {
	c := &Cursor{kind: kind, spelling: name, loc: b.nextLoc()}
	t := b.recordType(c)
	c.typ = t
	b.add(c)
	return t
}

func (b *Builder) recordType(c *Cursor) *Type {
	keyword := "struct "
	if c.kind == clang.CursorUnionDecl {
		keyword = "union "
	}
	spelling := keyword + c.spelling
	if c.spelling == "" {
		spelling = keyword + "(anonymous at " + c.loc.String() + ")"
	}
	return &Type{kind: clang.TypeRecord, spelling: spelling, size: -1, align: -1, decl: c}
}

// Define completes a forward declared record.
func (b *Builder) Define(t *Type, members ...Member) {
	fwd := t.decl
	def := &Cursor{kind: fwd.kind, spelling: fwd.spelling, typ: t, loc: b.nextLoc(), isDef: true}
	b.defineRecord(def, members)
	fwd.definition = def
	t.decl = def
	b.add(def)
}

// Struct declares and defines a struct.
func (b *Builder) Struct(name string, members ...Member) *Type {
	return b.record(clang.CursorStructDecl, name, members, true)
}

// Union declares and defines a union.
func (b *Builder) Union(name string, members ...Member) *Type {
	return b.record(clang.CursorUnionDecl, name, members, true)
}

// UnnamedStruct defines a struct without a tag, for use as the type of a
// field, variable or typedef. Its definition appears where it is first used.
func (b *Builder) UnnamedStruct(members ...Member) *Type {
	t := b.record(clang.CursorStructDecl, "", members, false)
	t.decl.anonymous = true
	return t
}

// UnnamedUnion is the union counterpart of UnnamedStruct.
func (b *Builder) UnnamedUnion(members ...Member) *Type {
	t := b.record(clang.CursorUnionDecl, "", members, false)
	t.decl.anonymous = true
	return t
}

// AnonymousStruct defines a struct for use with Anonymous.
func (b *Builder) AnonymousStruct(members ...Member) *Type {
	t := b.record(clang.CursorStructDecl, "", members, false)
	t.decl.anonymous = true
	t.decl.anonRecord = true
	return t
}

// AnonymousUnion defines a union for use with Anonymous.
func (b *Builder) AnonymousUnion(members ...Member) *Type {
	t := b.record(clang.CursorUnionDecl, "", members, false)
	t.decl.anonymous = true
	t.decl.anonRecord = true
	return t
}

func (b *Builder) record(kind clang.CursorKind, name string, members []Member, toplevel bool) *Type {
	c := &Cursor{kind: kind, spelling: name, loc: b.nextLoc(), isDef: true}
	t := b.recordType(c)
	c.typ = t
	b.defineRecord(c, members)
	if toplevel {
		b.add(c)
	}
	return t
}

func (b *Builder) defineRecord(c *Cursor, members []Member) {
	for _, m := range members {
		switch {
		case m.anon != nil:
			c.children = append(c.children, m.anon.decl)
		default:
			if d := b.unplaced(m.typ); d != nil {
				c.children = append(c.children, d)
			}
			c.children = append(c.children, &Cursor{
				kind:     clang.CursorFieldDecl,
				spelling: m.name,
				typ:      m.typ,
				loc:      b.nextLoc(),
				bitField: m.bitField,
				width:    m.width,
			})
		}
	}

	size, align := layoutRecord(c)
	c.typ.size = size
	c.typ.align = align
}

// unplaced returns the definition of an unnamed record used by t that does
// not appear in any parent yet, and marks it placed.
func (b *Builder) unplaced(t *Type) *Cursor {
	for t.kind == clang.TypePointer || t.kind == clang.TypeConstantArray || t.kind == clang.TypeIncompleteArray {
		if t.pointee != nil {
			t = t.pointee
		} else {
			t = t.elem
		}
	}
	d := t.canonicalType().decl
	if d == nil || !d.anonymous || d.anonRecord || d.placed || d.kind == clang.CursorEnumDecl {
		return nil
	}
	d.placed = true
	return d
}

// Enum declares an enum and returns its type.
func (b *Builder) Enum(name string, consts ...EnumConst) *Type {
	intType := b.Prim(clang.TypeUInt)
	for _, e := range consts {
		if e.Value < 0 {
			intType = b.Prim(clang.TypeInt)
		}
	}

	c := &Cursor{kind: clang.CursorEnumDecl, spelling: name, loc: b.nextLoc(), isDef: true, enumInt: intType, anonymous: name == ""}
	spelling := "enum " + name
	if name == "" {
		spelling = "enum (anonymous at " + c.loc.String() + ")"
	}
	t := &Type{kind: clang.TypeEnum, spelling: spelling, size: intType.size, align: intType.align, decl: c}
	c.typ = t

	for _, e := range consts {
		ec := &Cursor{kind: clang.CursorEnumConstantDecl, spelling: e.Name, typ: t, loc: b.nextLoc(), enumValue: e.Value}
		c.children = append(c.children, ec)
	}
	b.add(c)
	return t
}

// Function declares a function.
func (b *Builder) Function(name string, ret *Type, params ...Param) *Cursor {
	return b.function(name, ret, false, params)
}

// VariadicFunction declares a function taking a variable argument list.
func (b *Builder) VariadicFunction(name string, ret *Type, params ...Param) *Cursor {
	return b.function(name, ret, true, params)
}

func (b *Builder) function(name string, ret *Type, variadic bool, params []Param) *Cursor {
	args := make([]*Type, len(params))
	for i, p := range params {
		args[i] = p.Type
	}
	c := &Cursor{
		kind:     clang.CursorFunctionDecl,
		spelling: name,
		typ:      b.FuncProto(ret, variadic, args...),
		loc:      b.nextLoc(),
		linkage:  clang.LinkageExternal,
	}
	for _, p := range params {
		pc := &Cursor{kind: clang.CursorParmDecl, spelling: p.Name, typ: p.Type, loc: c.loc}
		c.args = append(c.args, pc)
		c.children = append(c.children, pc)
	}
	b.add(c)
	return c
}

// Var declares a global variable.
func (b *Builder) Var(name string, t *Type) *Cursor {
	if d := b.unplaced(t); d != nil {
		b.add(d)
	}
	c := &Cursor{kind: clang.CursorVarDecl, spelling: name, typ: t, loc: b.nextLoc(), linkage: clang.LinkageExternal}
	b.add(c)
	return c
}

// Macro defines an object-like macro. The body is split into tokens at
// white space.
func (b *Builder) Macro(name, body string) *Cursor {
	return b.macro(name, body, false, b.nextLoc())
}

// FunctionMacro defines a function-like macro.
func (b *Builder) FunctionMacro(name, body string) *Cursor {
	return b.macro(name, body, true, b.nextLoc())
}

// BuiltinMacro defines a macro that has no location in the header.
func (b *Builder) BuiltinMacro(name, body string) *Cursor {
	return b.macro(name, body, false, clang.Location{})
}

func (b *Builder) macro(name, body string, functionLike bool, loc clang.Location) *Cursor {
	tokens := append([]string{name}, strings.Fields(body)...)
	c := &Cursor{kind: clang.CursorMacroDefinition, spelling: name, loc: loc, functionLike: functionLike, tokens: tokens}
	b.add(c)
	return c
}
