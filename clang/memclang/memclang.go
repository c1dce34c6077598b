// Package memclang is an in-memory implementation of the clang interfaces
// for tests. Translation units are assembled with a Builder, which lays
// records out with the System V rules. Macro snippets evaluate to the
// results registered with Builder.Evaluates.
package memclang

import (
	"slices"

	"github.com/ardanlabs/cextract/clang"
)

// Type implements clang.Type.
type Type struct {
	kind      clang.TypeKind
	spelling  string
	canonical *Type
	size      int64
	align     int64
	pointee   *Type
	elem      *Type
	count     int64
	result    *Type
	args      []*Type
	variadic  bool
	decl      *Cursor
}

func (t *Type) Kind() clang.TypeKind { return t.kind }
func (t *Type) Spelling() string     { return t.spelling }

func (t *Type) Canonical() clang.Type {
	return t.canonicalType()
}

func (t *Type) canonicalType() *Type {
	if t.canonical == nil {
		return t
	}
	return t.canonical
}

func (t *Type) Equal(o clang.Type) bool {
	ot, ok := o.(*Type)
	return ok && ot == t
}

func (t *Type) Size() int64 {
	if t.canonical != nil {
		return t.canonical.Size()
	}
	return t.size
}

func (t *Type) Align() int64 {
	if t.canonical != nil {
		return t.canonical.Align()
	}
	return t.align
}

func (t *Type) OffsetOf(field string) int64 {
	rec := t.canonicalType()
	if rec.kind != clang.TypeRecord || rec.decl == nil || !rec.decl.isDef {
		return -1
	}
	if off, ok := rec.decl.fieldOffset(field); ok {
		return off
	}
	return -1
}

func (t *Type) Pointee() clang.Type   { return asType(t.pointee) }
func (t *Type) Element() clang.Type   { return asType(t.elem) }
func (t *Type) NumElements() int64    { return t.count }
func (t *Type) Result() clang.Type    { return asType(t.result) }
func (t *Type) IsVariadic() bool      { return t.variadic }
func (t *Type) ValueType() clang.Type { return asType(t.elem) }

func (t *Type) Args() []clang.Type {
	args := make([]clang.Type, len(t.args))
	for i, a := range t.args {
		args[i] = a
	}
	return args
}

func (t *Type) Declaration() clang.Cursor {
	return asCursor(t.decl)
}

func asType(t *Type) clang.Type {
	if t == nil {
		return nil
	}
	return t
}

// Cursor implements clang.Cursor.
type Cursor struct {
	kind         clang.CursorKind
	spelling     string
	typ          *Type
	loc          clang.Location
	children     []*Cursor
	definition   *Cursor
	isDef        bool
	anonymous    bool
	anonRecord   bool
	placed       bool
	bitField     bool
	width        int64
	offset       int64
	enumValue    int64
	enumInt      *Type
	underlying   *Type
	args         []*Cursor
	inlined      bool
	linkage      clang.Linkage
	functionLike bool
	tokens       []string
	eval         clang.EvalResult
}

func (c *Cursor) Kind() clang.CursorKind   { return c.kind }
func (c *Cursor) Spelling() string         { return c.spelling }
func (c *Cursor) Type() clang.Type         { return asType(c.typ) }
func (c *Cursor) Location() clang.Location { return c.loc }
func (c *Cursor) IsDefinition() bool       { return c.isDef }
func (c *Cursor) IsAnonymous() bool        { return c.anonymous }
func (c *Cursor) IsAnonymousRecord() bool  { return c.anonRecord }
func (c *Cursor) IsBitField() bool         { return c.bitField }
func (c *Cursor) BitFieldWidth() int64     { return c.width }
func (c *Cursor) EnumConstantValue() int64 { return c.enumValue }
func (c *Cursor) EnumIntegerType() clang.Type {
	return asType(c.enumInt)
}
func (c *Cursor) TypedefUnderlyingType() clang.Type {
	return asType(c.underlying)
}
func (c *Cursor) IsInlined() bool           { return c.inlined }
func (c *Cursor) Linkage() clang.Linkage    { return c.linkage }
func (c *Cursor) IsFunctionLikeMacro() bool { return c.functionLike }
func (c *Cursor) MacroTokens() []string     { return slices.Clone(c.tokens) }
func (c *Cursor) Evaluate() clang.EvalResult {
	return c.eval
}

func (c *Cursor) Children() []clang.Cursor {
	return asCursors(c.children)
}

func (c *Cursor) Arguments() []clang.Cursor {
	return asCursors(c.args)
}

func (c *Cursor) Definition() clang.Cursor {
	if c.isDef {
		return c
	}
	return asCursor(c.definition)
}

// Static gives a function or variable internal linkage.
func (c *Cursor) Static() *Cursor {
	c.linkage = clang.LinkageInternal
	return c
}

// Inline marks a function as inline.
func (c *Cursor) Inline() *Cursor {
	c.inlined = true
	return c
}

// fieldOffset finds a field by name, descending into anonymous members,
// and returns its bit offset from the start of c.
func (c *Cursor) fieldOffset(name string) (int64, bool) {
	for _, ch := range c.children {
		switch {
		case ch.kind == clang.CursorFieldDecl && ch.spelling == name && name != "":
			return ch.offset, true
		case ch.kind.IsRecord() && ch.anonRecord:
			if off, ok := ch.fieldOffset(name); ok {
				return ch.offset + off, true
			}
		}
	}
	return 0, false
}

func asCursor(c *Cursor) clang.Cursor {
	if c == nil {
		return nil
	}
	return c
}

func asCursors(cs []*Cursor) []clang.Cursor {
	out := make([]clang.Cursor, len(cs))
	for i, c := range cs {
		out[i] = c
	}
	return out
}

// TranslationUnit implements clang.TranslationUnit.
type TranslationUnit struct {
	root     *Cursor
	diags    []clang.Diagnostic
	b        *Builder
	reparses int
}

func (tu *TranslationUnit) Cursor() clang.Cursor { return tu.root }

func (tu *TranslationUnit) Diagnostics() []clang.Diagnostic {
	return slices.Clone(tu.diags)
}

// Reparses returns the number of snippets parsed so far.
func (tu *TranslationUnit) Reparses() int {
	return tu.reparses
}

func (tu *TranslationUnit) Close() error {
	return nil
}

var (
	_ clang.Type            = (*Type)(nil)
	_ clang.Cursor          = (*Cursor)(nil)
	_ clang.TranslationUnit = (*TranslationUnit)(nil)
)
