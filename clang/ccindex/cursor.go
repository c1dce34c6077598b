package ccindex

import (
	"slices"

	"modernc.org/cc/v4"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// Type implements clang.Type. Sizes are in bytes, -1 when the type has
// none.
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
	params    []string
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

// OffsetOf returns the bit offset of a field, looking through anonymous
// members.
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
func (c *Cursor) IsInlined() bool            { return c.inlined }
func (c *Cursor) Linkage() clang.Linkage     { return c.linkage }
func (c *Cursor) IsFunctionLikeMacro() bool  { return c.functionLike }
func (c *Cursor) MacroTokens() []string      { return slices.Clone(c.tokens) }
func (c *Cursor) Evaluate() clang.EvalResult { return c.eval }

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
	if c.definition != nil && c.definition.isDef {
		return c.definition
	}
	return nil
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

// TranslationUnit implements clang.TranslationUnit. It keeps the sources
// it was translated from so macro snippets can be translated after them.
type TranslationUnit struct {
	abi      ir.ABI
	path     string
	cfg      *cc.Config
	sources  []cc.Source
	root     *Cursor
	diags    []clang.Diagnostic
	reparses int

	types    map[cc.Type]*Type
	prims    map[clang.TypeKind]*Type
	records  map[any]*Cursor
	typedefs map[string]*Cursor
	defs     map[any]clang.Location
	fields   map[fieldKey]clang.Location
	files    map[string]int
}

// fieldKey names a field of the record with the given key.
type fieldKey struct {
	record any
	name   string
}

func newTranslationUnit(abi ir.ABI, path string, cfg *cc.Config, sources []cc.Source) *TranslationUnit {
	return &TranslationUnit{
		abi:      abi,
		path:     path,
		cfg:      cfg,
		sources:  sources,
		root:     &Cursor{kind: clang.CursorTranslationUnit, spelling: path},
		types:    make(map[cc.Type]*Type),
		prims:    make(map[clang.TypeKind]*Type),
		records:  make(map[any]*Cursor),
		typedefs: make(map[string]*Cursor),
		defs:     make(map[any]clang.Location),
		fields:   make(map[fieldKey]clang.Location),
		files:    make(map[string]int),
	}
}

func (tu *TranslationUnit) Cursor() clang.Cursor { return tu.root }

func (tu *TranslationUnit) Diagnostics() []clang.Diagnostic {
	return slices.Clone(tu.diags)
}

// Reparses returns the number of snippets translated so far.
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
