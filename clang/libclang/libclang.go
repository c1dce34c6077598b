//go:build libclang

// Package libclang implements the clang interfaces on top of libclang. It
// is only built with the libclang tag and needs the libclang shared library
// at run time.
package libclang

import (
	"fmt"
	"path/filepath"

	lc "github.com/go-clang/clang-v13/clang"

	"github.com/ardanlabs/cextract/clang"
)

const reparsePath = "cextract$macros.h"

// Index parses headers with libclang. The detailed preprocessing record is
// always requested so macro definitions show up as cursors.
type Index struct {
	idx lc.Index
}

func NewIndex() *Index {
	return &Index{idx: lc.NewIndex(0, 0)}
}

func (ix *Index) Parse(path string, args []string) (clang.TranslationUnit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	var tu lc.TranslationUnit
	opts := uint32(lc.TranslationUnit_DetailedPreprocessingRecord)
	if code := ix.idx.ParseTranslationUnit2(abs, args, nil, opts, &tu); code != lc.Error_Success {
		return nil, fmt.Errorf("parsing %s: %v", path, code)
	}

	return &TranslationUnit{ix: ix, tu: tu, path: abs, args: args}, nil
}

func (ix *Index) Close() error {
	ix.idx.Dispose()
	return nil
}

var _ clang.Index = (*Index)(nil)

// TranslationUnit is a parsed header. Units created by Reparse are kept
// alive until Close so their cursors stay valid.
type TranslationUnit struct {
	ix       *Index
	tu       lc.TranslationUnit
	path     string
	args     []string
	reparsed []lc.TranslationUnit
}

func (tu *TranslationUnit) Cursor() clang.Cursor {
	return wrapCursor(tu.tu, tu.tu.TranslationUnitCursor())
}

func (tu *TranslationUnit) Diagnostics() []clang.Diagnostic {
	var out []clang.Diagnostic
	for _, d := range tu.tu.Diagnostics() {
		out = append(out, clang.Diagnostic{
			Severity: severity(d.Severity()),
			Message:  d.Spelling(),
			Location: location(d.Location()),
		})
		d.Dispose()
	}
	return out
}

// Reparse parses a header that includes the unit and then holds snippet.
func (tu *TranslationUnit) Reparse(snippet string) ([]clang.Cursor, error) {
	src := fmt.Sprintf("#include <stdint.h>\n#include %q\n%s", tu.path, snippet)
	path := filepath.Join(filepath.Dir(tu.path), reparsePath)

	var out lc.TranslationUnit
	unsaved := []lc.UnsavedFile{lc.NewUnsavedFile(path, src)}
	if code := tu.ix.idx.ParseTranslationUnit2(path, tu.args, unsaved, 0, &out); code != lc.Error_Success {
		return nil, fmt.Errorf("reparsing macros: %v", code)
	}
	tu.reparsed = append(tu.reparsed, out)

	var cursors []clang.Cursor
	for _, c := range children(out, out.TranslationUnitCursor()) {
		if loc := c.Location(); loc.Path == path {
			cursors = append(cursors, c)
		}
	}

	return cursors, nil
}

func (tu *TranslationUnit) Close() error {
	for _, r := range tu.reparsed {
		r.Dispose()
	}
	tu.tu.Dispose()
	return nil
}

var _ clang.TranslationUnit = (*TranslationUnit)(nil)

// Cursor wraps a libclang cursor with the unit it belongs to, which is
// needed to tokenize macro definitions.
type Cursor struct {
	tu lc.TranslationUnit
	c  lc.Cursor
}

func wrapCursor(tu lc.TranslationUnit, c lc.Cursor) clang.Cursor {
	if c.IsNull() {
		return nil
	}
	return &Cursor{tu: tu, c: c}
}

func children(tu lc.TranslationUnit, parent lc.Cursor) []clang.Cursor {
	var out []clang.Cursor
	parent.Visit(func(c, _ lc.Cursor) lc.ChildVisitResult {
		out = append(out, &Cursor{tu: tu, c: c})
		return lc.ChildVisit_Continue
	})
	return out
}

func (c *Cursor) Kind() clang.CursorKind {
	switch c.c.Kind() {
	case lc.Cursor_TranslationUnit:
		return clang.CursorTranslationUnit
	case lc.Cursor_StructDecl:
		return clang.CursorStructDecl
	case lc.Cursor_UnionDecl:
		return clang.CursorUnionDecl
	case lc.Cursor_EnumDecl:
		return clang.CursorEnumDecl
	case lc.Cursor_FieldDecl:
		return clang.CursorFieldDecl
	case lc.Cursor_EnumConstantDecl:
		return clang.CursorEnumConstantDecl
	case lc.Cursor_FunctionDecl:
		return clang.CursorFunctionDecl
	case lc.Cursor_VarDecl:
		return clang.CursorVarDecl
	case lc.Cursor_ParmDecl:
		return clang.CursorParmDecl
	case lc.Cursor_TypedefDecl:
		return clang.CursorTypedefDecl
	case lc.Cursor_MacroDefinition:
		return clang.CursorMacroDefinition
	}
	return clang.CursorUnexposed
}

func (c *Cursor) Spelling() string          { return c.c.Spelling() }
func (c *Cursor) Type() clang.Type          { return wrapType(c.tu, c.c.Type()) }
func (c *Cursor) Location() clang.Location  { return location(c.c.Location()) }
func (c *Cursor) Children() []clang.Cursor  { return children(c.tu, c.c) }
func (c *Cursor) IsDefinition() bool        { return c.c.IsCursorDefinition() }
func (c *Cursor) Definition() clang.Cursor  { return wrapCursor(c.tu, c.c.Definition()) }
func (c *Cursor) IsAnonymous() bool         { return c.c.IsAnonymous() }
func (c *Cursor) IsAnonymousRecord() bool   { return c.c.IsAnonymousRecordDecl() }
func (c *Cursor) IsBitField() bool          { return c.c.IsBitField() }
func (c *Cursor) BitFieldWidth() int64      { return int64(c.c.FieldDeclBitWidth()) }
func (c *Cursor) EnumConstantValue() int64  { return c.c.EnumConstantDeclValue() }
func (c *Cursor) IsInlined() bool           { return c.c.IsFunctionInlined() }
func (c *Cursor) IsFunctionLikeMacro() bool { return c.c.IsMacroFunctionLike() }

func (c *Cursor) EnumIntegerType() clang.Type {
	return wrapType(c.tu, c.c.EnumDeclIntegerType())
}

func (c *Cursor) TypedefUnderlyingType() clang.Type {
	return wrapType(c.tu, c.c.TypedefDeclUnderlyingType())
}

func (c *Cursor) Arguments() []clang.Cursor {
	n := c.c.NumArguments()
	out := make([]clang.Cursor, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		out = append(out, &Cursor{tu: c.tu, c: c.c.Argument(uint32(i))})
	}
	return out
}

func (c *Cursor) Linkage() clang.Linkage {
	switch c.c.Linkage() {
	case lc.Linkage_NoLinkage:
		return clang.LinkageNone
	case lc.Linkage_Internal:
		return clang.LinkageInternal
	case lc.Linkage_UniqueExternal:
		return clang.LinkageUniqueExternal
	case lc.Linkage_External:
		return clang.LinkageExternal
	}
	return clang.LinkageInvalid
}

func (c *Cursor) MacroTokens() []string {
	toks := c.tu.Tokenize(c.c.Extent())
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, c.tu.TokenSpelling(t))
	}
	return out
}

func (c *Cursor) Evaluate() clang.EvalResult {
	r := c.c.Evaluate()
	defer r.Dispose()

	switch r.Kind() {
	case lc.Eval_Int:
		if r.IsUnsignedInt() {
			return clang.EvalResult{Kind: clang.EvalInt, Int: int64(r.AsUnsigned()), Unsigned: true}
		}
		return clang.EvalResult{Kind: clang.EvalInt, Int: r.AsLongLong()}
	case lc.Eval_Float:
		return clang.EvalResult{Kind: clang.EvalFloat, Float: r.AsDouble()}
	case lc.Eval_StrLiteral:
		return clang.EvalResult{Kind: clang.EvalStrLiteral, Str: r.AsStr()}
	case lc.Eval_UnExposed:
		return clang.EvalResult{Kind: clang.EvalFailed}
	}
	return clang.EvalResult{Kind: clang.EvalOther}
}

var _ clang.Cursor = (*Cursor)(nil)

// Type wraps a libclang type. It is a comparable value so it can key the
// type cache of the parser.
type Type struct {
	tu lc.TranslationUnit
	t  lc.Type
}

func wrapType(tu lc.TranslationUnit, t lc.Type) clang.Type {
	if t.Kind() == lc.Type_Invalid {
		return nil
	}
	return Type{tu: tu, t: t}
}

func (t Type) Kind() clang.TypeKind {
	if k, ok := typeKinds[t.t.Kind()]; ok {
		return k
	}
	return clang.TypeUnexposed
}

func (t Type) Spelling() string        { return t.t.Spelling() }
func (t Type) Canonical() clang.Type   { return wrapType(t.tu, t.t.CanonicalType()) }
func (t Type) Size() int64             { return t.t.SizeOf() }
func (t Type) Align() int64            { return t.t.AlignOf() }
func (t Type) OffsetOf(f string) int64 { return t.t.OffsetOf(f) }
func (t Type) Pointee() clang.Type     { return wrapType(t.tu, t.t.PointeeType()) }
func (t Type) Element() clang.Type     { return wrapType(t.tu, t.t.ElementType()) }
func (t Type) NumElements() int64      { return t.t.NumElements() }
func (t Type) Result() clang.Type      { return wrapType(t.tu, t.t.ResultType()) }
func (t Type) IsVariadic() bool        { return t.t.IsFunctionTypeVariadic() }
func (t Type) ValueType() clang.Type   { return wrapType(t.tu, t.t.ValueType()) }

func (t Type) Equal(o clang.Type) bool {
	x, ok := o.(Type)
	return ok && t.t.Equal(x.t)
}

func (t Type) Args() []clang.Type {
	n := t.t.NumArgTypes()
	out := make([]clang.Type, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		out = append(out, wrapType(t.tu, t.t.ArgType(uint32(i))))
	}
	return out
}

func (t Type) Declaration() clang.Cursor {
	d := t.t.Declaration()
	if d.Kind() == lc.Cursor_NoDeclFound {
		return nil
	}
	return wrapCursor(t.tu, d)
}

var _ clang.Type = Type{}

var typeKinds = map[lc.TypeKind]clang.TypeKind{
	lc.Type_Unexposed:       clang.TypeUnexposed,
	lc.Type_Void:            clang.TypeVoid,
	lc.Type_Bool:            clang.TypeBool,
	lc.Type_Char_U:          clang.TypeCharU,
	lc.Type_UChar:           clang.TypeUChar,
	lc.Type_Char16:          clang.TypeChar16,
	lc.Type_Char32:          clang.TypeChar32,
	lc.Type_UShort:          clang.TypeUShort,
	lc.Type_UInt:            clang.TypeUInt,
	lc.Type_ULong:           clang.TypeULong,
	lc.Type_ULongLong:       clang.TypeULongLong,
	lc.Type_UInt128:         clang.TypeUInt128,
	lc.Type_Char_S:          clang.TypeCharS,
	lc.Type_SChar:           clang.TypeSChar,
	lc.Type_WChar:           clang.TypeWChar,
	lc.Type_Short:           clang.TypeShort,
	lc.Type_Int:             clang.TypeInt,
	lc.Type_Long:            clang.TypeLong,
	lc.Type_LongLong:        clang.TypeLongLong,
	lc.Type_Int128:          clang.TypeInt128,
	lc.Type_Float:           clang.TypeFloat,
	lc.Type_Double:          clang.TypeDouble,
	lc.Type_LongDouble:      clang.TypeLongDouble,
	lc.Type_Float128:        clang.TypeFloat128,
	lc.Type_Half:            clang.TypeHalf,
	lc.Type_Complex:         clang.TypeComplex,
	lc.Type_Pointer:         clang.TypePointer,
	lc.Type_BlockPointer:    clang.TypeBlockPointer,
	lc.Type_Record:          clang.TypeRecord,
	lc.Type_Enum:            clang.TypeEnum,
	lc.Type_Typedef:         clang.TypeTypedef,
	lc.Type_FunctionNoProto: clang.TypeFunctionNoProto,
	lc.Type_FunctionProto:   clang.TypeFunctionProto,
	lc.Type_ConstantArray:   clang.TypeConstantArray,
	lc.Type_Vector:          clang.TypeVector,
	lc.Type_IncompleteArray: clang.TypeIncompleteArray,
	lc.Type_VariableArray:   clang.TypeVariableArray,
	lc.Type_Elaborated:      clang.TypeElaborated,
	lc.Type_Auto:            clang.TypeAuto,
	lc.Type_Attributed:      clang.TypeAttributed,
	lc.Type_Atomic:          clang.TypeAtomic,
}

func location(l lc.SourceLocation) clang.Location {
	f, line, col, _ := l.SpellingLocation()
	name := f.Name()
	if name == "" {
		return clang.Location{}
	}
	return clang.Location{Path: name, Line: int(line), Col: int(col)}
}

func severity(s lc.DiagnosticSeverity) clang.Severity {
	switch s {
	case lc.Diagnostic_Note:
		return clang.SeverityNote
	case lc.Diagnostic_Warning:
		return clang.SeverityWarning
	case lc.Diagnostic_Error:
		return clang.SeverityError
	case lc.Diagnostic_Fatal:
		return clang.SeverityFatal
	}
	return clang.SeverityIgnored
}
