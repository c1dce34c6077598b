// Package clang defines the read-only view of a parsed C translation unit
// that the declaration builder consumes. Implementations live in the
// ccindex, memclang and libclang subpackages.
package clang

import "fmt"

// Location is a spelling location inside a source file. A zero Location is
// not inside any file (builtins, command line definitions).
type Location struct {
	Path string
	Line int
	Col  int
}

func (l Location) IsValid() bool {
	return l.Path != ""
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Col)
}

// Cursor is a node of the translation unit.
type Cursor interface {
	Kind() CursorKind
	Spelling() string
	Type() Type
	Location() Location
	Children() []Cursor

	// IsDefinition reports whether the cursor defines its entity.
	IsDefinition() bool

	// Definition returns the defining cursor of the entity, or nil.
	Definition() Cursor

	// IsAnonymous reports whether a record or enum has no name.
	IsAnonymous() bool

	// IsAnonymousRecord reports whether a record is an anonymous member
	// of its parent: a nested struct or union with no declarator.
	IsAnonymousRecord() bool

	IsBitField() bool
	BitFieldWidth() int64

	EnumConstantValue() int64
	EnumIntegerType() Type
	TypedefUnderlyingType() Type

	Arguments() []Cursor
	IsInlined() bool
	Linkage() Linkage

	IsFunctionLikeMacro() bool

	// MacroTokens returns the spelling of every token of a macro
	// definition, the macro name first.
	MacroTokens() []string

	// Evaluate evaluates the initializer of a variable declaration.
	Evaluate() EvalResult
}

// Type is a C type as seen by the parser. Implementations must be comparable
// so types can key a map.
type Type interface {
	Kind() TypeKind
	Spelling() string
	Canonical() Type
	Equal(Type) bool

	// Size and Align are in bytes and negative when not computable.
	Size() int64
	Align() int64

	// OffsetOf returns the bit offset of a named field, searching anonymous
	// members, or a negative value when there is no such field.
	OffsetOf(field string) int64

	Pointee() Type
	Element() Type
	NumElements() int64
	Result() Type
	Args() []Type
	IsVariadic() bool
	ValueType() Type

	// Declaration returns the cursor declaring a record, enum or typedef
	// type, or nil.
	Declaration() Cursor
}

// EvalResult is the outcome of evaluating a constant expression.
type EvalResult struct {
	Kind     EvalKind
	Int      int64
	Unsigned bool
	Float    float64
	Str      string
}

// Diagnostic is a message reported while parsing.
type Diagnostic struct {
	Severity Severity
	Message  string
	Location Location
}

func (d Diagnostic) String() string {
	if d.Location.IsValid() {
		return fmt.Sprintf("%s: %s: %s", d.Location, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// TranslationUnit is a parsed header.
type TranslationUnit interface {
	Cursor() Cursor
	Diagnostics() []Diagnostic

	// Reparse parses snippet in the context of a snapshot of this unit,
	// with all of its declarations and macros visible, and returns the
	// top level cursors the snippet declares.
	Reparse(snippet string) ([]Cursor, error)

	Close() error
}

// Index creates translation units.
type Index interface {
	Parse(path string, args []string) (TranslationUnit, error)
	Close() error
}
