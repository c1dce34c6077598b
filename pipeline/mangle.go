package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/ardanlabs/cextract/ir"
)

// Dialect selects the identifier rules of the target language.
type Dialect string

const (
	DialectGo   Dialect = "go"
	DialectJava Dialect = "java"
)

// Dialects lists the supported dialects.
func Dialects() []Dialect {
	return []Dialect{DialectGo, DialectJava}
}

var goReserved = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,

	// Names the Go emitter uses unqualified in generated code.
	"ffi": true, "unsafe": true, "lib": true, "ret": true, "args": true,
}

var javaReserved = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extends": true, "final": true, "finally": true, "float": true,
	"for": true, "goto": true, "if": true, "implements": true, "import": true,
	"instanceof": true, "int": true, "interface": true, "long": true, "native": true,
	"new": true, "package": true, "private": true, "protected": true, "public": true,
	"return": true, "short": true, "static": true, "strictfp": true, "super": true,
	"switch": true, "synchronized": true, "this": true, "throw": true, "throws": true,
	"transient": true, "try": true, "void": true, "volatile": true, "while": true,
	"true": true, "false": true, "null": true, "_": true,
	"var": true, "yield": true, "record": true, "sealed": true, "permits": true,
	"String": true, "Struct": true, "MethodHandle": true, "VarHandle": true,
	"ByteOrder": true, "FunctionDescriptor": true, "LibraryLookup": true,
	"MemoryLayout": true, "Arena": true, "NativeArena": true, "MemorySegment": true,
	"ValueLayout": true,
}

func (d Dialect) separator() string {
	if d == DialectJava {
		return "$"
	}
	return "_"
}

// SafeIdentifier turns name into an identifier of the dialect. Characters
// that cannot appear in one become '_' and reserved words get a trailing
// '_'.
func (d Dialect) SafeIdentifier(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		case r == '$' && d == DialectJava:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		return "_"
	}

	reserved := goReserved
	if d == DialectJava {
		reserved = javaReserved
	}
	if reserved[s] {
		s += "_"
	}
	return s
}

// HeaderScopeName derives the name of the header scope from a header path:
// "include/foo.h" becomes "foo_h".
func (d Dialect) HeaderScopeName(header string) string {
	return d.SafeIdentifier(strings.ReplaceAll(filepath.Base(header), ".h", "_h"))
}

// scope is a namespace of target names. Records open a scope for their
// members; functions open one for their parameters.
type scope struct {
	parent   *scope
	name     string
	isRecord bool
	names    map[string]bool
	count    int
}

// enclosedBy reports whether name is the name of this scope or of an
// enclosing record scope.
func (s *scope) enclosedBy(name string) bool {
	return s.name == name || (s.parent != nil && s.parent.isRecord && s.parent.enclosedBy(name))
}

// fullName returns the names of the record scopes from the outermost one
// down to s.
func (s *scope) fullName() []string {
	var names []string
	for cur := s; cur != nil && cur.isRecord; cur = cur.parent {
		names = append([]string{cur.name}, names...)
	}
	return names
}

type mangler struct {
	dialect Dialect
	fold    cases.Caser
	cur     *scope
	named   map[*ir.Scoped]bool
}

// MangleNames sets the target name of every declaration that is not
// skipped. Names are unique within their scope when compared without
// regard to case; a clash gets a suffix counting the clashes of the scope.
// A type never takes the name of a scope enclosing it. Unnamed records
// are named after the declaration defining them, or after their position.
func MangleNames(top *ir.Scoped, headerName string, dialect Dialect) {
	m := mangler{
		dialect: dialect,
		fold:    cases.Fold(),
		named:   make(map[*ir.Scoped]bool),
	}

	name := dialect.SafeIdentifier(headerName)
	m.cur = m.newScope(nil, name, false)
	ir.SetTargetName(top, []string{name})

	for _, d := range top.Members {
		m.visit(d, nil)
	}
}

func (m *mangler) newScope(parent *scope, name string, isRecord bool) *scope {
	return &scope{parent: parent, name: name, isRecord: isRecord, names: make(map[string]bool)}
}

// unique reserves an identifier for name in the current scope.
func (m *mangler) unique(name string, isType bool) string {
	safe := m.dialect.SafeIdentifier(name)
	sc := m.cur

	cand := safe
	for {
		key := m.fold.String(cand)
		if !sc.names[key] && !(isType && sc.enclosedBy(cand)) {
			sc.names[key] = true
			return cand
		}
		cand = fmt.Sprintf("%s%s%d", safe, m.dialect.separator(), sc.count)
		sc.count++
	}
}

func (m *mangler) visit(d ir.Declaration, parent ir.Declaration) {
	if ir.IsSkipped(d) {
		return
	}

	switch d := d.(type) {
	case *ir.Constant:
		ir.SetTargetName(d, []string{m.unique(d.Name(), false)})

	case *ir.Variable:
		ir.SetTargetName(d, []string{m.unique(d.Name(), false)})
		m.nested(d)
		m.reach(d.Type, d)

	case *ir.Function:
		m.function(d)

	case *ir.Typedef:
		ir.SetTargetName(d, []string{m.unique(d.Name(), true)})
		m.nested(d)
		m.reach(d.Type, d)

	case *ir.Scoped:
		m.scoped(d, parent)
	}
}

func (m *mangler) function(fn *ir.Function) {
	ir.SetTargetName(fn, []string{m.unique(fn.Name(), false)})

	outer := m.cur
	m.cur = m.newScope(outer, fn.Name(), false)
	for i, p := range fn.Params {
		name := p.Name()
		if name == "" {
			name = fmt.Sprintf("x%d", i)
		}
		ir.SetTargetName(p, []string{m.unique(name, false)})
	}
	m.cur = outer

	for _, p := range fn.Params {
		m.nested(p)
	}
	m.nested(fn)
	m.reach(fn.Type, fn)
}

func (m *mangler) nested(d ir.Declaration) {
	for _, s := range ir.NestedDecls(d) {
		m.visit(s, d)
	}
}

// reach names the nested records and enums reachable from t, in the
// current scope, on first use.
func (m *mangler) reach(t ir.Type, parent ir.Declaration) {
	switch x := t.(type) {
	case *ir.Array:
		m.reach(x.Elem, parent)

	case *ir.Delegated:
		m.reach(x.Type(), parent)

	case *ir.FunctionType:
		m.reach(x.Return, parent)
		for _, a := range x.Args {
			m.reach(a, parent)
		}

	case *ir.Declared:
		s := x.Decl
		if !ir.IsNested(s) || ir.IsSkipped(s) || m.named[s] {
			return
		}
		m.scoped(s, parent)
	}
}

func (m *mangler) scoped(s *ir.Scoped, parent ir.Declaration) {
	switch s.Kind {
	case ir.ScopedEnum:
		if m.named[s] {
			return
		}
		m.named[s] = true
		if s.Name() != "" || ir.IsNested(s) {
			ir.SetTargetName(s, append(m.cur.fullName(), m.unique(m.recordName(s, parent), true)))
		}

		// Lifted constants are named where they were lifted to.
		if ir.IsNested(s) {
			return
		}
		for _, c := range s.Members {
			m.visit(c, s)
		}

	case ir.ScopedBitfields:
		for _, f := range s.Members {
			m.visit(f, s)
		}

	case ir.ScopedStruct, ir.ScopedUnion:
		if m.named[s] {
			return
		}
		m.named[s] = true

		// Anonymous members share the scope of the record holding them.
		if ir.IsAnonymousStruct(s) {
			ir.SetTargetName(s, append(m.cur.fullName(), m.unique(anonymousName(s), true)))
			for _, f := range s.Members {
				m.visit(f, s)
			}
			return
		}

		outer := m.cur
		m.cur = m.newScope(outer, m.unique(m.recordName(s, parent), true), true)
		ir.SetTargetName(s, m.cur.fullName())
		for _, f := range s.Members {
			m.visit(f, s)
		}
		m.cur = outer
	}
}

// recordName returns the name of a record or enum, falling back to the
// name of the declaration that defines it.
func (m *mangler) recordName(s *ir.Scoped, parent ir.Declaration) string {
	if s.Name() != "" {
		return s.Name()
	}
	if parent == nil || parent.Name() == "" {
		return anonymousName(s)
	}

	var fn *ir.FunctionType
	switch p := parent.(type) {
	case *ir.Function:
		fn = p.Type
	case *ir.Variable:
		fn, _ = ir.FunctionPointee(p.Type)
	case *ir.Typedef:
		fn, _ = ir.FunctionPointee(p.Type)
		if fn == nil {
			fn, _ = ir.Canonical(p.Type).(*ir.FunctionType)
		}
	}
	if fn == nil {
		return parent.Name()
	}

	for i, a := range fn.Args {
		if d, ok := a.(*ir.Declared); ok && d.Decl == s {
			return fmt.Sprintf("%s$x%d", parent.Name(), i)
		}
	}
	return parent.Name() + "$return"
}

func anonymousName(s *ir.Scoped) string {
	return fmt.Sprintf("$anon$%d:%d", s.Pos().Line, s.Pos().Col)
}
