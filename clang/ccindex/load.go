package ccindex

import (
	"cmp"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"modernc.org/cc/v4"
	"modernc.org/token"

	"github.com/ardanlabs/cextract/clang"
)

// loc converts a cc position. Positions in the predefined and builtin
// sources have no location.
func (tu *TranslationUnit) loc(pos token.Position) clang.Location {
	if pos.Filename == "" || strings.HasPrefix(pos.Filename, "<") {
		return clang.Location{}
	}
	return clang.Location{Path: pos.Filename, Line: pos.Line, Col: pos.Column}
}

// add appends a toplevel cursor. Files are ranked in the order their first
// declaration is added.
func (tu *TranslationUnit) add(c *Cursor) {
	if path := c.loc.Path; path != "" {
		if _, ok := tu.files[path]; !ok {
			tu.files[path] = len(tu.files)
		}
	}
	tu.root.children = append(tu.root.children, c)
}

// load builds the cursors of a translated header: declarations in source
// order, then macro definitions.
func (tu *TranslationUnit) load(ast *cc.AST) {
	tu.collect(ast)

	for l := ast.TranslationUnit; l != nil; l = l.TranslationUnit {
		ex := l.ExternalDeclaration
		if ex == nil || !tu.loc(ex.Position()).IsValid() {
			continue
		}

		switch ex.Case {
		case cc.ExternalDeclarationFuncDef:
			fd := ex.FunctionDefinition
			if fd == nil {
				continue
			}
			tu.specifiers(fd.DeclarationSpecifiers)
			tu.declarator(fd.Declarator)

		case cc.ExternalDeclarationDecl:
			d := ex.Declaration
			if d == nil {
				continue
			}
			tu.specifiers(d.DeclarationSpecifiers)
			if d.InitDeclaratorList == nil {
				tu.forward(d.DeclarationSpecifiers)
				continue
			}
			for il := d.InitDeclaratorList; il != nil; il = il.InitDeclaratorList {
				if il.InitDeclarator != nil {
					tu.declarator(il.InitDeclarator.Declarator)
				}
			}
		}
	}

	tu.macros(ast)
}

// collect records where every struct, union and enum is defined, and where
// the fields of records are declared, before any cursor is built.
func (tu *TranslationUnit) collect(ast *cc.AST) {
	for l := ast.TranslationUnit; l != nil; l = l.TranslationUnit {
		ex := l.ExternalDeclaration
		if ex == nil {
			continue
		}
		switch {
		case ex.FunctionDefinition != nil:
			tu.collectSpecifiers(ex.FunctionDefinition.DeclarationSpecifiers)
		case ex.Declaration != nil:
			tu.collectSpecifiers(ex.Declaration.DeclarationSpecifiers)
		}
	}
}

func (tu *TranslationUnit) collectSpecifiers(ds *cc.DeclarationSpecifiers) {
	for ; ds != nil; ds = ds.DeclarationSpecifiers {
		tu.collectType(ds.TypeSpecifier)
	}
}

func (tu *TranslationUnit) collectType(ts *cc.TypeSpecifier) {
	if ts == nil {
		return
	}

	if e := ts.EnumSpecifier; e != nil && e.Case == cc.EnumSpecifierDef {
		tu.defs[recordKey(e.Type())] = tu.loc(e.Position())
	}

	s := ts.StructOrUnionSpecifier
	if s == nil || s.Case != cc.StructOrUnionSpecifierDef {
		return
	}

	key := recordKey(s.Type())
	pos := s.Position()
	if s.Token.SrcStr() != "" {
		pos = s.Token.Position()
	}
	tu.defs[key] = tu.loc(pos)

	for l := s.StructDeclarationList; l != nil; l = l.StructDeclarationList {
		sd := l.StructDeclaration
		if sd == nil {
			continue
		}
		for q := sd.SpecifierQualifierList; q != nil; q = q.SpecifierQualifierList {
			tu.collectType(q.TypeSpecifier)
		}
		for dl := sd.StructDeclaratorList; dl != nil; dl = dl.StructDeclaratorList {
			if d := dl.StructDeclarator; d != nil && d.Declarator != nil {
				tu.fields[fieldKey{record: key, name: d.Declarator.Name()}] = tu.loc(d.Declarator.Position())
			}
		}
	}
}

func (tu *TranslationUnit) specifiers(ds *cc.DeclarationSpecifiers) {
	for ; ds != nil; ds = ds.DeclarationSpecifiers {
		if ds.TypeSpecifier != nil {
			tu.define(ds.TypeSpecifier, true)
		}
	}
}

// define adds the records and enums a type specifier defines. Tagged
// definitions are toplevel wherever they appear, the way C scopes tags.
// Untagged records nested in a record belong to it.
func (tu *TranslationUnit) define(ts *cc.TypeSpecifier, toplevel bool) {
	if e := ts.EnumSpecifier; e != nil && e.Case == cc.EnumSpecifierDef {
		if x, ok := e.Type().(*cc.EnumType); ok {
			if c := tu.enum(x); !c.placed {
				c.placed = true
				tu.add(c)
			}
		}
		return
	}

	s := ts.StructOrUnionSpecifier
	if s == nil || s.Case != cc.StructOrUnionSpecifierDef {
		return
	}

	for l := s.StructDeclarationList; l != nil; l = l.StructDeclarationList {
		if sd := l.StructDeclaration; sd != nil {
			for q := sd.SpecifierQualifierList; q != nil; q = q.SpecifierQualifierList {
				if q.TypeSpecifier != nil {
					tu.define(q.TypeSpecifier, false)
				}
			}
		}
	}

	c := tu.record(s.Type())
	if !c.placed && (!c.anonymous || toplevel) {
		c.placed = true
		tu.add(c)
	}
}

// forward adds the cursor of a declaration like "struct node;". Its
// definition is the record's once one is seen.
func (tu *TranslationUnit) forward(ds *cc.DeclarationSpecifiers) {
	for ; ds != nil; ds = ds.DeclarationSpecifiers {
		ts := ds.TypeSpecifier
		if ts == nil || ts.StructOrUnionSpecifier == nil {
			continue
		}
		s := ts.StructOrUnionSpecifier
		if s.Case == cc.StructOrUnionSpecifierDef {
			continue
		}

		c := tu.record(s.Type())
		tu.add(&Cursor{kind: c.kind, spelling: c.spelling, typ: c.typ, loc: tu.loc(s.Token.Position()), definition: c})
	}
}

func (tu *TranslationUnit) declarator(d *cc.Declarator) {
	if d == nil || d.Name() == "" {
		return
	}
	loc := tu.loc(d.Position())
	if !loc.IsValid() {
		return
	}
	t := d.Type()

	if d.IsTypename() {
		c := tu.typedefCursor(d)
		if c.placed {
			return
		}
		c.placed = true
		c.loc = loc
		tu.add(c)
		return
	}

	if rec := tu.unplaced(t, nil); rec != nil {
		tu.add(rec)
	}

	linkage := clang.LinkageExternal
	if d.IsStatic() {
		linkage = clang.LinkageInternal
	}

	if t.Kind() != cc.Function {
		tu.add(&Cursor{kind: clang.CursorVarDecl, spelling: d.Name(), typ: tu.typeOf(t), loc: loc, linkage: linkage})
		return
	}

	c := &Cursor{
		kind:     clang.CursorFunctionDecl,
		spelling: d.Name(),
		typ:      tu.typeOf(t),
		loc:      loc,
		linkage:  linkage,
		inlined:  d.IsInline(),
	}
	if ft, ok := t.(*cc.FunctionType); ok {
		for _, p := range parameters(ft) {
			pc := &Cursor{kind: clang.CursorParmDecl, spelling: p.Name(), typ: tu.typeOf(p.Type()), loc: loc}
			c.args = append(c.args, pc)
			c.children = append(c.children, pc)
		}
	}
	tu.add(c)
}

// macros adds a cursor for every macro defined in a header, ordered by
// file and position.
func (tu *TranslationUnit) macros(ast *cc.AST) {
	var ms []*Cursor
	for name, m := range ast.Macros {
		if m == nil {
			continue
		}
		loc := tu.loc(m.Name.Position())
		if !loc.IsValid() {
			continue
		}

		tokens := []string{name}
		for _, t := range m.ReplacementList() {
			tokens = append(tokens, t.SrcStr())
		}
		ms = append(ms, &Cursor{
			kind:         clang.CursorMacroDefinition,
			spelling:     name,
			loc:          loc,
			functionLike: m.IsFnLike,
			tokens:       tokens,
		})
	}

	slices.SortFunc(ms, func(a, b *Cursor) int {
		return tu.compareLoc(a.loc, b.loc)
	})
	for _, m := range ms {
		tu.add(m)
	}
}

func (tu *TranslationUnit) compareLoc(a, b clang.Location) int {
	rank := func(path string) int {
		if r, ok := tu.files[path]; ok {
			return r
		}
		return len(tu.files)
	}
	return cmpOr(
		cmp.Compare(rank(a.Path), rank(b.Path)),
		strings.Compare(a.Path, b.Path),
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Col, b.Col),
	)
}

// sourceFiles returns the header and every file a cursor comes from.
func (tu *TranslationUnit) sourceFiles() []string {
	files := []string{tu.path}
	for path := range tu.files {
		if path != tu.path {
			files = append(files, path)
		}
	}
	slices.Sort(files[1:])
	return files
}

var diagLine = regexp.MustCompile(`^(.+?):(\d+):(\d+): (.*)$`)

// diagnostics turns the error of a failed translation into error
// diagnostics, one per reported line.
func diagnostics(err error) []clang.Diagnostic {
	var out []clang.Diagnostic
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		d := clang.Diagnostic{Severity: clang.SeverityError, Message: line}
		if m := diagLine.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			d.Message = m[4]
			d.Location = clang.Location{Path: m[1], Line: ln, Col: col}
		}
		out = append(out, d)
	}

	if len(out) == 0 {
		out = append(out, clang.Diagnostic{Severity: clang.SeverityError, Message: err.Error()})
	}
	return out
}

var (
	packedAttr = regexp.MustCompile(`__attribute__\s*\(\(.*\b(packed|__packed__)\b`)
	pragmaPack = regexp.MustCompile(`^\s*#\s*pragma\s+pack\b`)
)

// packedDiagnostics reports packed records and #pragma pack as errors.
// Their layout differs from the natural one and cc lays them out
// naturally.
func packedDiagnostics(files []string) []clang.Diagnostic {
	var out []clang.Diagnostic
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		for i, line := range strings.Split(string(src), "\n") {
			var msg string
			var at []int
			switch {
			case pragmaPack.MatchString(line):
				msg, at = "#pragma pack is not supported", pragmaPack.FindStringIndex(line)
			case packedAttr.MatchString(line):
				msg, at = "packed records are not supported", packedAttr.FindStringIndex(line)
			default:
				continue
			}
			out = append(out, clang.Diagnostic{
				Severity: clang.SeverityError,
				Message:  msg,
				Location: clang.Location{Path: path, Line: i + 1, Col: at[0] + 1},
			})
		}
	}
	return out
}

// cmpOr returns the first of vals that is not zero, like cmp.Or in Go 1.22.
func cmpOr(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
