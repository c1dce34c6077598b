package ccindex

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"modernc.org/cc/v4"

	"github.com/ardanlabs/cextract/clang"
)

const snippetPath = "cextract$macros.h"

var autoDecl = regexp.MustCompile(`^\s*__auto_type\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(.+);\s*$`)

// snippetDecl is one "__auto_type NAME = EXPR;" line of a snippet.
type snippetDecl struct {
	name string
	expr string
	line int
	c    *Cursor
}

// varName is the C name the declaration is translated under. Snippet
// names may hold characters cc rejects in identifiers.
func (d *snippetDecl) varName() string {
	return fmt.Sprintf("__cextract_value_%d", d.line)
}

func (d *snippetDecl) source() string {
	return fmt.Sprintf("__typeof__(%[1]s) %[2]s = %[1]s;\n", d.expr, d.varName())
}

// Reparse translates snippet after the header and returns a variable cursor
// for every "__auto_type NAME = EXPR;" line. Other lines are copied as they
// are. A variable whose declaration does not translate has type int and a
// failed evaluation, the way an invalid declaration comes back from clang.
func (tu *TranslationUnit) Reparse(snippet string) ([]clang.Cursor, error) {
	var prelude strings.Builder
	var decls []*snippetDecl

	for i, line := range strings.Split(snippet, "\n") {
		m := autoDecl.FindStringSubmatch(line)
		if m == nil {
			if strings.TrimSpace(line) != "" {
				prelude.WriteString(line)
				prelude.WriteByte('\n')
			}
			continue
		}

		decls = append(decls, &snippetDecl{
			name: m[1],
			expr: m[2],
			line: i + 1,
			c: &Cursor{
				kind:     clang.CursorVarDecl,
				spelling: m[1],
				loc:      clang.Location{Path: snippetPath, Line: i + 1, Col: 1},
				isDef:    true,
				linkage:  clang.LinkageExternal,
			},
		})
	}

	tu.reparses++

	var b strings.Builder
	b.WriteString(prelude.String())
	for _, d := range decls {
		b.WriteString(d.source())
	}

	ast, err := tu.translate(b.String())
	if err == nil {
		tu.evaluate(ast, decls)
		return cursors(decls), nil
	}

	// One bad line fails the whole snippet. Translate the lines one at a
	// time to find out which.
	for _, d := range decls {
		ast, err := tu.translate(prelude.String() + d.source())
		if err != nil {
			tu.fail(d, err)
			continue
		}
		tu.evaluate(ast, []*snippetDecl{d})
	}
	return cursors(decls), nil
}

func cursors(decls []*snippetDecl) []clang.Cursor {
	out := make([]clang.Cursor, len(decls))
	for i, d := range decls {
		out[i] = d.c
	}
	return out
}

func (tu *TranslationUnit) translate(snippet string) (*cc.AST, error) {
	sources := append(append([]cc.Source(nil), tu.sources...), cc.Source{Name: snippetPath, Value: snippet})
	return cc.Translate(tu.cfg, sources)
}

func (tu *TranslationUnit) fail(d *snippetDecl, err error) {
	d.c.typ = tu.prim(clang.TypeInt)
	d.c.eval = clang.EvalResult{Kind: clang.EvalFailed}

	msg := err.Error()
	if diags := diagnostics(err); len(diags) > 0 {
		msg = diags[0].Message
	}
	tu.diags = append(tu.diags, clang.Diagnostic{
		Severity: clang.SeverityError,
		Message:  msg,
		Location: d.c.loc,
	})
}

// evaluate reads the type and constant value of every declaration of the
// snippet from the translated AST.
func (tu *TranslationUnit) evaluate(ast *cc.AST, decls []*snippetDecl) {
	byName := make(map[string]*snippetDecl, len(decls))
	for _, d := range decls {
		byName[d.varName()] = d
	}

	for l := ast.TranslationUnit; l != nil; l = l.TranslationUnit {
		ex := l.ExternalDeclaration
		if ex == nil || ex.Declaration == nil || ex.Position().Filename != snippetPath {
			continue
		}
		for il := ex.Declaration.InitDeclaratorList; il != nil; il = il.InitDeclaratorList {
			id := il.InitDeclarator
			if id == nil || id.Declarator == nil {
				continue
			}
			d, ok := byName[id.Declarator.Name()]
			if !ok {
				continue
			}
			delete(byName, d.varName())

			var v cc.Value
			if id.Initializer != nil && id.Initializer.AssignmentExpression != nil {
				v = id.Initializer.AssignmentExpression.Value()
			}
			tu.setValue(d.c, id.Declarator.Type(), v)
		}
	}

	for _, d := range byName {
		tu.fail(d, errors.Errorf("no declaration for %s", d.name))
	}
}

// setValue gives c the type __auto_type deduces for t, with arrays decayed
// to pointers, and the evaluation of v.
func (tu *TranslationUnit) setValue(c *Cursor, t cc.Type, v cc.Value) {
	deduced := tu.typeOf(t)
	arr, isArray := t.(*cc.ArrayType)
	if isArray {
		elem := tu.typeOf(arr.Elem())
		ptr := tu.abi.PointerSize / 8
		deduced = &Type{kind: clang.TypePointer, spelling: elem.spelling + " *", size: ptr, align: ptr, pointee: elem}
	}
	c.typ = &Type{kind: clang.TypeAuto, spelling: deduced.spelling, canonical: deduced.canonicalType()}

	switch x := v.(type) {
	case cc.StringValue:
		if isArray {
			c.eval = clang.EvalResult{Kind: clang.EvalStrLiteral, Str: strings.TrimSuffix(string(x), "\x00")}
			return
		}
		c.eval = clang.EvalResult{Kind: clang.EvalOther}
		return
	case cc.Int64Value:
		c.eval = clang.EvalResult{Kind: clang.EvalInt, Int: int64(x), Unsigned: isUnsigned(t, tu.abi.CharSigned)}
	case cc.UInt64Value:
		c.eval = clang.EvalResult{Kind: clang.EvalInt, Int: int64(x), Unsigned: isUnsigned(t, tu.abi.CharSigned)}
	case cc.Float64Value:
		c.eval = clang.EvalResult{Kind: clang.EvalFloat, Float: float64(x)}
	default:
		c.eval = clang.EvalResult{Kind: clang.EvalOther}
		return
	}

	if t.Kind() == cc.Ptr {
		c.eval = clang.EvalResult{Kind: clang.EvalOther, Int: c.eval.Int}
	}
}
