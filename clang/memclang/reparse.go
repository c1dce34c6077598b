package memclang

import (
	"regexp"
	"strings"

	"github.com/ardanlabs/cextract/clang"
)

const snippetPath = "cextract$macros.h"

var autoDecl = regexp.MustCompile(`^\s*__auto_type\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(.+);\s*$`)

// evalResult is what a registered expression evaluates to.
type evalResult struct {
	typ *Type
	res clang.EvalResult
}

// Evaluates registers the result of an initializer expression for Reparse.
// The expression is matched as it is written in the snippet.
func (b *Builder) Evaluates(expr string, t *Type, res clang.EvalResult) {
	b.results[expr] = evalResult{typ: t, res: res}
}

// Reparse returns a variable cursor for every "__auto_type NAME = EXPR;"
// line of snippet. A variable whose initializer was not registered has
// type int and a failed evaluation, the way an invalid declaration comes
// back from clang.
func (tu *TranslationUnit) Reparse(snippet string) ([]clang.Cursor, error) {
	tu.reparses++

	var out []clang.Cursor
	for i, line := range strings.Split(snippet, "\n") {
		m := autoDecl.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		c := &Cursor{
			kind:     clang.CursorVarDecl,
			spelling: m[1],
			loc:      clang.Location{Path: snippetPath, Line: i + 1, Col: 1},
			isDef:    true,
			linkage:  clang.LinkageExternal,
		}

		r, ok := tu.b.results[strings.TrimSpace(m[2])]
		if !ok {
			c.typ = tu.b.Int()
			c.eval = clang.EvalResult{Kind: clang.EvalFailed}
			tu.diags = append(tu.diags, clang.Diagnostic{
				Severity: clang.SeverityError,
				Message:  "cannot evaluate '" + m[2] + "'",
				Location: c.loc,
			})
			out = append(out, c)
			continue
		}

		c.typ = &Type{kind: clang.TypeAuto, spelling: r.typ.spelling, canonical: r.typ.canonicalType()}
		c.eval = r.res
		out = append(out, c)
	}

	return out, nil
}
