package pipeline

import (
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/report"
)

// duplicateFilter remembers the toplevel declarations already seen.
// Constants and variables are identified by name; functions, typedefs and
// records by structure.
type duplicateFilter struct {
	rep       *report.Reporter
	visited   map[ir.Declaration]bool
	constants map[string]bool
	variables map[string]bool
	functions map[string][]*ir.Function
	typedefs  map[string][]*ir.Typedef
	records   map[string][]*ir.Scoped
	skipped   int
}

// FilterDuplicates marks Skip on every toplevel declaration that repeats
// an earlier one, and returns how many it marked. Declarations already
// skipped are ignored, so a second run marks nothing.
func FilterDuplicates(top *ir.Scoped, rep *report.Reporter) int {
	f := duplicateFilter{
		rep:       rep,
		visited:   make(map[ir.Declaration]bool),
		constants: make(map[string]bool),
		variables: make(map[string]bool),
		functions: make(map[string][]*ir.Function),
		typedefs:  make(map[string][]*ir.Typedef),
		records:   make(map[string][]*ir.Scoped),
	}

	for _, m := range top.Members {
		if ir.IsSkipped(m) || f.visited[m] {
			continue
		}
		f.visited[m] = true

		if f.seen(m) {
			f.skip(m)
		}
	}

	return f.skipped
}

func (f *duplicateFilter) seen(d ir.Declaration) bool {
	switch d := d.(type) {
	case *ir.Constant:
		return seenName(f.constants, d.Name())

	case *ir.Variable:
		return seenName(f.variables, d.Name())

	case *ir.Function:
		return seenEqual(f.functions, d)

	case *ir.Typedef:
		return seenEqual(f.typedefs, d)

	case *ir.Scoped:
		if !d.IsRecord() || d.Name() == "" || ir.IsAnonymousStruct(d) {
			return false
		}
		return seenEqual(f.records, d)
	}
	return false
}

func (f *duplicateFilter) skip(d ir.Declaration) {
	ir.Skip(d)
	f.skipped++
	f.rep.Warn("skipping duplicate declaration",
		zap.String("name", d.Name()),
		zap.Stringer("pos", d.Pos()),
	)
}

func seenName(set map[string]bool, name string) bool {
	if set[name] {
		return true
	}
	set[name] = true
	return false
}

func seenEqual[D ir.Declaration](set map[string][]D, d D) bool {
	key := d.Name()
	for _, other := range set[key] {
		if ir.EqualDecls(other, d) {
			return true
		}
	}
	set[key] = append(set[key], d)
	return false
}
