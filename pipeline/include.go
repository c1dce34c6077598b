package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/report"
)

// IncludeKind is the category an allow-list entry applies to.
type IncludeKind uint8

const (
	IncludeConstant IncludeKind = iota
	IncludeVar
	IncludeFunction
	IncludeTypedef
	IncludeStruct
	IncludeUnion
)

var includeKindNames = [...]string{"constant", "var", "function", "typedef", "struct", "union"}

func (k IncludeKind) String() string {
	if int(k) < len(includeKindNames) {
		return includeKindNames[k]
	}
	return fmt.Sprintf("IncludeKind(%d)", uint8(k))
}

// OptionName returns the command line option selecting symbols of kind k.
func (k IncludeKind) OptionName() string {
	return "include-" + k.String()
}

func (k IncludeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IncludeKinds lists every kind in option order.
func IncludeKinds() []IncludeKind {
	return []IncludeKind{IncludeConstant, IncludeVar, IncludeFunction, IncludeTypedef, IncludeStruct, IncludeUnion}
}

func ParseIncludeKind(s string) (IncludeKind, error) {
	for i, name := range includeKindNames {
		if name == s {
			return IncludeKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown include kind %q", s)
}

func includeKindOf(d ir.Declaration) (IncludeKind, bool) {
	switch d := d.(type) {
	case *ir.Constant:
		return IncludeConstant, true
	case *ir.Variable:
		return IncludeVar, true
	case *ir.Function:
		return IncludeFunction, true
	case *ir.Typedef:
		return IncludeTypedef, true
	case *ir.Scoped:
		switch d.Kind {
		case ir.ScopedStruct:
			return IncludeStruct, true
		case ir.ScopedUnion:
			return IncludeUnion, true
		}
	}
	return 0, false
}

// Includes is an allow-list of symbols. When it is not enabled every
// symbol is included.
type Includes interface {
	Enabled() bool
	Included(kind IncludeKind, name string) bool
}

// IncludeEntry records one decision of the include filter.
type IncludeEntry struct {
	Kind     IncludeKind `json:"kind"`
	Name     string      `json:"name"`
	Header   string      `json:"header"`
	Included bool        `json:"included"`
}

type includeFilter struct {
	includes Includes
	rep      *report.Reporter
	seen     map[ir.Declaration]bool
	entries  []IncludeEntry
	skipped  int
}

// FilterIncludes marks Skip on every toplevel constant, variable, function,
// typedef and named record that the allow-list does not name. Enum
// constants are checked as constants. It returns the decisions it made.
func FilterIncludes(top *ir.Scoped, includes Includes, rep *report.Reporter) []IncludeEntry {
	f := includeFilter{
		includes: includes,
		rep:      rep,
		seen:     make(map[ir.Declaration]bool),
	}
	f.scan(top)
	return f.entries
}

func (f *includeFilter) scan(top *ir.Scoped) {
	for _, m := range top.Members {
		f.visit(m, nil)
	}
}

func (f *includeFilter) visit(d ir.Declaration, parent *ir.Scoped) {
	switch d := d.(type) {
	case *ir.Constant, *ir.Function, *ir.Typedef:
		f.check(d)

	case *ir.Variable:
		if parent == nil {
			f.check(d)
		}

	case *ir.Scoped:
		if d.IsRecord() && d.Name() != "" {
			f.check(d)
		}
		for _, m := range d.Members {
			f.visit(m, d)
		}
	}
}

func (f *includeFilter) check(d ir.Declaration) {
	if f.seen[d] {
		return
	}
	f.seen[d] = true

	kind, _ := includeKindOf(d)
	included := f.includes == nil || !f.includes.Enabled() || f.includes.Included(kind, d.Name())

	f.entries = append(f.entries, IncludeEntry{
		Kind:     kind,
		Name:     d.Name(),
		Header:   d.Pos().Path,
		Included: included,
	})

	if !included && !ir.IsSkipped(d) {
		ir.Skip(d)
		f.skipped++
		f.rep.Logger().Debug("not included",
			zap.Stringer("kind", kind),
			zap.String("name", d.Name()),
		)
	}
}

// DumpFormat selects the output of DumpIncludes.
type DumpFormat string

const (
	DumpText DumpFormat = "text"
	DumpJSON DumpFormat = "json"
)

// DumpIncludes writes the include decisions. The text format lists the
// included symbols as command line options grouped by header, ready to be
// pasted into an argument file. The JSON format lists every decision.
func DumpIncludes(w io.Writer, entries []IncludeEntry, format DumpFormat) error {
	switch format {
	case DumpJSON:
		return dumpJSON(w, entries)
	case DumpText, "":
		return dumpText(w, entries)
	}
	return fmt.Errorf("unknown dump format %q", format)
}

func dumpJSON(w io.Writer, entries []IncludeEntry) error {
	sorted := sortEntries(entries)
	if sorted == nil {
		sorted = []IncludeEntry{}
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding includes: %w", err)
	}
	data = append(data, '\n')

	_, err = w.Write(data)
	return err
}

func dumpText(w io.Writer, entries []IncludeEntry) error {
	var included []IncludeEntry
	for _, e := range entries {
		if e.Included {
			included = append(included, e)
		}
	}
	included = sortEntries(included)

	bw := bufio.NewWriter(w)
	sep := ""
	for start := 0; start < len(included); {
		header := included[start].Header
		end := start
		width := 0
		for end < len(included) && included[end].Header == header {
			width = max(width, len(included[end].Name))
			end++
		}
		width += len("--") + len(IncludeFunction.OptionName()) + len(" ")

		fmt.Fprintf(bw, "%s#### Extracted from: %s\n\n", sep, header)
		for _, e := range included[start:end] {
			option := "--" + e.Kind.OptionName() + " " + e.Name
			fmt.Fprintf(bw, "%-*s # header: %s\n", width, option, header)
		}

		sep = "\n"
		start = end
	}

	return bw.Flush()
}

// sortEntries orders entries by header, kind and name.
func sortEntries(entries []IncludeEntry) []IncludeEntry {
	sorted := append([]IncludeEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Header != b.Header {
			return a.Header < b.Header
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
	return sorted
}
