// Package macro resolves object-like macros into typed constants. Macros
// have no type in the syntax tree, so each one is evaluated by reparsing a
// snippet that declares a variable initialized with the macro.
package macro

import (
	"strconv"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// State is the resolution state of a macro.
type State int

const (
	Unparsed State = iota
	Success
	RecoverableFailure
	Unparseable
)

var stateNames = [...]string{"unparsed", "success", "recoverable failure", "unparseable"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

const mangledPrefix = "cextract$macro$"

// TypeMaker converts the type of a reparsed declaration.
type TypeMaker interface {
	MakeType(t clang.Type) (ir.Type, error)
}

type entry struct {
	name   string
	tokens []string
	pos    ir.Position
	state  State
	typ    ir.Type
	value  any
}

func (e *entry) mangledName() string {
	return mangledPrefix + e.name
}

// Table holds the macros of one translation unit while they are resolved.
// Entries keep the order in which the macros were defined.
type Table struct {
	tu      clang.TranslationUnit
	types   TypeMaker
	log     *zap.Logger
	entries *linkedhashmap.Map
	dropped map[string]bool
	rounds  int
}

func NewTable(tu clang.TranslationUnit, types TypeMaker, log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	return &Table{
		tu:      tu,
		types:   types,
		log:     log,
		entries: linkedhashmap.New(),
		dropped: make(map[string]bool),
	}
}

// Add enters a macro. The tokens are the macro name followed by its body.
// A macro whose body is a single integer literal is resolved right away.
func (t *Table) Add(tokens []string, pos ir.Position) {
	if len(tokens) == 0 {
		return
	}

	e := entry{name: tokens[0], tokens: tokens, pos: pos}

	if len(tokens) == 2 {
		if n, ok := toNumber(tokens[1]); ok {
			e.state = Success
			e.typ = ir.NewPrimitive(ir.Int)
			e.value = n
		}
	}

	t.entries.Put(e.mangledName(), &e)
}

// toNumber parses a decimal, hexadecimal or octal literal that fits in an
// int.
func toNumber(tok string) (int64, bool) {
	lower := strings.ToLower(tok)
	if tok == "" || strings.Contains(tok, "_") || strings.HasPrefix(lower, "0b") || strings.HasPrefix(lower, "0o") {
		return 0, false
	}
	n, err := strconv.ParseInt(tok, 0, 32)
	if err != nil {
		return 0, false
	}
	return n, true
}

// State returns the state of a macro. Macros that could not be resolved are
// reported as Unparseable after they leave the table.
func (t *Table) State(name string) (State, bool) {
	if v, ok := t.entries.Get(mangledPrefix + name); ok {
		return v.(*entry).state, true
	}
	if t.dropped[name] {
		return Unparseable, true
	}
	return 0, false
}

// Rounds returns the number of resolution rounds run.
func (t *Table) Rounds() int {
	return t.rounds
}

// Resolve runs resolution rounds until no entry is pending or a round
// resolves none, and returns the resolved macros as constants, in
// definition order. A round reparses every unparsed macro and then retries
// the ones that yielded a type but no value as pointer sized integers.
func (t *Table) Resolve() ([]*ir.Constant, error) {
	maxRounds := t.pending() + 1

	last := -1
	for n := t.pending(); n > 0 && n != last && t.rounds < maxRounds; n = t.pending() {
		last = n
		t.rounds++

		if err := t.reparse(false); err != nil {
			return nil, err
		}
		if err := t.reparse(true); err != nil {
			return nil, err
		}

		t.log.Debug("macro round",
			zap.Int("round", t.rounds),
			zap.Int("entries", t.entries.Size()),
		)
	}

	var consts []*ir.Constant
	for _, v := range t.entries.Values() {
		e := v.(*entry)
		if e.state != Success {
			t.drop(e)
			continue
		}
		consts = append(consts, ir.NewConstant(e.pos, e.name, e.value, e.typ))
	}

	return consts, nil
}

// pending returns the number of entries a round would reparse. Macros
// resolved by Add are not pending.
func (t *Table) pending() int {
	var n int
	for _, v := range t.entries.Values() {
		if s := v.(*entry).state; s == Unparsed || s == RecoverableFailure {
			n++
		}
	}
	return n
}

func (t *Table) reparse(recovery bool) error {
	want := Unparsed
	if recovery {
		want = RecoverableFailure
	}

	var b strings.Builder
	if recovery {
		b.WriteString("#include <stdint.h>\n")
	}

	var n int
	for _, v := range t.entries.Values() {
		e := v.(*entry)
		if e.state != want {
			continue
		}
		b.WriteString("__auto_type ")
		b.WriteString(e.mangledName())
		b.WriteString(" = ")
		if recovery {
			b.WriteString("(uintptr_t)")
		}
		b.WriteString(e.name)
		b.WriteString(";\n")
		n++
	}

	if n == 0 {
		return nil
	}

	cursors, err := t.tu.Reparse(b.String())
	if err != nil {
		return err
	}

	for _, c := range cursors {
		if c.Kind() != clang.CursorVarDecl || !strings.Contains(c.Spelling(), mangledPrefix) {
			continue
		}
		if err := t.update(c); err != nil {
			return err
		}
	}

	return nil
}

// update moves the entry of a reparsed declaration to its next state.
func (t *Table) update(c clang.Cursor) error {
	v, ok := t.entries.Get(c.Spelling())
	if !ok {
		return nil
	}
	e := v.(*entry)

	res := c.Evaluate()
	switch res.Kind {
	case clang.EvalInt:
		if res.Unsigned {
			return t.success(e, c, uint64(res.Int))
		}
		return t.success(e, c, res.Int)

	case clang.EvalFloat:
		return t.success(e, c, res.Float)

	case clang.EvalStrLiteral:
		return t.success(e, c, res.Str)
	}

	var typ ir.Type
	if ct := c.Type(); !ct.Equal(ct.Canonical()) {
		var err error
		if typ, err = t.types.MakeType(ct); err != nil {
			return err
		}
	}
	t.failure(e, typ)

	return nil
}

func (t *Table) success(e *entry, c clang.Cursor, value any) error {
	switch e.state {
	case Unparsed:
		typ, err := t.types.MakeType(c.Type())
		if err != nil {
			return err
		}
		e.typ = typ
	case RecoverableFailure:
		// The recovered value keeps the type inferred for the macro itself.
	default:
		return nil
	}

	e.state = Success
	e.value = value
	return nil
}

func (t *Table) failure(e *entry, typ ir.Type) {
	if e.state == Unparsed && typ != nil {
		e.state = RecoverableFailure
		e.typ = typ
		return
	}
	t.drop(e)
}

func (t *Table) drop(e *entry) {
	t.log.Debug("dropping macro", zap.String("name", e.name), zap.Stringer("pos", e.pos))
	e.state = Unparseable
	t.entries.Remove(e.mangledName())
	t.dropped[e.name] = true
}
