package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/clang/ccindex"
	"github.com/ardanlabs/cextract/ir"
)

// kindTypes converts the handful of types macro snippets produce.
type kindTypes struct{}

func (kindTypes) MakeType(t clang.Type) (ir.Type, error) {
	switch t.Kind() {
	case clang.TypeAuto:
		return kindTypes{}.MakeType(t.Canonical())
	case clang.TypeInt:
		return ir.NewPrimitive(ir.Int), nil
	case clang.TypeUInt:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Int)), nil
	case clang.TypeLong:
		return ir.NewPrimitive(ir.Long), nil
	case clang.TypeULong:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Long)), nil
	case clang.TypeDouble:
		return ir.NewPrimitive(ir.Double), nil
	case clang.TypeCharS:
		return ir.NewPrimitive(ir.Char), nil
	case clang.TypeVoid:
		return ir.NewPrimitive(ir.Void), nil
	case clang.TypePointer:
		pt, err := kindTypes{}.MakeType(t.Pointee())
		if err != nil {
			return nil, err
		}
		return ir.NewPointer(pt), nil
	}
	return nil, fmt.Errorf("unexpected type %s", t.Kind())
}

// parseMacros parses a header of macro definitions.
func parseMacros(t *testing.T, src string) *ccindex.TranslationUnit {
	t.Helper()

	path := filepath.Join(t.TempDir(), "macros.h")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	ix := ccindex.NewIndex(ir.LinuxAMD64)
	t.Cleanup(func() { ix.Close() })

	tu, err := ix.Parse(path, nil)
	require.NoError(t, err)
	require.Empty(t, tu.Diagnostics())

	return tu.(*ccindex.TranslationUnit)
}

func addAll(table *Table, tu clang.TranslationUnit) {
	for _, c := range tu.Cursor().Children() {
		if c.Kind() == clang.CursorMacroDefinition {
			table.Add(c.MacroTokens(), ir.Position{Path: c.Location().Path, Line: c.Location().Line, Col: c.Location().Col})
		}
	}
}

func TestFastPath(t *testing.T) {
	tu := parseMacros(t, "#define FIVE 5\n#define HEX 0x1b\n")

	table := NewTable(tu, kindTypes{}, zaptest.NewLogger(t))
	addAll(table, tu)

	consts, err := table.Resolve()
	require.NoError(t, err)
	require.Len(t, consts, 2)

	assert.Equal(t, "FIVE", consts[0].Name())
	assert.Equal(t, int64(5), consts[0].Value)
	assert.True(t, ir.EqualTypes(ir.NewPrimitive(ir.Int), consts[0].Type))
	assert.Equal(t, int64(27), consts[1].Value)

	assert.Zero(t, tu.Reparses())
	assert.Zero(t, table.Rounds())
}

func TestPointerRecovery(t *testing.T) {
	tu := parseMacros(t, "#define PTR ((void*)0)\n")

	table := NewTable(tu, kindTypes{}, zaptest.NewLogger(t))
	addAll(table, tu)

	consts, err := table.Resolve()
	require.NoError(t, err)
	require.Len(t, consts, 1)

	c := consts[0]
	assert.Equal(t, "PTR", c.Name())
	assert.Equal(t, uint64(0), c.Value)

	ptr, ok := c.Type.(*ir.Delegated)
	require.True(t, ok)
	assert.Equal(t, ir.DelegatedPointer, ptr.Kind)
	assert.True(t, ir.IsVoid(ptr.Type()))

	state, ok := table.State("PTR")
	require.True(t, ok)
	assert.Equal(t, Success, state)
}

func TestUndefinedSymbol(t *testing.T) {
	tu := parseMacros(t, "#define BAD (UNDEFINED + 1)\n#define GOOD (1 << 3)\n")

	table := NewTable(tu, kindTypes{}, zaptest.NewLogger(t))
	addAll(table, tu)

	consts, err := table.Resolve()
	require.NoError(t, err)
	require.Len(t, consts, 1)
	assert.Equal(t, "GOOD", consts[0].Name())
	assert.Equal(t, int64(8), consts[0].Value)

	state, ok := table.State("BAD")
	require.True(t, ok)
	assert.Equal(t, Unparseable, state)

	_, ok = table.State("NEVER_DEFINED")
	assert.False(t, ok)
}

func TestResolveTerminates(t *testing.T) {
	tu := parseMacros(t, `#define A 1
#define B (A + 1)
#define C (B * 2.0)
#define D "text"
#define E (C > 1 ? 1u : 2u)
#define LOOP LOOP
`)

	table := NewTable(tu, kindTypes{}, zaptest.NewLogger(t))
	addAll(table, tu)

	consts, err := table.Resolve()
	require.NoError(t, err)
	assert.LessOrEqual(t, table.Rounds(), 6)

	values := map[string]any{}
	for _, c := range consts {
		values[c.Name()] = c.Value
	}
	assert.Equal(t, map[string]any{
		"A": int64(1),
		"B": int64(2),
		"C": 4.0,
		"D": "text",
		"E": uint64(1),
	}, values)

	state, _ := table.State("LOOP")
	assert.Equal(t, Unparseable, state)
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		tok  string
		want int64
		ok   bool
	}{
		{"5", 5, true},
		{"0x10", 16, true},
		{"010", 8, true},
		{"5u", 0, false},
		{"1.0", 0, false},
		{"0b11", 0, false},
		{"1_000", 0, false},
		{"4294967296", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			n, ok := toNumber(tt.tok)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}
