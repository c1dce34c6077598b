package memclang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

func TestRecordLayout(t *testing.T) {
	b := NewBuilder("foo.h", ir.LinuxAMD64)

	foo := b.Struct("Foo", Field("a", b.Char()), Field("b", b.Int()))
	assert.Equal(t, int64(8), foo.Size())
	assert.Equal(t, int64(4), foo.Align())
	assert.Equal(t, int64(0), foo.OffsetOf("a"))
	assert.Equal(t, int64(32), foo.OffsetOf("b"))
	assert.Equal(t, int64(-1), foo.OffsetOf("c"))

	u := b.Union("U", Field("i", b.Int()), Field("d", b.Prim(clang.TypeDouble)))
	assert.Equal(t, int64(8), u.Size())
	assert.Equal(t, int64(0), u.OffsetOf("d"))

	bits := b.Struct("Bits",
		Bitfield("x", b.UInt(), 3),
		Bitfield("y", b.UInt(), 30),
		Bitfield("", b.UInt(), 0),
		Bitfield("z", b.UInt(), 1),
	)
	assert.Equal(t, int64(0), bits.OffsetOf("x"))
	assert.Equal(t, int64(32), bits.OffsetOf("y"))
	assert.Equal(t, int64(64), bits.OffsetOf("z"))
	assert.Equal(t, int64(12), bits.Size())

	flex := b.Struct("Flex", Field("n", b.Long()), Field("data", b.IncompleteArray(b.Int())))
	assert.Equal(t, int64(8), flex.Size())
	assert.Equal(t, int64(64), flex.OffsetOf("data"))
}

func TestAnonymousMemberOffsets(t *testing.T) {
	b := NewBuilder("anon.h", ir.LinuxAMD64)

	inner := b.AnonymousStruct(Field("x", b.Int()), Field("y", b.Int()))
	outer := b.Struct("Outer", Field("tag", b.Char()), Anonymous(inner))

	assert.Equal(t, int64(12), outer.Size())
	assert.Equal(t, int64(32), outer.OffsetOf("x"))
	assert.Equal(t, int64(64), outer.OffsetOf("y"))

	def := outer.decl
	require.Len(t, def.children, 2)
	assert.True(t, def.children[1].IsAnonymousRecord())
}

func TestForwardDeclaration(t *testing.T) {
	b := NewBuilder("fwd.h", ir.LinuxAMD64)

	node := b.DeclareStruct("Node")
	assert.Equal(t, int64(-1), node.Size())

	b.Define(node, Field("next", b.Pointer(node)), Field("value", b.Int()))
	assert.Equal(t, int64(16), node.Size())

	tu := b.Build()
	children := tu.Cursor().Children()
	require.Len(t, children, 2)
	assert.False(t, children[0].IsDefinition())
	assert.True(t, children[0].Definition().IsDefinition())
	assert.Equal(t, children[1], children[0].Definition())
}

func TestReparse(t *testing.T) {
	b := NewBuilder("macros.h", ir.LinuxAMD64)
	b.Macro("TWO", "( 1 + 1 )")
	b.Evaluates("TWO", b.Int(), clang.EvalResult{Kind: clang.EvalInt, Int: 2})
	b.Evaluates("(uintptr_t)PTR", b.Prim(clang.TypeULong), clang.EvalResult{Kind: clang.EvalInt, Unsigned: true})
	tu := b.Build()

	snippet := `#include <stdint.h>
__auto_type cextract$macro$TWO = TWO;
__auto_type cextract$macro$PTR = (uintptr_t)PTR;
__auto_type cextract$macro$BAD = MISSING + 1;
`
	cursors, err := tu.Reparse(snippet)
	require.NoError(t, err)
	require.Len(t, cursors, 3)
	assert.Equal(t, 1, tu.Reparses())

	two := cursors[0]
	assert.Equal(t, "cextract$macro$TWO", two.Spelling())
	assert.Equal(t, clang.EvalResult{Kind: clang.EvalInt, Int: 2}, two.Evaluate())
	assert.Equal(t, clang.TypeAuto, two.Type().Kind())
	assert.Equal(t, clang.TypeInt, two.Type().Canonical().Kind())
	assert.Equal(t, 2, two.Location().Line)

	ptr := cursors[1]
	assert.Equal(t, clang.EvalResult{Kind: clang.EvalInt, Unsigned: true}, ptr.Evaluate())
	assert.Equal(t, clang.TypeULong, ptr.Type().Canonical().Kind())

	bad := cursors[2]
	assert.Equal(t, clang.EvalFailed, bad.Evaluate().Kind)
	assert.Equal(t, clang.TypeInt, bad.Type().Kind())

	require.Len(t, tu.Diagnostics(), 1)
	assert.Contains(t, tu.Diagnostics()[0].Message, "MISSING")
}

func TestMacroTokens(t *testing.T) {
	b := NewBuilder("macros.h", ir.LinuxAMD64)
	b.Macro("MASK", "( 1 << 4 )")
	b.FunctionMacro("MAX", "a > b ? a : b")
	b.BuiltinMacro("__STDC__", "1")
	cs := b.Build().Cursor().Children()
	require.Len(t, cs, 3)

	assert.Equal(t, []string{"MASK", "(", "1", "<<", "4", ")"}, cs[0].MacroTokens())
	assert.False(t, cs[0].IsFunctionLikeMacro())
	assert.True(t, cs[1].IsFunctionLikeMacro())
	assert.False(t, cs[2].Location().IsValid())
}
