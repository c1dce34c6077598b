package parser

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/clang/memclang"
	"github.com/ardanlabs/cextract/ir"
)

func parse(t *testing.T, b *memclang.Builder) *ir.Scoped {
	t.Helper()

	res, err := Parse(b.Build(), ir.LinuxAMD64, zaptest.NewLogger(t))
	require.NoError(t, err)

	return res.Toplevel
}

func member(t *testing.T, s *ir.Scoped, name string) ir.Declaration {
	t.Helper()

	for _, m := range s.Members {
		if m.Name() == name {
			return m
		}
	}
	t.Fatalf("no member %q in %s", name, s.Name())
	return nil
}

func layoutOf(t *testing.T, d ir.Declaration) ir.Layout {
	t.Helper()

	s, ok := d.(*ir.Scoped)
	require.True(t, ok, "%s is not scoped", d.Name())
	l, ok := s.Layout()
	require.True(t, ok, "%s has no layout", d.Name())

	return l
}

func TestStructLayout(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *memclang.Builder)
		want  string
		bits  int64
	}{
		{
			name: "padding",
			build: func(b *memclang.Builder) {
				b.Struct("Foo", memclang.Field("a", b.Char()), memclang.Field("b", b.Int()))
			},
			want: "[i8(a)x24i32(b)](Foo)",
			bits: 64,
		},
		{
			name: "tail padding",
			build: func(b *memclang.Builder) {
				b.Struct("Foo", memclang.Field("d", b.Prim(clang.TypeDouble)), memclang.Field("c", b.Char()))
			},
			want: "[f64(d)i8(c)x56](Foo)",
			bits: 128,
		},
		{
			name: "bitfields",
			build: func(b *memclang.Builder) {
				b.Struct("Foo",
					memclang.Bitfield("a", b.UInt(), 3),
					memclang.Bitfield("b", b.UInt(), 5),
					memclang.Field("c", b.Int()),
				)
			},
			want: "[[u3(a)u5(b)x24]i32(c)](Foo)",
			bits: 64,
		},
		{
			name: "zero width bitfield",
			build: func(b *memclang.Builder) {
				b.Struct("Foo",
					memclang.Bitfield("a", b.UInt(), 8),
					memclang.Bitfield("", b.UInt(), 0),
					memclang.Bitfield("b", b.UInt(), 2),
				)
			},
			want: "[[u8(a)x24][u2(b)x30]](Foo)",
			bits: 64,
		},
		{
			name: "zero width bitfield after partial byte",
			build: func(b *memclang.Builder) {
				b.Struct("Foo",
					memclang.Bitfield("a", b.UInt(), 4),
					memclang.Bitfield("", b.UInt(), 0),
					memclang.Bitfield("b", b.UInt(), 4),
				)
			},
			want: "[[u4(a)x28][u4(b)x28]](Foo)",
			bits: 64,
		},
		{
			name: "unnamed bitfield",
			build: func(b *memclang.Builder) {
				b.Struct("Foo",
					memclang.Bitfield("a", b.UInt(), 3),
					memclang.Bitfield("", b.UInt(), 3),
					memclang.Bitfield("b", b.UInt(), 2),
				)
			},
			want: "[[u3(a)x3u2(b)x24]](Foo)",
			bits: 32,
		},
		{
			name: "flexible array",
			build: func(b *memclang.Builder) {
				b.Struct("Foo", memclang.Field("n", b.Long()), memclang.Field("data", b.IncompleteArray(b.Int())))
			},
			want: "[i64(n)[0:i32](data)](Foo)",
			bits: 64,
		},
		{
			name: "anonymous member",
			build: func(b *memclang.Builder) {
				inner := b.AnonymousStruct(memclang.Field("x", b.Int()), memclang.Field("y", b.Int()))
				b.Struct("Foo", memclang.Field("tag", b.Char()), memclang.Anonymous(inner))
			},
			want: "[i8(tag)x24[i32(x)i32(y)]($anon$0)](Foo)",
			bits: 96,
		},
		{
			name: "union bitfield",
			build: func(b *memclang.Builder) {
				b.Union("Foo", memclang.Bitfield("a", b.UInt(), 3), memclang.Field("i", b.Int()))
			},
			want: "[[u3(a)x5]|i32(i)](Foo)",
			bits: 32,
		},
		{
			name: "union padding",
			build: func(b *memclang.Builder) {
				b.Union("Foo", memclang.Bitfield("a", b.UInt(), 3), memclang.Bitfield("b", b.UInt(), 9))
			},
			want: "[[u3(a)x5]|[u9(b)x7]|x32](Foo)",
			bits: 32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := memclang.NewBuilder("foo.h", ir.LinuxAMD64)
			tt.build(b)
			top := parse(t, b)

			foo := member(t, top, "Foo")
			l := layoutOf(t, foo)
			assert.Equal(t, tt.want, l.String())
			assert.Equal(t, tt.bits, l.BitSize())

			size, ok := ir.ClangSize(foo)
			require.True(t, ok)
			assert.Equal(t, tt.bits, size)
		})
	}
}

func TestUnionWithNamedStructField(t *testing.T) {
	b := memclang.NewBuilder("u.h", ir.LinuxAMD64)
	inner := b.UnnamedStruct(memclang.Field("x", b.Int()), memclang.Field("y", b.Int()))
	b.Union("U", memclang.Field("i", b.Int()), memclang.Field("anon", inner))
	top := parse(t, b)

	require.Len(t, top.Members, 1)
	u := member(t, top, "U")
	assert.Equal(t, "[i32(i)|[i32(x)i32(y)](anon)](U)", layoutOf(t, u).String())

	field := member(t, u.(*ir.Scoped), "anon").(*ir.Variable)
	rec, ok := ir.DeclaredRecord(field.Type)
	require.True(t, ok)
	assert.Equal(t, "", rec.Name())
	assert.Equal(t, "[i32(x)i32(y)]", layoutOf(t, rec).String())
}

func TestUnionWithAnonymousStruct(t *testing.T) {
	b := memclang.NewBuilder("u.h", ir.LinuxAMD64)
	inner := b.AnonymousStruct(memclang.Field("x", b.Int()), memclang.Field("y", b.Int()))
	b.Union("U", memclang.Field("i", b.Int()), memclang.Anonymous(inner))
	top := parse(t, b)

	u := member(t, top, "U").(*ir.Scoped)
	assert.Equal(t, "[i32(i)|[i32(x)i32(y)]($anon$0)](U)", layoutOf(t, u).String())

	require.Len(t, u.Members, 2)
	anon, ok := u.Members[1].(*ir.Scoped)
	require.True(t, ok)
	assert.Equal(t, ir.ScopedStruct, anon.Kind)

	attr, ok := ir.AnonymousStructOf(anon)
	require.True(t, ok)
	assert.Equal(t, ir.AnonymousStruct{Offset: 0, HasOffset: true}, attr)
}

func TestAnonymousStructOffset(t *testing.T) {
	b := memclang.NewBuilder("s.h", ir.LinuxAMD64)
	inner := b.AnonymousUnion(memclang.Field("i", b.Int()), memclang.Field("f", b.Prim(clang.TypeFloat)))
	b.Struct("S", memclang.Field("tag", b.Long()), memclang.Anonymous(inner))
	top := parse(t, b)

	s := member(t, top, "S").(*ir.Scoped)
	anon := s.Members[1].(*ir.Scoped)

	attr, ok := ir.AnonymousStructOf(anon)
	require.True(t, ok)
	assert.Equal(t, int64(8), attr.Offset)

	for _, m := range anon.Members {
		off, ok := ir.ClangOffset(m)
		require.True(t, ok)
		assert.Zero(t, off)
	}
}

func TestBitfieldGroups(t *testing.T) {
	b := memclang.NewBuilder("bits.h", ir.LinuxAMD64)
	b.Struct("Flags",
		memclang.Bitfield("a", b.UInt(), 1),
		memclang.Bitfield("b", b.UInt(), 2),
		memclang.Field("c", b.Char()),
	)
	top := parse(t, b)

	flags := member(t, top, "Flags").(*ir.Scoped)
	require.Len(t, flags.Members, 2)

	group, ok := flags.Members[0].(*ir.Scoped)
	require.True(t, ok)
	assert.Equal(t, ir.ScopedBitfields, group.Kind)
	require.Len(t, group.Members, 2)

	bf := group.Members[1].(*ir.Variable)
	assert.Equal(t, ir.VarBitfield, bf.Kind)
	assert.Equal(t, int64(2), bf.Width)
	off, _ := ir.ClangOffset(bf)
	assert.Equal(t, int64(1), off)
}

func TestLayoutIdempotent(t *testing.T) {
	b := memclang.NewBuilder("idem.h", ir.LinuxAMD64)
	inner := b.AnonymousUnion(memclang.Field("i", b.Int()), memclang.Field("d", b.Prim(clang.TypeDouble)))
	b.Struct("Mixed",
		memclang.Field("c", b.Char()),
		memclang.Bitfield("x", b.UInt(), 4),
		memclang.Anonymous(inner),
		memclang.Field("arr", b.Array(b.Prim(clang.TypeShort), 3)),
	)
	tu := b.Build()

	first, err := Parse(tu, ir.LinuxAMD64, zap.NewNop())
	require.NoError(t, err)
	second, err := Parse(tu, ir.LinuxAMD64, zap.NewNop())
	require.NoError(t, err)

	l1 := layoutOf(t, member(t, first.Toplevel, "Mixed"))
	l2 := layoutOf(t, member(t, second.Toplevel, "Mixed"))
	assert.True(t, ir.EqualLayouts(l1, l2), "%s != %s", l1, l2)
}

func TestSizeInvariant(t *testing.T) {
	b := memclang.NewBuilder("sizes.h", ir.LinuxAMD64)
	b.Struct("A", memclang.Field("c", b.Char()), memclang.Field("l", b.Long()), memclang.Field("s", b.Prim(clang.TypeShort)))
	b.Union("B", memclang.Field("c", b.Array(b.Char(), 5)), memclang.Field("i", b.Int()))
	b.Struct("C",
		memclang.Bitfield("a", b.UInt(), 17),
		memclang.Bitfield("b", b.UInt(), 17),
		memclang.Field("tail", b.Char()),
	)
	top := parse(t, b)

	var check func(s *ir.Scoped)
	check = func(s *ir.Scoped) {
		if s.IsRecord() {
			size, ok := ir.ClangSize(s)
			require.True(t, ok, s.Name())
			assert.Equal(t, size, layoutOf(t, s).BitSize(), s.Name())
		}
		for _, m := range s.Members {
			if ms, ok := m.(*ir.Scoped); ok {
				check(ms)
			}
		}
	}
	check(top)
}

func TestComputeLayoutWithoutDefinition(t *testing.T) {
	b := memclang.NewBuilder("opaque.h", ir.LinuxAMD64)
	opaque := b.DeclareStruct("Opaque")
	holder := b.Struct("Holder", memclang.Field("x", b.Int()))
	b.Build()

	types := NewTreeMaker(ir.LinuxAMD64, zaptest.NewLogger(t)).Types()

	typ, err := types.ComputeLayout(0, holder, opaque)
	require.NoError(t, err)
	assert.True(t, ir.IsErroneous(typ))

	typ, err = types.ComputeLayout(0, holder, b.Int())
	require.NoError(t, err)
	assert.True(t, ir.IsErroneous(typ))
}

func TestSelfReferentialPointer(t *testing.T) {
	b := memclang.NewBuilder("list.h", ir.LinuxAMD64)
	node := b.DeclareStruct("Node")
	b.Define(node, memclang.Field("next", b.Pointer(node)), memclang.Field("value", b.Int()))
	top := parse(t, b)

	require.Len(t, top.Members, 1)
	n := member(t, top, "Node").(*ir.Scoped)
	assert.Equal(t, "[a64(next)i32(value)x32](Node)", layoutOf(t, n).String())

	next := n.Members[0].(*ir.Variable)
	ptr, ok := next.Type.(*ir.Delegated)
	require.True(t, ok)
	require.Equal(t, ir.DelegatedPointer, ptr.Kind)

	decl, ok := ptr.Type().(*ir.Declared)
	require.True(t, ok)
	assert.Same(t, n, decl.Decl)
}

func TestDeclarations(t *testing.T) {
	b := memclang.NewBuilder("decls.h", ir.LinuxAMD64)

	foo := b.Struct("Foo", memclang.Field("x", b.Int()))
	b.Typedef("Foo", foo)
	point := b.Typedef("point", b.UnnamedStruct(memclang.Field("x", b.Int()), memclang.Field("y", b.Int())))
	b.Enum("color", memclang.EnumConst{Name: "RED", Value: 0}, memclang.EnumConst{Name: "GREEN", Value: 1})
	opaque := b.DeclareStruct("Opaque")
	b.Function("open", b.Pointer(opaque), memclang.Param{Name: "name", Type: b.Pointer(b.Char())})
	b.Function("hidden", b.Void()).Static()
	b.Function("fast", b.Void()).Inline()
	b.Function("fill", b.Void(), memclang.Param{Name: "buf", Type: b.Array(b.Char(), 16)}, memclang.Param{Name: "p", Type: point})
	b.Var("counter", b.Int())
	b.Var("origin", b.UnnamedStruct(memclang.Field("x", b.Int())))
	b.TypedefParams("callback", b.Int(), false, memclang.Param{Name: "code", Type: b.Int()})
	b.Macro("FIVE", "5")
	b.FunctionMacro("MAX", "a > b ? a : b")
	b.BuiltinMacro("__STDC__", "1")
	top := parse(t, b)

	var names []string
	for _, m := range top.Members {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"Foo", "point", "color", "Opaque", "open", "fill", "counter", "origin", "callback", "FIVE"}, names)

	td := member(t, top, "point").(*ir.Typedef)
	nested := ir.NestedDecls(td)
	require.Len(t, nested, 1)
	assert.Equal(t, "[i32(x)i32(y)]", layoutOf(t, nested[0]).String())

	color := member(t, top, "color").(*ir.Scoped)
	require.Len(t, color.Members, 2)
	green := color.Members[1].(*ir.Constant)
	assert.Equal(t, int64(1), green.Value)
	assert.True(t, ir.EqualTypes(ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Int)), green.Type))

	op := member(t, top, "Opaque").(*ir.Scoped)
	_, hasLayout := op.Layout()
	assert.False(t, hasLayout)

	open := member(t, top, "open").(*ir.Function)
	ret := open.Type.Return.(*ir.Delegated).Type().(*ir.Declared)
	assert.Same(t, op, ret.Decl)
	require.Len(t, open.Params, 1)
	assert.Equal(t, "name", open.Params[0].Name())
	assert.Equal(t, ir.VarParameter, open.Params[0].Kind)

	fill := member(t, top, "fill").(*ir.Function)
	buf := fill.Params[0].Type.(*ir.Delegated)
	assert.Equal(t, ir.DelegatedPointer, buf.Kind)
	assert.True(t, ir.EqualTypes(ir.NewPrimitive(ir.Char), buf.Type()))

	origin := member(t, top, "origin").(*ir.Variable)
	assert.Len(t, ir.NestedDecls(origin), 1)

	cb := member(t, top, "callback").(*ir.Typedef)
	fn, ok := cb.Type.(*ir.FunctionType)
	require.True(t, ok)
	assert.Equal(t, []string{"code"}, fn.ParamNames)

	five := member(t, top, "FIVE").(*ir.Constant)
	assert.Equal(t, int64(5), five.Value)
}

func TestFatalDiagnostics(t *testing.T) {
	b := memclang.NewBuilder("bad.h", ir.LinuxAMD64)
	b.Struct("Foo", memclang.Field("x", b.Int()))
	b.Diagnostic(clang.SeverityWarning, "unused macro")
	b.Diagnostic(clang.SeverityError, "unknown type name 'bar'")

	core, logs := observer.New(zap.WarnLevel)
	_, err := Parse(b.Build(), ir.LinuxAMD64, zap.New(core))
	require.Error(t, err)

	var de *DiagnosticError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, clang.SeverityError, de.Diagnostic.Severity)
	assert.Contains(t, err.Error(), "unknown type name")

	assert.Equal(t, 1, logs.FilterMessage("unused macro").Len())
}
