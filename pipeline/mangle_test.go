package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardanlabs/cextract/ir"
)

func targetName(t *testing.T, d ir.Attributed) []string {
	t.Helper()

	name, ok := ir.TargetName(d)
	require.True(t, ok, "no target name")
	return name
}

func simpleName(t *testing.T, d ir.Attributed) string {
	t.Helper()

	name, ok := ir.TargetSimpleName(d)
	require.True(t, ok, "no target name")
	return name
}

func TestMangleCaseCollisions(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    []string
	}{
		{DialectJava, []string{"Foo", "foo$0"}},
		{DialectGo, []string{"Foo", "foo_0"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			rec := record(ir.ScopedStruct, at(1), "Rec", field("Foo", intType), field("foo", intType))
			top := ir.NewToplevel(ir.NoPosition, rec)

			MangleNames(top, "t_h", tt.dialect)

			assert.Equal(t, []string{"Rec"}, targetName(t, rec))
			assert.Equal(t, tt.want, []string{simpleName(t, rec.Members[0]), simpleName(t, rec.Members[1])})
		})
	}
}

func TestMangleUnique(t *testing.T) {
	in := []string{"foo", "Foo", "foo_0", "FOO", "bar", "BAR"}

	var decls []ir.Declaration
	for i, name := range in {
		decls = append(decls, ir.NewConstant(at(i), name, int64(i), intType))
	}
	top := ir.NewToplevel(ir.NoPosition, decls...)

	MangleNames(top, "t_h", DialectGo)

	var got []string
	folded := make(map[string]bool)
	for _, d := range decls {
		name := simpleName(t, d)
		got = append(got, name)
		folded[strings.ToLower(name)] = true
	}
	assert.Equal(t, []string{"foo", "Foo_0", "foo_0_1", "FOO_2", "bar", "BAR_3"}, got)
	assert.Len(t, folded, len(in))
}

func TestMangleDeterministic(t *testing.T) {
	build := func() *ir.Scoped {
		anon := record(ir.ScopedUnion, at(3), "", field("i", intType), field("f", ir.NewPrimitive(ir.Float)))
		ir.SetAnonymousStruct(anon, ir.AnonymousStruct{Offset: 4, HasOffset: true})
		point := record(ir.ScopedStruct, at(7), "", field("x", intType))
		td := ir.NewTypedefDecl(at(7), "point", ir.NewDeclared(point))
		ir.SetNestedDecls(td, []*ir.Scoped{point})
		ir.SetNested(point)

		return ir.NewToplevel(ir.NoPosition,
			record(ir.ScopedStruct, at(2), "S", field("tag", intType), anon),
			td,
			ir.NewFunction(at(9), "type", ir.NewFunctionType(false, voidType, intType, intType),
				ir.NewVariable(ir.VarParameter, at(9), "", intType),
				ir.NewVariable(ir.VarParameter, at(9), "range", intType)),
		)
	}

	collect := func(top *ir.Scoped) []string {
		var out []string
		var walk func(d ir.Declaration)
		walk = func(d ir.Declaration) {
			if name, ok := ir.TargetName(d); ok {
				out = append(out, strings.Join(name, "."))
			}
			for _, n := range ir.NestedDecls(d) {
				walk(n)
			}
			switch d := d.(type) {
			case *ir.Scoped:
				for _, m := range d.Members {
					walk(m)
				}
			case *ir.Function:
				for _, p := range d.Params {
					walk(p)
				}
			}
		}
		walk(top)
		return out
	}

	first, second := build(), build()
	MangleNames(first, "t_h", DialectGo)
	MangleNames(second, "t_h", DialectGo)

	want := []string{
		"t_h",
		"S", "tag", "S._anon_3_1", "i", "f",
		"point", "point_0", "x",
		"type_", "x0", "range_",
	}
	assert.Equal(t, want, collect(first))
	assert.Equal(t, collect(first), collect(second))
}

func TestMangleEnclosingScope(t *testing.T) {
	inner := record(ir.ScopedStruct, at(2), "outer", field("v", intType))
	ir.SetNested(inner)
	outer := record(ir.ScopedStruct, at(1), "outer",
		field("child", ir.NewDeclared(inner)),
		field("outer", intType),
	)
	top := ir.NewToplevel(ir.NoPosition, outer)

	MangleNames(top, "t_h", DialectJava)

	assert.Equal(t, []string{"outer"}, targetName(t, outer))
	assert.Equal(t, []string{"outer", "outer$0"}, targetName(t, inner))
	assert.Equal(t, "outer", simpleName(t, outer.Members[1]), "fields may share the record's name")
}

func TestMangleSkipped(t *testing.T) {
	c := ir.NewConstant(at(1), "A", int64(1), intType)
	ir.Skip(c)
	d := ir.NewConstant(at(2), "a", int64(2), intType)
	top := ir.NewToplevel(ir.NoPosition, c, d)

	MangleNames(top, "t_h", DialectGo)

	_, ok := ir.TargetName(c)
	assert.False(t, ok)
	assert.Equal(t, "a", simpleName(t, d), "skipped declarations reserve no name")
}

func TestSafeIdentifier(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{DialectGo, "func", "func_"},
		{DialectGo, "int", "int"},
		{DialectGo, "$anon$3:1", "_anon_3_1"},
		{DialectGo, "9lives", "_9lives"},
		{DialectGo, "", "_"},
		{DialectJava, "int", "int_"},
		{DialectJava, "String", "String_"},
		{DialectJava, "$anon$3:1", "$anon$3_1"},
		{DialectJava, "func", "func"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.dialect.SafeIdentifier(tt.in), "%s %q", tt.dialect, tt.in)
	}

	assert.Equal(t, "foo_h", DialectGo.HeaderScopeName("include/foo.h"))
	assert.Equal(t, "my_lib_h", DialectGo.HeaderScopeName("my-lib.h"))
}
