package pipeline

import (
	"bytes"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/report"
)

func includeTree() *ir.Scoped {
	s := record(ir.ScopedStruct, at(5), "S", field("x", intType))
	u := record(ir.ScopedUnion, at(6), "U", field("i", intType))
	enum := ir.NewScoped(ir.ScopedEnum, at(7), "E", ir.NewConstant(at(7), "RED", int64(0), intType))

	return ir.NewToplevel(ir.NoPosition,
		ir.NewConstant(at(1), "A", int64(1), intType),
		ir.NewVariable(ir.VarGlobal, at(2), "v", intType),
		ir.NewFunction(at(3), "f", ir.NewFunctionType(false, voidType)),
		ir.NewTypedefDecl(at(4), "t", intType),
		s, u, enum,
	)
}

func TestFilterIncludes(t *testing.T) {
	top := includeTree()
	includes := allow{
		IncludeFunction: {"f"},
		IncludeStruct:   {"S"},
		IncludeConstant: {"RED"},
	}

	entries := FilterIncludes(top, includes, report.New(nil))

	assert.Equal(t, []string{"A", "v", "t", "U"}, skipped(top.Members))

	s := top.Members[4].(*ir.Scoped)
	assert.False(t, ir.IsSkipped(s.Members[0]), "fields are never filtered")

	enum := top.Members[6].(*ir.Scoped)
	assert.False(t, ir.IsSkipped(enum))
	assert.False(t, ir.IsSkipped(enum.Members[0]))

	var got []string
	for _, e := range entries {
		got = append(got, e.Kind.String()+" "+e.Name)
	}
	assert.Equal(t, []string{"constant A", "var v", "function f", "typedef t", "struct S", "union U", "constant RED"}, got)
	assert.Equal(t, "t.h", entries[0].Header)
}

func TestFilterIncludesWithoutList(t *testing.T) {
	top := includeTree()

	entries := FilterIncludes(top, nil, report.New(nil))
	assert.Empty(t, skipped(top.Members))
	for _, e := range entries {
		assert.True(t, e.Included, e.Name)
	}

	top = includeTree()
	FilterIncludes(top, allow{}, report.New(nil))
	assert.Empty(t, skipped(top.Members))
}

var dumpEntries = []IncludeEntry{
	{Kind: IncludeStruct, Name: "S", Header: "a.h", Included: true},
	{Kind: IncludeVar, Name: "v", Header: "a.h", Included: false},
	{Kind: IncludeConstant, Name: "B", Header: "b.h", Included: true},
	{Kind: IncludeFunction, Name: "f", Header: "a.h", Included: true},
}

func TestDumpIncludesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DumpIncludes(&buf, dumpEntries, DumpText))

	want := "#### Extracted from: a.h\n\n" +
		"--include-function f # header: a.h\n" +
		"--include-struct S   # header: a.h\n" +
		"\n" +
		"#### Extracted from: b.h\n\n" +
		"--include-constant B # header: b.h\n"
	assert.Equal(t, want, buf.String())
}

func TestDumpIncludesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DumpIncludes(&buf, dumpEntries, DumpJSON))

	var got []map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 4)

	assert.Equal(t, "var", got[0]["kind"])
	assert.Equal(t, "v", got[0]["name"])
	assert.Equal(t, false, got[0]["included"])
	assert.Equal(t, "function", got[1]["kind"])
	assert.Equal(t, "b.h", got[3]["header"])
}

func TestDumpIncludesErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, DumpIncludes(&buf, dumpEntries, "xml"))

	require.NoError(t, DumpIncludes(&buf, nil, DumpJSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestParseIncludeKind(t *testing.T) {
	for _, k := range IncludeKinds() {
		got, err := ParseIncludeKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	assert.Equal(t, "include-typedef", IncludeTypedef.OptionName())

	_, err := ParseIncludeKind("macro")
	assert.Error(t, err)
}
