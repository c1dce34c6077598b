package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ardanlabs/cextract/clang/ccindex"
	"github.com/ardanlabs/cextract/clang/memclang"
	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/parser"
	"github.com/ardanlabs/cextract/report"
)

// allow is an allow-list keyed by kind.
type allow map[IncludeKind][]string

func (a allow) Enabled() bool {
	return len(a) > 0
}

func (a allow) Included(kind IncludeKind, name string) bool {
	return slices.Contains(a[kind], name)
}

func at(line int) ir.Position {
	return ir.Position{Path: "t.h", Line: line, Col: 1}
}

var (
	intType    = ir.NewPrimitive(ir.Int)
	longType   = ir.NewPrimitive(ir.Long)
	voidType   = ir.NewPrimitive(ir.Void)
	longDouble = ir.NewPrimitive(ir.LongDouble)
)

// record builds a laid out struct or union from its fields.
func record(kind ir.ScopedKind, pos ir.Position, name string, fields ...ir.Declaration) *ir.Scoped {
	s := ir.NewScoped(kind, pos, name, fields...)

	var layouts []ir.Layout
	for _, f := range fields {
		var l ir.Layout
		switch f := f.(type) {
		case *ir.Variable:
			l, _ = ir.LinuxAMD64.LayoutOf(f.Type)
		case *ir.Scoped:
			l, _ = f.Layout()
		}
		if l != nil {
			layouts = append(layouts, ir.WithName(l, f.Name()))
		}
	}

	g := ir.NewStructGroup(layouts...)
	if kind == ir.ScopedUnion {
		g = ir.NewUnionGroup(layouts...)
	}
	ir.SetLayout(s, ir.WithName(g, name))
	ir.SetClangSize(s, g.BitSize())
	return s
}

func field(name string, t ir.Type) *ir.Variable {
	return ir.NewVariable(ir.VarField, at(0), name, t)
}

func names(ds []ir.Declaration) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Name())
	}
	return out
}

func skipped(ds []ir.Declaration) []string {
	var out []string
	for _, d := range ds {
		if ir.IsSkipped(d) {
			out = append(out, d.Name())
		}
	}
	return out
}

const shapesHeader = `#define SIZE 4

struct point { int x; int y; };
typedef struct { struct point a, b; } line;
enum mode { MODE_A, MODE_B = 4 };

int draw(struct point p, line *l);
int draw(struct point p, line *l);
long double precise(void);
void log_msg(int level, void (*cb)(const char *fmt, ...));
extern int counter;
`

func parseShapes(t *testing.T) *ir.Scoped {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shapes.h")
	require.NoError(t, os.WriteFile(path, []byte(shapesHeader), 0644))

	ix := ccindex.NewIndex(ir.LinuxAMD64)
	defer ix.Close()

	tu, err := ix.Parse(path, nil)
	require.NoError(t, err)
	require.Empty(t, tu.Diagnostics())

	res, err := parser.Parse(tu, ir.LinuxAMD64, zaptest.NewLogger(t))
	require.NoError(t, err)

	return res.Toplevel
}

func TestRunForwardDeclaredByValue(t *testing.T) {
	b := memclang.NewBuilder("fwd.h", ir.LinuxAMD64)
	opaque := b.DeclareStruct("Opaque")
	b.Function("take", b.Void(), memclang.Param{Name: "o", Type: opaque})
	b.Function("make", opaque)
	b.Function("use", b.Void(), memclang.Param{Name: "p", Type: b.Pointer(opaque)})

	log := zaptest.NewLogger(t)
	parsed, err := parser.Parse(b.Build(), ir.LinuxAMD64, log)
	require.NoError(t, err)

	res, err := Run(parsed.Toplevel, Config{ABI: ir.LinuxAMD64, HeaderName: "fwd_h"}, report.New(log))
	require.NoError(t, err)

	assert.Equal(t, []string{"Opaque", "take", "make", "use"}, names(res.Toplevel.Members))
	assert.Equal(t, []string{"take", "make"}, skipped(res.Toplevel.Members))
	assert.Equal(t, 2, res.Stats.Unsupported)
}

func TestRun(t *testing.T) {
	top := parseShapes(t)
	rep := report.New(zaptest.NewLogger(t))

	res, err := Run(top, Config{ABI: ir.LinuxAMD64, HeaderName: "shapes_h"}, rep)
	require.NoError(t, err)

	assert.Equal(t, Stats{Duplicates: 1, Unsupported: 2, Nested: 1}, res.Stats)
	assert.Equal(t, 3, rep.Warnings())
	assert.False(t, rep.HasErrors())

	members := res.Toplevel.Members
	assert.Equal(t,
		[]string{"point", "line", "MODE_A", "MODE_B", "draw", "draw", "precise", "log_msg", "counter", "SIZE"},
		names(members))
	assert.Equal(t, []string{"draw", "precise", "log_msg"}, skipped(members))

	modeB := members[3].(*ir.Constant)
	assert.Equal(t, int64(4), modeB.Value)
	enum, ok := ir.EnumConstantOf(modeB)
	require.True(t, ok)
	assert.Equal(t, "mode", enum)

	top2, _ := ir.TargetName(res.Toplevel)
	assert.Equal(t, []string{"shapes_h"}, top2)

	draw := members[4].(*ir.Function)
	name, _ := ir.TargetName(draw)
	assert.Equal(t, []string{"draw"}, name)
	var params []string
	for _, p := range draw.Params {
		n, _ := ir.TargetSimpleName(p)
		params = append(params, n)
	}
	assert.Equal(t, []string{"p", "l"}, params)

	_, ok = ir.TargetName(members[5])
	assert.False(t, ok, "skipped declarations are not named")

	line := members[1].(*ir.Typedef)
	nested := ir.NestedDecls(line)
	require.Len(t, nested, 1)
	assert.True(t, ir.IsNested(nested[0]))
	name, _ = ir.TargetName(nested[0])
	assert.Equal(t, []string{"line_0"}, name)

	size := members[9].(*ir.Constant)
	assert.Equal(t, int64(4), size.Value)

	assert.Len(t, res.Includes, 10)
}

func TestRunMissingDependency(t *testing.T) {
	top := parseShapes(t)
	rep := report.New(zaptest.NewLogger(t))

	cfg := Config{
		ABI:      ir.LinuxAMD64,
		Includes: allow{IncludeFunction: {"draw"}},
	}
	res, err := Run(top, cfg, rep)
	require.Error(t, err)
	require.NotNil(t, res)

	var mde *MissingDependencyError
	require.True(t, errors.As(err, &mde))
	assert.Equal(t, "draw", mde.Name)
	assert.Equal(t, "point", mde.Missing)
	assert.Equal(t, 1, res.Stats.MissingDeps)
	assert.Equal(t, 1, rep.Errors())

	var included []string
	for _, e := range res.Includes {
		if e.Included {
			included = append(included, e.Name)
		}
	}
	assert.Equal(t, []string{"draw", "draw"}, included)
}
