package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ardanlabs/cextract/clang/ccindex"
	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/parser"
	"github.com/ardanlabs/cextract/pipeline"
	"github.com/ardanlabs/cextract/report"
)

const shapesHeader = `#define SIZE 4
#define NAME "shapes"

struct point { int x; int y; };
typedef struct { struct point a, b; } line;
enum mode { MODE_A, MODE_B = 4 };
union value { int i; double d; };
struct node { struct node *next; unsigned flags : 3; int v; };
struct tagged { int tag; union { int i; float f; }; };

int draw(struct point p, line *l);
_Bool ready(void);
double scale(double f, union value v);
int log_msg(const char *fmt, ...);
void walk(struct node *n);
extern int counter;
`

func emitShapes(t *testing.T) map[string]string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shapes.h")
	require.NoError(t, os.WriteFile(path, []byte(shapesHeader), 0644))

	ix := ccindex.NewIndex(ir.LinuxAMD64)
	defer ix.Close()

	tu, err := ix.Parse(path, nil)
	require.NoError(t, err)
	require.Empty(t, tu.Diagnostics())

	log := zaptest.NewLogger(t)
	parsed, err := parser.Parse(tu, ir.LinuxAMD64, log)
	require.NoError(t, err)

	res, err := pipeline.Run(parsed.Toplevel, pipeline.Config{ABI: ir.LinuxAMD64}, report.New(log))
	require.NoError(t, err)

	gen := New(Config{Package: "shapes", Library: "shapes", ABI: ir.LinuxAMD64}, log)
	files, err := gen.Emit(res.Toplevel)
	require.NoError(t, err)

	return files
}

// squash collapses runs of white space so gofmt alignment does not matter.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestEmitFiles(t *testing.T) {
	files := emitShapes(t)

	var names []string
	for name := range files {
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{"loader.go", "types.go", "constants.go", "functions.go"}, names)

	for name, code := range files {
		assert.True(t, strings.HasPrefix(code, "package shapes\n"), name)
	}

	assert.Contains(t, files["loader.go"], `filename = "libshapes.so"`)
}

func TestEmitTypes(t *testing.T) {
	types := squash(emitShapes(t)["types.go"])

	assert.Contains(t, types, `import "github.com/jupiterrider/ffi"`)
	assert.Contains(t, types, "// Point mirrors struct point. type Point struct { X int32 Y int32 }")
	assert.Contains(t, types, "type Line_0 struct { A Point B Point }")
	assert.Contains(t, types, "type Line = Line_0")
	assert.Contains(t, types, "type Value struct { _ [0]uint64 Data [8]byte }")
	assert.Contains(t, types, "Next *Node")
	assert.Contains(t, types, "// bitfields flags Bits0 [")
	assert.Contains(t, types, "V int32 }")
	assert.Regexp(t, `type Tagged struct \{ Tag int32 Tagged__anon_\d+_\d+ \}`, types)
	assert.Regexp(t, `type Tagged__anon_\d+_\d+ struct \{ _ \[0\]uint32 Data \[4\]byte \}`, types)

	assert.Contains(t, types, "var FFITypePoint = ffi.NewType( &ffi.TypeSint32, &ffi.TypeSint32, )")
	assert.Contains(t, types, "var FFITypeValue = ffi.NewType( &ffi.TypeUint64, )")
}

func TestEmitConstants(t *testing.T) {
	consts := squash(emitShapes(t)["constants.go"])

	assert.Contains(t, consts, "// enum mode MODE_A")
	assert.Regexp(t, `MODE_B u?int32 = 4`, consts)
	assert.Contains(t, consts, "SIZE int32 = 4")
	assert.Contains(t, consts, `NAME = "shapes"`)
}

func TestEmitFunctions(t *testing.T) {
	funcs := squash(emitShapes(t)["functions.go"])

	assert.Contains(t, funcs, "drawFunc ffi.Fun")
	assert.Contains(t, funcs, `if drawFunc, err = lib.Prep("draw", &ffi.TypeSint32, &FFITypePoint, &ffi.TypePointer); err != nil { return fmt.Errorf("draw: %w", err) }`)
	assert.Contains(t, funcs, "func Draw(p Point, l *Line) int32 { var result ffi.Arg drawFunc.Call(unsafe.Pointer(&result), unsafe.Pointer(&p), unsafe.Pointer(&l)) return int32(result) }")

	assert.Contains(t, funcs, `lib.Prep("ready", &ffi.TypeUint8)`)
	assert.Contains(t, funcs, "return result != 0")

	assert.Contains(t, funcs, `lib.Prep("scale", &ffi.TypeDouble, &ffi.TypeDouble, &FFITypeValue)`)
	assert.Contains(t, funcs, "func Scale(f float64, v Value) float64 { var result float64")

	assert.Contains(t, funcs, `lib.Prep("walk", &ffi.TypeVoid, &ffi.TypePointer)`)
	assert.Contains(t, funcs, "walkFunc.Call(nil, unsafe.Pointer(&n))")

	assert.Contains(t, funcs, "// log_msg is variadic and has no wrapper.")
	assert.NotContains(t, funcs, "log_msgFunc")

	assert.Contains(t, funcs, "counterAddr uintptr")
	assert.Contains(t, funcs, `if counterAddr, err = lib.Get("counter"); err != nil`)
	assert.Contains(t, funcs, "func Counter() *int32 { return (*int32)(unsafe.Pointer(counterAddr)) }")
}

func TestEmitDeterministic(t *testing.T) {
	assert.Equal(t, emitShapes(t), emitShapes(t))
}

func TestEmitEmpty(t *testing.T) {
	gen := New(Config{Package: "empty", Library: "empty", ABI: ir.LinuxAMD64}, nil)

	files, err := gen.Emit(ir.NewToplevel(ir.NoPosition))
	require.NoError(t, err)
	assert.NotContains(t, files["functions.go"], "import")
	assert.Contains(t, squash(files["functions.go"]), "func loadFuncs() error { return nil }")
	assert.Equal(t, "package empty\n", files["types.go"])
}

func TestPacked(t *testing.T) {
	i8 := ir.NewValue(ir.CarrierInt, 8, 8)
	i32 := ir.NewValue(ir.CarrierInt, 32, 32)

	tests := []struct {
		name   string
		layout *ir.GroupLayout
		want   bool
	}{
		{"natural", ir.NewStructGroup(i8, ir.NewPadding(24), i32), false},
		{"misaligned member", ir.NewStructGroup(i8, ir.NewValue(ir.CarrierInt, 32, 8)), true},
		{"short tail", ir.NewStructGroup(ir.NewValue(ir.CarrierInt, 32, 8), i8), true},
		{"bytes", ir.NewStructGroup(i8, i8, i8), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, packed(tt.layout))
		})
	}
}

func TestLayoutType(t *testing.T) {
	assert.Equal(t, "uint16", layoutType(ir.NewValue(ir.CarrierUint, 16, 16)))
	assert.Equal(t, "float32", layoutType(ir.NewValue(ir.CarrierFloat, 32, 32)))
	assert.Equal(t, "uintptr", layoutType(ir.NewValue(ir.CarrierAddress, 64, 64)))
	assert.Equal(t, "[2]float64", layoutType(ir.NewSequence(2, ir.NewValue(ir.CarrierFloat, 64, 64))))
	assert.Equal(t, "[16]byte", layoutType(ir.NewValue(ir.CarrierFloat, 128, 128)))
}

func TestChunks(t *testing.T) {
	f32 := ir.NewValue(ir.CarrierFloat, 32, 32)
	f64 := ir.NewValue(ir.CarrierFloat, 64, 64)

	assert.Equal(t, []string{"&ffi.TypeDouble"}, chunks(ir.NewUnionGroup(f32, f64)))
	assert.Equal(t, []string{"&ffi.TypeUint32", "&ffi.TypeUint32"},
		chunks(ir.NewUnionGroup(ir.NewValue(ir.CarrierInt, 32, 32), ir.NewSequence(2, f32))))
	assert.Equal(t, []string{"&ffi.TypeUint8"},
		chunks(ir.NewStructGroup(ir.NewValue(ir.CarrierUint, 3, 1), ir.NewPadding(5))))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "Line_0", toGoName("line_0"))
	assert.Equal(t, "X_anon_3_1", toGoName("_anon_3_1"))
	assert.Equal(t, "drawFunc", toLowerCamel("Draw")+"Func")
	assert.Equal(t, "int32_", toParamName("int32"))

	n := make(namer)
	n.reserve("Load")
	assert.Equal(t, "Load_", n.name("Load"))
	assert.Equal(t, "Point", n.name("Point"))
	assert.Equal(t, "Point_", n.name("Point"))
}
