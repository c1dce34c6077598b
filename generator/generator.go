// Package generator emits Go bindings for github.com/jupiterrider/ffi from
// a declaration tree that went through the pipeline. It reads target names,
// Skip marks, layouts and function descriptors, and never changes the tree.
package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"text/template"

	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
)

// Emitter turns a processed declaration tree into source files keyed by
// file name.
type Emitter interface {
	Emit(top *ir.Scoped) (map[string]string, error)
}

type Config struct {
	Package string
	Library string
	ABI     ir.ABI
}

type Generator struct {
	cfg Config
	log *zap.Logger
}

var _ Emitter = (*Generator)(nil)

func New(cfg Config, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		cfg: cfg,
		log: log,
	}
}

// Emit renders loader.go, types.go, constants.go and functions.go. The
// output is gofmt'ed, so a syntax error in it is reported here.
func (g *Generator) Emit(top *ir.Scoped) (map[string]string, error) {
	e := newEmission(g.cfg.ABI, g.log)
	if err := e.collect(top); err != nil {
		return nil, err
	}

	files := make(map[string]string)

	loaderCode, err := g.generateLoader()
	if err != nil {
		return nil, fmt.Errorf("generating loader: %w", err)
	}
	files["loader.go"] = loaderCode
	files["types.go"] = g.generateTypes(e)
	files["constants.go"] = g.generateConstants(e)
	files["functions.go"] = g.generateFunctions(e)

	for name, code := range files {
		formatted, err := format.Source([]byte(code))
		if err != nil {
			return nil, fmt.Errorf("formatting %s: %w", name, err)
		}
		files[name] = string(formatted)
	}

	g.log.Debug("emitted bindings",
		zap.String("package", g.cfg.Package),
		zap.Int("records", len(e.queue)),
		zap.Int("functions", e.funcs),
		zap.Int("variables", e.vars),
	)

	return files, nil
}

var loaderTemplate = template.Must(template.New("loader").Parse(`package {{.Package}}

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/jupiterrider/ffi"
)

var lib ffi.Lib

// Load opens the {{.LibName}} library found in dir and resolves its symbols.
func Load(dir string) error {
	var err error
	lib, err = ffi.Load(getLibraryPath(dir))
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	if err := loadFuncs(); err != nil {
		return err
	}

	return nil
}

func getLibraryPath(basePath string) string {
	var filename string
	switch runtime.GOOS {
	case "linux", "freebsd":
		filename = "lib{{.LibName}}.so"
	case "darwin":
		filename = "lib{{.LibName}}.dylib"
	case "windows":
		filename = "{{.LibName}}.dll"
	default:
		filename = "lib{{.LibName}}.so"
	}
	return filepath.Join(basePath, filename)
}
`))

func (g *Generator) generateLoader() (string, error) {
	var buf bytes.Buffer
	err := loaderTemplate.Execute(&buf, map[string]string{
		"Package": g.cfg.Package,
		"LibName": g.cfg.Library,
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (g *Generator) generateTypes(e *emission) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "package %s\n\n", g.cfg.Package)
	if e.recordTypes.Len() > 0 {
		fmt.Fprintf(&buf, "import \"github.com/jupiterrider/ffi\"\n\n")
	}
	buf.Write(e.records.Bytes())
	buf.Write(e.recordTypes.Bytes())
	buf.Write(e.aliases.Bytes())

	return buf.String()
}

func (g *Generator) generateConstants(e *emission) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "package %s\n\n", g.cfg.Package)
	if e.constants.Len() > 0 {
		fmt.Fprintf(&buf, "const (\n")
		buf.Write(e.constants.Bytes())
		fmt.Fprintf(&buf, ")\n")
	}

	return buf.String()
}

func (g *Generator) generateFunctions(e *emission) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "package %s\n\n", g.cfg.Package)

	symbols := e.funcs + e.vars
	if symbols > 0 {
		fmt.Fprintf(&buf, "import (\n")
		fmt.Fprintf(&buf, "\t\"fmt\"\n")
		fmt.Fprintf(&buf, "\t\"unsafe\"\n")
		if e.funcs > 0 {
			fmt.Fprintf(&buf, "\n\t\"github.com/jupiterrider/ffi\"\n")
		}
		fmt.Fprintf(&buf, ")\n\n")

		fmt.Fprintf(&buf, "var (\n")
		buf.Write(e.symbols.Bytes())
		fmt.Fprintf(&buf, ")\n\n")
	}

	buf.Write(e.ffiTypes.Bytes())

	fmt.Fprintf(&buf, "func loadFuncs() error {\n")
	if symbols > 0 {
		fmt.Fprintf(&buf, "\tvar err error\n\n")
		buf.Write(e.loads.Bytes())
	}
	fmt.Fprintf(&buf, "\treturn nil\n")
	fmt.Fprintf(&buf, "}\n\n")

	buf.Write(e.wrappers.Bytes())

	return buf.String()
}
