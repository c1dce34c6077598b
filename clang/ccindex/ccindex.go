// Package ccindex implements the clang interfaces on top of the
// modernc.org/cc C front end. Headers are preprocessed, parsed and type
// checked by cc; record layouts, enum values and the macro table are read
// from its AST. Macro snippets are evaluated by translating them as
// declarations after the header.
package ccindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"modernc.org/cc/v4"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

const (
	predefinedName = "<predefined>"
	builtinName    = "<builtin>"
)

// Index parses headers with cc. It understands -D, -U, -I and -isystem
// arguments and ignores the rest. The standard headers cc has no copy of
// (stdint.h, stddef.h, stdbool.h, stdarg.h) are written to a directory
// owned by the index and searched last.
type Index struct {
	abi ir.ABI
	dir string
}

func NewIndex(abi ir.ABI) *Index {
	return &Index{abi: abi}
}

// options are the compiler arguments the index understands.
type options struct {
	defines     []string
	includes    []string
	sysIncludes []string
}

func parseArgs(args []string) (options, error) {
	var opts options

	for i := 0; i < len(args); i++ {
		flag, value := args[i], ""
		switch {
		case flag == "-D" || flag == "-I" || flag == "-U" || flag == "-isystem":
			if i+1 >= len(args) {
				return opts, errors.Errorf("argument to '%s' is missing", flag)
			}
			i++
			value = args[i]
		case len(flag) > 2 && (strings.HasPrefix(flag, "-D") || strings.HasPrefix(flag, "-I") || strings.HasPrefix(flag, "-U")):
			flag, value = flag[:2], flag[2:]
		default:
			continue
		}

		switch flag {
		case "-D":
			name, body, ok := strings.Cut(value, "=")
			if !ok {
				body = "1"
			}
			opts.defines = append(opts.defines, fmt.Sprintf("#define %s %s", name, body))
		case "-U":
			opts.defines = append(opts.defines, "#undef "+value)
		case "-I":
			opts.includes = append(opts.includes, value)
		case "-isystem":
			opts.sysIncludes = append(opts.sysIncludes, value)
		}
	}

	return opts, nil
}

func (ix *Index) Parse(path string, args []string) (clang.TranslationUnit, error) {
	opts, err := parseArgs(args)
	if err != nil {
		return nil, err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	if err := ix.writeHeaders(); err != nil {
		return nil, err
	}

	cfg, err := ix.config(path, opts)
	if err != nil {
		return nil, err
	}

	predefined := predefinedMacros(ix.abi)
	if len(opts.defines) > 0 {
		predefined += strings.Join(opts.defines, "\n") + "\n"
	}

	tu := newTranslationUnit(ix.abi, path, cfg, []cc.Source{
		{Name: predefinedName, Value: predefined},
		{Name: builtinName, Value: cc.Builtin},
		{Name: path, Value: string(src)},
	})

	ast, err := cc.Translate(cfg, tu.sources)
	if err != nil {
		tu.diags = append(packedDiagnostics([]string{path}), diagnostics(err)...)
		return tu, nil
	}

	tu.load(ast)
	tu.diags = append(tu.diags, packedDiagnostics(tu.sourceFiles())...)

	return tu, nil
}

func (ix *Index) config(path string, opts options) (*cc.Config, error) {
	goos, goarch, ok := strings.Cut(ix.abi.Name, "/")
	if !ok {
		return nil, errors.Errorf("invalid ABI name %q", ix.abi.Name)
	}
	abi, err := cc.NewABI(goos, goarch)
	if err != nil {
		return nil, errors.Wrapf(err, "ABI %s", ix.abi.Name)
	}

	// Quoted includes are looked up next to the header first. -I
	// directories serve angle includes too, as they do for clang.
	includes := append([]string{filepath.Dir(path)}, opts.includes...)
	sys := append(append(append([]string(nil), opts.includes...), opts.sysIncludes...), ix.dir)

	return &cc.Config{
		ABI:             abi,
		IncludePaths:    includes,
		SysIncludePaths: sys,
	}, nil
}

// writeHeaders creates the directory of standard headers on first use.
func (ix *Index) writeHeaders() error {
	if ix.dir != "" {
		return nil
	}

	dir, err := os.MkdirTemp("", "cextract-include")
	if err != nil {
		return errors.Wrap(err, "creating standard header directory")
	}
	for name, src := range standardHeaders(ix.abi) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0644); err != nil {
			os.RemoveAll(dir)
			return errors.Wrapf(err, "writing %s", name)
		}
	}

	ix.dir = dir
	return nil
}

// Close removes the standard header directory. Translation units parsed by
// the index must not be reparsed after.
func (ix *Index) Close() error {
	if ix.dir == "" {
		return nil
	}
	err := os.RemoveAll(ix.dir)
	ix.dir = ""
	return err
}

var _ clang.Index = (*Index)(nil)
