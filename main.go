// Command cextract reads C headers and writes Go bindings that call the
// library through libffi.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kballard/go-shellquote"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/config"
	"github.com/ardanlabs/cextract/generator"
	"github.com/ardanlabs/cextract/parser"
	"github.com/ardanlabs/cextract/pipeline"
	"github.com/ardanlabs/cextract/report"
)

func main() {
	args, err := expandArgFiles(os.Args, os.ReadFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := newApp().Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	flags := []cli.Flag{
		&cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML file with default options",
		},
		&cli.StringSliceFlag{
			Name:    "include-dir",
			Aliases: []string{"I"},
			Usage:   "Add a directory to the include search path",
		},
		&cli.StringSliceFlag{
			Name:    "define",
			Aliases: []string{"D"},
			Usage:   "Define a macro, as NAME or NAME=VALUE",
		},
		&cli.StringFlag{
			Name:  "clang-args",
			Usage: "Extra arguments for the parser, split like a shell command line",
		},
		&cli.StringFlag{
			Name:    "library",
			Aliases: []string{"l"},
			Usage:   "Library to load, e.g. 'png16' for libpng16.so (default: name of the first header)",
		},
		&cli.PathFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory for generated Go files",
		},
		&cli.StringFlag{
			Name:    "package",
			Aliases: []string{"p"},
			Usage:   "Go package name",
		},
		&cli.StringFlag{
			Name:  "header-name",
			Usage: "Name of the header scope (default: derived from the first header)",
		},
		&cli.PathFlag{
			Name:  "dump-includes",
			Usage: "Write the include decisions to a file",
		},
		&cli.StringFlag{
			Name:  "dump-format",
			Usage: "Format of --dump-includes: text or json",
		},
		&cli.StringFlag{
			Name:  "platform",
			Usage: "Target platform as goos/goarch",
		},
		&cli.StringFlag{
			Name:  "dialect",
			Usage: "Naming dialect: go or java",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:  "log-json",
			Usage: "Log as JSON",
		},
	}

	for _, kind := range pipeline.IncludeKinds() {
		flags = append(flags, &cli.StringSliceFlag{
			Name:  kind.OptionName(),
			Usage: fmt.Sprintf("Include a %s by name or glob pattern", kind),
		})
	}

	return &cli.App{
		Name:      "cextract",
		Usage:     "Generate Go bindings for a C library",
		ArgsUsage: "header.h...",
		Description: `Arguments starting with @ name files holding more arguments.

The headers are parsed, the declarations are filtered and named, and the
bindings are written as loader.go, types.go, constants.go and functions.go.`,
		Flags:  flags,
		Action: run,
	}
}

// optionsFrom merges the config file and the flags that were set.
func optionsFrom(c *cli.Context) (config.Options, error) {
	opts := config.Default()
	if c.IsSet("config") {
		var err error
		if opts, err = config.Load(c.Path("config")); err != nil {
			return config.Options{}, err
		}
	}

	if c.NArg() > 0 {
		opts.Headers = c.Args().Slice()
	}

	opts.IncludeDirs = append(opts.IncludeDirs, c.StringSlice("include-dir")...)
	opts.Defines = append(opts.Defines, c.StringSlice("define")...)

	strs := map[string]*string{
		"clang-args":    &opts.ClangArgs,
		"library":       &opts.Library,
		"output":        &opts.Output,
		"package":       &opts.Package,
		"header-name":   &opts.HeaderName,
		"dump-includes": &opts.DumpIncludes,
		"dump-format":   &opts.DumpFormat,
		"platform":      &opts.Platform,
		"dialect":       &opts.Dialect,
		"log-level":     &opts.LogLevel,
	}
	for name, p := range strs {
		if c.IsSet(name) {
			*p = c.String(name)
		}
	}
	if c.IsSet("log-json") {
		opts.LogJSON = c.Bool("log-json")
	}

	for _, kind := range pipeline.IncludeKinds() {
		patterns := c.StringSlice(kind.OptionName())
		if len(patterns) == 0 {
			continue
		}
		if opts.Include == nil {
			opts.Include = make(map[string][]string)
		}
		opts.Include[kind.String()] = append(opts.Include[kind.String()], patterns...)
	}

	return opts, nil
}

func run(c *cli.Context) error {
	opts, err := optionsFrom(c)
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	log, err := report.NewLogger(opts.LogLevel, opts.LogJSON)
	if err != nil {
		return err
	}
	defer log.Sync()

	abi, err := opts.ABI()
	if err != nil {
		return err
	}
	includes, err := opts.IncludeSet()
	if err != nil {
		return err
	}
	args, err := opts.Args()
	if err != nil {
		return err
	}
	dialect := pipeline.Dialect(opts.Dialect)

	index := newIndex(abi)
	defer index.Close()

	tu, cleanup, err := parseHeaders(index, opts.Headers, args)
	if err != nil {
		return err
	}
	defer cleanup()
	defer tu.Close()

	parsed, err := parser.Parse(tu, abi, log)
	if err != nil {
		return fmt.Errorf("parsing headers: %w", err)
	}
	log.Debug("macros resolved", zap.Int("rounds", parsed.MacroRounds))

	headerName := opts.HeaderName
	if headerName == "" && len(opts.Headers) > 1 {
		headerName = dialect.HeaderScopeName(opts.Headers[0])
	}

	rep := report.New(log)
	res, runErr := pipeline.Run(parsed.Toplevel, pipeline.Config{
		ABI:        abi,
		Includes:   includes,
		HeaderName: headerName,
		Dialect:    dialect,
	}, rep)

	// The include decisions are written even when the dependency check
	// fails, since they are what the allow-list is fixed from.
	if opts.DumpIncludes != "" && res != nil {
		if err := dumpIncludes(opts.DumpIncludes, res.Includes, pipeline.DumpFormat(opts.DumpFormat)); err != nil {
			return err
		}
		log.Info("include decisions written", zap.String("path", opts.DumpIncludes), zap.Int("entries", len(res.Includes)))
	}
	if runErr != nil {
		return runErr
	}

	if dialect != pipeline.DialectGo {
		log.Warn("no emitter for dialect, skipping generation", zap.String("dialect", opts.Dialect))
		return nil
	}

	gen := generator.New(generator.Config{
		Package: opts.Package,
		Library: opts.LibraryName(),
		ABI:     abi,
	}, log)

	files, err := gen.Emit(res.Toplevel)
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	if err := writeFiles(opts.Output, files, log); err != nil {
		return err
	}

	log.Info("done",
		zap.Int("warnings", rep.Warnings()),
		zap.Int("skipped", res.Stats.NotIncluded+res.Stats.Duplicates+res.Stats.Unsupported),
	)

	if rep.HasErrors() {
		return fmt.Errorf("%d errors reported", rep.Errors())
	}

	return nil
}

// parseHeaders parses a single header directly. Several headers are parsed
// as one unit through a generated header that includes all of them; it is
// removed by cleanup, which must run after the unit is closed.
func parseHeaders(index clang.Index, headers []string, args []string) (clang.TranslationUnit, func(), error) {
	if len(headers) == 1 {
		tu, err := index.Parse(headers[0], args)
		return tu, func() {}, err
	}

	dir, err := os.MkdirTemp("", "cextract")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	var src strings.Builder
	for _, h := range headers {
		abs, err := filepath.Abs(h)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		fmt.Fprintf(&src, "#include %q\n", abs)
	}

	path := filepath.Join(dir, "cextract_all.h")
	if err := os.WriteFile(path, []byte(src.String()), 0644); err != nil {
		cleanup()
		return nil, nil, err
	}

	tu, err := index.Parse(path, args)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return tu, cleanup, nil
}

func dumpIncludes(path string, entries []pipeline.IncludeEntry, format pipeline.DumpFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating include dump: %w", err)
	}

	if err := pipeline.DumpIncludes(f, entries, format); err != nil {
		f.Close()
		return fmt.Errorf("writing include dump: %w", err)
	}

	return f.Close()
}

func writeFiles(dir string, files map[string]string, log *zap.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(files[name]), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Info("generated", zap.String("path", path), zap.String("size", humanize.Bytes(uint64(len(files[name])))))
	}

	return nil
}

// expandArgFiles replaces every argument "@file" after the program name with
// the arguments read from file, split like a shell command line. A word
// starting with # comments out the rest of its line, so an include dump can
// be used as an argument file.
func expandArgFiles(args []string, read func(string) ([]byte, error)) ([]string, error) {
	if len(args) == 0 {
		return args, nil
	}

	out := []string{args[0]}
	for _, arg := range args[1:] {
		name, ok := strings.CutPrefix(arg, "@")
		if !ok || name == "" {
			out = append(out, arg)
			continue
		}

		data, err := read(name)
		if err != nil {
			return nil, fmt.Errorf("reading argument file: %w", err)
		}

		words, err := shellquote.Split(stripComments(string(data)))
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", name, err)
		}
		out = append(out, words...)
	}

	return out, nil
}

func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		for j := 0; j < len(line); j++ {
			if line[j] == '#' && (j == 0 || line[j-1] == ' ' || line[j-1] == '\t') {
				lines[i] = line[:j]
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}
