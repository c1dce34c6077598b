// Package config holds the options of an extraction run. Options come from
// an optional YAML file and are then overridden by command line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/pipeline"
)

// Options is the full set of settings of a run.
type Options struct {
	Headers     []string `yaml:"headers"`
	IncludeDirs []string `yaml:"include_dirs"`
	Defines     []string `yaml:"defines"`

	// ClangArgs is passed to the parser after the include dirs and
	// defines. It is split like a shell command line.
	ClangArgs string `yaml:"clang_args"`

	// Library is the shared library the bindings load, without prefix
	// or extension. Empty uses the name of the first header.
	Library    string `yaml:"library"`
	Output     string `yaml:"output"`
	Package    string `yaml:"package"`
	HeaderName string `yaml:"header_name"`

	// Include maps an include kind ("function", "struct", ...) to glob
	// patterns of the symbols to keep.
	Include map[string][]string `yaml:"include"`

	DumpIncludes string `yaml:"dump_includes"`
	DumpFormat   string `yaml:"dump_format"`

	Platform string `yaml:"platform"`
	Dialect  string `yaml:"dialect"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the options used when nothing is configured.
func Default() Options {
	return Options{
		Output:     ".",
		Package:    "bindings",
		DumpFormat: string(pipeline.DumpText),
		Platform:   HostPlatform(),
		Dialect:    string(pipeline.DialectGo),
		LogLevel:   "info",
	}
}

// HostPlatform returns the platform of the running program, or linux/amd64
// when no ABI is registered for it.
func HostPlatform() string {
	host := runtime.GOOS + "/" + runtime.GOARCH
	if slices.Contains(ir.Platforms(), host) {
		return host
	}
	return ir.LinuxAMD64.Name
}

// Load reads a YAML config file over the defaults. Unknown fields are an
// error.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading config: %w", err)
	}

	opts, err := Decode(data)
	if err != nil {
		return Options{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	return opts, nil
}

// Decode parses YAML config data over the defaults.
func Decode(data []byte) (Options, error) {
	opts := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, err
	}

	return opts, nil
}

// Validate checks the values that are not checked by the type system.
func (o Options) Validate() error {
	if len(o.Headers) == 0 {
		return errors.New("no header given")
	}

	if _, err := ir.ABIFor(o.Platform); err != nil {
		return fmt.Errorf("%w, expected one of %v", err, ir.Platforms())
	}

	if !slices.Contains(pipeline.Dialects(), pipeline.Dialect(o.Dialect)) {
		return fmt.Errorf("unknown dialect %q, expected one of %v", o.Dialect, pipeline.Dialects())
	}

	switch pipeline.DumpFormat(o.DumpFormat) {
	case pipeline.DumpText, pipeline.DumpJSON:
	default:
		return fmt.Errorf("unknown dump format %q", o.DumpFormat)
	}

	if _, err := o.IncludeSet(); err != nil {
		return err
	}

	if _, err := o.Args(); err != nil {
		return err
	}

	return nil
}

// ABI returns the ABI of the configured platform.
func (o Options) ABI() (ir.ABI, error) {
	return ir.ABIFor(o.Platform)
}

// LibraryName returns the configured library, or the base name of the first
// header without its extension.
func (o Options) LibraryName() string {
	if o.Library != "" || len(o.Headers) == 0 {
		return o.Library
	}
	base := filepath.Base(o.Headers[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IncludeSet compiles the include lists.
func (o Options) IncludeSet() (*IncludeSet, error) {
	set := NewIncludeSet()

	for name, patterns := range o.Include {
		kind, err := pipeline.ParseIncludeKind(name)
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			if err := set.Add(kind, p); err != nil {
				return nil, err
			}
		}
	}

	return set, nil
}

// Args returns the parser arguments: include dirs, defines, then the extra
// clang arguments.
func (o Options) Args() ([]string, error) {
	var args []string
	for _, dir := range o.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	for _, d := range o.Defines {
		args = append(args, "-D"+d)
	}

	extra, err := shellquote.Split(o.ClangArgs)
	if err != nil {
		return nil, fmt.Errorf("splitting clang args: %w", err)
	}

	return append(args, extra...), nil
}
