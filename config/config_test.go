package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardanlabs/cextract/pipeline"
)

const sample = `
headers: [png.h]
include_dirs: [/usr/include/libpng]
defines: [PNG_NO_STDIO, "LEVEL=2"]
clang_args: -std=c11 '-DNAME=a b'
library: png16
package: png
include:
  function: ["png_create_*", png_destroy_read_struct]
  struct: [png_color]
platform: linux/arm64
dialect: java
`

func TestDecode(t *testing.T) {
	opts, err := Decode([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, opts.Validate())

	assert.Equal(t, []string{"png.h"}, opts.Headers)
	assert.Equal(t, "png", opts.Package)
	assert.Equal(t, "png16", opts.LibraryName())
	assert.Equal(t, ".", opts.Output, "unset fields keep their defaults")
	assert.Equal(t, "info", opts.LogLevel)

	abi, err := opts.ABI()
	require.NoError(t, err)
	assert.Equal(t, "linux/arm64", abi.Name)

	args, err := opts.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"-I/usr/include/libpng", "-DPNG_NO_STDIO", "-DLEVEL=2", "-std=c11", "-DNAME=a b"}, args)
}

func TestLibraryName(t *testing.T) {
	opts := Default()
	opts.Headers = []string{"include/zlib.h", "include/zconf.h"}
	assert.Equal(t, "zlib", opts.LibraryName())

	opts.Library = "z"
	assert.Equal(t, "z", opts.LibraryName())
}

func TestDecodeUnknownField(t *testing.T) {
	_, err := Decode([]byte("headers: [a.h]\nheader: b.h\n"))
	assert.Error(t, err)
}

func TestDecodeEmpty(t *testing.T) {
	opts, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cextract.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "java", opts.Dialect)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *Options)
	}{
		{"no header", func(o *Options) { o.Headers = nil }},
		{"platform", func(o *Options) { o.Platform = "plan9/386" }},
		{"dialect", func(o *Options) { o.Dialect = "rust" }},
		{"dump format", func(o *Options) { o.DumpFormat = "xml" }},
		{"include kind", func(o *Options) { o.Include = map[string][]string{"macro": {"A"}} }},
		{"glob", func(o *Options) { o.Include = map[string][]string{"function": {"["}} }},
		{"clang args", func(o *Options) { o.ClangArgs = `-DX="unterminated` }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			opts.Headers = []string{"a.h"}
			require.NoError(t, opts.Validate())

			tt.modify(&opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestIncludeSet(t *testing.T) {
	opts, err := Decode([]byte(sample))
	require.NoError(t, err)

	set, err := opts.IncludeSet()
	require.NoError(t, err)

	assert.True(t, set.Enabled())
	assert.True(t, set.Included(pipeline.IncludeFunction, "png_create_read_struct"))
	assert.True(t, set.Included(pipeline.IncludeFunction, "png_destroy_read_struct"))
	assert.False(t, set.Included(pipeline.IncludeFunction, "png_destroy_write_struct"))
	assert.False(t, set.Included(pipeline.IncludeStruct, "png_create_x"), "patterns apply to their kind only")
	assert.True(t, set.Included(pipeline.IncludeStruct, "png_color"))
	assert.Equal(t, []string{"png_create_*", "png_destroy_read_struct"}, set.Patterns(pipeline.IncludeFunction))
}

func TestIncludeSetEmpty(t *testing.T) {
	var nilSet *IncludeSet
	assert.False(t, nilSet.Enabled())
	assert.True(t, nilSet.Included(pipeline.IncludeVar, "x"))

	set, err := Default().IncludeSet()
	require.NoError(t, err)
	assert.False(t, set.Enabled())
}

func TestIncludeSetBadGlob(t *testing.T) {
	set := NewIncludeSet()

	err := set.Add(pipeline.IncludeFunction, "png_[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "png_[")
	assert.False(t, set.Enabled())

	require.NoError(t, set.Add(pipeline.IncludeFunction, "png_{read,write}"))
	assert.True(t, set.Included(pipeline.IncludeFunction, "png_write"))
	assert.False(t, set.Included(pipeline.IncludeFunction, "png_info"))
}
