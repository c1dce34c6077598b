//go:build libclang

package main

import (
	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/clang/libclang"
	"github.com/ardanlabs/cextract/ir"
)

// newIndex ignores abi: libclang lays records out for the target given
// with --clang-args.
func newIndex(ir.ABI) clang.Index {
	return libclang.NewIndex()
}
