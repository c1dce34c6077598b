//go:build !libclang

package main

import (
	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/clang/ccindex"
	"github.com/ardanlabs/cextract/ir"
)

func newIndex(abi ir.ABI) clang.Index {
	return ccindex.NewIndex(abi)
}
