// Package pipeline turns the declaration tree of a translation unit into
// the tree an emitter consumes. The stages run in a fixed order and only
// add attributes: a declaration left out of the output is marked Skip, so
// the identity of every node stays valid for the later stages.
//
//  1. include filter
//  2. enum constant lifting
//  3. duplicate filter
//  4. unsupported construct filter
//  5. missing dependency check
//  6. nested declaration discovery
//  7. name mangling
//
// Only the missing dependency check can fail the run.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/report"
)

// Config holds the settings of a run.
type Config struct {
	ABI ir.ABI

	// Includes is the allow-list. Nil includes everything.
	Includes Includes

	// HeaderName names the header scope. Empty derives it from the
	// position of the toplevel declaration.
	HeaderName string

	Dialect Dialect
}

// Stats counts what the stages did.
type Stats struct {
	NotIncluded int
	Duplicates  int
	Unsupported int
	MissingDeps int
	Nested      int
}

// Result is the outcome of a run.
type Result struct {
	Toplevel *ir.Scoped
	Includes []IncludeEntry
	Nested   []*ir.Scoped
	Stats    Stats
}

// Run applies the stages to top. When the missing dependency check fails
// the result is returned with the error, holding the tree as it was after
// that stage and the include decisions, so the allow-list can be fixed
// from a dump.
func Run(top *ir.Scoped, cfg Config, rep *report.Reporter) (*Result, error) {
	if rep == nil {
		rep = report.New(nil)
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectGo
	}
	log := rep.Logger()

	var res Result

	res.Includes = FilterIncludes(top, cfg.Includes, rep)
	for _, e := range res.Includes {
		if !e.Included {
			res.Stats.NotIncluded++
		}
	}

	top = LiftEnumConstants(top)
	res.Toplevel = top

	res.Stats.Duplicates = FilterDuplicates(top, rep)
	res.Stats.Unsupported = FilterUnsupported(top, cfg.ABI, rep)

	if err := CheckMissingDeps(top, rep); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			res.Stats.MissingDeps = merr.Len()
		}
		return &res, fmt.Errorf("checking dependencies: %w", err)
	}

	res.Nested = FindNested(top)
	res.Stats.Nested = len(res.Nested)

	header := cfg.HeaderName
	switch {
	case header != "":
	case top.Pos().Path != "":
		header = cfg.Dialect.HeaderScopeName(top.Pos().Path)
	default:
		header = "toplevel"
	}
	MangleNames(top, header, cfg.Dialect)

	log.Debug("pipeline finished",
		zap.Int("declarations", len(top.Members)),
		zap.Int("not_included", res.Stats.NotIncluded),
		zap.Int("duplicates", res.Stats.Duplicates),
		zap.Int("unsupported", res.Stats.Unsupported),
		zap.Int("nested", res.Stats.Nested),
	)

	return &res, nil
}
