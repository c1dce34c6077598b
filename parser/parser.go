// Package parser builds the declaration tree of a C translation unit. Types
// are converted by a TypeMaker, records are laid out by the struct and union
// layout computers, and macros are resolved into constants.
package parser

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/macro"
)

// DiagnosticError is a diagnostic with a severity above warning.
type DiagnosticError struct {
	Diagnostic clang.Diagnostic
}

func (e *DiagnosticError) Error() string {
	return e.Diagnostic.String()
}

// Result is a parsed translation unit.
type Result struct {
	Toplevel    *ir.Scoped
	MacroRounds int
}

// Parse builds the toplevel declaration of tu. Declarations keep source
// order and the macros that resolve to constants follow them.
func Parse(tu clang.TranslationUnit, abi ir.ABI, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := checkDiagnostics(tu.Diagnostics(), log); err != nil {
		return nil, err
	}

	tm := NewTreeMaker(abi, log)
	top := tm.CreateTree(tu.Cursor())

	table := macro.NewTable(tu, tm.Types(), log)
	for _, c := range tm.Macros() {
		table.Add(c.MacroTokens(), positionOf(c))
	}

	consts, err := table.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving macros: %w", err)
	}

	if err := tm.Types().ResolveTypeReferences(); err != nil {
		return nil, err
	}

	members := top.Members
	for _, c := range consts {
		members = append(members, c)
	}

	res := Result{
		Toplevel:    ir.NewToplevel(top.Pos(), members...),
		MacroRounds: table.Rounds(),
	}

	return &res, nil
}

func checkDiagnostics(diags []clang.Diagnostic, log *zap.Logger) error {
	var result *multierror.Error

	for _, d := range diags {
		switch {
		case d.Severity > clang.SeverityWarning:
			result = multierror.Append(result, &DiagnosticError{Diagnostic: d})
		case d.Severity == clang.SeverityWarning:
			log.Warn(d.Message, zap.String("pos", d.Location.String()))
		}
	}

	return result.ErrorOrNil()
}
