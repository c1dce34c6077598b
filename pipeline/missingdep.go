package pipeline

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
	"github.com/ardanlabs/cextract/report"
)

// MissingDependencyError reports a declaration that uses a struct or union
// by value that has been skipped.
type MissingDependencyError struct {
	Name    string
	Pos     ir.Position
	Missing string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: %s depends on %s, which is not included", e.Pos, e.Name, e.Missing)
}

type missingDepChecker struct {
	rep    *report.Reporter
	errs   *multierror.Error
	logged map[[2]string]bool
}

// CheckMissingDeps verifies that every struct or union used by a kept
// declaration is kept as well. Pointers are not followed. Every violation
// is reported and the returned error accumulates them.
func CheckMissingDeps(top *ir.Scoped, rep *report.Reporter) error {
	c := missingDepChecker{
		rep:    rep,
		logged: make(map[[2]string]bool),
	}
	for _, m := range top.Members {
		c.visit(m, nil)
	}
	return c.errs.ErrorOrNil()
}

// visit checks d. Members of records report against the outermost
// declaration, which is the one a user can include.
func (c *missingDepChecker) visit(d ir.Declaration, parent ir.Declaration) {
	if ir.IsSkipped(d) {
		return
	}

	owner := parent
	if owner == nil {
		owner = d
	}

	for _, s := range ir.NestedDecls(d) {
		c.visit(s, owner)
	}

	switch d := d.(type) {
	case *ir.Function:
		for _, p := range d.Params {
			c.visit(p, owner)
		}
		c.checkFunction(owner, d.Type)

	case *ir.Variable:
		c.check(owner, d.Type)
		if fn, ok := ir.FunctionPointee(d.Type); ok {
			c.checkFunction(owner, fn)
		}

	case *ir.Typedef:
		c.check(owner, d.Type)
		if fn, ok := ir.FunctionPointee(d.Type); ok {
			c.checkFunction(owner, fn)
		}

	case *ir.Scoped:
		for _, m := range d.Members {
			c.visit(m, owner)
		}
	}
}

func (c *missingDepChecker) checkFunction(owner ir.Declaration, fn *ir.FunctionType) {
	c.check(owner, fn.Return)
	for _, a := range fn.Args {
		c.check(owner, a)
	}
}

func (c *missingDepChecker) check(owner ir.Declaration, t ir.Type) {
	switch x := t.(type) {
	case *ir.Declared:
		if x.Decl.IsRecord() && ir.IsSkipped(x.Decl) {
			c.report(owner, x.Decl)
		}

	case *ir.Delegated:
		if x.Kind == ir.DelegatedTypedef {
			c.check(owner, x.Type())
		}

	case *ir.Array:
		c.check(owner, x.Elem)

	case *ir.FunctionType:
		c.checkFunction(owner, x)
	}
}

func (c *missingDepChecker) report(owner ir.Declaration, missing *ir.Scoped) {
	key := [2]string{owner.Name(), missing.Name()}
	if c.logged[key] {
		return
	}
	c.logged[key] = true

	err := MissingDependencyError{
		Name:    owner.Name(),
		Pos:     owner.Pos(),
		Missing: missing.Name(),
	}
	c.errs = multierror.Append(c.errs, &err)

	c.rep.Error("missing dependency",
		zap.String("name", err.Name),
		zap.String("missing", err.Missing),
		zap.Stringer("pos", err.Pos),
	)
}
