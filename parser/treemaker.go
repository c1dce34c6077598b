package parser

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// TreeMaker builds declarations from cursors. Records and enums are cached
// by the position of their definition so every reference shares one node.
type TreeMaker struct {
	abi     ir.ABI
	log     *zap.Logger
	types   *TypeMaker
	records map[ir.Position]*ir.Scoped
	macros  []clang.Cursor
}

func NewTreeMaker(abi ir.ABI, log *zap.Logger) *TreeMaker {
	if log == nil {
		log = zap.NewNop()
	}
	tm := TreeMaker{
		abi:     abi,
		log:     log,
		records: make(map[ir.Position]*ir.Scoped),
	}
	tm.types = newTypeMaker(abi, &tm)
	return &tm
}

// Types returns the type maker backing this tree maker.
func (tm *TreeMaker) Types() *TypeMaker {
	return tm.types
}

// Macros returns the object-like macro definitions seen by CreateTree.
func (tm *TreeMaker) Macros() []clang.Cursor {
	return tm.macros
}

// CreateTree builds the toplevel declaration for the children of root. A
// declaration that cannot be built is logged and left out.
func (tm *TreeMaker) CreateTree(root clang.Cursor) *ir.Scoped {
	var decls []ir.Declaration
	seen := make(map[ir.Declaration]bool)

	for _, c := range root.Children() {
		d, err := tm.createTree(c)
		if err != nil {
			tm.log.Warn("ignoring declaration",
				zap.String("name", c.Spelling()),
				zap.Stringer("pos", positionOf(c)),
				zap.Error(err),
			)
			continue
		}

		if d == nil || seen[d] || !keepNested(d) {
			continue
		}
		seen[d] = true
		decls = append(decls, d)
	}

	return ir.NewToplevel(positionOf(root), decls...)
}

// keepNested reports whether d stands on its own in a scope. Unnamed records
// are reachable through the declarations that use them.
func keepNested(d ir.Declaration) bool {
	if s, ok := d.(*ir.Scoped); ok {
		if s.Kind == ir.ScopedEnum || s.Kind == ir.ScopedBitfields || ir.IsAnonymousStruct(s) {
			return true
		}
	}
	return d.Name() != ""
}

func (tm *TreeMaker) createTree(c clang.Cursor) (ir.Declaration, error) {
	if c.Linkage() == clang.LinkageInternal || c.IsInlined() {
		return nil, nil
	}

	switch c.Kind() {
	case clang.CursorEnumDecl:
		s, err := tm.EnumDecl(c)
		if err != nil {
			return nil, err
		}
		return s, nil

	case clang.CursorStructDecl, clang.CursorUnionDecl:
		if !c.IsDefinition() && c.Definition() != nil {
			return nil, nil
		}
		s, err := tm.RecordDecl(c)
		if err != nil {
			return nil, err
		}
		return s, nil

	case clang.CursorFunctionDecl:
		return tm.createFunction(c)

	case clang.CursorTypedefDecl:
		return tm.createTypedef(c)

	case clang.CursorVarDecl:
		return tm.createVar(c)

	case clang.CursorMacroDefinition:
		if !c.IsFunctionLikeMacro() && c.Location().IsValid() {
			tm.macros = append(tm.macros, c)
		}
	}

	return nil, nil
}

// RecordDecl returns the declaration of a struct or union. A record that is
// never defined yields an opaque declaration without layout.
func (tm *TreeMaker) RecordDecl(c clang.Cursor) (*ir.Scoped, error) {
	if c == nil {
		return nil, errors.New("record without declaration")
	}

	def := c.Definition()
	if def == nil {
		pos := positionOf(c)
		if s, ok := tm.records[pos]; ok {
			return s, nil
		}
		kind := ir.ScopedStruct
		if c.Kind() == clang.CursorUnionDecl {
			kind = ir.ScopedUnion
		}
		s := ir.NewScoped(kind, pos, c.Spelling())
		tm.records[pos] = s
		return s, nil
	}

	pos := positionOf(def)
	if s, ok := tm.records[pos]; ok {
		return s, nil
	}

	t, err := tm.types.ComputeLayout(0, def.Type(), def.Type())
	if err != nil {
		return nil, errors.Wrapf(err, "computing layout of %s", def.Type().Spelling())
	}

	s := t.(*ir.Declared).Decl
	tm.records[pos] = s
	return s, nil
}

// EnumDecl returns the declaration of an enum. Its constants are typed by
// the enum's integer type.
func (tm *TreeMaker) EnumDecl(c clang.Cursor) (*ir.Scoped, error) {
	if c == nil {
		return nil, errors.New("enum without declaration")
	}

	def := c.Definition()
	if def == nil {
		def = c
	}

	pos := positionOf(def)
	if s, ok := tm.records[pos]; ok {
		return s, nil
	}

	name := def.Spelling()
	if def.IsAnonymous() {
		name = ""
	}

	var consts []ir.Declaration
	var intType ir.Type
	if def.IsDefinition() {
		var err error
		if intType, err = tm.types.MakeType(def.EnumIntegerType()); err != nil {
			return nil, errors.Wrapf(err, "enum %s", name)
		}
		for _, ch := range def.Children() {
			if ch.Kind() != clang.CursorEnumConstantDecl {
				continue
			}
			consts = append(consts, ir.NewConstant(positionOf(ch), ch.Spelling(), ch.EnumConstantValue(), intType))
		}
	}

	s := ir.NewScoped(ir.ScopedEnum, pos, name, consts...)
	if intType != nil {
		l, err := tm.abi.LayoutOf(intType)
		if err != nil {
			return nil, errors.Wrapf(err, "enum %s", name)
		}
		ir.SetLayout(s, l)
		ir.SetClangSize(s, def.Type().Size()*8)
	}

	tm.records[pos] = s
	return s, nil
}

func (tm *TreeMaker) createFunction(c clang.Cursor) (ir.Declaration, error) {
	t, err := tm.types.MakeType(c.Type())
	if err != nil {
		return nil, err
	}
	fn, ok := ir.Canonical(t).(*ir.FunctionType)
	if !ok {
		return nil, errors.Errorf("function %s has type %s", c.Spelling(), t)
	}

	var params []*ir.Variable
	for i, a := range c.Arguments() {
		if i >= len(fn.Args) {
			break
		}
		params = append(params, ir.NewVariable(ir.VarParameter, positionOf(a), a.Spelling(), fn.Args[i]))
	}

	f := ir.NewFunction(positionOf(c), c.Spelling(), fn, params...)
	if err := tm.setNestedDecls(f, c.Type().Result()); err != nil {
		return nil, err
	}

	return f, nil
}

func (tm *TreeMaker) createVar(c clang.Cursor) (ir.Declaration, error) {
	t, err := tm.types.MakeType(c.Type())
	if err != nil {
		return nil, err
	}

	v := ir.NewVariable(ir.VarGlobal, positionOf(c), c.Spelling(), t)
	if err := tm.setNestedDecls(v, c.Type()); err != nil {
		return nil, err
	}

	return v, nil
}

func (tm *TreeMaker) createTypedef(c clang.Cursor) (ir.Declaration, error) {
	under := c.TypedefUnderlyingType()
	t, err := tm.types.MakeType(under)
	if err != nil {
		return nil, err
	}

	// typedef struct Foo Foo; adds nothing over the record.
	if d, ok := t.(*ir.Declared); ok && d.Decl.Name() == c.Spelling() {
		return nil, nil
	}

	t = withParamNames(t, c)

	td := ir.NewTypedefDecl(positionOf(c), c.Spelling(), t)
	if err := tm.setNestedDecls(td, under); err != nil {
		return nil, err
	}

	return td, nil
}

// withParamNames attaches the parameter names of a function typedef, or of
// a typedef of a function pointer, to the function type.
func withParamNames(t ir.Type, c clang.Cursor) ir.Type {
	var names []string
	var named bool
	for _, ch := range c.Children() {
		if ch.Kind() == clang.CursorParmDecl {
			names = append(names, ch.Spelling())
			named = named || ch.Spelling() != ""
		}
	}
	if !named {
		return t
	}

	if fn, ok := t.(*ir.FunctionType); ok {
		return fn.WithParamNames(names)
	}
	if fn, ok := ir.FunctionPointee(t); ok {
		return ir.NewPointer(fn.WithParamNames(names))
	}
	return t
}

// setNestedDecls records the unnamed struct or union a declaration defines
// inline, as in "typedef struct { int x; } point;".
func (tm *TreeMaker) setNestedDecls(d ir.Declaration, t clang.Type) error {
unwrap:
	for t != nil {
		switch t.Kind() {
		case clang.TypePointer:
			t = t.Pointee()
		case clang.TypeConstantArray, clang.TypeIncompleteArray:
			t = t.Element()
		case clang.TypeElaborated:
			decl := t.Declaration()
			if decl == nil || !decl.Kind().IsRecord() {
				break unwrap
			}
			t = decl.Type()
		default:
			break unwrap
		}
	}

	if t == nil || t.Kind() != clang.TypeRecord {
		return nil
	}
	decl := t.Declaration()
	if decl == nil || !decl.IsAnonymous() || decl.IsAnonymousRecord() {
		return nil
	}

	s, err := tm.RecordDecl(decl)
	if err != nil {
		return err
	}
	ir.SetNestedDecls(d, []*ir.Scoped{s})

	return nil
}
