package parser

import (
	"github.com/pkg/errors"

	"github.com/ardanlabs/cextract/clang"
	"github.com/ardanlabs/cextract/ir"
)

// TypeMaker converts clang types into ir types. Every clang type handle maps
// to one ir.Type, so a record referenced from many places shares a single
// declaration.
type TypeMaker struct {
	abi        ir.ABI
	tree       *TreeMaker
	cache      map[clang.Type]ir.Type
	unresolved []unresolvedPointer
}

// unresolvedPointer is a pointer whose pointee is built after the tree, so
// records can point to themselves.
type unresolvedPointer struct {
	ref     *ir.TypeRef
	pointee clang.Type
}

func newTypeMaker(abi ir.ABI, tree *TreeMaker) *TypeMaker {
	return &TypeMaker{
		abi:   abi,
		tree:  tree,
		cache: make(map[clang.Type]ir.Type),
	}
}

// MakeType returns the ir type for t.
func (tm *TypeMaker) MakeType(t clang.Type) (ir.Type, error) {
	if t == nil {
		return nil, errors.New("missing type")
	}
	if it, ok := tm.cache[t]; ok {
		return it, nil
	}

	it, err := tm.makeType(t)
	if err != nil {
		return nil, err
	}

	tm.cache[t] = it
	return it, nil
}

// ResolveTypeReferences builds the pointee of every pointer handed out so
// far. Building a pointee may hand out new pointers, so it loops until none
// are left.
func (tm *TypeMaker) ResolveTypeReferences() error {
	for len(tm.unresolved) > 0 {
		pending := tm.unresolved
		tm.unresolved = nil

		for _, u := range pending {
			t, err := tm.MakeType(u.pointee)
			if err != nil {
				return errors.Wrapf(err, "resolving pointee %s", u.pointee.Spelling())
			}
			u.ref.Resolve(t)
		}
	}
	return nil
}

func (tm *TypeMaker) makeType(t clang.Type) (ir.Type, error) {
	switch t.Kind() {
	case clang.TypeAuto:
		return tm.MakeType(t.Canonical())

	case clang.TypeVoid:
		return ir.NewPrimitive(ir.Void), nil
	case clang.TypeBool:
		return ir.NewPrimitive(ir.Bool), nil
	case clang.TypeCharS, clang.TypeCharU:
		return ir.NewPrimitive(ir.Char), nil
	case clang.TypeSChar:
		return ir.NewQualified(ir.DelegatedSigned, ir.NewPrimitive(ir.Char)), nil
	case clang.TypeUChar:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Char)), nil
	case clang.TypeShort:
		return ir.NewPrimitive(ir.Short), nil
	case clang.TypeUShort:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Short)), nil
	case clang.TypeInt:
		return ir.NewPrimitive(ir.Int), nil
	case clang.TypeUInt:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Int)), nil
	case clang.TypeLong:
		return ir.NewPrimitive(ir.Long), nil
	case clang.TypeULong:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Long)), nil
	case clang.TypeLongLong:
		return ir.NewPrimitive(ir.LongLong), nil
	case clang.TypeULongLong:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.LongLong)), nil
	case clang.TypeInt128:
		return ir.NewPrimitive(ir.Int128), nil
	case clang.TypeUInt128:
		return ir.NewQualified(ir.DelegatedUnsigned, ir.NewPrimitive(ir.Int128)), nil
	case clang.TypeFloat:
		return ir.NewPrimitive(ir.Float), nil
	case clang.TypeDouble:
		return ir.NewPrimitive(ir.Double), nil
	case clang.TypeLongDouble:
		return ir.NewPrimitive(ir.LongDouble), nil
	case clang.TypeFloat128:
		return ir.NewPrimitive(ir.Float128), nil
	case clang.TypeHalf:
		return ir.NewPrimitive(ir.HalfFloat), nil
	case clang.TypeWChar:
		return ir.NewPrimitive(ir.WChar), nil
	case clang.TypeChar16:
		return ir.NewPrimitive(ir.Char16), nil

	case clang.TypeElaborated, clang.TypeUnexposed, clang.TypeAttributed:
		if d := t.Declaration(); d != nil && d.Type() != nil && !d.Type().Equal(t) {
			switch d.Kind() {
			case clang.CursorStructDecl, clang.CursorUnionDecl, clang.CursorEnumDecl, clang.CursorTypedefDecl:
				return tm.MakeType(d.Type())
			}
		}
		canonical := t.Canonical()
		if canonical.Equal(t) {
			return ir.Erroneous, nil
		}
		return tm.MakeType(canonical)

	case clang.TypeConstantArray:
		elem, err := tm.MakeType(t.Element())
		if err != nil {
			return nil, err
		}
		return ir.NewArray(elem, t.NumElements()), nil

	case clang.TypeIncompleteArray:
		elem, err := tm.MakeType(t.Element())
		if err != nil {
			return nil, err
		}
		return ir.NewIncompleteArray(elem), nil

	case clang.TypeVector:
		elem, err := tm.MakeType(t.Element())
		if err != nil {
			return nil, err
		}
		return ir.NewVector(elem, t.NumElements()), nil

	case clang.TypeFunctionProto, clang.TypeFunctionNoProto:
		var args []ir.Type
		for _, a := range t.Args() {
			at, err := tm.lowerFunctionType(a)
			if err != nil {
				return nil, err
			}
			args = append(args, at)
		}
		ret, err := tm.lowerFunctionType(t.Result())
		if err != nil {
			return nil, err
		}
		return ir.NewFunctionType(t.IsVariadic(), ret, args...), nil

	case clang.TypeRecord:
		s, err := tm.tree.RecordDecl(t.Declaration())
		if err != nil {
			return nil, err
		}
		return ir.NewDeclared(s), nil

	case clang.TypeEnum:
		s, err := tm.tree.EnumDecl(t.Declaration())
		if err != nil {
			return nil, err
		}
		return ir.NewDeclared(s), nil

	case clang.TypePointer, clang.TypeBlockPointer:
		pointee := t.Pointee()
		if pointee.Kind() == clang.TypeFunctionProto || pointee.Declaration() == nil {
			pt, err := tm.MakeType(pointee)
			if err != nil {
				return nil, err
			}
			return ir.NewPointer(pt), nil
		}
		ref := &ir.TypeRef{}
		tm.unresolved = append(tm.unresolved, unresolvedPointer{ref: ref, pointee: pointee})
		return ir.NewLazyPointer(ref), nil

	case clang.TypeTypedef:
		name := t.Spelling()
		under := t.Canonical()
		if d := t.Declaration(); d != nil {
			name = d.Spelling()
			if u := d.TypedefUnderlyingType(); u != nil {
				under = u
			}
		}
		ut, err := tm.MakeType(under)
		if err != nil {
			return nil, err
		}
		return ir.NewTypedef(name, ut), nil

	case clang.TypeComplex:
		et, err := tm.MakeType(t.Element())
		if err != nil {
			return nil, err
		}
		return ir.NewQualified(ir.DelegatedComplex, et), nil

	case clang.TypeAtomic:
		vt, err := tm.MakeType(t.ValueType())
		if err != nil {
			return nil, err
		}
		return ir.NewQualified(ir.DelegatedAtomic, vt), nil
	}

	return ir.Erroneous, nil
}

// lowerFunctionType builds the type of a function parameter or result.
// Arrays decay to pointers to their element type.
func (tm *TypeMaker) lowerFunctionType(t clang.Type) (ir.Type, error) {
	it, err := tm.MakeType(t)
	if err != nil {
		return nil, err
	}

	arr, ok := it.(*ir.Array)
	if !ok {
		if td, isTypedef := it.(*ir.Delegated); isTypedef && td.Kind == ir.DelegatedTypedef {
			arr, ok = td.Type().(*ir.Array)
		}
	}
	if ok {
		return ir.NewPointer(arr.Elem), nil
	}
	return it, nil
}
