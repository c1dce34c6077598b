package ir

import "reflect"

// EqualTypes reports structural equality of two types. A typedef equals the
// type it names, so "typedef int myint" matches "int". Pointers compare by
// kind only; their pointees are not visited, which keeps the relation total
// on cyclic graphs.
func EqualTypes(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}

	switch x := a.(type) {
	case *Primitive:
		if y, ok := b.(*Primitive); ok {
			return x.Kind == y.Kind
		}

	case *FunctionType:
		if y, ok := b.(*FunctionType); ok {
			return equalFunctionTypes(x, y)
		}

	case *Array:
		if y, ok := b.(*Array); ok {
			return x.Kind == y.Kind && x.HasCount == y.HasCount && x.Count == y.Count &&
				EqualTypes(x.Elem, y.Elem)
		}

	case *Declared:
		if y, ok := b.(*Declared); ok {
			return EqualDecls(x.Decl, y.Decl)
		}

	case *Delegated:
		if y, ok := b.(*Delegated); ok && x.Kind == y.Kind && x.Name == y.Name {
			if x.Kind == DelegatedPointer {
				return true
			}
			return EqualTypes(x.Type(), y.Type())
		}
		if x.Kind == DelegatedTypedef {
			return EqualTypes(x.Type(), b)
		}
	}

	if y, ok := b.(*Delegated); ok && y.Kind == DelegatedTypedef {
		return EqualTypes(a, y.Type())
	}
	return false
}

func equalFunctionTypes(x, y *FunctionType) bool {
	if x.Varargs != y.Varargs || len(x.Args) != len(y.Args) {
		return false
	}
	if !EqualTypes(x.Return, y.Return) {
		return false
	}
	for i := range x.Args {
		if !EqualTypes(x.Args[i], y.Args[i]) {
			return false
		}
	}
	return true
}

// EqualDecls reports structural equality of two declarations.
func EqualDecls(a, b Declaration) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if a.Name() != b.Name() {
		return false
	}

	switch x := a.(type) {
	case *Constant:
		y, ok := b.(*Constant)
		return ok && reflect.DeepEqual(x.Value, y.Value) && EqualTypes(x.Type, y.Type)

	case *Variable:
		y, ok := b.(*Variable)
		return ok && x.Kind == y.Kind && x.Width == y.Width && EqualTypes(x.Type, y.Type)

	case *Function:
		y, ok := b.(*Function)
		return ok && EqualTypes(x.Type, y.Type)

	case *Typedef:
		y, ok := b.(*Typedef)
		return ok && EqualTypes(x.Type, y.Type)

	case *Scoped:
		y, ok := b.(*Scoped)
		if !ok || x.Kind != y.Kind || len(x.Members) != len(y.Members) {
			return false
		}
		for i := range x.Members {
			if !EqualDecls(x.Members[i], y.Members[i]) {
				return false
			}
		}
		return true
	}
	return false
}
