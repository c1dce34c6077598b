package generator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
)

func (e *emission) writeFunction(fn *ir.Function) error {
	name, ok := ir.TargetSimpleName(fn)
	if !ok {
		return nil
	}

	if fn.Type.Varargs {
		e.log.Info("no wrapper for variadic function", zap.String("name", fn.Name()))
		fmt.Fprintf(&e.wrappers, "// %s is variadic and has no wrapper.\n\n", fn.Name())
		return nil
	}

	desc, err := e.abi.DescriptorOf(fn.Type)
	if err != nil {
		return err
	}

	goFuncName := e.globals.name(toGoName(name))
	funcVarName := toLowerCamel(goFuncName) + "Func"
	e.funcs++

	fmt.Fprintf(&e.symbols, "\t%s ffi.Fun\n", funcVarName)

	// The wrapper names the records of the signature, so their libffi
	// types get the record's name.
	e.writeWrapper(fn, desc, goFuncName, funcVarName)

	ffis := []string{"&ffi.TypeVoid"}
	if desc.Return != nil {
		ffis[0] = e.ffiType(desc.Return)
	}
	for i, l := range desc.Args {
		if isArray(fn.Type.Args[i]) {
			ffis = append(ffis, "&ffi.TypePointer")
			continue
		}
		ffis = append(ffis, e.ffiType(l))
	}

	fmt.Fprintf(&e.loads, "\tif %s, err = lib.Prep(%q, %s); err != nil {\n", funcVarName, fn.Name(), ffiArgs(ffis))
	fmt.Fprintf(&e.loads, "\t\treturn fmt.Errorf(\"%s: %%w\", err)\n", fn.Name())
	fmt.Fprintf(&e.loads, "\t}\n\n")

	return nil
}

func (e *emission) writeWrapper(fn *ir.Function, desc *ir.Descriptor, goFuncName, funcVarName string) {
	w := &e.wrappers

	var params, callArgs []string
	for i, arg := range fn.Type.Args {
		paramName := toParamName(paramNameOf(fn, i))

		goType := "uintptr"
		if !isArray(arg) {
			goType = e.goType(arg)
		}

		params = append(params, fmt.Sprintf("%s %s", paramName, goType))
		callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%s)", paramName))
	}

	retGoType := ""
	if desc.Return != nil {
		retGoType = e.goType(fn.Type.Return)
	}

	fmt.Fprintf(w, "// %s calls %s.\n", goFuncName, fn.Name())
	if retGoType != "" {
		fmt.Fprintf(w, "func %s(%s) %s {\n", goFuncName, strings.Join(params, ", "), retGoType)
	} else {
		fmt.Fprintf(w, "func %s(%s) {\n", goFuncName, strings.Join(params, ", "))
	}

	result := "nil"
	switch {
	case retGoType == "":
	case needsFFIArg(desc.Return):
		fmt.Fprintf(w, "\tvar result ffi.Arg\n")
		result = "unsafe.Pointer(&result)"
	default:
		fmt.Fprintf(w, "\tvar result %s\n", retGoType)
		result = "unsafe.Pointer(&result)"
	}

	fmt.Fprintf(w, "\t%s.Call(%s)\n", funcVarName, strings.Join(append([]string{result}, callArgs...), ", "))

	switch {
	case retGoType == "":
	case needsFFIArg(desc.Return):
		if v := desc.Return.(*ir.ValueLayout); v.Carrier == ir.CarrierBool {
			fmt.Fprintf(w, "\treturn result != 0\n")
		} else {
			fmt.Fprintf(w, "\treturn %s(result)\n", retGoType)
		}
	default:
		fmt.Fprintf(w, "\treturn result\n")
	}

	fmt.Fprintf(w, "}\n\n")
}

// writeVariable resolves the address of a global and adds an accessor
// returning a pointer to it.
func (e *emission) writeVariable(v *ir.Variable) {
	name, ok := ir.TargetSimpleName(v)
	if !ok {
		return
	}
	goType := e.goType(v.Type)
	if goType == "" {
		return
	}

	goName := e.globals.name(toGoName(name))
	addrVarName := toLowerCamel(goName) + "Addr"
	e.vars++

	fmt.Fprintf(&e.symbols, "\t%s uintptr\n", addrVarName)

	fmt.Fprintf(&e.loads, "\tif %s, err = lib.Get(%q); err != nil {\n", addrVarName, v.Name())
	fmt.Fprintf(&e.loads, "\t\treturn fmt.Errorf(\"%s: %%w\", err)\n", v.Name())
	fmt.Fprintf(&e.loads, "\t}\n\n")

	fmt.Fprintf(&e.wrappers, "// %s returns the address of %s.\n", goName, v.Name())
	fmt.Fprintf(&e.wrappers, "func %s() *%s {\n", goName, goType)
	fmt.Fprintf(&e.wrappers, "\treturn (*%s)(unsafe.Pointer(%s))\n", goType, addrVarName)
	fmt.Fprintf(&e.wrappers, "}\n\n")
}

// paramNameOf returns the target name of parameter i. Declarations without
// parameter names get x<i>.
func paramNameOf(fn *ir.Function, i int) string {
	if len(fn.Params) == len(fn.Type.Args) {
		if name, ok := ir.TargetSimpleName(fn.Params[i]); ok {
			return name
		}
	}
	return fmt.Sprintf("x%d", i)
}

// needsFFIArg reports whether libffi widens a return value to a full
// register, which it does for integers smaller than one.
func needsFFIArg(l ir.Layout) bool {
	v, ok := l.(*ir.ValueLayout)
	if !ok {
		return false
	}
	switch v.Carrier {
	case ir.CarrierInt, ir.CarrierUint, ir.CarrierBool:
		return v.Size < 64
	}
	return false
}

// isArray reports whether a parameter is declared as an array. It is
// passed as a pointer.
func isArray(t ir.Type) bool {
	_, ok := ir.Canonical(t).(*ir.Array)
	return ok
}
