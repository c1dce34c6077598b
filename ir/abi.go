package ir

import (
	"fmt"
	"sort"
)

// ABI holds the platform facts needed to lay out C types. Sizes are in bits.
type ABI struct {
	Name            string
	PointerSize     int64
	LongSize        int64
	LongDoubleSize  int64
	LongDoubleAlign int64
	WCharSize       int64
	WCharSigned     bool
	CharSigned      bool
}

var (
	LinuxAMD64 = ABI{
		Name: "linux/amd64", PointerSize: 64, LongSize: 64,
		LongDoubleSize: 128, LongDoubleAlign: 128,
		WCharSize: 32, WCharSigned: true, CharSigned: true,
	}
	LinuxARM64 = ABI{
		Name: "linux/arm64", PointerSize: 64, LongSize: 64,
		LongDoubleSize: 128, LongDoubleAlign: 128,
		WCharSize: 32, WCharSigned: false, CharSigned: false,
	}
	DarwinAMD64 = ABI{
		Name: "darwin/amd64", PointerSize: 64, LongSize: 64,
		LongDoubleSize: 128, LongDoubleAlign: 128,
		WCharSize: 32, WCharSigned: true, CharSigned: true,
	}
	DarwinARM64 = ABI{
		Name: "darwin/arm64", PointerSize: 64, LongSize: 64,
		LongDoubleSize: 64, LongDoubleAlign: 64,
		WCharSize: 32, WCharSigned: true, CharSigned: true,
	}
	WindowsAMD64 = ABI{
		Name: "windows/amd64", PointerSize: 64, LongSize: 32,
		LongDoubleSize: 64, LongDoubleAlign: 64,
		WCharSize: 16, WCharSigned: false, CharSigned: true,
	}
)

var abis = map[string]ABI{
	LinuxAMD64.Name:   LinuxAMD64,
	LinuxARM64.Name:   LinuxARM64,
	DarwinAMD64.Name:  DarwinAMD64,
	DarwinARM64.Name:  DarwinARM64,
	WindowsAMD64.Name: WindowsAMD64,
}

// ABIFor returns the ABI registered for a "goos/goarch" platform string.
func ABIFor(platform string) (ABI, error) {
	abi, ok := abis[platform]
	if !ok {
		return ABI{}, fmt.Errorf("unsupported platform %q", platform)
	}
	return abi, nil
}

// Platforms lists the supported platform strings.
func Platforms() []string {
	names := make([]string, 0, len(abis))
	for name := range abis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LongDoubleIsDouble reports whether long double has the representation of
// double on this platform.
func (a ABI) LongDoubleIsDouble() bool {
	return a.LongDoubleSize == 64
}

// PrimitiveLayout returns the layout of a primitive. Void has none.
func (a ABI) PrimitiveLayout(kind PrimitiveKind) (*ValueLayout, error) {
	switch kind {
	case Bool:
		return NewValue(CarrierBool, 8, 8), nil
	case Char:
		if a.CharSigned {
			return NewValue(CarrierInt, 8, 8), nil
		}
		return NewValue(CarrierUint, 8, 8), nil
	case Short:
		return NewValue(CarrierInt, 16, 16), nil
	case Int:
		return NewValue(CarrierInt, 32, 32), nil
	case Long:
		return NewValue(CarrierInt, a.LongSize, a.LongSize), nil
	case LongLong:
		return NewValue(CarrierInt, 64, 64), nil
	case Int128:
		return NewValue(CarrierInt, 128, 128), nil
	case Float:
		return NewValue(CarrierFloat, 32, 32), nil
	case Double:
		return NewValue(CarrierFloat, 64, 64), nil
	case LongDouble:
		return NewValue(CarrierFloat, a.LongDoubleSize, a.LongDoubleAlign), nil
	case Float128:
		return NewValue(CarrierFloat, 128, 128), nil
	case HalfFloat:
		return NewValue(CarrierFloat, 16, 16), nil
	case WChar:
		if a.WCharSigned {
			return NewValue(CarrierInt, a.WCharSize, a.WCharSize), nil
		}
		return NewValue(CarrierUint, a.WCharSize, a.WCharSize), nil
	case Char16:
		return NewValue(CarrierUint, 16, 16), nil
	}
	return nil, fmt.Errorf("no layout for %s", kind)
}

// LayoutOf computes the layout of a type. Void, functions and records
// without a computed layout have none.
func (a ABI) LayoutOf(t Type) (Layout, error) {
	switch x := t.(type) {
	case *Primitive:
		return a.PrimitiveLayout(x.Kind)

	case *Delegated:
		switch x.Kind {
		case DelegatedPointer:
			return NewValue(CarrierAddress, a.PointerSize, a.PointerSize), nil
		case DelegatedUnsigned, DelegatedSigned:
			l, err := a.LayoutOf(x.Type())
			if err != nil {
				return nil, err
			}
			v, ok := l.(*ValueLayout)
			if !ok || (v.Carrier != CarrierInt && v.Carrier != CarrierUint) {
				return l, nil
			}
			c := *v
			c.Carrier = CarrierInt
			if x.Kind == DelegatedUnsigned {
				c.Carrier = CarrierUint
			}
			return &c, nil
		case DelegatedComplex:
			l, err := a.LayoutOf(x.Type())
			if err != nil {
				return nil, err
			}
			return NewSequence(2, l), nil
		}
		return a.LayoutOf(x.Type())

	case *Array:
		elem, err := a.LayoutOf(x.Elem)
		if err != nil {
			return nil, err
		}
		if !x.HasCount {
			return NewSequence(0, elem), nil
		}
		return NewSequence(x.Count, elem), nil

	case *Declared:
		if l, ok := x.Decl.Layout(); ok {
			return l, nil
		}
		return nil, fmt.Errorf("%s has no layout", x)

	case nil:
		return nil, fmt.Errorf("no layout for unresolved type")
	}
	return nil, fmt.Errorf("no layout for %s", t)
}

// Descriptor is the calling shape of a function. Return is nil for void.
type Descriptor struct {
	Return   Layout
	Args     []Layout
	Variadic bool
}

// DescriptorOf computes the descriptor of a function type.
func (a ABI) DescriptorOf(fn *FunctionType) (*Descriptor, error) {
	d := Descriptor{Variadic: fn.Varargs}

	if !IsVoid(fn.Return) {
		l, err := a.LayoutOf(fn.Return)
		if err != nil {
			return nil, fmt.Errorf("return type: %w", err)
		}
		d.Return = l
	}

	for i, arg := range fn.Args {
		l, err := a.LayoutOf(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		d.Args = append(d.Args, l)
	}

	return &d, nil
}

// IsVoid reports whether t is void, looking through typedefs.
func IsVoid(t Type) bool {
	p, ok := Canonical(t).(*Primitive)
	return ok && p.Kind == Void
}
