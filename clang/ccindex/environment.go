package ccindex

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/cextract/ir"
)

// cTypes names the C types that implement the standard typedefs on an ABI.
type cTypes struct {
	size, ptrdiff, wchar string
	int64, uint64        string
}

func typesFor(abi ir.ABI) cTypes {
	t := cTypes{
		size:    "unsigned long",
		ptrdiff: "long",
		int64:   "long",
		uint64:  "unsigned long",
	}
	if abi.LongSize != 64 {
		t.int64, t.uint64 = "long long", "unsigned long long"
	}
	switch {
	case abi.PointerSize == 32:
		t.size, t.ptrdiff = "unsigned int", "int"
	case abi.LongSize != 64:
		t.size, t.ptrdiff = "unsigned long long", "long long"
	}

	switch {
	case abi.WCharSize == 16:
		t.wchar = "unsigned short"
	case abi.WCharSigned:
		t.wchar = "int"
	default:
		t.wchar = "unsigned int"
	}
	return t
}

// predefinedMacros returns the macros a GCC compatible compiler defines for
// abi, as C source.
func predefinedMacros(abi ir.ABI) string {
	t := typesFor(abi)
	goos, goarch, _ := strings.Cut(abi.Name, "/")

	var b strings.Builder
	def := func(name string, value any) {
		fmt.Fprintf(&b, "#define %s %v\n", name, value)
	}

	def("__STDC__", 1)
	def("__STDC_VERSION__", "201112L")
	def("__STDC_HOSTED__", 1)
	def("__CHAR_BIT__", 8)

	def("__SIZE_TYPE__", t.size)
	def("__PTRDIFF_TYPE__", t.ptrdiff)
	def("__WCHAR_TYPE__", t.wchar)
	def("__WINT_TYPE__", "unsigned int")
	def("__INTPTR_TYPE__", t.ptrdiff)
	def("__UINTPTR_TYPE__", t.size)
	def("__INTMAX_TYPE__", t.int64)
	def("__UINTMAX_TYPE__", t.uint64)
	def("__INT8_TYPE__", "signed char")
	def("__UINT8_TYPE__", "unsigned char")
	def("__INT16_TYPE__", "short")
	def("__UINT16_TYPE__", "unsigned short")
	def("__INT32_TYPE__", "int")
	def("__UINT32_TYPE__", "unsigned int")
	def("__INT64_TYPE__", t.int64)
	def("__UINT64_TYPE__", t.uint64)

	def("__SIZEOF_SHORT__", 2)
	def("__SIZEOF_INT__", 4)
	def("__SIZEOF_LONG__", abi.LongSize/8)
	def("__SIZEOF_LONG_LONG__", 8)
	def("__SIZEOF_POINTER__", abi.PointerSize/8)
	def("__SIZEOF_SIZE_T__", abi.PointerSize/8)
	def("__SIZEOF_FLOAT__", 4)
	def("__SIZEOF_DOUBLE__", 8)
	def("__SIZEOF_LONG_DOUBLE__", abi.LongDoubleSize/8)
	def("__SIZEOF_WCHAR_T__", abi.WCharSize/8)
	if abi.PointerSize == 64 {
		def("__SIZEOF_INT128__", 16)
	}

	def("__ORDER_LITTLE_ENDIAN__", 1234)
	def("__ORDER_BIG_ENDIAN__", 4321)
	def("__BYTE_ORDER__", "__ORDER_LITTLE_ENDIAN__")
	if abi.LongSize == 64 && abi.PointerSize == 64 {
		def("__LP64__", 1)
		def("_LP64", 1)
	}
	if !abi.CharSigned {
		def("__CHAR_UNSIGNED__", 1)
	}

	switch goarch {
	case "amd64":
		def("__x86_64__", 1)
		def("__x86_64", 1)
		def("__amd64__", 1)
		def("__amd64", 1)
	case "arm64":
		def("__aarch64__", 1)
	}

	switch goos {
	case "linux":
		def("__linux__", 1)
		def("__linux", 1)
		def("__unix__", 1)
		def("__unix", 1)
		def("__ELF__", 1)
	case "darwin":
		def("__APPLE__", 1)
		def("__MACH__", 1)
	case "windows":
		def("_WIN32", 1)
		def("_WIN64", 1)
	}

	return b.String()
}

// standardHeaders returns the freestanding headers by file name.
func standardHeaders(abi ir.ABI) map[string]string {
	t := typesFor(abi)

	stdint := fmt.Sprintf(`#ifndef __CEXTRACT_STDINT_H
#define __CEXTRACT_STDINT_H
typedef signed char int8_t;
typedef unsigned char uint8_t;
typedef short int16_t;
typedef unsigned short uint16_t;
typedef int int32_t;
typedef unsigned int uint32_t;
typedef %[1]s int64_t;
typedef %[2]s uint64_t;
typedef %[3]s intptr_t;
typedef %[4]s uintptr_t;
typedef %[1]s intmax_t;
typedef %[2]s uintmax_t;
#define INT8_MIN (-128)
#define INT8_MAX 127
#define UINT8_MAX 255
#define INT16_MIN (-32768)
#define INT16_MAX 32767
#define UINT16_MAX 65535
#define INT32_MIN (-2147483647-1)
#define INT32_MAX 2147483647
#define UINT32_MAX 4294967295U
#define INT64_MIN (-9223372036854775807LL-1)
#define INT64_MAX 9223372036854775807LL
#define UINT64_MAX 18446744073709551615ULL
#endif
`, t.int64, t.uint64, t.ptrdiff, t.size)

	stddef := fmt.Sprintf(`#ifndef __CEXTRACT_STDDEF_H
#define __CEXTRACT_STDDEF_H
typedef %s size_t;
typedef %s ptrdiff_t;
typedef %s wchar_t;
#define NULL ((void*)0)
#define offsetof(type, member) __builtin_offsetof(type, member)
#endif
`, t.size, t.ptrdiff, t.wchar)

	stdbool := `#ifndef __CEXTRACT_STDBOOL_H
#define __CEXTRACT_STDBOOL_H
#define bool _Bool
#define true 1
#define false 0
#define __bool_true_false_are_defined 1
#endif
`

	stdarg := `#ifndef __CEXTRACT_STDARG_H
#define __CEXTRACT_STDARG_H
typedef __builtin_va_list va_list;
#endif
`

	return map[string]string{
		"stdint.h":  stdint,
		"stddef.h":  stddef,
		"stdbool.h": stdbool,
		"stdarg.h":  stdarg,
	}
}
