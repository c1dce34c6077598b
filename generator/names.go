package generator

import (
	"unicode"
	"unicode/utf8"

	"github.com/huandu/xstrings"
)

// toGoName exports a mangled name. Names that do not start with a letter
// get an X prefix.
func toGoName(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsLetter(r) {
		return "X" + name
	}
	return xstrings.FirstRuneToUpper(name)
}

func toLowerCamel(goName string) string {
	return xstrings.FirstRuneToLower(goName)
}

// predeclared are the identifiers generated code refers to unqualified.
var predeclared = map[string]bool{
	"bool": true, "byte": true, "uintptr": true,
	"int8": true, "int16": true, "int32": true, "int64": true,
	"uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true,
	"fmt": true, "err": true, "result": true,
}

func toParamName(name string) string {
	if predeclared[name] {
		return name + "_"
	}
	return name
}

// namer hands out unique Go identifiers within one namespace.
type namer map[string]bool

func (n namer) reserve(names ...string) {
	for _, name := range names {
		n[name] = true
	}
}

func (n namer) name(want string) string {
	for n[want] {
		want += "_"
	}
	n[want] = true
	return want
}
