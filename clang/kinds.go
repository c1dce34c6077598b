package clang

import "fmt"

type CursorKind int

const (
	CursorInvalid CursorKind = iota
	CursorTranslationUnit
	CursorStructDecl
	CursorUnionDecl
	CursorEnumDecl
	CursorFieldDecl
	CursorEnumConstantDecl
	CursorFunctionDecl
	CursorVarDecl
	CursorParmDecl
	CursorTypedefDecl
	CursorMacroDefinition
	CursorUnexposed
)

var cursorKindNames = [...]string{
	CursorInvalid:          "Invalid",
	CursorTranslationUnit:  "TranslationUnit",
	CursorStructDecl:       "StructDecl",
	CursorUnionDecl:        "UnionDecl",
	CursorEnumDecl:         "EnumDecl",
	CursorFieldDecl:        "FieldDecl",
	CursorEnumConstantDecl: "EnumConstantDecl",
	CursorFunctionDecl:     "FunctionDecl",
	CursorVarDecl:          "VarDecl",
	CursorParmDecl:         "ParmDecl",
	CursorTypedefDecl:      "TypedefDecl",
	CursorMacroDefinition:  "MacroDefinition",
	CursorUnexposed:        "Unexposed",
}

func (k CursorKind) String() string {
	if k >= 0 && int(k) < len(cursorKindNames) {
		return cursorKindNames[k]
	}
	return fmt.Sprintf("CursorKind(%d)", int(k))
}

// IsRecord reports whether k declares a struct or union.
func (k CursorKind) IsRecord() bool {
	return k == CursorStructDecl || k == CursorUnionDecl
}

type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeUnexposed
	TypeVoid
	TypeBool
	TypeCharU
	TypeUChar
	TypeChar16
	TypeChar32
	TypeUShort
	TypeUInt
	TypeULong
	TypeULongLong
	TypeUInt128
	TypeCharS
	TypeSChar
	TypeWChar
	TypeShort
	TypeInt
	TypeLong
	TypeLongLong
	TypeInt128
	TypeFloat
	TypeDouble
	TypeLongDouble
	TypeFloat128
	TypeHalf
	TypeComplex
	TypePointer
	TypeBlockPointer
	TypeRecord
	TypeEnum
	TypeTypedef
	TypeFunctionNoProto
	TypeFunctionProto
	TypeConstantArray
	TypeVector
	TypeIncompleteArray
	TypeVariableArray
	TypeElaborated
	TypeAuto
	TypeAttributed
	TypeAtomic
)

var typeKindNames = [...]string{
	TypeInvalid:         "Invalid",
	TypeUnexposed:       "Unexposed",
	TypeVoid:            "Void",
	TypeBool:            "Bool",
	TypeCharU:           "Char_U",
	TypeUChar:           "UChar",
	TypeChar16:          "Char16",
	TypeChar32:          "Char32",
	TypeUShort:          "UShort",
	TypeUInt:            "UInt",
	TypeULong:           "ULong",
	TypeULongLong:       "ULongLong",
	TypeUInt128:         "UInt128",
	TypeCharS:           "Char_S",
	TypeSChar:           "SChar",
	TypeWChar:           "WChar",
	TypeShort:           "Short",
	TypeInt:             "Int",
	TypeLong:            "Long",
	TypeLongLong:        "LongLong",
	TypeInt128:          "Int128",
	TypeFloat:           "Float",
	TypeDouble:          "Double",
	TypeLongDouble:      "LongDouble",
	TypeFloat128:        "Float128",
	TypeHalf:            "Half",
	TypeComplex:         "Complex",
	TypePointer:         "Pointer",
	TypeBlockPointer:    "BlockPointer",
	TypeRecord:          "Record",
	TypeEnum:            "Enum",
	TypeTypedef:         "Typedef",
	TypeFunctionNoProto: "FunctionNoProto",
	TypeFunctionProto:   "FunctionProto",
	TypeConstantArray:   "ConstantArray",
	TypeVector:          "Vector",
	TypeIncompleteArray: "IncompleteArray",
	TypeVariableArray:   "VariableArray",
	TypeElaborated:      "Elaborated",
	TypeAuto:            "Auto",
	TypeAttributed:      "Attributed",
	TypeAtomic:          "Atomic",
}

func (k TypeKind) String() string {
	if k >= 0 && int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

type Linkage int

const (
	LinkageInvalid Linkage = iota
	LinkageNone
	LinkageInternal
	LinkageUniqueExternal
	LinkageExternal
)

type Severity int

const (
	SeverityIgnored Severity = iota
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{"ignored", "note", "warning", "error", "fatal"}

func (s Severity) String() string {
	if s >= 0 && int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

type EvalKind int

const (
	EvalFailed EvalKind = iota
	EvalInt
	EvalFloat
	EvalStrLiteral
	EvalOther
)
