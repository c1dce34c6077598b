package ccindex

import (
	"fmt"

	"modernc.org/cc/v4"

	"github.com/ardanlabs/cextract/clang"
)

var primKinds = map[cc.Kind]clang.TypeKind{
	cc.Void:       clang.TypeVoid,
	cc.Bool:       clang.TypeBool,
	cc.SChar:      clang.TypeSChar,
	cc.UChar:      clang.TypeUChar,
	cc.Short:      clang.TypeShort,
	cc.UShort:     clang.TypeUShort,
	cc.Int:        clang.TypeInt,
	cc.UInt:       clang.TypeUInt,
	cc.Long:       clang.TypeLong,
	cc.ULong:      clang.TypeULong,
	cc.LongLong:   clang.TypeLongLong,
	cc.ULongLong:  clang.TypeULongLong,
	cc.Int128:     clang.TypeInt128,
	cc.UInt128:    clang.TypeUInt128,
	cc.Float:      clang.TypeFloat,
	cc.Double:     clang.TypeDouble,
	cc.LongDouble: clang.TypeLongDouble,
	cc.Float128:   clang.TypeFloat128,
}

// complexKinds maps complex types to their element type.
var complexKinds = map[cc.Kind]clang.TypeKind{
	cc.ComplexFloat:      clang.TypeFloat,
	cc.ComplexDouble:     clang.TypeDouble,
	cc.ComplexLongDouble: clang.TypeLongDouble,
}

var primSpellings = map[clang.TypeKind]string{
	clang.TypeInvalid: "<invalid>", clang.TypeVoid: "void", clang.TypeBool: "_Bool",
	clang.TypeCharS: "char", clang.TypeCharU: "char",
	clang.TypeSChar: "signed char", clang.TypeUChar: "unsigned char",
	clang.TypeShort: "short", clang.TypeUShort: "unsigned short",
	clang.TypeInt: "int", clang.TypeUInt: "unsigned int",
	clang.TypeLong: "long", clang.TypeULong: "unsigned long",
	clang.TypeLongLong: "long long", clang.TypeULongLong: "unsigned long long",
	clang.TypeInt128: "__int128", clang.TypeUInt128: "unsigned __int128",
	clang.TypeFloat: "float", clang.TypeDouble: "double",
	clang.TypeLongDouble: "long double", clang.TypeFloat128: "__float128",
}

var unsignedKinds = map[cc.Kind]bool{
	cc.Bool:      true,
	cc.UChar:     true,
	cc.UShort:    true,
	cc.UInt:      true,
	cc.ULong:     true,
	cc.ULongLong: true,
	cc.UInt128:   true,
}

// fielder is implemented by struct and union types.
type fielder interface {
	NumFields() int
	FieldByIndex(int) *cc.Field
}

// typeOf returns the clang type for t. A type spelled with a typedef name
// becomes a typedef type.
func (tu *TranslationUnit) typeOf(t cc.Type) *Type {
	return tu.convert(t, nil)
}

// convert is typeOf ignoring self as a typedef name, for the underlying
// type of a typedef declaration.
func (tu *TranslationUnit) convert(t cc.Type, self *cc.Declarator) *Type {
	if t == nil {
		return tu.prim(clang.TypeInvalid)
	}
	if d := t.Typedef(); d != nil && d != self {
		return tu.typedefCursor(d).typ
	}
	if ct, ok := tu.types[t]; ok {
		return ct
	}

	ct := tu.structural(t)
	tu.types[t] = ct
	return ct
}

func (tu *TranslationUnit) structural(t cc.Type) *Type {
	kind := t.Kind()

	if k, ok := primKinds[kind]; ok {
		return tu.prim(k)
	}
	if kind == cc.Char {
		if tu.abi.CharSigned {
			return tu.prim(clang.TypeCharS)
		}
		return tu.prim(clang.TypeCharU)
	}
	if elem, ok := complexKinds[kind]; ok {
		et := tu.prim(elem)
		return &Type{kind: clang.TypeComplex, spelling: t.String(), size: t.Size(), align: int64(t.Align()), elem: et}
	}

	switch x := t.(type) {
	case *cc.PointerType:
		ptr := tu.abi.PointerSize / 8
		return &Type{kind: clang.TypePointer, spelling: t.String(), size: ptr, align: ptr, pointee: tu.typeOf(x.Elem())}

	case *cc.ArrayType:
		elem := tu.typeOf(x.Elem())
		if t.IsIncomplete() || x.Len() < 0 {
			return &Type{kind: clang.TypeIncompleteArray, spelling: t.String(), size: -1, align: elem.Align(), elem: elem}
		}
		return &Type{
			kind:     clang.TypeConstantArray,
			spelling: t.String(),
			size:     t.Size(),
			align:    int64(t.Align()),
			elem:     elem,
			count:    x.Len(),
		}

	case *cc.FunctionType:
		fn := &Type{kind: clang.TypeFunctionProto, spelling: t.String(), size: -1, align: -1, variadic: x.IsVariadic()}
		fn.result = tu.typeOf(x.Result())
		for _, p := range parameters(x) {
			fn.args = append(fn.args, tu.typeOf(p.Type()))
			fn.params = append(fn.params, p.Name())
		}
		return fn

	case *cc.StructType, *cc.UnionType:
		return tu.record(t).typ

	case *cc.EnumType:
		return tu.enum(x).typ
	}

	return &Type{kind: clang.TypeUnexposed, spelling: t.String(), size: -1, align: -1}
}

// parameters returns the parameters of a prototype. "(void)" has none.
func parameters(fn *cc.FunctionType) []*cc.Parameter {
	ps := fn.Parameters()
	if len(ps) == 1 && ps[0].Name() == "" && ps[0].Type().Kind() == cc.Void {
		return nil
	}
	return ps
}

func (tu *TranslationUnit) prim(kind clang.TypeKind) *Type {
	if t, ok := tu.prims[kind]; ok {
		return t
	}
	size, align := tu.primSize(kind)
	t := &Type{kind: kind, spelling: primSpellings[kind], size: size, align: align}
	tu.prims[kind] = t
	return t
}

func (tu *TranslationUnit) primSize(kind clang.TypeKind) (int64, int64) {
	switch kind {
	case clang.TypeBool, clang.TypeCharS, clang.TypeCharU, clang.TypeSChar, clang.TypeUChar:
		return 1, 1
	case clang.TypeShort, clang.TypeUShort:
		return 2, 2
	case clang.TypeInt, clang.TypeUInt, clang.TypeFloat:
		return 4, 4
	case clang.TypeLong, clang.TypeULong:
		return tu.abi.LongSize / 8, tu.abi.LongSize / 8
	case clang.TypeLongLong, clang.TypeULongLong, clang.TypeDouble:
		return 8, 8
	case clang.TypeInt128, clang.TypeUInt128, clang.TypeFloat128:
		return 16, 16
	case clang.TypeLongDouble:
		return tu.abi.LongDoubleSize / 8, tu.abi.LongDoubleAlign / 8
	}
	return -1, -1
}

func isUnsigned(t cc.Type, charSigned bool) bool {
	if t.Kind() == cc.Char {
		return !charSigned
	}
	return unsignedKinds[t.Kind()]
}

// recordKey identifies a struct, union or enum across the types cc hands
// out for it. Tagged types are keyed by tag; untagged ones by their first
// member, which copies of the type share.
func recordKey(t cc.Type) any {
	switch x := t.(type) {
	case *cc.StructType:
		if tag := tokenSrc(x.Tag()); tag != "" {
			return "struct " + tag
		}
		if x.NumFields() > 0 {
			return x.FieldByIndex(0)
		}
	case *cc.UnionType:
		if tag := tokenSrc(x.Tag()); tag != "" {
			return "union " + tag
		}
		if x.NumFields() > 0 {
			return x.FieldByIndex(0)
		}
	case *cc.EnumType:
		if tag := tokenSrc(x.Tag()); tag != "" {
			return "enum " + tag
		}
		if es := x.Enumerators(); len(es) > 0 {
			return es[0]
		}
	}
	return t
}

func tagToken(t cc.Type) (cc.Token, bool) {
	switch x := t.(type) {
	case *cc.StructType:
		return x.Tag(), true
	case *cc.UnionType:
		return x.Tag(), true
	case *cc.EnumType:
		return x.Tag(), true
	}
	return cc.Token{}, false
}

func tagOf(t cc.Type) string {
	if tok, ok := tagToken(t); ok {
		return tok.SrcStr()
	}
	return ""
}

// declLoc returns where the record or enum with key is defined, or where
// its tag first appears.
func (tu *TranslationUnit) declLoc(key any, t cc.Type) clang.Location {
	if loc, ok := tu.defs[key]; ok {
		return loc
	}
	if tok, ok := tagToken(t); ok && tok.SrcStr() != "" {
		return tu.loc(tok.Position())
	}
	return clang.Location{}
}

// record returns the cursor of a struct or union, building it and its
// members on first use. A cursor first reached through an incomplete type
// is completed when the definition comes by.
func (tu *TranslationUnit) record(t cc.Type) *Cursor {
	key := recordKey(t)
	c, ok := tu.records[key]
	if ok && (c.isDef || t.IsIncomplete()) {
		return c
	}

	if !ok {
		kind, keyword := clang.CursorStructDecl, "struct "
		if t.Kind() == cc.Union {
			kind, keyword = clang.CursorUnionDecl, "union "
		}

		tag := tagOf(t)
		c = &Cursor{kind: kind, spelling: tag, loc: tu.declLoc(key, t), anonymous: tag == ""}
		spelling := keyword + tag
		if tag == "" {
			spelling = fmt.Sprintf("%s(anonymous at %s)", keyword, c.loc)
		}
		c.typ = &Type{kind: clang.TypeRecord, spelling: spelling, size: -1, align: -1, decl: c}
		tu.records[key] = c
	}

	f, isRecord := t.(fielder)
	if t.IsIncomplete() || !isRecord {
		return c
	}

	c.isDef = true
	if loc, ok := tu.defs[key]; ok {
		c.loc = loc
	}
	c.typ.size = t.Size()
	c.typ.align = int64(t.Align())

	for i := 0; i < f.NumFields(); i++ {
		field := f.FieldByIndex(i)
		if field == nil {
			continue
		}
		ft := field.Type()
		offset := field.Offset()*8 + int64(field.OffsetBits())

		if field.Name() == "" && !field.IsBitfield() && (ft.Kind() == cc.Struct || ft.Kind() == cc.Union) {
			member := tu.record(ft)
			member.anonRecord = true
			member.placed = true
			member.offset = offset
			c.children = append(c.children, member)
			continue
		}

		if d := tu.unplaced(ft, nil); d != nil {
			c.children = append(c.children, d)
		}

		loc, ok := tu.fields[fieldKey{record: key, name: field.Name()}]
		if !ok {
			loc = c.loc
		}
		fc := &Cursor{
			kind:     clang.CursorFieldDecl,
			spelling: field.Name(),
			typ:      tu.typeOf(ft),
			loc:      loc,
			bitField: field.IsBitfield(),
			offset:   offset,
		}
		if fc.bitField {
			fc.width = field.ValueBits()
		}
		c.children = append(c.children, fc)
	}

	return c
}

// enum returns the cursor of an enum.
func (tu *TranslationUnit) enum(t *cc.EnumType) *Cursor {
	key := recordKey(t)
	c, ok := tu.records[key]
	if ok && (c.isDef || t.IsIncomplete()) {
		return c
	}

	if !ok {
		tag := tokenSrc(t.Tag())
		c = &Cursor{kind: clang.CursorEnumDecl, spelling: tag, loc: tu.declLoc(key, t), anonymous: tag == ""}
		spelling := "enum " + tag
		if tag == "" {
			spelling = fmt.Sprintf("enum (anonymous at %s)", c.loc)
		}
		c.typ = &Type{kind: clang.TypeEnum, spelling: spelling, size: -1, align: -1, decl: c}
		tu.records[key] = c
	}

	if t.IsIncomplete() {
		return c
	}

	c.isDef = true
	if loc, ok := tu.defs[key]; ok {
		c.loc = loc
	}
	c.typ.size = t.Size()
	c.typ.align = int64(t.Align())
	c.enumInt = tu.typeOf(t.UnderlyingType())

	for _, e := range t.Enumerators() {
		ec := &Cursor{
			kind:     clang.CursorEnumConstantDecl,
			spelling: e.Token.SrcStr(),
			typ:      c.typ,
			loc:      tu.loc(e.Token.Position()),
		}
		switch v := e.Value().(type) {
		case cc.Int64Value:
			ec.enumValue = int64(v)
		case cc.UInt64Value:
			ec.enumValue = int64(v)
		}
		c.children = append(c.children, ec)
	}

	return c
}

// unplaced returns the definition of an untagged record used by t that no
// declaration holds yet, and marks it placed. Types spelled with a typedef
// name other than self refer to a record defined elsewhere.
func (tu *TranslationUnit) unplaced(t cc.Type, self *cc.Declarator) *Cursor {
	for t != nil {
		if d := t.Typedef(); d != nil && d != self {
			return nil
		}
		switch x := t.(type) {
		case *cc.PointerType:
			t = x.Elem()
			continue
		case *cc.ArrayType:
			t = x.Elem()
			continue
		}
		break
	}
	if t == nil || (t.Kind() != cc.Struct && t.Kind() != cc.Union) {
		return nil
	}

	c := tu.record(t)
	if !c.anonymous || c.anonRecord || c.placed {
		return nil
	}
	c.placed = true
	return c
}

// typedefCursor returns the cursor of a typedef, by name so the typedefs
// of a translated snippet resolve to those of the header.
func (tu *TranslationUnit) typedefCursor(d *cc.Declarator) *Cursor {
	name := d.Name()
	if c, ok := tu.typedefs[name]; ok {
		return c
	}

	c := &Cursor{kind: clang.CursorTypedefDecl, spelling: name, loc: tu.loc(d.Position()), isDef: true}
	td := &Type{kind: clang.TypeTypedef, spelling: name, decl: c}
	c.typ = td
	tu.typedefs[name] = c

	under := tu.convert(d.Type(), d)
	c.underlying = under
	td.canonical = under.canonicalType()

	fn := under
	if fn.kind == clang.TypePointer && fn.pointee.kind == clang.TypeFunctionProto {
		fn = fn.pointee
	}
	if fn.kind == clang.TypeFunctionProto {
		for i, a := range fn.args {
			c.children = append(c.children, &Cursor{kind: clang.CursorParmDecl, spelling: fn.params[i], typ: a, loc: c.loc})
		}
	}

	return c
}

// tokenSrc returns the source text of t. SrcStr has a pointer receiver, so
// it cannot be called directly on the Token values cc returns.
func tokenSrc(t cc.Token) string { return t.SrcStr() }
