package cstruct

import "strings"

// Leaf identifies one of the closed set of primitive leaf kinds a field can
// ultimately resolve to.
type Leaf uint8

const (
	I8 Leaf = iota
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	FLongDouble
	Bool
	PointerWord
	ByteChar
	CStringPointer
)

func (l Leaf) String() string {
	switch l {
	case I8:
		return "i8"
	case U8:
		return "u8"
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case FLongDouble:
		return "f_long_double"
	case Bool:
		return "bool"
	case PointerWord:
		return "pointer_word"
	case ByteChar:
		return "byte_char"
	case CStringPointer:
		return "cstring_pointer"
	default:
		return "unknown"
	}
}

// LeafMeta carries the width and natural alignment for a Leaf. Alignment
// equals width for every leaf. FLongDouble's width is platform specific;
// this implementation commits to the 16 bytes below.
type LeafMeta struct {
	Size      int
	Alignment int
}

// leafTable is keyed by the closed Leaf set rather than by C type
// spelling: one entry per leaf kind instead of one per spelling variant.
var leafTable = map[Leaf]LeafMeta{
	I8:             {1, 1},
	U8:             {1, 1},
	I16:            {2, 2},
	U16:            {2, 2},
	I32:            {4, 4},
	U32:            {4, 4},
	I64:            {8, 8},
	U64:            {8, 8},
	F32:            {4, 4},
	F64:            {8, 8},
	FLongDouble:    {16, 16},
	Bool:           {1, 1},
	PointerWord:    {8, 8},
	ByteChar:       {1, 1},
	CStringPointer: {8, 8},
}

func (l Leaf) meta() LeafMeta {
	if l == PointerWord || l == CStringPointer {
		return LeafMeta{pointerWordSize, pointerWordAlign}
	}
	return leafTable[l]
}

// Mutable platform profile: pointer and enum word widths.
var (
	pointerWordSize  = 8
	pointerWordAlign = 8
	enumWordSize     = 4
	enumWordAlign    = 4
)

// SetLP64 restores the default 64-bit pointer/enum widths this package
// starts with.
func SetLP64() {
	pointerWordSize, pointerWordAlign = 8, 8
	enumWordSize, enumWordAlign = 4, 4
}

// Set32Bit narrows pointers to a 32-bit word, for environments decoding
// buffers captured from a 32-bit process.
func Set32Bit() {
	pointerWordSize, pointerWordAlign = 4, 4
	enumWordSize, enumWordAlign = 4, 4
}

// primitiveKeywords is the canonical mapping from C type text to leaf kind.
// "long"/"unsigned long" commit to the LP64 width (8 bytes). Set32Bit
// narrows only the pointer word; these entries stay 8 bytes under it.
var primitiveKeywords = map[string]Leaf{
	"char":                   I8,
	"signed char":            I8,
	"unsigned char":          U8,
	"_Bool":                  Bool,
	"bool":                   Bool,
	"short":                  I16,
	"short int":              I16,
	"signed short":           I16,
	"signed short int":       I16,
	"unsigned short":         U16,
	"unsigned short int":     U16,
	"int":                    I32,
	"signed":                 I32,
	"signed int":             I32,
	"unsigned int":           U32,
	"unsigned":               U32,
	"long":                   I64,
	"long int":               I64,
	"signed long":            I64,
	"signed long int":        I64,
	"unsigned long":          U64,
	"unsigned long int":      U64,
	"long long":              I64,
	"long long int":          I64,
	"signed long long":       I64,
	"signed long long int":   I64,
	"unsigned long long":     U64,
	"unsigned long long int": U64,
	"float":                  F32,
	"double":                 F64,
	"long double":            FLongDouble,
	"int8_t":                 I8,
	"uint8_t":                U8,
	"int16_t":                I16,
	"uint16_t":               U16,
	"int32_t":                I32,
	"uint32_t":               U32,
	"int64_t":                I64,
	"uint64_t":               U64,
	"intptr_t":               I64,
	"uintptr_t":              U64,
}

// resolvePrimitive looks up a primitive type text in the keyword table.
// Any text containing a '*' short-circuits to a pointer leaf: cstring for
// "char *"-shaped text, a bare pointer word otherwise.
func resolvePrimitive(text string) (Leaf, bool) {
	if strings.ContainsRune(text, '*') {
		trimmed := strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
		if trimmed == "char" {
			return CStringPointer, true
		}
		return PointerWord, true
	}
	leaf, ok := primitiveKeywords[text]
	return leaf, ok
}
