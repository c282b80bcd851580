package cstruct

import (
	"bytes"
	"testing"
)

// decodeOrFatal is a small helper shared by the tests below: parse a
// single source chunk and decode tag over data, failing fast on any setup
// error.
func decodeOrFatal(t *testing.T, src, tag string, data []byte) *Value {
	t.Helper()
	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	val, err := env.Decode(tag, data, 0)
	if err != nil {
		t.Fatalf("Decode(%s): %v", tag, err)
	}
	return val
}

func TestDecodePackedStruct(t *testing.T) {
	src := `typedef __attribute__((packed)) struct { unsigned int a; char b; double c; } Test1;`
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x62, 0, 0, 0, 0, 0, 0, 0x04, 0x40}

	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Test1")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 13 {
		t.Fatalf("size = %d, want 13", size)
	}

	val, err := env.Decode("Test1", data, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	a, err := val.Field("a")
	if err != nil {
		t.Fatal(err)
	}
	if u, _ := a.Uint(); u != 0xFFFFFFFF {
		t.Errorf("a = %#x, want 0xFFFFFFFF", u)
	}

	b, err := val.Field("b")
	if err != nil {
		t.Fatal(err)
	}
	if u, _ := b.Uint(); u != 'b' {
		t.Errorf("b = %c, want b", byte(u))
	}

	c, err := val.Field("c")
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := c.Float(); f != 2.5 {
		t.Errorf("c = %v, want 2.5", f)
	}
}

func TestDecodeNestedStruct(t *testing.T) {
	src := `
typedef __attribute__((packed)) struct { unsigned int a; char b; double c; } Test1;
typedef __attribute__((packed)) struct { int a; Test1 b; double c; } Test2;
`
	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	size, err := env.SizeOf("Test2")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 25 {
		t.Fatalf("size = %d, want 25", size)
	}

	data := make([]byte, 25)
	data[4+4] = 'r' // Test2.b.b is at offset 4 (a) + 4 (Test1.a) = 8

	val, err := env.Decode("Test2", data, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, err := val.Field("b")
	if err != nil {
		t.Fatal(err)
	}
	bb, err := b.Field("b")
	if err != nil {
		t.Fatal(err)
	}
	if u, _ := bb.Uint(); u != 'r' {
		t.Errorf("b.b = %c, want r", byte(u))
	}
}

func TestTwoDimensionalArrayWrite(t *testing.T) {
	src := `typedef __attribute__((packed)) struct {
		unsigned int firstArr[2][3];
		unsigned short secondArr[6];
		unsigned short shorty;
		unsigned int four_bytes;
	} Test3;`

	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Test3")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 42 {
		t.Fatalf("size = %d, want 42", size)
	}

	data := make([]byte, 42)
	val, err := env.Decode("Test3", data, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	arr, err := val.Field("firstArr")
	if err != nil {
		t.Fatal(err)
	}
	row0, err := arr.Index(0)
	if err != nil {
		t.Fatal(err)
	}
	elem2, err := row0.Index(2)
	if err != nil {
		t.Fatal(err)
	}
	if err := elem2.SetUint(100); err != nil {
		t.Fatal(err)
	}

	want := []byte{100, 0, 0, 0}
	if got := data[8:12]; !bytes.Equal(got, want) {
		t.Errorf("bytes[8:12] = %v, want %v", got, want)
	}
}

func TestBitFieldPacking(t *testing.T) {
	src := `typedef __attribute__((packed)) struct {
		unsigned a:12;
		unsigned b:10;
		unsigned c:1;
		const char *p;
	} Test4;`

	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Test4")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 12 {
		t.Fatalf("size = %d, want 12", size)
	}

	data := make([]byte, 12)
	val, err := env.Decode("Test4", data, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	a, _ := val.Field("a")
	b, _ := val.Field("b")
	c, _ := val.Field("c")

	if err := a.SetUint(0xFFF); err != nil {
		t.Fatal(err)
	}
	if err := b.SetUint(0x3FF); err != nil {
		t.Fatal(err)
	}
	if err := c.SetUint(1); err != nil {
		t.Fatal(err)
	}

	// bits 0-11 (a) + 12-21 (b) + bit 22 (c) all set = bits 0..22 set
	word := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	want := uint32(1)<<23 - 1
	if word != want {
		t.Errorf("storage word = %#x, want %#x", word, want)
	}
}

func TestAnonymousEnumValues(t *testing.T) {
	src := `
enum { FIRST = 0x6, SECOND, THIRD = 8 };
typedef struct { int firstEnum; int secondEnum; int thirdEnum; } Test5;
`
	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if v := env.enumerators["FIRST"]; v != 6 {
		t.Errorf("FIRST = %d, want 6", v)
	}
	if v := env.enumerators["SECOND"]; v != 7 {
		t.Errorf("SECOND = %d, want 7", v)
	}
	if v := env.enumerators["THIRD"]; v != 8 {
		t.Errorf("THIRD = %d, want 8", v)
	}
}

func TestUnionWriteThroughAliasing(t *testing.T) {
	src := `typedef __attribute__((packed)) union {
		short smaller;
		unsigned char very;
		signed char small;
		unsigned long long large;
	} Test6;`

	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Test6")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 8 {
		t.Fatalf("size = %d, want 8", size)
	}

	data := make([]byte, 8)
	val, err := env.Decode("Test6", data, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	large, _ := val.Field("large")
	if err := large.SetUint(0xAABBCCDDEEFF0011); err != nil {
		t.Fatal(err)
	}

	smaller, _ := val.Field("smaller")
	u, err := smaller.Uint()
	if err != nil {
		t.Fatal(err)
	}
	if u != 0x0011 {
		t.Errorf("smaller = %#x, want 0x11", u)
	}
}

func TestFlexibleTailArrayHasZeroSize(t *testing.T) {
	src := `typedef struct { void *omitted[]; } Test7;`

	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Test7")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 0 {
		t.Errorf("size = %d, want 0", size)
	}
}

func TestDecodeAtOffsetBorrowsCallerBytes(t *testing.T) {
	src := `
typedef __attribute__((packed)) struct { unsigned int a; char b; double c; } Test1;
typedef __attribute__((packed)) struct { int a; Test1 b; double c; } Test2;
`
	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// 13 bytes of Test1, then 25 bytes of Test2: Test2 decodes at offset 13.
	data := make([]byte, 13+25)
	data[13+4+4] = 'r' // Test2.b.b

	val, err := env.Decode("Test2", data, 13)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, err := val.Field("b")
	if err != nil {
		t.Fatal(err)
	}
	bb, err := b.Field("b")
	if err != nil {
		t.Fatal(err)
	}
	if u, _ := bb.Uint(); u != 'r' {
		t.Errorf("b.b = %c, want r", byte(u))
	}

	// The facade borrows the caller's bytes: a write lands in data.
	a, err := val.Field("a")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SetUint(0x01020304); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if got := data[13:17]; !bytes.Equal(got, want) {
		t.Errorf("data[13:17] = %v, want %v", got, want)
	}
}

func TestRoundTripRawBytes(t *testing.T) {
	src := `typedef __attribute__((packed)) struct { unsigned int a; char b; double c; } Test1;`
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x62, 1, 2, 3, 4, 5, 6, 7, 8}

	val := decodeOrFatal(t, src, "Test1", data)
	if got := val.Raw(); !bytes.Equal(got, data) {
		t.Errorf("Raw() = %v, want %v", got, data)
	}
}

func TestEnumTypedFieldDecodesAsInt32(t *testing.T) {
	src := `
typedef enum { RED = 1, GREEN, BLUE } color_t;
typedef __attribute__((packed)) struct { color_t fg; color_t bg; } Palette;
`
	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Palette")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 8 {
		t.Fatalf("size = %d, want 8 (two i32 enum slots)", size)
	}

	data := []byte{3, 0, 0, 0, 1, 0, 0, 0}
	val, err := env.Decode("Palette", data, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fg, err := val.Field("fg")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := fg.Int(); v != 3 {
		t.Errorf("fg = %d, want 3 (BLUE)", v)
	}
}

func TestBufferSizeMismatchTolerated(t *testing.T) {
	src := `typedef struct { int a; int b; } Pair;`
	val := decodeOrFatal(t, src, "Pair", []byte{1, 2, 3}) // too short

	a, err := val.Field("a")
	if err != nil {
		t.Fatal(err)
	}
	u, err := a.Uint()
	if err != nil {
		t.Fatal(err)
	}
	if u != 0 {
		t.Errorf("a = %d, want 0 (zero-filled on mismatch)", u)
	}
}

func TestUnknownAggregateIsSyntaxError(t *testing.T) {
	env := NewEnv()
	env.AddSource(`typedef struct { int a; } Known;`)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err := env.Decode("Unknown", nil, 0)
	var synErr *SyntaxError
	if err == nil {
		t.Fatal("expected an error")
	}
	if !asSyntaxError(err, &synErr) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
}

func asSyntaxError(err error, target **SyntaxError) bool {
	se, ok := err.(*SyntaxError)
	if ok {
		*target = se
	}
	return ok
}

func TestPointerFieldIsWordSized(t *testing.T) {
	src := `typedef __attribute__((packed)) struct { char *name; int tag; } Tagged;`
	env := NewEnv()
	env.AddSource(src)
	if err := env.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	size, err := env.SizeOf("Tagged")
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if size != 12 {
		t.Fatalf("size = %d, want 12 (8 byte pointer + 4 byte int)", size)
	}
}
