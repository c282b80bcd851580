package cstruct

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is the access facade: a handle combining a resolved descriptor
// (or a leaf/array/bitfield projection of one) with a byte slice. Every
// Value returned by navigating from a Decode result shares the same
// backing array, so writes through any aliasing Value (e.g. two union
// members overlapping byte 0) are visible to every other one.
type Value struct {
	env *Env

	desc *AggregateDescriptor // set when this Value denotes a struct/union

	isArray   bool
	dims      []int // remaining dims, outer to inner
	elemIsAgg bool
	elemSub   *AggregateDescriptor
	elemLeaf  Leaf

	isBitField bool
	bitOffset  int
	bitWidth   int

	leaf Leaf // valid when desc == nil, !isArray, !isBitField

	data []byte
}

// Descriptor returns the resolved descriptor backing this Value, or nil if
// the Value denotes a leaf, array, or bit-field projection rather than a
// whole aggregate.
func (v *Value) Descriptor() *AggregateDescriptor { return v.desc }

// Raw returns a copy of the bytes this Value currently covers.
func (v *Value) Raw() []byte {
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out
}

// Fields returns the ordered field list of the aggregate this Value
// denotes, for rendering (name, type, offset, size). It is nil if this
// Value is not an aggregate.
func (v *Value) Fields() []FieldLayout {
	if v.desc == nil {
		return nil
	}
	return v.desc.Fields
}

// Field looks up a named field by name and returns a Value over it.
// Returns an error if this Value is not an aggregate or the name is
// unknown.
func (v *Value) Field(name string) (*Value, error) {
	if v.desc == nil {
		return nil, fmt.Errorf("cstruct: not an aggregate value")
	}
	for i := range v.desc.Fields {
		f := &v.desc.Fields[i]
		if f.Name != name {
			continue
		}
		return v.fieldValue(f)
	}
	return nil, fmt.Errorf("cstruct: no such field %q in %s", name, v.desc.Tag)
}

func (v *Value) fieldValue(f *FieldLayout) (*Value, error) {
	end := f.Offset + f.Size
	if end > len(v.data) {
		end = len(v.data)
	}
	start := f.Offset
	if start > len(v.data) {
		start = len(v.data)
	}
	sub := &Value{env: v.env, data: v.data[start:end]}

	switch f.Kind {
	case FieldAggregate:
		sub.desc = f.Sub
	case FieldPrimitive:
		sub.leaf = f.Leaf
	case FieldBitField:
		sub.isBitField = true
		sub.leaf = f.Leaf
		sub.bitOffset = f.BitOffset
		sub.bitWidth = f.BitWidth
	case FieldArrayPrimitive:
		sub.isArray = true
		sub.dims = f.ArrayDims
		sub.elemLeaf = f.Leaf
	case FieldArrayAggregate:
		sub.isArray = true
		sub.dims = f.ArrayDims
		sub.elemIsAgg = true
		sub.elemSub = f.Sub
	}
	return sub, nil
}

// Len returns the outermost array dimension. Valid only when this Value is
// an array.
func (v *Value) Len() int {
	if !v.isArray || len(v.dims) == 0 {
		return 0
	}
	return v.dims[0]
}

// Index returns a Value over element i of an array. Bounds-checked.
func (v *Value) Index(i int) (*Value, error) {
	if !v.isArray || len(v.dims) == 0 {
		return nil, fmt.Errorf("cstruct: not an array value")
	}
	if i < 0 || i >= v.dims[0] {
		return nil, &BoundsError{Index: i, Len: v.dims[0]}
	}

	remaining := v.dims[1:]
	elemCount := 1
	for _, d := range remaining {
		elemCount *= d
	}

	var unitSize int
	if v.elemIsAgg {
		unitSize = v.elemSub.Size
	} else {
		unitSize = v.elemLeaf.meta().Size
	}
	stride := elemCount * unitSize
	start := i * stride
	end := start + stride
	if end > len(v.data) {
		end = len(v.data)
	}
	if start > len(v.data) {
		start = len(v.data)
	}

	sub := &Value{env: v.env, data: v.data[start:end]}
	if len(remaining) == 0 {
		if v.elemIsAgg {
			sub.desc = v.elemSub
		} else {
			sub.leaf = v.elemLeaf
		}
		return sub, nil
	}

	sub.isArray = true
	sub.dims = remaining
	sub.elemIsAgg = v.elemIsAgg
	sub.elemSub = v.elemSub
	sub.elemLeaf = v.elemLeaf
	return sub, nil
}

// Populate overwrites this Value's bytes from buf, but only when buf's
// length exactly matches; otherwise the Value is left untouched. A size
// mismatch is tolerated rather than raised so callers can pre-allocate a
// facade against an incomplete stream and fill it later.
func (v *Value) Populate(buf []byte) {
	if len(buf) != len(v.data) {
		if v.env != nil {
			v.env.Log.WithField("expected", len(v.data)).WithField("got", len(buf)).
				Warn("cstruct: Populate size mismatch, value left unchanged")
		}
		return
	}
	copy(v.data, buf)
}

func (v *Value) bitFieldWord() uint64 {
	var word uint64
	switch len(v.data) {
	case 1:
		word = uint64(v.data[0])
	case 2:
		word = uint64(binary.LittleEndian.Uint16(v.data))
	case 4:
		word = uint64(binary.LittleEndian.Uint32(v.data))
	case 8:
		word = binary.LittleEndian.Uint64(v.data)
	}
	return word
}

func (v *Value) writeBitFieldWord(word uint64) {
	switch len(v.data) {
	case 1:
		v.data[0] = byte(word)
	case 2:
		binary.LittleEndian.PutUint16(v.data, uint16(word))
	case 4:
		binary.LittleEndian.PutUint32(v.data, uint32(word))
	case 8:
		binary.LittleEndian.PutUint64(v.data, word)
	}
}

// Uint reads this Value as an unsigned integer. Valid for every integer,
// bool and pointer-word primitive leaf (signed leaves yield their raw
// two's-complement bits) and for bit-fields.
func (v *Value) Uint() (uint64, error) {
	if v.isBitField {
		word := v.bitFieldWord()
		mask := uint64(1)<<uint(v.bitWidth) - 1
		return (word >> uint(v.bitOffset)) & mask, nil
	}
	if v.desc != nil || v.isArray {
		return 0, fmt.Errorf("cstruct: not a scalar value")
	}
	switch v.leaf {
	case U8, ByteChar, Bool:
		return uint64(v.data[0]), nil
	case U16:
		return uint64(binary.LittleEndian.Uint16(v.data)), nil
	case U32:
		return uint64(binary.LittleEndian.Uint32(v.data)), nil
	case U64, PointerWord, CStringPointer:
		return binary.LittleEndian.Uint64(v.data), nil
	case I8:
		return uint64(v.data[0]), nil
	case I16:
		return uint64(binary.LittleEndian.Uint16(v.data)), nil
	case I32:
		return uint64(binary.LittleEndian.Uint32(v.data)), nil
	case I64:
		return binary.LittleEndian.Uint64(v.data), nil
	default:
		return 0, fmt.Errorf("cstruct: leaf %s has no integer representation", v.leaf)
	}
}

// Int reads this Value as a signed integer.
func (v *Value) Int() (int64, error) {
	if v.isBitField {
		u, err := v.Uint()
		return int64(u), err
	}
	switch v.leaf {
	case I8:
		return int64(int8(v.data[0])), nil
	case I16:
		return int64(int16(binary.LittleEndian.Uint16(v.data))), nil
	case I32:
		return int64(int32(binary.LittleEndian.Uint32(v.data))), nil
	case I64:
		return int64(binary.LittleEndian.Uint64(v.data)), nil
	default:
		u, err := v.Uint()
		return int64(u), err
	}
}

// Float reads this Value as a floating point number. Only F32 and F64 are
// supported; FLongDouble occupies its documented width but this
// implementation does not interpret its bit pattern (no native Go type
// matches it).
func (v *Value) Float() (float64, error) {
	switch v.leaf {
	case F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(v.data))), nil
	case F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(v.data)), nil
	default:
		return 0, fmt.Errorf("cstruct: leaf %s is not a float", v.leaf)
	}
}

// SetUint writes val as this Value's bytes. Valid for integer primitive
// leaves and bit-fields; writes through to any aliasing Value over the
// same bytes (union members, nested structs).
func (v *Value) SetUint(val uint64) error {
	if v.isBitField {
		mask := uint64(1)<<uint(v.bitWidth) - 1
		word := v.bitFieldWord()
		word &^= mask << uint(v.bitOffset)
		word |= (val & mask) << uint(v.bitOffset)
		v.writeBitFieldWord(word)
		return nil
	}
	if v.desc != nil || v.isArray {
		return fmt.Errorf("cstruct: not a scalar value")
	}
	switch v.leaf {
	case U8, I8, ByteChar, Bool:
		v.data[0] = byte(val)
	case U16, I16:
		binary.LittleEndian.PutUint16(v.data, uint16(val))
	case U32, I32:
		binary.LittleEndian.PutUint32(v.data, uint32(val))
	case U64, I64, PointerWord, CStringPointer:
		binary.LittleEndian.PutUint64(v.data, val)
	default:
		return fmt.Errorf("cstruct: leaf %s has no integer representation", v.leaf)
	}
	return nil
}

// SetInt writes val as this Value's bytes. See SetUint.
func (v *Value) SetInt(val int64) error {
	return v.SetUint(uint64(val))
}

// SetFloat writes val as this Value's bytes. Only F32 and F64 are
// supported.
func (v *Value) SetFloat(val float64) error {
	switch v.leaf {
	case F32:
		binary.LittleEndian.PutUint32(v.data, math.Float32bits(float32(val)))
		return nil
	case F64:
		binary.LittleEndian.PutUint64(v.data, math.Float64bits(val))
		return nil
	default:
		return fmt.Errorf("cstruct: leaf %s is not a float", v.leaf)
	}
}
