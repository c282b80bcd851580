package cstruct

import (
	"regexp"
	"strconv"
	"strings"
)

// FieldValueKind distinguishes how a resolved FieldLayout's bytes should be
// interpreted.
type FieldValueKind uint8

const (
	FieldPrimitive FieldValueKind = iota
	FieldAggregate
	FieldArrayPrimitive
	FieldArrayAggregate
	FieldBitField
)

// FieldLayout is the resolved, offset-computed form of a field, carrying
// enough type information for the access facade to interpret the bytes at
// Offset.
type FieldLayout struct {
	Name      string
	Kind      FieldValueKind
	Leaf      Leaf
	Sub       *AggregateDescriptor // set when Kind is FieldAggregate/FieldArrayAggregate
	ArrayDims []int                // resolved dims, outer to inner; nil if not an array
	Flex      bool
	Offset    int
	Size      int
	Alignment int
	BitOffset int // valid only when Kind == FieldBitField
	BitWidth  int // valid only when Kind == FieldBitField
}

// AggregateDescriptor is the resolved, layout-computed representation of a
// struct, union, or enum.
type AggregateDescriptor struct {
	Tag        string
	Kind       AggregateKind
	Pack       int
	Size       int
	Alignment  int
	Fields     []FieldLayout
	EnumValues map[string]int64 // set only when Kind == EnumKind
}

var bitWidthRe = regexp.MustCompile(`^\d+$`)

func parseBitWidth(text string) (int, error) {
	text = strings.TrimSpace(text)
	if !bitWidthRe.MatchString(text) {
		return 0, &UnevaluableExprError{Text: text}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &UnevaluableExprError{Text: text}
	}
	return n, nil
}

// resolveDescriptorLocked synthesizes (or returns the memoized) descriptor
// for tag. Callers must hold e.mu.
func (e *Env) resolveDescriptorLocked(tag string, visiting map[string]bool) (*AggregateDescriptor, error) {
	if desc, ok := e.descriptors[tag]; ok {
		return desc, nil
	}
	if visiting[tag] {
		return nil, &UnknownTypeError{Text: tag}
	}

	rec, ok := e.aggregates[tag]
	if !ok {
		return nil, &SyntaxError{Tag: tag}
	}

	if rec.Kind == EnumKind {
		desc := &AggregateDescriptor{
			Tag:        tag,
			Kind:       EnumKind,
			Size:       enumWordSize,
			Alignment:  enumWordAlign,
			EnumValues: e.enumerators,
		}
		e.descriptors[tag] = desc
		return desc, nil
	}

	pack := rec.Pack
	if override, ok := e.packOverrides[tag]; ok {
		pack = override
	}

	specs, err := parseFields(rec.Body)
	if err != nil {
		return nil, err
	}

	visiting[tag] = true
	defer delete(visiting, tag)

	fields := make([]FieldLayout, 0, len(specs))
	for _, spec := range specs {
		fl, err := e.resolveFieldLayout(spec, pack, visiting)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fl)
	}

	if len(fields) == 1 && fields[0].Flex {
		desc := &AggregateDescriptor{Tag: tag, Kind: rec.Kind, Pack: pack, Size: 0, Alignment: 1}
		e.descriptors[tag] = desc
		return desc, nil
	}

	var size, align int
	switch rec.Kind {
	case UnionKind:
		size, align = layoutUnion(fields, pack)
	default:
		size, align = layoutStruct(fields, pack)
	}

	desc := &AggregateDescriptor{
		Tag:       tag,
		Kind:      rec.Kind,
		Pack:      pack,
		Size:      size,
		Alignment: align,
		Fields:    fields,
	}
	e.descriptors[tag] = desc
	return desc, nil
}

// resolveFieldLayout resolves a single FieldSpec's type reference and
// array dimensions into a (pre-offset) FieldLayout.
func (e *Env) resolveFieldLayout(spec FieldSpec, pack int, visiting map[string]bool) (FieldLayout, error) {
	fl := FieldLayout{Name: spec.Name}

	leaf, _, sub, err := e.resolveTypeRef(spec.TypeText, visiting)
	if err != nil {
		return fl, err
	}

	var elemSize, elemAlign int
	if sub != nil {
		elemSize, elemAlign = sub.Size, sub.Alignment
	} else {
		m := leaf.meta()
		elemSize, elemAlign = m.Size, m.Alignment
	}

	if spec.BitWidth != "" {
		if sub != nil {
			return fl, &UnknownTypeError{Text: spec.TypeText}
		}
		width, err := parseBitWidth(spec.BitWidth)
		if err != nil {
			return fl, err
		}
		fl.Kind = FieldBitField
		fl.Leaf = leaf
		fl.BitWidth = width
		fl.Alignment = elemAlign
		fl.Size = elemSize
		return fl, nil
	}

	if len(spec.ArrayDims) == 0 {
		if sub != nil {
			fl.Kind = FieldAggregate
			fl.Sub = sub
			fl.Size = sub.Size
			fl.Alignment = sub.Alignment
		} else {
			fl.Kind = FieldPrimitive
			fl.Leaf = leaf
			fl.Size = elemSize
			fl.Alignment = elemAlign
		}
		return fl, nil
	}

	flex := false
	dims := make([]int, 0, len(spec.ArrayDims))
	for i, d := range spec.ArrayDims {
		d = strings.TrimSpace(d)
		if d == "" {
			if i == 0 {
				flex = true
			}
			dims = append(dims, 0)
			continue
		}
		v, err := e.evalArrayExpr(d, visiting)
		if err != nil {
			return fl, err
		}
		if v == 0 && i == 0 {
			flex = true
		}
		dims = append(dims, v)
	}

	fl.ArrayDims = dims
	fl.Flex = flex
	if sub != nil {
		fl.Kind = FieldArrayAggregate
		fl.Sub = sub
	} else {
		fl.Kind = FieldArrayPrimitive
		fl.Leaf = leaf
	}
	fl.Alignment = elemAlign

	if flex {
		fl.Size = 0
		return fl, nil
	}

	total := elemSize
	for _, d := range dims {
		total *= d
	}
	fl.Size = total
	return fl, nil
}

// resolveTypeRef resolves a field's raw type text into either a primitive
// leaf or a nested aggregate descriptor. Lookup order: pointer
// short-circuit, aggregate tag, pointer-aggregate tag, enum tag, typedef
// chain, primitive keyword.
func (e *Env) resolveTypeRef(text string, visiting map[string]bool) (leaf Leaf, isPrimitive bool, sub *AggregateDescriptor, err error) {
	cur := strings.TrimSpace(text)
	seen := map[string]bool{}

	for {
		if strings.ContainsRune(cur, '*') {
			base := strings.TrimSpace(strings.ReplaceAll(cur, "*", ""))
			if base == "char" {
				return CStringPointer, true, nil, nil
			}
			return PointerWord, true, nil, nil
		}

		if rec, ok := e.aggregates[cur]; ok {
			if rec.Kind == EnumKind {
				return I32, true, nil, nil
			}
			desc, derr := e.resolveDescriptorLocked(cur, visiting)
			if derr != nil {
				return 0, false, nil, derr
			}
			return 0, false, desc, nil
		}

		if _, ok := e.pointerAggregates[cur]; ok {
			return PointerWord, true, nil, nil
		}

		if e.enums[cur] {
			return I32, true, nil, nil
		}

		if alias, ok := e.typedefs[cur]; ok {
			if seen[cur] {
				return 0, false, nil, &UnknownTypeError{Text: text}
			}
			seen[cur] = true
			cur = alias
			continue
		}

		if leaf, ok := resolvePrimitive(cur); ok {
			return leaf, true, nil, nil
		}

		return 0, false, nil, &UnknownTypeError{Text: text}
	}
}

var sizeofRe = regexp.MustCompile(`sizeof\s*\(([^()]*)\)`)

// evalArrayExpr evaluates an array-dimension expression: integer literals,
// enumerator names, the supported arithmetic operators, and sizeof(T)
// sub-expressions (substituted with T's resolved byte size before the
// arithmetic evaluator runs).
func (e *Env) evalArrayExpr(text string, visiting map[string]bool) (int, error) {
	var substErr error
	substituted := sizeofRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := sizeofRe.FindStringSubmatch(m)[1]
		size, err := e.resolveSizeofArg(strings.TrimSpace(inner), visiting)
		if err != nil {
			substErr = err
			return "0"
		}
		return strconv.Itoa(size)
	})
	if substErr != nil {
		return 0, substErr
	}

	v, err := e.evalIntExpr(substituted, nil)
	if err != nil {
		return 0, &UnevaluableExprError{Text: text}
	}
	return int(v), nil
}

func (e *Env) resolveSizeofArg(text string, visiting map[string]bool) (int, error) {
	leaf, _, sub, err := e.resolveTypeRef(text, visiting)
	if err != nil {
		return 0, err
	}
	if sub != nil {
		return sub.Size, nil
	}
	return leaf.meta().Size, nil
}

// layoutStruct computes field offsets for a struct under the given pack
// value (NaturalPack for alignment-based layout, 1 for byte-exact
// packing). Runs of bit-fields with the same base type share a storage
// unit, packed LSB-first until the next width would cross the unit
// boundary.
func layoutStruct(fields []FieldLayout, pack int) (size, alignment int) {
	cursor := 0
	maxAlign := 1

	i := 0
	for i < len(fields) {
		f := &fields[i]

		if f.Kind == FieldBitField {
			unitSize := f.Size
			unitAlign := f.Alignment
			if pack == 1 {
				unitAlign = 1
			} else if pack != 0 && pack < unitAlign {
				unitAlign = pack
			}
			if unitAlign < 1 {
				unitAlign = 1
			}
			cursor = alignUp(cursor, unitAlign)
			unitStart := cursor
			bitPos := 0

			for i < len(fields) && fields[i].Kind == FieldBitField && fields[i].Leaf == f.Leaf {
				bw := fields[i].BitWidth
				if bitPos+bw > unitSize*8 {
					break
				}
				fields[i].Offset = unitStart
				fields[i].BitOffset = bitPos
				fields[i].Size = unitSize
				bitPos += bw
				i++
			}

			cursor = unitStart + unitSize
			if unitAlign > maxAlign {
				maxAlign = unitAlign
			}
			continue
		}

		align := f.Alignment
		if pack != 0 && pack < align {
			align = pack
		}
		if align < 1 {
			align = 1
		}
		cursor = alignUp(cursor, align)
		f.Offset = cursor
		cursor += f.Size
		if align > maxAlign {
			maxAlign = align
		}
		i++
	}

	size = cursor
	if pack != 1 && maxAlign > 0 {
		size = alignUp(size, maxAlign)
	}
	return size, maxAlign
}

// layoutUnion computes the union layout: every offset is 0, size is the
// max member size, rounded up to the union's alignment unless pack is 1.
func layoutUnion(fields []FieldLayout, pack int) (size, alignment int) {
	maxSize := 0
	maxAlign := 1

	for i := range fields {
		fields[i].Offset = 0
		if fields[i].Size > maxSize {
			maxSize = fields[i].Size
		}
		align := fields[i].Alignment
		if pack != 0 && pack < align {
			align = pack
		}
		if align > maxAlign {
			maxAlign = align
		}
	}

	size = maxSize
	if pack != 1 {
		size = alignUp(size, maxAlign)
	}
	return size, maxAlign
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	if rem := v % align; rem != 0 {
		return v + (align - rem)
	}
	return v
}
