package cstruct

import "fmt"

// DefaultEnumVal is substituted for an enumerator whose initializer
// expression could not be evaluated.
const DefaultEnumVal int64 = -1

// Setup errors: raised from Parse or Decode, never recovered inside the
// core. Callers decide whether to drop the declaration and continue.
var (
	ErrSyntax         = fmt.Errorf("cstruct: unknown aggregate tag")
	ErrUnknownType    = fmt.Errorf("cstruct: unresolvable type reference")
	ErrUnevaluable    = fmt.Errorf("cstruct: unevaluable expression")
	ErrNotImplemented = fmt.Errorf("cstruct: construct not implemented")
	ErrNotParsed      = fmt.Errorf("cstruct: Parse must be called before Decode")
)

// SyntaxError reports that a requested aggregate tag is absent from the
// environment.
type SyntaxError struct {
	Tag string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cstruct: unknown aggregate %q", e.Tag)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// UnknownTypeError reports that a type reference text could not be
// resolved through the primitive table, the typedef chain, or any tagged
// aggregate/enum table.
type UnknownTypeError struct {
	Text string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("cstruct: unknown type %q", e.Text)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// UnevaluableExprError reports a constant expression (an array dimension,
// a bit-field width, or an enum initializer) that could not be evaluated.
// For array dimensions and bit-field widths it is fatal for the field that
// carries it; an enum initializer failure falls back to DefaultEnumVal.
type UnevaluableExprError struct {
	Text string
}

func (e *UnevaluableExprError) Error() string {
	return fmt.Sprintf("cstruct: unevaluable expression %q", e.Text)
}

func (e *UnevaluableExprError) Unwrap() error { return ErrUnevaluable }

// NotImplementedError reports a construct explicitly out of scope, such as
// an inline anonymous aggregate nested inside a field.
type NotImplementedError struct {
	What string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("cstruct: not implemented: %s", e.What)
}

func (e *NotImplementedError) Unwrap() error { return ErrNotImplemented }

// BoundsError is a data error surfaced from the access facade on an
// out-of-range array index.
type BoundsError struct {
	Index, Len int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("cstruct: index %d out of bounds (len %d)", e.Index, e.Len)
}
