// Package cstruct parses preprocessed C declarations and decodes raw byte
// buffers against the discovered struct/union/enum layouts. The schema is
// discovered at load time, not compiled in: callers feed it intermediate
// (post-preprocessor) C source text, then ask it to decode a tagged
// aggregate over a byte slice.
package cstruct

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// AggregateKind distinguishes the three aggregate shapes this package
// understands.
type AggregateKind uint8

const (
	StructKind AggregateKind = iota
	UnionKind
	EnumKind
)

func (k AggregateKind) String() string {
	switch k {
	case StructKind:
		return "struct"
	case UnionKind:
		return "union"
	case EnumKind:
		return "enum"
	default:
		return "unknown"
	}
}

// NaturalPack marks an aggregate with no pack override: alignment-based
// layout applies.
const NaturalPack = 0

// AggregateRecord is the raw, unresolved form of a parsed struct/union/enum
// declaration: its tag, its kind, the literal body text between the braces,
// and any pack override in effect for it.
type AggregateRecord struct {
	Tag  string
	Kind AggregateKind
	Body string
	Pack int // NaturalPack, or a byte count (the packed attribute records 1)
}

// Env is the type environment: interning tables for primitive types,
// typedef aliases, struct/union tags, pointer-only aggregate tags, enum
// tags/enumerators, and per-aggregate pack overrides. It is built up
// monotonically by AddSource and is cleared only by ClearSource.
//
// Descriptor synthesis (Env.descriptorFor) is read-only against these
// tables and memoizes results in descriptors; the mutex lets a long-lived
// Env serve concurrent Decode calls against distinct tags.
type Env struct {
	mu sync.RWMutex

	sourceChunks []string
	parsed       bool

	typedefs          map[string]string // alias text -> base type text (may chain)
	aggregates        map[string]*AggregateRecord
	pointerAggregates map[string]string // name -> target aggregate tag text
	enums             map[string]bool
	enumerators       map[string]int64
	packOverrides     map[string]int

	descriptors map[string]*AggregateDescriptor

	Log *logrus.Logger
}

// NewEnv returns an empty, ready-to-use type environment.
func NewEnv() *Env {
	e := &Env{Log: logrus.New()}
	e.reset()
	return e
}

func (e *Env) reset() {
	e.typedefs = make(map[string]string)
	e.aggregates = make(map[string]*AggregateRecord)
	e.pointerAggregates = make(map[string]string)
	e.enums = make(map[string]bool)
	e.enumerators = make(map[string]int64)
	e.packOverrides = make(map[string]int)
	e.descriptors = make(map[string]*AggregateDescriptor)
	e.parsed = false
}

// AddSource appends a chunk of preprocessed C source text to the
// environment. Sources may be added incrementally; Parse must be called
// (again, if sources were added after a previous Parse) before Decode.
func (e *Env) AddSource(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceChunks = append(e.sourceChunks, text)
	e.parsed = false
}

// ClearSource resets the environment to empty: all interning tables and
// the descriptor cache are discarded.
func (e *Env) ClearSource() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceChunks = nil
	e.reset()
}

// SetPack records a pack override for an aggregate name ahead of parsing,
// useful when the source does not spell out its packing attribute
// explicitly but the caller knows it out of band. The layout synthesizer
// (see layout.go) caps each field's alignment at pack bytes; pack=1 gives
// byte-exact layout with no padding.
func (e *Env) SetPack(tag string, pack int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.packOverrides[tag] = pack
}

// Parse processes every accumulated source chunk and (re)builds the
// environment's interning tables. It is idempotent: calling it again
// without adding new sources is a no-op.
func (e *Env) Parse() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.parsed {
		return nil
	}

	e.typedefs = make(map[string]string)
	e.aggregates = make(map[string]*AggregateRecord)
	e.pointerAggregates = make(map[string]string)
	e.enums = make(map[string]bool)
	e.enumerators = make(map[string]int64)
	// packOverrides is kept: it also holds SetPack entries, which only
	// ClearSource discards.
	e.descriptors = make(map[string]*AggregateDescriptor)

	for _, chunk := range e.sourceChunks {
		if err := e.parseChunk(chunk); err != nil {
			return err
		}
	}

	e.parsed = true
	return nil
}

// SizeOf returns the total byte size of the aggregate named tag. Parse
// must have been called first.
func (e *Env) SizeOf(tag string) (int, error) {
	desc, err := e.descriptorFor(tag)
	if err != nil {
		return 0, err
	}
	return desc.Size, nil
}

// Decode returns a Value facade over bytes[offset:offset+size_of(tag)],
// populated from those bytes (or left zeroed if the slice is shorter than
// the aggregate's size; see facade.go).
func (e *Env) Decode(tag string, data []byte, offset int) (*Value, error) {
	desc, err := e.descriptorFor(tag)
	if err != nil {
		return nil, err
	}

	end := offset + desc.Size
	if offset >= 0 && end <= len(data) {
		// Enough bytes: the facade borrows the sub-slice, so writes
		// through it land in the caller's buffer and are visible to
		// every aliasing view over the same bytes.
		return &Value{desc: desc, env: e, data: data[offset:end]}, nil
	}

	e.Log.WithFields(logrus.Fields{
		"tag":      tag,
		"offset":   offset,
		"expected": desc.Size,
		"len":      len(data),
	}).Warn("cstruct: buffer size mismatch on populate, leaving facade zero-filled")

	return &Value{desc: desc, env: e, data: make([]byte, desc.Size)}, nil
}

func (e *Env) descriptorFor(tag string) (*AggregateDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.parsed {
		return nil, ErrNotParsed
	}
	return e.resolveDescriptorLocked(tag, map[string]bool{})
}
