// Package loader provides a convenience layer around the core decoder:
// reading intermediate C files from disk, and a pluggable source of byte
// buffers to decode against.
package loader

import (
	"os"

	"github.com/Abathargh/cstruct"
)

// BufferProvider is any source of bytes that can yield a contiguous
// slice to decode against.
type BufferProvider interface {
	Bytes() ([]byte, error)
}

// StaticBuffer is a BufferProvider over an in-memory byte slice.
type StaticBuffer []byte

func (b StaticBuffer) Bytes() ([]byte, error) { return b, nil }

// FileBuffer is a BufferProvider that reads its bytes from a file on
// demand.
type FileBuffer struct {
	Path string
}

func (f FileBuffer) Bytes() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Source reads one or more intermediate C files from disk and feeds their
// text into an Env.
type Source struct {
	Env *cstruct.Env
}

// NewSource returns a Source wrapping env. If env is nil, a fresh Env is
// created.
func NewSource(env *cstruct.Env) *Source {
	if env == nil {
		env = cstruct.NewEnv()
	}
	return &Source{Env: env}
}

// AddFile reads path and appends its contents to the wrapped Env as a new
// source chunk. It does not call Parse; callers decide when to (re)parse
// after adding every file they intend to add in one batch.
func (s *Source) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.Env.AddSource(string(data))
	return nil
}

// Decode is a convenience wrapper combining a BufferProvider with
// Env.Decode: it reads the provider's bytes and decodes tag at offset.
func Decode(env *cstruct.Env, tag string, provider BufferProvider, offset int) (*cstruct.Value, error) {
	data, err := provider.Bytes()
	if err != nil {
		return nil, err
	}
	return env.Decode(tag, data, offset)
}
