package workflowstate

import (
	"fmt"

	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/internal/sync"
)

// DecodingSettable resolves a typed future from a recorded payload.
type DecodingSettable interface {
	Set(v payload.Payload, err error) error

	Name() string
}

type decodingSettable[T any] struct {
	cv   converter.Converter
	f    sync.SettableFuture[T]
	name string
}

func AsDecodingSettable[T any](cv converter.Converter, name string, f sync.SettableFuture[T]) DecodingSettable {
	return &decodingSettable[T]{
		cv:   cv,
		f:    f,
		name: name,
	}
}

func (ds *decodingSettable[T]) Set(v payload.Payload, err error) error {
	var t T
	if err == nil && v != nil {
		if derr := ds.cv.From(v, &t); derr != nil {
			return fmt.Errorf("decoding result for %s: %w", ds.name, derr)
		}
	}

	return ds.f.Set(t, err)
}

func (ds *decodingSettable[T]) Name() string {
	return ds.name
}
