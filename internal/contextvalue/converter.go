package contextvalue

import (
	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/internal/sync"
)

type converterKey struct{}

func WithConverter(ctx sync.Context, converter converter.Converter) sync.Context {
	return sync.WithValue(ctx, converterKey{}, converter)
}

func Converter(ctx sync.Context) converter.Converter {
	if cv, ok := ctx.Value(converterKey{}).(converter.Converter); ok {
		return cv
	}

	return converter.DefaultConverter
}
