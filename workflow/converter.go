package workflow

import (
	"github.com/voxflow/go-transcribe/backend/converter"
	"github.com/voxflow/go-transcribe/internal/contextvalue"
)

func converterOf(ctx Context) converter.Converter {
	return contextvalue.Converter(ctx)
}
