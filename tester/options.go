package tester

import (
	"log/slog"
	"time"

	"github.com/voxflow/go-transcribe/backend/converter"
)

type options struct {
	StartTime time.Time
	Logger    *slog.Logger
	Converter converter.Converter
}

type WorkflowTesterOption func(*options)

func WithLogger(logger *slog.Logger) WorkflowTesterOption {
	return func(o *options) {
		o.Logger = logger
	}
}

func WithConverter(converter converter.Converter) WorkflowTesterOption {
	return func(o *options) {
		o.Converter = converter
	}
}

// WithStartTime sets the initial time of the simulated clock. Defaults to the current wall-clock time.
func WithStartTime(t time.Time) WorkflowTesterOption {
	return func(o *options) {
		o.StartTime = t
	}
}
