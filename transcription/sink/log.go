package sink

import (
	"context"
	"log/slog"

	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/transcription"
)

// Log writes records to a structured logger.
type Log struct {
	logger *slog.Logger
}

var _ transcription.Sink = (*Log)(nil)

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}

	return &Log{logger: logger}
}

func (l *Log) Save(ctx context.Context, record transcription.Record) error {
	l.logger.InfoContext(ctx, "Transcription finished",
		log.InstanceIDKey, record.InstanceID,
		log.AudioURLKey, record.AudioURL,
		log.JobHandleKey, record.JobHandle,
		"completed_at", record.CompletedAt,
		"text", record.Text,
	)

	return nil
}
