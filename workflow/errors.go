package workflow

import (
	"errors"

	"github.com/voxflow/go-transcribe/internal/workflowerrors"
)

type (
	Error      = workflowerrors.Error
	PanicError = workflowerrors.PanicError
	ErrorKind  = workflowerrors.Kind
)

const (
	KindUnreachable = workflowerrors.KindUnreachable
	KindAuthFailure = workflowerrors.KindAuthFailure
	KindBadResponse = workflowerrors.KindBadResponse
	KindJobFailed   = workflowerrors.KindJobFailed
	KindSink        = workflowerrors.KindSink
	KindInternal    = workflowerrors.KindInternal
)

// ErrTimeoutExceeded is returned by workflows that gave up waiting for an external job. A
// workflow returning it finishes with the TimedOut status instead of Failed.
var ErrTimeoutExceeded = errors.New("timeout exceeded")

// NewError returns a transient error of the given kind, activities failing with it are retried
// according to their retry options
func NewError(kind ErrorKind, message string) error {
	return workflowerrors.New(kind, message, false)
}

// NewPermanentError returns an error of the given kind which is never retried
func NewPermanentError(kind ErrorKind, message string) error {
	return workflowerrors.New(kind, message, true)
}

// Permanent marks the given error as not retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return workflowerrors.NewPermanentError(err)
}

// CanRetry returns true if the given error is retryable
func CanRetry(err error) bool {
	return workflowerrors.CanRetry(err)
}

// Kind returns the kind of the given error, or an empty kind for unclassified errors
func Kind(err error) ErrorKind {
	return workflowerrors.KindOf(err)
}
