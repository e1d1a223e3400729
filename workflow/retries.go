package workflow

import (
	"math"
	"time"

	"github.com/voxflow/go-transcribe/internal/log"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
)

type RetryOptions struct {
	// Maximum number of attempts, including the first one
	MaxAttempts int

	// Time to wait before first retry
	FirstRetryInterval time.Duration

	// Maximum delay for any individual retry attempt
	MaxRetryInterval time.Duration

	// Coeffecient for calculation the next retry delay
	BackoffCoefficient float64

	// Timeout after which retries are aborted
	RetryTimeout time.Duration
}

var DefaultRetryOptions = RetryOptions{
	MaxAttempts:        3,
	FirstRetryInterval: time.Second,
	BackoffCoefficient: 2,
	MaxRetryInterval:   time.Minute,
}

// NoRetries executes an activity exactly once
var NoRetries = RetryOptions{
	MaxAttempts: 1,
}

type retryFuture[T any] struct {
	retryOptions RetryOptions
	fn           func(ctx Context, attempt int) Future[T]

	current  Future[T]
	attempt  int
	done     bool
	result   T
	err      error
	deadline time.Time
}

// withRetries schedules the first attempt right away. Further attempts are driven from Get,
// which is always called from the workflow coroutine, so retries are part of the
// deterministic workflow execution.
func withRetries[T any](ctx Context, retryOptions RetryOptions, fn func(ctx Context, attempt int) Future[T]) Future[T] {
	if retryOptions.MaxAttempts <= 1 {
		// Short-circuit if we don't need to retry
		return fn(ctx, 1)
	}

	rf := &retryFuture[T]{
		retryOptions: retryOptions,
		fn:           fn,
		current:      fn(ctx, 1),
		attempt:      1,
	}

	if retryOptions.RetryTimeout != 0 {
		rf.deadline = Now(ctx).Add(retryOptions.RetryTimeout)
	}

	return rf
}

func (rf *retryFuture[T]) Get(ctx Context) (T, error) {
	for !rf.done {
		rf.result, rf.err = rf.current.Get(ctx)

		if rf.err == nil || !workflowerrors.CanRetry(rf.err) || rf.attempt >= rf.retryOptions.MaxAttempts {
			rf.done = true
			break
		}

		if !rf.deadline.IsZero() && !Now(ctx).Before(rf.deadline) {
			// Reached maximum retry time, abort retries
			rf.done = true
			break
		}

		backoff := rf.backoff()

		Logger(ctx).Debug("Retrying after transient error",
			log.AttemptKey, rf.attempt,
			log.DurationKey, int64(backoff/time.Millisecond),
			"error", rf.err)

		if err := Sleep(ctx, backoff, WithTimerName("retry")); err != nil {
			rf.done = true
			rf.err = err
			break
		}

		rf.attempt++
		rf.current = rf.fn(ctx, rf.attempt)
	}

	return rf.result, rf.err
}

func (rf *retryFuture[T]) backoff() time.Duration {
	coefficient := rf.retryOptions.BackoffCoefficient
	if coefficient <= 0 {
		coefficient = 1
	}

	d := time.Duration(float64(rf.retryOptions.FirstRetryInterval) * math.Pow(coefficient, float64(rf.attempt-1)))
	if rf.retryOptions.MaxRetryInterval > 0 && d > rf.retryOptions.MaxRetryInterval {
		d = rf.retryOptions.MaxRetryInterval
	}

	return d
}
