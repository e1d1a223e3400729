package sync

import "errors"

type Future[T any] interface {
	// Get returns the value if set, blocks otherwise
	Get(ctx Context) (T, error)
}

type SettableFuture[T any] interface {
	Future[T]

	// Set stores the value and unblocks any waiting consumers
	Set(v T, err error) error

	// Ready returns true if the future has been set
	Ready() bool
}

var ErrFutureAlreadySet = errors.New("future already set")

func NewFuture[T any]() SettableFuture[T] {
	return &future[T]{}
}

type future[T any] struct {
	v   T
	err error
	set bool
}

func (f *future[T]) Set(v T, err error) error {
	if f.set {
		return ErrFutureAlreadySet
	}

	f.v = v
	f.err = err
	f.set = true

	return nil
}

func (f *future[T]) Get(ctx Context) (T, error) {
	for {
		cr := coroutineOf(ctx)

		if f.set {
			cr.madeProgress()

			return f.v, f.err
		}

		cr.Yield()
	}
}

func (f *future[T]) Ready() bool {
	return f.set
}
