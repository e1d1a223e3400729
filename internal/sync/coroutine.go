package sync

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// StallTimeout bounds how long Execute waits for workflow code to yield again. Workflow code only
// ever blocks on futures, so running past it means the code blocked on something else.
const StallTimeout = 40 * time.Second

// ErrCoroutineAlreadyFinished is raised inside a coroutine that tries to yield after Exit.
var ErrCoroutineAlreadyFinished = errors.New("coroutine already finished")

// Coroutine runs a function on its own goroutine in lock step with its caller: the function only
// makes progress between a call to Execute and its next Yield.
type Coroutine interface {
	// Execute resumes the coroutine and returns once it yielded or finished
	Execute()

	// Yield suspends the coroutine until the next Execute. Only called from inside.
	Yield()

	// Exit unwinds a suspended coroutine, running its deferred functions
	Exit()

	Blocked() bool
	Finished() bool

	// Progress reports whether a future was resolved during the last Execute
	Progress() bool

	Error() error
}

type coroutineKey struct{}

type coroutine struct {
	resume chan struct{}
	paused chan struct{}

	suspended atomic.Bool
	done      atomic.Bool
	exiting   atomic.Bool
	progress  atomic.Bool

	err error

	stallTimeout time.Duration
}

func NewCoroutine(ctx Context, fn func(ctx Context) error) Coroutine {
	c := &coroutine{
		resume:       make(chan struct{}),
		paused:       make(chan struct{}, 1),
		stallTimeout: StallTimeout,
	}

	// Nothing runs before the first Execute
	c.suspended.Store(true)

	go c.run(WithValue(ctx, coroutineKey{}, c), fn)

	return c
}

func (c *coroutine) run(ctx Context, fn func(ctx Context) error) {
	defer c.markDone()
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		if err, ok := r.(error); ok && errors.Is(err, ErrCoroutineAlreadyFinished) {
			return
		}

		c.err = fmt.Errorf("panic: %v", r)
	}()

	c.waitForTurn()

	c.err = fn(ctx)
}

func (c *coroutine) markDone() {
	c.done.Store(true)
	c.paused <- struct{}{}
}

func (c *coroutine) waitForTurn() {
	<-c.resume

	if c.exiting.Load() {
		// Runs the deferred functions of run, which marks the coroutine as done
		runtime.Goexit()
	}

	c.suspended.Store(false)
}

func (c *coroutine) Yield() {
	if c.exiting.Load() {
		panic(ErrCoroutineAlreadyFinished)
	}

	c.suspended.Store(true)
	c.paused <- struct{}{}

	c.waitForTurn()
}

func (c *coroutine) Execute() {
	c.progress.Store(false)

	if c.done.Load() {
		return
	}

	stall := time.NewTimer(c.stallTimeout)
	defer stall.Stop()

	c.resume <- struct{}{}
	runtime.Gosched()

	select {
	case <-c.paused:
	case <-stall.C:
		panic("coroutine timed out")
	}
}

func (c *coroutine) Exit() {
	if c.done.Load() {
		return
	}

	c.exiting.Store(true)
	c.Execute()
}

func (c *coroutine) Blocked() bool {
	return c.suspended.Load()
}

func (c *coroutine) Finished() bool {
	return c.done.Load()
}

func (c *coroutine) Progress() bool {
	return c.progress.Load()
}

func (c *coroutine) madeProgress() {
	c.progress.Store(true)
}

func (c *coroutine) Error() error {
	return c.err
}

func coroutineOf(ctx Context) *coroutine {
	c, ok := ctx.Value(coroutineKey{}).(*coroutine)
	if !ok {
		panic("workflow context does not belong to a coroutine")
	}

	return c
}
