package workflow

import (
	"github.com/voxflow/go-transcribe/internal/sync"
)

type (
	// Context is passed to workflow functions. Workflow code has to be deterministic: it must
	// only interact with the outside world through activities and timers, and read time
	// through Now.
	Context = sync.Context

	Workflow = any
	Activity = any
)

type Future[T any] sync.Future[T]
