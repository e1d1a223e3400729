package worker

import (
	"time"
)

type Options struct {
	// WorkflowsPollers is the number of pollers to start. Defaults to 2.
	WorkflowPollers int

	// MaxParallelWorkflowTasks determines the maximum number of concurrent workflow tasks processed
	// by the worker. The default is 0 which is no limit.
	MaxParallelWorkflowTasks int

	// ActivityPollers is the number of pollers to start. Defaults to 2.
	ActivityPollers int

	// MaxParallelActivityTasks determines the maximum number of concurrent activity tasks processed
	// by the worker. The default is 0 which is no limit.
	MaxParallelActivityTasks int

	// ActivityHeartbeatInterval is the interval between heartbeat attempts for activity tasks. Defaults
	// to 25 seconds
	ActivityHeartbeatInterval time.Duration

	// WorkflowHeartbeatInterval is the interval between heartbeat attempts on workflow tasks. Defaults
	// to 25 seconds
	WorkflowHeartbeatInterval time.Duration

	// WorkflowPollingInterval is the interval between polling for new workflow tasks.
	// Defaults to 200ms.
	WorkflowPollingInterval time.Duration

	// ActivityPollingInterval is the interval between polling for new activity tasks.
	// Defaults to 200ms.
	ActivityPollingInterval time.Duration

	// MaxPollBackoff caps the delay between polls while the backend returns errors. Defaults to 10 seconds.
	MaxPollBackoff time.Duration

	// HistoryCacheSize is the max number of instance histories kept in memory. Replays only fetch
	// events recorded after the cached prefix. 0 disables the cache. Defaults to 128
	HistoryCacheSize int

	// HistoryCacheTTL is the max TTL of cached histories. Defaults to 10 seconds
	HistoryCacheTTL time.Duration
}

var DefaultOptions = Options{
	WorkflowPollers:           2,
	WorkflowPollingInterval:   200 * time.Millisecond,
	MaxParallelWorkflowTasks:  0,
	WorkflowHeartbeatInterval: 25 * time.Second,

	HistoryCacheSize: 128,
	HistoryCacheTTL:  time.Second * 10,

	ActivityPollers:           2,
	ActivityPollingInterval:   200 * time.Millisecond,
	MaxParallelActivityTasks:  0,
	ActivityHeartbeatInterval: 25 * time.Second,

	MaxPollBackoff: 10 * time.Second,
}
