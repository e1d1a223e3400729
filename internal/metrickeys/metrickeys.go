package metrickeys

const (
	Prefix = "transcribe."

	// Workflow instances
	WorkflowInstanceCreated  = Prefix + "workflow.created"
	WorkflowInstanceFinished = Prefix + "workflow.finished"

	WorkflowTaskProcessed = Prefix + "workflow.task.processed"
	WorkflowTaskDelay     = Prefix + "workflow.task.time_in_queue"
	WorkflowTaskDuration  = Prefix + "workflow.task.duration"

	HistoryCacheSize     = Prefix + "history.cache.size"
	HistoryCacheEviction = Prefix + "history.cache.eviction"
	HistoryCacheHit      = Prefix + "history.cache.hit"

	// Activities
	ActivityTaskScheduled = Prefix + "activity.task.scheduled"
	ActivityTaskProcessed = Prefix + "activity.task.processed"
	ActivityTaskDelay     = Prefix + "activity.task.time_in_queue"

	TimerScheduled = Prefix + "timer.scheduled"
)

// Tag names
const (
	// Backend being used
	Backend = "backend"

	// Reason for evicting an entry from the history cache
	EvictionReason = "reason"

	ActivityName = "activity"
	Status       = "status"
	Outcome      = "outcome"
)
