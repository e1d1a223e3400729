package tracing

const (
	WorkflowInstanceID = "workflow.instance_id"
	WorkflowName       = "workflow.name"
	WorkflowStatus     = "workflow.status"

	WorkflowTaskID     = "workflow_task.id"
	WorkflowTaskEvents = "workflow_task.events"

	ActivityTaskID = "activity_task.id"
	ActivityName   = "activity.name"
	Attempt        = "activity.attempt"

	ScheduleEventID = "schedule_event_id"
)
