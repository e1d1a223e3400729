package log

const (
	NamespaceKey = "transcribe"

	ActivityIDKey   = NamespaceKey + ".activity.id"
	ActivityNameKey = NamespaceKey + ".activity.name"
	InstanceIDKey   = NamespaceKey + ".instance.id"
	ExecutionIDKey  = NamespaceKey + ".execution.id"

	WorkflowNameKey   = NamespaceKey + ".workflow.name"
	WorkflowStatusKey = NamespaceKey + ".workflow.status"
	WorkflowStageKey  = NamespaceKey + ".workflow.stage"

	SeqIDKey       = NamespaceKey + ".seq_id"
	IsReplayingKey = NamespaceKey + ".is_replaying"

	EventTypeKey       = NamespaceKey + ".event.type"
	EventIDKey         = NamespaceKey + ".event.id"
	ScheduleEventIDKey = NamespaceKey + ".event.schedule_event_id"

	TaskIDKey             = NamespaceKey + ".task.id"
	TaskLastSequenceIDKey = NamespaceKey + ".task.last_sequence_id"
	ExecutedEventsKey     = NamespaceKey + ".task.executed_events"
	NewEventsKey          = NamespaceKey + ".task.new_events"
	DecisionKey           = NamespaceKey + ".task.decision"

	AttemptKey  = NamespaceKey + ".attempt"
	DurationKey = NamespaceKey + ".duration_ms"

	JobHandleKey = NamespaceKey + ".job.handle"
	AudioURLKey  = NamespaceKey + ".job.audio_url"

	// NowKey is the time at which a timer was scheduled
	NowKey = NamespaceKey + ".timer.now"
	// AtKey is the time at which a timer is scheduled to fire
	AtKey = NamespaceKey + ".timer.at"
)
