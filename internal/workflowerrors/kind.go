package workflowerrors

// Kind classifies why an activity or workflow failed.
type Kind string

const (
	KindUnknown Kind = ""

	// KindUnreachable means the external service could not be reached or asked us to back off.
	KindUnreachable Kind = "Unreachable"

	// KindAuthFailure means the external service rejected our credentials.
	KindAuthFailure Kind = "AuthFailure"

	// KindBadResponse means the external service answered with something we cannot use.
	KindBadResponse Kind = "BadResponse"

	// KindJobFailed means the external job reported that it failed.
	KindJobFailed Kind = "JobFailed"

	// KindSink means persisting or publishing a result failed.
	KindSink Kind = "Sink"

	KindInternal Kind = "Internal"

	KindHistoryCorruption Kind = "HistoryCorruption"
)
