package transcription

// Stage is the position of a transcription workflow in its state machine. It is derived from
// replayed history and only reported through logs.
type Stage int

const (
	StageStarted Stage = iota
	StageAwaitingJobStart
	StagePolling
	StageAwaitingTimer
	StageCompleted
	StageTimedOut
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageStarted:
		return "Started"
	case StageAwaitingJobStart:
		return "AwaitingJobStart"
	case StagePolling:
		return "Polling"
	case StageAwaitingTimer:
		return "AwaitingTimer"
	case StageCompleted:
		return "Completed"
	case StageTimedOut:
		return "TimedOut"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
