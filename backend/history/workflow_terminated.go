package history

type ExecutionTerminatedAttributes struct {
	Reason string `json:"reason,omitempty"`
}
