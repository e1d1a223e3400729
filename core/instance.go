package core

type WorkflowInstance struct {
	// InstanceID is the ID of the workflow instance. It is opaque to the engine and never changes.
	InstanceID string `json:"instance_id,omitempty"`

	// ExecutionID is the ID of the execution of the workflow instance.
	ExecutionID string `json:"execution_id,omitempty"`
}

func NewWorkflowInstance(instanceID, executionID string) *WorkflowInstance {
	return &WorkflowInstance{
		InstanceID:  instanceID,
		ExecutionID: executionID,
	}
}

func (wi *WorkflowInstance) String() string {
	return wi.InstanceID + "/" + wi.ExecutionID
}
