package history

import "github.com/voxflow/go-transcribe/backend/payload"

type ExecutionStartedAttributes struct {
	Name string `json:"name,omitempty"`

	Inputs []payload.Payload `json:"inputs,omitempty"`
}
