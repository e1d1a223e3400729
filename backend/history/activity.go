package history

import (
	"github.com/voxflow/go-transcribe/backend/payload"
	"github.com/voxflow/go-transcribe/internal/workflowerrors"
)

type ActivityScheduledAttributes struct {
	Name string `json:"name,omitempty"`

	Inputs []payload.Payload `json:"inputs,omitempty"`

	// Attempt is the 1-based attempt of the activity call this event schedules
	Attempt int `json:"attempt,omitempty"`
}

type ActivityCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type ActivityFailedAttributes struct {
	Error *workflowerrors.Error `json:"error,omitempty"`
}
