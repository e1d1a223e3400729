package history

import "time"

type TimerScheduledAttributes struct {
	At time.Time `json:"at"`

	Name string `json:"name,omitempty"`
}

type TimerFiredAttributes struct {
	ScheduledAt time.Time `json:"scheduled_at"`

	At time.Time `json:"at"`

	Name string `json:"name,omitempty"`
}
