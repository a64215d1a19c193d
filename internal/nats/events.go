package nats

import "time"

// Stream name.
const StreamEvents = "ENHANCER_EVENTS"

// Subject constants.
const (
	SubjectJobEvent     = "enhancer.events.job"
	SubjectEnhanceEvent = "enhancer.events.enhance"
)

// JobEvent is published on every job status transition.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	OwnerType  string    `json:"owner_type"`
	OwnerID    string    `json:"owner_id"`
	Model      string    `json:"model"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EnhanceEvent is published after each synchronous enhancement attempt.
type EnhanceEvent struct {
	OwnerType  string    `json:"owner_type"`
	OwnerID    string    `json:"owner_id"`
	Model      string    `json:"model"`
	Outcome    string    `json:"outcome"`
	Echoed     bool      `json:"echoed"`
	OccurredAt time.Time `json:"occurred_at"`
}
