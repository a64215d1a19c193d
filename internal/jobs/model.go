// Package jobs implements the polling-driven enhancement job lifecycle:
// a job is created in queued state and advanced by client polls through
// an explicit state machine.
package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/enhance"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// transitions is the allowed-transition table. Absent entries are
// rejected; terminal states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCanceled},
	StatusProcessing: {StatusSucceeded, StatusFailed, StatusCanceled},
}

// CanTransition reports whether from may advance to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Job is one enhancement job row. UseCredit records whether admission
// flagged a prepaid credit, so the settle on a later poll debits the
// right counter.
type Job struct {
	ID               uuid.UUID
	OwnerType        string
	OwnerID          string
	UserID           *uuid.UUID
	Provider         string
	Model            string
	Params           enhance.Params
	Status           Status
	InputKey         string
	InputContentType string
	InputSize        int64
	OutputKey        string
	Error            string
	UseCredit        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time
}
