package users

import (
	"time"

	"github.com/google/uuid"
)

// Plan names gate quota limits and enhancement capabilities.
const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanPremium = "premium"
)

// ValidPlan reports whether name is a plan a user can be moved onto.
func ValidPlan(name string) bool {
	switch name {
	case PlanFree, PlanPro, PlanPremium:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Plan         string    `json:"plan"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
