// Package owner identifies who an enhancement is billed to: an
// authenticated user or an ephemeral guest.
package owner

import (
	"github.com/google/uuid"
)

type Type string

const (
	TypeUser  Type = "user"
	TypeGuest Type = "guest"
)

// Owner is a tagged union: users carry a UUID and may hold prepaid credits,
// guests carry an ephemeral id and never do.
type Owner struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
	Plan string `json:"plan"`
}

func User(id uuid.UUID, plan string) Owner {
	return Owner{Type: TypeUser, ID: id.String(), Plan: plan}
}

func Guest(id string) Owner {
	return Owner{Type: TypeGuest, ID: id, Plan: "guest"}
}

func (o Owner) IsUser() bool {
	return o.Type == TypeUser
}

// UserID returns the owner's UUID for user owners.
func (o Owner) UserID() (uuid.UUID, bool) {
	if o.Type != TypeUser {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}
