package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RegistrationStatus string

const (
	RegistrationConfirmed  RegistrationStatus = "confirmed"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
)

func (s RegistrationStatus) Valid() bool {
	return s == RegistrationConfirmed || s == RegistrationWaitlisted
}

type Registration struct {
	bun.BaseModel `bun:"table:registrations,alias:r"`

	ID           string             `bun:"id,pk" json:"id"`
	EventID      string             `bun:"event_id,notnull,unique:registrations_event_user" json:"event_id"`
	UserID       string             `bun:"user_id,notnull,unique:registrations_event_user" json:"user_id"`
	Status       RegistrationStatus `bun:"status,notnull" json:"status"`
	RegisteredAt time.Time          `bun:"registered_at,notnull" json:"registered_at"`
}
