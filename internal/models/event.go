package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventRejected EventStatus = "rejected"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventApproved, EventRejected:
		return true
	}
	return false
}

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID              string      `bun:"id,pk" json:"id"`
	Title           string      `bun:"title,notnull" json:"title"`
	Description     string      `bun:"description" json:"description"`
	Date            string      `bun:"date,notnull" json:"date"`
	Time            string      `bun:"time,notnull" json:"time"`
	StartsAt        time.Time   `bun:"starts_at,notnull" json:"starts_at"`
	Location        string      `bun:"location,notnull" json:"location"`
	DeptID          int64       `bun:"dept_id,notnull" json:"dept_id"`
	CreatedBy       string      `bun:"created_by,notnull" json:"created_by"`
	Type            string      `bun:"type,notnull" json:"type"`
	MaxParticipants *int        `bun:"max_participants" json:"max_participants"`
	Status          EventStatus `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// HasCapacity reports whether one more confirmed registration fits.
func (e *Event) HasCapacity(confirmed int) bool {
	return e.MaxParticipants == nil || confirmed < *e.MaxParticipants
}

const (
	DateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// ResolveStart combines an event's calendar date and wall-clock time in the
// campus location and returns the instant in UTC. Seconds are optional.
func ResolveStart(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if strings.Count(clock, ":") == 1 {
		clock += ":00"
	}
	t, err := time.ParseInLocation(DateLayout+" "+timeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, clock, err)
	}
	return t.UTC(), nil
}
