package models

import (
	"fmt"
	"time"

	"campus-events/internal/utils"

	"github.com/uptrace/bun"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	EventID   string    `bun:"event_id,nullzero" json:"event_id,omitempty"`
	Message   string    `bun:"message,notnull" json:"message"`
	Seen      bool      `bun:"seen,notnull" json:"seen"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

func NewNotification(userID, eventID, message string, now time.Time) Notification {
	return Notification{
		ID:        utils.NewID(),
		UserID:    userID,
		EventID:   eventID,
		Message:   message,
		CreatedAt: now.UTC(),
	}
}

// NewPromotionNotification tells a user their waitlisted registration is now
// confirmed.
func NewPromotionNotification(userID string, event *Event, now time.Time) Notification {
	return NewNotification(userID, event.ID,
		fmt.Sprintf("You have been moved from the waitlist to confirmed for the event \"%s\"", event.Title), now)
}
