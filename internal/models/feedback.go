package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Feedback is one attendee's ratings for an event. UserID is stored to
// enforce one row per attendee but is never exposed to organizers.
type Feedback struct {
	bun.BaseModel `bun:"table:feedback,alias:f"`

	ID             string    `bun:"id,pk" json:"id"`
	EventID        string    `bun:"event_id,notnull,unique:feedback_event_user" json:"event_id"`
	UserID         string    `bun:"user_id,notnull,unique:feedback_event_user" json:"-"`
	Rating         int       `bun:"rating,notnull" json:"rating"`
	ContentQuality int       `bun:"content_quality,notnull" json:"content_quality"`
	Organization   int       `bun:"organization,notnull" json:"organization"`
	VenueRating    int       `bun:"venue_rating,notnull" json:"venue_rating"`
	Comments       string    `bun:"comments" json:"comments,omitempty"`
	Suggestions    string    `bun:"suggestions" json:"suggestions,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
