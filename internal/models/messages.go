package models

import "time"

// The structs below are the payloads published to Kafka after a state change
// commits. They are keyed by event ID so consumers see one event's history in
// order.

type EventStatusMessage struct {
	EventID   string      `json:"event_id"`
	Title     string      `json:"title"`
	CreatedBy string      `json:"created_by"`
	Status    EventStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	Timestamp time.Time   `json:"timestamp"`
}

type RegistrationAction string

const (
	ActionRegistered RegistrationAction = "registered"
	ActionCancelled  RegistrationAction = "cancelled"
	ActionPromoted   RegistrationAction = "promoted"
)

type RegistrationMessage struct {
	Action         RegistrationAction `json:"action"`
	RegistrationID string             `json:"registration_id"`
	EventID        string             `json:"event_id"`
	UserID         string             `json:"user_id"`
	Status         RegistrationStatus `json:"status"`
	Timestamp      time.Time          `json:"timestamp"`
}

// FeedbackMessage deliberately carries no user identity.
type FeedbackMessage struct {
	EventID   string    `json:"event_id"`
	Rating    int       `json:"rating"`
	Updated   bool      `json:"updated"`
	Timestamp time.Time `json:"timestamp"`
}

type NotificationMessage struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	EventID        string    `json:"event_id,omitempty"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewNotificationMessage(n Notification) NotificationMessage {
	return NotificationMessage{
		NotificationID: n.ID,
		UserID:         n.UserID,
		EventID:        n.EventID,
		Message:        n.Message,
		Timestamp:      n.CreatedAt,
	}
}
