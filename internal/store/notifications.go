package store

import (
	"context"
	"fmt"

	"campus-events/internal/models"
)

// ReminderPrefix starts every feedback reminder message.
const ReminderPrefix = "Please provide feedback for the event"

type NotificationView struct {
	models.Notification `bun:",extend"`

	EventTitle string `bun:"event_title" json:"event_title,omitempty"`
}

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	if _, err := s.db.NewInsert().Model(n).Exec(ctx); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) NotificationsForUser(ctx context.Context, userID string) ([]NotificationView, error) {
	rows := make([]NotificationView, 0)
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("n.*").
		ColumnExpr("COALESCE(e.title, '') AS event_title").
		Join("LEFT JOIN events AS e ON e.id = n.event_id").
		Where("n.user_id = ?", userID).
		Order("n.created_at DESC", "n.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("notifications for user %s: %w", userID, err)
	}
	return rows, nil
}

// MarkNotificationSeen reports false when no notification with that id belongs
// to the user.
func (s *Store) MarkNotificationSeen(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("seen = ?", true).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark notification %s seen: %w", id, err)
	}
	n, err := affected(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) HasFeedbackReminder(ctx context.Context, userID, eventID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.Notification)(nil)).
		Where("n.user_id = ?", userID).
		Where("n.event_id = ?", eventID).
		Where("n.message LIKE ?", ReminderPrefix+"%").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check reminder for user %s: %w", userID, err)
	}
	return exists, nil
}
