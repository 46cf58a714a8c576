package store

import (
	"context"
	"fmt"

	"campus-events/internal/models"

	"github.com/uptrace/bun"
)

func (s *Store) FeedbackFor(ctx context.Context, eventID, userID string) (*models.Feedback, error) {
	var f models.Feedback
	err := s.db.NewSelect().
		Model(&f).
		Where("f.event_id = ?", eventID).
		Where("f.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) InsertFeedback(ctx context.Context, f *models.Feedback) error {
	if _, err := s.db.NewInsert().Model(f).Exec(ctx); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *Store) UpdateFeedback(ctx context.Context, f *models.Feedback) error {
	_, err := s.db.NewUpdate().
		Model(f).
		Column("rating", "content_quality", "organization", "venue_rating", "comments", "suggestions", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update feedback %s: %w", f.ID, err)
	}
	return nil
}

// FeedbackForEvents returns every feedback row of the given events, newest
// first.
func (s *Store) FeedbackForEvents(ctx context.Context, eventIDs ...string) ([]models.Feedback, error) {
	rows := make([]models.Feedback, 0)
	if len(eventIDs) == 0 {
		return rows, nil
	}
	err := s.db.NewSelect().
		Model(&rows).
		Where("f.event_id IN (?)", bun.In(eventIDs)).
		Order("f.created_at DESC", "f.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("feedback for events: %w", err)
	}
	return rows, nil
}
