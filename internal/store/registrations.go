package store

import (
	"context"
	"fmt"
	"time"

	"campus-events/internal/models"
)

type Participant struct {
	UserID       string                    `bun:"user_id" json:"user_id"`
	Name         string                    `bun:"name" json:"name"`
	Email        string                    `bun:"email" json:"email"`
	Status       models.RegistrationStatus `bun:"status" json:"status"`
	RegisteredAt time.Time                 `bun:"registered_at" json:"registered_at"`
}

// RegisteredEvent is one of a user's registrations seen from the event side.
type RegisteredEvent struct {
	models.Event `bun:",extend"`

	DepartmentName     string                    `bun:"department_name" json:"department_name"`
	RegistrationID     string                    `bun:"registration_id" json:"registration_id"`
	RegistrationStatus models.RegistrationStatus `bun:"registration_status" json:"registration_status"`
	RegisteredAt       time.Time                 `bun:"registered_at" json:"registered_at"`
}

func (s *Store) InsertRegistration(ctx context.Context, r *models.Registration) error {
	if _, err := s.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *Store) RegistrationFor(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	var r models.Registration
	err := s.db.NewSelect().
		Model(&r).
		Where("r.event_id = ?", eventID).
		Where("r.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	n, err := s.db.NewSelect().
		Model((*models.Registration)(nil)).
		Where("r.event_id = ?", eventID).
		Where("r.status = ?", models.RegistrationConfirmed).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count confirmed for event %s: %w", eventID, err)
	}
	return n, nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*models.Registration)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete registration %s: %w", id, err)
	}
	return nil
}

// OldestWaitlisted returns the head of the event's waitlist. The id tie-break
// keeps the order total when two rows share a timestamp.
func (s *Store) OldestWaitlisted(ctx context.Context, eventID string) (*models.Registration, error) {
	var r models.Registration
	err := s.db.NewSelect().
		Model(&r).
		Where("r.event_id = ?", eventID).
		Where("r.status = ?", models.RegistrationWaitlisted).
		Order("r.registered_at ASC", "r.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SetRegistrationStatus(ctx context.Context, id string, status models.RegistrationStatus) error {
	_, err := s.db.NewUpdate().
		Model((*models.Registration)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update registration %s: %w", id, err)
	}
	return nil
}

// PromoteWaitlisted confirms the oldest waitlisted registrations while the
// event has room, at most limit of them (zero means no limit). The caller
// must hold the event's row lock.
func (s *Store) PromoteWaitlisted(ctx context.Context, event *models.Event, limit int) ([]models.Registration, error) {
	promoted := make([]models.Registration, 0)
	for limit == 0 || len(promoted) < limit {
		confirmed, err := s.CountConfirmed(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		if !event.HasCapacity(confirmed) {
			break
		}
		next, err := s.OldestWaitlisted(ctx, event.ID)
		if IsNotFound(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("oldest waitlisted for event %s: %w", event.ID, err)
		}
		if err := s.SetRegistrationStatus(ctx, next.ID, models.RegistrationConfirmed); err != nil {
			return nil, err
		}
		next.Status = models.RegistrationConfirmed
		promoted = append(promoted, *next)
	}
	return promoted, nil
}

func (s *Store) Participants(ctx context.Context, eventID string) ([]Participant, error) {
	participants := make([]Participant, 0)
	err := s.db.NewSelect().
		TableExpr("registrations AS r").
		ColumnExpr("r.user_id, r.status, r.registered_at").
		ColumnExpr("COALESCE(u.name, '') AS name").
		ColumnExpr("COALESCE(u.email, '') AS email").
		Join("LEFT JOIN users AS u ON u.id = r.user_id").
		Where("r.event_id = ?", eventID).
		Order("r.registered_at ASC", "r.id ASC").
		Scan(ctx, &participants)
	if err != nil {
		return nil, fmt.Errorf("participants for event %s: %w", eventID, err)
	}
	return participants, nil
}

func (s *Store) RegistrationsForUser(ctx context.Context, userID string) ([]RegisteredEvent, error) {
	rows := make([]RegisteredEvent, 0)
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("e.*").
		ColumnExpr("COALESCE(d.name, '') AS department_name").
		ColumnExpr("r.id AS registration_id").
		ColumnExpr("r.status AS registration_status").
		ColumnExpr("r.registered_at AS registered_at").
		Join("JOIN registrations AS r ON r.event_id = e.id").
		Join("LEFT JOIN departments AS d ON d.id = e.dept_id").
		Where("r.user_id = ?", userID).
		Order("e.starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("registrations for user %s: %w", userID, err)
	}
	return rows, nil
}

// ConfirmedWithoutFeedback lists confirmed attendees of an event that have not
// submitted feedback yet.
func (s *Store) ConfirmedWithoutFeedback(ctx context.Context, eventID string) ([]string, error) {
	userIDs := make([]string, 0)
	err := s.db.NewSelect().
		Model((*models.Registration)(nil)).
		Column("r.user_id").
		Where("r.event_id = ?", eventID).
		Where("r.status = ?", models.RegistrationConfirmed).
		Where("NOT EXISTS (SELECT 1 FROM feedback AS f WHERE f.event_id = r.event_id AND f.user_id = r.user_id)").
		Order("r.registered_at ASC").
		Scan(ctx, &userIDs)
	if err != nil {
		return nil, fmt.Errorf("attendees without feedback for event %s: %w", eventID, err)
	}
	return userIDs, nil
}
