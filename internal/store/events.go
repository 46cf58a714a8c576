package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"campus-events/internal/models"

	"github.com/uptrace/bun"
)

// EventDetails is an event joined with the names shown next to it and its
// confirmed participant count.
type EventDetails struct {
	models.Event `bun:",extend"`

	DepartmentName   string `bun:"department_name" json:"department_name"`
	OrganizerName    string `bun:"organizer_name" json:"organizer_name"`
	ParticipantCount int    `bun:"participant_count" json:"participant_count"`
}

type EventFilter struct {
	// StartsAfter keeps events with starts_at > StartsAfter when set.
	StartsAfter time.Time
	// StartedBy keeps events with starts_at <= StartedBy when set.
	StartedBy time.Time
	Status    models.EventStatus
	Type      string
	DeptID    int64
	Search    string
	CreatedBy string
	// ApprovedOnly hides non-approved events except those created by Owner.
	ApprovedOnly bool
	Owner        string
	NewestFirst  bool
}

func (s *Store) InsertEvent(ctx context.Context, e *models.Event) error {
	_, err := s.db.NewInsert().Model(e).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) EventByID(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := s.db.NewSelect().
		Model(&e).
		Where("e.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) detailsQuery(dst interface{}) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(dst).
		ColumnExpr("e.*").
		ColumnExpr("COALESCE(d.name, '') AS department_name").
		ColumnExpr("COALESCE(u.name, '') AS organizer_name").
		ColumnExpr("(SELECT COUNT(*) FROM registrations AS r WHERE r.event_id = e.id AND r.status = ?) AS participant_count", models.RegistrationConfirmed).
		Join("LEFT JOIN departments AS d ON d.id = e.dept_id").
		Join("LEFT JOIN users AS u ON u.id = e.created_by")
}

func (s *Store) EventDetailsByID(ctx context.Context, id string) (*EventDetails, error) {
	var d EventDetails
	err := s.detailsQuery(&d).
		Where("e.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]EventDetails, error) {
	rows := make([]EventDetails, 0)
	q := s.detailsQuery(&rows)

	if !f.StartsAfter.IsZero() {
		q = q.Where("e.starts_at > ?", f.StartsAfter.UTC())
	}
	if !f.StartedBy.IsZero() {
		q = q.Where("e.starts_at <= ?", f.StartedBy.UTC())
	}
	if f.Status != "" {
		q = q.Where("e.status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("e.type = ?", f.Type)
	}
	if f.DeptID != 0 {
		q = q.Where("e.dept_id = ?", f.DeptID)
	}
	if f.CreatedBy != "" {
		q = q.Where("e.created_by = ?", f.CreatedBy)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(e.title) LIKE ?", pattern).
				WhereOr("LOWER(e.description) LIKE ?", pattern)
		})
	}
	if f.ApprovedOnly {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("e.status = ?", models.EventApproved)
			if f.Owner != "" {
				q = q.WhereOr("e.created_by = ?", f.Owner)
			}
			return q
		})
	}

	if f.NewestFirst {
		q = q.Order("e.starts_at DESC", "e.id DESC")
	} else {
		q = q.Order("e.starts_at ASC", "e.id ASC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return rows, nil
}

// UpdateEvent writes the editable columns of e.
func (s *Store) UpdateEvent(ctx context.Context, e *models.Event) error {
	res, err := s.db.NewUpdate().
		Model(e).
		Column("title", "description", "date", "time", "starts_at", "location", "dept_id", "type", "max_participants", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event %s: %w", e.ID, err)
	}
	if n, _ := affected(res); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) UpdateEventStatus(ctx context.Context, id string, status models.EventStatus, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event status %s: %w", id, err)
	}
	if n, _ := affected(res); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteEventCascade removes the event and every row that references it. Call
// it inside RunInTx so a partial failure leaves nothing behind.
func (s *Store) DeleteEventCascade(ctx context.Context, id string) error {
	dependents := []interface{}{
		(*models.Registration)(nil),
		(*models.Notification)(nil),
		(*models.Feedback)(nil),
	}
	for _, model := range dependents {
		if _, err := s.db.NewDelete().Model(model).Where("event_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete %T rows for event %s: %w", model, id, err)
		}
	}

	res, err := s.db.NewDelete().Model((*models.Event)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if n, _ := affected(res); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// EventsStartedBetween returns events with the given status whose start
// instant lies in (from, to].
func (s *Store) EventsStartedBetween(ctx context.Context, status models.EventStatus, from, to time.Time) ([]models.Event, error) {
	events := make([]models.Event, 0)
	err := s.db.NewSelect().
		Model(&events).
		Where("e.status = ?", status).
		Where("e.starts_at > ?", from.UTC()).
		Where("e.starts_at <= ?", to.UTC()).
		Order("e.starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("events started between: %w", err)
	}
	return events, nil
}
