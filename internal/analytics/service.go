// Package analytics computes the dashboard counters for admins, the public
// home page and organizers.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/models"
	"campus-events/internal/store"

	"github.com/uptrace/bun"
)

var systemStatsRoles = actor.NewCapability("view system statistics", actor.RoleAdmin)

// Service handles analytics operations
type Service struct {
	db  bun.IDB
	loc *time.Location
	now func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone used to bucket registrations by day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService creates a new analytics service
func NewService(db bun.IDB, opts ...Option) *Service {
	s := &Service{db: db, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SystemStats is the admin dashboard summary.
type SystemStats struct {
	TotalEvents        int `json:"total_events"`
	UpcomingEvents     int `json:"upcoming_events"`
	PendingEvents      int `json:"pending_events"`
	TotalUsers         int `json:"total_users"`
	Students           int `json:"students"`
	Organizers         int `json:"organizers"`
	Admins             int `json:"admins"`
	Departments        int `json:"departments"`
	TotalRegistrations int `json:"total_registrations"`
	TotalFeedback      int `json:"total_feedback"`
}

// HomeStats is shown to anonymous visitors.
type HomeStats struct {
	UpcomingEvents int `json:"upcoming_events"`
	EventTypes     int `json:"event_types"`
	Users          int `json:"users"`
}

// DailyRegistrations counts registrations created on one campus calendar day.
type DailyRegistrations struct {
	Date          string `json:"date"`
	Registrations int    `json:"registrations"`
}

// EventStats breaks down one event's registrations.
type EventStats struct {
	EventID         string               `json:"event_id"`
	MaxParticipants *int                 `json:"max_participants"`
	Confirmed       int                  `json:"confirmed"`
	Waitlisted      int                  `json:"waitlisted"`
	FillRate        *float64             `json:"fill_rate"`
	Daily           []DailyRegistrations `json:"daily"`
}

func (s *Service) count(ctx context.Context, model interface{}, where func(*bun.SelectQuery) *bun.SelectQuery) (int, error) {
	q := s.db.NewSelect().Model(model)
	if where != nil {
		q = where(q)
	}
	return q.Count(ctx)
}

// SystemStats returns global counters. Admin only.
func (s *Service) SystemStats(ctx context.Context, a actor.Actor) (*SystemStats, error) {
	if err := systemStatsRoles.Check(a); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	stats := &SystemStats{}

	role := func(r actor.Role) func(*bun.SelectQuery) *bun.SelectQuery {
		return func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("u.role = ?", r) }
	}
	counters := []struct {
		dst   *int
		model interface{}
		where func(*bun.SelectQuery) *bun.SelectQuery
	}{
		{&stats.TotalEvents, (*models.Event)(nil), nil},
		{&stats.UpcomingEvents, (*models.Event)(nil), func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("e.starts_at > ?", now)
		}},
		{&stats.PendingEvents, (*models.Event)(nil), func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("e.status = ?", models.EventPending)
		}},
		{&stats.TotalUsers, (*models.User)(nil), nil},
		{&stats.Students, (*models.User)(nil), role(actor.RoleStudent)},
		{&stats.Organizers, (*models.User)(nil), role(actor.RoleOrganizer)},
		{&stats.Admins, (*models.User)(nil), role(actor.RoleAdmin)},
		{&stats.Departments, (*models.Department)(nil), nil},
		{&stats.TotalRegistrations, (*models.Registration)(nil), nil},
		{&stats.TotalFeedback, (*models.Feedback)(nil), nil},
	}
	for _, c := range counters {
		n, err := s.count(ctx, c.model, c.where)
		if err != nil {
			return nil, apperr.Persistence("failed to compute statistics", fmt.Errorf("count %T: %w", c.model, err))
		}
		*c.dst = n
	}
	return stats, nil
}

// HomeStats returns the public landing page counters.
func (s *Service) HomeStats(ctx context.Context) (*HomeStats, error) {
	now := s.now().UTC()
	stats := &HomeStats{}

	upcoming, err := s.db.NewSelect().
		Model((*models.Event)(nil)).
		Where("e.status = ?", models.EventApproved).
		Where("e.starts_at > ?", now).
		Count(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to compute statistics", err)
	}
	stats.UpcomingEvents = upcoming

	var types []string
	err = s.db.NewSelect().
		Model((*models.Event)(nil)).
		ColumnExpr("DISTINCT e.type").
		Where("e.status = ?", models.EventApproved).
		Scan(ctx, &types)
	if err != nil {
		return nil, apperr.Persistence("failed to compute statistics", err)
	}
	stats.EventTypes = len(types)

	users, err := s.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to compute statistics", err)
	}
	stats.Users = users
	return stats, nil
}

// EventStats returns registration counts and a per-day breakdown for the
// event's creator or an admin.
func (s *Service) EventStats(ctx context.Context, a actor.Actor, eventID string) (*EventStats, error) {
	if !a.Authenticated() {
		return nil, apperr.Unauthenticated("authentication required")
	}
	var event models.Event
	if err := s.db.NewSelect().Model(&event).Where("e.id = ?", eventID).Limit(1).Scan(ctx); err != nil {
		return nil, store.Classify(err, "event")
	}
	if !a.OwnsOrAdmin(event.CreatedBy) {
		return nil, apperr.Authorization("only the event creator or an admin can view event statistics")
	}

	var regs []models.Registration
	if err := s.db.NewSelect().Model(&regs).Where("r.event_id = ?", eventID).Scan(ctx); err != nil {
		return nil, apperr.Persistence("failed to load registrations", err)
	}

	stats := &EventStats{
		EventID:         event.ID,
		MaxParticipants: event.MaxParticipants,
		Daily:           make([]DailyRegistrations, 0),
	}
	perDay := make(map[string]int)
	for _, r := range regs {
		switch r.Status {
		case models.RegistrationConfirmed:
			stats.Confirmed++
		case models.RegistrationWaitlisted:
			stats.Waitlisted++
		}
		perDay[r.RegisteredAt.In(s.loc).Format(models.DateLayout)]++
	}
	for day, n := range perDay {
		stats.Daily = append(stats.Daily, DailyRegistrations{Date: day, Registrations: n})
	}
	sort.Slice(stats.Daily, func(i, j int) bool { return stats.Daily[i].Date < stats.Daily[j].Date })

	if event.MaxParticipants != nil && *event.MaxParticipants > 0 {
		rate := float64(stats.Confirmed) / float64(*event.MaxParticipants)
		stats.FillRate = &rate
	}
	return stats, nil
}
