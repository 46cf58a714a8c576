// Package feedback collects anonymous post-event ratings inside a fixed window
// after each event and aggregates them for organizers.
package feedback

import (
	"context"
	"fmt"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/kafka"
	"campus-events/internal/logger"
	"campus-events/internal/metrics"
	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/utils"
	"campus-events/internal/validation"
)

var (
	submitRoles   = actor.AnyUser("submit feedback")
	summaryRoles  = actor.NewCapability("view feedback summary", actor.RoleOrganizer, actor.RoleAdmin)
	reminderRoles = actor.NewCapability("send feedback reminders", actor.RoleAdmin)
)

// reminderLookback bounds which events SendReminders considers.
const reminderLookback = 24 * time.Hour

type Service struct {
	store      *store.Store
	emitter    *kafka.Emitter
	metrics    *metrics.Metrics
	log        *logger.Logger
	loc        *time.Location
	windowDays int
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

func NewService(st *store.Store, emitter *kafka.Emitter, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:      st,
		emitter:    emitter,
		metrics:    m,
		log:        log,
		loc:        time.UTC,
		windowDays: DefaultWindowDays,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Input struct {
	Rating         int    `json:"rating" validate:"required,min=1,max=5"`
	ContentQuality int    `json:"content_quality" validate:"required,min=1,max=5"`
	Organization   int    `json:"organization" validate:"required,min=1,max=5"`
	VenueRating    int    `json:"venue_rating" validate:"required,min=1,max=5"`
	Comments       string `json:"comments" validate:"max=2000"`
	Suggestions    string `json:"suggestions" validate:"max=2000"`
}

type SubmitResult struct {
	Feedback models.Feedback `json:"feedback"`
	Updated  bool            `json:"updated"`
}

// Averages are nil when there are no responses.
type Averages struct {
	Rating         *float64 `json:"avg_rating"`
	ContentQuality *float64 `json:"avg_content_quality"`
	Organization   *float64 `json:"avg_organization"`
	VenueRating    *float64 `json:"avg_venue_rating"`
}

type Aggregate struct {
	EventID  string            `json:"event_id"`
	Title    string            `json:"title"`
	Feedback []models.Feedback `json:"feedback"`
	Averages Averages          `json:"averages"`
	Total    int               `json:"total"`
}

type EventSummary struct {
	EventID       string    `json:"event_id"`
	Title         string    `json:"title"`
	StartsAt      time.Time `json:"starts_at"`
	FeedbackCount int       `json:"feedback_count"`
	Averages
}

type OrganizerSummary struct {
	Events             []EventSummary `json:"events"`
	TotalEvents        int            `json:"total_events"`
	EventsWithFeedback int            `json:"events_with_feedback"`
}

// CheckResult tells an attendee whether they already left feedback.
type CheckResult struct {
	Submitted bool             `json:"submitted"`
	Feedback  *models.Feedback `json:"feedback,omitempty"`
	Window    Window           `json:"window"`
}

func (s *Service) window(e *models.Event) Window {
	return NewWindow(e.StartsAt, s.windowDays, s.loc)
}

// Submit inserts or replaces the actor's feedback for an event. The window
// applies to every role.
func (s *Service) Submit(ctx context.Context, a actor.Actor, eventID string, in Input) (*SubmitResult, error) {
	if err := submitRoles.Check(a); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	var result SubmitResult
	var note *models.Notification
	var event *models.Event
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx *store.Store) error {
		var err error
		event, err = tx.EventByID(ctx, eventID)
		if err != nil {
			return store.Classify(err, "event")
		}
		if _, err := tx.RegistrationFor(ctx, eventID, a.UserID); err != nil {
			if store.IsNotFound(err) {
				return apperr.Authorization("you must be registered for this event to submit feedback")
			}
			return err
		}
		if err := s.window(event).Check(now); err != nil {
			return err
		}

		existing, err := tx.FeedbackFor(ctx, eventID, a.UserID)
		switch {
		case err == nil:
			applyInput(existing, in)
			existing.UpdatedAt = now.UTC()
			if err := tx.UpdateFeedback(ctx, existing); err != nil {
				return err
			}
			result = SubmitResult{Feedback: *existing, Updated: true}
			return nil
		case !store.IsNotFound(err):
			return err
		}

		fb := models.Feedback{
			ID:        utils.NewID(),
			EventID:   eventID,
			UserID:    a.UserID,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		}
		applyInput(&fb, in)
		if err := tx.InsertFeedback(ctx, &fb); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict("feedback was submitted concurrently, try again")
			}
			return err
		}
		result = SubmitResult{Feedback: fb}

		n := models.NewNotification(event.CreatedBy, eventID,
			fmt.Sprintf("New anonymous feedback has been submitted for your event \"%s\"", event.Title), now)
		note = &n
		return tx.InsertNotification(ctx, note)
	})
	if err != nil {
		return nil, apperr.Persistence("failed to submit feedback", err)
	}

	kind := "insert"
	if result.Updated {
		kind = "update"
	}
	s.log.Info("FEEDBACK", fmt.Sprintf("Feedback %s for event %s", kind, eventID))
	s.metrics.FeedbackSubmitted.WithLabelValues(kind).Inc()
	s.emitter.Feedback(ctx, models.FeedbackMessage{
		EventID:   eventID,
		Rating:    result.Feedback.Rating,
		Updated:   result.Updated,
		Timestamp: now.UTC(),
	})
	if note != nil {
		s.emitter.Notifications(ctx, *note)
	}
	return &result, nil
}

func applyInput(f *models.Feedback, in Input) {
	f.Rating = in.Rating
	f.ContentQuality = in.ContentQuality
	f.Organization = in.Organization
	f.VenueRating = in.VenueRating
	f.Comments = in.Comments
	f.Suggestions = in.Suggestions
}

// Aggregate returns the event's anonymous feedback with per-category means.
// Anyone other than the creator or an admin, anonymous callers included, gets
// an authorization error.
func (s *Service) Aggregate(ctx context.Context, a actor.Actor, eventID string) (*Aggregate, error) {
	event, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if !a.OwnsOrAdmin(event.CreatedBy) {
		return nil, apperr.Authorization("only the event creator or an admin can view feedback")
	}

	rows, err := s.store.FeedbackForEvents(ctx, eventID)
	if err != nil {
		return nil, apperr.Persistence("failed to load feedback", err)
	}
	for i := range rows {
		rows[i].UserID = ""
	}
	return &Aggregate{
		EventID:  event.ID,
		Title:    event.Title,
		Feedback: rows,
		Averages: averages(rows),
		Total:    len(rows),
	}, nil
}

// OrganizerSummary lists the actor's events that have ended, newest first,
// with their response counts and averages.
func (s *Service) OrganizerSummary(ctx context.Context, a actor.Actor) (*OrganizerSummary, error) {
	if err := summaryRoles.Check(a); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, store.EventFilter{
		CreatedBy:   a.UserID,
		StartedBy:   s.now(),
		NewestFirst: true,
	})
	if err != nil {
		return nil, apperr.Persistence("failed to load events", err)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	rows, err := s.store.FeedbackForEvents(ctx, ids...)
	if err != nil {
		return nil, apperr.Persistence("failed to load feedback", err)
	}
	byEvent := make(map[string][]models.Feedback, len(events))
	for _, f := range rows {
		byEvent[f.EventID] = append(byEvent[f.EventID], f)
	}

	summary := &OrganizerSummary{
		Events:      make([]EventSummary, 0, len(events)),
		TotalEvents: len(events),
	}
	for _, e := range events {
		fb := byEvent[e.ID]
		if len(fb) > 0 {
			summary.EventsWithFeedback++
		}
		summary.Events = append(summary.Events, EventSummary{
			EventID:       e.ID,
			Title:         e.Title,
			StartsAt:      e.StartsAt,
			FeedbackCount: len(fb),
			Averages:      averages(fb),
		})
	}
	return summary, nil
}

// Check reports whether the actor has feedback on record for the event.
func (s *Service) Check(ctx context.Context, a actor.Actor, eventID string) (*CheckResult, error) {
	if err := submitRoles.Check(a); err != nil {
		return nil, err
	}
	event, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	res := &CheckResult{Window: s.window(event)}
	fb, err := s.store.FeedbackFor(ctx, eventID, a.UserID)
	switch {
	case err == nil:
		res.Submitted = true
		res.Feedback = fb
	case !store.IsNotFound(err):
		return nil, apperr.Persistence("failed to check feedback", err)
	}
	return res, nil
}

// SendReminders notifies confirmed attendees of events that started in the
// last day and have not left feedback. Each user is reminded once per event.
func (s *Service) SendReminders(ctx context.Context, a actor.Actor) (int, error) {
	if err := reminderRoles.Check(a); err != nil {
		return 0, err
	}

	now := s.now()
	var sent []models.Notification
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx *store.Store) error {
		events, err := tx.EventsStartedBetween(ctx, models.EventApproved, now.Add(-reminderLookback), now)
		if err != nil {
			return err
		}
		for _, e := range events {
			userIDs, err := tx.ConfirmedWithoutFeedback(ctx, e.ID)
			if err != nil {
				return err
			}
			for _, userID := range userIDs {
				reminded, err := tx.HasFeedbackReminder(ctx, userID, e.ID)
				if err != nil {
					return err
				}
				if reminded {
					continue
				}
				n := models.NewNotification(userID, e.ID,
					fmt.Sprintf("%s \"%s\" that you attended", store.ReminderPrefix, e.Title), now)
				if err := tx.InsertNotification(ctx, &n); err != nil {
					return err
				}
				sent = append(sent, n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Persistence("failed to send feedback reminders", err)
	}

	s.log.Info("FEEDBACK", fmt.Sprintf("Sent %d feedback reminders", len(sent)))
	s.metrics.RemindersSent.Add(float64(len(sent)))
	s.emitter.Notifications(ctx, sent...)
	return len(sent), nil
}

func averages(rows []models.Feedback) Averages {
	if len(rows) == 0 {
		return Averages{}
	}
	var rating, content, org, venue int
	for _, f := range rows {
		rating += f.Rating
		content += f.ContentQuality
		org += f.Organization
		venue += f.VenueRating
	}
	mean := func(sum int) *float64 {
		v := utils.Round1(float64(sum) / float64(len(rows)))
		return &v
	}
	return Averages{
		Rating:         mean(rating),
		ContentQuality: mean(content),
		Organization:   mean(org),
		VenueRating:    mean(venue),
	}
}
