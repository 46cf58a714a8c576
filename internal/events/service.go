// Package events implements the event lifecycle: creation, admin approval,
// edits, cascading deletes and the visibility rules for reading events.
package events

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
	createEventRoles  = actor.NewCapability("create events", actor.RoleOrganizer, actor.RoleAdmin)
	updateStatusRoles = actor.NewCapability("change event status", actor.RoleAdmin)
	manageEventRoles  = actor.AnyUser("manage events")
	listCreatedRoles  = actor.NewCapability("list created events", actor.RoleOrganizer, actor.RoleAdmin)
)

const pendingAccessDenied = "Access denied. This event is pending approval."

type Service struct {
	store   *store.Store
	emitter *kafka.Emitter
	metrics *metrics.Metrics
	log     *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the campus time zone used to resolve date and time.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func NewService(st *store.Store, emitter *kafka.Emitter, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		emitter: emitter,
		metrics: m,
		log:     log,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required"`
	Location        string `json:"location" validate:"required"`
	DeptID          int64  `json:"dept_id" validate:"required,gt=0"`
	Type            string `json:"type" validate:"required"`
	MaxParticipants *int   `json:"max_participants" validate:"omitempty,gte=1"`
}

// EditInput carries a partial update; nil fields keep their stored values.
type EditInput struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description"`
	Date            *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time            *string `json:"time" validate:"omitempty,min=1"`
	Location        *string `json:"location" validate:"omitempty,min=1"`
	DeptID          *int64  `json:"dept_id" validate:"omitempty,gt=0"`
	Type            *string `json:"type" validate:"omitempty,min=1"`
	MaxParticipants *int    `json:"max_participants" validate:"omitempty,gte=1"`
}

type ListFilter struct {
	Status string
	Type   string
	DeptID int64
	Search string
}

// EventView is what Get returns. Participants is only filled for the creator
// and admins.
type EventView struct {
	store.EventDetails
	Participants []store.Participant `json:"participants,omitempty"`
}

// Create stores a new event. Admin-created events skip the approval queue.
func (s *Service) Create(ctx context.Context, a actor.Actor, in CreateInput) (*models.Event, error) {
	if err := createEventRoles.Check(a); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	startsAt, err := models.ResolveStart(in.Date, in.Time, s.loc)
	if err != nil {
		return nil, apperr.Validation("invalid date or time: %s %s", in.Date, in.Time)
	}
	if err := s.requireDepartment(ctx, s.store, in.DeptID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	event := &models.Event{
		ID:              utils.NewID(),
		Title:           in.Title,
		Description:     in.Description,
		Date:            in.Date,
		Time:            in.Time,
		StartsAt:        startsAt,
		Location:        in.Location,
		DeptID:          in.DeptID,
		CreatedBy:       a.UserID,
		Type:            in.Type,
		MaxParticipants: in.MaxParticipants,
		Status:          models.EventPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if a.IsAdmin() {
		event.Status = models.EventApproved
	}

	if err := s.store.InsertEvent(ctx, event); err != nil {
		return nil, apperr.Persistence("failed to create event", err)
	}
	s.log.Info("EVENT", fmt.Sprintf("Event %s created by %s with status %s", event.ID, a, event.Status))
	return event, nil
}

// UpdateStatus records an admin decision and notifies the creator in the same
// transaction.
func (s *Service) UpdateStatus(ctx context.Context, a actor.Actor, eventID, status string) (*models.Event, error) {
	if err := updateStatusRoles.Check(a); err != nil {
		return nil, err
	}
	newStatus := models.EventStatus(status)
	if newStatus != models.EventApproved && newStatus != models.EventRejected {
		return nil, apperr.Validation("invalid status %q: must be approved or rejected", status)
	}

	now := s.now()
	var event *models.Event
	var note models.Notification
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx *store.Store) error {
		var err error
		event, err = tx.EventByID(ctx, eventID)
		if err != nil {
			return store.Classify(err, "event")
		}
		if err := tx.UpdateEventStatus(ctx, eventID, newStatus, now); err != nil {
			return err
		}
		event.Status = newStatus
		event.UpdatedAt = now.UTC()

		note = models.NewNotification(event.CreatedBy, event.ID,
			fmt.Sprintf("Your event \"%s\" has been %s", event.Title, newStatus), now)
		return tx.InsertNotification(ctx, &note)
	})
	if err != nil {
		return nil, apperr.Persistence("failed to update event status", err)
	}

	s.log.Info("EVENT", fmt.Sprintf("Event %s %s by %s", eventID, newStatus, a))
	s.metrics.StatusChanges.WithLabelValues(string(newStatus)).Inc()
	s.emitter.EventStatus(ctx, models.EventStatusMessage{
		EventID:   event.ID,
		Title:     event.Title,
		CreatedBy: event.CreatedBy,
		Status:    newStatus,
		ChangedBy: a.UserID,
		Timestamp: now.UTC(),
	})
	s.emitter.Notifications(ctx, note)
	return event, nil
}

// Edit applies a partial update. Only the creator or an admin may edit. When
// the edit makes room, waitlisted registrations are promoted in arrival
// order within the same transaction.
func (s *Service) Edit(ctx context.Context, a actor.Actor, eventID string, in EditInput) (*models.Event, error) {
	if err := manageEventRoles.Check(a); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	var event *models.Event
	var promoted []models.Registration
	var notes []models.Notification
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx *store.Store) error {
		if err := tx.LockEvent(ctx, eventID); err != nil {
			return store.Classify(err, "event")
		}
		var err error
		event, err = tx.EventByID(ctx, eventID)
		if err != nil {
			return store.Classify(err, "event")
		}
		if !a.OwnsOrAdmin(event.CreatedBy) {
			return apperr.Authorization("access denied: only the creator or an admin can edit this event")
		}
		if err := s.apply(ctx, tx, event, in); err != nil {
			return err
		}
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}

		promoted, err = tx.PromoteWaitlisted(ctx, event, 0)
		if err != nil {
			return err
		}
		for _, r := range promoted {
			note := models.NewPromotionNotification(r.UserID, event, now)
			if err := tx.InsertNotification(ctx, &note); err != nil {
				return err
			}
			notes = append(notes, note)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("failed to update event", err)
	}

	s.log.Info("EVENT", fmt.Sprintf("Event %s edited by %s", eventID, a))
	if len(promoted) > 0 {
		s.log.Info("REGISTRATION", fmt.Sprintf("Promoted %d waitlisted users after capacity change of event %s", len(promoted), eventID))
		s.metrics.Promotions.Add(float64(len(promoted)))
	}
	for _, r := range promoted {
		s.emitter.Registration(ctx, models.RegistrationMessage{
			Action:         models.ActionPromoted,
			RegistrationID: r.ID,
			EventID:        r.EventID,
			UserID:         r.UserID,
			Status:         r.Status,
			Timestamp:      now.UTC(),
		})
	}
	s.emitter.Notifications(ctx, notes...)
	return event, nil
}

func (s *Service) apply(ctx context.Context, tx *store.Store, e *models.Event, in EditInput) error {
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.Type != nil {
		e.Type = *in.Type
	}
	if in.MaxParticipants != nil {
		e.MaxParticipants = in.MaxParticipants
	}
	if in.DeptID != nil && *in.DeptID != e.DeptID {
		if err := s.requireDepartment(ctx, tx, *in.DeptID); err != nil {
			return err
		}
		e.DeptID = *in.DeptID
	}
	if in.Date != nil || in.Time != nil {
		if in.Date != nil {
			e.Date = *in.Date
		}
		if in.Time != nil {
			e.Time = *in.Time
		}
		startsAt, err := models.ResolveStart(e.Date, e.Time, s.loc)
		if err != nil {
			return apperr.Validation("invalid date or time: %s %s", e.Date, e.Time)
		}
		e.StartsAt = startsAt
	}
	e.UpdatedAt = s.now().UTC()
	return nil
}

// Delete removes the event with its registrations, notifications and
// feedback as one unit.
func (s *Service) Delete(ctx context.Context, a actor.Actor, eventID string) error {
	if err := manageEventRoles.Check(a); err != nil {
		return err
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx *store.Store) error {
		event, err := tx.EventByID(ctx, eventID)
		if err != nil {
			return store.Classify(err, "event")
		}
		if !a.OwnsOrAdmin(event.CreatedBy) {
			return apperr.Authorization("access denied: only the creator or an admin can delete this event")
		}
		return tx.DeleteEventCascade(ctx, eventID)
	})
	if err != nil {
		s.log.Error("EVENT", fmt.Sprintf("Delete of event %s failed: %v", eventID, err))
		return apperr.Persistence("failed to delete event", err)
	}
	s.log.Info("EVENT", fmt.Sprintf("Event %s deleted by %s", eventID, a))
	return nil
}

// Get returns one event. Events that are not approved are visible only to
// their creator and admins.
func (s *Service) Get(ctx context.Context, a actor.Actor, eventID string) (*EventView, error) {
	details, err := s.store.EventDetailsByID(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	privileged := a.OwnsOrAdmin(details.CreatedBy)
	if details.Status != models.EventApproved && !privileged {
		return nil, apperr.Authorization(pendingAccessDenied)
	}

	view := &EventView{EventDetails: *details}
	if privileged {
		view.Participants, err = s.store.Participants(ctx, eventID)
		if err != nil {
			return nil, apperr.Persistence("failed to load participants", err)
		}
	}
	return view, nil
}

// List returns upcoming events ordered by start. Students and anonymous
// viewers see approved events, organizers also see their own, admins see all.
func (s *Service) List(ctx context.Context, a actor.Actor, f ListFilter) ([]store.EventDetails, error) {
	filter := store.EventFilter{
		StartsAfter: s.now(),
		Type:        f.Type,
		DeptID:      f.DeptID,
		Search:      f.Search,
	}
	if f.Status != "" {
		status := models.EventStatus(f.Status)
		if !status.Valid() {
			return nil, apperr.Validation("invalid status filter %q", f.Status)
		}
		filter.Status = status
	}
	switch {
	case a.IsAdmin():
	case a.Authenticated() && a.Role == actor.RoleOrganizer:
		filter.ApprovedOnly = true
		filter.Owner = a.UserID
	default:
		filter.ApprovedOnly = true
	}

	events, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, apperr.Persistence("failed to list events", err)
	}
	return events, nil
}

// ListCreated returns every event the actor created, newest first.
func (s *Service) ListCreated(ctx context.Context, a actor.Actor) ([]store.EventDetails, error) {
	if err := listCreatedRoles.Check(a); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, store.EventFilter{CreatedBy: a.UserID, NewestFirst: true})
	if err != nil {
		return nil, apperr.Persistence("failed to list created events", err)
	}
	return events, nil
}

func (s *Service) requireDepartment(ctx context.Context, st *store.Store, deptID int64) error {
	ok, err := st.DepartmentExists(ctx, deptID)
	if err != nil {
		return apperr.Persistence("failed to check department", err)
	}
	if !ok {
		return apperr.Validation("department %d does not exist", deptID)
	}
	return nil
}
