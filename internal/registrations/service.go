// Package registrations runs the registration and waitlist state machine.
// Every transition on an event happens inside one transaction that holds the
// event's row lock, optionally fronted by a distributed lock, so capacity is
// never exceeded and each freed seat promotes exactly one waitlisted user.
package registrations

import (
	"context"
	"fmt"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/kafka"
	"campus-events/internal/lock"
	"campus-events/internal/logger"
	"campus-events/internal/metrics"
	"campus-events/internal/models"
	"campus-events/internal/passes"
	"campus-events/internal/store"
	"campus-events/internal/utils"
)

var (
	registerRoles = actor.AnyUser("register for events")
	cancelRoles   = actor.AnyUser("cancel registrations")
	viewRoles     = actor.AnyUser("view registrations")
)

type Service struct {
	store   *store.Store
	locker  lock.Locker
	passes  *passes.Generator
	emitter *kafka.Emitter
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPasses enables QR entry passes.
func WithPasses(g *passes.Generator) Option {
	return func(s *Service) { s.passes = g }
}

func NewService(st *store.Store, locker lock.Locker, emitter *kafka.Emitter, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	s := &Service{
		store:   st,
		locker:  locker,
		emitter: emitter,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CancelResult describes the registration removed and, when a confirmed seat
// was freed, the waitlisted registration that took it.
type CancelResult struct {
	Cancelled models.Registration  `json:"cancelled"`
	Promoted  *models.Registration `json:"promoted,omitempty"`
}

// withEventLock runs fn in a transaction that holds the event's row lock.
func (s *Service) withEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, tx *store.Store) error) error {
	unlock, err := s.locker.Lock(ctx, lock.EventKey(eventID))
	if err != nil {
		return apperr.Persistence("event is busy, try again", err)
	}
	defer unlock()

	return s.store.RunInTx(ctx, func(ctx context.Context, tx *store.Store) error {
		if err := tx.LockEvent(ctx, eventID); err != nil {
			return store.Classify(err, "event")
		}
		return fn(ctx, tx)
	})
}

// Register confirms the actor for an approved event, or waitlists them when
// the event is full.
func (s *Service) Register(ctx context.Context, a actor.Actor, eventID string) (*models.Registration, error) {
	if err := registerRoles.Check(a); err != nil {
		return nil, err
	}

	now := s.now()
	var reg models.Registration
	var note models.Notification
	err := s.withEventLock(ctx, eventID, func(ctx context.Context, tx *store.Store) error {
		event, err := tx.EventByID(ctx, eventID)
		if err != nil {
			return store.Classify(err, "event")
		}
		if event.Status != models.EventApproved {
			return apperr.NotFound("event not found or not approved")
		}

		_, err = tx.RegistrationFor(ctx, eventID, a.UserID)
		if err == nil {
			return apperr.Conflict("already registered for this event")
		}
		if !store.IsNotFound(err) {
			return err
		}

		confirmed, err := tx.CountConfirmed(ctx, eventID)
		if err != nil {
			return err
		}
		status := models.RegistrationConfirmed
		if !event.HasCapacity(confirmed) {
			status = models.RegistrationWaitlisted
		}

		reg = models.Registration{
			ID:           utils.NewID(),
			EventID:      eventID,
			UserID:       a.UserID,
			Status:       status,
			RegisteredAt: now.UTC(),
		}
		if err := tx.InsertRegistration(ctx, &reg); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict("already registered for this event")
			}
			return err
		}

		note = models.NewNotification(event.CreatedBy, eventID,
			fmt.Sprintf("A new user has registered for your event \"%s\"", event.Title), now)
		return tx.InsertNotification(ctx, &note)
	})
	if err != nil {
		return nil, apperr.Persistence("failed to register for event", err)
	}

	s.log.Info("REGISTRATION", fmt.Sprintf("User %s %s for event %s", a.UserID, reg.Status, eventID))
	s.metrics.Registrations.WithLabelValues(string(reg.Status)).Inc()
	s.emitter.Registration(ctx, registrationMessage(models.ActionRegistered, reg, now))
	s.emitter.Notifications(ctx, note)
	return &reg, nil
}

// Cancel removes the actor's registration before the event starts. Freeing a
// confirmed seat promotes the oldest waitlisted registration.
func (s *Service) Cancel(ctx context.Context, a actor.Actor, eventID string) (*CancelResult, error) {
	if err := cancelRoles.Check(a); err != nil {
		return nil, err
	}

	var result CancelResult
	var notes []models.Notification
	var now time.Time
	err := s.withEventLock(ctx, eventID, func(ctx context.Context, tx *store.Store) error {
		event, err := tx.EventByID(ctx, eventID)
		if err != nil {
			return store.Classify(err, "event")
		}
		reg, err := tx.RegistrationFor(ctx, eventID, a.UserID)
		if err != nil {
			return store.Classify(err, "registration")
		}

		// Read the clock under the lock so the start check and the
		// delete agree.
		now = s.now()
		if !now.Before(event.StartsAt) {
			return apperr.InvalidState("cannot cancel a registration after the event has started")
		}

		if err := tx.DeleteRegistration(ctx, reg.ID); err != nil {
			return err
		}
		result.Cancelled = *reg

		if reg.Status != models.RegistrationConfirmed {
			return nil
		}
		promoted, err := tx.PromoteWaitlisted(ctx, event, 1)
		if err != nil || len(promoted) == 0 {
			return err
		}
		result.Promoted = &promoted[0]

		note := models.NewPromotionNotification(promoted[0].UserID, event, now)
		notes = append(notes, note)
		return tx.InsertNotification(ctx, &note)
	})
	if err != nil {
		return nil, apperr.Persistence("failed to cancel registration", err)
	}

	s.log.Info("REGISTRATION", fmt.Sprintf("User %s cancelled %s registration for event %s", a.UserID, result.Cancelled.Status, eventID))
	s.metrics.Cancellations.Inc()
	s.emitter.Registration(ctx, registrationMessage(models.ActionCancelled, result.Cancelled, now))
	if result.Promoted != nil {
		s.log.Info("REGISTRATION", fmt.Sprintf("User %s promoted from waitlist for event %s", result.Promoted.UserID, eventID))
		s.metrics.Promotions.Inc()
		s.emitter.Registration(ctx, registrationMessage(models.ActionPromoted, *result.Promoted, now))
	}
	s.emitter.Notifications(ctx, notes...)
	return &result, nil
}

// ListForUser returns the actor's registrations with their events.
func (s *Service) ListForUser(ctx context.Context, a actor.Actor) ([]store.RegisteredEvent, error) {
	if err := viewRoles.Check(a); err != nil {
		return nil, err
	}
	rows, err := s.store.RegistrationsForUser(ctx, a.UserID)
	if err != nil {
		return nil, apperr.Persistence("failed to list registrations", err)
	}
	return rows, nil
}

// Pass renders the QR entry pass of a confirmed registration.
func (s *Service) Pass(ctx context.Context, a actor.Actor, eventID string) ([]byte, error) {
	if err := viewRoles.Check(a); err != nil {
		return nil, err
	}
	if s.passes == nil {
		return nil, apperr.InvalidState("entry passes are not enabled")
	}
	reg, err := s.store.RegistrationFor(ctx, eventID, a.UserID)
	if err != nil {
		return nil, store.Classify(err, "registration")
	}
	if reg.Status != models.RegistrationConfirmed {
		return nil, apperr.InvalidState("waitlisted registrations have no entry pass")
	}
	png, err := s.passes.PNG(passes.Payload{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		IssuedAt:       s.now().UTC(),
	})
	if err != nil {
		return nil, apperr.Persistence("failed to render entry pass", err)
	}
	return png, nil
}

func registrationMessage(action models.RegistrationAction, r models.Registration, now time.Time) models.RegistrationMessage {
	return models.RegistrationMessage{
		Action:         action,
		RegistrationID: r.ID,
		EventID:        r.EventID,
		UserID:         r.UserID,
		Status:         r.Status,
		Timestamp:      now.UTC(),
	}
}
