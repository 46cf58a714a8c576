// Package notifications exposes the in-app inbox. Other services create
// notifications inside their own transactions.
package notifications

import (
	"context"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/store"
)

var inboxRoles = actor.AnyUser("read notifications")

type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// List returns the actor's notifications, newest first.
func (s *Service) List(ctx context.Context, a actor.Actor) ([]store.NotificationView, error) {
	if err := inboxRoles.Check(a); err != nil {
		return nil, err
	}
	rows, err := s.store.NotificationsForUser(ctx, a.UserID)
	if err != nil {
		return nil, apperr.Persistence("failed to load notifications", err)
	}
	return rows, nil
}

// MarkSeen flags one of the actor's notifications as seen. Notifications of
// other users look missing.
func (s *Service) MarkSeen(ctx context.Context, a actor.Actor, id string) error {
	if err := inboxRoles.Check(a); err != nil {
		return err
	}
	ok, err := s.store.MarkNotificationSeen(ctx, id, a.UserID)
	if err != nil {
		return apperr.Persistence("failed to update notification", err)
	}
	if !ok {
		return apperr.NotFound("notification not found")
	}
	return nil
}
