// Package api exposes the campus services over HTTP with chi.
package api

import (
	"campus-events/internal/analytics"
	"campus-events/internal/auth"
	"campus-events/internal/events"
	"campus-events/internal/feedback"
	"campus-events/internal/logger"
	"campus-events/internal/metrics"
	"campus-events/internal/notifications"
	"campus-events/internal/registrations"
	"campus-events/internal/sse"
	"campus-events/internal/users"
)

type Handler struct {
	Events        *events.Service
	Registrations *registrations.Service
	Feedback      *feedback.Service
	Users         *users.Service
	Notifications *notifications.Service
	Analytics     *analytics.Service
	Stream        *sse.Hub
	Verifier      auth.Verifier
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	// CORSOrigin is the allowed browser origin; empty allows any.
	CORSOrigin string
}
