package api

import (
	"fmt"
	"net/http"
	"time"

	"campus-events/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router builds the full route table.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(h.corsOptions()))

	required := auth.Middleware(h.Verifier, h.Logger)
	optional := auth.OptionalMiddleware(h.Verifier, h.Logger)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.RegisterUser)
			r.Post("/login", h.Login)
			r.With(required).Get("/me", h.Me)
			r.With(required).Post("/logout", h.Logout)
		})

		r.Route("/events", func(r chi.Router) {
			r.With(optional).Get("/", h.ListEvents)
			r.Group(func(r chi.Router) {
				r.Use(required)
				r.Post("/", h.CreateEvent)
				r.Get("/user/registered", h.ListRegistered)
				r.Get("/user/created", h.ListCreated)
				r.Put("/{id}", h.EditEvent)
				r.Delete("/{id}", h.DeleteEvent)
				r.Patch("/{id}/status", h.UpdateEventStatus)
				r.Post("/{id}/register", h.Register)
				r.Delete("/{id}/register", h.CancelRegistration)
				r.Get("/{id}/pass", h.Pass)
				r.Get("/{id}/stats", h.EventStats)
			})
			r.With(optional).Get("/{id}", h.GetEvent)
		})

		r.Route("/feedback", func(r chi.Router) {
			r.Use(required)
			r.Post("/events/{eventId}", h.SubmitFeedback)
			r.Get("/events/{eventId}", h.EventFeedback)
			r.Get("/organizer", h.OrganizerFeedback)
			r.Get("/check/{eventId}", h.CheckFeedback)
			r.Post("/notifications", h.SendFeedbackReminders)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/departments/all", h.Departments)
			r.Group(func(r chi.Router) {
				r.Use(required)
				r.Get("/", h.ListUsers)
				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpdateProfile)
				r.Get("/me/notifications", h.ListNotifications)
				r.Get("/me/notifications/stream", h.StreamNotifications)
				r.Patch("/me/notifications/{id}", h.MarkNotificationSeen)
				r.Get("/{id}", h.GetUser)
				r.Patch("/{id}/role", h.UpdateRole)
			})
		})

		r.With(required).Get("/admin/stats", h.SystemStats)
		r.Get("/stats/home", h.HomeStats)
	})

	return r
}

func (h *Handler) corsOptions() cors.Options {
	origins := []string{"*"}
	specific := h.CORSOrigin != "" && h.CORSOrigin != "*"
	if specific {
		origins = []string{h.CORSOrigin}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: specific,
		MaxAge:           300,
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(ww.Status()), time.Since(start).String())
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "ok", nil)
}
