// Package metrics exposes Prometheus collectors for the registration,
// lifecycle and feedback flows plus HTTP request timing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Registrations      *prometheus.CounterVec
	Cancellations      prometheus.Counter
	Promotions         prometheus.Counter
	StatusChanges      *prometheus.CounterVec
	FeedbackSubmitted  *prometheus.CounterVec
	RemindersSent      prometheus.Counter
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers all collectors on a private registry, so tests can build as
// many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "registrations_total",
			Help:      "Registrations created, by resulting status.",
		}, []string{"status"}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "registration_cancellations_total",
			Help:      "Registrations cancelled by attendees.",
		}),
		Promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "waitlist_promotions_total",
			Help:      "Waitlisted registrations promoted to confirmed.",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "event_status_changes_total",
			Help:      "Admin approval decisions, by new status.",
		}, []string{"status"}),
		FeedbackSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "feedback_submissions_total",
			Help:      "Feedback submissions, by insert or update.",
		}, []string{"kind"}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "feedback_reminders_total",
			Help:      "Feedback reminder notifications created.",
		}),
		HTTPRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "campus",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(
		m.Registrations,
		m.Cancellations,
		m.Promotions,
		m.StatusChanges,
		m.FeedbackSubmitted,
		m.RemindersSent,
		m.HTTPRequestSeconds,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request latency labelled with the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestSeconds.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
