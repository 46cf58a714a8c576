package api

import (
	"net/http"

	"campus-events/internal/actor"
	"campus-events/internal/feedback"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var in feedback.Input
	if err := decode(r, &in); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	res, err := h.Feedback.Submit(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "eventId"), in)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	if res.Updated {
		writeData(w, http.StatusOK, "Feedback updated", res)
		return
	}
	writeData(w, http.StatusCreated, "Feedback submitted", res)
}

func (h *Handler) EventFeedback(w http.ResponseWriter, r *http.Request) {
	agg, err := h.Feedback.Aggregate(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Feedback retrieved", agg)
}

func (h *Handler) OrganizerFeedback(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Feedback.OrganizerSummary(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Feedback summary retrieved", summary)
}

func (h *Handler) CheckFeedback(w http.ResponseWriter, r *http.Request) {
	res, err := h.Feedback.Check(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Feedback status retrieved", res)
}

func (h *Handler) SendFeedbackReminders(w http.ResponseWriter, r *http.Request) {
	n, err := h.Feedback.SendReminders(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Feedback reminders sent", map[string]int{"sent": n})
}
