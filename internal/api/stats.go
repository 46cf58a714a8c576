package api

import (
	"net/http"

	"campus-events/internal/actor"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.EventStats(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event statistics retrieved", stats)
}

func (h *Handler) SystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.SystemStats(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Statistics retrieved", stats)
}

func (h *Handler) HomeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.HomeStats(r.Context())
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Statistics retrieved", stats)
}
