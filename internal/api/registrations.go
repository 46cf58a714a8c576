package api

import (
	"net/http"

	"campus-events/internal/actor"
	"campus-events/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	reg, err := h.Registrations.Register(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	msg := "Registered for event"
	if reg.Status == models.RegistrationWaitlisted {
		msg = "Event is full, added to waitlist"
	}
	writeData(w, http.StatusCreated, msg, reg)
}

func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	res, err := h.Registrations.Cancel(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Registration cancelled", res)
}

func (h *Handler) ListRegistered(w http.ResponseWriter, r *http.Request) {
	list, err := h.Registrations.ListForUser(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Registered events retrieved", list)
}

func (h *Handler) Pass(w http.ResponseWriter, r *http.Request) {
	png, err := h.Registrations.Pass(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", "Pass: failed to write image: "+err.Error())
	}
}
