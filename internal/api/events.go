package api

import (
	"fmt"
	"net/http"
	"strconv"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/events"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := events.ListFilter{
		Status: q.Get("status"),
		Type:   q.Get("type"),
		Search: q.Get("search"),
	}
	if dept := q.Get("dept_id"); dept != "" {
		id, err := strconv.ParseInt(dept, 10, 64)
		if err != nil {
			writeError(w, h.Logger, r, apperr.Validation("dept_id must be a number"))
			return
		}
		filter.DeptID = id
	}

	list, err := h.Events.List(r.Context(), actor.FromContext(r.Context()), filter)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Events retrieved", list)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	view, err := h.Events.Get(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event retrieved", view)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in events.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	event, err := h.Events.Create(r.Context(), actor.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateEvent: event %s created with status %s", event.ID, event.Status))
	writeData(w, http.StatusCreated, "Event created", event)
}

func (h *Handler) EditEvent(w http.ResponseWriter, r *http.Request) {
	var in events.EditInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	event, err := h.Events.Edit(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event updated", event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Events.Delete(r.Context(), actor.FromContext(r.Context()), id); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("DeleteEvent: event %s deleted", id))
	writeData(w, http.StatusOK, "Event deleted", nil)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	event, err := h.Events.UpdateStatus(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event status updated", event)
}

func (h *Handler) ListCreated(w http.ResponseWriter, r *http.Request) {
	list, err := h.Events.ListCreated(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Created events retrieved", list)
}
