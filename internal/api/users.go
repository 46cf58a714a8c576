package api

import (
	"net/http"

	"campus-events/internal/actor"
	"campus-events/internal/auth"
	"campus-events/internal/users"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	sess, err := h.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusCreated, "User registered", sess)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in users.LoginInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	sess, err := h.Users.Login(r.Context(), in)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Logged in", sess)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Logout(r.Context(), auth.ClaimsFromContext(r.Context())); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Logged out", nil)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Me(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "User retrieved", u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "User retrieved", u)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Users.List(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Users retrieved", list)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	u, err := h.Users.UpdateRole(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Role updated", u)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Users.Profile(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Profile retrieved", p)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in users.ProfileInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	p, err := h.Users.UpdateProfile(r.Context(), actor.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Profile updated", p)
}

func (h *Handler) Departments(w http.ResponseWriter, r *http.Request) {
	deps, err := h.Users.Departments(r.Context())
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Departments retrieved", deps)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.Notifications.List(r.Context(), actor.FromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Notifications retrieved", list)
}

func (h *Handler) MarkNotificationSeen(w http.ResponseWriter, r *http.Request) {
	if err := h.Notifications.MarkSeen(r.Context(), actor.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeData(w, http.StatusOK, "Notification marked as seen", nil)
}
