package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/contactflow/internal/crmservice"
)

// ListActivities handles GET /api/contacts/{id}/activities.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListActivities(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list activities", err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityListResponse{Activities: items})
}

// LogActivity handles POST /api/contacts/{id}/activities. A successful call
// is what drives activity.created webhooks.
//
//	@Summary		Log an activity against a contact
//	@Tags			activities
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Contact id"
//	@Param			body	body		crmservice.ActivityInput	true	"Activity"
//	@Success		201		{object}	models.ActivityLog
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id}/activities [post]
func (h *Handler) LogActivity(w http.ResponseWriter, r *http.Request) {
	var req crmservice.ActivityInput
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.LogActivity(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "log activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// UpdateActivity handles PUT /api/activities/{id}.
func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	var req crmservice.ActivityInput
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.UpdateActivity(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update activity", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteActivity handles DELETE /api/activities/{id}.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteActivity(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete activity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reminders handles GET /api/reminders.
func (h *Handler) Reminders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.UpcomingReminders(r.Context(), sessionFrom(r), limit)
	if err != nil {
		writeError(w, "upcoming reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityListResponse{Activities: items})
}
