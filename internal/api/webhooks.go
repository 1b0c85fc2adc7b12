package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/contactflow/internal/crmservice"
)

// ListWebhooks handles GET /api/webhooks.
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListWebhooks(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(w, "list webhooks", err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookListResponse{Webhooks: items})
}

// CreateWebhook handles POST /api/webhooks.
//
//	@Summary		Register a webhook for an event trigger
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		crmservice.WebhookInput	true	"Webhook"
//	@Success		201		{object}	models.Webhook
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webhooks [post]
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req crmservice.WebhookInput
	if !decodeJSON(w, r, &req) {
		return
	}
	wh, err := h.svc.CreateWebhook(r.Context(), sessionFrom(r), req)
	if err != nil {
		writeError(w, "create webhook", err)
		return
	}
	writeJSON(w, http.StatusCreated, wh)
}

// GetWebhook handles GET /api/webhooks/{id}.
func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	wh, err := h.svc.GetWebhook(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

// UpdateWebhook handles PUT /api/webhooks/{id}. Only url and description
// may change.
func (h *Handler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req crmservice.WebhookInput
	if !decodeJSON(w, r, &req) {
		return
	}
	wh, err := h.svc.UpdateWebhook(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

// DeleteWebhook handles DELETE /api/webhooks/{id}.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteWebhook(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete webhook", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestWebhook handles POST /api/webhooks/{id}/test. The delivery outcome is
// returned as-is; a failed delivery is still a 200 response.
func (h *Handler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.TestWebhook(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "test webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
