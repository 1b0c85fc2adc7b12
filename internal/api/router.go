package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/contactflow/internal/crmservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events behind the same session
// middleware as the rest of the API.
func NewRouter(svc *crmservice.Service, auth AuthSettings, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(SessionMiddleware(auth))

	// Contacts.
	r.Get("/contacts", h.ListContacts)
	r.Post("/contacts", h.CreateContact)
	r.Get("/contacts/{id}", h.GetContact)
	r.Put("/contacts/{id}", h.UpdateContact)
	r.Patch("/contacts/{id}", h.PatchContact)
	r.Delete("/contacts/{id}", h.DeleteContact)

	// Activities.
	r.Get("/contacts/{id}/activities", h.ListActivities)
	r.Post("/contacts/{id}/activities", h.LogActivity)
	r.Put("/activities/{id}", h.UpdateActivity)
	r.Delete("/activities/{id}", h.DeleteActivity)
	r.Get("/reminders", h.Reminders)

	// Webhooks.
	r.Get("/webhooks", h.ListWebhooks)
	r.Post("/webhooks", h.CreateWebhook)
	r.Get("/webhooks/{id}", h.GetWebhook)
	r.Put("/webhooks/{id}", h.UpdateWebhook)
	r.Delete("/webhooks/{id}", h.DeleteWebhook)
	r.Post("/webhooks/{id}/test", h.TestWebhook)

	// Dashboard.
	r.Get("/stats", h.Stats)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
