package api

import (
	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/store"
)

// ContactListResponse wraps paginated contact listings.
type ContactListResponse struct {
	Contacts []models.Contact `json:"contacts" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps contact search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}

// ActivityListResponse wraps a contact's activity timeline.
type ActivityListResponse struct {
	Activities []models.ActivityLog `json:"activities" validate:"required"`
}

// WebhookListResponse wraps the user's webhook registrations.
type WebhookListResponse struct {
	Webhooks []models.Webhook `json:"webhooks" validate:"required"`
}
