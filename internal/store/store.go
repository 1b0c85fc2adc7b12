package store

import (
	"context"
	"time"

	"github.com/starford/contactflow/internal/models"
)

// ContactFilter narrows a contact listing.
type ContactFilter struct {
	Status models.ContactStatus
	Tag    string
	Sort   string // updated_at (default), created_at, name
	Limit  int
	Offset int
}

// SearchResult is one contact search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Snippet string `json:"snippet"`
}

// Stats summarises a user's CRM for the dashboard.
type Stats struct {
	Contacts         int            `json:"contacts"`
	ByStatus         map[string]int `json:"by_status"`
	Activities       int            `json:"activities"`
	PendingReminders int            `json:"pending_reminders"`
	Webhooks         int            `json:"webhooks"`
}

// Repository is the persistence surface the service layer depends on.
// Every method is scoped to the owning user.
type Repository interface {
	CreateContact(ctx context.Context, c *models.Contact) error
	GetContact(ctx context.Context, userID, id string) (*models.Contact, error)
	UpdateContact(ctx context.Context, c *models.Contact) error
	DeleteContact(ctx context.Context, userID, id string) error
	ListContacts(ctx context.Context, userID string, f ContactFilter) ([]models.Contact, int, error)
	SearchContacts(ctx context.Context, userID, query string, limit int) ([]SearchResult, error)

	CreateActivity(ctx context.Context, a *models.ActivityLog) error
	GetActivity(ctx context.Context, userID, id string) (*models.ActivityLog, error)
	UpdateActivity(ctx context.Context, a *models.ActivityLog) error
	DeleteActivity(ctx context.Context, userID, id string) error
	ListActivities(ctx context.Context, userID, contactID string) ([]models.ActivityLog, error)
	UpcomingReminders(ctx context.Context, userID string, from time.Time, limit int) ([]models.ActivityLog, error)

	CreateWebhook(ctx context.Context, w *models.Webhook) error
	GetWebhook(ctx context.Context, userID, id string) (*models.Webhook, error)
	UpdateWebhook(ctx context.Context, w *models.Webhook) error
	DeleteWebhook(ctx context.Context, userID, id string) error
	ListWebhooks(ctx context.Context, userID string) ([]models.Webhook, error)
	FindWebhooks(ctx context.Context, userID string, trigger models.EventTrigger) ([]models.Webhook, error)

	Stats(ctx context.Context, userID string, now time.Time) (*Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)
