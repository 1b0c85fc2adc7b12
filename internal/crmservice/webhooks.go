package crmservice

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/session"
	"github.com/starford/contactflow/internal/webhook"
)

// ErrNoDeliverer is returned by TestWebhook when no deliverer is configured.
var ErrNoDeliverer = errors.New("webhook delivery not configured")

// WebhookInput carries the caller-editable webhook fields. EventTrigger is
// only honoured on create.
type WebhookInput struct {
	EventTrigger models.EventTrigger `json:"event_trigger"`
	URL          string              `json:"url"`
	Description  string              `json:"description"`
}

// CreateWebhook registers a webhook. A second webhook for the same trigger
// returns apperr.ErrAlreadyExists.
func (s *Service) CreateWebhook(ctx context.Context, sess session.Session, in WebhookInput) (*models.Webhook, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	w := &models.Webhook{
		UserID:       sess.UserID,
		EventTrigger: in.EventTrigger,
		URL:          strings.TrimSpace(in.URL),
		Description:  strings.TrimSpace(in.Description),
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.CreateWebhook(ctx, w); err != nil {
		return nil, err
	}
	s.emit(EventWebhookCreated, sess.UserID, w)
	return w, nil
}

// GetWebhook returns one of the user's webhooks.
func (s *Service) GetWebhook(ctx context.Context, sess session.Session, id string) (*models.Webhook, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	return s.db.GetWebhook(ctx, sess.UserID, id)
}

// ListWebhooks returns the user's webhooks.
func (s *Service) ListWebhooks(ctx context.Context, sess session.Session) ([]models.Webhook, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	items, err := s.db.ListWebhooks(ctx, sess.UserID)
	return nonNilSlice(items), err
}

// UpdateWebhook changes url and description. Supplying a different
// event_trigger is a validation error.
func (s *Service) UpdateWebhook(ctx context.Context, sess session.Session, id string, in WebhookInput) (*models.Webhook, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	w, err := s.db.GetWebhook(ctx, sess.UserID, id)
	if err != nil {
		return nil, err
	}
	if in.EventTrigger != "" && in.EventTrigger != w.EventTrigger {
		return nil, validation.Errors{
			"event_trigger": validation.NewError("validation_trigger_immutable", "cannot be changed after creation"),
		}
	}
	w.URL = strings.TrimSpace(in.URL)
	w.Description = strings.TrimSpace(in.Description)
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.UpdateWebhook(ctx, w); err != nil {
		return nil, err
	}
	s.emit(EventWebhookUpdated, sess.UserID, w)
	return w, nil
}

// DeleteWebhook removes one webhook.
func (s *Service) DeleteWebhook(ctx context.Context, sess session.Session, id string) error {
	if err := sess.Require(); err != nil {
		return err
	}
	if err := s.db.DeleteWebhook(ctx, sess.UserID, id); err != nil {
		return err
	}
	s.emit(EventWebhookDeleted, sess.UserID, map[string]string{"id": id})
	return nil
}

// TestWebhook sends a sample payload to one webhook synchronously and
// returns the outcome. Unlike regular dispatch the result is reported back.
func (s *Service) TestWebhook(ctx context.Context, sess session.Session, id string) (*webhook.Outcome, error) {
	w, err := s.GetWebhook(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if s.deliverer == nil {
		return nil, ErrNoDeliverer
	}
	out := s.deliverer.Deliver(ctx, w.EventTrigger, *w, map[string]any{
		"test":       true,
		"webhook_id": w.ID,
		"user_id":    sess.UserID,
	})
	return &out, nil
}
