// Package crmservice applies CRM mutations through the store and announces
// each committed change to the configured event sinks.
package crmservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/session"
	"github.com/starford/contactflow/internal/store"
	"github.com/starford/contactflow/internal/webhook"
)

// Events emitted to sinks. The three webhook triggers are a subset.
const (
	EventContactCreated  = string(models.EventContactCreated)
	EventContactUpdated  = string(models.EventContactUpdated)
	EventContactDeleted  = "contact.deleted"
	EventActivityCreated = string(models.EventActivityCreated)
	EventActivityUpdated = "activity.updated"
	EventActivityDeleted = "activity.deleted"
	EventWebhookCreated  = "webhook.created"
	EventWebhookUpdated  = "webhook.updated"
	EventWebhookDeleted  = "webhook.deleted"
)

// EventSink receives a notification after a mutation commits. Implementations
// must not block.
type EventSink interface {
	Notify(event, userID string, data any)
}

// Deliverer performs a single webhook attempt; used by TestWebhook.
type Deliverer interface {
	Deliver(ctx context.Context, event models.EventTrigger, wh models.Webhook, data any) webhook.Outcome
}

// Option configures a Service.
type Option func(*Service)

// WithSinks adds event sinks.
func WithSinks(sinks ...EventSink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithDeliverer sets the deliverer used to test webhooks.
func WithDeliverer(d Deliverer) Option {
	return func(s *Service) {
		s.deliverer = d
	}
}

// Service coordinates store operations and event emission.
type Service struct {
	db        store.Repository
	logger    *slog.Logger
	sinks     []EventSink
	deliverer Deliverer
	now       func() time.Time
}

// NewService creates a new CRM service.
func NewService(db store.Repository, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{db: db, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit hands a committed change to every sink. A panicking sink is logged
// and does not affect the caller or the other sinks.
func (s *Service) emit(event, userID string, data any) {
	for _, sink := range s.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("event sink panicked", slog.String("event", event), slog.Any("panic", r))
				}
			}()
			sink.Notify(event, userID, data)
		}()
	}
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Stats returns dashboard counts for the session's user.
func (s *Service) Stats(ctx context.Context, sess session.Session) (*store.Stats, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	return s.db.Stats(ctx, sess.UserID, s.now())
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
