package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/contactflow/internal/models"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultMaxConcurrency = 8
	maxLoggedBody         = 4 << 10
	userAgent             = "contactflow/1"

	// isoLayout matches the millisecond UTC form browsers emit for ISO-8601.
	isoLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Finder looks up the webhooks subscribed to a trigger. An empty userID
// means the lookup is not scoped to an owner.
type Finder interface {
	FindWebhooks(ctx context.Context, userID string, trigger models.EventTrigger) ([]models.Webhook, error)
}

// Envelope is the JSON body POSTed to every endpoint.
type Envelope struct {
	Event       models.EventTrigger `json:"event"`
	Data        any                 `json:"data"`
	TriggeredAt string              `json:"triggered_at"`
}

// Status is the terminal state of one delivery attempt.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome describes one delivery attempt. It exists for logs and the
// "test webhook" operation only.
type Outcome struct {
	WebhookID  string `json:"webhook_id"`
	Target     string `json:"target,omitempty"`
	Status     Status `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report tallies one fan-out.
type Report struct {
	Matched   int
	Delivered int
	Failed    int
	Skipped   int
	Outcomes  []Outcome
}

// Config controls where and how deliveries are sent.
type Config struct {
	// BaseURL is the origin serving RoutingPrefix, e.g. "http://localhost:8080".
	BaseURL       string
	RoutingPrefix string
	Timeout       time.Duration
	// MaxConcurrency caps simultaneous POSTs within one fan-out.
	MaxConcurrency int
	// ScopeAll disables owner scoping of the webhook lookup.
	ScopeAll bool
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = c
	}
}

// WithClock overrides the source of triggered_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher fans a domain event out to every matching webhook.
type Dispatcher struct {
	finder Finder
	logger *slog.Logger
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher. Zero config fields take defaults.
func NewDispatcher(finder Finder, logger *slog.Logger, cfg Config, opts ...Option) *Dispatcher {
	if cfg.RoutingPrefix == "" {
		cfg.RoutingPrefix = DefaultRoutingPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.RoutingPrefix = "/" + strings.Trim(cfg.RoutingPrefix, "/")

	d := &Dispatcher{
		finder: finder,
		logger: logger.With(slog.String("component", "webhook-dispatcher")),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Target builds the request URL for a normalized path.
func (d *Dispatcher) Target(path string) string {
	return d.cfg.BaseURL + d.cfg.RoutingPrefix + path
}

// Dispatch delivers event to every webhook the user registered for it and
// waits until each attempt has succeeded or failed. It never fails: a
// missing user, a lookup error or a bad delivery is logged and contained.
// The returned Report is diagnostic only.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.EventTrigger, userID string, data any) Report {
	var rep Report
	log := d.logger.With(slog.String("event", string(event)))

	if userID == "" {
		log.Error("webhook dispatch skipped: missing user id")
		return rep
	}
	if !event.Valid() {
		log.Warn("webhook dispatch skipped: unsupported event")
		return rep
	}

	scope := userID
	if d.cfg.ScopeAll {
		scope = ""
	}
	hooks, err := d.finder.FindWebhooks(ctx, scope, event)
	if err != nil {
		log.Error("webhook lookup failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return rep
	}
	if len(hooks) == 0 {
		log.Debug("no webhooks registered", slog.String("user_id", userID))
		return rep
	}

	rep.Matched = len(hooks)
	rep.Outcomes = make([]Outcome, len(hooks))

	// Every goroutine returns nil: Wait is a join on all attempts, never a
	// short-circuit on the first failure.
	var g errgroup.Group
	g.SetLimit(d.cfg.MaxConcurrency)
	for i, wh := range hooks {
		g.Go(func() error {
			rep.Outcomes[i] = d.Deliver(ctx, event, wh, data)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range rep.Outcomes {
		switch o.Status {
		case StatusDelivered:
			rep.Delivered++
		case StatusFailed:
			rep.Failed++
		case StatusSkipped:
			rep.Skipped++
		}
	}
	log.Info("webhook dispatch finished",
		slog.String("user_id", userID),
		slog.Int("matched", rep.Matched),
		slog.Int("delivered", rep.Delivered),
		slog.Int("failed", rep.Failed),
		slog.Int("skipped", rep.Skipped))
	return rep
}

// Deliver makes a single attempt to POST event to wh.
func (d *Dispatcher) Deliver(ctx context.Context, event models.EventTrigger, wh models.Webhook, data any) Outcome {
	out := Outcome{WebhookID: wh.ID}
	log := d.logger.With(slog.String("event", string(event)), slog.String("webhook_id", wh.ID))

	path, extracted, err := NormalizePath(wh.URL)
	if err != nil {
		out.Status, out.Error = StatusSkipped, err.Error()
		if errors.Is(err, ErrEmptyPath) {
			log.Error("webhook skipped: no path configured")
		} else {
			log.Error("webhook skipped: invalid path", slog.String("error", err.Error()))
		}
		return out
	}
	if extracted {
		log.Warn("webhook url holds a full URL, using its path",
			slog.String("stored", redactURL(strings.TrimSpace(wh.URL))),
			slog.String("path", path))
	}
	out.Target = d.Target(path)

	body, err := json.Marshal(Envelope{
		Event:       event,
		Data:        data,
		TriggeredAt: d.now().UTC().Format(isoLayout),
	})
	if err != nil {
		out.Status, out.Error = StatusFailed, fmt.Sprintf("marshal payload: %v", err)
		log.Error("webhook payload encode failed", slog.String("error", err.Error()))
		return out
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, out.Target, bytes.NewReader(body))
	if err != nil {
		out.Status, out.Error = StatusFailed, err.Error()
		log.Error("webhook request build failed", slog.String("target", redactURL(out.Target)), slog.String("error", err.Error()))
		return out
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		out.Status, out.Error = StatusFailed, err.Error()
		log.Error("webhook delivery failed",
			slog.String("target", redactURL(out.Target)),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return out
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	out.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out.Status = StatusDelivered
		log.Info("webhook delivered",
			slog.String("target", redactURL(out.Target)),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
		return out
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	out.Status, out.Error = StatusFailed, fmt.Sprintf("HTTP %d", resp.StatusCode)
	log.Error("webhook returned non-success status",
		slog.String("target", redactURL(out.Target)),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(snippet)))
	return out
}
