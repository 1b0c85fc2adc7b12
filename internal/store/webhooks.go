package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/contactflow/internal/apperr"
	"github.com/starford/contactflow/internal/models"
)

const webhookColumns = `id, user_id, event_trigger, url, description, created_at`

func scanWebhook(s rowScanner) (*models.Webhook, error) {
	var (
		w       models.Webhook
		trigger string
	)
	if err := s.Scan(&w.ID, &w.UserID, &trigger, &w.URL, &w.Description, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.EventTrigger = models.EventTrigger(trigger)
	return &w, nil
}

// CreateWebhook inserts w. A second webhook for the same (user, trigger)
// pair returns apperr.ErrAlreadyExists.
func (db *DB) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO webhooks (`+webhookColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, string(w.EventTrigger), w.URL, w.Description, w.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert webhook: %w", err)
	}
	return nil
}

// GetWebhook returns the webhook with id owned by userID.
func (db *DB) GetWebhook(ctx context.Context, userID, id string) (*models.Webhook, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE id = ? AND user_id = ?`, id, userID)
	w, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get webhook: %w", err)
	}
	return w, nil
}

// UpdateWebhook overwrites url and description. The trigger is immutable.
func (db *DB) UpdateWebhook(ctx context.Context, w *models.Webhook) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE webhooks SET url = ?, description = ? WHERE id = ? AND user_id = ?`,
		w.URL, w.Description, w.ID, w.UserID)
	if err != nil {
		return fmt.Errorf("store: update webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteWebhook removes one webhook.
func (db *DB) DeleteWebhook(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListWebhooks returns all of userID's webhooks ordered by trigger.
func (db *DB) ListWebhooks(ctx context.Context, userID string) ([]models.Webhook, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE user_id = ? ORDER BY event_trigger`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list webhooks: %w", err)
	}
	return collectWebhooks(rows)
}

// FindWebhooks returns the webhooks subscribed to trigger. An empty userID
// disables owner scoping and matches every user's rows.
func (db *DB) FindWebhooks(ctx context.Context, userID string, trigger models.EventTrigger) ([]models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE event_trigger = ?`
	args := []any{string(trigger)}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	rows, err := db.conn.QueryContext(ctx, query+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find webhooks: %w", err)
	}
	return collectWebhooks(rows)
}

func collectWebhooks(rows *sql.Rows) ([]models.Webhook, error) {
	defer rows.Close()
	out := []models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}
