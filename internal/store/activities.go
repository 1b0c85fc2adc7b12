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

const activityColumns = `id, user_id, contact_id, action, description, created_at, reminder_at`

func scanActivity(s rowScanner) (*models.ActivityLog, error) {
	var (
		a        models.ActivityLog
		reminder sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.ContactID, &a.Action, &a.Description, &a.CreatedAt, &reminder); err != nil {
		return nil, err
	}
	if reminder.Valid {
		t := reminder.Time
		a.ReminderAt = &t
	}
	return &a, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateActivity inserts a, provided its contact exists and is owned by the same user.
func (db *DB) CreateActivity(ctx context.Context, a *models.ActivityLog) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO activity_logs (`+activityColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM contacts WHERE id = ? AND user_id = ?)
	`, a.ID, a.UserID, a.ContactID, a.Action, a.Description, a.CreatedAt, nullTime(a.ReminderAt),
		a.ContactID, a.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: contact %s: %w", a.ContactID, apperr.ErrNotFound)
	}
	return nil
}

// GetActivity returns the activity with id owned by userID.
func (db *DB) GetActivity(ctx context.Context, userID, id string) (*models.ActivityLog, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activity_logs WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get activity: %w", err)
	}
	return a, nil
}

// UpdateActivity overwrites action, description and reminder of a.
func (db *DB) UpdateActivity(ctx context.Context, a *models.ActivityLog) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE activity_logs SET action = ?, description = ?, reminder_at = ?
		WHERE id = ? AND user_id = ?
	`, a.Action, a.Description, nullTime(a.ReminderAt), a.ID, a.UserID)
	if err != nil {
		return fmt.Errorf("store: update activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteActivity removes one activity log.
func (db *DB) DeleteActivity(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM activity_logs WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListActivities returns a contact's activity logs, newest first.
func (db *DB) ListActivities(ctx context.Context, userID, contactID string) ([]models.ActivityLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activity_logs
		WHERE user_id = ? AND contact_id = ?
		ORDER BY created_at DESC
	`, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("store: list activities: %w", err)
	}
	return collectActivities(rows)
}

// UpcomingReminders returns activities whose reminder falls at or after from, soonest first.
func (db *DB) UpcomingReminders(ctx context.Context, userID string, from time.Time, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activity_logs
		WHERE user_id = ? AND reminder_at IS NOT NULL AND reminder_at >= ?
		ORDER BY reminder_at ASC
		LIMIT ?
	`, userID, from.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: upcoming reminders: %w", err)
	}
	return collectActivities(rows)
}

func collectActivities(rows *sql.Rows) ([]models.ActivityLog, error) {
	defer rows.Close()
	out := []models.ActivityLog{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
