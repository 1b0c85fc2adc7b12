package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/contactflow/internal/models"
)

// Stats counts userID's contacts per status, activities, pending reminders and webhooks.
func (db *DB) Stats(ctx context.Context, userID string, now time.Time) (*Stats, error) {
	st := &Stats{ByStatus: make(map[string]int, len(models.ContactStatuses)+1)}
	for _, s := range models.ContactStatuses {
		st.ByStatus[string(s)] = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT status, count(*) FROM contacts WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: stats contacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		if status == "" {
			status = "Unset"
		}
		st.ByStatus[status] = n
		st.Contacts += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM activity_logs WHERE user_id = ?),
			(SELECT count(*) FROM activity_logs WHERE user_id = ? AND reminder_at IS NOT NULL AND reminder_at >= ?),
			(SELECT count(*) FROM webhooks WHERE user_id = ?)
	`, userID, userID, now.UTC(), userID).Scan(&st.Activities, &st.PendingReminders, &st.Webhooks)
	if err != nil {
		return nil, fmt.Errorf("store: stats counts: %w", err)
	}
	return st, nil
}
