//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/contactflow/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the contacts table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ *models.Contact) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// likeEscaper makes the LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchContacts performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) SearchContacts(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, email, substr(notes, 1, 200)
		FROM contacts
		WHERE user_id = ?
		  AND (name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\' OR company LIKE ? ESCAPE '\'
		       OR notes LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')
		ORDER BY updated_at DESC
		LIMIT ?
	`, userID, like, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
