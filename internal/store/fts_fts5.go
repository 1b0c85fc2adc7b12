//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/contactflow/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS contacts_fts USING fts5(
			id UNINDEXED,
			user_id UNINDEXED,
			name,
			email,
			company,
			notes,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, c *models.Contact) error {
	_, _ = tx.Exec(`DELETE FROM contacts_fts WHERE id = ?`, c.ID)
	_, err := tx.Exec(`INSERT INTO contacts_fts (id, user_id, name, email, company, notes, tags) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Email, c.Company, c.Notes, strings.Join(c.Tags, " "))
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM contacts_fts WHERE id = ?`, id)
}

// ftsQuery turns free text into an FTS5 expression: each whitespace-separated
// term becomes a quoted prefix phrase, so punctuation in emails or names is
// never parsed as query syntax. Terms are ANDed.
func ftsQuery(text string) string {
	terms := strings.Fields(text)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " ")
}

// SearchContacts runs an FTS5 query over userID's contacts and returns hits with snippets.
func (db *DB) SearchContacts(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return []SearchResult{}, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id,
		       name,
		       email,
		       snippet(contacts_fts, 5, '<b>', '</b>', '...', 32)
		FROM contacts_fts
		WHERE contacts_fts MATCH ? AND user_id = ?
		ORDER BY rank
		LIMIT ?
	`, match, userID, limit)
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
