package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/contactflow/internal/apperr"
	"github.com/starford/contactflow/internal/models"
)

const contactColumns = `id, user_id, name, email, company, status, source, tags, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(s rowScanner) (*models.Contact, error) {
	var (
		c        models.Contact
		status   string
		tagsJSON string
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Company, &status, &c.Source,
		&tagsJSON, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = models.ContactStatus(status)
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return nil, fmt.Errorf("store: decode tags for %s: %w", c.ID, err)
	}
	c.Tags = models.NormalizeTags(c.Tags)
	return &c, nil
}

// CreateContact inserts c, assigning its id and timestamps.
func (db *DB) CreateContact(ctx context.Context, c *models.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Tags = models.NormalizeTags(c.Tags)
	tagsJSON, _ := json.Marshal(c.Tags)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Name, c.Email, c.Company, string(c.Status), c.Source,
		string(tagsJSON), c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert contact: %w", err)
	}
	if err := ftsUpsert(tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

// GetContact returns the contact with id owned by userID.
func (db *DB) GetContact(ctx context.Context, userID, id string) (*models.Contact, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get contact: %w", err)
	}
	return c, nil
}

// UpdateContact overwrites the mutable fields of c and bumps updated_at.
func (db *DB) UpdateContact(ctx context.Context, c *models.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	c.Tags = models.NormalizeTags(c.Tags)
	tagsJSON, _ := json.Marshal(c.Tags)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE contacts SET
			name       = ?,
			email      = ?,
			company    = ?,
			status     = ?,
			source     = ?,
			tags       = ?,
			notes      = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?
	`, c.Name, c.Email, c.Company, string(c.Status), c.Source, string(tagsJSON), c.Notes,
		c.UpdatedAt, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("store: update contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	if err := ftsUpsert(tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteContact removes a contact; its activity logs cascade.
func (db *DB) DeleteContact(ctx context.Context, userID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	ftsDelete(tx, id)
	return tx.Commit()
}

var contactSorts = map[string]string{
	"":           "updated_at DESC",
	"updated_at": "updated_at DESC",
	"created_at": "created_at DESC",
	"name":       "name COLLATE NOCASE ASC",
}

// ListContacts returns a page of userID's contacts and the unpaged total.
func (db *DB) ListContacts(ctx context.Context, userID string, f ContactFilter) ([]models.Contact, int, error) {
	order, ok := contactSorts[f.Sort]
	if !ok {
		order = contactSorts[""]
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := `WHERE user_id = ?`
	args := []any{userID}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Tag != "" {
		where += ` AND EXISTS (SELECT 1 FROM json_each(contacts.tags) WHERE json_each.value = ?)`
		args = append(args, f.Tag)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM contacts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count contacts: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list contacts: %w", err)
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
