package crmservice

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/contactflow/internal/apperr"
	"github.com/starford/contactflow/internal/checksum"
	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/session"
	"github.com/starford/contactflow/internal/store"
)

// ContactInput carries the caller-editable contact fields.
type ContactInput struct {
	Name    string               `json:"name"`
	Email   string               `json:"email"`
	Company string               `json:"company"`
	Status  models.ContactStatus `json:"status"`
	Source  string               `json:"source"`
	Tags    []string             `json:"tags"`
	Notes   string               `json:"notes"`
}

// ContactPatch updates only the fields that are non-nil.
type ContactPatch struct {
	Name    *string               `json:"name"`
	Email   *string               `json:"email"`
	Company *string               `json:"company"`
	Status  *models.ContactStatus `json:"status"`
	Source  *string               `json:"source"`
	Tags    *[]string             `json:"tags"`
	Notes   *string               `json:"notes"`
}

// Empty reports whether the patch changes nothing.
func (p ContactPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Company == nil && p.Status == nil &&
		p.Source == nil && p.Tags == nil && p.Notes == nil
}

func (in ContactInput) apply(c *models.Contact) {
	c.Name = strings.TrimSpace(in.Name)
	c.Email = strings.TrimSpace(in.Email)
	c.Company = strings.TrimSpace(in.Company)
	c.Status = in.Status
	c.Source = strings.TrimSpace(in.Source)
	c.Tags = models.NormalizeTags(in.Tags)
	c.Notes = in.Notes
}

func (p ContactPatch) apply(c *models.Contact) {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		c.Email = strings.TrimSpace(*p.Email)
	}
	if p.Company != nil {
		c.Company = strings.TrimSpace(*p.Company)
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Source != nil {
		c.Source = strings.TrimSpace(*p.Source)
	}
	if p.Tags != nil {
		c.Tags = models.NormalizeTags(*p.Tags)
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
}

func withChecksum(c *models.Contact) *models.Contact {
	c.Tags = nonNilSlice(c.Tags)
	c.Checksum = checksum.Contact(c)
	return c
}

// CreateContact validates and stores a new contact, then emits contact.created.
func (s *Service) CreateContact(ctx context.Context, sess session.Session, in ContactInput) (*models.Contact, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	c := &models.Contact{UserID: sess.UserID}
	in.apply(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.CreateContact(ctx, c); err != nil {
		return nil, err
	}
	withChecksum(c)
	s.emit(EventContactCreated, sess.UserID, c)
	return c, nil
}

// GetContact returns one of the user's contacts.
func (s *Service) GetContact(ctx context.Context, sess session.Session, id string) (*models.Contact, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	c, err := s.db.GetContact(ctx, sess.UserID, id)
	if err != nil {
		return nil, err
	}
	return withChecksum(c), nil
}

// ListContacts returns a filtered page of the user's contacts and the total.
func (s *Service) ListContacts(ctx context.Context, sess session.Session, f store.ContactFilter) ([]models.Contact, int, error) {
	if err := sess.Require(); err != nil {
		return nil, 0, err
	}
	if !f.Status.Valid() {
		return nil, 0, validation.Errors{"status": validation.NewError("validation_status_invalid", "unknown status")}
	}
	items, total, err := s.db.ListContacts(ctx, sess.UserID, f)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		withChecksum(&items[i])
	}
	return items, total, nil
}

// SearchContacts runs a full-text query over the user's contacts.
func (s *Service) SearchContacts(ctx context.Context, sess session.Session, query string, limit int) ([]store.SearchResult, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	return s.db.SearchContacts(ctx, sess.UserID, query, limit)
}

// UpdateContact replaces every editable field. A non-empty ifMatch must equal
// the current checksum or apperr.ErrConflict is returned.
func (s *Service) UpdateContact(ctx context.Context, sess session.Session, id string, in ContactInput, ifMatch string) (*models.Contact, error) {
	return s.mutateContact(ctx, sess, id, ifMatch, in.apply)
}

// PatchContact updates only the supplied fields (inline edits).
func (s *Service) PatchContact(ctx context.Context, sess session.Session, id string, p ContactPatch) (*models.Contact, error) {
	if p.Empty() {
		return nil, validation.Errors{"body": validation.NewError("validation_patch_empty", "no fields to update")}
	}
	return s.mutateContact(ctx, sess, id, "", p.apply)
}

func (s *Service) mutateContact(ctx context.Context, sess session.Session, id, ifMatch string, apply func(*models.Contact)) (*models.Contact, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	c, err := s.db.GetContact(ctx, sess.UserID, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Contact(c) {
		return nil, fmt.Errorf("contact %s: %w", id, apperr.ErrConflict)
	}
	apply(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.UpdateContact(ctx, c); err != nil {
		return nil, err
	}
	withChecksum(c)
	s.emit(EventContactUpdated, sess.UserID, c)
	return c, nil
}

// DeleteContact removes a contact and, through the store, its activities.
func (s *Service) DeleteContact(ctx context.Context, sess session.Session, id string) error {
	if err := sess.Require(); err != nil {
		return err
	}
	if err := s.db.DeleteContact(ctx, sess.UserID, id); err != nil {
		return err
	}
	s.emit(EventContactDeleted, sess.UserID, map[string]string{"id": id})
	return nil
}
