// Package models defines the domain types for contactflow.
package models

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ContactStatus is the pipeline stage of a contact. The zero value means unset.
type ContactStatus string

// Contact statuses.
const (
	StatusLead     ContactStatus = "Lead"
	StatusProspect ContactStatus = "Prospect"
	StatusCustomer ContactStatus = "Customer"
	StatusLost     ContactStatus = "Lost"
)

// ContactStatuses lists every non-empty status in pipeline order.
var ContactStatuses = []ContactStatus{StatusLead, StatusProspect, StatusCustomer, StatusLost}

// Valid reports whether s is unset or one of the known statuses.
func (s ContactStatus) Valid() bool {
	if s == "" {
		return true
	}
	for _, known := range ContactStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Contact is a person tracked in the CRM.
type Contact struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Company   string        `json:"company,omitempty"`
	Status    ContactStatus `json:"status,omitempty"`
	Source    string        `json:"source,omitempty"`
	Tags      []string      `json:"tags"`
	Notes     string        `json:"notes,omitempty"`
	Checksum  string        `json:"checksum,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Validate checks the fields a caller may set.
func (c *Contact) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Status, validation.By(func(v interface{}) error {
			if s, _ := v.(ContactStatus); !s.Valid() {
				return validation.NewError("validation_status_invalid", "must be one of Lead, Prospect, Customer, Lost")
			}
			return nil
		})),
		validation.Field(&c.Tags, validation.Each(validation.Required, validation.Length(1, 64))),
	)
}

// NormalizeTags trims, drops empty entries and de-duplicates tags,
// preserving first-seen order. It never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
