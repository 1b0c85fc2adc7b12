package models

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// EventTrigger names a domain event that can fire a webhook.
type EventTrigger string

// Supported triggers. The set is closed.
const (
	EventContactCreated  EventTrigger = "contact.created"
	EventContactUpdated  EventTrigger = "contact.updated"
	EventActivityCreated EventTrigger = "activity.created"
)

// EventTriggers lists every supported trigger.
var EventTriggers = []EventTrigger{EventContactCreated, EventContactUpdated, EventActivityCreated}

// Valid reports whether t is a supported trigger.
func (t EventTrigger) Valid() bool {
	for _, known := range EventTriggers {
		if t == known {
			return true
		}
	}
	return false
}

// Webhook is a user's subscription of one automation path to one trigger.
// URL holds a path relative to the automation routing prefix, not a full URL.
type Webhook struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	EventTrigger EventTrigger `json:"event_trigger"`
	URL          string       `json:"url"`
	Description  string       `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks the fields a caller may set. Paths must start with "/".
func (w *Webhook) Validate() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.EventTrigger, validation.Required, validation.By(func(v interface{}) error {
			if t, _ := v.(EventTrigger); !t.Valid() {
				return validation.NewError("validation_trigger_invalid", "must be one of contact.created, contact.updated, activity.created")
			}
			return nil
		})),
		validation.Field(&w.URL, validation.Required, validation.By(func(v interface{}) error {
			if s, _ := v.(string); !strings.HasPrefix(s, "/") {
				return validation.NewError("validation_path_invalid", "must start with /")
			}
			return nil
		})),
		validation.Field(&w.Description, validation.Length(0, 500)),
	)
}
