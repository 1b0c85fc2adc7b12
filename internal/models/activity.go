package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Common activity actions offered by clients. Action is free text; these are
// suggestions, not a closed set.
const (
	ActionCall     = "Call"
	ActionEmail    = "Email"
	ActionMeeting  = "Meeting"
	ActionNote     = "Note"
	ActionFollowUp = "Follow-up"
)

// ActivityLog records an interaction with a contact.
type ActivityLog struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ContactID   string     `json:"contact_id"`
	Action      string     `json:"action"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReminderAt  *time.Time `json:"reminder_at,omitempty"`
}

// Validate checks the fields a caller may set.
func (a *ActivityLog) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ContactID, validation.Required),
		validation.Field(&a.Action, validation.Required, validation.Length(1, 100)),
	)
}
