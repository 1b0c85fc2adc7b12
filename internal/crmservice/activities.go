package crmservice

import (
	"context"
	"strings"
	"time"

	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/session"
)

// ActivityInput carries the caller-editable activity fields.
type ActivityInput struct {
	Action      string     `json:"action"`
	Description string     `json:"description"`
	ReminderAt  *time.Time `json:"reminder_at"`
}

// LogActivity records an activity against one of the user's contacts and
// emits activity.created.
func (s *Service) LogActivity(ctx context.Context, sess session.Session, contactID string, in ActivityInput) (*models.ActivityLog, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	a := &models.ActivityLog{
		UserID:      sess.UserID,
		ContactID:   contactID,
		Action:      strings.TrimSpace(in.Action),
		Description: in.Description,
		ReminderAt:  in.ReminderAt,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.CreateActivity(ctx, a); err != nil {
		return nil, err
	}
	s.emit(EventActivityCreated, sess.UserID, a)
	return a, nil
}

// ListActivities returns a contact's activities, newest first.
func (s *Service) ListActivities(ctx context.Context, sess session.Session, contactID string) ([]models.ActivityLog, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	if _, err := s.db.GetContact(ctx, sess.UserID, contactID); err != nil {
		return nil, err
	}
	items, err := s.db.ListActivities(ctx, sess.UserID, contactID)
	return nonNilSlice(items), err
}

// UpdateActivity replaces action, description and reminder.
func (s *Service) UpdateActivity(ctx context.Context, sess session.Session, id string, in ActivityInput) (*models.ActivityLog, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	a, err := s.db.GetActivity(ctx, sess.UserID, id)
	if err != nil {
		return nil, err
	}
	a.Action = strings.TrimSpace(in.Action)
	a.Description = in.Description
	a.ReminderAt = in.ReminderAt
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.UpdateActivity(ctx, a); err != nil {
		return nil, err
	}
	s.emit(EventActivityUpdated, sess.UserID, a)
	return a, nil
}

// DeleteActivity removes one activity.
func (s *Service) DeleteActivity(ctx context.Context, sess session.Session, id string) error {
	if err := sess.Require(); err != nil {
		return err
	}
	if err := s.db.DeleteActivity(ctx, sess.UserID, id); err != nil {
		return err
	}
	s.emit(EventActivityDeleted, sess.UserID, map[string]string{"id": id})
	return nil
}

// UpcomingReminders lists activities whose reminder is still ahead.
func (s *Service) UpcomingReminders(ctx context.Context, sess session.Session, limit int) ([]models.ActivityLog, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	items, err := s.db.UpcomingReminders(ctx, sess.UserID, s.now(), limit)
	return nonNilSlice(items), err
}
