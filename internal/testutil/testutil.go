// Package testutil provides shared test helpers for databases, loggers and sessions.
package testutil

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/contactflow/internal/session"
	"github.com/starford/contactflow/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "contactflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Session returns a session for userID.
func Session(userID string) session.Session {
	return session.Session{UserID: userID}
}

// Event is one notification captured by a Recorder.
type Event struct {
	Name   string
	UserID string
	Data   any
}

// Recorder is an event sink that keeps everything it is told.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements crmservice.EventSink.
func (r *Recorder) Notify(event, userID string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, UserID: userID, Data: data})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Name)
	}
	return out
}
