package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/contactflow/internal/session"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("alice")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "contact.created", UserID: "alice", Data: map[string]string{"id": "c1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: contact.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"c1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublish_PerUserDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")
	defer b.Unsubscribe(alice)
	defer b.Unsubscribe(bob)

	b.Publish(Event{Type: "contact.created", UserID: "alice", Data: map[string]string{}})
	b.Publish(Event{Type: "maintenance", Data: map[string]string{}})
	time.Sleep(50 * time.Millisecond)

	if got := drain(alice); len(got) != 2 {
		t.Errorf("alice got %d frames, want 2: %q", len(got), got)
	}
	got := drain(bob)
	if len(got) != 1 || !strings.Contains(got[0], "event: maintenance") {
		t.Errorf("bob got %q, want only the broadcast", got)
	}
}

func TestNotify_StatsThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	// First change should trigger stats.updated.
	b.Notify("contact.created", "alice", map[string]string{"id": "1"})
	// Second change immediately should NOT trigger another stats.updated.
	b.Notify("contact.updated", "alice", map[string]string{"id": "1"})

	time.Sleep(50 * time.Millisecond)
	statsCount, changeCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, StatsUpdated) {
			statsCount++
		} else {
			changeCount++
		}
	}

	if changeCount != 2 {
		t.Errorf("change events = %d, want 2", changeCount)
	}
	if statsCount != 1 {
		t.Errorf("stats events = %d, want 1 (throttled)", statsCount)
	}
}

func TestNotify_ThrottleIsPerUser(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()
	bob := b.Subscribe("bob")
	defer b.Unsubscribe(bob)

	b.Notify("contact.created", "alice", nil)
	b.Notify("contact.created", "bob", nil)
	time.Sleep(50 * time.Millisecond)

	stats := 0
	for _, s := range drain(bob) {
		if strings.Contains(s, StatsUpdated) {
			stats++
		}
	}
	if stats != 1 {
		t.Errorf("bob stats events = %d, want 1", stats)
	}
}

// flushRecorder guards the body so the test can read it while the handler writes.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(session.WithContext(context.Background(), session.Session{UserID: "alice"}))
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "contact.updated", UserID: "alice", Data: map[string]string{"id": "x"}})
	b.Publish(Event{Type: "contact.deleted", UserID: "bob", Data: map[string]string{"id": "y"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: contact.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, "contact.deleted") {
		t.Errorf("handler leaked another user's event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_RequiresSession(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", UserID: "alice", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("alice")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "contact.updated"})
	b.Notify("contact.updated", "alice", nil)
}
