package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/contactflow/internal/models"
)

type fakeFinder struct {
	mu      sync.Mutex
	hooks   map[models.EventTrigger][]models.Webhook
	err     error
	calls   int
	lastUID string
}

func (f *fakeFinder) FindWebhooks(_ context.Context, userID string, trigger models.EventTrigger) ([]models.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastUID = userID
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Webhook
	for _, w := range f.hooks[trigger] {
		if userID == "" || w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

type capturedRequest struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Body        []byte
}

// recordingServer answers every request with the status chosen by statusFor.
func recordingServer(t *testing.T, statusFor func(path string) int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			RawQuery:    r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
		})
		mu.Unlock()
		status := http.StatusOK
		if statusFor != nil {
			status = statusFor(r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedRequest, len(reqs))
		copy(out, reqs)
		return out
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestDispatcher(finder Finder, baseURL string, opts ...Option) *Dispatcher {
	return NewDispatcher(finder, discardLogger(), Config{BaseURL: baseURL, Timeout: 2 * time.Second}, opts...)
}

func TestDispatch_ActivityCreatedScenario(t *testing.T) {
	srv, requests := recordingServer(t, nil)
	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{
		models.EventActivityCreated: {{ID: "w1", UserID: "u1", EventTrigger: models.EventActivityCreated, URL: "webhook/abc"}},
	}}
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	d := newTestDispatcher(finder, srv.URL, WithClock(func() time.Time { return fixed }))

	rep := d.Dispatch(context.Background(), models.EventActivityCreated, "u1",
		map[string]string{"id": "1", "action": "Called"})

	assert.Equal(t, 1, rep.Delivered)
	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/api/n8n/webhook/abc", reqs[0].Path)
	assert.Equal(t, "application/json", reqs[0].ContentType)
	assert.JSONEq(t,
		`{"event":"activity.created","data":{"id":"1","action":"Called"},"triggered_at":"2026-03-04T05:06:07.890Z"}`,
		string(reqs[0].Body))
}

func TestDispatch_TriggeredAtIsSendTime(t *testing.T) {
	srv, requests := recordingServer(t, nil)
	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{
		models.EventContactCreated: {{ID: "w1", UserID: "u1", URL: "/hook"}},
	}}
	d := newTestDispatcher(finder, srv.URL)

	before := time.Now().UTC().Truncate(time.Millisecond)
	d.Dispatch(context.Background(), models.EventContactCreated, "u1", nil)
	after := time.Now().UTC()

	reqs := requests()
	require.Len(t, reqs, 1)
	var env struct {
		TriggeredAt string `json:"triggered_at"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &env))
	ts, err := time.Parse(time.RFC3339Nano, env.TriggeredAt)
	require.NoError(t, err)
	assert.False(t, ts.Before(before))
	assert.False(t, ts.After(after))
}

func TestDispatch_NoWebhooksNoRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{
		models.EventContactCreated: {{ID: "w1", UserID: "u1", URL: "/a"}},
	}}
	d := newTestDispatcher(finder, srv.URL)

	rep := d.Dispatch(context.Background(), models.EventContactUpdated, "u1", map[string]any{"id": "c1"})
	assert.Zero(t, rep.Matched)
	assert.Zero(t, hits.Load())

	rep = d.Dispatch(context.Background(), models.EventTrigger("deal.closed"), "u1", nil)
	assert.Zero(t, rep.Matched)
	assert.Zero(t, hits.Load())
}

func TestDispatch_MissingUserIsNoop(t *testing.T) {
	finder := &fakeFinder{}
	d := newTestDispatcher(finder, "http://127.0.0.1:1")

	rep := d.Dispatch(context.Background(), models.EventContactCreated, "", map[string]any{})
	assert.Zero(t, rep.Matched)
	assert.Zero(t, finder.calls, "lookup must not run without a user")
}

func TestDispatch_LookupErrorContained(t *testing.T) {
	finder := &fakeFinder{err: errors.New("db down")}
	d := newTestDispatcher(finder, "http://127.0.0.1:1")

	rep := d.Dispatch(context.Background(), models.EventContactCreated, "u1", nil)
	assert.Zero(t, rep.Matched)
	assert.Equal(t, 1, finder.calls)
}

func TestDispatch_EmptyPathSkippedOthersDelivered(t *testing.T) {
	srv, requests := recordingServer(t, nil)
	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{
		models.EventContactCreated: {
			{ID: "empty", UserID: "u1", URL: ""},
			{ID: "blank", UserID: "u1", URL: "   "},
			{ID: "ok", UserID: "u1", URL: "/good"},
		},
	}}
	d := newTestDispatcher(finder, srv.URL)

	rep := d.Dispatch(context.Background(), models.EventContactCreated, "u1", nil)
	assert.Equal(t, 3, rep.Matched)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 1, rep.Delivered)
	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/n8n/good", reqs[0].Path)
}

func TestDispatch_FullURLReducedToPath(t *testing.T) {
	srv, requests := recordingServer(t, nil)
	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{
		models.EventContactUpdated: {{ID: "w1", UserID: "u1", URL: "https://automation.example.com/webhook/xyz?src=crm"}},
	}}
	d := newTestDispatcher(finder, srv.URL)

	rep := d.Dispatch(context.Background(), models.EventContactUpdated, "u1", nil)
	require.Equal(t, 1, rep.Delivered)
	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/n8n/webhook/xyz", reqs[0].Path)
	assert.Equal(t, "src=crm", reqs[0].RawQuery)
	assert.Equal(t, srv.URL+"/api/n8n/webhook/xyz?src=crm", rep.Outcomes[0].Target)
}

func TestDispatch_OneFailureDoesNotShortCircuit(t *testing.T) {
	srv, requests := recordingServer(t, func(path string) int {
		if path == "/api/n8n/broken" {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	})
	hooks := []models.Webhook{
		{ID: "a", UserID: "u1", URL: "/broken"},
		{ID: "b", UserID: "u1", URL: "/one"},
		{ID: "c", UserID: "u1", URL: "/two"},
		{ID: "d", UserID: "u1", URL: "/three"},
	}
	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{models.EventContactCreated: hooks}}
	d := NewDispatcher(finder, discardLogger(), Config{BaseURL: srv.URL, MaxConcurrency: 1})

	rep := d.Dispatch(context.Background(), models.EventContactCreated, "u1", map[string]string{"id": "c1"})

	assert.Equal(t, 4, rep.Matched)
	assert.Equal(t, 3, rep.Delivered)
	assert.Equal(t, 1, rep.Failed)
	var paths []string
	for _, r := range requests() {
		paths = append(paths, r.Path)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"/api/n8n/broken", "/api/n8n/one", "/api/n8n/three", "/api/n8n/two"}, paths)
	assert.Equal(t, http.StatusInternalServerError, rep.Outcomes[0].StatusCode)
}

func TestDispatch_NetworkErrorContained(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{
		models.EventContactCreated: {{ID: "w1", UserID: "u1", URL: "/x"}},
	}}
	d := newTestDispatcher(finder, deadURL)
	rep := d.Dispatch(context.Background(), models.EventContactCreated, "u1", nil)
	assert.Equal(t, 1, rep.Failed)
	assert.Zero(t, rep.Outcomes[0].StatusCode)
	assert.NotEmpty(t, rep.Outcomes[0].Error)
}

func TestDispatch_ScopesLookupToUser(t *testing.T) {
	srv, requests := recordingServer(t, nil)
	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{
		models.EventContactCreated: {
			{ID: "mine", UserID: "u1", URL: "/mine"},
			{ID: "theirs", UserID: "u2", URL: "/theirs"},
		},
	}}

	d := newTestDispatcher(finder, srv.URL)
	d.Dispatch(context.Background(), models.EventContactCreated, "u1", nil)
	assert.Equal(t, "u1", finder.lastUID)
	require.Len(t, requests(), 1)

	all := NewDispatcher(finder, discardLogger(), Config{BaseURL: srv.URL, ScopeAll: true})
	all.Dispatch(context.Background(), models.EventContactCreated, "u1", nil)
	assert.Equal(t, "", finder.lastUID)
	assert.Len(t, requests(), 3)
}

func TestDispatch_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer srv.Close()

	var hooks []models.Webhook
	for _, p := range []string{"/1", "/2", "/3", "/4", "/5", "/6"} {
		hooks = append(hooks, models.Webhook{ID: p, UserID: "u1", URL: p})
	}
	finder := &fakeFinder{hooks: map[models.EventTrigger][]models.Webhook{models.EventContactCreated: hooks}}
	d := NewDispatcher(finder, discardLogger(), Config{BaseURL: srv.URL, MaxConcurrency: 2})

	rep := d.Dispatch(context.Background(), models.EventContactCreated, "u1", nil)
	assert.Equal(t, 6, rep.Delivered)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestTarget_NormalizesPrefix(t *testing.T) {
	d := NewDispatcher(&fakeFinder{}, discardLogger(), Config{BaseURL: "http://proxy.local/", RoutingPrefix: "hooks/"})
	assert.Equal(t, "http://proxy.local/hooks/webhook/abc", d.Target("/webhook/abc"))

	def := NewDispatcher(&fakeFinder{}, discardLogger(), Config{})
	assert.Equal(t, "/api/n8n/x", def.Target("/x"))
}
