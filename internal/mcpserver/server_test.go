package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/contactflow/internal/crmservice"
	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.Recorder) {
	t.Helper()
	rec := &testutil.Recorder{}
	svc := crmservice.NewService(testutil.TestDB(t), testutil.Logger(), crmservice.WithSinks(rec))
	return New(svc, "agent"), rec
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handler functions by name.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_contacts":
		result, err = srv.searchContacts(ctx, req)
	case "get_contact":
		result, err = srv.getContact(ctx, req)
	case "create_contact":
		result, err = srv.createContact(ctx, req)
	case "log_activity":
		result, err = srv.logActivity(ctx, req)
	case "list_activities":
		result, err = srv.listActivities(ctx, req)
	case "list_webhooks":
		result, err = srv.listWebhooks(ctx, req)
	case "get_webhook_contract":
		result, err = srv.getWebhookContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func createContact(t *testing.T, srv *Server) models.Contact {
	t.Helper()
	r := callTool(t, srv, "create_contact", map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"tags":  []any{"vip"},
	})
	if r.IsError {
		t.Fatalf("create_contact: %s", resultText(r))
	}
	var c models.Contact
	if err := json.Unmarshal([]byte(resultText(r)), &c); err != nil {
		t.Fatalf("decode contact: %v", err)
	}
	return c
}

func TestCreateAndGetContact(t *testing.T) {
	srv, rec := testServer(t)
	c := createContact(t, srv)
	if c.UserID != "agent" {
		t.Errorf("user = %q, want agent", c.UserID)
	}
	if len(c.Tags) != 1 || c.Tags[0] != "vip" {
		t.Errorf("tags = %v", c.Tags)
	}
	if names := rec.Names(); len(names) != 1 || names[0] != crmservice.EventContactCreated {
		t.Errorf("events = %v", names)
	}

	r := callTool(t, srv, "get_contact", map[string]any{"id": c.ID})
	if !strings.Contains(resultText(r), "ada@example.com") {
		t.Errorf("get_contact = %q", resultText(r))
	}
}

func TestCreateContact_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_contact", map[string]any{"name": "Ada", "email": "not-an-email"})
	if !r.IsError {
		t.Error("expected error for invalid email")
	}
}

func TestGetContactMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_contact", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing contact")
	}
}

func TestLogAndListActivities(t *testing.T) {
	srv, rec := testServer(t)
	c := createContact(t, srv)

	r := callTool(t, srv, "log_activity", map[string]any{
		"contact_id":  c.ID,
		"action":      "Called",
		"reminder_at": "2030-01-01T10:00:00Z",
	})
	if r.IsError {
		t.Fatalf("log_activity: %s", resultText(r))
	}
	names := rec.Names()
	if names[len(names)-1] != crmservice.EventActivityCreated {
		t.Errorf("events = %v", names)
	}

	r = callTool(t, srv, "list_activities", map[string]any{"contact_id": c.ID})
	var items []models.ActivityLog
	_ = json.Unmarshal([]byte(resultText(r)), &items)
	if len(items) != 1 || items[0].Action != "Called" || items[0].ReminderAt == nil {
		t.Errorf("activities = %+v", items)
	}

	r = callTool(t, srv, "log_activity", map[string]any{"contact_id": c.ID, "action": "x", "reminder_at": "tomorrow"})
	if !r.IsError {
		t.Error("expected error for bad reminder_at")
	}
}

func TestSearchContacts(t *testing.T) {
	srv, _ := testServer(t)
	createContact(t, srv)

	r := callTool(t, srv, "search_contacts", map[string]any{"query": "Lovelace"})
	if !strings.Contains(resultText(r), "Ada Lovelace") {
		t.Errorf("search = %q", resultText(r))
	}
	r = callTool(t, srv, "search_contacts", map[string]any{"query": "zzzz"})
	if resultText(r) != "no contacts found" {
		t.Errorf("empty search = %q", resultText(r))
	}
}

func TestListWebhooksEmpty(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_webhooks", map[string]any{})
	if resultText(r) != "no webhooks registered" {
		t.Errorf("list_webhooks = %q", resultText(r))
	}
}

func TestWebhookContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_webhook_contract", nil))
	for _, want := range []string{"/api/n8n", "triggered_at", "activity.created"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != ContractURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
