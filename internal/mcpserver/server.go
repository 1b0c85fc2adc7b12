// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes contactflow CRM tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/contactflow/internal/apperr"
	"github.com/starford/contactflow/internal/crmservice"
	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/session"
)

// ContractURI is the resource URI of the webhook contract.
const ContractURI = "contactflow://webhook-contract"

// Server wraps the MCP server with contactflow tools. Every tool acts as the
// single user the server was created for.
type Server struct {
	mcp  *server.MCPServer
	svc  *crmservice.Service
	sess session.Session
}

// New creates a new MCP server with all contactflow tools registered.
func New(svc *crmservice.Service, userID string) *Server {
	s := &Server{svc: svc, sess: session.Session{UserID: userID}}

	s.mcp = server.NewMCPServer(
		"contactflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_contacts",
		mcp.WithDescription("Full-text search over contact names, emails, companies and notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchContacts)

	s.mcp.AddTool(mcp.NewTool("get_contact",
		mcp.WithDescription("Read one contact by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
	), s.getContact)

	s.mcp.AddTool(mcp.NewTool("create_contact",
		mcp.WithDescription("Create a contact. Fires the contact.created webhook if one is registered."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Full name")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Email address")),
		mcp.WithString("company", mcp.Description("Company name")),
		mcp.WithString("status", mcp.Description("Pipeline status"), mcp.Enum("Lead", "Prospect", "Customer", "Lost")),
		mcp.WithString("source", mcp.Description("Where the contact came from")),
		mcp.WithArray("tags", mcp.Description("Free-form tags"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
	), s.createContact)

	s.mcp.AddTool(mcp.NewTool("log_activity",
		mcp.WithDescription("Log an activity (call, email, meeting...) on a contact. "+
			"Fires the activity.created webhook if one is registered."),
		mcp.WithString("contact_id", mcp.Required(), mcp.Description("Contact id")),
		mcp.WithString("action", mcp.Required(), mcp.Description("What happened, e.g. Called")),
		mcp.WithString("description", mcp.Description("Details")),
		mcp.WithString("reminder_at", mcp.Description("Optional RFC 3339 reminder time")),
	), s.logActivity)

	s.mcp.AddTool(mcp.NewTool("list_activities",
		mcp.WithDescription("List the activity timeline of a contact, newest first."),
		mcp.WithString("contact_id", mcp.Required(), mcp.Description("Contact id")),
	), s.listActivities)

	s.mcp.AddTool(mcp.NewTool("list_webhooks",
		mcp.WithDescription("List the registered webhooks and the trigger each one listens to."),
	), s.listWebhooks)

	s.mcp.AddTool(mcp.NewTool("get_webhook_contract",
		mcp.WithDescription("Returns the outbound webhook contract: triggers, target URL and JSON envelope. "+
			"Call this before building an automation workflow that receives contactflow events."),
	), s.getWebhookContract)

	// Resource: webhook contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Webhook Contract",
			mcp.WithResourceDescription("What contactflow POSTs to automation workflows and when."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError("invalid input: " + verr.Error()), nil
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found"), nil
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
}

func (s *Server) searchContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchContacts(ctx, s.sess, query, req.GetInt("limit", 20))
	if err != nil {
		return errorResult(err)
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no contacts found"), nil
	}
	return jsonResult(results)
}

func (s *Server) getContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.GetContact(ctx, s.sess, id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(c)
}

func (s *Server) createContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.CreateContact(ctx, s.sess, crmservice.ContactInput{
		Name:    name,
		Email:   email,
		Company: req.GetString("company", ""),
		Status:  models.ContactStatus(req.GetString("status", "")),
		Source:  req.GetString("source", ""),
		Tags:    req.GetStringSlice("tags", nil),
		Notes:   req.GetString("notes", ""),
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(c)
}

func (s *Server) logActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contactID, err := req.RequireString("contact_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := crmservice.ActivityInput{
		Action:      action,
		Description: req.GetString("description", ""),
	}
	if raw := req.GetString("reminder_at", ""); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reminder_at: %v", err)), nil
		}
		in.ReminderAt = &at
	}
	a, err := s.svc.LogActivity(ctx, s.sess, contactID, in)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(a)
}

func (s *Server) listActivities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contactID, err := req.RequireString("contact_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.ListActivities(ctx, s.sess, contactID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(items)
}

func (s *Server) listWebhooks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListWebhooks(ctx, s.sess)
	if err != nil {
		return errorResult(err)
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no webhooks registered"), nil
	}
	return jsonResult(items)
}

func (s *Server) getWebhookContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WebhookContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     WebhookContract,
		},
	}, nil
}
