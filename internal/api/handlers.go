package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/contactflow/internal/crmservice"
	"github.com/starford/contactflow/internal/models"
	"github.com/starford/contactflow/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	svc *crmservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *crmservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListContacts handles GET /api/contacts. With a non-empty q it runs a
// full-text search instead of a listing: only q and limit apply, results
// come in relevance order without a total, and status, tag, sort and offset
// are ignored.
//
//	@Summary		List or search contacts
//	@Tags			contacts
//	@Produce		json
//	@Param			q		query		string	false	"Full-text query; only limit applies with it"
//	@Param			status	query		string	false	"Filter by status"	Enums(Lead, Prospect, Customer, Lost)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, created_at, name)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	ContactListResponse
//	@Security		BearerAuth
//	@Router			/contacts [get]
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	if query := strings.TrimSpace(q.Get("q")); query != "" {
		results, err := h.svc.SearchContacts(r.Context(), sessionFrom(r), query, limit)
		if err != nil {
			writeError(w, "search contacts", err)
			return
		}
		if results == nil {
			results = []store.SearchResult{}
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results})
		return
	}

	items, total, err := h.svc.ListContacts(r.Context(), sessionFrom(r), store.ContactFilter{
		Status: models.ContactStatus(q.Get("status")),
		Tag:    q.Get("tag"),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, "list contacts", err)
		return
	}
	if items == nil {
		items = []models.Contact{}
	}
	writeJSON(w, http.StatusOK, ContactListResponse{Contacts: items, Total: total})
}

// CreateContact handles POST /api/contacts.
//
//	@Summary		Create a contact
//	@Tags			contacts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		crmservice.ContactInput	true	"Contact to create"
//	@Success		201		{object}	models.Contact
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts [post]
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req crmservice.ContactInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateContact(r.Context(), sessionFrom(r), req)
	if err != nil {
		writeError(w, "create contact", err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(c.Checksum))
	writeJSON(w, http.StatusCreated, c)
}

// GetContact handles GET /api/contacts/{id}.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetContact(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get contact", err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(c.Checksum))
	writeJSON(w, http.StatusOK, c)
}

// UpdateContact handles PUT /api/contacts/{id}.
//
//	@Summary		Replace a contact with optimistic concurrency
//	@Tags			contacts
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Contact id"
//	@Param			If-Match	header		string					false	"Checksum from a previous read"
//	@Param			body		body		crmservice.ContactInput	true	"Updated contact"
//	@Success		200			{object}	models.Contact
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id} [put]
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req crmservice.ContactInput
	if !decodeJSON(w, r, &req) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	c, err := h.svc.UpdateContact(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), req, ifMatch)
	if err != nil {
		writeError(w, "update contact", err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(c.Checksum))
	writeJSON(w, http.StatusOK, c)
}

// PatchContact handles PATCH /api/contacts/{id} (inline edits).
func (h *Handler) PatchContact(w http.ResponseWriter, r *http.Request) {
	var req crmservice.ContactPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.PatchContact(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "patch contact", err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(c.Checksum))
	writeJSON(w, http.StatusOK, c)
}

// DeleteContact handles DELETE /api/contacts/{id}.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteContact(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/stats.
//
//	@Summary		Dashboard counters for the current user
//	@Tags			dashboard
//	@Produce		json
//	@Success		200	{object}	store.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
