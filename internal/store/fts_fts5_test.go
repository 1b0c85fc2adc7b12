//go:build sqlite_fts5

package store

import (
	"context"
	"testing"

	"github.com/starford/contactflow/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM contacts_fts`).Scan(&count); err != nil {
		t.Fatalf("contacts_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := &models.Contact{UserID: "u1", Name: "Linus", Email: "linus@example.com", Notes: "Interested in powerful version control tooling."}
	if err := db.CreateContact(ctx, c); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	results, err := db.SearchContacts(ctx, "u1", "powerful", 10)
	if err != nil {
		t.Fatalf("SearchContacts: %v", err)
	}
	if len(results) != 1 || results[0].ID != c.ID {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_UpdateReplacesContent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := &models.Contact{UserID: "u1", Name: "Evo", Email: "evo@example.com", Notes: "original text"}
	_ = db.CreateContact(ctx, c)
	c.Notes = "replacement text"
	_ = db.UpdateContact(ctx, c)

	results, _ := db.SearchContacts(ctx, "u1", "original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.SearchContacts(ctx, "u1", "replacement", 10)
	if len(results) != 1 {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := &models.Contact{UserID: "u1", Name: "Gone", Email: "gone@example.com", Notes: "vanishing"}
	_ = db.CreateContact(ctx, c)
	_ = db.DeleteContact(ctx, "u1", c.ID)

	results, _ := db.SearchContacts(ctx, "u1", "vanishing", 10)
	if len(results) != 0 {
		t.Error("deleted contact still in FTS index")
	}
}

func TestFTS5_SearchPunctuatedTerms(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := &models.Contact{UserID: "u1", Name: "Ada O'Brien", Email: "ada@example.com", Company: "acme-corp"}
	if err := db.CreateContact(ctx, c); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	for _, q := range []string{"ada@example.com", "O'Brien", "acme-corp", `"ada`, "ad", "Ada acme"} {
		results, err := db.SearchContacts(ctx, "u1", q, 10)
		if err != nil {
			t.Errorf("SearchContacts(%q): %v", q, err)
			continue
		}
		if len(results) != 1 || results[0].ID != c.ID {
			t.Errorf("SearchContacts(%q) = %+v, want the contact", q, results)
		}
	}

	results, err := db.SearchContacts(ctx, "u1", "   ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("blank query = %+v, %v", results, err)
	}
}

func TestFTSQuery(t *testing.T) {
	cases := map[string]string{
		"ada@example.com": `"ada@example.com"*`,
		`say "hi"`:        `"say"* """hi"""*`,
		"  ":              "",
	}
	for in, want := range cases {
		if got := ftsQuery(in); got != want {
			t.Errorf("ftsQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
