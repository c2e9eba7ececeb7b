package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/source"
	"github.com/starford/pagefeed/internal/testutil"
)

func testVault(t *testing.T) (string, *Vault) {
	t.Helper()
	dir, store := testutil.TestVault(t)
	return dir, New(store, WithLogger(testutil.DiscardLogger()))
}

func TestListEntriesMapsFrontmatter(t *testing.T) {
	dir, v := testVault(t)
	testutil.WriteFile(t, dir, "b.md", "---\ntitle: Second\nurl: https://example.com/b\nstatus: published\npublish_date: 2025-03-15\ntype: Video\n---\nbody\n")
	testutil.WriteFile(t, dir, "a.md", "# From Heading\n\ntext #reading\n")
	testutil.WriteFile(t, dir, "notes.txt", "ignored")
	testutil.WriteFile(t, dir, ".hidden/c.md", "ignored")

	entries, err := v.ListEntries(context.Background(), source.Query{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}

	a := entries[0]
	if a.ID != "a.md" || a.Title != "From Heading" || a.Published() || a.Category != "reading" {
		t.Errorf("a = %+v", a)
	}
	if a.LastEdited.IsZero() {
		t.Error("expected modification time")
	}
	b := entries[1]
	if b.Title != "Second" || b.CanonicalURL != "https://example.com/b" || !b.Published() || b.Category != "Video" {
		t.Errorf("b = %+v", b)
	}
	if b.PublishDate == nil || !b.PublishDate.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("publish date = %v", b.PublishDate)
	}
}

func TestListEntriesAppliesQuery(t *testing.T) {
	dir, v := testVault(t)
	testutil.WriteFile(t, dir, "new.md", "# New\n")
	testutil.WriteFile(t, dir, "old.md", "---\nstatus: published\npublish_date: 2025-03-01\n---\n")

	entries, err := v.ListEntries(context.Background(), source.Query{ExcludePublished: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "new.md" {
		t.Errorf("entries = %+v", entries)
	}

	day := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	entries, _ = v.ListEntries(context.Background(), source.Query{PublishDateOn: &day})
	if len(entries) != 1 || entries[0].ID != "new.md" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestFetchBlocks(t *testing.T) {
	dir, v := testVault(t)
	testutil.WriteFile(t, dir, "posts/p.md", "---\ntitle: P\n---\nHello **world**\n\n![](https://x/i.png)\n")

	nodes, err := v.FetchBlocks(context.Background(), "posts/p.md")
	if err != nil {
		t.Fatalf("FetchBlocks: %v", err)
	}
	if len(nodes) != 2 || nodes[0].Kind != models.KindParagraph || nodes[1].Kind != models.KindImage {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestFetchBlocksMissing(t *testing.T) {
	_, v := testVault(t)
	_, err := v.FetchBlocks(context.Background(), "nope.md")
	if !errors.Is(err, apperr.ErrNotFound) || !errors.Is(err, apperr.ErrSourceUnavailable) {
		t.Errorf("err = %v", err)
	}
	_, err = v.FetchBlocks(context.Background(), "../escape.md")
	if !errors.Is(err, apperr.ErrSourceUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestSetPublishedRewritesOnce(t *testing.T) {
	dir, v := testVault(t)
	testutil.WriteFile(t, dir, "p.md", "---\ntitle: P\nstatus: unpublished\n---\nBody\n")
	day := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)

	if err := v.SetPublished(context.Background(), "p.md", day); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	first, _ := os.ReadFile(filepath.Join(dir, "p.md"))
	if !strings.Contains(string(first), "status: published") || !strings.Contains(string(first), "publish_date: 2025-03-16") {
		t.Fatalf("content = %s", first)
	}
	if !strings.HasSuffix(string(first), "---\nBody\n") {
		t.Errorf("body changed: %q", first)
	}

	if err := v.SetPublished(context.Background(), "p.md", day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("second SetPublished: %v", err)
	}
	second, _ := os.ReadFile(filepath.Join(dir, "p.md"))
	if string(first) != string(second) {
		t.Errorf("second commit changed the page:\n%s", second)
	}

	entries, _ := v.ListEntries(context.Background(), source.Query{})
	if !entries[0].Published() || !entries[0].PublishDate.Equal(day) {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestSetPublishedMissing(t *testing.T) {
	_, v := testVault(t)
	err := v.SetPublished(context.Background(), "ghost.md", time.Now())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestSetPublishedTOMLPage(t *testing.T) {
	dir, v := testVault(t)
	testutil.WriteFile(t, dir, "toml.md", "+++\ntitle = \"Toml Page\"\n+++\n\nHello.\n")
	day := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)

	if err := v.SetPublished(context.Background(), "toml.md", day); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	content, _ := os.ReadFile(filepath.Join(dir, "toml.md"))
	s := string(content)
	if !strings.HasPrefix(s, "+++\n") || strings.Contains(s, "---") {
		t.Fatalf("frontmatter format changed:\n%s", s)
	}
	if !strings.Contains(s, `status = "published"`) || !strings.Contains(s, `publish_date = "2025-03-16"`) {
		t.Errorf("content = %s", s)
	}

	entries, err := v.ListEntries(context.Background(), source.Query{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Toml Page" || !entries[0].Published() {
		t.Fatalf("entries = %+v", entries)
	}
	nodes, err := v.FetchBlocks(context.Background(), "toml.md")
	if err != nil {
		t.Fatalf("FetchBlocks: %v", err)
	}
	if len(nodes) != 1 {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestSetPublishedJSONPageRefused(t *testing.T) {
	dir, v := testVault(t)
	const page = "{\n\"title\": \"Json Page\"\n}\nHello.\n"
	testutil.WriteFile(t, dir, "json.md", page)

	err := v.SetPublished(context.Background(), "json.md", time.Now())
	if !errors.Is(err, apperr.ErrSourceUnavailable) {
		t.Errorf("err = %v", err)
	}
	content, _ := os.ReadFile(filepath.Join(dir, "json.md"))
	if string(content) != page {
		t.Errorf("page rewritten:\n%s", content)
	}
}
