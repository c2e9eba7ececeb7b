package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\nurl: https://example.com/hello\nstatus: published\npublish_date: 2025-03-16\ntype: Article\ntags:\n  - go\n  - feeds\n---\n# Heading\nBody text #later.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	m := r.Meta
	if m.URL != "https://example.com/hello" || m.Status != "published" || m.Type != "Article" {
		t.Errorf("meta = %+v", m)
	}
	if m.PublishDate != "2025-03-16" {
		t.Errorf("publish_date = %q", m.PublishDate)
	}
	if strings.Join(r.Tags, ",") != "go,feeds,later" {
		t.Errorf("tags = %v", r.Tags)
	}
	if string(r.Body) != "# Heading\nBody text #later.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Meta.Status != "" {
		t.Errorf("expected empty meta, got %+v", r.Meta)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if string(r.Body) != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_TOMLFrontmatter(t *testing.T) {
	input := []byte("+++\ntitle = \"From TOML\"\nstatus = \"unpublished\"\n+++\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "From TOML" || r.Meta.Status != "unpublished" {
		t.Errorf("result = %+v", r)
	}
}

func TestSetFields_UpdatesInPlace(t *testing.T) {
	input := []byte("---\ntitle: Hello\nstatus: unpublished\ntags: [a, b]\n---\n# Heading\n\nBody.\n")
	out, err := SetFields(input,
		Field{Key: KeyStatus, Value: "published"},
		Field{Key: KeyPublishDate, Value: "2025-03-16"},
	)
	if err != nil {
		t.Fatalf("SetFields: %v", err)
	}

	r, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Meta.Status != "published" || r.Meta.PublishDate != "2025-03-16" {
		t.Errorf("meta = %+v", r.Meta)
	}
	if r.Meta.Title != "Hello" || strings.Join(r.Meta.Tags, ",") != "a,b" {
		t.Errorf("other keys lost: %+v", r.Meta)
	}
	if string(r.Body) != "# Heading\n\nBody.\n" {
		t.Errorf("body = %q", r.Body)
	}

	s := string(out)
	if strings.Index(s, "title:") > strings.Index(s, "status:") {
		t.Errorf("key order changed:\n%s", s)
	}
}

func TestSetFields_AddsFrontmatter(t *testing.T) {
	out, err := SetFields([]byte("Plain body\n"), Field{Key: KeyStatus, Value: "published"})
	if err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	if !strings.HasPrefix(string(out), "---\nstatus: published\n---\nPlain body\n") {
		t.Errorf("out = %q", out)
	}
}

func TestSetFields_Idempotent(t *testing.T) {
	input := []byte("---\nstatus: unpublished\n---\nx\n")
	once, err := SetFields(input, Field{Key: KeyStatus, Value: "published"})
	if err != nil {
		t.Fatal(err)
	}
	twice, err := SetFields(once, Field{Key: KeyStatus, Value: "published"})
	if err != nil {
		t.Fatal(err)
	}
	if string(once) != string(twice) {
		t.Errorf("second rewrite changed content:\n%q\n%q", once, twice)
	}
}

func TestSetFields_RejectsNonMapping(t *testing.T) {
	if _, err := SetFields([]byte("---\n- a\n- b\n---\nbody\n"), Field{Key: "status", Value: "x"}); err == nil {
		t.Error("expected error for list frontmatter")
	}
}

func TestSplitFrontmatter(t *testing.T) {
	block, body, ok := splitFrontmatter([]byte("---\na: 1\n---\nrest\n"), yamlDelim)
	if !ok || string(block) != "\na: 1" || string(body) != "rest\n" {
		t.Errorf("block=%q body=%q ok=%v", block, body, ok)
	}
	_, body, ok = splitFrontmatter([]byte("---\nunterminated\n"), yamlDelim)
	if ok || string(body) != "---\nunterminated\n" {
		t.Errorf("unterminated: body=%q ok=%v", body, ok)
	}
}

func TestSetFields_TOMLKeepsFormat(t *testing.T) {
	input := []byte("+++\ntitle = \"Toml Page\"\nstatus = \"unpublished\"\n\n[extra]\nstatus = \"nested\"\n+++\n\nHello.\n")
	out, err := SetFields(input,
		Field{Key: KeyStatus, Value: "published"},
		Field{Key: KeyPublishDate, Value: "2025-03-16"},
	)
	if err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	want := "+++\ntitle = \"Toml Page\"\nstatus = \"published\"\n\npublish_date = \"2025-03-16\"\n[extra]\nstatus = \"nested\"\n+++\n\nHello.\n"
	if string(out) != want {
		t.Errorf("output =\n%s\nwant\n%s", out, want)
	}

	r, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse after rewrite: %v", err)
	}
	if r.Title != "Toml Page" || r.Meta.Status != "published" || r.Meta.PublishDate != "2025-03-16" {
		t.Errorf("meta after rewrite = %+v", r.Meta)
	}
	if strings.TrimSpace(string(r.Body)) != "Hello." {
		t.Errorf("body after rewrite = %q", r.Body)
	}
}

func TestSetFields_RejectsJSON(t *testing.T) {
	input := []byte("{\n\"title\": \"Json Page\"\n}\nbody\n")
	_, err := SetFields(input, Field{Key: KeyStatus, Value: "published"})
	if !errors.Is(err, ErrUnsupportedFrontmatter) {
		t.Errorf("err = %v, want ErrUnsupportedFrontmatter", err)
	}
}
