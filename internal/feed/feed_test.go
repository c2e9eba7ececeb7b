package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/storage"
)

var fixedNow = time.Date(2025, 3, 16, 8, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestAssembleLinkPrecedence(t *testing.T) {
	a := NewAssembler("https://www.notion.so/", clock)
	cases := []struct {
		name  string
		entry models.Entry
		want  string
	}{
		{"canonical", models.Entry{ID: "x", CanonicalURL: " https://blog.example/post "}, "https://blog.example/post"},
		{"uuid id", models.Entry{ID: "1c2d3e4f-0000-4000-8000-00000000abcd"}, "https://www.notion.so/1c2d3e4f00004000800000000000abcd"},
		{"path id", models.Entry{ID: "posts/hello world.md", CanonicalURL: "  "}, "https://www.notion.so/posts/hello%20world"},
	}
	for _, tc := range cases {
		if got := a.Assemble(tc.entry, "").Link; got != tc.want {
			t.Errorf("%s: link = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestAssembleTitleNeverEmpty(t *testing.T) {
	a := NewAssembler("", clock)
	for _, title := range []string{"", "   ", "\n"} {
		if got := a.Assemble(models.Entry{ID: "a", Title: title}, "").Title; got != DefaultTitle {
			t.Errorf("title %q -> %q", title, got)
		}
	}
	if got := a.Assemble(models.Entry{ID: "a", Title: " Hi "}, "").Title; got != "Hi" {
		t.Errorf("title = %q", got)
	}
}

func TestAssembleStampsNowAndKeepsBody(t *testing.T) {
	a := NewAssembler("", clock)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	item := a.Assemble(models.Entry{ID: "a", PublishDate: &old, Category: "Article"}, "<p>x</p>")
	if !item.PublishedAt.Equal(fixedNow) {
		t.Errorf("published_at = %v", item.PublishedAt)
	}
	if item.BodyMarkup != "<p>x</p>" || item.Category != "Article" {
		t.Errorf("item = %+v", item)
	}
}

func TestGUIDStable(t *testing.T) {
	if GUID("a") != GUID("a") {
		t.Error("GUID must be deterministic")
	}
	if GUID("a") == GUID("b") {
		t.Error("GUID must differ per entry")
	}
	if !strings.HasPrefix(GUID("a"), "urn:uuid:") {
		t.Errorf("GUID = %s", GUID("a"))
	}
}

func TestBuildPreservesOrderWithoutDedup(t *testing.T) {
	items := []models.FeedItem{{Title: "1", GUID: "g"}, {Title: "2", GUID: "g"}, {Title: "3"}}
	doc := Build(models.ChannelMeta{Title: "C"}, items)
	if len(doc.Items) != 3 {
		t.Fatalf("len = %d", len(doc.Items))
	}
	for i, want := range []string{"1", "2", "3"} {
		if doc.Items[i].Title != want {
			t.Errorf("item %d = %q", i, doc.Items[i].Title)
		}
	}
	items[0].Title = "mutated"
	if doc.Items[0].Title != "1" {
		t.Error("Build must not alias the input slice")
	}
}

func sampleDoc() models.FeedDocument {
	return Build(models.ChannelMeta{
		Title:       "Daily <Reading>",
		Link:        "https://example.github.io/notion-to-rss",
		Description: "Generated from Notion.",
		Language:    "en",
	}, []models.FeedItem{{
		Title:       "Cats & Dogs",
		Link:        "https://example.com/a?b=1&c=2",
		GUID:        GUID("a"),
		BodyMarkup:  `<p><strong>bold</strong> &amp; <a href="https://x">link</a></p>`,
		Category:    "Article",
		PublishedAt: fixedNow,
	}})
}

func TestEncodeRSSKeepsBodyAsMarkup(t *testing.T) {
	data, err := Encode(sampleDoc(), FormatRSS, fixedNow)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `<![CDATA[<p><strong>bold</strong> &amp; <a href="https://x">link</a></p>]]>`) {
		t.Errorf("body not emitted as raw markup:\n%s", out)
	}
	if strings.Contains(out, "&lt;strong&gt;") {
		t.Error("body was escaped")
	}
	for _, want := range []string{
		`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">`,
		"<title>Daily &lt;Reading&gt;</title>",
		"<title>Cats &amp; Dogs</title>",
		"<link>https://example.com/a?b=1&amp;c=2</link>",
		"<pubDate>Sun, 16 Mar 2025 08:30:00 +0000</pubDate>",
		"<category>Article</category>",
		`<guid isPermaLink="false">urn:uuid:`,
		"<content:encoded>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestEncodeRSSParsesBack(t *testing.T) {
	data, err := Encode(sampleDoc(), FormatRSS, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	var parsed struct {
		Channel struct {
			Items []struct {
				Title       string `xml:"title"`
				Description string `xml:"description"`
				PubDate     string `xml:"pubDate"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("output is not well-formed XML: %v", err)
	}
	it := parsed.Channel.Items[0]
	if it.Title != "Cats & Dogs" {
		t.Errorf("title = %q", it.Title)
	}
	if it.Description != sampleDoc().Items[0].BodyMarkup {
		t.Errorf("description = %q", it.Description)
	}
	if _, err := time.Parse(time.RFC1123Z, it.PubDate); err != nil {
		t.Errorf("pubDate not parseable: %v", err)
	}
}

func TestEncodeCDATATerminatorInBody(t *testing.T) {
	doc := Build(models.ChannelMeta{Title: "C"}, []models.FeedItem{{Title: "x", BodyMarkup: "<p>a ]]> b</p>"}})
	data, err := Encode(doc, FormatRSS, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	var parsed struct {
		Channel struct {
			Items []struct {
				Description string `xml:"description"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Channel.Items[0].Description != "<p>a ]]> b</p>" {
		t.Errorf("description = %q", parsed.Channel.Items[0].Description)
	}
}

func TestEncodeAtom(t *testing.T) {
	data, err := Encode(sampleDoc(), FormatAtom, fixedNow)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`<feed xmlns="http://www.w3.org/2005/Atom">`,
		`<content type="html"><![CDATA[<p><strong>bold</strong>`,
		"<published>2025-03-16T08:30:00Z</published>",
		`<category term="Article"></category>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if _, err := Encode(sampleDoc(), "json", fixedNow); err == nil {
		t.Error("expected error")
	}
}

func TestFileWriter(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w := NewFileWriter(store, "docs/rss.xml", FormatRSS, clock)
	if err := w.WriteFeed(context.Background(), sampleDoc()); err != nil {
		t.Fatalf("WriteFeed: %v", err)
	}
	data, err := store.Read("docs/rss.xml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(xml.Header)) {
		t.Errorf("missing XML header: %q", data[:40])
	}
}

func TestFileWriterRejectsEscapingPath(t *testing.T) {
	store, _ := storage.NewFS(t.TempDir())
	w := NewFileWriter(store, "../outside.xml", FormatRSS, clock)
	err := w.WriteFeed(context.Background(), sampleDoc())
	if !errors.Is(err, apperr.ErrFeedWrite) {
		t.Errorf("err = %v", err)
	}
}

func TestStreamWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf, FormatRSS, clock)
	if err := w.WriteFeed(context.Background(), sampleDoc()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<channel>") {
		t.Errorf("output = %s", buf.String())
	}
}
