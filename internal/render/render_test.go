package render

import (
	"strings"
	"testing"

	"github.com/starford/pagefeed/internal/models"
)

func TestParagraphBoldAndPlain(t *testing.T) {
	r := NewRegistry()
	node := models.TextNode(models.KindParagraph,
		models.TextRun{PlainText: "bold text", Bold: true},
		models.TextRun{PlainText: " plain"},
	)
	got := r.Render(node)
	want := "<p><strong>bold text</strong> plain</p>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestStylingOrderIsFixed(t *testing.T) {
	run := models.TextRun{
		PlainText:     "x",
		Bold:          true,
		Italic:        true,
		Strikethrough: true,
		Code:          true,
		Link:          models.LinkTo("https://example.com"),
	}
	got := Runs([]models.TextRun{run, run})
	one := `<a href="https://example.com"><strong><em><del><code>x</code></del></em></strong></a>`
	if got != one+one {
		t.Errorf("Runs = %q", got)
	}
}

func TestLinkPlaceholderWhenTargetMissing(t *testing.T) {
	got := Runs([]models.TextRun{{PlainText: "here", Link: models.LinkTo("  ")}})
	if got != `<a href="#">here</a>` {
		t.Errorf("Runs = %q", got)
	}
}

func TestHeadings(t *testing.T) {
	r := NewRegistry()
	cases := []struct {
		kind models.Kind
		want string
	}{
		{models.KindHeading1, "<h1>T</h1>"},
		{models.KindHeading2, "<h2>T</h2>"},
		{models.KindHeading3, "<h3>T</h3>"},
		{models.KindQuote, "<blockquote>T</blockquote>"},
		{models.KindBulletedListItem, "<ul><li>T</li></ul>"},
		{models.KindNumberedListItem, "<ol><li>T</li></ol>"},
	}
	for _, tc := range cases {
		got := r.Render(models.TextNode(tc.kind, models.TextRun{PlainText: "T"}))
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.kind, got, tc.want)
		}
	}
}

// Rendered output must not contain any markup-significant character from
// user text outside the tags the renderer inserted itself.
func TestEscaping(t *testing.T) {
	r := NewRegistry()
	hostile := []string{
		`<script>alert(1)</script>`,
		`a & b`,
		`"quoted" 'single'`,
		`</p><p>`,
		`&amp; already`,
		`1 < 2 > 0`,
	}
	for _, s := range hostile {
		out := r.Render(models.TextNode(models.KindParagraph, models.TextRun{PlainText: s, Italic: true}))
		inner := strings.TrimSuffix(strings.TrimPrefix(out, "<p><em>"), "</em></p>")
		if strings.ContainsAny(inner, `<>"'`) {
			t.Errorf("unescaped markup in %q", out)
		}
		for i := 0; i < len(inner); i++ {
			if inner[i] != '&' {
				continue
			}
			rest := inner[i:]
			if !(strings.HasPrefix(rest, "&amp;") || strings.HasPrefix(rest, "&lt;") ||
				strings.HasPrefix(rest, "&gt;") || strings.HasPrefix(rest, "&#34;") ||
				strings.HasPrefix(rest, "&#39;")) {
				t.Errorf("bare ampersand in %q", out)
			}
		}
	}
}

func TestEscapingInAttributes(t *testing.T) {
	got := Runs([]models.TextRun{{PlainText: "x", Link: models.LinkTo(`https://e.com/?a=1&b="2"`)}})
	want := `<a href="https://e.com/?a=1&amp;b=&#34;2&#34;">x</a>`
	if got != want {
		t.Errorf("Runs = %q, want %q", got, want)
	}
}

func TestUnknownKindRendersEmpty(t *testing.T) {
	r := NewRegistry()
	for _, k := range []models.Kind{"synced_block", "table_of_contents", "", "paragraph "} {
		if got := r.Render(models.ContentNode{Kind: k}); got != "" {
			t.Errorf("kind %q rendered %q", k, got)
		}
	}
}

func TestNilPayloadDoesNotPanic(t *testing.T) {
	r := NewRegistry()
	for _, k := range r.Kinds() {
		_ = r.Render(models.ContentNode{Kind: k})
	}
}

func TestPanickingHandlerIsAbsorbed(t *testing.T) {
	r := NewRegistry()
	r.Register("explode", func(models.ContentNode) string { panic("bad payload") })
	nodes := []models.ContentNode{
		models.TextNode(models.KindParagraph, models.TextRun{PlainText: "before"}),
		{Kind: "explode"},
		models.TextNode(models.KindParagraph, models.TextRun{PlainText: "after"}),
	}
	got := r.Flatten(nodes)
	if got != "<p>before</p>\n<p>after</p>" {
		t.Errorf("Flatten = %q", got)
	}
}

func TestRegisterAddsKindWithoutTouchingOthers(t *testing.T) {
	r := NewRegistry()
	r.Register("callout", func(n models.ContentNode) string {
		return "<aside>" + Runs(n.Text.Runs) + "</aside>"
	})
	callout := models.TextNode("callout", models.TextRun{PlainText: "note"})
	if got := r.Render(callout); got != "<aside>note</aside>" {
		t.Errorf("callout = %q", got)
	}
	if got := r.Render(models.TextNode(models.KindParagraph, models.TextRun{PlainText: "p"})); got != "<p>p</p>" {
		t.Errorf("paragraph changed: %q", got)
	}
}

func TestEmptyRegistryRendersNothing(t *testing.T) {
	r := NewEmptyRegistry()
	if got := r.Render(models.TextNode(models.KindParagraph, models.TextRun{PlainText: "p"})); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestFlattenPreservesOrder(t *testing.T) {
	r := NewRegistry()
	nodes := []models.ContentNode{
		models.TextNode(models.KindHeading1, models.TextRun{PlainText: "A"}),
		models.TextNode(models.KindParagraph, models.TextRun{PlainText: "B"}),
		{Kind: models.KindDivider},
		models.TextNode(models.KindParagraph, models.TextRun{PlainText: "C"}),
	}
	got := r.Flatten(nodes)
	a := strings.Index(got, "A")
	b := strings.Index(got, "B")
	c := strings.Index(got, "C")
	if !(a >= 0 && a < b && b < c) {
		t.Errorf("order broken: %q", got)
	}
	if got != "<h1>A</h1>\n<p>B</p>\n<hr/>\n<p>C</p>" {
		t.Errorf("Flatten = %q", got)
	}
}

func TestFlattenSkipsUnknownWithoutBlankLines(t *testing.T) {
	r := NewRegistry()
	got := r.Flatten([]models.ContentNode{
		{Kind: "column_list"},
		models.TextNode(models.KindParagraph, models.TextRun{PlainText: "only"}),
		{Kind: "unsupported"},
	})
	if got != "<p>only</p>" {
		t.Errorf("Flatten = %q", got)
	}
	if r.Flatten(nil) != "" {
		t.Error("empty input should flatten to empty string")
	}
}
