package render

import (
	"html"
	"strings"

	"github.com/starford/pagefeed/internal/models"
)

// placeholderHref is used when a run is marked as a link but has no target.
const placeholderHref = "#"

// Runs renders text runs. Styling nests in a fixed order, outermost first:
// strong, em, del, code. A link wraps the styled text.
func Runs(runs []models.TextRun) string {
	var b strings.Builder
	for _, run := range runs {
		writeRun(&b, run)
	}
	return b.String()
}

func writeRun(b *strings.Builder, run models.TextRun) {
	if run.PlainText == "" {
		return
	}
	if run.Link != nil {
		href := strings.TrimSpace(*run.Link)
		if href == "" {
			href = placeholderHref
		}
		b.WriteString(`<a href="`)
		b.WriteString(attr(href))
		b.WriteString(`">`)
	}
	if run.Bold {
		b.WriteString("<strong>")
	}
	if run.Italic {
		b.WriteString("<em>")
	}
	if run.Strikethrough {
		b.WriteString("<del>")
	}
	if run.Code {
		b.WriteString("<code>")
	}
	b.WriteString(text(run.PlainText))
	if run.Code {
		b.WriteString("</code>")
	}
	if run.Strikethrough {
		b.WriteString("</del>")
	}
	if run.Italic {
		b.WriteString("</em>")
	}
	if run.Bold {
		b.WriteString("</strong>")
	}
	if run.Link != nil {
		b.WriteString("</a>")
	}
}

func text(s string) string {
	return html.EscapeString(s)
}

func attr(s string) string {
	return html.EscapeString(s)
}
