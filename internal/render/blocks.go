package render

import (
	"strings"

	"github.com/starford/pagefeed/internal/models"
)

func defaultHandlers() map[models.Kind]Handler {
	return map[models.Kind]Handler{
		models.KindParagraph:        wrapText("p"),
		models.KindHeading1:         wrapText("h1"),
		models.KindHeading2:         wrapText("h2"),
		models.KindHeading3:         wrapText("h3"),
		models.KindQuote:            wrapText("blockquote"),
		models.KindBulletedListItem: listItem("ul"),
		models.KindNumberedListItem: listItem("ol"),
		models.KindCode:             renderCode,
		models.KindDivider:          renderDivider,
		models.KindFile:             renderFile,
		models.KindImage:            renderImage,
		models.KindBookmark:         renderBookmark,
	}
}

func richRuns(node models.ContentNode) []models.TextRun {
	if node.Text == nil {
		return nil
	}
	return node.Text.Runs
}

func wrapText(tag string) Handler {
	return func(node models.ContentNode) string {
		return "<" + tag + ">" + Runs(richRuns(node)) + "</" + tag + ">"
	}
}

func listItem(list string) Handler {
	return func(node models.ContentNode) string {
		return "<" + list + "><li>" + Runs(richRuns(node)) + "</li></" + list + ">"
	}
}

func renderCode(node models.ContentNode) string {
	if node.Code == nil {
		return "<pre><code></code></pre>"
	}
	var b strings.Builder
	b.WriteString("<pre><code")
	if lang := strings.TrimSpace(node.Code.Language); lang != "" {
		b.WriteString(` class="language-`)
		b.WriteString(attr(lang))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	// Runs inside a code block are shown literally; inline styling is dropped.
	b.WriteString(text(models.PlainText(node.Code.Runs)))
	b.WriteString("</code></pre>")
	return b.String()
}

func renderDivider(models.ContentNode) string {
	return "<hr/>"
}

func renderFile(node models.ContentNode) string {
	if node.File == nil {
		return "<p><a download>Download file</a></p>"
	}
	f := *node.File
	var b strings.Builder
	b.WriteString("<p><a")
	if u, _ := f.Resolve(); u != "" {
		b.WriteString(` href="`)
		b.WriteString(attr(u))
		b.WriteString(`"`)
	}
	b.WriteString(" download>")
	b.WriteString(text(f.DisplayName()))
	b.WriteString("</a></p>")
	return b.String()
}

func renderImage(node models.ContentNode) string {
	if node.Image == nil {
		return ""
	}
	img := *node.Image
	caption := Runs(img.Caption)

	var b strings.Builder
	if u, _ := img.Resolve(); u != "" {
		b.WriteString(`<img src="`)
		b.WriteString(attr(u))
		b.WriteString(`" alt="`)
		b.WriteString(attr(models.PlainText(img.Caption)))
		b.WriteString(`"/>`)
	}
	if caption != "" {
		b.WriteString("<p><small>")
		b.WriteString(caption)
		b.WriteString("</small></p>")
	}
	return b.String()
}

func renderBookmark(node models.ContentNode) string {
	if node.Bookmark == nil {
		return ""
	}
	bm := *node.Bookmark
	u := strings.TrimSpace(bm.URL)
	label := Runs(bm.Caption)
	if label == "" {
		label = text(u)
	}
	if u == "" {
		if label == "" {
			return ""
		}
		return "<p>" + label + "</p>"
	}
	return `<p><a href="` + attr(u) + `">` + label + "</a></p>"
}
