package vault

import (
	"bytes"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/pagefeed/internal/models"
)

// downloadable lists link targets that become file nodes when a paragraph
// holds nothing but the link.
var downloadable = map[string]bool{
	".pdf": true, ".zip": true, ".epub": true, ".csv": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".mp3": true, ".mp4": true,
	".gz": true, ".tar": true,
}

// Converter turns Markdown into content nodes.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter creates a Converter with the GitHub flavoured extensions.
func NewConverter() *Converter {
	return &Converter{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Convert parses src and returns its top-level blocks in document order.
// List items and their nested lists are emitted one node per item.
func (c *Converter) Convert(src []byte) []models.ContentNode {
	doc := c.md.Parser().Parse(text.NewReader(src))
	var out []models.ContentNode
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		out = appendBlock(out, n, src)
	}
	return out
}

func appendBlock(out []models.ContentNode, n ast.Node, src []byte) []models.ContentNode {
	switch n := n.(type) {
	case *ast.Heading:
		kind := models.KindHeading3
		switch n.Level {
		case 1:
			kind = models.KindHeading1
		case 2:
			kind = models.KindHeading2
		}
		return append(out, models.TextNode(kind, inlineRuns(n, src)...))

	case *ast.Paragraph, *ast.TextBlock:
		return append(out, paragraph(n, src))

	case *ast.Blockquote:
		var runs []models.TextRun
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if len(runs) > 0 {
				runs = append(runs, models.TextRun{PlainText: " "})
			}
			runs = append(runs, inlineRuns(c, src)...)
		}
		return append(out, models.TextNode(models.KindQuote, mergeRuns(runs)...))

	case *ast.FencedCodeBlock:
		return append(out, models.ContentNode{
			Kind: models.KindCode,
			Code: &models.Code{Language: string(n.Language(src)), Runs: codeLines(n, src)},
		})

	case *ast.CodeBlock:
		return append(out, models.ContentNode{
			Kind: models.KindCode,
			Code: &models.Code{Runs: codeLines(n, src)},
		})

	case *ast.List:
		kind := models.KindBulletedListItem
		if n.IsOrdered() {
			kind = models.KindNumberedListItem
		}
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			var runs []models.TextRun
			var nested []ast.Node
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				switch c.(type) {
				case *ast.Paragraph, *ast.TextBlock:
					runs = append(runs, inlineRuns(c, src)...)
				default:
					nested = append(nested, c)
				}
			}
			out = append(out, models.TextNode(kind, mergeRuns(runs)...))
			for _, c := range nested {
				out = appendBlock(out, c, src)
			}
		}
		return out

	case *ast.ThematicBreak:
		return append(out, models.ContentNode{Kind: models.KindDivider})

	case *ast.HTMLBlock:
		return append(out, models.ContentNode{Kind: "html"})
	}
	return append(out, models.ContentNode{Kind: models.Kind(strings.ToLower(n.Kind().String()))})
}

// paragraph recognizes image-only and download-link-only paragraphs.
func paragraph(n ast.Node, src []byte) models.ContentNode {
	if n.ChildCount() == 1 {
		switch c := n.FirstChild().(type) {
		case *ast.Image:
			return models.ContentNode{
				Kind: models.KindImage,
				Image: &models.Image{
					Asset:   external(string(c.Destination)),
					Caption: inlineRuns(c, src),
				},
			}
		case *ast.Link:
			dest := string(c.Destination)
			if downloadable[strings.ToLower(path.Ext(stripQuery(dest)))] {
				return models.ContentNode{
					Kind: models.KindFile,
					File: &models.File{
						Asset: external(dest),
						Name:  models.PlainText(inlineRuns(c, src)),
					},
				}
			}
		}
	}
	return models.TextNode(models.KindParagraph, inlineRuns(n, src)...)
}

func external(u string) models.Asset {
	return models.Asset{External: &models.ExternalSource{URL: u}}
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

func codeLines(n ast.Node, src []byte) []models.TextRun {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	code := strings.TrimRight(b.String(), "\n")
	if code == "" {
		return nil
	}
	return []models.TextRun{{PlainText: code}}
}

type style struct {
	bold, italic, strike, code bool
	link                       *string
}

func (s style) run(t string) models.TextRun {
	return models.TextRun{
		PlainText:     t,
		Bold:          s.bold,
		Italic:        s.italic,
		Strikethrough: s.strike,
		Code:          s.code,
		Link:          s.link,
	}
}

func inlineRuns(parent ast.Node, src []byte) []models.TextRun {
	var runs []models.TextRun
	collect(parent, src, style{}, &runs)
	return mergeRuns(runs)
}

func collect(parent ast.Node, src []byte, st style, out *[]models.TextRun) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			s := n.Segment.Value(src)
			if !n.IsRaw() {
				s = util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(s)))
			}
			t := string(s)
			switch {
			case n.HardLineBreak():
				t += "\n"
			case n.SoftLineBreak():
				t += " "
			}
			*out = append(*out, st.run(t))
		case *ast.String:
			*out = append(*out, st.run(string(n.Value)))
		case *ast.CodeSpan:
			inner := st
			inner.code = true
			*out = append(*out, inner.run(string(n.Text(src))))
		case *ast.Emphasis:
			inner := st
			if n.Level >= 2 {
				inner.bold = true
			} else {
				inner.italic = true
			}
			collect(n, src, inner, out)
		case *east.Strikethrough:
			inner := st
			inner.strike = true
			collect(n, src, inner, out)
		case *ast.Link:
			inner := st
			inner.link = models.LinkTo(string(n.Destination))
			collect(n, src, inner, out)
		case *ast.AutoLink:
			inner := st
			u := string(n.URL(src))
			if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(u, "mailto:") {
				u = "mailto:" + u
			}
			inner.link = models.LinkTo(u)
			*out = append(*out, inner.run(string(n.Label(src))))
		case *ast.RawHTML:
			// dropped
		default:
			collect(n, src, st, out)
		}
	}
}

// mergeRuns joins neighbours with identical styling.
func mergeRuns(runs []models.TextRun) []models.TextRun {
	var out []models.TextRun
	for _, r := range runs {
		if r.PlainText == "" {
			continue
		}
		if n := len(out); n > 0 && sameStyle(out[n-1], r) {
			out[n-1].PlainText += r.PlainText
			continue
		}
		out = append(out, r)
	}
	return out
}

func sameStyle(a, b models.TextRun) bool {
	if a.Bold != b.Bold || a.Italic != b.Italic || a.Strikethrough != b.Strikethrough || a.Code != b.Code {
		return false
	}
	switch {
	case a.Link == nil && b.Link == nil:
		return true
	case a.Link == nil || b.Link == nil:
		return false
	}
	return *a.Link == *b.Link
}
