// Package models defines the domain types for pagefeed.
package models

import (
	"path"
	"strings"
	"time"
)

// Kind is the discriminator of a ContentNode.
type Kind string

// Known block kinds. Anything else is carried verbatim and rendered as nothing.
const (
	KindParagraph        Kind = "paragraph"
	KindHeading1         Kind = "heading_1"
	KindHeading2         Kind = "heading_2"
	KindHeading3         Kind = "heading_3"
	KindFile             Kind = "file"
	KindImage            Kind = "image"
	KindQuote            Kind = "quote"
	KindCode             Kind = "code"
	KindDivider          Kind = "divider"
	KindBulletedListItem Kind = "bulleted_list_item"
	KindNumberedListItem Kind = "numbered_list_item"
	KindBookmark         Kind = "bookmark"
)

// TextRun is a span of text with uniform styling and an optional link.
// A non-nil Link with an empty target still marks the run as a link.
type TextRun struct {
	PlainText     string  `json:"plain_text"`
	Bold          bool    `json:"bold,omitempty"`
	Italic        bool    `json:"italic,omitempty"`
	Strikethrough bool    `json:"strikethrough,omitempty"`
	Code          bool    `json:"code,omitempty"`
	Link          *string `json:"link,omitempty"`
}

// LinkTo returns a pointer to target, for building linked runs.
func LinkTo(target string) *string {
	return &target
}

// PlainText concatenates the unstyled text of runs.
func PlainText(runs []TextRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.PlainText)
	}
	return b.String()
}

// RichText is the payload of text-bearing kinds (paragraph, headings, quote, list items).
type RichText struct {
	Runs []TextRun `json:"runs"`
}

// SourceKind tells where an asset is stored.
type SourceKind string

const (
	SourceExternal SourceKind = "external"
	SourceHosted   SourceKind = "hosted"
)

// ExternalSource points at a URL outside the content source.
type ExternalSource struct {
	URL string `json:"url"`
}

// HostedSource points at a file stored by the content source. Hosted URLs
// are usually signed and expire.
type HostedSource struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Asset holds exactly one of External or Hosted.
type Asset struct {
	External *ExternalSource `json:"external,omitempty"`
	Hosted   *HostedSource   `json:"hosted,omitempty"`
}

// Resolve returns the URL of whichever sub-variant carries one.
// It returns "" when neither does.
func (a Asset) Resolve() (string, SourceKind) {
	if a.External != nil && strings.TrimSpace(a.External.URL) != "" {
		return strings.TrimSpace(a.External.URL), SourceExternal
	}
	if a.Hosted != nil && strings.TrimSpace(a.Hosted.URL) != "" {
		return strings.TrimSpace(a.Hosted.URL), SourceHosted
	}
	return "", ""
}

// File is a downloadable attachment.
type File struct {
	Asset
	Name    string    `json:"name,omitempty"`
	Caption []TextRun `json:"caption,omitempty"`
}

// DisplayName picks the name shown for the download link.
func (f File) DisplayName() string {
	if n := strings.TrimSpace(f.Name); n != "" {
		return n
	}
	if c := strings.TrimSpace(PlainText(f.Caption)); c != "" {
		return c
	}
	if u, _ := f.Resolve(); u != "" {
		p := u
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		if base := path.Base(p); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return "Download file"
}

// Image is an embedded picture with an optional caption.
type Image struct {
	Asset
	Caption []TextRun `json:"caption,omitempty"`
}

// Code is a preformatted block.
type Code struct {
	Language string    `json:"language,omitempty"`
	Runs     []TextRun `json:"runs"`
}

// Bookmark is a standalone link preview.
type Bookmark struct {
	URL     string    `json:"url"`
	Caption []TextRun `json:"caption,omitempty"`
}

// ContentNode is one typed block of an entry body. Only the payload that
// belongs to Kind is populated; divider and unknown kinds carry none.
type ContentNode struct {
	ID       string    `json:"id,omitempty"`
	Kind     Kind      `json:"kind"`
	Text     *RichText `json:"text,omitempty"`
	File     *File     `json:"file,omitempty"`
	Image    *Image    `json:"image,omitempty"`
	Code     *Code     `json:"code,omitempty"`
	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// TextNode builds a text-bearing node.
func TextNode(kind Kind, runs ...TextRun) ContentNode {
	return ContentNode{Kind: kind, Text: &RichText{Runs: runs}}
}
