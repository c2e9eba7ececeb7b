package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/starford/pagefeed/internal/models"
)

// Format is an output serialization.
type Format string

const (
	FormatRSS  Format = "rss"
	FormatAtom Format = "atom"
)

// ContentType returns the media type for f.
func (f Format) ContentType() string {
	if f == FormatAtom {
		return "application/atom+xml; charset=utf-8"
	}
	return "application/rss+xml; charset=utf-8"
}

const generator = "pagefeed"

// Encode serializes doc. Item bodies are emitted as CDATA so readers get
// the markup itself; every other field is escaped as text.
func Encode(doc models.FeedDocument, format Format, generatedAt time.Time) ([]byte, error) {
	var v any
	switch format {
	case FormatRSS, "":
		v = toRSS(doc, generatedAt)
	case FormatAtom:
		v = toAtom(doc, generatedAt)
	default:
		return nil, fmt.Errorf("feed: unknown format %q", format)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("feed: encode %s: %w", format, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

type cdata struct {
	Value string `xml:",cdata"`
}

type rssDocument struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	ContentNS string     `xml:"xmlns:content,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	Generator     string    `xml:"generator"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate"`
	Category    string  `xml:"category,omitempty"`
	Description cdata   `xml:"description"`
	Content     cdata   `xml:"content:encoded"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

func toRSS(doc models.FeedDocument, generatedAt time.Time) rssDocument {
	ch := rssChannel{
		Title:         doc.Channel.Title,
		Link:          doc.Channel.Link,
		Description:   doc.Channel.Description,
		Language:      doc.Channel.Language,
		Generator:     generator,
		LastBuildDate: generatedAt.UTC().Format(time.RFC1123Z),
		Items:         make([]rssItem, 0, len(doc.Items)),
	}
	for _, it := range doc.Items {
		ch.Items = append(ch.Items, rssItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        rssGUID{IsPermaLink: "false", Value: it.GUID},
			PubDate:     pubTime(it, generatedAt).Format(time.RFC1123Z),
			Category:    it.Category,
			Description: cdata{Value: it.BodyMarkup},
			Content:     cdata{Value: it.BodyMarkup},
		})
	}
	return rssDocument{
		Version:   "2.0",
		ContentNS: "http://purl.org/rss/1.0/modules/content/",
		Channel:   ch,
	}
}

type atomFeed struct {
	XMLName xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Gen     string      `xml:"generator"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr,omitempty"`
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Link      atomLink      `xml:"link"`
	Updated   string        `xml:"updated"`
	Published string        `xml:"published"`
	Category  *atomCategory `xml:"category,omitempty"`
	Content   atomContent   `xml:"content"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",cdata"`
}

func toAtom(doc models.FeedDocument, generatedAt time.Time) atomFeed {
	link := strings.TrimSpace(doc.Channel.Link)
	f := atomFeed{
		ID:      link,
		Title:   doc.Channel.Title,
		Updated: generatedAt.UTC().Format(time.RFC3339),
		Links:   []atomLink{{Rel: "alternate", Href: link}},
		Gen:     generator,
		Entries: make([]atomEntry, 0, len(doc.Items)),
	}
	if f.ID == "" {
		f.ID = "urn:pagefeed:" + doc.Channel.Title
	}
	for _, it := range doc.Items {
		ts := pubTime(it, generatedAt).Format(time.RFC3339)
		e := atomEntry{
			ID:        it.GUID,
			Title:     it.Title,
			Link:      atomLink{Rel: "alternate", Href: it.Link},
			Updated:   ts,
			Published: ts,
			Content:   atomContent{Type: "html", Body: it.BodyMarkup},
		}
		if it.Category != "" {
			e.Category = &atomCategory{Term: it.Category}
		}
		f.Entries = append(f.Entries, e)
	}
	return f
}

func pubTime(it models.FeedItem, fallback time.Time) time.Time {
	if it.PublishedAt.IsZero() {
		return fallback.UTC()
	}
	return it.PublishedAt.UTC()
}
