package notion

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/starford/pagefeed/internal/models"
)

func toRuns(rt []richText) []models.TextRun {
	if len(rt) == 0 {
		return nil
	}
	runs := make([]models.TextRun, 0, len(rt))
	for _, r := range rt {
		run := models.TextRun{
			PlainText:     r.PlainText,
			Bold:          r.Annotations.Bold,
			Italic:        r.Annotations.Italic,
			Strikethrough: r.Annotations.Strikethrough,
			Code:          r.Annotations.Code,
		}
		switch {
		case r.Text != nil && r.Text.Link != nil:
			run.Link = models.LinkTo(r.Text.Link.URL)
		case r.Href != nil:
			run.Link = models.LinkTo(*r.Href)
		}
		runs = append(runs, run)
	}
	return runs
}

var textKinds = map[string]models.Kind{
	"paragraph":          models.KindParagraph,
	"heading_1":          models.KindHeading1,
	"heading_2":          models.KindHeading2,
	"heading_3":          models.KindHeading3,
	"quote":              models.KindQuote,
	"bulleted_list_item": models.KindBulletedListItem,
	"numbered_list_item": models.KindNumberedListItem,
}

// toNode converts a block. A payload that does not decode still yields a
// node of the right kind with whatever decoded, so rendering degrades
// instead of failing.
func toNode(b block) models.ContentNode {
	node := models.ContentNode{ID: b.ID, Kind: models.Kind(b.Type)}

	if kind, ok := textKinds[b.Type]; ok {
		var p textPayload
		_ = json.Unmarshal(b.payload, &p)
		node.Kind = kind
		node.Text = &models.RichText{Runs: toRuns(p.RichText)}
		return node
	}

	switch b.Type {
	case "code":
		var p textPayload
		_ = json.Unmarshal(b.payload, &p)
		node.Code = &models.Code{Language: p.Language, Runs: toRuns(p.RichText)}
	case "file", "pdf":
		var p filePayload
		_ = json.Unmarshal(b.payload, &p)
		node.Kind = models.KindFile
		node.File = &models.File{Asset: toAsset(p), Name: p.Name, Caption: toRuns(p.Caption)}
	case "image":
		var p filePayload
		_ = json.Unmarshal(b.payload, &p)
		node.Image = &models.Image{Asset: toAsset(p), Caption: toRuns(p.Caption)}
	case "bookmark", "embed", "link_preview":
		var p bookmarkPayload
		_ = json.Unmarshal(b.payload, &p)
		node.Kind = models.KindBookmark
		node.Bookmark = &models.Bookmark{URL: p.URL, Caption: toRuns(p.Caption)}
	}
	return node
}

func toAsset(p filePayload) models.Asset {
	var a models.Asset
	if p.External != nil {
		a.External = &models.ExternalSource{URL: p.External.URL}
	}
	if p.File != nil {
		a.Hosted = &models.HostedSource{URL: p.File.URL, ExpiresAt: p.File.ExpiryTime}
	}
	return a
}

// toEntry maps a database row onto an Entry using the configured columns.
func (c *Client) toEntry(p page) models.Entry {
	props := c.cfg.Properties
	e := models.Entry{
		ID:         p.ID,
		Status:     models.StatusUnpublished,
		LastEdited: p.LastEditedTime,
	}

	if prop, ok := p.Properties[props.Title]; ok {
		e.Title = strings.TrimSpace(models.PlainText(toRuns(prop.Title)))
	}
	if prop, ok := p.Properties[props.URL]; ok && prop.URL != nil {
		e.CanonicalURL = strings.TrimSpace(*prop.URL)
	}
	if prop, ok := p.Properties[props.Type]; ok && prop.Select != nil {
		e.Category = prop.Select.Name
	}
	if prop, ok := p.Properties[props.Status]; ok {
		if name := optionName(prop); name != "" && strings.EqualFold(name, c.cfg.PublishedValue) {
			e.Status = models.StatusPublished
		}
	}
	if prop, ok := p.Properties[props.PublishDate]; ok && prop.Date != nil {
		if d, ok := parseDate(prop.Date.Start); ok {
			e.PublishDate = &d
		}
	}
	return e
}

func optionName(p property) string {
	switch {
	case p.Status != nil:
		return p.Status.Name
	case p.Select != nil:
		return p.Select.Name
	}
	return ""
}

// parseDate reads the calendar date of a Notion date start, which is
// either YYYY-MM-DD or a full ISO 8601 timestamp.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(time.DateOnly) {
		return time.Time{}, false
	}
	d, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
