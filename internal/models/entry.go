package models

import "time"

// Status is the publish state of an entry in the content source.
type Status string

const (
	StatusUnpublished Status = "unpublished"
	StatusPublished   Status = "published"
)

// Entry is one publishable page. Its body is fetched lazily by ID.
type Entry struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	CanonicalURL string     `json:"canonical_url,omitempty"`
	Status       Status     `json:"status"`
	// PublishDate is a calendar date held at midnight UTC.
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Category    string     `json:"category,omitempty"`
	LastEdited  time.Time  `json:"last_edited,omitempty"`
}

// Published reports whether the entry has already been delivered.
func (e Entry) Published() bool {
	return e.Status == StatusPublished
}

// FeedItem is the per-run projection of an entry into the feed.
type FeedItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	GUID        string    `json:"guid"`
	BodyMarkup  string    `json:"body_markup"`
	Category    string    `json:"category,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// ChannelMeta describes the feed channel.
type ChannelMeta struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Language    string `json:"language,omitempty"`
}

// FeedDocument is the complete syndication artifact of one run.
type FeedDocument struct {
	Channel ChannelMeta `json:"channel"`
	Items   []FeedItem  `json:"items"`
}
