package feed

import "github.com/starford/pagefeed/internal/models"

// Build folds items into a feed document. Items keep their order and are
// not deduplicated.
func Build(channel models.ChannelMeta, items []models.FeedItem) models.FeedDocument {
	out := make([]models.FeedItem, len(items))
	copy(out, items)
	return models.FeedDocument{Channel: channel, Items: out}
}
