package notion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/source"
)

// maxDepth bounds how far nested blocks (toggles, list children) are followed.
const maxDepth = 3

var _ source.Provider = (*Client)(nil)

// ListEntries queries the database, following pagination cursors.
func (c *Client) ListEntries(ctx context.Context, q source.Query) ([]models.Entry, error) {
	body := map[string]any{"page_size": c.cfg.PageSize}
	if f := c.filter(q); f != nil {
		body["filter"] = f
	}
	endpoint := "/v1/databases/" + url.PathEscape(c.cfg.DatabaseID) + "/query"

	var out []models.Entry
	for {
		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
			return nil, apperr.Source("list_entries", "", err)
		}
		for _, p := range resp.Results {
			if p.Archived {
				continue
			}
			out = append(out, c.toEntry(p))
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		body["start_cursor"] = *resp.NextCursor
	}
	c.logger.Debug("notion: entries listed", slog.Int("count", len(out)))
	return out, nil
}

// filter translates the query hint into a Notion filter object.
func (c *Client) filter(q source.Query) map[string]any {
	var clauses []map[string]any
	if q.ExcludePublished {
		clauses = append(clauses, map[string]any{
			"property":       c.cfg.Properties.Status,
			c.cfg.StatusType: map[string]any{"does_not_equal": c.cfg.PublishedValue},
		})
	}
	if q.PublishDateOn != nil {
		day := q.PublishDateOn.UTC().Format(time.DateOnly)
		clauses = append(clauses, map[string]any{
			"or": []map[string]any{
				{"property": c.cfg.Properties.PublishDate, "date": map[string]any{"equals": day}},
				{"property": c.cfg.Properties.PublishDate, "date": map[string]any{"is_empty": true}},
			},
		})
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	}
	return map[string]any{"and": clauses}
}

// FetchBlocks returns the page body. Nested children follow their parent
// in document order.
func (c *Client) FetchBlocks(ctx context.Context, entryID string) ([]models.ContentNode, error) {
	var out []models.ContentNode
	if err := c.appendChildren(ctx, entryID, 0, &out); err != nil {
		return nil, apperr.Source("fetch_blocks", entryID, err)
	}
	return out, nil
}

func (c *Client) appendChildren(ctx context.Context, blockID string, depth int, out *[]models.ContentNode) error {
	cursor := ""
	for {
		params := url.Values{}
		params.Set("page_size", fmt.Sprint(c.cfg.PageSize))
		if cursor != "" {
			params.Set("start_cursor", cursor)
		}
		endpoint := "/v1/blocks/" + url.PathEscape(blockID) + "/children?" + params.Encode()

		var resp blockList
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return err
		}
		for _, b := range resp.Results {
			*out = append(*out, toNode(b))
			if b.HasChildren && depth+1 < maxDepth {
				if err := c.appendChildren(ctx, b.ID, depth+1, out); err != nil {
					return err
				}
			}
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return nil
		}
		cursor = *resp.NextCursor
	}
}

// SetPublished sets the status option and publish date of a page. A page
// that is already published is left untouched.
func (c *Client) SetPublished(ctx context.Context, entryID string, at time.Time) error {
	endpoint := "/v1/pages/" + url.PathEscape(entryID)

	var current page
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &current); err != nil {
		return apperr.Source("set_published", entryID, err)
	}
	if c.toEntry(current).Published() {
		return nil
	}

	body := map[string]any{
		"properties": map[string]any{
			c.cfg.Properties.Status: map[string]any{
				c.cfg.StatusType: map[string]any{"name": c.cfg.PublishedValue},
			},
			c.cfg.Properties.PublishDate: map[string]any{
				"date": map[string]any{"start": at.Format(time.DateOnly)},
			},
		},
	}
	if err := c.do(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return apperr.Source("set_published", entryID, err)
	}
	c.logger.Info("notion: entry published", slog.String("entry_id", entryID))
	return nil
}
