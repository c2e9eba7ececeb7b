// Package vault implements source.Provider over a directory of Markdown
// pages with frontmatter.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/parser"
	"github.com/starford/pagefeed/internal/source"
	"github.com/starford/pagefeed/internal/storage"
)

// Ext is the page file extension.
const Ext = ".md"

// Status values written to and read from frontmatter.
const (
	StatusPublished   = "published"
	StatusUnpublished = "unpublished"
)

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// Vault reads pages from a storage root. The page path is the entry ID.
type Vault struct {
	store  storage.Provider
	conv   *Converter
	logger *slog.Logger

	// mu serializes frontmatter rewrites.
	mu sync.Mutex
}

// New creates a Vault over store.
func New(store storage.Provider, opts ...Option) *Vault {
	v := &Vault{
		store:  store,
		conv:   NewConverter(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.store.Root()
}

var _ source.Provider = (*Vault)(nil)

// ListEntries returns pages sorted by path. Pages whose frontmatter cannot
// be parsed are skipped with a warning.
func (v *Vault) ListEntries(ctx context.Context, q source.Query) ([]models.Entry, error) {
	files, err := v.store.List("", Ext)
	if err != nil {
		return nil, apperr.Source("list_entries", "", err)
	}

	out := make([]models.Entry, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Source("list_entries", "", err)
		}
		data, err := v.store.Read(f.Path)
		if err != nil {
			return nil, apperr.Source("list_entries", f.Path, err)
		}
		res, err := parser.Parse(data)
		if err != nil {
			v.logger.Warn("vault: page skipped", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		e := toEntry(f.Path, res)
		e.LastEdited = f.UpdatedAt
		if q.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func toEntry(id string, res *parser.Result) models.Entry {
	e := models.Entry{
		ID:           id,
		Title:        res.Title,
		CanonicalURL: strings.TrimSpace(res.Meta.URL),
		Status:       models.StatusUnpublished,
		Category:     strings.TrimSpace(res.Meta.Type),
	}
	if strings.EqualFold(strings.TrimSpace(res.Meta.Status), StatusPublished) {
		e.Status = models.StatusPublished
	}
	if e.Category == "" && len(res.Tags) > 0 {
		e.Category = res.Tags[0]
	}
	if d, ok := parseDate(res.Meta.PublishDate); ok {
		e.PublishDate = &d
	}
	return e
}

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

// FetchBlocks parses the page body into content nodes.
func (v *Vault) FetchBlocks(_ context.Context, entryID string) ([]models.ContentNode, error) {
	res, _, err := v.load(entryID)
	if err != nil {
		return nil, apperr.Source("fetch_blocks", entryID, err)
	}
	return v.conv.Convert(res.Body), nil
}

// SetPublished rewrites the page frontmatter. A page that is already
// published is left untouched.
func (v *Vault) SetPublished(_ context.Context, entryID string, at time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	res, data, err := v.load(entryID)
	if err != nil {
		return apperr.Source("set_published", entryID, err)
	}
	if strings.EqualFold(strings.TrimSpace(res.Meta.Status), StatusPublished) {
		return nil
	}

	out, err := parser.SetFields(data,
		parser.Field{Key: parser.KeyStatus, Value: StatusPublished},
		parser.Field{Key: parser.KeyPublishDate, Value: at.Format(time.DateOnly)},
	)
	if err != nil {
		return apperr.Source("set_published", entryID, err)
	}
	if err := v.store.Write(entryID, out); err != nil {
		return apperr.Source("set_published", entryID, err)
	}
	v.logger.Info("vault: page published", slog.String("path", entryID))
	return nil
}

func (v *Vault) load(entryID string) (*parser.Result, []byte, error) {
	if !strings.HasSuffix(entryID, Ext) {
		return nil, nil, fmt.Errorf("entry %s: %w", entryID, apperr.ErrNotFound)
	}
	data, err := v.store.Read(entryID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("entry %s: %w", entryID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return res, data, nil
}
