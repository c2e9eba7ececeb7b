package feed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/storage"
)

// Writer persists a fully built feed document.
type Writer interface {
	WriteFeed(ctx context.Context, doc models.FeedDocument) error
}

// FileWriter writes the encoded document atomically into a storage root.
type FileWriter struct {
	store  storage.Provider
	path   string
	format Format
	now    func() time.Time
}

// NewFileWriter creates a FileWriter for path (relative to store's root).
func NewFileWriter(store storage.Provider, path string, format Format, now func() time.Time) *FileWriter {
	if now == nil {
		now = time.Now
	}
	return &FileWriter{store: store, path: path, format: format, now: now}
}

// Path returns the output path relative to the storage root.
func (w *FileWriter) Path() string {
	return w.path
}

// Format returns the output format.
func (w *FileWriter) Format() Format {
	return w.format
}

// WriteFeed encodes doc and replaces the output file in one step, so a
// failure never leaves a partial document behind.
func (w *FileWriter) WriteFeed(ctx context.Context, doc models.FeedDocument) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrFeedWrite, err)
	}
	data, err := Encode(doc, w.format, w.now())
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrFeedWrite, err)
	}
	if err := w.store.Write(w.path, data); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrFeedWrite, err)
	}
	return nil
}

// StreamWriter encodes the document to an io.Writer. Used for dry runs.
type StreamWriter struct {
	out    io.Writer
	format Format
	now    func() time.Time
}

// NewStreamWriter creates a StreamWriter.
func NewStreamWriter(out io.Writer, format Format, now func() time.Time) *StreamWriter {
	if now == nil {
		now = time.Now
	}
	return &StreamWriter{out: out, format: format, now: now}
}

func (w *StreamWriter) WriteFeed(_ context.Context, doc models.FeedDocument) error {
	data, err := Encode(doc, w.format, w.now())
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrFeedWrite, err)
	}
	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrFeedWrite, err)
	}
	return nil
}
