// Package render converts content nodes into HTML fragments.
//
// Dispatch goes through a Registry keyed by node kind. Adding a kind means
// registering a Handler; existing handlers are never edited. Kinds with no
// handler render as the empty string.
package render

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
)

// Handler renders one node of the kind it was registered for. It must only
// read the payload belonging to that kind.
type Handler func(node models.ContentNode) string

// Registry maps node kinds to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.Kind]Handler
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report malformed nodes.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry returns a registry with the built-in handlers installed.
func NewRegistry(opts ...Option) *Registry {
	r := NewEmptyRegistry(opts...)
	for kind, h := range defaultHandlers() {
		r.handlers[kind] = h
	}
	return r
}

// NewEmptyRegistry returns a registry with no handlers.
func NewEmptyRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[models.Kind]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs h for kind, replacing any previous handler for it.
func (r *Registry) Register(kind models.Kind, h Handler) {
	kind = models.Kind(strings.TrimSpace(string(kind)))
	if kind == "" || h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Kinds lists the registered kinds.
func (r *Registry) Kinds() []models.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}

// Supports reports whether kind has a handler.
func (r *Registry) Supports(kind models.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[kind]
	return ok
}

// Render renders a single node. It never fails: unknown kinds and handlers
// that blow up on malformed payloads yield "".
func (r *Registry) Render(node models.ContentNode) (out string) {
	r.mu.RLock()
	h, ok := r.handlers[node.Kind]
	r.mu.RUnlock()
	if !ok {
		return ""
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("render: node skipped",
				slog.String("kind", string(node.Kind)),
				slog.String("node_id", node.ID),
				slog.String("error", fmt.Sprintf("%v: %v", apperr.ErrMalformedNode, rec)))
			out = ""
		}
	}()
	return h(node)
}

// Flatten renders nodes in document order and joins the non-empty
// fragments with a newline.
func (r *Registry) Flatten(nodes []models.ContentNode) string {
	var b strings.Builder
	for _, n := range nodes {
		frag := r.Render(n)
		if frag == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(frag)
	}
	return b.String()
}
