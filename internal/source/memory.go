package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
)

// Memory is an in-process Provider. It backs tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	order   []string
	entries map[string]models.Entry
	blocks  map[string][]models.ContentNode

	// Fail, when set, is consulted before every call; a non-nil result is
	// returned as the call's error.
	Fail func(op, entryID string) error

	commits map[string]int
}

// NewMemory creates an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]models.Entry),
		blocks:  make(map[string][]models.ContentNode),
		commits: make(map[string]int),
	}
}

// Put adds or replaces an entry and its body.
func (m *Memory) Put(e models.Entry, body ...models.ContentNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	if e.Status == "" {
		e.Status = models.StatusUnpublished
	}
	m.entries[e.ID] = e
	m.blocks[e.ID] = body
}

// Get returns the current state of an entry.
func (m *Memory) Get(id string) (models.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok
}

// Commits returns how many times SetPublished was called for id.
func (m *Memory) Commits(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits[id]
}

func (m *Memory) fail(op, id string) error {
	if m.Fail == nil {
		return nil
	}
	if err := m.Fail(op, id); err != nil {
		return apperr.Source(op, id, err)
	}
	return nil
}

// ListEntries returns entries in insertion order, applying q.
func (m *Memory) ListEntries(_ context.Context, q Query) ([]models.Entry, error) {
	if err := m.fail("list_entries", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Entry, 0, len(m.order))
	for _, id := range m.order {
		if e := m.entries[id]; q.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// FetchBlocks returns a copy of the stored body.
func (m *Memory) FetchBlocks(_ context.Context, entryID string) ([]models.ContentNode, error) {
	if err := m.fail("fetch_blocks", entryID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entryID]; !ok {
		return nil, apperr.Source("fetch_blocks", entryID, fmt.Errorf("entry %s: %w", entryID, apperr.ErrNotFound))
	}
	return append([]models.ContentNode(nil), m.blocks[entryID]...), nil
}

// SetPublished sets status and publish date. Repeating it is a no-op.
func (m *Memory) SetPublished(_ context.Context, entryID string, at time.Time) error {
	if err := m.fail("set_published", entryID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return apperr.Source("set_published", entryID, fmt.Errorf("entry %s: %w", entryID, apperr.ErrNotFound))
	}
	m.commits[entryID]++
	if e.Published() {
		return nil
	}
	day := at
	e.Status = models.StatusPublished
	e.PublishDate = &day
	m.entries[entryID] = e
	return nil
}

var _ Provider = (*Memory)(nil)
