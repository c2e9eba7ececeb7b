package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/models"
)

func TestMemorySetPublishedIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put(models.Entry{ID: "a", Title: "A"})

	first := time.Date(2025, 3, 16, 9, 0, 0, 0, time.UTC)
	if err := m.SetPublished(ctx, "a", first); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	once, _ := m.Get("a")

	if err := m.SetPublished(ctx, "a", first.Add(48*time.Hour)); err != nil {
		t.Fatalf("SetPublished again: %v", err)
	}
	twice, _ := m.Get("a")

	if once.Status != models.StatusPublished || twice.Status != models.StatusPublished {
		t.Fatalf("status = %q / %q", once.Status, twice.Status)
	}
	if !once.PublishDate.Equal(*twice.PublishDate) {
		t.Errorf("publish date moved: %v -> %v", once.PublishDate, twice.PublishDate)
	}
	if m.Commits("a") != 2 {
		t.Errorf("commits = %d", m.Commits("a"))
	}
}

func TestMemoryListQuery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	today := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	m.Put(models.Entry{ID: "1"})
	m.Put(models.Entry{ID: "2", Status: models.StatusPublished})
	m.Put(models.Entry{ID: "3", PublishDate: &yesterday})
	m.Put(models.Entry{ID: "4", PublishDate: &today})

	all, _ := m.ListEntries(ctx, Query{})
	if len(all) != 4 || all[0].ID != "1" || all[3].ID != "4" {
		t.Fatalf("all = %+v", all)
	}
	unpublished, _ := m.ListEntries(ctx, Query{ExcludePublished: true})
	if len(unpublished) != 3 {
		t.Errorf("unpublished = %d", len(unpublished))
	}
	dated, _ := m.ListEntries(ctx, Query{PublishDateOn: &today})
	if len(dated) != 3 {
		t.Errorf("dated = %d", len(dated))
	}
}

func TestMemoryFailure(t *testing.T) {
	m := NewMemory()
	m.Put(models.Entry{ID: "a"})
	m.Fail = func(op, id string) error {
		if op == "fetch_blocks" {
			return errors.New("timeout")
		}
		return nil
	}
	_, err := m.FetchBlocks(context.Background(), "a")
	if !errors.Is(err, apperr.ErrSourceUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestSameDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	a := time.Date(2025, 3, 16, 17, 0, 0, 0, time.UTC) // 01:00 on the 17th in UTC+8
	b := time.Date(2025, 3, 17, 12, 0, 0, 0, loc)
	if !SameDay(a, b, loc) {
		t.Error("expected same day in UTC+8")
	}
	if SameDay(a, b, time.UTC) {
		t.Error("expected different days in UTC")
	}
}
