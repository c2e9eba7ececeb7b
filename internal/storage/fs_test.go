package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("<rss></rss>\n")
	if err := s.Write("docs/rss.xml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("docs/rss.xml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestListFiltersExtensionAndHidden(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("b.md", []byte("b"))
	_ = s.Write("sub/a.md", []byte("a"))
	_ = s.Write("readme.txt", []byte("not md"))
	_ = s.Write(".drafts/hidden.md", []byte("hidden"))
	_ = s.Write(".hidden.md", []byte("hidden"))

	items, err := s.List("", ".md")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2 (%+v)", len(items), items)
	}
	if items[0].Path != "b.md" || items[1].Path != "sub/a.md" {
		t.Errorf("paths = %s, %s", items[0].Path, items[1].Path)
	}
	if items[0].Size == 0 || items[0].UpdatedAt.IsZero() {
		t.Errorf("metadata missing: %+v", items[0])
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("feed.xml", []byte("original"))
	if err := s.Write("feed.xml", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("feed.xml")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".pagefeed-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFSCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}

func TestNewFSFileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "pagefeed-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
