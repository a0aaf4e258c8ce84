package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempWorkspace(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempWorkspace(t)
	content := []byte(`{"id":"c1","name":"Board"}`)
	if err := s.Write("c1.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("c1.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempWorkspace(t)
	if err := s.Write("a/b/c.json", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("del.json", []byte("bye"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := s.Read("del.json")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read deleted file: err = %v, want ErrNotExist", err)
	}
}

func TestMove(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("old.json", []byte("data"))
	if err := s.Move("old.json", ".trash/old.json"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read(".trash/old.json")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.json"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("a.json", []byte("a"))
	_ = s.Write("sub/b.json", []byte("b"))
	_ = s.Write("readme.txt", []byte("not json"))
	_ = s.Write(".trash/gone.json", []byte("hidden"))

	items, err := s.List("", ".json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempWorkspace(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that if we read during a write the old content is intact
	// (the rename is atomic on POSIX).
	s := tempWorkspace(t)
	original := []byte("original content")
	_ = s.Write("atomic.json", original)

	// Overwrite with new content.
	updated := []byte("updated content")
	if err := s.Write("atomic.json", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".tessera-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/tessera-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "tessera-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestStat(t *testing.T) {
	f := tempWorkspace(t)
	if err := f.Write("attachments/a.png", []byte("png")); err != nil {
		t.Fatal(err)
	}

	m, err := f.Stat("attachments/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if m.Path != "attachments/a.png" || m.Checksum == "" || m.UpdatedAt.IsZero() {
		t.Errorf("metadata = %+v", m)
	}

	if _, err := f.Stat("attachments/missing.png"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}
	if _, err := f.Stat("attachments"); err == nil {
		t.Error("expected error for a directory")
	}
	if _, err := f.Stat("../outside.png"); err == nil {
		t.Error("expected traversal to be rejected")
	}
}
