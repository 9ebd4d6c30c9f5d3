package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	uri, err := store.PutObject(context.Background(), "snapshots/job-1/abc.html", "text/html", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") {
		t.Fatalf("unexpected URI %s", uri)
	}

	data, err := os.ReadFile(filepath.Join(dir, "snapshots", "job-1", "abc.html"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Fatalf("unexpected file contents %q", data)
	}
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.PutObject(context.Background(), "../escape.html", "text/html", []byte("x")); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.PutObject(context.Background(), "  ", "text/html", []byte("x")); err == nil {
		t.Fatal("expected blank path to be rejected")
	}
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "blobs")
	if _, err := New(Config{BaseDir: dir}); err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("base dir was not created: %v", err)
	}
}
