// Package testutil provides shared test helpers for building presentation libraries on disk.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/deckhand/internal/storage"
)

// TestLibrary creates a temporary library root with a storage.Provider.
func TestLibrary(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteFileAt writes a file and sets its modification time to mod. On
// filesystems without birth times this also fixes its authored order.
func WriteFileAt(t *testing.T, root, rel, content string, mod time.Time) {
	t.Helper()
	WriteFile(t, root, rel, content)
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.Chtimes(abs, mod, mod); err != nil {
		t.Fatal(err)
	}
}

// Slide returns a minimal HTML document titled title.
func Slide(title string) string {
	return "<!doctype html><html><head><title>" + title + "</title></head><body><h1>" + title + "</h1></body></html>"
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
