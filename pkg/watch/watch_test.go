package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitTampered(w *Watcher) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Tampered() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestWatcher_Untouched(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "payload")
	if err := os.WriteFile(p, []byte("image"), 0755); err != nil {
		t.Fatal(err)
	}
	w, err := New(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	// sibling changes are not tampering
	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_Tampered(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p string) error
	}{
		{"write", func(p string) error {
			return os.WriteFile(p, []byte("evil"), 0755)
		}},
		{"remove", os.Remove},
		{"replace", func(p string) error {
			tmp := p + ".new"
			if err := os.WriteFile(tmp, []byte("evil"), 0755); err != nil {
				return err
			}
			return os.Rename(tmp, p)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "payload")
			if err := os.WriteFile(p, []byte("image"), 0755); err != nil {
				t.Fatal(err)
			}
			w, err := New(p, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := tc.modify(p); err != nil {
				t.Fatal(err)
			}
			if !waitTampered(w) {
				t.Fatal("modification not observed")
			}
			if err := w.Stop(); !errors.Is(err, ErrTampered) {
				t.Fatalf("expected ErrTampered, got %v", err)
			}
			if len(w.Events()) == 0 {
				t.Fatal("no events recorded")
			}
		})
	}
}

func TestNew_MissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "no", "payload"), nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
