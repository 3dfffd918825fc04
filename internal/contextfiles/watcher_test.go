package contextfiles

import (
	"os"
	"testing"
	"time"
)

func TestWatcher_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	watched := writeFile(t, dir, "watched.txt", []byte("v1"))
	other := writeFile(t, dir, "other.txt", []byte("v1"))

	changed := make(chan []string, 4)
	w, err := NewWatcher(20*time.Millisecond, func(paths []string) { changed <- paths })
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer func() { _ = w.Close() }()
	w.Sync([]string{watched})

	if err := os.WriteFile(other, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(watched, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changed:
		if len(paths) != 1 || paths[0] != watched {
			t.Errorf("changed = %v, want [%s]", paths, watched)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
