package scheduler

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJanitorSweep(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "viejo.txt")
	fresh := filepath.Join(dir, "nuevo.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fresh, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-25 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	j, err := NewJanitor(dir, 24*time.Hour, "0 * * * *", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	j.Sweep()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale upload should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh upload should survive: %v", err)
	}
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	_, err := NewJanitor(t.TempDir(), time.Hour, "not a cron", log.New(io.Discard, "", 0))
	if err == nil {
		t.Fatalf("expected parse error")
	}
}
