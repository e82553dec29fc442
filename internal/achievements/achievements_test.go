package achievements

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/charlabot/charla/internal/notify"
	"github.com/charlabot/charla/internal/store"
)

type fakeRecorder struct {
	count int64
	held  map[string]bool
}

func (f *fakeRecorder) CountTurns(context.Context, string) (int64, error) { return f.count, nil }

func (f *fakeRecorder) GrantAchievement(_ context.Context, userID, name, description string) (store.Achievement, bool, error) {
	if f.held[name] {
		return store.Achievement{}, false, nil
	}
	f.held[name] = true
	return store.Achievement{UserID: userID, Name: name, Description: description, AchievedAt: time.Now()}, true, nil
}

func newEngine(count int64) (*Engine, *fakeRecorder, *notify.Memory) {
	rec := &fakeRecorder{count: count, held: map[string]bool{}}
	mem := notify.NewMemory()
	logger := log.New(io.Discard, "", 0)
	return NewEngine(rec, mem, logger), rec, mem
}

func TestEvaluateBelowThreshold(t *testing.T) {
	e, _, mem := newEngine(9)
	granted, err := e.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(granted) != 0 {
		t.Fatalf("expected no grants, got %v", granted)
	}
	if len(mem.Events()) != 0 {
		t.Fatalf("expected no notifications")
	}
}

func TestEvaluateGrantsOnce(t *testing.T) {
	e, _, mem := newEngine(10)
	granted, err := e.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(granted) != 1 || granted[0].Name != "Primeros Pasos" {
		t.Fatalf("expected Primeros Pasos, got %v", granted)
	}

	// Second evaluation above the same threshold grants nothing.
	granted, err = e.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(granted) != 0 {
		t.Fatalf("expected no repeat grant, got %v", granted)
	}
	if got := mem.Events(); len(got) != 1 || got[0].Event != notify.EventAchievement {
		t.Fatalf("expected exactly one achievement notification, got %v", got)
	}
}

func TestEvaluateCrossingBothThresholds(t *testing.T) {
	e, _, mem := newEngine(150)
	granted, err := e.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(granted) != 2 {
		t.Fatalf("expected both badges, got %v", granted)
	}
	// Both ride a single notification.
	if got := mem.Events(); len(got) != 1 {
		t.Fatalf("expected one combined notification, got %d", len(got))
	}
}
