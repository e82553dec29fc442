package scheduler

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/charlabot/charla/internal/notify"
	"github.com/charlabot/charla/internal/store"
)

// memTaskStore mimics the storage contract: DeleteTask is a single atomic
// check-and-delete keyed by (id, user).
type memTaskStore struct {
	mu    sync.Mutex
	seq   int64
	tasks map[int64]store.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: map[int64]store.Task{}}
}

func (m *memTaskStore) CreateTask(_ context.Context, userID, description string, scheduledTime time.Time) (store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := store.Task{ID: m.seq, UserID: userID, Description: description, ScheduledTime: scheduledTime}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memTaskStore) DeleteTask(_ context.Context, id int64, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(m.tasks, id)
	return true, nil
}

func (m *memTaskStore) ListPendingTasks(_ context.Context, after time.Time) ([]store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Task
	for _, t := range m.tasks {
		if t.ScheduledTime.After(after) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTaskStore) ListTasks(_ context.Context, userID string) ([]store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTaskStore) has(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

func newTestScheduler() (*Scheduler, *memTaskStore, *notify.Memory) {
	st := newMemTaskStore()
	mem := notify.NewMemory()
	s := New(st, mem, log.New(io.Discard, "", 0))
	return s, st, mem
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestCreateRejectsPastTime(t *testing.T) {
	s, _, _ := newTestScheduler()
	_, err := s.Create(context.Background(), "user-1", "recordatorio", time.Now().Add(-time.Minute))
	if err != ErrInvalidSchedule {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	s, _, _ := newTestScheduler()
	_, err := s.Create(context.Background(), "user-1", "   ", time.Now().Add(time.Minute))
	if err != ErrEmptyDescription {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestCancelBeforeFire(t *testing.T) {
	s, st, mem := newTestScheduler()
	s.Start(context.Background())
	defer s.Stop()

	task, err := s.Create(context.Background(), "user-1", "llamar a Ana", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Cancel(context.Background(), task.ID, "user-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if st.has(task.ID) {
		t.Fatalf("row should be gone after cancel")
	}
	time.Sleep(30 * time.Millisecond)
	if len(mem.Events()) != 0 {
		t.Fatalf("cancelled task must not notify, got %v", mem.Events())
	}
}

func TestCancelWrongOwner(t *testing.T) {
	s, _, _ := newTestScheduler()
	task, err := s.Create(context.Background(), "user-1", "algo", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Cancel(context.Background(), task.ID, "user-2"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for foreign task, got %v", err)
	}
}

func TestFireExactlyOnce(t *testing.T) {
	s, st, mem := newTestScheduler()
	s.Start(context.Background())
	defer s.Stop()

	task, err := s.Create(context.Background(), "user-1", "regar las plantas", time.Now().Add(40*time.Millisecond))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(mem.Events()) == 1 })
	ev := mem.Events()[0]
	if ev.Event != notify.EventTaskDue || ev.UserID != "user-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	payload := ev.Payload.(TaskDuePayload)
	if payload.ID != task.ID || payload.Description != "regar las plantas" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if st.has(task.ID) {
		t.Fatalf("fired task row must be deleted")
	}

	time.Sleep(50 * time.Millisecond)
	if len(mem.Events()) != 1 {
		t.Fatalf("task fired more than once: %v", mem.Events())
	}
}

func TestConcurrentFireAndCancel(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, st, mem := newTestScheduler()

		task, err := s.Create(context.Background(), "user-1", "carrera", time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		e := &entry{id: task.ID, userID: task.UserID, description: task.Description, due: task.ScheduledTime}

		var wg sync.WaitGroup
		var cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.fire(context.Background(), e)
		}()
		go func() {
			defer wg.Done()
			cancelErr = s.Cancel(context.Background(), task.ID, "user-1")
		}()
		wg.Wait()

		if st.has(task.ID) {
			t.Fatalf("row present after fire+cancel")
		}
		notified := len(mem.Events())
		cancelled := cancelErr == nil
		if notified > 1 {
			t.Fatalf("double notification")
		}
		// Exactly one side wins the conditional delete.
		if cancelled == (notified == 1) {
			t.Fatalf("cancelled=%v notifications=%d; want exactly one winner", cancelled, notified)
		}
	}
}

func TestRecoverPending(t *testing.T) {
	st := newMemTaskStore()
	now := time.Now()
	_, _ = st.CreateTask(context.Background(), "user-1", "futura corta", now.Add(40*time.Millisecond))
	_, _ = st.CreateTask(context.Background(), "user-1", "futura larga", now.Add(time.Hour))
	_, _ = st.CreateTask(context.Background(), "user-1", "perdida", now.Add(-time.Minute))

	mem := notify.NewMemory()
	s := New(st, mem, log.New(io.Discard, "", 0))

	n, err := s.RecoverPending(context.Background())
	if err != nil {
		t.Fatalf("RecoverPending: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recovered tasks, got %d", n)
	}

	s.Start(context.Background())
	defer s.Stop()

	// Only the short future task fires; the elapsed one stays lost.
	waitFor(t, 2*time.Second, func() bool { return len(mem.Events()) == 1 })
	payload := mem.Events()[0].Payload.(TaskDuePayload)
	if payload.Description != "futura corta" {
		t.Fatalf("unexpected fired task: %+v", payload)
	}
}
