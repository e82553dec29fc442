// Package scheduler persists deferred notifications, recovers pending ones at
// startup and fires each at its due time. Firing and cancellation share one
// conditional delete in storage, so a task notifies at most once.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/charlabot/charla/internal/metrics"
	"github.com/charlabot/charla/internal/notify"
	"github.com/charlabot/charla/internal/store"
)

var (
	// ErrInvalidSchedule rejects a scheduled time that is not strictly in the future.
	ErrInvalidSchedule = errors.New("scheduled time must be in the future")
	// ErrEmptyDescription rejects a task with nothing to say.
	ErrEmptyDescription = errors.New("description must not be empty")
	// ErrNotFound covers both a missing task and one owned by another user.
	ErrNotFound = errors.New("task not found")
)

// TaskStore is the slice of the store the scheduler needs.
type TaskStore interface {
	CreateTask(ctx context.Context, userID, description string, scheduledTime time.Time) (store.Task, error)
	DeleteTask(ctx context.Context, id int64, userID string) (bool, error)
	ListPendingTasks(ctx context.Context, after time.Time) ([]store.Task, error)
	ListTasks(ctx context.Context, userID string) ([]store.Task, error)
}

// TaskDuePayload is what goes out on the notification channel when a task fires.
type TaskDuePayload struct {
	ID            int64     `json:"id"`
	Description   string    `json:"description"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

type entry struct {
	id          int64
	userID      string
	description string
	due         time.Time
	index       int
}

// taskHeap is a min-heap ordered by due time; one waking loop serves every
// pending task instead of one timer per task.
type taskHeap []*entry

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type Scheduler struct {
	Store    TaskStore
	Notifier notify.Notifier
	Logger   *log.Logger

	now func() time.Time

	mu      sync.Mutex
	pending taskHeap
	byID    map[int64]*entry

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func New(st TaskStore, n notify.Notifier, logger *log.Logger) *Scheduler {
	return &Scheduler{
		Store:    st,
		Notifier: n,
		Logger:   logger,
		now:      time.Now,
		byID:     map[int64]*entry{},
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the waking loop. Call RecoverPending first so tasks persisted
// by a previous process get timers again.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop shuts the loop down and waits for it to exit. Pending rows stay in
// storage for the next RecoverPending.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Create validates, persists and arms a deferred task.
func (s *Scheduler) Create(ctx context.Context, userID, description string, scheduledTime time.Time) (store.Task, error) {
	if strings.TrimSpace(description) == "" {
		return store.Task{}, ErrEmptyDescription
	}
	if !scheduledTime.After(s.now()) {
		return store.Task{}, ErrInvalidSchedule
	}
	task, err := s.Store.CreateTask(ctx, userID, description, scheduledTime)
	if err != nil {
		return store.Task{}, err
	}
	s.arm(task)
	return task, nil
}

// Cancel deletes the task iff it exists and belongs to userID. The storage
// delete is the same atomic guard the fire path uses, so a cancel racing a
// fire ends with exactly one winner. The in-memory timer entry is disarmed
// afterward; if the fire path already claimed it, that is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id int64, userID string) error {
	removed, err := s.Store.DeleteTask(ctx, id, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	s.disarm(id)
	metrics.TasksCancelled.Inc()
	return nil
}

// List returns the caller's still-pending tasks.
func (s *Scheduler) List(ctx context.Context, userID string) ([]store.Task, error) {
	return s.Store.ListTasks(ctx, userID)
}

// RecoverPending loads every task still scheduled in the future and arms a
// timer for each. Run once at startup. Tasks whose time elapsed while the
// process was down are not recovered; their notification is lost.
func (s *Scheduler) RecoverPending(ctx context.Context) (int, error) {
	tasks, err := s.Store.ListPendingTasks(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		s.arm(t)
	}
	return len(tasks), nil
}

func (s *Scheduler) arm(t store.Task) {
	s.mu.Lock()
	e := &entry{id: t.ID, userID: t.UserID, description: t.Description, due: t.ScheduledTime}
	heap.Push(&s.pending, e)
	s.byID[t.ID] = e
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) disarm(id int64) {
	s.mu.Lock()
	if e, ok := s.byID[id]; ok {
		heap.Remove(&s.pending, e.index)
		delete(s.byID, id)
	}
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// popDue claims every entry whose due time has passed.
func (s *Scheduler) popDue() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var due []*entry
	for len(s.pending) > 0 && !s.pending[0].due.After(now) {
		e := heap.Pop(&s.pending).(*entry)
		delete(s.byID, e.id)
		due = append(due, e)
	}
	return due
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		s.mu.Lock()
		var next time.Time
		hasNext := len(s.pending) > 0
		if hasNext {
			next = s.pending[0].due
		}
		s.mu.Unlock()

		var timerC <-chan time.Time
		var timer *time.Timer
		if hasNext {
			d := next.Sub(s.now())
			if d <= 0 {
				s.fireDue(ctx)
				continue
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			s.fireDue(ctx)
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context) {
	for _, e := range s.popDue() {
		go s.fire(ctx, e)
	}
}

// fire attempts the conditional delete and notifies only when this call
// removed the row. An already-gone row means a concurrent cancel won; no
// notification goes out.
func (s *Scheduler) fire(ctx context.Context, e *entry) {
	removed, err := s.Store.DeleteTask(ctx, e.id, e.userID)
	if err != nil {
		s.Logger.Printf("fire task %d: %v", e.id, err)
		return
	}
	if !removed {
		return
	}
	metrics.TasksFired.Inc()
	payload := TaskDuePayload{ID: e.id, Description: e.description, ScheduledTime: e.due}
	if err := s.Notifier.Publish(ctx, e.userID, notify.EventTaskDue, payload); err != nil {
		// The row is gone either way; delivery is best effort.
		s.Logger.Printf("notify task %d for %s: %v", e.id, e.userID, err)
	}
}
