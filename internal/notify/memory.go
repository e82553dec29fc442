package notify

import (
	"context"
	"sync"
)

// Published records one delivered event.
type Published struct {
	UserID  string
	Event   string
	Payload interface{}
}

// Memory is an in-process Notifier for tests.
type Memory struct {
	mu     sync.Mutex
	events []Published
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, userID, event string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Published{UserID: userID, Event: event, Payload: payload})
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Published, len(m.events))
	copy(out, m.events)
	return out
}
