package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

// EventRecorder is an event handler that keeps every ledger event it is
// given. Handle fails with the error set by FailWith.
type EventRecorder struct {
	types []string

	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func NewEventRecorder(eventTypes ...string) *EventRecorder {
	return &EventRecorder{types: eventTypes}
}

func (r *EventRecorder) EventTypes() []string { return r.types }

func (r *EventRecorder) Handle(_ context.Context, event shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// Events returns a snapshot in delivery order.
func (r *EventRecorder) Events() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *EventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// CountOf returns how many recorded events have eventType.
func (r *EventRecorder) CountOf(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Clear drops recorded events and any configured failure.
func (r *EventRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.err = nil
}

// Poll evaluates cond every 10ms until it holds or timeout passes, and
// reports the last result.
func Poll(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			return cond()
		case <-tick.C:
		}
	}
	return true
}

// WaitForEvents waits until r has recorded at least n events.
func WaitForEvents(t *testing.T, r *EventRecorder, n int, timeout time.Duration) bool {
	t.Helper()
	return Poll(t, timeout, func() bool { return r.Len() >= n })
}
