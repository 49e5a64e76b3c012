package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
)

// statusSource is a swappable status read, standing in for the
// persistence layer.
type statusSource struct {
	mu     sync.Mutex
	status lifecycle.Status
	err    error
	reads  int
}

func (s *statusSource) set(status lifecycle.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.err = nil
}

func (s *statusSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *statusSource) read(uuid.UUID) (lifecycle.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.status, s.err
}

type change struct{ old, current lifecycle.Status }

func watchChanges(t *testing.T, p *Poller, src *statusSource, last lifecycle.Status) (chan change, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	changes := make(chan change, 16)
	p.Watch(ctx, uuid.New(), last, func(old, current lifecycle.Status) {
		changes <- change{old, current}
	})
	return changes, cancel
}

func waitChange(t *testing.T, changes chan change) change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a status change")
		return change{}
	}
}

func expectQuiet(t *testing.T, changes chan change, d time.Duration) {
	t.Helper()
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %s -> %s", c.old, c.current)
	case <-time.After(d):
	}
}

func TestWatchObservesMissedTransition(t *testing.T) {
	src := &statusSource{status: lifecycle.StatusPending}
	p := &Poller{Interval: 10 * time.Millisecond, Status: src.read}

	changes, _ := watchChanges(t, p, src, lifecycle.StatusPending)

	// No pushed event arrives; the watch alone notices the flip.
	src.set(lifecycle.StatusApproved)
	c := waitChange(t, changes)
	if c.old != lifecycle.StatusPending || c.current != lifecycle.StatusApproved {
		t.Fatalf("change = %s -> %s, want pending -> approved", c.old, c.current)
	}

	// A stable status fires nothing further.
	expectQuiet(t, changes, 100*time.Millisecond)
}

func TestWatchFiresOncePerChange(t *testing.T) {
	src := &statusSource{status: lifecycle.StatusApproved}
	p := &Poller{Interval: 5 * time.Millisecond, Status: src.read}

	changes, _ := watchChanges(t, p, src, lifecycle.StatusPending)

	c := waitChange(t, changes)
	if c.current != lifecycle.StatusApproved {
		t.Fatalf("first change = %s, want approved", c.current)
	}

	src.set(lifecycle.StatusInProgress)
	c = waitChange(t, changes)
	if c.old != lifecycle.StatusApproved || c.current != lifecycle.StatusInProgress {
		t.Fatalf("second change = %s -> %s, want approved -> in-progress", c.old, c.current)
	}
	expectQuiet(t, changes, 50*time.Millisecond)
}

func TestWatchSkipsReadErrors(t *testing.T) {
	src := &statusSource{status: lifecycle.StatusPending}
	p := &Poller{Interval: 5 * time.Millisecond, Status: src.read}

	changes, _ := watchChanges(t, p, src, lifecycle.StatusPending)

	src.setErr(errors.New("both paths unreachable"))
	expectQuiet(t, changes, 50*time.Millisecond)

	// Recovery on a later tick picks up the change.
	src.set(lifecycle.StatusApproved)
	c := waitChange(t, changes)
	if c.current != lifecycle.StatusApproved {
		t.Fatalf("change = %s, want approved", c.current)
	}
}

func TestWatchStopsAtTerminal(t *testing.T) {
	src := &statusSource{status: lifecycle.StatusCompleted}
	p := &Poller{Interval: 5 * time.Millisecond, Status: src.read}

	changes, _ := watchChanges(t, p, src, lifecycle.StatusInProgress)

	c := waitChange(t, changes)
	if c.current != lifecycle.StatusCompleted {
		t.Fatalf("change = %s, want completed", c.current)
	}

	// Terminal records are not polled further.
	src.mu.Lock()
	readsAtStop := src.reads
	src.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	src.mu.Lock()
	readsAfter := src.reads
	src.mu.Unlock()
	if readsAfter != readsAtStop {
		t.Fatalf("poller kept reading after terminal status: %d -> %d reads", readsAtStop, readsAfter)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	src := &statusSource{status: lifecycle.StatusPending}
	p := &Poller{Interval: 5 * time.Millisecond, Status: src.read}

	changes, cancel := watchChanges(t, p, src, lifecycle.StatusPending)
	cancel()

	// Give the goroutine a moment to wind down, then verify a change is
	// never delivered.
	time.Sleep(20 * time.Millisecond)
	src.set(lifecycle.StatusApproved)
	expectQuiet(t, changes, 50*time.Millisecond)
}
