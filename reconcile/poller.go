package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
)

// DefaultInterval is how often a watch re-reads lifecycle state. One
// interval bounds how stale a client can be when push delivery fails.
const DefaultInterval = 2 * time.Second

// StatusFunc resolves the current lifecycle state for a record id.
type StatusFunc func(id uuid.UUID) (lifecycle.Status, error)

// Poller is the correctness backstop for the realtime channel: it
// periodically re-reads a record's status and re-fires the same
// transition handling a pushed event would have triggered. The channel
// may drop, duplicate or reorder deliveries; the poller guarantees
// convergence within one interval regardless.
type Poller struct {
	Interval time.Duration
	Status   StatusFunc
}

func New(status StatusFunc) *Poller {
	return &Poller{Interval: DefaultInterval, Status: status}
}

// Watch polls id until ctx is cancelled, invoking onChange once per
// observed status change. Read errors are skipped, not fatal: the next
// tick retries. The ticker is released on cancellation, so a watch
// never outlives the context that started it.
func (p *Poller) Watch(ctx context.Context, id uuid.UUID, last lifecycle.Status, onChange func(old, current lifecycle.Status)) {
	go func() {
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := p.Status(id)
			if err != nil {
				continue
			}
			if current != last {
				old := last
				last = current
				onChange(old, current)
			}
			if lifecycle.Terminal(current) {
				return
			}
		}
	}()
}
