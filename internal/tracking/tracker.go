// Package tracking gives a patient a near-real-time view of an order's
// status without a push channel: a fixed-interval polling loop against the
// order read endpoint.
package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carekitchen/mealorder/internal/domain/order"
)

// DefaultInterval is the observed production polling interval.
const DefaultInterval = 30 * time.Second

// Fetcher reads the current order snapshot. The order service satisfies it
// directly; any consumer of get(orderId) is interchangeable here.
type Fetcher interface {
	Get(ctx context.Context, orderNumber string) (*order.Order, error)
}

// TransientFetchError wraps a failed poll. It is surfaced beside the last
// good snapshot and never tears down the polling loop; the next tick retries
// by continuation.
type TransientFetchError struct {
	OrderNumber string
	Err         error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetching order %s: %v", e.OrderNumber, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// Tracker polls one order on a fixed interval. Multiple trackers run
// independently and share no state.
type Tracker struct {
	fetcher     Fetcher
	orderNumber string
	interval    time.Duration

	mu       sync.Mutex
	snapshot *order.Order
	lastErr  error

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval overrides the polling interval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

// New creates a tracker for orderNumber. Call Start to begin polling and
// Stop when the view goes away; a tracker that is never stopped leaks its
// timer goroutine.
func New(fetcher Fetcher, orderNumber string, opts ...Option) *Tracker {
	t := &Tracker{
		fetcher:     fetcher,
		orderNumber: orderNumber,
		interval:    DefaultInterval,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start issues one immediate fetch, then re-fetches every interval until
// Stop is called or ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	go t.loop(ctx)
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	t.poll(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

// poll fetches once. A success wholesale-replaces the cached snapshot so no
// stale field can survive an update; a failure only records the error.
func (t *Tracker) poll(ctx context.Context) {
	o, err := t.fetcher.Get(ctx, t.orderNumber)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.lastErr = &TransientFetchError{OrderNumber: t.orderNumber, Err: err}
		return
	}
	t.snapshot = o
	t.lastErr = nil
}

// Snapshot returns the last fetched order and the error from the most recent
// poll, if it failed. The snapshot may be non-nil alongside a non-nil error
// when an earlier poll succeeded and a later one did not.
func (t *Tracker) Snapshot() (*order.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot, t.lastErr
}

// Stop cancels the polling loop and waits for it to exit. It is safe to call
// more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		if t.cancel == nil {
			return
		}
		t.cancel()
		<-t.done
	})
}
