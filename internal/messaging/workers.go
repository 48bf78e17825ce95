package messaging

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Workers runs inbound messages through a Handler with bounded
// concurrency. Transports call Dispatch from their receive loops and Close
// once receiving stops.
type Workers struct {
	handler Handler

	mu     sync.Mutex
	closed bool
	group  errgroup.Group
}

// NewWorkers returns Workers running at most limit handlers at a time. A
// limit below 1 means no bound.
func NewWorkers(h Handler, limit int) *Workers {
	w := &Workers{handler: h}
	if limit > 0 {
		w.group.SetLimit(limit)
	}
	return w
}

// Dispatch hands in to the handler on its own goroutine, blocking while
// the limit is reached. Messages dispatched after Close are dropped and
// Dispatch reports false.
//
// ctx is detached from cancellation so a turn that has started can save
// its result during shutdown.
func (w *Workers) Dispatch(ctx context.Context, in Inbound) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	w.group.Go(func() error {
		w.handler.Handle(ctx, in)
		return nil
	})
	return true
}

// Close stops accepting messages and waits for running handlers.
func (w *Workers) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	_ = w.group.Wait()
}
