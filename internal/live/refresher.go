package live

import (
	"context"
	"sync"
)

// Refresher runs recomputations where only the newest request may deliver.
// Each Trigger gets a higher sequence number and cancels the computation
// before it; a computation that finishes after a newer Trigger is dropped.
type Refresher[T any] struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	closed bool

	deliverMu sync.Mutex
	deliver   func(T, error)

	wg sync.WaitGroup
}

func NewRefresher[T any](deliver func(T, error)) *Refresher[T] {
	return &Refresher[T]{deliver: deliver}
}

// Trigger starts fn and returns its sequence number. After Close it does
// nothing.
func (r *Refresher[T]) Trigger(ctx context.Context, fn func(context.Context) (T, error)) uint64 {
	r.mu.Lock()
	if r.closed {
		seq := r.seq
		r.mu.Unlock()
		return seq
	}
	r.seq++
	seq := r.seq
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()

		v, err := fn(runCtx)

		r.deliverMu.Lock()
		defer r.deliverMu.Unlock()
		if !r.isLatest(seq) {
			return
		}
		r.deliver(v, err)
	}()
	return seq
}

func (r *Refresher[T]) isLatest(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && seq == r.seq
}

// Seq is the sequence number of the newest request.
func (r *Refresher[T]) Seq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Wait blocks until every started computation has finished.
func (r *Refresher[T]) Wait() {
	r.wg.Wait()
}

// Close cancels the in-flight computation, waits for it and prevents any
// further delivery.
func (r *Refresher[T]) Close() {
	r.mu.Lock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
