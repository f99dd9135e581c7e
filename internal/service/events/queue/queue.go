// Package queue implements an unbounded multi-producer / single-consumer FIFO
// with closable ends, used to hand events from the HTTP layer to the dispatcher.
package queue

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Push once the receiving end has been closed.
var ErrClosed = errors.New("queue: receiver closed")

type queue[T any] struct {
	mu         sync.Mutex
	items      []T
	notify     chan struct{}
	sendClosed bool
	recvClosed bool
}

// Sender is the producing end. It is safe for concurrent use.
type Sender[T any] struct {
	q *queue[T]
}

// Receiver is the consuming end. Only one goroutine may call Pop.
type Receiver[T any] struct {
	q *queue[T]
}

// New creates an empty queue and returns both of its ends.
func New[T any]() (*Sender[T], *Receiver[T]) {
	q := &queue[T]{notify: make(chan struct{}, 1)}
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// Push appends v. It never blocks; it fails only with ErrClosed.
func (s *Sender[T]) Push(v T) error {
	q := s.q
	q.mu.Lock()
	if q.recvClosed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.wake()
	return nil
}

// Close marks that no more items will be pushed. Items already queued are
// still delivered; after them Pop returns io.EOF. Idempotent.
func (s *Sender[T]) Close() {
	q := s.q
	q.mu.Lock()
	q.sendClosed = true
	q.mu.Unlock()
	q.wake()
}

// Pop returns the oldest item, waiting until one is available.
// It returns io.EOF when the sender is closed and the queue is drained,
// ctx.Err() when ctx is done and ErrClosed after Receiver.Close.
// A done ctx takes precedence over queued items.
func (r *Receiver[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	q := r.q
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		q.mu.Lock()
		if q.recvClosed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return v, nil
		}
		if q.sendClosed {
			q.mu.Unlock()
			return zero, io.EOF
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

// Close drops any pending items; subsequent pushes fail with ErrClosed. Idempotent.
func (r *Receiver[T]) Close() {
	q := r.q
	q.mu.Lock()
	q.recvClosed = true
	q.items = nil
	q.mu.Unlock()
	q.wake()
}

// Len reports the number of queued items.
func (r *Receiver[T]) Len() int {
	q := r.q
	q.mu.Lock()
	n := len(q.items)
	q.mu.Unlock()
	return n
}

func (q *queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
