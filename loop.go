package livecalc

import (
	"context"
	"sync"
)

// Loop is a queue of functions to run on one foreground goroutine. Any
// goroutine may Post to a Loop; only the goroutine that owns the session
// should run it. The zero value is not ready to use; create Loops with
// NewLoop.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	ready chan struct{}
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{ready: make(chan struct{}, 1)}
}

// Post adds f to the queue.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// RunPending runs every function queued so far, including any that they
// post, and returns how many ran.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		q := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(q) == 0 {
			return n
		}
		for _, f := range q {
			f()
		}
		n += len(q)
	}
}

// Wait blocks until there is at least one queued function or ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		n := len(l.queue)
		l.mu.Unlock()
		if n > 0 {
			return nil
		}
		select {
		case <-l.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ Poster = (*Loop)(nil)
