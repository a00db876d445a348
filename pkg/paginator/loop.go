package paginator

import (
	"context"
	"sync"
)

// Loop runs posted functions one at a time on the goroutine calling Run.
// It is the owner context for a Paginator whose fetch handler completes on
// other goroutines: every touch of the paginator goes through Post or Do.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once

	// discarded counts queued functions dropped when Run stopped.
	discarded int
}

// NewLoop creates a loop with the given queue capacity (default 64).
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		queue:  make(chan func(), buffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Run executes posted functions in FIFO order until ctx is cancelled.
// Functions still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		for {
			select {
			case <-l.queue:
				l.discarded++
			default:
				close(l.exited)
				return
			}
		}
	})
}

// Post queues fn without waiting for it to run. It blocks while the queue is
// full and returns ErrLoopStopped once Run has returned. A nil error means fn
// was queued before the loop stopped; functions still queued at that point
// are discarded.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	ran := false
	task := func() {
		ran = true
		fn()
	}

	select {
	case l.queue <- task:
	case <-l.done:
		return ErrLoopStopped
	}

	// The loop may have stopped while the send was in flight. Once stop has
	// drained the queue, ran tells whether task got to execute.
	select {
	case <-l.done:
		<-l.exited
		if !ran {
			return ErrLoopStopped
		}
	default:
	}
	return nil
}

// Do queues fn and waits for it to finish. It must not be called from a
// function already running on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// fn may have completed just before the loop stopped.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
