// Package queue provides a bounded, priority-ordered, concurrency-limited
// serializer for provider calls. The login lane runs with concurrency 1 so
// the provider never observes two simultaneous attempts from this process.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrFull is returned when the combined queue depth is at capacity.
	ErrFull = errors.New("request queue is full")
	// ErrTimeout is returned when a task exceeds its per-task timeout. The
	// queue proceeds to the next task; the stuck call is abandoned with a
	// cancelled context.
	ErrTimeout = errors.New("queued task timed out")
	// ErrClosed is returned when enqueueing after Close.
	ErrClosed = errors.New("request queue is closed")
)

// Priority orders tasks across tiers; within a tier tasks run FIFO.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Options carries per-task settings for Enqueue.
type Options struct {
	Priority Priority
	Name     string        // metadata for logging
	Timeout  time.Duration // overrides the queue default when > 0
}

type task struct {
	fn         func(context.Context) error
	name       string
	priority   Priority
	timeout    time.Duration
	enqueuedAt time.Time
	done       chan error
}

// Queue is a process-wide task serializer. All mutation of the backing lists
// and all dequeue scheduling happen inside a single dispatch loop; Enqueue
// only appends under the lock and signals the loop.
type Queue struct {
	mu     sync.Mutex
	high   []*task
	normal []*task
	closed bool

	concurrency int
	maxDepth    int
	defTimeout  time.Duration

	wake    chan struct{}
	slots   chan struct{}
	quit    chan struct{}
	stopped sync.WaitGroup

	logger       *slog.Logger
	depthChanged func(int)
}

// Option configures a Queue.
type Option func(*Queue)

// WithConcurrency sets how many tasks may run at once. Default is 1.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// WithMaxDepth bounds the combined queue depth. Default is 50.
func WithMaxDepth(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxDepth = n
		}
	}
}

// WithDefaultTimeout sets the per-task timeout applied when Options.Timeout
// is zero. Default is 45s.
func WithDefaultTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.defTimeout = d
		}
	}
}

// WithLogger sets the logger used for task lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithDepthChanged registers a callback invoked with the combined depth after
// every enqueue/dequeue. Used to keep a metrics gauge current.
func WithDepthChanged(fn func(int)) Option {
	return func(q *Queue) {
		q.depthChanged = fn
	}
}

// New constructs a Queue and starts its dispatch loop.
func New(opts ...Option) *Queue {
	q := &Queue{
		concurrency: 1,
		maxDepth:    50,
		defTimeout:  45 * time.Second,
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	q.slots = make(chan struct{}, q.concurrency)
	for i := 0; i < q.concurrency; i++ {
		q.slots <- struct{}{}
	}
	q.stopped.Add(1)
	go q.dispatch()
	return q
}

// Enqueue submits fn and blocks until it completes, times out, or ctx is
// cancelled before the result arrives. It rejects immediately with ErrFull
// when the queue is at capacity.
func (q *Queue) Enqueue(ctx context.Context, fn func(context.Context) error, opts Options) error {
	t := &task{
		fn:         fn,
		name:       opts.Name,
		priority:   opts.Priority,
		timeout:    opts.Timeout,
		enqueuedAt: time.Now(),
		done:       make(chan error, 1),
	}
	if t.timeout <= 0 {
		t.timeout = q.defTimeout
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if len(q.high)+len(q.normal) >= q.maxDepth {
		q.mu.Unlock()
		return ErrFull
	}
	if t.priority == PriorityHigh {
		q.high = append(q.high, t)
	} else {
		q.normal = append(q.normal, t)
	}
	depth := len(q.high) + len(q.normal)
	q.mu.Unlock()

	q.notifyDepth(depth)
	q.signal()

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth returns the number of tasks waiting to run.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.normal)
}

// Close stops the dispatch loop. Queued tasks that have not started are
// failed with ErrClosed; running tasks are left to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := append(q.high, q.normal...)
	q.high, q.normal = nil, nil
	q.mu.Unlock()

	for _, t := range pending {
		t.done <- ErrClosed
	}
	close(q.quit)
	q.stopped.Wait()
}

// dispatch is the single scheduling loop. It acquires a free concurrency
// slot before popping, so a task waiting on a busy slot stays in the lists:
// it counts toward Depth and the maxDepth bound, and a high-priority task
// enqueued in the meantime still overtakes it.
func (q *Queue) dispatch() {
	defer q.stopped.Done()
	for {
		select {
		case <-q.quit:
			return
		case <-q.wake:
		}
		for q.Depth() > 0 {
			select {
			case <-q.slots:
			case <-q.quit:
				return
			}
			t := q.pop()
			if t == nil {
				// Close drained the lists while we waited for the slot.
				q.slots <- struct{}{}
				break
			}
			go q.run(t)
		}
	}
}

func (q *Queue) pop() *task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var t *task
	if len(q.high) > 0 {
		t = q.high[0]
		q.high = q.high[1:]
	} else if len(q.normal) > 0 {
		t = q.normal[0]
		q.normal = q.normal[1:]
	}
	if t != nil && q.depthChanged != nil {
		q.depthChanged(len(q.high) + len(q.normal))
	}
	return t
}

// run executes one task with its timeout. A task that overruns is reported
// as ErrTimeout and its slot released so the queue keeps moving; the task
// function keeps only a cancelled context.
func (q *Queue) run(t *task) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)

	result := make(chan error, 1)
	go func() {
		result <- t.fn(ctx)
	}()

	select {
	case err := <-result:
		cancel()
		t.done <- err
	case <-ctx.Done():
		cancel()
		if q.logger != nil {
			q.logger.Warn("queued task timed out",
				"task", t.name,
				"timeout", t.timeout.String(),
				"waited_ms", time.Since(t.enqueuedAt).Milliseconds(),
			)
		}
		t.done <- ErrTimeout
	}

	q.slots <- struct{}{}
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) notifyDepth(depth int) {
	if q.depthChanged != nil {
		q.depthChanged(depth)
	}
}
