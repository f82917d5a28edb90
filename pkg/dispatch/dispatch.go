// Package dispatch provides a single-consumer task queue that owns a piece
// of state. It plays the role of a UI thread: every mutation of the owned
// state is submitted as a Task and executed on one dedicated goroutine,
// strictly one at a time, in the order the tasks were enqueued.
//
// Enqueue never blocks; the mailbox is unbounded. A panic inside a task is
// recovered and reported as a *TaskError, and the queue moves on to the
// next task. Tasks enqueued from the same goroutine run in that goroutine's
// enqueue order; no ordering is defined between tasks from different
// goroutines beyond their order of arrival in the mailbox.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Enqueue and Sync after Close.
var ErrClosed = errors.New("dispatch: dispatcher closed")

// Task mutates the dispatcher-owned state. It runs on the dispatcher
// goroutine and must not block on other tasks of the same dispatcher.
type Task[S any] func(state *S)

// TaskError describes a task that panicked.
type TaskError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("dispatch: task %q panicked: %v", e.Task, e.Value)
}

// Stats is a point-in-time view of dispatcher counters.
type Stats struct {
	Enqueued uint64
	Executed uint64
	Faulted  uint64
	Pending  int
}

type job[S any] struct {
	name string
	task Task[S]
}

// Option configures a Dispatcher.
type Option[S any] func(*Dispatcher[S])

// WithLogger sets the logger used to report task faults.
func WithLogger[S any](l *slog.Logger) Option[S] {
	return func(d *Dispatcher[S]) { d.logger = l }
}

// WithFaultHandler registers fn to be called, on the dispatcher goroutine,
// for every task that panics.
func WithFaultHandler[S any](fn func(*TaskError)) Option[S] {
	return func(d *Dispatcher[S]) { d.onFault = fn }
}

// WithIdleHook registers fn to run on the dispatcher goroutine each time
// the mailbox drains after executing at least one task.
func WithIdleHook[S any](fn func(state *S)) Option[S] {
	return func(d *Dispatcher[S]) { d.onIdle = fn }
}

// WithTaskObserver registers fn to be called after every task with its
// name, run time and fault (nil on success).
func WithTaskObserver[S any](fn func(name string, took time.Duration, fault *TaskError)) Option[S] {
	return func(d *Dispatcher[S]) { d.observe = fn }
}

// Dispatcher executes tasks against a state value on one goroutine.
type Dispatcher[S any] struct {
	state *S

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job[S] // protected by mu
	closed bool     // protected by mu

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}

	enqueued atomic.Uint64
	executed atomic.Uint64
	faulted  atomic.Uint64

	logger  *slog.Logger
	onFault func(*TaskError)
	onIdle  func(*S)
	observe func(string, time.Duration, *TaskError)
}

// New creates a dispatcher owning state. The dispatcher goroutine is not
// running until Start is called; tasks enqueued before that are kept.
func New[S any](state *S, opts ...Option[S]) *Dispatcher[S] {
	d := &Dispatcher[S]{
		state:  state,
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	d.cond = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the dispatcher goroutine. It is idempotent.
func (d *Dispatcher[S]) Start() {
	d.startOnce.Do(func() {
		d.started.Store(true)
		go d.loop()
	})
}

// Enqueue appends a task to the mailbox and returns immediately.
func (d *Dispatcher[S]) Enqueue(name string, task Task[S]) error {
	if task == nil {
		return fmt.Errorf("dispatch: nil task %q", name)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.queue = append(d.queue, job[S]{name: name, task: task})
	d.enqueued.Add(1)
	d.cond.Signal()
	d.mu.Unlock()
	return nil
}

// Sync enqueues a barrier and waits until every task enqueued before it
// has run. It must not be called from inside a task.
func (d *Dispatcher[S]) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := d.Enqueue("sync", func(*S) { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, lets the queued ones finish and waits for
// the dispatcher goroutine to exit. Tasks queued on a dispatcher that was
// never started are discarded.
func (d *Dispatcher[S]) Close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	if d.started.Load() {
		<-d.done
	}
}

// Stats returns the current counters.
func (d *Dispatcher[S]) Stats() Stats {
	d.mu.Lock()
	pending := len(d.queue)
	d.mu.Unlock()

	return Stats{
		Enqueued: d.enqueued.Load(),
		Executed: d.executed.Load(),
		Faulted:  d.faulted.Load(),
		Pending:  pending,
	}
}

// loop is the dispatcher goroutine.
func (d *Dispatcher[S]) loop() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		j := d.queue[0]
		d.queue[0] = job[S]{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.execute(j)

		d.mu.Lock()
		idle := len(d.queue) == 0
		d.mu.Unlock()
		if idle && d.onIdle != nil {
			d.runIdle()
		}
	}
}

// execute runs one task, converting a panic into a TaskError.
func (d *Dispatcher[S]) execute(j job[S]) {
	start := time.Now()
	fault := d.protect(j.name, func() { j.task(d.state) })
	d.executed.Add(1)

	if fault != nil {
		d.faulted.Add(1)
		d.logger.Error("render task failed",
			"task", fault.Task,
			"panic", fmt.Sprint(fault.Value),
		)
		if d.onFault != nil {
			d.onFault(fault)
		}
	}
	if d.observe != nil {
		d.observe(j.name, time.Since(start), fault)
	}
}

func (d *Dispatcher[S]) runIdle() {
	if fault := d.protect("idle", func() { d.onIdle(d.state) }); fault != nil {
		d.logger.Error("idle hook failed", "panic", fmt.Sprint(fault.Value))
	}
}

func (d *Dispatcher[S]) protect(name string, fn func()) (fault *TaskError) {
	defer func() {
		if r := recover(); r != nil {
			fault = &TaskError{Task: name, Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}
