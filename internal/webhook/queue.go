package webhook

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/contactflow/internal/models"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
)

// Dispatching is the fan-out a Queue runs for each job.
type Dispatching interface {
	Dispatch(ctx context.Context, event models.EventTrigger, userID string, data any) Report
}

type job struct {
	event  models.EventTrigger
	userID string
	data   any
}

// Queue runs dispatches in the background on a fixed pool of workers.
// Enqueue never blocks; when the buffer is full the event is dropped.
type Queue struct {
	d       Dispatching
	logger  *slog.Logger
	workers int
	jobs    chan job

	// mu makes the closed check and the send in Enqueue atomic with
	// respect to shutdown, so nothing lands in the buffer after the
	// workers were told to drain it.
	mu     sync.RWMutex
	closed bool
	stop   chan struct{}

	wg    sync.WaitGroup
	abort context.CancelFunc
}

// NewQueue creates a Queue. Non-positive sizes take defaults.
func NewQueue(d Dispatching, logger *slog.Logger, workers, size int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		d:       d,
		logger:  logger.With(slog.String("component", "webhook-queue")),
		workers: workers,
		jobs:    make(chan job, size),
		stop:    make(chan struct{}),
		abort:   func() {},
	}
}

// Start launches the workers. Cancelling ctx shuts the queue down like
// Close does, but it does not cancel deliveries already running.
func (q *Queue) Start(ctx context.Context) {
	// In-flight deliveries are bounded by the client timeout, and only an
	// expired Close deadline cancels them.
	runCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	q.abort = abort
	context.AfterFunc(ctx, q.shutdown)

	for range q.workers {
		q.wg.Add(1)
		go q.worker(runCtx)
	}
	q.logger.Info("webhook queue started", slog.Int("workers", q.workers), slog.Int("buffer", cap(q.jobs)))
}

func (q *Queue) shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.stop)
	}
}

// Close stops accepting jobs and waits for the workers to drain the buffer.
// When ctx expires first, running deliveries are cancelled, the remaining
// jobs are abandoned and ctx.Err() is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.shutdown()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	q.abort()
	<-done
	q.logger.Warn("webhook queue drain timed out, abandoning jobs",
		slog.Int("abandoned", q.Pending()))
	return ctx.Err()
}

// Enqueue schedules a dispatch and reports whether it was accepted.
func (q *Queue) Enqueue(event models.EventTrigger, userID string, data any) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("webhook queue closed, dropping event", slog.String("event", string(event)))
		return false
	}
	select {
	case q.jobs <- job{event: event, userID: userID, data: data}:
		return true
	default:
		q.logger.Warn("webhook queue full, dropping event",
			slog.String("event", string(event)),
			slog.String("user_id", userID))
		return false
	}
}

// Notify enqueues event when it names a webhook trigger and ignores it otherwise.
func (q *Queue) Notify(event, userID string, data any) {
	t := models.EventTrigger(event)
	if !t.Valid() {
		return
	}
	q.Enqueue(t, userID, data)
}

// Pending returns the number of buffered jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		select {
		case <-q.stop:
			q.drain(ctx)
			return
		case j := <-q.jobs:
			q.d.Dispatch(ctx, j.event, j.userID, j.data)
		}
	}
}

// drain runs what is still buffered until the buffer is empty or ctx is
// cancelled by an expired Close deadline.
func (q *Queue) drain(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case j := <-q.jobs:
			q.d.Dispatch(ctx, j.event, j.userID, j.data)
		default:
			return
		}
	}
}
