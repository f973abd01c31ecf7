package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/podiumlabs/podium/internal/store"
)

// defaultMaxConcurrent bounds simultaneous pipeline runs when no limit is
// configured.
const defaultMaxConcurrent = 4

// DoneFunc is called after a run reaches its terminal status. status is
// completed or failed.
type DoneFunc func(recordingID string, status store.Status)

// Runner executes pipeline runs asynchronously with bounded concurrency.
// Enqueue returns immediately; runs beyond the limit queue inside the group.
// A recording that is already queued or running is not enqueued again, so
// concurrent reanalyze requests collapse into a single run.
type Runner struct {
	pipeline *Pipeline
	group    *errgroup.Group
	log      *slog.Logger
	onDone   DoneFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight map[string]struct{}
}

// RunnerOption is a functional option for configuring a [Runner].
type RunnerOption func(*Runner)

// WithOnDone registers a callback invoked after each run reaches a terminal
// status. Used to push status events to websocket subscribers.
func WithOnDone(fn DoneFunc) RunnerOption {
	return func(r *Runner) { r.onDone = fn }
}

// WithRunnerLogger sets the logger. Defaults to [slog.Default].
func WithRunnerLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a [Runner] over p allowing at most maxConcurrent
// simultaneous runs. maxConcurrent <= 0 selects the default of 4.
func NewRunner(p *Pipeline, maxConcurrent int, opts ...RunnerOption) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		pipeline: p,
		group:    &errgroup.Group{},
		log:      slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
	r.group.SetLimit(maxConcurrent)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue schedules an asynchronous pipeline run for the recording. It blocks
// only while the concurrency limit is saturated. Enqueue after Close is a
// no-op, and a recording already queued or running is coalesced into the
// existing run so the same recording is never processed twice concurrently.
func (r *Runner) Enqueue(recordingID string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("enqueue after close ignored", "recording_id", recordingID)
		return
	}
	if _, running := r.inflight[recordingID]; running {
		r.mu.Unlock()
		r.log.Info("run already in flight, coalescing", "recording_id", recordingID)
		return
	}
	r.inflight[recordingID] = struct{}{}
	r.mu.Unlock()

	r.group.Go(func() error {
		err := r.pipeline.Process(r.ctx, recordingID)
		if err != nil {
			r.log.Error("pipeline run failed", "recording_id", recordingID, "error", err)
		}
		r.mu.Lock()
		delete(r.inflight, recordingID)
		r.mu.Unlock()
		r.notify(recordingID, err)
		return nil
	})
}

// notify resolves the terminal status from the store and invokes the done
// callback. A run that errored before the store could be updated reports
// failed.
func (r *Runner) notify(recordingID string, runErr error) {
	if r.onDone == nil {
		return
	}
	status := store.StatusCompleted
	if runErr != nil {
		status = store.StatusFailed
	}
	if rec, err := r.pipeline.store.GetRecording(context.Background(), recordingID); err == nil {
		status = rec.Status
	}
	r.onDone(recordingID, status)
}

// Close stops accepting new runs, cancels in-flight runs, and waits for them
// to finish. Safe to call more than once.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	_ = r.group.Wait()
}

// Wait blocks until every enqueued run has finished. Intended for tests and
// for draining before shutdown without cancelling in-flight work.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}
