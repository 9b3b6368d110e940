// Package watch runs background waits on jobs and publishes a CloudEvent to a
// caller-supplied callback URL once the job leaves the scheduler queue.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"slurmjobs/internal/apperrors"
	"slurmjobs/internal/job"
	"slurmjobs/internal/notify"
	"slurmjobs/pkg/cloudevent"
)

// EventTypeTerminal is emitted when a watched job reaches terminal state.
const EventTypeTerminal = "slurmjobs.job.terminal"

// EventTypeFailed is emitted when a watch gives up (wait timeout or scheduler
// error) before the job was observed terminal.
const EventTypeFailed = "slurmjobs.job.watch_failed"

// eventSource identifies this service in outgoing CloudEvents.
const eventSource = "slurmjobs/gateway"

// Request describes a watch registration.
type Request struct {
	Job         job.Job
	CallbackURL string
	SigningKey  string
	Wait        job.WaitOptions
}

// Watcher tracks in-flight background watches. Watches survive the HTTP
// request that registered them; Close drains them on shutdown.
type Watcher struct {
	controller *job.Controller
	notifier   notify.Notifier
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup

	baseCtx   context.Context
	cancelAll context.CancelFunc
}

// NewWatcher creates a watcher publishing through the given notifier.
func NewWatcher(controller *job.Controller, notifier notify.Notifier) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		controller: controller,
		notifier:   notifier,
		logger:     slog.With("component", "watcher"),
		active:     make(map[string]context.CancelFunc),
		baseCtx:    ctx,
		cancelAll:  cancel,
	}
}

// Register starts a background watch for the job. At most one watch per job
// name may be active at a time.
func (w *Watcher) Register(req Request) error {
	if req.CallbackURL == "" {
		return apperrors.Validation("callback_url", "callback URL is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.baseCtx.Err() != nil {
		return apperrors.Unavailable("watch.register", fmt.Errorf("watcher is shutting down"))
	}
	if _, exists := w.active[req.Job.Name]; exists {
		return apperrors.Validation("name", fmt.Sprintf("job %s is already being watched", req.Job.Name))
	}

	ctx, cancel := context.WithCancel(w.baseCtx)
	w.active[req.Job.Name] = cancel

	w.wg.Add(1)
	go w.run(ctx, req)

	w.logger.Info("Watch registered", "job", req.Job.Name, "destination", req.CallbackURL)
	return nil
}

// Active returns the number of in-flight watches.
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

func (w *Watcher) run(ctx context.Context, req Request) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		delete(w.active, req.Job.Name)
		w.mu.Unlock()
	}()

	start := time.Now()
	err := w.controller.WaitUntilDone(ctx, req.Job, req.Wait)
	waited := time.Since(start)

	if ctx.Err() != nil {
		// Shutdown raced the wait; no callback for an aborted watch.
		w.logger.Info("Watch aborted", "job", req.Job.Name)
		return
	}

	eventType := EventTypeTerminal
	data := map[string]any{
		"job":            req.Job.Name,
		"nodes":          req.Job.NodeCount,
		"waited_seconds": waited.Seconds(),
	}
	if err != nil {
		eventType = EventTypeFailed
		data["error"] = err.Error()
		w.logger.Warn("Watch failed", "job", req.Job.Name, "error", err)
	} else {
		found, missing, failed := w.controller.Output(req.Job).Summary()
		data["output_files_found"] = found
		data["output_files_missing"] = missing
		data["output_files_failed"] = failed
		w.logger.Info("Watched job reached terminal state", "job", req.Job.Name, "waited", waited)
	}

	event := cloudevent.New(eventType, eventSource, req.Job.Name, uuid.NewString(), data)
	if nerr := w.notifier.Notify(&notify.Event{
		Payload:     event,
		Destination: req.CallbackURL,
		SigningKey:  req.SigningKey,
	}); nerr != nil {
		w.logger.Error("Failed to queue watch callback", "job", req.Job.Name, "error", nerr)
	}
}

// Close cancels all in-flight watches and waits for their goroutines to exit,
// bounded by ctx.
func (w *Watcher) Close(ctx context.Context) error {
	w.cancelAll()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("watcher shutdown timed out: %w", ctx.Err())
	}
}
