package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"slurmjobs/internal/job"
	"slurmjobs/internal/notify"
	"slurmjobs/internal/scheduler"
	"slurmjobs/internal/testutil"
)

const (
	headerOnly   = "JOBID PARTITION NAME USER ST TIME NODES NODELIST(REASON)\n"
	oneActiveRow = headerOnly + "1234 gpu train alice R 1:02 4 node[01-04]\n"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (c *captureNotifier) Notify(e *notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureNotifier) Stats() notify.Stats { return notify.Stats{} }

func (c *captureNotifier) Close(ctx context.Context) error { return nil }

func (c *captureNotifier) snapshot() []*notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*notify.Event(nil), c.events...)
}

func newTestWatcher(t *testing.T, fake *scheduler.Fake) (*Watcher, *captureNotifier) {
	t.Helper()
	controller, err := job.NewController(job.Config{
		Client:  fake,
		BaseDir: t.TempDir(),
		DefaultWait: job.WaitOptions{
			PollInterval: time.Millisecond,
			Timeout:      time.Second,
		},
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	notifier := &captureNotifier{}
	return NewWatcher(controller, notifier), notifier
}

func TestWatcherPublishesTerminalEvent(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("train", oneActiveRow, oneActiveRow, headerOnly)

	w, notifier := newTestWatcher(t, fake)
	j, _ := job.New("train", 4)

	if err := w.Register(Request{Job: j, CallbackURL: "http://callback.test/hook"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	testutil.MustWaitFor(t, func() bool {
		return len(notifier.snapshot()) == 1
	}, testutil.WithTimeout(5*time.Second), testutil.WithInterval(time.Millisecond))

	event := notifier.snapshot()[0]
	if event.Payload.Type != EventTypeTerminal {
		t.Errorf("event type = %q, want %q", event.Payload.Type, EventTypeTerminal)
	}
	if event.Payload.Subject != "train" {
		t.Errorf("event subject = %q", event.Payload.Subject)
	}
	if event.Destination != "http://callback.test/hook" {
		t.Errorf("destination = %q", event.Destination)
	}
	if event.Payload.Data["nodes"] != 4 {
		t.Errorf("nodes = %v", event.Payload.Data["nodes"])
	}

	testutil.MustWaitFor(t, func() bool { return w.Active() == 0 })
}

func TestWatcherPublishesFailureOnTimeout(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("stuck", oneActiveRow)

	w, notifier := newTestWatcher(t, fake)
	j, _ := job.New("stuck", 1)

	err := w.Register(Request{
		Job:         j,
		CallbackURL: "http://callback.test/hook",
		Wait:        job.WaitOptions{PollInterval: time.Millisecond, Timeout: 10 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	testutil.MustWaitFor(t, func() bool {
		return len(notifier.snapshot()) == 1
	}, testutil.WithTimeout(5*time.Second), testutil.WithInterval(time.Millisecond))

	event := notifier.snapshot()[0]
	if event.Payload.Type != EventTypeFailed {
		t.Errorf("event type = %q, want %q", event.Payload.Type, EventTypeFailed)
	}
	if event.Payload.Data["error"] == nil {
		t.Error("expected error detail in event data")
	}
}

func TestWatcherRejectsDuplicate(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("train", oneActiveRow) // stays active

	w, _ := newTestWatcher(t, fake)
	j, _ := job.New("train", 1)

	req := Request{Job: j, CallbackURL: "http://callback.test/hook"}
	if err := w.Register(req); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := w.Register(req); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Close(ctx)
}

func TestWatcherRequiresCallbackURL(t *testing.T) {
	t.Parallel()
	w, _ := newTestWatcher(t, scheduler.NewFake())
	j, _ := job.New("train", 1)

	if err := w.Register(Request{Job: j}); err == nil {
		t.Fatal("expected registration without callback URL to fail")
	}
}

func TestWatcherCloseAbortsWatches(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("train", oneActiveRow) // never terminal

	w, notifier := newTestWatcher(t, fake)
	j, _ := job.New("train", 1)

	if err := w.Register(Request{
		Job:         j,
		CallbackURL: "http://callback.test/hook",
		Wait:        job.WaitOptions{PollInterval: 10 * time.Millisecond, Timeout: time.Hour},
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Aborted watches publish nothing.
	if got := len(notifier.snapshot()); got != 0 {
		t.Errorf("expected no events after abort, got %d", got)
	}

	// No new registrations after shutdown.
	if err := w.Register(Request{Job: j, CallbackURL: "http://callback.test/hook"}); err == nil {
		t.Error("expected Register after Close to fail")
	}
}
