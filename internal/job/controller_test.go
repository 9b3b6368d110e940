package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slurmjobs/internal/apperrors"
	"slurmjobs/internal/scheduler"
)

const (
	headerOnly   = "JOBID PARTITION NAME USER ST TIME NODES\n"
	oneActiveRow = "JOBID PARTITION NAME USER ST TIME NODES\n123 batch abc u1 R 0:05 1\n"
)

func newTestController(t *testing.T, fake *scheduler.Fake, baseDir string) *Controller {
	t.Helper()
	c, err := NewController(Config{
		Client:  fake,
		BaseDir: baseDir,
		DefaultWait: WaitOptions{
			PollInterval: time.Millisecond,
			Timeout:      time.Second,
		},
	})
	if err != nil {
		t.Fatalf("NewController() error: %v", err)
	}
	return c
}

func mustJob(t *testing.T, name string, nodes int) Job {
	t.Helper()
	j, err := New(name, nodes)
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func TestNewControllerRequiresClientAndBaseDir(t *testing.T) {
	t.Parallel()
	if _, err := NewController(Config{BaseDir: "/tmp"}); err == nil {
		t.Error("expected error for missing client")
	}
	if _, err := NewController(Config{Client: scheduler.NewFake()}); err == nil {
		t.Error("expected error for missing base directory")
	}
}

func TestStatusActiveAndTerminal(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("abc", oneActiveRow)
	c := newTestController(t, fake, t.TempDir())
	j := mustJob(t, "abc", 1)

	state, err := c.Status(context.Background(), j)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if state.Terminal() || len(state.Rows) != 1 {
		t.Errorf("expected one active row, got %+v", state)
	}

	fake.SetStatus("abc", headerOnly)
	state, err = c.Status(context.Background(), j)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if !state.Terminal() {
		t.Errorf("expected terminal state, got %+v", state)
	}
}

func TestStatusPropagatesSchedulerError(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	unavailable := apperrors.Unavailable("scheduler.queryStatus", errors.New("exit status 1"))
	fake.FailStatus(unavailable)
	c := newTestController(t, fake, t.TempDir())

	_, err := c.Status(context.Background(), mustJob(t, "abc", 1))
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCancelDelegates(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	c := newTestController(t, fake, t.TempDir())

	if err := c.Cancel(context.Background(), mustJob(t, "abc", 1)); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if fake.CancelCount() != 1 {
		t.Errorf("expected 1 cancel issued, got %d", fake.CancelCount())
	}
}

func TestWaitUntilDoneReturnsOnTerminal(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	// Two active polls, then terminal.
	fake.SetStatus("abc", oneActiveRow, oneActiveRow, headerOnly)
	c := newTestController(t, fake, t.TempDir())

	err := c.WaitUntilDone(context.Background(), mustJob(t, "abc", 1), WaitOptions{})
	if err != nil {
		t.Fatalf("WaitUntilDone() error: %v", err)
	}
	if fake.QueryCount() != 3 {
		t.Errorf("expected 3 polls, got %d", fake.QueryCount())
	}
}

func TestWaitUntilDoneTimesOut(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("abc", oneActiveRow)
	c := newTestController(t, fake, t.TempDir())

	err := c.WaitUntilDone(context.Background(), mustJob(t, "abc", 1), WaitOptions{
		PollInterval: time.Millisecond,
		Timeout:      20 * time.Millisecond,
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWaitUntilDoneAbortsOnContextCancel(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("abc", oneActiveRow)
	c := newTestController(t, fake, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := c.WaitUntilDone(ctx, mustJob(t, "abc", 1), WaitOptions{
		PollInterval: 10 * time.Second, // cancellation must not wait this out
		Timeout:      time.Minute,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation did not abort the sleep promptly: took %v", elapsed)
	}
}

func TestOutputCollectsFromWorkingDir(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	fake := scheduler.NewFake()
	c := newTestController(t, fake, base)
	j := mustJob(t, "abc", 3)

	dir := c.WorkingDir(j)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []struct{ name, content string }{
		{"slurm_0.out", "a"},
		{"slurm_2.out", "c"},
	} {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	report := c.Output(j)
	if len(report.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(report.Entries))
	}
	if report.Entries[0].Content != "a" || !report.Entries[1].Missing || report.Entries[2].Content != "c" {
		t.Errorf("unexpected report: %+v", report.Entries)
	}
}

func TestCleanupRemovesTerminalJobDir(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	fake := scheduler.NewFake()
	fake.SetStatus("abc", headerOnly)
	c := newTestController(t, fake, base)
	j := mustJob(t, "abc", 1)

	dir := c.WorkingDir(j)
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "slurm_0.out"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.Cleanup(context.Background(), j, true); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected working directory removed, stat err: %v", err)
	}
}

func TestCleanupWaitTimeoutLeavesDir(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	fake := scheduler.NewFake()
	fake.SetStatus("abc", oneActiveRow) // never terminal
	c, err := NewController(Config{
		Client:  fake,
		BaseDir: base,
		DefaultWait: WaitOptions{
			PollInterval: time.Millisecond,
			Timeout:      20 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	j := mustJob(t, "abc", 1)

	dir := c.WorkingDir(j)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	err = c.Cleanup(context.Background(), j, true)
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		t.Errorf("expected working directory left present, stat err: %v", statErr)
	}
}

func TestCleanupMissingDirFails(t *testing.T) {
	t.Parallel()
	fake := scheduler.NewFake()
	fake.SetStatus("abc", headerOnly)
	c := newTestController(t, fake, t.TempDir())

	err := c.Cleanup(context.Background(), mustJob(t, "abc", 1), true)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanupWithoutWaitSkipsScheduler(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	fake := scheduler.NewFake()
	fake.SetStatus("abc", oneActiveRow) // still active; caller accepts the risk
	c := newTestController(t, fake, base)
	j := mustJob(t, "abc", 1)

	dir := c.WorkingDir(j)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := c.Cleanup(context.Background(), j, false); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if fake.QueryCount() != 0 {
		t.Errorf("expected no status queries, got %d", fake.QueryCount())
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected working directory removed, stat err: %v", err)
	}
}

func TestCleanupWaitFailurePropagatesSchedulerError(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	fake := scheduler.NewFake()
	unavailable := apperrors.Unavailable("scheduler.queryStatus", errors.New("squeue: not found"))
	fake.FailStatus(unavailable)
	c := newTestController(t, fake, base)
	j := mustJob(t, "abc", 1)

	dir := c.WorkingDir(j)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	err := c.Cleanup(context.Background(), j, true)
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		t.Errorf("expected working directory left present, stat err: %v", statErr)
	}
}
