package scheduler

import (
	"context"
	"sync"
)

// Fake is an in-memory Client for tests. Status text is canned per job name;
// queries and cancels are recorded so tests can assert on them.
type Fake struct {
	mu         sync.Mutex
	statusText map[string][]string // queued responses per job name; last one repeats
	statusErr  error
	cancelErr  error
	readyErr   error
	cancelled  []string
	queries    int
}

// NewFake creates an empty fake scheduler client.
func NewFake() *Fake {
	return &Fake{statusText: make(map[string][]string)}
}

// SetStatus queues status responses for a job name. Each QueryStatus call
// consumes one response; the final response repeats once the queue is empty,
// which models a job settling into a stable state.
func (f *Fake) SetStatus(jobName string, responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusText[jobName] = responses
}

// FailStatus makes every QueryStatus call return err.
func (f *Fake) FailStatus(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
}

// FailCancel makes every Cancel call return err.
func (f *Fake) FailCancel(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelErr = err
}

// FailReady makes every Ready call return err.
func (f *Fake) FailReady(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyErr = err
}

func (f *Fake) Cancel(ctx context.Context, jobName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobName)
	return nil
}

func (f *Fake) QueryStatus(ctx context.Context, jobName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.statusErr != nil {
		return "", f.statusErr
	}
	responses := f.statusText[jobName]
	if len(responses) == 0 {
		return "", nil
	}
	text := responses[0]
	if len(responses) > 1 {
		f.statusText[jobName] = responses[1:]
	}
	return text, nil
}

func (f *Fake) Ready(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyErr
}

// CancelCount returns how many cancel requests were issued.
func (f *Fake) CancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

// QueryCount returns how many status queries were issued.
func (f *Fake) QueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// Verify Fake implements Client
var _ Client = (*Fake)(nil)
