package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// scriptedChecker serves canned responses and can hold a call open until
// released, to exercise the overlap guard and stale-response paths.
type scriptedChecker struct {
	mu        sync.Mutex
	calls     int
	responses []string
	blockOn   int           // 1-based call number to block, 0 for none
	release   chan struct{} // closed to release the blocked call
}

func (c *scriptedChecker) Check(ctx context.Context, bookingID string) (string, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	var resp string
	if len(c.responses) > 0 {
		resp = c.responses[0]
		if len(c.responses) > 1 {
			c.responses = c.responses[1:]
		}
	}
	blockOn := c.blockOn
	release := c.release
	c.mu.Unlock()

	if call == blockOn {
		// Held open until the test releases it, deliberately outliving
		// the check's own deadline.
		<-release
	}
	return resp, nil
}

func (c *scriptedChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// statusRecorder collects every status the poller delivers.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
	notify   chan Status
}

func newStatusRecorder() *statusRecorder {
	return &statusRecorder{notify: make(chan Status, 16)}
}

func (r *statusRecorder) record(st Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, st)
	r.mu.Unlock()
	r.notify <- st
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func (r *statusRecorder) waitFor(t *testing.T, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case st := <-r.notify:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q, saw %v", want, r.all())
		}
	}
}

func TestPoller_DeliversNormalizedStatus(t *testing.T) {
	checker := &scriptedChecker{responses: []string{"paid"}}
	rec := newStatusRecorder()
	p := NewPoller(checker, 10*time.Millisecond, zap.NewNop())
	defer p.Stop()

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", rec.record))
	rec.waitFor(t, StatusCaptured, time.Second)
}

// erroringChecker fails a fixed number of calls, then reports a status.
type erroringChecker struct {
	mu       sync.Mutex
	failures int
	calls    int
	raw      string
}

func (c *erroringChecker) Check(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return "", errors.New("connection refused")
	}
	return c.raw, nil
}

func TestPoller_TransportErrorFoldsToPending(t *testing.T) {
	checker := &erroringChecker{failures: 2, raw: "paid"}
	rec := newStatusRecorder()
	p := NewPoller(checker, 10*time.Millisecond, zap.NewNop())
	defer p.Stop()

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", rec.record))

	// Errors carry no information: the caller sees pending until a check
	// actually succeeds.
	rec.waitFor(t, StatusPending, time.Second)
	rec.waitFor(t, StatusCaptured, time.Second)
	for _, st := range rec.all() {
		assert.Contains(t, []Status{StatusPending, StatusCaptured}, st)
	}
}

func TestPoller_StartTwice(t *testing.T) {
	checker := &scriptedChecker{responses: []string{"pending"}}
	p := NewPoller(checker, time.Minute, zap.NewNop())
	defer p.Stop()

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", func(Status) {}))
	assert.Error(t, p.Start(context.Background(), "s1", "b1", func(Status) {}))
}

func TestPoller_OverlapGuardSkipsTicks(t *testing.T) {
	release := make(chan struct{})
	checker := &scriptedChecker{
		responses: []string{"pending"},
		blockOn:   1,
		release:   release,
	}
	p := NewPoller(checker, 50*time.Millisecond, zap.NewNop())
	defer p.Stop()

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", func(Status) {}))

	// The first check is still in flight and well within staleAfter, so
	// the tick at 50ms must be skipped, not queued.
	time.Sleep(70 * time.Millisecond)
	assert.Equal(t, uint64(1), p.generation())
	close(release)
}

func TestPoller_RecheckObeysOverlapGuard(t *testing.T) {
	release := make(chan struct{})
	checker := &scriptedChecker{
		responses: []string{"pending"},
		blockOn:   1,
		release:   release,
	}
	p := NewPoller(checker, time.Minute, zap.NewNop())
	defer p.Stop()

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", func(Status) {}))
	time.Sleep(10 * time.Millisecond)

	p.Recheck()
	p.Recheck()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), p.generation())
	close(release)
}

func TestPoller_RecheckDispatchesOutOfBand(t *testing.T) {
	checker := &scriptedChecker{responses: []string{"pending"}}
	rec := newStatusRecorder()
	// Interval far beyond the test horizon: only the immediate first
	// check and explicit rechecks can dispatch.
	p := NewPoller(checker, time.Minute, zap.NewNop())
	defer p.Stop()

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", rec.record))
	rec.waitFor(t, StatusPending, time.Second)

	p.Recheck()
	rec.waitFor(t, StatusPending, time.Second)
	assert.GreaterOrEqual(t, checker.callCount(), 2)
}

func TestPoller_StaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	// Call 1 hangs past staleAfter and would report failure; call 2
	// reports capture. The late failure must never reach the caller.
	checker := &scriptedChecker{
		responses: []string{"failed", "paid"},
		blockOn:   1,
		release:   release,
	}
	rec := newStatusRecorder()
	p := NewPoller(checker, 30*time.Millisecond, zap.NewNop())
	defer p.Stop()

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", rec.record))

	rec.waitFor(t, StatusCaptured, time.Second)
	close(release)
	time.Sleep(50 * time.Millisecond)

	for _, st := range rec.all() {
		assert.NotEqual(t, StatusFailed, st, "stale response leaked through")
	}
}

func TestPoller_StopIdempotent(t *testing.T) {
	checker := &scriptedChecker{responses: []string{"pending"}}
	p := NewPoller(checker, 10*time.Millisecond, zap.NewNop())

	assert.NoError(t, p.Start(context.Background(), "s1", "b1", func(Status) {}))
	p.Stop()
	p.Stop()

	gen := p.generation()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, gen, p.generation(), "poller dispatched after Stop")
}

func TestPoller_StopBeforeStart(t *testing.T) {
	p := NewPoller(&scriptedChecker{}, 10*time.Millisecond, zap.NewNop())
	p.Stop()
	assert.Equal(t, uint64(0), p.generation())
}
