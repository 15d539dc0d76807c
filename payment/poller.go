package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StatusChecker is the single network dependency of the payment
// subsystem: one call against the provider's status endpoint, returning
// the provider's raw status string. Implementations live in the
// provider package.
type StatusChecker interface {
	Check(ctx context.Context, bookingID string) (string, error)
}

// Poller periodically checks a session's payment status and reports the
// normalized result. One poller serves one session.
//
// Two rules keep concurrent checks honest:
//   - overlap guard: while a check is outstanding, new ticks are
//     skipped (not queued), so at most one request is in flight;
//   - generation discard: every dispatch is tagged with an increasing
//     generation, and a response is applied only if its generation is
//     still the latest dispatched. An outstanding check is considered
//     abandoned after staleAfter, at which point the next tick may
//     dispatch a fresh one; if the abandoned response eventually
//     arrives it is stale and dropped rather than overwriting newer
//     information.
type Poller struct {
	checker    StatusChecker
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger

	sessionID string
	bookingID string
	onStatus  func(Status)

	kick   chan struct{}
	cancel context.CancelFunc

	mu           sync.Mutex
	gen          uint64 // latest dispatched generation
	lastDone     uint64 // latest delivered generation
	dispatchedAt time.Time
	started      bool
	stopped      bool
}

// DefaultPollInterval is the reference cadence for scheduled checks.
const DefaultPollInterval = 5 * time.Second

func NewPoller(checker StatusChecker, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		checker:    checker,
		interval:   interval,
		staleAfter: 2 * interval,
		logger:     logger,
		kick:       make(chan struct{}, 1),
	}
}

// Start begins polling. The first check fires immediately, subsequent
// checks at the configured cadence. onStatus is invoked once per
// applied response, from the poller's goroutines.
func (p *Poller) Start(ctx context.Context, sessionID, bookingID string, onStatus func(Status)) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("payment: poller for session %s already started", sessionID)
	}
	p.started = true
	p.sessionID = sessionID
	p.bookingID = bookingID
	p.onStatus = onStatus

	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	go p.run(ctx)
	return nil
}

// Recheck requests an out-of-band check ("I have paid"). It does not
// disturb the tick schedule and obeys the overlap guard. Safe to call
// at any time, including after Stop.
func (p *Poller) Recheck() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stop cancels polling. Idempotent: stopping twice, or before Start,
// has no effect.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.maybeDispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.maybeDispatch(ctx)
		case <-p.kick:
			p.maybeDispatch(ctx)
		}
	}
}

func (p *Poller) maybeDispatch(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	outstanding := p.lastDone < p.gen
	if outstanding && time.Since(p.dispatchedAt) < p.staleAfter {
		// Overlap guard: one request in flight, skip this tick.
		p.mu.Unlock()
		return
	}
	p.gen++
	gen := p.gen
	p.dispatchedAt = time.Now()
	p.mu.Unlock()

	go p.check(ctx, gen)
}

func (p *Poller) check(ctx context.Context, gen uint64) {
	cctx, cancel := context.WithTimeout(ctx, p.staleAfter)
	defer cancel()

	raw, err := p.checker.Check(cctx, p.bookingID)

	status := StatusPending
	if err != nil {
		// Transport failure carries no information: stay pending and
		// let the next tick retry.
		p.logger.Debug("status check failed, treating as pending",
			zap.String("session_id", p.sessionID),
			zap.Uint64("generation", gen),
			zap.Error(err),
		)
	} else {
		status = Normalize(raw)
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.logger.Debug("discarding stale status response",
			zap.String("session_id", p.sessionID),
			zap.Uint64("generation", gen),
			zap.String("status", string(status)),
		)
		return
	}
	p.lastDone = gen
	stopped := p.stopped
	onStatus := p.onStatus
	p.mu.Unlock()

	if stopped || onStatus == nil {
		return
	}
	onStatus(status)
}

// generation returns the latest dispatched generation counter. Used by
// tests to verify that no checks are dispatched after a terminal state.
func (p *Poller) generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}
