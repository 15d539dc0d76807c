package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the confirmation state machine position for one session.
// Captured, Expired and Failed are terminal; there are no transitions
// out of them.
type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting_payment"
	StateCaptured State = "captured"
	StateExpired  State = "expired"
	StateFailed   State = "failed"
)

// Callbacks fire exactly once each, on the corresponding terminal
// transition. OnCaptured fires after the confirmation delay. OnFailed
// receives the provider-reported status (failed or cancelled).
type Callbacks struct {
	OnCaptured func(Session)
	OnExpired  func(Session)
	OnFailed   func(Session, Status)
}

// Config tunes controller timing. Zero values select the defaults.
type Config struct {
	PollInterval time.Duration
	ConfirmDelay time.Duration
}

// DefaultConfirmDelay is how long a captured session lingers on the
// confirmation screen before the completion callback fires.
const DefaultConfirmDelay = 2 * time.Second

// ErrAlreadyStarted is returned when Start is called twice on one
// controller.
var ErrAlreadyStarted = fmt.Errorf("payment: controller already started")

// Controller drives one payment session from AwaitingPayment to exactly
// one terminal state. It owns both timer sources for the session (the
// poll cadence, via its Poller, and the countdown) and serializes their
// events through a single run loop, so a capture and a countdown expiry
// landing together are resolved deterministically: capture wins.
//
// Every timer the controller starts is released on every exit path,
// including Dispose before any terminal state is reached.
type Controller struct {
	session   Session
	deadlines DeadlineStore
	renderer  CodeRenderer
	poller    *Poller
	logger    *zap.Logger
	cb        Callbacks

	confirmDelay time.Duration

	statusCh chan Status
	done     chan struct{}
	cancel   context.CancelFunc

	mu        sync.Mutex
	state     State
	settled   bool
	disposed  bool
	expiresAt time.Time
	code      *Code
	countdown *time.Timer
	confirm   *time.Timer
}

func NewController(session Session, deadlines DeadlineStore, renderer CodeRenderer, checker StatusChecker, cfg Config, cb Callbacks, logger *zap.Logger) *Controller {
	confirmDelay := cfg.ConfirmDelay
	if confirmDelay <= 0 {
		confirmDelay = DefaultConfirmDelay
	}
	return &Controller{
		session:      session,
		deadlines:    deadlines,
		renderer:     renderer,
		poller:       NewPoller(checker, cfg.PollInterval, logger),
		logger:       logger,
		cb:           cb,
		confirmDelay: confirmDelay,
		statusCh:     make(chan Status, 1),
		done:         make(chan struct{}),
		state:        StateIdle,
	}
}

// Start moves the controller into AwaitingPayment: it fixes the
// deadline (resuming a persisted one if the session was already
// started before a restart), kicks off code rendering, and begins
// polling. ctx scopes the whole confirmation, not a single request;
// cancelling it tears the controller down like Dispose.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	expiresAt, err := c.deadlines.Ensure(ctx, c.session.ID, c.session.Window)
	if err != nil {
		return fmt.Errorf("payment: ensuring deadline for session %s: %w", c.session.ID, err)
	}
	// The persisted entry can age out (TTL) after the window closes; a
	// re-ensured deadline must never outlive the session's own window.
	if latest := c.session.CreatedAt.Add(c.session.Window); !c.session.CreatedAt.IsZero() && expiresAt.After(latest) {
		expiresAt = latest
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return fmt.Errorf("payment: controller for session %s is disposed", c.session.ID)
	}
	c.state = StateAwaiting
	c.expiresAt = expiresAt
	ctx, c.cancel = context.WithCancel(ctx)
	// A resumed session past its deadline gets a non-positive duration
	// and the timer fires immediately.
	c.countdown = time.NewTimer(time.Until(expiresAt))
	c.mu.Unlock()

	c.logger.Info("payment confirmation started",
		zap.String("session_id", c.session.ID),
		zap.String("booking_id", c.session.BookingID),
		zap.String("kind", string(c.session.Kind)),
		zap.Time("expires_at", expiresAt),
	)

	go c.renderCode()

	if err := c.poller.Start(ctx, c.session.ID, c.session.BookingID, c.deliver); err != nil {
		c.Dispose()
		return err
	}

	go c.run(ctx)
	return nil
}

// deliver hands a poller report to the run loop. Once the loop has
// exited (terminal state or dispose) reports are dropped.
func (c *Controller) deliver(st Status) {
	select {
	case c.statusCh <- st:
	case <-c.done:
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-c.statusCh:
			if c.apply(st) {
				return
			}
		case <-c.countdown.C:
			// A capture report that landed in the same pass as the
			// countdown hitting zero must win: a payment arriving at
			// the wire in the final instant is not discarded as
			// expired.
			select {
			case st := <-c.statusCh:
				if c.apply(st) {
					return
				}
			default:
			}
			if c.expire() {
				return
			}
		}
	}
}

// apply processes one poller report. Returns true once a terminal state
// is reached.
func (c *Controller) apply(st Status) bool {
	if st == StatusPending || st == StatusExpired {
		// Expired is derived locally, never accepted from a provider.
		return false
	}

	c.mu.Lock()
	if c.settled || c.state != StateAwaiting {
		c.mu.Unlock()
		return true
	}
	switch st {
	case StatusCaptured:
		c.state = StateCaptured
	default: // failed, cancelled
		c.state = StateFailed
	}
	c.settled = true
	c.stopCountdownLocked()
	c.mu.Unlock()

	c.poller.Stop()
	c.clearDeadline()

	if st == StatusCaptured {
		c.logger.Info("payment captured",
			zap.String("session_id", c.session.ID),
			zap.String("booking_id", c.session.BookingID),
		)
		c.mu.Lock()
		if !c.disposed {
			c.confirm = time.AfterFunc(c.confirmDelay, func() {
				if c.cb.OnCaptured != nil {
					c.cb.OnCaptured(c.session)
				}
			})
		}
		c.mu.Unlock()
	} else {
		c.logger.Info("payment failed",
			zap.String("session_id", c.session.ID),
			zap.String("booking_id", c.session.BookingID),
			zap.String("status", string(st)),
		)
		if c.cb.OnFailed != nil {
			c.cb.OnFailed(c.session, st)
		}
	}
	return true
}

// expire handles the countdown reaching zero while still awaiting.
func (c *Controller) expire() bool {
	c.mu.Lock()
	if c.settled || c.state != StateAwaiting {
		c.mu.Unlock()
		return true
	}
	c.state = StateExpired
	c.settled = true
	c.mu.Unlock()

	c.poller.Stop()
	c.clearDeadline()

	c.logger.Info("payment window expired",
		zap.String("session_id", c.session.ID),
		zap.String("booking_id", c.session.BookingID),
	)
	if c.cb.OnExpired != nil {
		c.cb.OnExpired(c.session)
	}
	return true
}

// RecheckNow triggers an out-of-band status check, the "I have paid"
// affordance. It is subject to the poller's overlap guard and is a
// no-op once a terminal state is reached.
func (c *Controller) RecheckNow() {
	c.mu.Lock()
	awaiting := c.state == StateAwaiting
	c.mu.Unlock()
	if awaiting {
		c.poller.Recheck()
	}
}

// Dispose tears the controller down regardless of state: poller
// stopped, countdown and confirmation timers cancelled. It never clears
// a persisted deadline for a non-terminal session, so an interrupted
// confirmation resumes its original countdown. Idempotent.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	cancel := c.cancel
	c.stopCountdownLocked()
	if c.confirm != nil {
		c.confirm.Stop()
	}
	c.mu.Unlock()

	c.poller.Stop()
	if cancel != nil {
		cancel()
	}
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the immutable session this controller drives.
func (c *Controller) Session() Session {
	return c.session
}

// Remaining returns how much of the payment window is left. Zero before
// Start and after the deadline passed.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	expiresAt := c.expiresAt
	c.mu.Unlock()
	if expiresAt.IsZero() {
		return 0
	}
	if rem := time.Until(expiresAt); rem > 0 {
		return rem
	}
	return 0
}

// Code returns the rendered payment code, or nil while rendering is
// still in progress or the payload is not yet available.
func (c *Controller) Code() *Code {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *Controller) renderCode() {
	code, err := c.renderer.Render(c.session.PayloadText)
	if err != nil {
		c.logger.Warn("payment code rendering failed",
			zap.String("session_id", c.session.ID),
			zap.Error(err),
		)
		return
	}
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
}

func (c *Controller) stopCountdownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
	}
}

// clearDeadline removes the persisted deadline entry. Called exactly
// once, from the terminal transition that set settled. Runs on its own
// context because the controller's may already be cancelled.
func (c *Controller) clearDeadline() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.deadlines.Clear(ctx, c.session.ID); err != nil {
		c.logger.Warn("clearing persisted deadline failed",
			zap.String("session_id", c.session.ID),
			zap.Error(err),
		)
	}
}
