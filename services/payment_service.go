package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltride/rental-backend/apperrors"
	"github.com/voltride/rental-backend/kafka"
	"github.com/voltride/rental-backend/metrics"
	"github.com/voltride/rental-backend/models"
	"github.com/voltride/rental-backend/payment"
	"github.com/voltride/rental-backend/provider"
	"github.com/voltride/rental-backend/repository"
)

// EventProducer publishes terminal payment events. Satisfied by the
// kafka producer; nil-able for deployments without a broker.
type EventProducer interface {
	SendPaymentEvent(event kafka.PaymentEvent) error
}

// SessionHooks are domain side effects supplied by the caller of
// OpenSession, invoked after the payment service's own bookkeeping on
// the corresponding terminal transition.
type SessionHooks struct {
	OnCaptured func(payment.Session)
	OnExpired  func(payment.Session)
	OnFailed   func(payment.Session)
}

// OpenSessionSpec describes a payment attempt to open. The window is
// explicit: deposit and extension windows come from configuration at
// the call site, never from a default inside the payment machinery.
type OpenSessionSpec struct {
	Booking *models.Booking
	Kind    payment.Kind
	Amount  int64
	Window  time.Duration
	Hooks   SessionHooks
}

// SessionInfo is what the HTTP layer returns to a client that just
// opened a payment session.
type SessionInfo struct {
	SessionID   string `json:"session_id"`
	BookingID   string `json:"booking_id"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	ExpiresIn   int64  `json:"expires_in_seconds"`
}

// SessionStatus is the live confirmation view: machine state plus the
// remaining window, which survives process restarts via the deadline
// store.
type SessionStatus struct {
	SessionID        string `json:"session_id"`
	State            string `json:"state"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	CodeReady        bool   `json:"code_ready"`
	CodeFallback     string `json:"code_fallback,omitempty"`
	CheckoutURL      string `json:"checkout_url,omitempty"`
}

// PaymentService owns the lifecycle of payment confirmations: it opens
// sessions against the gateway, runs one controller per session, and
// turns terminal transitions into rows, events and metrics.
type PaymentService struct {
	gateway   provider.Gateway
	checker   payment.StatusChecker
	deadlines payment.DeadlineStore
	renderer  payment.CodeRenderer
	registry  *payment.Registry
	payments  repository.PaymentRepository
	txs       repository.TransactionRepository
	producer  EventProducer
	cfg       payment.Config
	logger    *zap.Logger

	// baseCtx scopes all controllers; cancelled on shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc

	// hooks for sessions opened by this process; resolver rebuilds
	// them for sessions resumed after a restart.
	hooksMu  sync.Mutex
	hooks    map[string]SessionHooks
	resolver func(payment.Session) SessionHooks
}

func NewPaymentService(
	gateway provider.Gateway,
	checker payment.StatusChecker,
	deadlines payment.DeadlineStore,
	renderer payment.CodeRenderer,
	payments repository.PaymentRepository,
	txs repository.TransactionRepository,
	producer EventProducer,
	cfg payment.Config,
	logger *zap.Logger,
) *PaymentService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PaymentService{
		gateway:   gateway,
		checker:   &instrumentedChecker{inner: checker},
		deadlines: deadlines,
		renderer:  renderer,
		registry:  payment.NewRegistry(),
		payments:  payments,
		txs:       txs,
		producer:  producer,
		cfg:       cfg,
		logger:    logger,
		baseCtx:   ctx,
		cancel:    cancel,
		hooks:     make(map[string]SessionHooks),
	}
}

// SetHookResolver registers the function that reconstructs domain
// hooks for sessions resumed without their original OpenSession call,
// so a capture on a resumed session still applies its booking side
// effects.
func (s *PaymentService) SetHookResolver(resolver func(payment.Session) SessionHooks) {
	s.hooksMu.Lock()
	s.resolver = resolver
	s.hooksMu.Unlock()
}

// OpenSession creates a gateway intent, persists the attempt, and
// starts the confirmation controller for it.
func (s *PaymentService) OpenSession(ctx context.Context, spec OpenSessionSpec) (*SessionInfo, error) {
	intent, err := s.gateway.CreateIntent(ctx, spec.Booking.ID.String(), spec.Amount, spec.Booking.Currency)
	if err != nil {
		return nil, fmt.Errorf("opening payment intent: %w", err)
	}

	sess, err := payment.NewSession(
		spec.Booking.ID.String(),
		spec.Kind,
		spec.Amount,
		intent.PayloadText,
		intent.CheckoutURL,
		spec.Window,
	)
	if err != nil {
		return nil, err
	}

	row := &models.Payment{
		SessionID:     sess.ID,
		BookingID:     spec.Booking.ID,
		Kind:          string(sess.Kind),
		Amount:        sess.AmountDue,
		Currency:      spec.Booking.Currency,
		Status:        string(payment.StatusPending),
		PayloadText:   sess.PayloadText,
		WindowSeconds: int64(sess.Window / time.Second),
	}
	if intent.CheckoutURL != "" {
		row.CheckoutURL = &intent.CheckoutURL
	}
	if intent.ProviderRef != "" {
		row.StripePaymentID = &intent.ProviderRef
	}
	if err := s.payments.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("persisting payment attempt: %w", err)
	}

	s.setHooks(sess.ID, spec.Hooks)
	if err := s.startController(sess); err != nil {
		s.clearHooks(sess.ID)
		return nil, err
	}

	metrics.SessionsStarted.Inc()
	return &SessionInfo{
		SessionID:   sess.ID,
		BookingID:   sess.BookingID,
		Kind:        string(sess.Kind),
		Amount:      sess.AmountDue,
		Currency:    spec.Booking.Currency,
		CheckoutURL: sess.CheckoutURL,
		ExpiresIn:   int64(sess.Window / time.Second),
	}, nil
}

// Status reports the live state of a session. A pending session with no
// in-memory controller (the process restarted mid-countdown) is resumed
// first, picking up its persisted deadline.
func (s *PaymentService) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	ctrl, err := s.controllerFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{
		SessionID:        sessionID,
		State:            string(ctrl.State()),
		RemainingSeconds: int64(ctrl.Remaining() / time.Second),
		CheckoutURL:      ctrl.Session().CheckoutURL,
	}
	if code := ctrl.Code(); code != nil {
		status.CodeReady = code.PNG != nil
		status.CodeFallback = code.Fallback
	}
	return status, nil
}

// Code returns the rendered payment code PNG, or the raw-payload
// fallback when rendering degraded, or neither while rendering is still
// in flight.
func (s *PaymentService) Code(ctx context.Context, sessionID string) (*payment.Code, error) {
	ctrl, err := s.controllerFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.Code(), nil
}

// Recheck triggers the "I have paid" out-of-band status check.
func (s *PaymentService) Recheck(ctx context.Context, sessionID string) error {
	ctrl, err := s.controllerFor(ctx, sessionID)
	if err != nil {
		return err
	}
	ctrl.RecheckNow()
	return nil
}

// Dispose tears down a session's controller without settling it: the
// persisted deadline stays, so the session resumes on the next Status
// call or after a restart.
func (s *PaymentService) Dispose(sessionID string) {
	if ctrl, ok := s.registry.Get(sessionID); ok {
		ctrl.Dispose()
		s.registry.Remove(sessionID)
	}
	s.clearHooks(sessionID)
}

// DisposeForBooking tears down all in-flight sessions of a booking,
// e.g. when the booking is cancelled.
func (s *PaymentService) DisposeForBooking(ctx context.Context, bookingID uuid.UUID) {
	rows, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		s.logger.Warn("listing payments for booking failed", zap.Error(err))
		return
	}
	for _, row := range rows {
		if row.Status == string(payment.StatusPending) {
			s.Dispose(row.SessionID)
		}
	}
}

// Shutdown releases every live controller. Deadlines stay persisted so
// pending sessions resume after restart.
func (s *PaymentService) Shutdown() {
	s.cancel()
	s.registry.DisposeAll()
}

func (s *PaymentService) startController(sess payment.Session) error {
	ctrl := payment.NewController(sess, s.deadlines, s.renderer, s.checker, s.cfg, payment.Callbacks{
		OnCaptured: s.onCaptured,
		OnExpired:  s.onExpired,
		OnFailed:   s.onFailed,
	}, s.logger)

	if err := s.registry.Add(ctrl); err != nil {
		return err
	}
	if err := ctrl.Start(s.baseCtx); err != nil {
		s.registry.Remove(sess.ID)
		return err
	}
	return nil
}

// controllerFor finds the live controller for a session, resuming a
// pending one whose controller died with a previous process.
func (s *PaymentService) controllerFor(ctx context.Context, sessionID string) (*payment.Controller, error) {
	if ctrl, ok := s.registry.Get(sessionID); ok {
		return ctrl, nil
	}

	row, err := s.payments.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if row.Status != string(payment.StatusPending) {
		return nil, apperrors.ErrSessionTerminal
	}

	sess := payment.Session{
		ID:          row.SessionID,
		BookingID:   row.BookingID.String(),
		Kind:        payment.Kind(row.Kind),
		AmountDue:   row.Amount,
		PayloadText: row.PayloadText,
		CreatedAt:   row.CreatedAt,
		Window:      time.Duration(row.WindowSeconds) * time.Second,
	}
	if row.CheckoutURL != nil {
		sess.CheckoutURL = *row.CheckoutURL
	}

	s.hooksMu.Lock()
	resolver := s.resolver
	s.hooksMu.Unlock()
	if resolver != nil {
		s.setHooks(sess.ID, resolver(sess))
	}

	s.logger.Info("resuming payment session",
		zap.String("session_id", sessionID),
		zap.String("booking_id", sess.BookingID),
	)
	if err := s.startController(sess); err != nil {
		if errors.Is(err, payment.ErrControllerActive) {
			// Lost a resume race; the winner's controller serves both
			// callers.
			if ctrl, ok := s.registry.Get(sessionID); ok {
				return ctrl, nil
			}
		}
		return nil, err
	}
	ctrl, _ := s.registry.Get(sessionID)
	return ctrl, nil
}

func (s *PaymentService) onCaptured(sess payment.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.payments.MarkCaptured(ctx, sess.ID); err != nil {
		s.logger.Error("marking payment captured failed",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
	s.settle(ctx, sess, string(payment.StatusCaptured))

	if hooks, ok := s.getHooks(sess.ID); ok && hooks.OnCaptured != nil {
		hooks.OnCaptured(sess)
	}
	s.finish(sess.ID)
}

func (s *PaymentService) onExpired(sess payment.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.payments.MarkFailed(ctx, sess.ID, string(payment.StatusExpired)); err != nil {
		s.logger.Error("marking payment expired failed",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
	s.settle(ctx, sess, string(payment.StatusExpired))

	if hooks, ok := s.getHooks(sess.ID); ok && hooks.OnExpired != nil {
		hooks.OnExpired(sess)
	}
	s.finish(sess.ID)
}

func (s *PaymentService) onFailed(sess payment.Session, st payment.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.payments.MarkFailed(ctx, sess.ID, string(st)); err != nil {
		s.logger.Error("marking payment failed failed",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
	s.settle(ctx, sess, string(st))

	if hooks, ok := s.getHooks(sess.ID); ok && hooks.OnFailed != nil {
		hooks.OnFailed(sess)
	}
	s.finish(sess.ID)
}

// settle writes the append-only transaction row, publishes the event,
// and counts the outcome.
func (s *PaymentService) settle(ctx context.Context, sess payment.Session, outcome string) {
	bookingID, err := uuid.Parse(sess.BookingID)
	if err != nil {
		s.logger.Error("invalid booking id on session",
			zap.String("session_id", sess.ID), zap.Error(err))
		return
	}

	currency := "usd"
	if row, err := s.payments.FindBySessionID(ctx, sess.ID); err == nil {
		currency = row.Currency
	}

	tx := &models.Transaction{
		ID:        uuid.New(),
		BookingID: bookingID,
		SessionID: sess.ID,
		Kind:      string(sess.Kind),
		Amount:    sess.AmountDue,
		Currency:  currency,
		Outcome:   outcome,
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		s.logger.Error("writing transaction failed",
			zap.String("session_id", sess.ID), zap.Error(err))
	}

	if s.producer != nil {
		event := kafka.PaymentEvent{
			Type:      "payment_" + outcome,
			BookingID: sess.BookingID,
			SessionID: sess.ID,
			Kind:      string(sess.Kind),
			Amount:    sess.AmountDue,
			Currency:  currency,
			Timestamp: time.Now().UTC(),
		}
		if err := s.producer.SendPaymentEvent(event); err != nil {
			s.logger.Warn("publishing payment event failed",
				zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	metrics.Outcomes.WithLabelValues(outcome).Inc()
}

func (s *PaymentService) finish(sessionID string) {
	s.registry.Remove(sessionID)
	s.clearHooks(sessionID)
}

func (s *PaymentService) setHooks(sessionID string, hooks SessionHooks) {
	s.hooksMu.Lock()
	s.hooks[sessionID] = hooks
	s.hooksMu.Unlock()
}

func (s *PaymentService) getHooks(sessionID string) (SessionHooks, bool) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	hooks, ok := s.hooks[sessionID]
	return hooks, ok
}

func (s *PaymentService) clearHooks(sessionID string) {
	s.hooksMu.Lock()
	delete(s.hooks, sessionID)
	s.hooksMu.Unlock()
}

// instrumentedChecker counts transport-level status check failures.
type instrumentedChecker struct {
	inner payment.StatusChecker
}

func (c *instrumentedChecker) Check(ctx context.Context, bookingID string) (string, error) {
	raw, err := c.inner.Check(ctx, bookingID)
	if err != nil {
		metrics.StatusCheckErrors.Inc()
	}
	return raw, err
}
