package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/voltride/rental-backend/kafka"
	"github.com/voltride/rental-backend/models"
	"github.com/voltride/rental-backend/payment"
	"github.com/voltride/rental-backend/provider"
	"github.com/voltride/rental-backend/services"
)

// ---- mock gateway ----

type mockGateway struct {
	intent    provider.Intent
	intentErr error
}

func (m *mockGateway) CreateIntent(_ context.Context, _ string, _ int64, _ string) (provider.Intent, error) {
	return m.intent, m.intentErr
}

// ---- mock checker ----

type mockChecker struct {
	mu  sync.Mutex
	raw string
}

func (m *mockChecker) Check(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw, nil
}

func (m *mockChecker) set(raw string) {
	m.mu.Lock()
	m.raw = raw
	m.mu.Unlock()
}

// ---- mock payment repository ----

type mockPaymentRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.Payment
	createErr error
	captured  []string
	failed    map[string]string
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{
		rows:   make(map[string]*models.Payment),
		failed: make(map[string]string),
	}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	m.rows[p.SessionID] = p
	m.mu.Unlock()
	return nil
}

func (m *mockPaymentRepo) FindBySessionID(_ context.Context, sessionID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[sessionID]; ok {
		return p, nil
	}
	return nil, errors.New("record not found")
}

func (m *mockPaymentRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.rows {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) MarkCaptured(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, sessionID)
	if p, ok := m.rows[sessionID]; ok {
		p.Status = "captured"
	}
	return nil
}

func (m *mockPaymentRepo) MarkFailed(_ context.Context, sessionID string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[sessionID] = status
	if p, ok := m.rows[sessionID]; ok {
		p.Status = status
	}
	return nil
}

func (m *mockPaymentRepo) ProviderRefByBookingID(_ context.Context, _ string) (string, error) {
	return "", errors.New("no provider reference")
}

func (m *mockPaymentRepo) capturedSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.captured...)
}

func (m *mockPaymentRepo) failedStatus(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[sessionID]
}

// ---- mock transaction repository ----

type mockTxRepo struct {
	mu  sync.Mutex
	txs []models.Transaction
}

func (m *mockTxRepo) Create(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	m.txs = append(m.txs, *tx)
	m.mu.Unlock()
	return nil
}

func (m *mockTxRepo) FindByBookingID(_ context.Context, _ uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

func (m *mockTxRepo) FindAll(_ context.Context, _, _ int) ([]models.Transaction, int64, error) {
	return nil, 0, nil
}

func (m *mockTxRepo) all() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Transaction(nil), m.txs...)
}

// ---- mock event producer ----

type mockProducer struct {
	mu     sync.Mutex
	events []kafka.PaymentEvent
}

func (m *mockProducer) SendPaymentEvent(event kafka.PaymentEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *mockProducer) all() []kafka.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.PaymentEvent(nil), m.events...)
}

// ---- renderer stub ----

type stubRenderer struct{}

func (stubRenderer) Render(payloadText string) (*payment.Code, error) {
	if payloadText == "" {
		return nil, nil
	}
	return &payment.Code{PNG: []byte{1, 2, 3}}, nil
}

// ---- fixtures ----

func testBooking() *models.Booking {
	return &models.Booking{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		VehicleID: uuid.New(),
		Status:    models.BookingPendingPayment,
		Currency:  "usd",
	}
}

type paymentFixture struct {
	svc      *services.PaymentService
	gateway  *mockGateway
	checker  *mockChecker
	payments *mockPaymentRepo
	txs      *mockTxRepo
	producer *mockProducer
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		gateway: &mockGateway{
			intent: provider.Intent{ProviderRef: "pi_1", PayloadText: "pi_1_secret", CheckoutURL: "https://pay.example/1"},
		},
		checker:  &mockChecker{raw: "pending"},
		payments: newMockPaymentRepo(),
		txs:      &mockTxRepo{},
		producer: &mockProducer{},
	}
	f.svc = services.NewPaymentService(
		f.gateway,
		f.checker,
		payment.NewMemoryDeadlineStore(),
		stubRenderer{},
		f.payments,
		f.txs,
		f.producer,
		payment.Config{PollInterval: 10 * time.Millisecond, ConfirmDelay: 10 * time.Millisecond},
		zap.NewNop(),
	)
	return f
}

func openSession(t *testing.T, f *paymentFixture, booking *models.Booking, hooks services.SessionHooks) *services.SessionInfo {
	t.Helper()
	info, err := f.svc.OpenSession(context.Background(), services.OpenSessionSpec{
		Booking: booking,
		Kind:    payment.KindDeposit,
		Amount:  5000,
		Window:  time.Minute,
		Hooks:   hooks,
	})
	assert.NoError(t, err)
	assert.NotNil(t, info)
	return info
}

// ---- tests ----

func TestOpenSession_PersistsAttempt(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	booking := testBooking()
	info := openSession(t, f, booking, services.SessionHooks{})

	assert.Equal(t, booking.ID.String(), info.BookingID)
	assert.Equal(t, int64(5000), info.Amount)
	assert.Equal(t, "usd", info.Currency)
	assert.Equal(t, int64(60), info.ExpiresIn)
	assert.Equal(t, "https://pay.example/1", info.CheckoutURL)

	row, err := f.payments.FindBySessionID(context.Background(), info.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, "pending", row.Status)
	assert.Equal(t, "pi_1_secret", row.PayloadText)
	assert.Equal(t, int64(60), row.WindowSeconds)
}

func TestOpenSession_GatewayError(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()
	f.gateway.intentErr = errors.New("provider down")

	_, err := f.svc.OpenSession(context.Background(), services.OpenSessionSpec{
		Booking: testBooking(),
		Kind:    payment.KindDeposit,
		Amount:  5000,
		Window:  time.Minute,
	})
	assert.Error(t, err)
	assert.Empty(t, f.payments.rows)
}

func TestStatus_AwaitingSession(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	info := openSession(t, f, testBooking(), services.SessionHooks{})

	status, err := f.svc.Status(context.Background(), info.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, string(payment.StateAwaiting), status.State)
	assert.Greater(t, status.RemainingSeconds, int64(0))
}

func TestStatus_UnknownSession(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	_, err := f.svc.Status(context.Background(), "nope")
	assert.Error(t, err)
}

func TestCapture_SettlesOnceAndRunsHooks(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	hookFired := make(chan struct{}, 1)
	booking := testBooking()
	info := openSession(t, f, booking, services.SessionHooks{
		OnCaptured: func(payment.Session) { hookFired <- struct{}{} },
	})

	f.checker.set("paid")

	select {
	case <-hookFired:
	case <-time.After(2 * time.Second):
		t.Fatal("capture hook never fired")
	}

	assert.Equal(t, []string{info.SessionID}, f.payments.capturedSessions())

	txs := f.txs.all()
	if assert.Len(t, txs, 1) {
		assert.Equal(t, "captured", txs[0].Outcome)
		assert.Equal(t, info.SessionID, txs[0].SessionID)
		assert.Equal(t, "usd", txs[0].Currency)
	}

	events := f.producer.all()
	if assert.Len(t, events, 1) {
		assert.Equal(t, "payment_captured", events[0].Type)
		assert.Equal(t, booking.ID.String(), events[0].BookingID)
	}
}

func TestFailure_RecordsProviderStatus(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	failed := make(chan struct{}, 1)
	info := openSession(t, f, testBooking(), services.SessionHooks{
		OnFailed: func(payment.Session) { failed <- struct{}{} },
	})

	f.checker.set("declined")

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("failure hook never fired")
	}
	assert.Equal(t, "failed", f.payments.failedStatus(info.SessionID))
}

func TestResume_RebuildsControllerFromRow(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	info := openSession(t, f, testBooking(), services.SessionHooks{})

	// Simulate the process losing its in-memory controller.
	f.svc.Dispose(info.SessionID)

	status, err := f.svc.Status(context.Background(), info.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, string(payment.StateAwaiting), status.State)
	assert.Greater(t, status.RemainingSeconds, int64(0))
}

func TestResume_ConcurrentStatusCalls(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	info := openSession(t, f, testBooking(), services.SessionHooks{})
	f.svc.Dispose(info.SessionID)

	// Both callers race to rebuild the controller; the loser is served
	// by the winner's, never an error.
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Status(context.Background(), info.SessionID)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
}

func TestResume_TerminalSessionRefused(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	info := openSession(t, f, testBooking(), services.SessionHooks{})
	f.svc.Dispose(info.SessionID)

	assert.NoError(t, f.payments.MarkCaptured(context.Background(), info.SessionID))

	_, err := f.svc.Status(context.Background(), info.SessionID)
	assert.Error(t, err)
}

func TestCode_ReturnsRenderedPNG(t *testing.T) {
	f := newPaymentFixture()
	defer f.svc.Shutdown()

	info := openSession(t, f, testBooking(), services.SessionHooks{})

	deadline := time.Now().Add(time.Second)
	var code *payment.Code
	for time.Now().Before(deadline) {
		var err error
		code, err = f.svc.Code(context.Background(), info.SessionID)
		assert.NoError(t, err)
		if code != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.NotNil(t, code)
	assert.NotEmpty(t, code.PNG)
}
