package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes what a payment session is paying for.
type Kind string

const (
	KindDeposit   Kind = "deposit"
	KindExtension Kind = "extension"
)

// Session describes one payment attempt. It is immutable once created:
// a retry or a new payment window means a new session with a new ID,
// never a mutation of an old one.
type Session struct {
	ID          string
	BookingID   string
	Kind        Kind
	AmountDue   int64 // in cents
	PayloadText string
	CheckoutURL string
	CreatedAt   time.Time
	Window      time.Duration
}

// NewSession builds a session for a fresh payment attempt. The window is
// required and explicit: callers decide how long the payer gets, the
// payment machinery never defaults it.
func NewSession(bookingID string, kind Kind, amountDue int64, payloadText, checkoutURL string, window time.Duration) (Session, error) {
	if bookingID == "" {
		return Session{}, fmt.Errorf("payment: booking id is required")
	}
	if kind != KindDeposit && kind != KindExtension {
		return Session{}, fmt.Errorf("payment: unknown session kind %q", kind)
	}
	if amountDue <= 0 {
		return Session{}, fmt.Errorf("payment: amount due must be positive, got %d", amountDue)
	}
	if window <= 0 {
		return Session{}, fmt.Errorf("payment: window must be positive, got %s", window)
	}

	return Session{
		ID:          uuid.NewString(),
		BookingID:   bookingID,
		Kind:        kind,
		AmountDue:   amountDue,
		PayloadText: payloadText,
		CheckoutURL: checkoutURL,
		CreatedAt:   time.Now().UTC(),
		Window:      window,
	}, nil
}
