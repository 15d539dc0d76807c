package payment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voltride/rental-backend/payment"
)

func TestNewSession(t *testing.T) {
	sess, err := payment.NewSession("booking-1", payment.KindDeposit, 5000, "pay-me", "https://checkout", 15*time.Minute)
	assert.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "booking-1", sess.BookingID)
	assert.Equal(t, payment.KindDeposit, sess.Kind)
	assert.Equal(t, int64(5000), sess.AmountDue)
	assert.Equal(t, 15*time.Minute, sess.Window)
}

func TestNewSession_UniqueIDs(t *testing.T) {
	a, err := payment.NewSession("booking-1", payment.KindDeposit, 5000, "p", "", time.Minute)
	assert.NoError(t, err)
	b, err := payment.NewSession("booking-1", payment.KindDeposit, 5000, "p", "", time.Minute)
	assert.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewSession_Validation(t *testing.T) {
	_, err := payment.NewSession("", payment.KindDeposit, 5000, "p", "", time.Minute)
	assert.Error(t, err)

	_, err = payment.NewSession("booking-1", payment.Kind("refund"), 5000, "p", "", time.Minute)
	assert.Error(t, err)

	_, err = payment.NewSession("booking-1", payment.KindExtension, 0, "p", "", time.Minute)
	assert.Error(t, err)

	_, err = payment.NewSession("booking-1", payment.KindExtension, 5000, "p", "", 0)
	assert.Error(t, err)
}
