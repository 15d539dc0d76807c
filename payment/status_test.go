package payment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voltride/rental-backend/payment"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want payment.Status
	}{
		{"captured", payment.StatusCaptured},
		{"paid", payment.StatusCaptured},
		{"settlement", payment.StatusCaptured},
		{"succeeded", payment.StatusCaptured},
		{"failed", payment.StatusFailed},
		{"deny", payment.StatusFailed},
		{"declined", payment.StatusFailed},
		{"cancelled", payment.StatusCancelled},
		{"canceled", payment.StatusCancelled},
		{"expire", payment.StatusCancelled},
		{"pending", payment.StatusPending},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, payment.Normalize(tc.raw), "raw=%q", tc.raw)
	}
}

func TestNormalize_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, payment.StatusCaptured, payment.Normalize("  PAID "))
	assert.Equal(t, payment.StatusFailed, payment.Normalize("Declined"))
}

func TestNormalize_UnknownFoldsToPending(t *testing.T) {
	assert.Equal(t, payment.StatusPending, payment.Normalize("requires_action"))
	assert.Equal(t, payment.StatusPending, payment.Normalize(""))
	assert.Equal(t, payment.StatusPending, payment.Normalize("banana"))
}

func TestTerminal(t *testing.T) {
	assert.False(t, payment.StatusPending.Terminal())
	assert.True(t, payment.StatusCaptured.Terminal())
	assert.True(t, payment.StatusFailed.Terminal())
	assert.True(t, payment.StatusCancelled.Terminal())
	assert.True(t, payment.StatusExpired.Terminal())
}
