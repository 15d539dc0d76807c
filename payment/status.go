package payment

import "strings"

// Status is the canonical payment status. Providers report their own
// vocabulary; everything funnels through Normalize so status comparison
// happens in exactly one place.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCaptured  Status = "captured"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	// StatusExpired is never reported by a provider. It is derived
	// locally when the payment window closes while still pending.
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCaptured, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

var statusTokens = map[string]Status{
	// success
	"captured":   StatusCaptured,
	"capture":    StatusCaptured,
	"paid":       StatusCaptured,
	"settlement": StatusCaptured,
	"succeeded":  StatusCaptured,
	"success":    StatusCaptured,
	"completed":  StatusCaptured,
	"complete":   StatusCaptured,

	// failure
	"failed":   StatusFailed,
	"failure":  StatusFailed,
	"deny":     StatusFailed,
	"denied":   StatusFailed,
	"declined": StatusFailed,

	// cancellation; providers that time out an intent on their side
	// report it here too
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
	"cancel":    StatusCancelled,
	"voided":    StatusCancelled,
	"expire":    StatusCancelled,
	"expired":   StatusCancelled,
}

// Normalize folds a provider status string into the canonical enum.
// Unrecognized tokens mean "no new information" and fold to pending so
// the next poll retries.
func Normalize(raw string) Status {
	if s, ok := statusTokens[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusPending
}
