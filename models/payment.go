package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment is the persisted row behind an in-flight payment session. The
// session itself (and its deadline) lives in the payment package; this
// row records the attempt for history and holds the provider reference
// the status checker needs.
type Payment struct {
	SessionID       string     `gorm:"type:varchar(64);primaryKey" json:"session_id"`
	BookingID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"booking_id"`
	Kind            string     `gorm:"type:varchar(20);not null" json:"kind"`
	Amount          int64      `gorm:"not null" json:"amount"` // in cents
	Currency        string     `gorm:"type:varchar(10);not null" json:"currency"`
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status"`
	PayloadText     string     `gorm:"type:text" json:"-"`
	WindowSeconds   int64      `gorm:"not null" json:"window_seconds"`
	CheckoutURL     *string    `gorm:"type:varchar(1024)" json:"checkout_url,omitempty"`
	StripePaymentID *string    `gorm:"uniqueIndex" json:"-"`
	CapturedAt      *time.Time `json:"captured_at,omitempty"`
	FailedAt        *time.Time `json:"failed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
