package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the append-only record of a payment outcome. One row
// is written per terminal payment transition; rows are never updated.
type Transaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	SessionID string    `gorm:"type:varchar(64);index;not null" json:"session_id"`
	Kind      string    `gorm:"type:varchar(20);not null" json:"kind"` // deposit | extension
	Amount    int64     `gorm:"not null" json:"amount"`                // in cents
	Currency  string    `gorm:"type:varchar(10);not null" json:"currency"`
	Outcome   string    `gorm:"type:varchar(20);not null" json:"outcome"` // captured | expired | failed | cancelled
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
