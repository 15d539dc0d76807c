package models

import (
	"time"

	"github.com/google/uuid"
)

// Damage report statuses
const (
	DamageOpen     = "open"
	DamageApproved = "approved"
	DamageRejected = "rejected"
)

type DamageReport struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"booking_id"`
	VehicleID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"vehicle_id"`
	ReportedBy      uuid.UUID  `gorm:"type:uuid;not null" json:"reported_by"`
	Description     string     `gorm:"type:text;not null" json:"description"`
	PhotoURL        string     `gorm:"type:varchar(1024)" json:"photo_url"`
	EstimatedCost   int64      `json:"estimated_cost"` // in cents
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status"`
	AdjudicatedBy   *uuid.UUID `gorm:"type:uuid" json:"adjudicated_by,omitempty"`
	AdjudicationNote string    `gorm:"type:text" json:"adjudication_note"`
	AdjudicatedAt   *time.Time `json:"adjudicated_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
