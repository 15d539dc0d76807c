package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking statuses
const (
	BookingPendingPayment = "pending_payment"
	BookingActive         = "active"
	BookingCompleted      = "completed"
	BookingCancelled      = "cancelled"
	BookingExpired        = "expired"
)

type Booking struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	VehicleID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"vehicle_id"`
	StartTime     time.Time      `gorm:"not null" json:"start_time"`
	EndTime       time.Time      `gorm:"not null" json:"end_time"`
	Status        string         `gorm:"type:varchar(30);not null;index" json:"status"`
	DepositAmount int64          `gorm:"not null" json:"deposit_amount"` // in cents
	Currency      string         `gorm:"type:varchar(10);not null" json:"currency"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Vehicle statuses
const (
	VehicleAvailable   = "available"
	VehicleRented      = "rented"
	VehicleMaintenance = "maintenance"
)

type Vehicle struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Plate        string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"plate"`
	Model        string    `gorm:"type:varchar(100);not null" json:"model"`
	StationID    string    `gorm:"type:varchar(64);index" json:"station_id"`
	BatteryLevel int       `json:"battery_level"`
	HourlyRate   int64     `gorm:"not null" json:"hourly_rate"` // in cents
	Status       string    `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
