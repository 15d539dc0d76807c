package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltride/rental-backend/models"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error)
	MarkCaptured(ctx context.Context, sessionID string) error
	MarkFailed(ctx context.Context, sessionID string, status string) error
	// ProviderRefByBookingID satisfies provider.ProviderRefLookup for
	// the Stripe status checker.
	ProviderRefByBookingID(ctx context.Context, bookingID string) (string, error)
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).
		Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *gormPaymentRepo) MarkCaptured(ctx context.Context, sessionID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":      "captured",
			"captured_at": &now,
		}).Error
}

func (r *gormPaymentRepo) MarkFailed(ctx context.Context, sessionID string, status string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":    status,
			"failed_at": &now,
		}).Error
}

func (r *gormPaymentRepo) ProviderRefByBookingID(ctx context.Context, bookingID string) (string, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, "pending").
		Order("created_at DESC").First(&payment).Error
	if err != nil {
		return "", err
	}
	if payment.StripePaymentID == nil {
		return "", fmt.Errorf("repository: payment %s has no provider reference", payment.SessionID)
	}
	return *payment.StripePaymentID, nil
}
