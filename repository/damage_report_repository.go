package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltride/rental-backend/models"
)

type DamageReportRepository interface {
	Create(ctx context.Context, report *models.DamageReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DamageReport, error)
	FindAll(ctx context.Context, status string, page, pageSize int) ([]models.DamageReport, int64, error)
	Adjudicate(ctx context.Context, id uuid.UUID, status string, staffID uuid.UUID, note string) error
}

type gormDamageReportRepo struct {
	db *gorm.DB
}

func NewGormDamageReportRepo(db *gorm.DB) DamageReportRepository {
	return &gormDamageReportRepo{db: db}
}

func (r *gormDamageReportRepo) Create(ctx context.Context, report *models.DamageReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *gormDamageReportRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DamageReport, error) {
	var report models.DamageReport
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *gormDamageReportRepo) FindAll(ctx context.Context, status string, page, pageSize int) ([]models.DamageReport, int64, error) {
	var reports []models.DamageReport
	var total int64

	query := r.db.WithContext(ctx).Model(&models.DamageReport{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *gormDamageReportRepo) Adjudicate(ctx context.Context, id uuid.UUID, status string, staffID uuid.UUID, note string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.DamageReport{}).
		Where("id = ? AND status = ?", id, models.DamageOpen).
		Updates(map[string]interface{}{
			"status":            status,
			"adjudicated_by":    staffID,
			"adjudication_note": note,
			"adjudicated_at":    &now,
		}).Error
}
