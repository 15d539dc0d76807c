package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltride/rental-backend/models"
)

type VehicleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	FindAll(ctx context.Context, status string, page, pageSize int) ([]models.Vehicle, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type gormVehicleRepo struct {
	db *gorm.DB
}

func NewGormVehicleRepo(db *gorm.DB) VehicleRepository {
	return &gormVehicleRepo{db: db}
}

func (r *gormVehicleRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := r.db.WithContext(ctx).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *gormVehicleRepo) FindAll(ctx context.Context, status string, page, pageSize int) ([]models.Vehicle, int64, error) {
	var vehicles []models.Vehicle
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Vehicle{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("plate").Offset(offset).Limit(pageSize).Find(&vehicles).Error; err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

func (r *gormVehicleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Vehicle{}).Where("id = ?", id).
		Update("status", status).Error
}
