package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltride/rental-backend/apperrors"
	"github.com/voltride/rental-backend/models"
	"github.com/voltride/rental-backend/repository"
)

type DamageService struct {
	reports  repository.DamageReportRepository
	bookings repository.BookingRepository
	logger   *zap.Logger
}

func NewDamageService(reports repository.DamageReportRepository, bookings repository.BookingRepository, logger *zap.Logger) *DamageService {
	return &DamageService{reports: reports, bookings: bookings, logger: logger}
}

type CreateDamageReportRequest struct {
	BookingID     uuid.UUID
	ReportedBy    uuid.UUID
	Description   string
	PhotoURL      string
	EstimatedCost int64
}

func (s *DamageService) CreateReport(ctx context.Context, req CreateDamageReportRequest) (*models.DamageReport, error) {
	booking, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, apperrors.ErrBookingNotFound
	}

	report := &models.DamageReport{
		ID:            uuid.New(),
		BookingID:     booking.ID,
		VehicleID:     booking.VehicleID,
		ReportedBy:    req.ReportedBy,
		Description:   req.Description,
		PhotoURL:      req.PhotoURL,
		EstimatedCost: req.EstimatedCost,
		Status:        models.DamageOpen,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *DamageService) ListReports(ctx context.Context, status string, page, pageSize int) ([]models.DamageReport, int64, error) {
	return s.reports.FindAll(ctx, status, page, pageSize)
}

// Adjudicate settles an open report. Only open reports can be
// adjudicated; the decision is final.
func (s *DamageService) Adjudicate(ctx context.Context, reportID uuid.UUID, approve bool, staffID uuid.UUID, note string) (*models.DamageReport, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, apperrors.ErrNotFound
	}
	if report.Status != models.DamageOpen {
		return nil, apperrors.New(409, "damage report already adjudicated", nil)
	}

	status := models.DamageRejected
	if approve {
		status = models.DamageApproved
	}
	if err := s.reports.Adjudicate(ctx, reportID, status, staffID, note); err != nil {
		return nil, err
	}

	s.logger.Info("damage report adjudicated",
		zap.String("report_id", reportID.String()),
		zap.String("status", status),
		zap.String("staff_id", staffID.String()),
	)
	return s.reports.FindByID(ctx, reportID)
}
