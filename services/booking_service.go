package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltride/rental-backend/apperrors"
	"github.com/voltride/rental-backend/models"
	"github.com/voltride/rental-backend/payment"
	"github.com/voltride/rental-backend/repository"
)

// depositHours is how many hours of the vehicle's rate are held as the
// refundable deposit.
const depositHours = 4

// BookingService creates and manages bookings, delegating payment
// confirmation to the payment service. Booking state transitions driven
// by payment outcomes are supplied as session hooks so they run exactly
// once, on the terminal transition.
type BookingService struct {
	bookings repository.BookingRepository
	vehicles repository.VehicleRepository
	payments *PaymentService

	depositWindow   time.Duration
	extensionWindow time.Duration
	logger          *zap.Logger
}

func NewBookingService(
	bookings repository.BookingRepository,
	vehicles repository.VehicleRepository,
	payments *PaymentService,
	depositWindow, extensionWindow time.Duration,
	logger *zap.Logger,
) *BookingService {
	s := &BookingService{
		bookings:        bookings,
		vehicles:        vehicles,
		payments:        payments,
		depositWindow:   depositWindow,
		extensionWindow: extensionWindow,
		logger:          logger,
	}
	payments.SetHookResolver(s.resumeHooks)
	return s
}

type CreateBookingRequest struct {
	UserID    uuid.UUID
	VehicleID uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Currency  string
}

// CreateBooking persists a pending booking and opens its deposit
// payment session. The booking activates only when the deposit is
// captured.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, *SessionInfo, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, nil, apperrors.New(400, "booking end must be after start", nil)
	}

	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, nil, apperrors.ErrNotFound
	}
	if vehicle.Status != models.VehicleAvailable {
		return nil, nil, apperrors.ErrVehicleUnavailable
	}

	booking := &models.Booking{
		ID:            uuid.New(),
		UserID:        req.UserID,
		VehicleID:     req.VehicleID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Status:        models.BookingPendingPayment,
		DepositAmount: depositHours * vehicle.HourlyRate,
		Currency:      req.Currency,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, nil, fmt.Errorf("creating booking: %w", err)
	}

	info, err := s.payments.OpenSession(ctx, OpenSessionSpec{
		Booking: booking,
		Kind:    payment.KindDeposit,
		Amount:  booking.DepositAmount,
		Window:  s.depositWindow,
		Hooks: SessionHooks{
			OnCaptured: func(payment.Session) { s.activateBooking(booking.ID, booking.VehicleID) },
			OnExpired:  func(payment.Session) { s.expireBooking(booking.ID) },
		},
	})
	if err != nil {
		// The booking stays pending_payment; a retry opens a new session.
		return booking, nil, err
	}
	return booking, info, nil
}

// ExtendBooking opens an extension payment session; the booking's end
// time moves only when the extension payment is captured.
func (s *BookingService) ExtendBooking(ctx context.Context, bookingID uuid.UUID, newEndTime time.Time) (*SessionInfo, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, apperrors.ErrBookingNotFound
	}
	if booking.Status != models.BookingActive {
		return nil, apperrors.New(409, "only active bookings can be extended", nil)
	}
	if !newEndTime.After(booking.EndTime) {
		return nil, apperrors.New(400, "extension must move the end time forward", nil)
	}

	vehicle, err := s.vehicles.FindByID(ctx, booking.VehicleID)
	if err != nil {
		return nil, apperrors.ErrNotFound
	}

	addedHours := int64(newEndTime.Sub(booking.EndTime).Hours() + 0.999)
	amount := addedHours * vehicle.HourlyRate

	return s.payments.OpenSession(ctx, OpenSessionSpec{
		Booking: booking,
		Kind:    payment.KindExtension,
		Amount:  amount,
		Window:  s.extensionWindow,
		Hooks: SessionHooks{
			OnCaptured: func(payment.Session) { s.applyExtension(bookingID, newEndTime) },
		},
	})
}

// CancelBooking cancels a booking and tears down any in-flight payment
// session for it.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return apperrors.ErrBookingNotFound
	}
	if booking.Status == models.BookingCompleted || booking.Status == models.BookingCancelled {
		return apperrors.New(409, "booking already closed", nil)
	}

	s.payments.DisposeForBooking(ctx, bookingID)

	if err := s.bookings.UpdateStatus(ctx, bookingID, models.BookingCancelled); err != nil {
		return err
	}
	if booking.Status == models.BookingActive {
		if err := s.vehicles.UpdateStatus(ctx, booking.VehicleID, models.VehicleAvailable); err != nil {
			s.logger.Warn("releasing vehicle failed",
				zap.String("vehicle_id", booking.VehicleID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, status string, page, pageSize int) ([]models.Booking, int64, error) {
	return s.bookings.FindAll(ctx, status, page, pageSize)
}

func (s *BookingService) activateBooking(bookingID, vehicleID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.bookings.UpdateStatus(ctx, bookingID, models.BookingActive); err != nil {
		s.logger.Error("activating booking failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
		return
	}
	if err := s.vehicles.UpdateStatus(ctx, vehicleID, models.VehicleRented); err != nil {
		s.logger.Error("marking vehicle rented failed",
			zap.String("vehicle_id", vehicleID.String()), zap.Error(err))
	}
}

func (s *BookingService) expireBooking(bookingID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.bookings.UpdateStatus(ctx, bookingID, models.BookingExpired); err != nil {
		s.logger.Error("expiring booking failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}
}

// resumeHooks rebuilds the booking side effects for a payment session
// resumed after a restart, where the hooks supplied at OpenSession are
// gone with the old process.
func (s *BookingService) resumeHooks(sess payment.Session) SessionHooks {
	bookingID, err := uuid.Parse(sess.BookingID)
	if err != nil {
		s.logger.Error("invalid booking id on resumed session",
			zap.String("session_id", sess.ID), zap.Error(err))
		return SessionHooks{}
	}

	switch sess.Kind {
	case payment.KindDeposit:
		return SessionHooks{
			OnCaptured: func(payment.Session) { s.activateBookingByID(bookingID) },
			OnExpired:  func(payment.Session) { s.expireBooking(bookingID) },
		}
	case payment.KindExtension:
		amount := sess.AmountDue
		return SessionHooks{
			OnCaptured: func(payment.Session) { s.reapplyExtension(bookingID, amount) },
		}
	}
	return SessionHooks{}
}

func (s *BookingService) activateBookingByID(bookingID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		s.logger.Error("loading booking for activation failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
		return
	}
	s.activateBooking(booking.ID, booking.VehicleID)
}

// reapplyExtension recomputes the purchased hours from the session
// amount and the vehicle's rate; the requested end time itself is not
// persisted with the session.
func (s *BookingService) reapplyExtension(bookingID uuid.UUID, amount int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		s.logger.Error("loading booking for extension failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
		return
	}
	vehicle, err := s.vehicles.FindByID(ctx, booking.VehicleID)
	if err != nil || vehicle.HourlyRate <= 0 {
		s.logger.Error("loading vehicle rate for extension failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
		return
	}

	added := time.Duration(amount/vehicle.HourlyRate) * time.Hour
	if added <= 0 {
		return
	}
	s.applyExtension(bookingID, booking.EndTime.Add(added))
}

func (s *BookingService) applyExtension(bookingID uuid.UUID, newEndTime time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.bookings.UpdateEndTime(ctx, bookingID, newEndTime); err != nil {
		s.logger.Error("applying booking extension failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}
}
