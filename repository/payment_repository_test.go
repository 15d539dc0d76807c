package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voltride/rental-backend/models"
	"github.com/voltride/rental-backend/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	assert.NoError(t, err)
	return gormDB, mock
}

func TestPaymentCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	payment := &models.Payment{
		SessionID:     uuid.NewString(),
		BookingID:     uuid.New(),
		Kind:          "deposit",
		Amount:        5000,
		Currency:      "usd",
		Status:        "pending",
		PayloadText:   "pi_secret",
		WindowSeconds: 900,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "payments"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), payment)
	assert.NoError(t, err)
}

func TestPaymentFindBySessionID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	sessionID := uuid.NewString()
	bookingID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"session_id", "booking_id", "kind", "amount", "currency", "status", "payload_text", "window_seconds", "created_at", "updated_at"}).
		AddRow(sessionID, bookingID, "deposit", 5000, "usd", "pending", "pi_secret", 900, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments"`)).
		WillReturnRows(rows)

	p, err := repo.FindBySessionID(context.Background(), sessionID)
	assert.NoError(t, err)
	assert.Equal(t, sessionID, p.SessionID)
	assert.Equal(t, int64(900), p.WindowSeconds)
}

func TestPaymentFindBySessionID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	p, err := repo.FindBySessionID(context.Background(), "missing")
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestPaymentMarkCaptured(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payments"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.MarkCaptured(context.Background(), uuid.NewString())
	assert.NoError(t, err)
}

func TestPaymentMarkFailed(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payments"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.MarkFailed(context.Background(), uuid.NewString(), "expired")
	assert.NoError(t, err)
}

func TestProviderRefByBookingID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	bookingID := uuid.New()
	ref := "pi_123"
	rows := sqlmock.NewRows([]string{"session_id", "booking_id", "status", "stripe_payment_id"}).
		AddRow(uuid.NewString(), bookingID, "pending", ref)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments"`)).
		WillReturnRows(rows)

	got, err := repo.ProviderRefByBookingID(context.Background(), bookingID.String())
	assert.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestProviderRefByBookingID_NoReference(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepo(gormDB)

	rows := sqlmock.NewRows([]string{"session_id", "booking_id", "status"}).
		AddRow(uuid.NewString(), uuid.New(), "pending")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments"`)).
		WillReturnRows(rows)

	_, err := repo.ProviderRefByBookingID(context.Background(), uuid.NewString())
	assert.Error(t, err)
}
