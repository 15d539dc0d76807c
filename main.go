package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voltride/rental-backend/apperrors"
	"github.com/voltride/rental-backend/config"
	"github.com/voltride/rental-backend/controllers"
	"github.com/voltride/rental-backend/database"
	"github.com/voltride/rental-backend/kafka"
	"github.com/voltride/rental-backend/logger"
	"github.com/voltride/rental-backend/metrics"
	"github.com/voltride/rental-backend/models"
	"github.com/voltride/rental-backend/payment"
	"github.com/voltride/rental-backend/provider"
	"github.com/voltride/rental-backend/repository"
	"github.com/voltride/rental-backend/routes"
	"github.com/voltride/rental-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[RentalBackend] ❌ Failed to load config:", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	db, err := database.ConnectPostgres(cfg, logger.Log,
		&models.User{},
		&models.Staff{},
		&models.Vehicle{},
		&models.Booking{},
		&models.Payment{},
		&models.Transaction{},
		&models.DamageReport{},
	)
	if err != nil {
		log.Fatal("[RentalBackend] ❌ Failed to connect to DB:", err)
	}
	defer database.Close()

	bookingRepo := repository.NewGormBookingRepo(db)
	vehicleRepo := repository.NewGormVehicleRepo(db)
	paymentRepo := repository.NewGormPaymentRepo(db)
	txRepo := repository.NewGormTransactionRepo(db)
	damageRepo := repository.NewGormDamageReportRepo(db)
	userRepo := repository.NewGormUserRepo(db)
	staffRepo := repository.NewGormStaffRepo(db)

	// Deadlines live in Redis so pending confirmation windows survive a
	// restart; without Redis they fall back to process memory.
	var deadlines payment.DeadlineStore = payment.NewMemoryDeadlineStore()
	redisClient := database.NewRedisClient(cfg.RedisURL, logger.Log)
	if redisClient != nil {
		deadlines = payment.NewRedisDeadlineStore(redisClient, logger.Log)
		defer redisClient.Close()
	}

	// Provider wiring: Stripe when an API key is configured, otherwise
	// the generic HTTP status endpoint.
	var gateway provider.Gateway
	var checker payment.StatusChecker
	if cfg.StripeSecretKey != "" {
		gateway = provider.NewStripeGateway(cfg.StripeSecretKey)
		checker = provider.NewStripeChecker(paymentRepo)
	} else {
		httpProvider := provider.NewHTTPChecker(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
		gateway = httpProvider
		checker = httpProvider
	}

	var producer services.EventProducer
	if cfg.KafkaBrokers != "" {
		kafkaProducer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer kafkaProducer.Close()
		producer = kafkaProducer
	}

	paymentSvc := services.NewPaymentService(
		gateway,
		checker,
		deadlines,
		payment.NewQRRenderer(cfg.QRCodeSize, logger.Log),
		paymentRepo,
		txRepo,
		producer,
		payment.Config{PollInterval: cfg.PollInterval, ConfirmDelay: cfg.ConfirmDelay},
		logger.Log,
	)
	bookingSvc := services.NewBookingService(bookingRepo, vehicleRepo, paymentSvc, cfg.DepositWindow, cfg.ExtensionWindow, logger.Log)
	damageSvc := services.NewDamageService(damageRepo, bookingRepo, logger.Log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(metrics.Middleware())
	r.Use(apperrors.ErrorMiddleware())

	routes.Register(r, routes.Controllers{
		Bookings:     &controllers.BookingController{Bookings: bookingSvc},
		Payments:     &controllers.PaymentController{Payments: paymentSvc},
		Vehicles:     &controllers.VehicleController{Vehicles: vehicleRepo},
		Damage:       &controllers.DamageController{Damage: damageSvc},
		Transactions: &controllers.TransactionController{Transactions: txRepo},
		Admin:        &controllers.AdminController{Users: userRepo, Staff: staffRepo},
	}, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("[RentalBackend] ✅ Running on port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("[RentalBackend] ❌ Server failed:", err)
		}
	}()

	<-ctx.Done()
	log.Println("[RentalBackend] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("[RentalBackend] ❌ Forced shutdown:", err)
	}

	// Pending sessions keep their persisted deadlines and resume on the
	// next boot.
	paymentSvc.Shutdown()
}
