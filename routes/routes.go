package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/voltride/rental-backend/controllers"
	"github.com/voltride/rental-backend/metrics"
	"github.com/voltride/rental-backend/middleware"
	"github.com/voltride/rental-backend/models"
)

type Controllers struct {
	Bookings     *controllers.BookingController
	Payments     *controllers.PaymentController
	Vehicles     *controllers.VehicleController
	Damage       *controllers.DamageController
	Transactions *controllers.TransactionController
	Admin        *controllers.AdminController
}

func Register(r *gin.Engine, ctrls Controllers, jwtSecret string) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", metrics.Handler())

	auth := middleware.AuthMiddleware(jwtSecret)

	bookings := r.Group("/bookings")
	bookings.Use(auth)
	bookings.POST("", ctrls.Bookings.CreateBooking)
	bookings.GET("", ctrls.Bookings.ListBookings)
	bookings.GET("/:id", ctrls.Bookings.GetBooking)
	bookings.POST("/:id/extend", ctrls.Bookings.ExtendBooking)
	bookings.POST("/:id/cancel", ctrls.Bookings.CancelBooking)
	bookings.GET("/:id/transactions", ctrls.Transactions.ListByBooking)

	// Payment endpoints are polled by open confirmation modals, so they
	// carry their own rate limit.
	payments := r.Group("/payments")
	payments.Use(auth, middleware.RateLimitMiddleware(10, 20))
	payments.GET("/:sessionID/status", ctrls.Payments.GetStatus)
	payments.GET("/:sessionID/qr", ctrls.Payments.GetCode)
	payments.POST("/:sessionID/recheck", ctrls.Payments.Recheck)
	payments.DELETE("/:sessionID", ctrls.Payments.Dispose)

	vehicles := r.Group("/vehicles")
	vehicles.Use(auth)
	vehicles.GET("", ctrls.Vehicles.ListVehicles)
	vehicles.GET("/:id", ctrls.Vehicles.GetVehicle)

	damage := r.Group("/damage-reports")
	damage.Use(auth)
	damage.POST("", ctrls.Damage.CreateReport)
	damage.GET("", ctrls.Damage.ListReports)
	damage.POST("/:id/adjudicate", middleware.RequireRole(models.RoleOperator), ctrls.Damage.Adjudicate)

	transactions := r.Group("/transactions")
	transactions.Use(auth)
	transactions.GET("", ctrls.Transactions.ListTransactions)

	admin := r.Group("/admin")
	admin.Use(auth, middleware.RequireRole(models.RoleAdmin))
	admin.POST("/users", ctrls.Admin.CreateUser)
	admin.GET("/users", ctrls.Admin.ListUsers)
	admin.PATCH("/users/:id", ctrls.Admin.UpdateUser)
	admin.DELETE("/users/:id", ctrls.Admin.DeleteUser)
	admin.POST("/staff", ctrls.Admin.CreateStaff)
	admin.GET("/staff", ctrls.Admin.ListStaff)
	admin.PATCH("/staff/:id", ctrls.Admin.UpdateStaff)
	admin.DELETE("/staff/:id", ctrls.Admin.DeleteStaff)
}
