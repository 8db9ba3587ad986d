package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Router(bookings BookingService, catalog CatalogService, checker IntegrityChecker, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(log), AccessLog(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", HeaderIdempotencyKey, HeaderUserID},
		ExposeHeaders:    []string{"Content-Length", HeaderIdempotencyKey, HeaderReplayed, "Retry-After"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	bookingHandler := NewBookingHandler(bookings, log)
	catalogHandler := NewCatalogHandler(catalog, checker, log)

	api := r.Group("/api/v1")
	{
		api.POST("/bookings", bookingHandler.CreateBooking)
		api.GET("/bookings/:id", bookingHandler.GetBooking)
		api.GET("/users/:id/bookings", bookingHandler.ListUserBookings)
		api.POST("/quotes", bookingHandler.Quote)
		api.GET("/room-categories", catalogHandler.ListRoomCategories)
		api.GET("/room-categories/:id", catalogHandler.GetRoomCategory)
		api.GET("/room-categories/:id/availability", bookingHandler.Availability)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/room-categories", catalogHandler.CreateRoomCategory)
		admin.PATCH("/room-categories/:id", catalogHandler.UpdateRoomCategory)

		admin.GET("/special-days", catalogHandler.ListSpecialDays)
		admin.POST("/special-days", catalogHandler.CreateSpecialDay)
		admin.PUT("/special-days/:id", catalogHandler.UpdateSpecialDay)
		admin.PUT("/special-days/:id/active", catalogHandler.SetSpecialDayActive)

		admin.GET("/deposit-policies", catalogHandler.ListDepositPolicies)
		admin.POST("/deposit-policies", catalogHandler.CreateDepositPolicy)
		admin.PUT("/deposit-policies/:id", catalogHandler.UpdateDepositPolicy)
		admin.PUT("/deposit-policies/:id/active", catalogHandler.SetDepositPolicyActive)

		admin.GET("/integrity", catalogHandler.Integrity)
	}

	return r
}
