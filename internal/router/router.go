// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wellpont/wellpont-backend/internal/config"
	"github.com/wellpont/wellpont-backend/internal/handlers"
	"github.com/wellpont/wellpont-backend/internal/middleware"
	"github.com/wellpont/wellpont-backend/internal/services"
	"github.com/wellpont/wellpont-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	settingsService := services.NewSettingsService(db, cfg)
	notificationService := services.NewNotificationService(db)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		panic(err)
	}

	creditService := services.NewCreditService(db, settingsService, notificationService)
	settlementService := services.NewSettlementService(db, settingsService, notificationService)
	admissionService := services.NewAdmissionService(db, settingsService, creditService, settlementService, notificationService)
	cancellationService := services.NewCancellationService(db, settingsService, creditService, settlementService)
	voucherService := services.NewVoucherService(db)
	paymentService := services.NewPaymentService(db, cfg, settlementService, cancellationService)
	reportingService := services.NewReportingService(db, settingsService, creditService, storageService)

	// Initialize handlers
	accessHandler := handlers.NewAccessHandler(admissionService)
	voucherHandler := handlers.NewVoucherHandler(voucherService, cancellationService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(
		admissionService,
		creditService,
		settlementService,
		cancellationService,
		reportingService,
		settingsService,
		notificationService,
	)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Program access routes
		programs := v1.Group("/programs")
		programs.Use(middleware.AuthRequired())
		{
			programs.GET("/:id/access", accessHandler.GetAccess)
			programs.POST("/:id/admit", middleware.AdmissionRateLimit(), accessHandler.Admit)
			programs.GET("/:id/vouchers", voucherHandler.ListProgramVouchers)
		}

		// Voucher routes
		vouchers := v1.Group("/vouchers")
		vouchers.Use(middleware.AuthRequired())
		{
			vouchers.GET("", voucherHandler.ListMyVouchers)
			vouchers.GET("/:id", voucherHandler.GetVoucher)
			vouchers.POST("/redeem", voucherHandler.Redeem)
			vouchers.POST("/:id/cancel", voucherHandler.Cancel)
		}

		// Payment routes
		payments := v1.Group("/payments")
		{
			payments.POST("/webhook", paymentHandler.Webhook)

			protected := payments.Group("")
			protected.Use(middleware.AuthRequired(), middleware.PaymentRateLimit())
			{
				protected.POST("/intent", paymentHandler.CreatePurchaseIntent)
				protected.POST("/confirm", paymentHandler.ConfirmPurchase)
			}
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/pools", adminHandler.CreateLicensePool)
			admin.DELETE("/pools/:contentID", adminHandler.DeactivateLicensePool)

			admin.POST("/credits", adminHandler.GrantCredits)
			admin.GET("/sponsors/:sponsorID/ledger", adminHandler.GetSponsorLedger)

			admin.POST("/payouts/:expertID", adminHandler.RunPayoutBatch)
			admin.GET("/settlements", adminHandler.ListSettlements)

			admin.POST("/vouchers/:id/no-show", adminHandler.RecordNoShow)
			admin.POST("/sweeps/no-shows", adminHandler.RunNoShowSweep)
			admin.POST("/sweeps/expired", adminHandler.RunExpirySweep)

			admin.GET("/reports/revenue", adminHandler.GetRevenueSummary)
			admin.GET("/reports/payouts/:expertID", adminHandler.GetExpertPayoutSummary)
			admin.POST("/reports/payouts/:expertID/statement", adminHandler.ExportPayoutStatement)
			admin.GET("/reports/sponsors", adminHandler.GetSponsorHealth)
			admin.GET("/reports/vouchers", adminHandler.GetVoucherOutcomes)

			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings", adminHandler.UpdateSetting)
			admin.GET("/notifications", adminHandler.ListNotifications)
		}
	}

	return r
}
