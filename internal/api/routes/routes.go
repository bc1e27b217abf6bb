package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/api/handlers"
	"github.com/Wikid82/equiptrack/internal/api/middleware"
	"github.com/Wikid82/equiptrack/internal/config"
	"github.com/Wikid82/equiptrack/internal/database"
	"github.com/Wikid82/equiptrack/internal/metrics"
	"github.com/Wikid82/equiptrack/internal/models"
	"github.com/Wikid82/equiptrack/internal/services"
)

// Services are the long-lived services behind the routes. The caller owns
// background work such as the compliance scheduler.
type Services struct {
	Auth        *services.AuthService
	Locks       *services.LockService
	Equipment   *services.EquipmentService
	Attachments *services.AttachmentService
	Compliance  *services.ComplianceService
	Seed        *services.SeedService
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) (*Services, error) {
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	blobs, err := services.NewLocalBlobStore(cfg.FilesDir)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = services.DefaultLockTimeout
	}
	locks := services.NewLockService(db, lockTimeout)
	svc := &Services{
		Auth:        services.NewAuthService(db, cfg),
		Locks:       locks,
		Equipment:   services.NewEquipmentService(db, locks),
		Attachments: services.NewAttachmentService(db, blobs, locks, cfg.MaxUploadBytes()),
		Compliance:  services.NewComplianceService(db, services.NewNotificationService(cfg.NotifyURLs), cfg.DueWindowDays),
		Seed:        services.NewSeedService(db),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/health", handlers.HealthHandler)
	router.GET("/api/v1/health", handlers.HealthHandler)

	api := router.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(svc.Auth, cfg.IsProduction(), cfg.TokenTTL)
	seedHandler := handlers.NewSeedHandler(svc.Seed, cfg.SeedEnabled)

	api.POST("/seed", seedHandler.Seed)
	api.POST("/auth/login", authHandler.Login)

	lockHandler := handlers.NewLockHandler(svc.Locks)
	equipmentHandler := handlers.NewEquipmentHandler(svc.Equipment, services.NewAuditService(db))
	attachmentHandler := handlers.NewAttachmentHandler(svc.Attachments, cfg.MaxUploadBytes())
	complianceHandler := handlers.NewComplianceHandler(svc.Compliance)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(svc.Auth))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/users", middleware.RequireRole(models.RoleAdmin), authHandler.CreateUser)

		protected.GET("/testing-areas", equipmentHandler.TestingAreas)

		protected.GET("/equipment", equipmentHandler.List)
		protected.GET("/equipment/:number", equipmentHandler.Get)
		protected.GET("/equipment/:number/audit", equipmentHandler.Audit)
		protected.GET("/equipment/:number/lock", lockHandler.Status)
		protected.GET("/equipment/:number/attachments", attachmentHandler.List)

		protected.POST("/equipment/lock", lockHandler.Acquire)
		protected.POST("/equipment/override-lock", lockHandler.Override)
		protected.POST("/equipment/release-lock", lockHandler.Release)
		protected.POST("/equipment/upsert", equipmentHandler.Upsert)

		protected.POST("/attachments/upload", attachmentHandler.Upload)
		protected.GET("/files/:name", attachmentHandler.Download)

		protected.GET("/compliance/due", complianceHandler.Due)
		protected.GET("/compliance/report.xlsx", complianceHandler.Report)
	}

	return svc, nil
}
