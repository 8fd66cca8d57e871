package main

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/hact"
	"github.com/unicef/etools-core/internal/handler"
	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/notify"
	"github.com/unicef/etools-core/internal/permission"
	"github.com/unicef/etools-core/internal/realm"
	"github.com/unicef/etools-core/internal/snapshot"
	"github.com/unicef/etools-core/internal/vision"
	"github.com/unicef/etools-core/internal/workflow"
	"github.com/unicef/etools-core/pkg/config"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/jwtutil"
	"github.com/unicef/etools-core/pkg/logger"
	"github.com/unicef/etools-core/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting back-office core...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateShared(
		&model.User{}, &model.APIToken{},
		&model.Organization{}, &model.Workspace{}, &model.Realm{},
		&model.VisionSyncLog{},
	); err != nil {
		log.Fatal("Failed to migrate shared schema", zap.Error(err))
	}
	if err := migrateTenantSchemas(); err != nil {
		log.Fatal("Failed to migrate tenant schemas", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Register the workflow machines
	workflow.RegisterMachines()

	// Wire the engines
	resolver := realm.NewResolver(database.Shared())
	permEngine := permission.NewEngine(resolver)
	snapshots := snapshot.NewWriter()
	hactService := hact.NewService()
	store := workflow.NewStore(snapshots, hactService)
	wfEngine := workflow.NewEngine(store, handler.PermissionAuthorizer{Engine: permEngine})

	deps := &handler.Deps{
		Workflow:   wfEngine,
		Permission: permEngine,
		Snapshots:  snapshots,
	}

	var visionClient *vision.Client
	if cfg.Vision.Endpoint != "" {
		visionClient = vision.NewClient(cfg.Vision)
		deps.Exporter = vision.NewExporter(visionClient)
	}

	// Background jobs
	scheduler := cron.New()
	dispatcher := notify.NewDispatcher(notify.LogRenderer{})
	if _, err := scheduler.AddFunc(cfg.Scheduler.NotifyDispatchSpec, func() {
		if err := dispatcher.Run(context.Background()); err != nil {
			log.Error("Notification dispatch run failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("Failed to schedule notification dispatch", zap.Error(err))
	}
	if visionClient != nil {
		poller := vision.NewPoller(visionClient, vision.PartnerIngestor{})
		if _, err := scheduler.AddFunc(cfg.Scheduler.VisionPollSpec, func() {
			if err := poller.Run(context.Background()); err != nil {
				log.Error("Vision poll run failed", zap.Error(err))
			}
		}); err != nil {
			log.Fatal("Failed to schedule vision poll", zap.Error(err))
		}
	} else {
		log.Warn("VISION endpoint not configured, partner sync disabled")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// API routes - all require authentication; workspace pinning follows
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)
	api.Use(middleware.WorkspaceMiddleware)

	// Identity and selection
	users := api.Group("/users")
	users.GET("/profile", handler.GetProfile)
	users.PATCH("/profile", handler.UpdateProfile)
	users.POST("/tokens", handler.CreateAPIToken)
	users.DELETE("/tokens/:prefix", handler.RevokeAPIToken)

	workspaces := api.Group("/workspaces")
	workspaces.GET("", handler.ListWorkspaces)
	workspaces.POST("/select", handler.SelectWorkspace)
	workspaces.POST("/select-organization", handler.SelectOrganization)

	// Realm administration - workspace-scoped
	realms := api.Group("/realms", middleware.RequireWorkspace)
	realms.GET("/users/:user_id", handler.ListRealms)
	realms.POST("", handler.GrantRealm)
	realms.DELETE("", handler.RevokeRealm)

	// Partner directory - workspace-scoped
	partners := api.Group("/partners", middleware.RequireWorkspace)
	partners.GET("", handler.ListPartners)
	partners.GET("/:id", handler.GetPartner)
	partners.GET("/:id/hact-history", handler.GetPartnerHactHistory)

	// Attachments - workspace-scoped
	attachments := api.Group("/attachments", middleware.RequireWorkspace)
	attachments.GET("", handler.ListAttachments)
	attachments.POST("", handler.CreateAttachment)
	attachments.DELETE("/:id", handler.DeleteAttachment)
	attachments.GET("/file-types", handler.ListFileTypes)

	// Audit log - workspace-scoped
	api.GET("/activities", handler.ListActivities, middleware.RequireWorkspace)

	// Workflow resources - workspace-scoped
	handler.NewEngagementResource(deps).
		RegisterRoutes(api.Group("/engagements", middleware.RequireWorkspace))
	handler.NewTPMVisitResource(deps).
		RegisterRoutes(api.Group("/tpm-visits", middleware.RequireWorkspace))
	handler.NewMonitoringActivityResource(deps).
		RegisterRoutes(api.Group("/monitoring-activities", middleware.RequireWorkspace))
	handler.NewPSEAAssessmentResource(deps).
		RegisterRoutes(api.Group("/psea-assessments", middleware.RequireWorkspace))
	handler.NewActionPointResource(deps).
		RegisterRoutes(api.Group("/action-points", middleware.RequireWorkspace))

	// Keep the active workspace gauge warm at startup
	if n, err := activeWorkspaceCount(); err == nil {
		prometheus.ActiveWorkspacesGauge.Set(float64(n))
	}

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// tenantModels are the per-workspace tables.
var tenantModels = []interface{}{
	&model.Partner{}, &model.HactHistory{}, &model.HactCounterGuard{},
	&model.Engagement{}, &model.TPMVisit{}, &model.MonitoringActivity{},
	&model.PSEAAssessment{}, &model.ActionPoint{},
	&model.PermissionRow{}, &model.Activity{}, &model.TransitionLog{},
	&model.NotificationOutbox{}, &model.Attachment{}, &model.FileType{},
}

func migrateTenantSchemas() error {
	var workspaces []model.Workspace
	if err := database.Shared().
		Where("active = ? AND schema_name <> ?", true, model.PublicSchemaName).
		Find(&workspaces).Error; err != nil {
		return err
	}
	for _, ws := range workspaces {
		if err := database.MigrateSchema(ws.SchemaName, tenantModels...); err != nil {
			return err
		}
	}
	return nil
}

func activeWorkspaceCount() (int64, error) {
	var n int64
	err := database.Shared().Model(&model.Workspace{}).
		Where("active = ? AND schema_name <> ?", true, model.PublicSchemaName).
		Count(&n).Error
	return n, err
}
