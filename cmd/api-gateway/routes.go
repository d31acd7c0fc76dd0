package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/handler"
	"github.com/noah-isme/articulacion-api/internal/middleware"
	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/pkg/config"
	"github.com/noah-isme/articulacion-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/articulacion-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/articulacion-api/pkg/middleware/requestid"
)

type routeDeps struct {
	tokens  middleware.TokenValidator
	actors  middleware.ActorResolver
	audit   middleware.AuditWriter
	metrics middleware.RequestObserver
}

type routeHandlers struct {
	auth        *handler.AuthHandler
	enrollments *handler.EnrollmentHandler
	documents   *handler.DocumentHandler
	reports     *handler.ReportHandler
	simat       *handler.SimatHandler
	metrics     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.metrics.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/refresh", h.auth.Refresh)
	api.GET("/files/:token", h.documents.Download)
	api.GET("/export/:token", h.reports.DownloadReport)
	api.GET("/simat-files/:token", h.simat.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.tokens))
	authed.POST("/auth/logout", h.auth.Logout)

	scoped := authed.Group("")
	scoped.Use(middleware.Actor(deps.actors))
	scoped.GET("/auth/me", h.auth.Me)

	student := scoped.Group("/me")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.POST("/enrollment", h.enrollments.Mine)
	student.GET("/enrollment", h.enrollments.Mine)
	student.PUT("/profile", h.enrollments.UpdateProfile)
	student.POST("/enrollment/documents", h.documents.Upload)
	student.POST("/enrollment/submit", h.enrollments.Submit)
	student.GET("/documents/:id", h.documents.Get)
	student.POST("/documents/:id/replace", h.documents.Replace)
	student.GET("/documents/:id/download-url", h.documents.DownloadURL)

	liaison := scoped.Group("")
	liaison.Use(middleware.RequireRoles(models.RoleTeacher))
	liaison.POST("/simat", h.simat.Upload)

	staff := scoped.Group("")
	staff.Use(middleware.StaffOnly())
	staff.GET("/enrollments", h.enrollments.List)
	staff.GET("/enrollments/summary", h.enrollments.Summary)
	staff.GET("/enrollments/:id", h.enrollments.Get)
	staff.GET("/enrollments/:id/history", h.enrollments.History)
	staff.PUT("/enrollments/:id/state", h.enrollments.SetState)
	staff.POST("/enrollments/:id/documents/approve-all", h.documents.ApproveAll)
	staff.GET("/enrollments/:id/documents/:kind/versions", h.documents.Versions)
	staff.PUT("/students/:id/document-type", h.enrollments.UpdateDocumentType)
	staff.GET("/documents/:id", h.documents.Get)
	staff.POST("/documents/:id/review", h.documents.Review)
	staff.POST("/documents/:id/replace", h.documents.Replace)
	staff.GET("/documents/:id/download-url",
		middleware.Audit(deps.audit, logr, models.AuditActionDocumentDownload, models.AuditResourceDocument),
		h.documents.DownloadURL)
	staff.POST("/reports",
		middleware.Audit(deps.audit, logr, models.AuditActionReportRequest, models.AuditResourceReport),
		h.reports.GenerateReport)
	staff.GET("/reports", h.reports.ListReports)
	staff.GET("/reports/:id", h.reports.ReportStatus)
	staff.GET("/simat", h.simat.List)
	staff.GET("/simat/stats", h.simat.Stats)
	staff.GET("/simat/:id/download-url",
		middleware.Audit(deps.audit, logr, models.AuditActionDocumentDownload, models.AuditResourceSimat),
		h.simat.DownloadURL)

	admin := scoped.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/enrollments/:id/finalize", h.enrollments.Finalize)
	admin.POST("/enrollments/finalize-pre-enrolled", h.enrollments.BulkFinalize)
	admin.DELETE("/documents/:id", h.documents.Purge)
	admin.POST("/simat/:id/review", h.simat.Review)

	return r
}
