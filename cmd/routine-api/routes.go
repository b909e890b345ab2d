package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/handler"
	"github.com/noah-isme/campus-routine-api/internal/middleware"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/service"
)

// routeDeps carries everything the router needs. Audit may be nil.
type routeDeps struct {
	APIPrefix string
	Tokens    *service.TokenService
	Routines  *handler.RoutineHandler
	Imports   *handler.ImportHandler
	Reports   *handler.ReportHandler
	Metrics   *handler.MetricsHandler
	Audit     auditStore
	Logger    *zap.Logger
}

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

func registerRoutes(r *gin.Engine, deps routeDeps) {
	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", deps.Metrics.Ready)
	r.GET("/metrics", deps.Metrics.Prometheus)

	api := r.Group(deps.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	// Signed tokens authorise downloads on their own.
	api.GET("/export/:token", deps.Reports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))

	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleModerator)
	readers := middleware.RequireRoles(models.RoleAdmin, models.RoleModerator, models.RoleTeacher)
	audit := func(action string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, "routine")
	}

	secured.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), deps.Metrics.Summary)

	routines := secured.Group("/routines")
	routines.GET("", deps.Routines.List)
	routines.GET("/me", deps.Routines.Me)
	routines.GET("/grid", deps.Routines.Grid)
	routines.POST("/check", editors, deps.Routines.Check)
	routines.POST("", editors, audit(models.AuditActionRoutineCreate), deps.Routines.Create)
	routines.POST("/import", editors, audit(models.AuditActionRoutineImport), deps.Imports.Import)
	routines.GET("/import/template", editors, deps.Imports.Template)
	routines.GET("/reports/teachers", readers, deps.Reports.Teachers)
	routines.GET("/reports/rooms", readers, deps.Reports.Rooms)
	routines.POST("/reports/exports", editors, audit(models.AuditActionReportExport), deps.Reports.CreateExport)
	routines.GET("/reports/exports/:id", editors, deps.Reports.ExportStatus)
	routines.GET("/:id", deps.Routines.Get)
	routines.PUT("/:id", editors, audit(models.AuditActionRoutineUpdate), deps.Routines.Update)
	routines.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), audit(models.AuditActionRoutineDelete), deps.Routines.Delete)
}
