package main

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ace-school-api/api/swagger"
	"github.com/noah-isme/ace-school-api/internal/handler"
	"github.com/noah-isme/ace-school-api/internal/middleware"
	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/pkg/config"
	"github.com/noah-isme/ace-school-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ace-school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ace-school-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	metricsHandler := handler.NewMetricsHandler(a.metrics, readinessChecks(a))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth)
	enrollmentHandler := handler.NewEnrollmentHandler(a.enrollments)
	gradeHandler := handler.NewGradeHandler(a.grades)
	exportHandler := handler.NewExportHandler(a.exports)

	jwt := middleware.JWT(a.auth)
	admin := middleware.RBAC(models.RoleAdmin)
	teacher := middleware.RBAC(models.RoleTeacher, models.RoleAdmin)
	parent := middleware.RBAC(models.RoleParentStudent)

	var counter middleware.HitCounter
	if a.cacheRepo != nil {
		counter = a.cacheRepo
	}
	enrollLimit := middleware.RateLimit(counter, a.metrics, logr, middleware.RateLimitConfig{
		Scope:  "enrollments",
		Max:    cfg.Enrollment.RateLimit,
		Window: cfg.Enrollment.RateWindow,
	})

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/set-password", authHandler.SetPassword)
	auth.GET("/me", jwt, authHandler.Me)

	api.POST("/enrollments", enrollLimit, enrollmentHandler.Create)
	enrollments := api.Group("/enrollments", jwt, admin)
	enrollments.GET("", enrollmentHandler.List)
	enrollments.GET("/statistics", enrollmentHandler.Statistics)
	enrollments.GET("/:id", enrollmentHandler.Get)
	enrollments.PATCH("/:id", enrollmentHandler.Update)
	enrollments.DELETE("/:id", enrollmentHandler.Delete)
	enrollments.GET("/:id/lifecycle", enrollmentHandler.Lifecycle)
	enrollments.POST("/:id/approve", enrollmentHandler.Approve)
	enrollments.POST("/:id/decline", enrollmentHandler.Decline)
	enrollments.POST("/:id/complete", enrollmentHandler.Complete)
	enrollments.POST("/:id/promote", enrollmentHandler.Promote)

	api.GET("/parents/me/enrollments", jwt, parent, enrollmentHandler.ParentEnrollments)

	grades := api.Group("/grades", jwt)
	grades.GET("/teacher-info", teacher, gradeHandler.TeacherInfo)
	grades.GET("/weights/:subjectId", gradeHandler.Weights)
	grades.PUT("/weights/:subjectId", teacher, gradeHandler.UpdateWeights)
	grades.GET("/items", gradeHandler.ListItems)
	grades.POST("/items", teacher, gradeHandler.CreateItem)
	grades.GET("/items/:id", gradeHandler.GetItem)
	grades.PUT("/items/:id", teacher, gradeHandler.UpdateItem)
	grades.DELETE("/items/:id", teacher, gradeHandler.DeleteItem)
	grades.GET("/scores", gradeHandler.ListScores)
	grades.POST("/scores", teacher, gradeHandler.UpsertScore)
	grades.GET("/class-standing", gradeHandler.ListClassStandings)
	grades.POST("/class-standing", teacher, gradeHandler.UpsertClassStanding)
	grades.GET("/students/:gradeLevel", teacher, gradeHandler.StudentsByGrade)
	grades.GET("/sheet", teacher, gradeHandler.Sheet)
	grades.GET("/compute/:studentId/:subjectId", gradeHandler.Compute)
	grades.GET("/my-grades", parent, gradeHandler.MyGrades)
	grades.POST("/report-card/:studentId/export", exportHandler.ExportReportCard)

	api.GET("/exports/download", exportHandler.Download)

	return r
}

func readinessChecks(a *app) map[string]handler.ReadinessCheck {
	return map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error {
			return a.db.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			if a.redis == nil {
				return errors.New("not configured")
			}
			return a.redis.Ping(ctx).Err()
		},
	}
}
