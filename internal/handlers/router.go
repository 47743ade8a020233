package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SAP-F-2025/learner-service/internal/services"
	"github.com/SAP-F-2025/learner-service/internal/utils"
	"github.com/SAP-F-2025/learner-service/internal/validator"
)

type HandlerManager struct {
	userHandler     *UserHandler
	progressHandler *ProgressHandler
	adminHandler    *AdminHandler
	authMiddleware  *AuthMiddleware
	gatherer        prometheus.Gatherer
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	authMiddleware *AuthMiddleware,
	gatherer prometheus.Gatherer,
) *HandlerManager {
	return &HandlerManager{
		userHandler:     NewUserHandler(serviceManager.Identity(), logger),
		progressHandler: NewProgressHandler(serviceManager.Progress(), serviceManager.Report(), validator, logger),
		adminHandler:    NewAdminHandler(serviceManager.Reconciliation(), serviceManager, logger),
		authMiddleware:  authMiddleware,
		gatherer:        gatherer,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	auth := hm.authMiddleware

	v1 := router.Group("/api/v1")
	v1.Use(auth.Authenticate())
	{
		users := v1.Group("/users")
		{
			users.POST("", auth.RequireOperation(services.OpCreateUser, ""), hm.userHandler.CreateUser)
			users.GET("/:id", auth.RequireOperation(services.OpViewUser, "id"), hm.userHandler.GetUser)
			users.PATCH("/:id/profile", auth.RequireOperation(services.OpUpdateProfile, "id"), hm.userHandler.UpdateProfile)
			users.POST("/:id/repair", auth.RequireOperation(services.OpRepairUser, "id"), hm.userHandler.RepairUser)
		}

		lessons := v1.Group("/lessons")
		{
			lessons.POST("/:lesson_id/attempts", auth.RequireOperation(services.OpRecordAttempt, ""), hm.progressHandler.RecordAttempt)
			lessons.POST("/:lesson_id/complete", auth.RequireOperation(services.OpCompleteLesson, ""), hm.progressHandler.CompleteLesson)
		}

		students := v1.Group("/students")
		{
			students.GET("/me/progress", auth.RequireOperation(services.OpViewProgress, ""), hm.progressHandler.GetMyProgress)
			students.GET("/:id/progress/export", auth.RequireOperation(services.OpExportProgress, "id"), hm.progressHandler.ExportProgress)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/reconcile", auth.RequireOperation(services.OpReconcile, ""), hm.adminHandler.Reconcile)
		}
	}

	router.GET("/health", hm.adminHandler.Health)

	if hm.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})))
	}
}
