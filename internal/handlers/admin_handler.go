package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learner-service/internal/services"
	"github.com/SAP-F-2025/learner-service/internal/utils"
)

const serviceName = "learner-service"

// HealthChecker is satisfied by services.ServiceManager
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type AdminHandler struct {
	BaseHandler
	reconciler services.ReconciliationService
	health     HealthChecker
}

func NewAdminHandler(reconciler services.ReconciliationService, health HealthChecker, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler: NewBaseHandler(logger),
		reconciler:  reconciler,
		health:      health,
	}
}

// Reconcile runs one pass over the journaled saga steps
// @Summary Run reconciliation
// @Tags admin
// @Produce json
// @Success 200 {object} services.ReconcileReport
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "A pass is already running"
// @Failure 503 {object} ErrorResponse
// @Router /admin/reconcile [post]
func (h *AdminHandler) Reconcile(c *gin.Context) {
	h.LogRequest(c, "Running reconciliation")

	report, err := h.reconciler.RunPending(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Health reports whether both stores answer
func (h *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.health.HealthCheck(ctx); err != nil {
		h.LogError(c, err, "Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": serviceName,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
