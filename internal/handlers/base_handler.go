package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learner-service/internal/services"
	"github.com/SAP-F-2025/learner-service/internal/utils"
	"github.com/SAP-F-2025/learner-service/internal/validator"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the logging helpers shared by every handler
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	l := utils.GetLogger(c, h.logger)
	l.Info(msg, append([]any{"method", c.Request.Method, "path", c.FullPath()}, args...)...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	l := utils.GetLogger(c, h.logger)
	l.Error(msg, append([]any{"error", err, "path", c.FullPath()}, args...)...)
}

// currentUserID reads the caller set by the auth middleware and answers 401
// when it is missing
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var forbidden *services.ForbiddenError
	if errors.As(err, &forbidden) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: forbidden.Message,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
		})
	case errors.Is(err, services.ErrDuplicate):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Resource already exists",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Invalid state",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrStoreUnavailable):
		h.LogError(c, err, "Store unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Service temporarily unavailable",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Details: err.Error(),
		})
	}
}
