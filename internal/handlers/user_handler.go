package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learner-service/internal/services"
	"github.com/SAP-F-2025/learner-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	identity services.IdentityService
}

func NewUserHandler(identity services.IdentityService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		identity:    identity,
	}
}

// CreateUser creates a user together with its profile, settings and welcome
// notification
// @Summary Create user
// @Description Creates the relational user and its document-store records. Failed side effects are reported as warnings.
// @Tags users
// @Accept json
// @Produce json
// @Param user body services.CreateUserRequest true "User data"
// @Success 201 {object} services.UserCompleteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating user", "username", req.Username)

	resp, err := h.identity.CreateCompleteUser(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetUser returns the merged view of a user
// @Summary Get user by ID
// @Description Returns the user with roles, permissions, profile, settings, recent activity and unread notifications
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} services.UserCompleteResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")
	h.LogRequest(c, "Getting user", "user_id", userID)

	resp, err := h.identity.GetUserComplete(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateProfile applies a partial profile update
// @Summary Update user profile
// @Description Updates name and avatar on the user and the remaining fields on the profile. Omitted fields are left unchanged.
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param profile body services.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} services.UserCompleteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id}/profile [patch]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID := c.Param("id")

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if req.IsEmpty() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "No profile fields supplied",
		})
		return
	}

	h.LogRequest(c, "Updating profile", "user_id", userID)

	resp, err := h.identity.UpdateUserProfile(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RepairUser recreates the default role, profile and settings of a user
// @Summary Repair user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} services.RepairReport
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /users/{id}/repair [post]
func (h *UserHandler) RepairUser(c *gin.Context) {
	userID := c.Param("id")
	h.LogRequest(c, "Repairing user", "user_id", userID)

	report, err := h.identity.RepairUser(c.Request.Context(), userID)
	if err != nil {
		if report != nil {
			// Partial repair: report what was done alongside the failure
			h.LogError(c, err, "User repair incomplete", "user_id", userID)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Message: "User repair incomplete",
				Details: report,
			})
			return
		}
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
