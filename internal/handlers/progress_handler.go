package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learner-service/internal/services"
	"github.com/SAP-F-2025/learner-service/internal/utils"
	"github.com/SAP-F-2025/learner-service/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProgressHandler struct {
	BaseHandler
	progress  services.ProgressService
	report    services.ReportService
	validator *validator.Validator
}

func NewProgressHandler(
	progress services.ProgressService,
	report services.ReportService,
	validator *validator.Validator,
	logger utils.Logger,
) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler: NewBaseHandler(logger),
		progress:    progress,
		report:      report,
		validator:   validator,
	}
}

// RecordAttempt marks a lesson as started by the current user
// @Summary Record lesson attempt
// @Tags lessons
// @Accept json
// @Produce json
// @Param lesson_id path string true "Lesson ID"
// @Param attempt body services.RecordAttemptRequest true "Attempt data"
// @Success 200 {object} models.LessonProgress
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /lessons/{lesson_id}/attempts [post]
func (h *ProgressHandler) RecordAttempt(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	lessonID := c.Param("lesson_id")
	if err := h.validator.ValidateID("lesson_id", lessonID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	var req services.RecordAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Recording lesson attempt", "user_id", userID, "lesson_id", lessonID)

	progress, err := h.progress.RecordLessonAttempt(c.Request.Context(), userID, lessonID, req.EnrollmentID, req.TimeSpent)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// CompleteLesson marks a lesson completed and recomputes the enrollment
// @Summary Complete lesson
// @Description Records the completion, updates enrollment progress and awards the course achievement at 100%. Failed side effects are listed in issues.
// @Tags lessons
// @Accept json
// @Produce json
// @Param lesson_id path string true "Lesson ID"
// @Param completion body services.CompleteLessonRequest true "Completion data"
// @Success 200 {object} services.CompleteLessonResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /lessons/{lesson_id}/complete [post]
func (h *ProgressHandler) CompleteLesson(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	lessonID := c.Param("lesson_id")
	if err := h.validator.ValidateID("lesson_id", lessonID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	var req services.CompleteLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Completing lesson", "user_id", userID, "lesson_id", lessonID, "enrollment_id", req.EnrollmentID)

	result, err := h.progress.CompleteLesson(c.Request.Context(), userID, lessonID, req.EnrollmentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMyProgress returns the progress of the current user across enrollments
// @Summary Get my progress
// @Tags students
// @Produce json
// @Success 200 {object} services.StudentProgress
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /students/me/progress [get]
func (h *ProgressHandler) GetMyProgress(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting student progress", "user_id", userID)

	progress, err := h.progress.GetStudentProgress(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// ExportProgress downloads a student's progress as an XLSX workbook
// @Summary Export student progress
// @Tags students
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Student ID"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /students/{id}/progress/export [get]
func (h *ProgressHandler) ExportProgress(c *gin.Context) {
	studentID := c.Param("id")
	h.LogRequest(c, "Exporting student progress", "student_id", studentID)

	data, err := h.report.ExportStudentProgress(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("progress-%s-%s.xlsx", studentID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
