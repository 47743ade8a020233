package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"gorm.io/gorm"
)

type CourseRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error)
	CountLessons(ctx context.Context, tx *gorm.DB, courseID string) (int64, error)
}

type EnrollmentRepository interface {
	// GetByID preloads the course
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Enrollment, error)
	ListActiveByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error)

	// UpdateProgress writes the derived progress. completedAt nil clears it.
	UpdateProgress(ctx context.Context, tx *gorm.DB, id string, progress float64, completedAt *time.Time) error
}
