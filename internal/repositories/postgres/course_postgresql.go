package postgres

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
	"gorm.io/gorm"
)

type CoursePostgreSQL struct {
	db *gorm.DB
}

func NewCoursePostgreSQL(db *gorm.DB) repositories.CourseRepository {
	return &CoursePostgreSQL{db: db}
}

func (c *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	db := getDB(c.db, tx)
	var course models.Course

	if err := db.WithContext(ctx).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, repositories.HandleDBError(err, "get course by id")
	}

	return &course, nil
}

func (c *CoursePostgreSQL) CountLessons(ctx context.Context, tx *gorm.DB, courseID string) (int64, error) {
	db := getDB(c.db, tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.Lesson{}).
		Where("course_id = ?", courseID).
		Count(&count).Error; err != nil {
		return 0, repositories.HandleDBError(err, "count lessons")
	}

	return count, nil
}

type EnrollmentPostgreSQL struct {
	db *gorm.DB
}

func NewEnrollmentPostgreSQL(db *gorm.DB) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{db: db}
}

func (e *EnrollmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Enrollment, error) {
	db := getDB(e.db, tx)
	var enrollment models.Enrollment

	if err := db.WithContext(ctx).
		Preload("Course").
		Where("id = ?", id).
		First(&enrollment).Error; err != nil {
		return nil, repositories.HandleDBError(err, "get enrollment by id")
	}

	return &enrollment, nil
}

func (e *EnrollmentPostgreSQL) ListActiveByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error) {
	db := getDB(e.db, tx)
	var enrollments []*models.Enrollment

	if err := db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("enrolled_at ASC").
		Find(&enrollments).Error; err != nil {
		return nil, repositories.HandleDBError(err, "list active enrollments")
	}

	return enrollments, nil
}

func (e *EnrollmentPostgreSQL) UpdateProgress(ctx context.Context, tx *gorm.DB, id string, progress float64, completedAt *time.Time) error {
	db := getDB(e.db, tx)

	result := db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":     progress,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return repositories.HandleDBError(result.Error, "update enrollment progress")
	}
	if result.RowsAffected == 0 {
		return repositories.HandleDBError(gorm.ErrRecordNotFound, "update enrollment progress")
	}

	return nil
}
