package postgres

import (
	"fmt"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"gorm.io/gorm"
)

// getDB prefers the caller's transaction over the pooled handle
func getDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

// AutoMigrate creates or updates the relational schema
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.User{},
		&models.UserRole{},
		&models.UserPermission{},
		&models.Course{},
		&models.Lesson{},
		&models.Enrollment{},
		&models.SagaStep{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate relational schema: %w", err)
	}
	return nil
}
