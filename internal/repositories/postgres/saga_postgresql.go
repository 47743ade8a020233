package postgres

import (
	"context"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
	"gorm.io/gorm"
)

type SagaPostgreSQL struct {
	db *gorm.DB
}

func NewSagaPostgreSQL(db *gorm.DB) repositories.SagaRepository {
	return &SagaPostgreSQL{db: db}
}

func (s *SagaPostgreSQL) Record(ctx context.Context, tx *gorm.DB, step *models.SagaStep) error {
	db := getDB(s.db, tx)
	if err := db.WithContext(ctx).Create(step).Error; err != nil {
		return repositories.HandleDBError(err, "record saga step")
	}
	return nil
}

func (s *SagaPostgreSQL) ListPending(ctx context.Context, tx *gorm.DB, limit, maxAttempts int) ([]*models.SagaStep, error) {
	db := getDB(s.db, tx)
	var steps []*models.SagaStep

	query := db.WithContext(ctx).
		Where("status = ? AND attempts < ?", models.SagaStepFailed, maxAttempts).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&steps).Error; err != nil {
		return nil, repositories.HandleDBError(err, "list pending saga steps")
	}

	return steps, nil
}

func (s *SagaPostgreSQL) MarkResolved(ctx context.Context, tx *gorm.DB, id string) error {
	db := getDB(s.db, tx)

	result := db.WithContext(ctx).
		Model(&models.SagaStep{}).
		Where("id = ?", id).
		Update("status", models.SagaStepResolved)
	if result.Error != nil {
		return repositories.HandleDBError(result.Error, "resolve saga step")
	}
	if result.RowsAffected == 0 {
		return repositories.HandleDBError(gorm.ErrRecordNotFound, "resolve saga step")
	}

	return nil
}

func (s *SagaPostgreSQL) MarkAttemptFailed(ctx context.Context, tx *gorm.DB, id string, lastErr string, maxAttempts int) error {
	db := getDB(s.db, tx)

	// SET expressions see the pre-update row, so both read the old attempts.
	result := db.WithContext(ctx).
		Model(&models.SagaStep{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastErr,
			"status":     gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END", maxAttempts, models.SagaStepAbandoned),
		})
	if result.Error != nil {
		return repositories.HandleDBError(result.Error, "mark saga attempt failed")
	}
	if result.RowsAffected == 0 {
		return repositories.HandleDBError(gorm.ErrRecordNotFound, "mark saga attempt failed")
	}

	return nil
}
