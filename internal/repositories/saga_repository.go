package repositories

import (
	"context"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"gorm.io/gorm"
)

type SagaRepository interface {
	Record(ctx context.Context, tx *gorm.DB, step *models.SagaStep) error

	// ListPending returns failed steps below maxAttempts, oldest first
	ListPending(ctx context.Context, tx *gorm.DB, limit, maxAttempts int) ([]*models.SagaStep, error)
	MarkResolved(ctx context.Context, tx *gorm.DB, id string) error

	// MarkAttemptFailed bumps the attempt counter and abandons the step once
	// maxAttempts is reached
	MarkAttemptFailed(ctx context.Context, tx *gorm.DB, id string, lastErr string, maxAttempts int) error
}
