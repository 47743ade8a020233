package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

// Collection names
const (
	CollectionProfiles      = "user_profiles"
	CollectionSettings      = "user_settings"
	CollectionProgress      = "lesson_progress"
	CollectionActivities    = "user_activities"
	CollectionAuditLogs     = "audit_logs"
	CollectionNotifications = "notifications"
	CollectionAchievements  = "achievements"
)

// handleMongoError maps driver errors onto the shared kinds
func handleMongoError(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s failed: %w", operation, repositories.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s failed: %w", operation, repositories.ErrDuplicate)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%s failed: %w: %v", operation, repositories.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

func newID() string {
	return uuid.New().String()
}
