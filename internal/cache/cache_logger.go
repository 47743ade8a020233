package cache

import (
	"context"
	"log/slog"
)

func StudentProgressKey(userID string) string {
	return "student:" + userID
}

// SafeInvalidate bumps cache generations, logging instead of failing
func SafeInvalidate(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Invalidate(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateStudentProgress retires the cached progress view of a student
func InvalidateStudentProgress(ctx context.Context, cm *CacheManager, userID string) {
	if cm == nil {
		return
	}
	SafeInvalidate(ctx, cm.Progress, StudentProgressKey(userID))
}
