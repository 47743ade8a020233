package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learner-service/internal/models"
)

// ProfileFields holds the profile attributes an update may touch. Nil fields
// are left as stored.
type ProfileFields struct {
	Bio         *string
	City        *string
	Country     *string
	SocialLinks map[string]string
	Preferences map[string]interface{}
}

// LessonCompletion is the input of a completing upsert. Optional fields are
// only written when supplied.
type LessonCompletion struct {
	UserID       string
	LessonID     string
	EnrollmentID string
	TimeSpent    *int
	QuizResults  map[string]interface{}
	Notes        *string
	CompletedAt  time.Time
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)

	// EnsureProfile inserts the profile when the user has none and leaves an
	// existing one untouched
	EnsureProfile(ctx context.Context, profile *models.UserProfile) error

	// UpsertProfile creates the profile if absent, otherwise merges the
	// supplied fields, and returns the stored document
	UpsertProfile(ctx context.Context, userID string, fields ProfileFields) (*models.UserProfile, error)

	GetSettings(ctx context.Context, userID string) (*models.UserSetting, error)
	EnsureSettings(ctx context.Context, setting *models.UserSetting) error
}

type LessonProgressRepository interface {
	// MarkCompleted upserts by (userId, lessonId) and returns the stored record
	MarkCompleted(ctx context.Context, completion LessonCompletion) (*models.LessonProgress, error)

	// RecordAttempt upserts by (userId, lessonId) without touching completion
	RecordAttempt(ctx context.Context, userID, lessonID, enrollmentID string, timeSpent int, at time.Time) (*models.LessonProgress, error)

	CountCompleted(ctx context.Context, userID, enrollmentID string) (int64, error)
	ListByEnrollment(ctx context.Context, userID, enrollmentID string) ([]*models.LessonProgress, error)
}

// ActivityRepository holds the append-only activity and audit trails
type ActivityRepository interface {
	AppendActivity(ctx context.Context, activity *models.UserActivity) error
	RecentActivity(ctx context.Context, userID string, limit int64) ([]*models.UserActivity, error)
	AppendAudit(ctx context.Context, entry *models.AuditLog) error
}

type NotificationRepository interface {
	AppendNotification(ctx context.Context, notification *models.Notification) error
	UnreadNotifications(ctx context.Context, userID string) ([]*models.Notification, error)

	// InsertAchievement returns ErrDuplicate when the unique index already
	// holds the same award
	InsertAchievement(ctx context.Context, achievement *models.Achievement) error
	HasAchievement(ctx context.Context, userID string, achievementType models.AchievementType, courseID string) (bool, error)
}
