package models

import (
	"time"
)

// Document-store records. They reference relational ids by value only;
// nothing enforces that the referenced user or enrollment exists.

type ActivityAction string

const (
	ActivityUserCreated     ActivityAction = "user_created"
	ActivityProfileUpdated  ActivityAction = "profile_updated"
	ActivityLessonCompleted ActivityAction = "lesson_completed"
)

type NotificationType string

const (
	NotificationWelcome     NotificationType = "welcome"
	NotificationAchievement NotificationType = "achievement"
)

type AchievementType string

const (
	AchievementCourseCompletion AchievementType = "course_completion"
)

type LessonProgress struct {
	ID           string                 `json:"id" bson:"_id"`
	UserID       string                 `json:"user_id" bson:"userId"`
	LessonID     string                 `json:"lesson_id" bson:"lessonId"`
	EnrollmentID string                 `json:"enrollment_id" bson:"enrollmentId"`
	TimeSpent    int                    `json:"time_spent" bson:"timeSpent"` // seconds
	QuizResults  map[string]interface{} `json:"quiz_results,omitempty" bson:"quizResults,omitempty"`
	Notes        *string                `json:"notes,omitempty" bson:"notes,omitempty"`
	Attempts     int                    `json:"attempts" bson:"attempts"`
	IsCompleted  bool                   `json:"is_completed" bson:"isCompleted"`
	CompletedAt  *time.Time             `json:"completed_at" bson:"completedAt,omitempty"`
	CreatedAt    time.Time              `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time              `json:"updated_at" bson:"updatedAt"`
}

type UserProfile struct {
	ID          string                 `json:"id" bson:"_id"`
	UserID      string                 `json:"user_id" bson:"userId"`
	Bio         string                 `json:"bio" bson:"bio"`
	City        *string                `json:"city" bson:"city,omitempty"`
	Country     *string                `json:"country" bson:"country,omitempty"`
	SocialLinks map[string]string      `json:"social_links,omitempty" bson:"socialLinks,omitempty"`
	Preferences map[string]interface{} `json:"preferences,omitempty" bson:"preferences,omitempty"`
	CreatedAt   time.Time              `json:"created_at" bson:"createdAt"`
	UpdatedAt   time.Time              `json:"updated_at" bson:"updatedAt"`
}

type UserSetting struct {
	ID        string                 `json:"id" bson:"_id"`
	UserID    string                 `json:"user_id" bson:"userId"`
	Settings  map[string]interface{} `json:"settings" bson:"settings"`
	CreatedAt time.Time              `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time              `json:"updated_at" bson:"updatedAt"`
}

type UserActivity struct {
	ID         string                 `json:"id" bson:"_id"`
	UserID     string                 `json:"user_id" bson:"userId"`
	Action     ActivityAction         `json:"action" bson:"action"`
	Resource   string                 `json:"resource,omitempty" bson:"resource,omitempty"`
	ResourceID string                 `json:"resource_id,omitempty" bson:"resourceId,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp" bson:"timestamp"`
}

type AuditChanges struct {
	Before interface{} `json:"before" bson:"before"`
	After  interface{} `json:"after" bson:"after"`
}

type AuditLog struct {
	ID        string       `json:"id" bson:"_id"`
	UserID    string       `json:"user_id" bson:"userId"`
	Action    string       `json:"action" bson:"action"`
	Entity    string       `json:"entity" bson:"entity"`
	EntityID  string       `json:"entity_id" bson:"entityId"`
	Changes   AuditChanges `json:"changes" bson:"changes"`
	Timestamp time.Time    `json:"timestamp" bson:"timestamp"`
}

type Notification struct {
	ID        string                 `json:"id" bson:"_id"`
	UserID    string                 `json:"user_id" bson:"userId"`
	Type      NotificationType       `json:"type" bson:"type"`
	Title     string                 `json:"title" bson:"title"`
	Message   string                 `json:"message" bson:"message"`
	Data      map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	IsRead    bool                   `json:"is_read" bson:"isRead"`
	CreatedAt time.Time              `json:"created_at" bson:"createdAt"`
}

type Achievement struct {
	ID          string                 `json:"id" bson:"_id"`
	UserID      string                 `json:"user_id" bson:"userId"`
	Type        AchievementType        `json:"type" bson:"type"`
	Title       string                 `json:"title" bson:"title"`
	Description string                 `json:"description" bson:"description"`
	Points      int                    `json:"points" bson:"points"`
	CourseID    string                 `json:"course_id,omitempty" bson:"courseId,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	EarnedAt    time.Time              `json:"earned_at" bson:"earnedAt"`
}
