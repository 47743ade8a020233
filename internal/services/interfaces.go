package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

type CreateUserRequest = validator.CreateUserRequest
type UpdateProfileRequest = validator.UpdateProfileRequest
type CompleteLessonRequest = validator.CompleteLessonRequest
type RecordAttemptRequest = validator.RecordAttemptRequest

// Subject is a user together with its resolved access sets
type Subject struct {
	User        *models.User `json:"user"`
	Roles       []string     `json:"roles"`
	Permissions []string     `json:"permissions"`
}

// Grants reports whether any of names is one of the subject's roles or
// effective permissions
func (s *Subject) Grants(names []string) bool {
	for _, name := range names {
		for _, role := range s.Roles {
			if role == name {
				return true
			}
		}
		for _, perm := range s.Permissions {
			if perm == name {
				return true
			}
		}
	}
	return false
}

// UserCompleteResponse merges the relational identity with its document-store
// siblings. Warnings lists the document reads that failed and were replaced
// by defaults.
type UserCompleteResponse struct {
	User                *models.User           `json:"user"`
	Roles               []string               `json:"roles"`
	Permissions         []string               `json:"permissions"`
	Profile             *models.UserProfile    `json:"profile"`
	Settings            *models.UserSetting    `json:"settings"`
	RecentActivity      []*models.UserActivity `json:"recent_activity"`
	UnreadNotifications []*models.Notification `json:"unread_notifications"`
	Warnings            []string               `json:"warnings,omitempty"`
}

// StepIssue describes a non-fatal step that failed after the primary write
// committed. Journaled steps are retried by the reconciler.
type StepIssue struct {
	Step      string `json:"step"`
	Error     string `json:"error"`
	Journaled bool   `json:"journaled"`
}

type CompleteLessonResult struct {
	Progress   *models.LessonProgress `json:"progress"`
	Enrollment *models.Enrollment     `json:"enrollment,omitempty"`

	// Counts are only set when the enrollment was recomputed
	CompletedLessons int64 `json:"completed_lessons"`
	TotalLessons     int64 `json:"total_lessons"`

	AchievementAwarded bool        `json:"achievement_awarded"`
	Issues             []StepIssue `json:"issues,omitempty"`
}

// RecomputeResult is the outcome of recomputing one enrollment
type RecomputeResult struct {
	Enrollment         *models.Enrollment `json:"enrollment"`
	CompletedLessons   int64              `json:"completed_lessons"`
	TotalLessons       int64              `json:"total_lessons"`
	AchievementAwarded bool               `json:"achievement_awarded"`
	Issues             []StepIssue        `json:"issues,omitempty"`
}

type EnrollmentProgress struct {
	Enrollment       *models.Enrollment       `json:"enrollment"`
	Lessons          []*models.LessonProgress `json:"lessons"`
	CompletedLessons int64                    `json:"completed_lessons"`
	TotalLessons     int64                    `json:"total_lessons"`
}

type StudentProgress struct {
	UserID      string                `json:"user_id"`
	Enrollments []*EnrollmentProgress `json:"enrollments"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// RepairReport lists what RepairUser had to recreate
type RepairReport struct {
	UserID          string   `json:"user_id"`
	RoleAssigned    bool     `json:"role_assigned"`
	ProfileEnsured  bool     `json:"profile_ensured"`
	SettingsEnsured bool     `json:"settings_ensured"`
	Errors          []string `json:"errors,omitempty"`
}

type ReconcileReport struct {
	Scanned   int       `json:"scanned"`
	Resolved  int       `json:"resolved"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// ===== SERVICE INTERFACES =====

type PermissionService interface {
	ResolveRoles(ctx context.Context, userID string) ([]string, error)
	ResolveEffectivePermissions(ctx context.Context, userID string) ([]string, error)
	ResolveSubject(ctx context.Context, userID string) (*Subject, error)
}

type AuthorizationGate interface {
	// Authorize allows when required is empty or shares a name with the
	// user's roles or effective permissions
	Authorize(ctx context.Context, userID string, required []string) error
	AuthorizeOperation(ctx context.Context, userID string, op Operation) error

	// AuthorizeAccess lets an actor act on its own resources when the
	// operation allows it, and falls back to the role check otherwise
	AuthorizeAccess(ctx context.Context, actorID, targetID string, op Operation) error
}

type IdentityService interface {
	CreateCompleteUser(ctx context.Context, req *CreateUserRequest) (*UserCompleteResponse, error)
	GetUserComplete(ctx context.Context, userID string) (*UserCompleteResponse, error)
	UpdateUserProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*UserCompleteResponse, error)
	RepairUser(ctx context.Context, userID string) (*RepairReport, error)
}

type ProgressService interface {
	// CompleteLesson takes the optional lesson fields from req; its
	// EnrollmentID is ignored in favour of enrollmentID
	CompleteLesson(ctx context.Context, userID, lessonID, enrollmentID string, req *CompleteLessonRequest) (*CompleteLessonResult, error)
	RecordLessonAttempt(ctx context.Context, userID, lessonID, enrollmentID string, timeSpent int) (*models.LessonProgress, error)
	RecomputeEnrollment(ctx context.Context, userID, enrollmentID string) (*RecomputeResult, error)
	GetStudentProgress(ctx context.Context, userID string) (*StudentProgress, error)
}

type AuditRecorder interface {
	// Record appends entry, assigning an ID when it has none
	Record(ctx context.Context, entry *models.AuditLog) error
}

type SagaJournal interface {
	// Fail journals a failed step. It never returns an error; a journal
	// failure is logged and counted instead.
	Fail(ctx context.Context, saga models.SagaName, sagaID, step, userID, entityID string, payload interface{}, cause error) bool
}

type ReconciliationService interface {
	RunPending(ctx context.Context) (*ReconcileReport, error)
}

type ReportService interface {
	ExportStudentProgress(ctx context.Context, userID string) ([]byte, error)
}

// ServiceManager interface for managing all services
type ServiceManager interface {
	Permission() PermissionService
	Gate() AuthorizationGate
	Identity() IdentityService
	Progress() ProgressService
	Reconciliation() ReconciliationService
	Report() ReportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
