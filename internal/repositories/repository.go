package repositories

import "context"

// Repository groups the relational (PostgreSQL) repositories
type Repository interface {
	// Identity domain
	User() UserRepository
	Role() RoleRepository

	// Learning domain
	Course() CourseRepository
	Enrollment() EnrollmentRepository

	// Failed saga steps
	Saga() SagaRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// DocumentRepository groups the document-store (MongoDB) collections
type DocumentRepository interface {
	Profiles() ProfileRepository
	Progress() LessonProgressRepository
	Activity() ActivityRepository
	Notifications() NotificationRepository

	// EnsureIndexes creates the unique indexes the write paths rely on
	EnsureIndexes(ctx context.Context) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
