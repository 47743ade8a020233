package repositories

import (
	"context"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"gorm.io/gorm"
)

// UserFields carries the relational columns an update may touch. Nil means
// "not supplied" and leaves the column untouched.
type UserFields struct {
	FirstName *string
	LastName  *string
	Avatar    *string
}

func (f UserFields) IsEmpty() bool {
	return f.FirstName == nil && f.LastName == nil && f.Avatar == nil
}

// UserRepository owns the identity rows. Users are never deleted here.
type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)

	// GetWithAccessGraph loads roles, role permissions and direct permissions
	GetWithAccessGraph(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)

	UpdateFields(ctx context.Context, tx *gorm.DB, id string, fields UserFields) error
}

type RoleRepository interface {
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*models.Role, error)

	// AssignToUser is a no-op when the user already holds the role
	AssignToUser(ctx context.Context, tx *gorm.DB, userID, roleID string) error
	HasUserRole(ctx context.Context, tx *gorm.DB, userID, roleID string) (bool, error)
}
