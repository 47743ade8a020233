package postgres

import (
	"context"

	"github.com/SAP-F-2025/learner-service/internal/models"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserPostgreSQL struct {
	db *gorm.DB
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db}
}

func (u *UserPostgreSQL) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	db := getDB(u.db, tx)
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return repositories.HandleDBError(err, "create user")
	}
	return nil
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	db := getDB(u.db, tx)
	var user models.User

	if err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, repositories.HandleDBError(err, "get user by id")
	}

	return &user, nil
}

func (u *UserPostgreSQL) GetWithAccessGraph(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	db := getDB(u.db, tx)
	var user models.User

	if err := db.WithContext(ctx).
		Preload("Roles.Role.Permissions.Permission").
		Preload("Permissions.Permission").
		Where("id = ?", id).
		First(&user).Error; err != nil {
		return nil, repositories.HandleDBError(err, "get user access graph")
	}

	return &user, nil
}

func (u *UserPostgreSQL) UpdateFields(ctx context.Context, tx *gorm.DB, id string, fields repositories.UserFields) error {
	if fields.IsEmpty() {
		return nil
	}

	updates := map[string]interface{}{}
	if fields.FirstName != nil {
		updates["first_name"] = *fields.FirstName
	}
	if fields.LastName != nil {
		updates["last_name"] = *fields.LastName
	}
	if fields.Avatar != nil {
		updates["avatar"] = *fields.Avatar
	}

	db := getDB(u.db, tx)
	result := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return repositories.HandleDBError(result.Error, "update user")
	}
	if result.RowsAffected == 0 {
		return repositories.HandleDBError(gorm.ErrRecordNotFound, "update user")
	}

	return nil
}

type RolePostgreSQL struct {
	db *gorm.DB
}

func NewRolePostgreSQL(db *gorm.DB) repositories.RoleRepository {
	return &RolePostgreSQL{db: db}
}

func (r *RolePostgreSQL) GetByName(ctx context.Context, tx *gorm.DB, name string) (*models.Role, error) {
	db := getDB(r.db, tx)
	var role models.Role

	if err := db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, repositories.HandleDBError(err, "get role by name")
	}

	return &role, nil
}

func (r *RolePostgreSQL) AssignToUser(ctx context.Context, tx *gorm.DB, userID, roleID string) error {
	db := getDB(r.db, tx)
	link := models.UserRole{UserID: userID, RoleID: roleID}

	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error; err != nil {
		return repositories.HandleDBError(err, "assign role")
	}

	return nil
}

func (r *RolePostgreSQL) HasUserRole(ctx context.Context, tx *gorm.DB, userID, roleID string) (bool, error) {
	db := getDB(r.db, tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&count).Error; err != nil {
		return false, repositories.HandleDBError(err, "check user role")
	}

	return count > 0, nil
}
