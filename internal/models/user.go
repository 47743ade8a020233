package models

import (
	"strings"
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is the relational identity fact every document-store record keys off.
type User struct {
	ID           string  `json:"id" gorm:"primaryKey;size:36"`
	Email        string  `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Username     string  `json:"username" gorm:"uniqueIndex;not null;size:100"`
	PasswordHash string  `json:"-" gorm:"size:255"`
	FirstName    string  `json:"first_name" gorm:"size:100"`
	LastName     string  `json:"last_name" gorm:"size:100"`
	Avatar       *string `json:"avatar" gorm:"size:500"`

	// Status
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	IsVerified  bool       `json:"is_verified" gorm:"default:false"`
	IsOnline    bool       `json:"is_online" gorm:"default:false"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Roles       []UserRole       `json:"-" gorm:"foreignKey:UserID"`
	Permissions []UserPermission `json:"-" gorm:"foreignKey:UserID"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{u.FirstName, u.LastName} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return u.Email
	}
	return strings.Join(parts, " ")
}

type Role struct {
	ID          string           `json:"id" gorm:"primaryKey;size:36"`
	Name        string           `json:"name" gorm:"uniqueIndex;not null;size:100"`
	Description string           `json:"description" gorm:"size:500"`
	Permissions []RolePermission `json:"-" gorm:"foreignKey:RoleID"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (Role) TableName() string {
	return "roles"
}

type Permission struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null;size:100"`
	Description string    `json:"description" gorm:"size:500"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RolePermission struct {
	RoleID       string     `json:"role_id" gorm:"primaryKey;size:36"`
	PermissionID string     `json:"permission_id" gorm:"primaryKey;size:36"`
	Permission   Permission `json:"permission" gorm:"foreignKey:PermissionID"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

type UserRole struct {
	UserID     string    `json:"user_id" gorm:"primaryKey;size:36"`
	RoleID     string    `json:"role_id" gorm:"primaryKey;size:36"`
	Role       Role      `json:"role" gorm:"foreignKey:RoleID"`
	AssignedAt time.Time `json:"assigned_at" gorm:"autoCreateTime"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// UserPermission is a permission granted directly to a user, outside any role.
type UserPermission struct {
	UserID       string     `json:"user_id" gorm:"primaryKey;size:36"`
	PermissionID string     `json:"permission_id" gorm:"primaryKey;size:36"`
	Permission   Permission `json:"permission" gorm:"foreignKey:PermissionID"`
}

func (UserPermission) TableName() string {
	return "user_permissions"
}
