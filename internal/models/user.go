package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"

	AuthTypeLocal = "local"
)

// User represents an account. The account created during setup is the first
// admin and has its email confirmed unconditionally.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Username         string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password         string         `gorm:"size:255" json:"-"` // bcrypt hash
	Email            string         `gorm:"uniqueIndex;size:255" json:"email"`
	EmailConfirmed   bool           `gorm:"default:false" json:"email_confirmed"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Role             string         `gorm:"size:50;default:user" json:"role"`       // admin, moderator, user
	AuthType         string         `gorm:"size:20;default:local" json:"auth_type"` // local
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	LastLogin        *time.Time     `json:"last_login"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
