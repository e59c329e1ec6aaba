package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/huangang/setupd/internal/models"
	"github.com/huangang/setupd/internal/utils"
	"gorm.io/gorm"
)

const (
	MinUsernameLength = 2
	MaxUsernameLength = 50
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes
	MaxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// reservedUsernames are rejected in strict mode only; setup validates in
// non-strict mode so the first account may be called "admin".
var reservedUsernames = map[string]bool{
	"admin":         true,
	"administrator": true,
	"root":          true,
	"system":        true,
	"moderator":     true,
	"staff":         true,
	"support":       true,
}

var validRoles = map[string]bool{
	models.RoleAdmin:     true,
	models.RoleModerator: true,
	models.RoleUser:      true,
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// IsValidUsername checks format and availability of a username.
func (s *UserService) IsValidUsername(ctx context.Context, username string, strict bool) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidUsername, MinUsernameLength, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: only letters, numbers and underscores are allowed", ErrInvalidUsername)
	}
	if strict && reservedUsernames[strings.ToLower(username)] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidUsername, username)
	}

	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.User{}) {
		return nil
	}
	var count int64
	if err := db.Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(username)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %q is already taken", ErrInvalidUsername, username)
	}
	return nil
}

// IsValidPassword checks password strength.
func (s *UserService) IsValidPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: must be at most %d bytes", ErrInvalidPassword, MaxPasswordLength)
	}
	return nil
}

// CreateLocalUser creates a password-authenticated account with the default
// role and an unconfirmed email.
func (s *UserService) CreateLocalUser(ctx context.Context, email, password, username string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username: username,
		Password: hashedPassword,
		Email:    email,
		Role:     models.RoleUser,
		AuthType: models.AuthTypeLocal,
		IsActive: true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("LOWER(username) = ? OR email = ?", strings.ToLower(username), email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateUser
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateUser
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetRole assigns role to the user and returns the updated record.
func (s *UserService) SetRole(ctx context.Context, userID uint, role string) (*models.User, error) {
	if !validRoles[role] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", role)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetByID(ctx, userID)
}

// ConfirmEmail marks email as confirmed for the user owning it.
func (s *UserService) ConfirmEmail(ctx context.Context, userID uint, email string) (*models.User, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND email = ?", userID, normalizeEmail(email)).
		Updates(map[string]interface{}{
			"email_confirmed":    true,
			"email_confirmed_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetByID(ctx, userID)
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
