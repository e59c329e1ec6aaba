package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/huangang/setupd/internal/models"
	"gorm.io/gorm"
)

const DefaultLocale = "en-US"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SettingsInput is the operator-supplied settings payload.
type SettingsInput struct {
	OrganizationName         string `json:"organization_name" validate:"required,max=200"`
	OrganizationContactEmail string `json:"organization_contact_email" validate:"required,email,max=255"`
	OrganizationURL          string `json:"organization_url" validate:"omitempty,url,max=500"`
	Locale                   string `json:"locale" validate:"omitempty,oneof=en-US de es fr nl pt-BR zh-CN"`
	AllowRegistration        bool   `json:"allow_registration"`
	CustomCSSURL             string `json:"custom_css_url" validate:"omitempty,url,max=500"`
}

// Validate checks the payload against the settings schema.
func (in SettingsInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
}

// SettingsService persists the settings singleton.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// InstallationStatus reports whether the settings singleton exists. A
// database without the settings table is simply not initialized yet.
func (s *SettingsService) InstallationStatus(ctx context.Context) (bool, error) {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.Settings{}) {
		return false, nil
	}

	var count int64
	if err := db.Model(&models.Settings{}).Where("id = ?", models.SettingsID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Get returns the persisted settings or ErrNotInitialized.
func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.Settings{}) {
		return nil, ErrNotInitialized
	}

	var settings models.Settings
	if err := db.First(&settings, models.SettingsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return &settings, nil
}

// Create persists the settings singleton for a fresh installation. It never
// overwrites: if the row already exists, including one inserted by a
// concurrent setup, it returns ErrAlreadyInitialized.
func (s *SettingsService) Create(ctx context.Context, in SettingsInput) (*models.Settings, error) {
	settings := models.Settings{
		ID:             models.SettingsID,
		InstallationID: uuid.NewString(),
	}
	in.apply(&settings)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Settings{}).Where("id = ?", models.SettingsID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyInitialized
		}
		// writers that race past the count still collide on the primary key
		if err := tx.Create(&settings).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", ErrAlreadyInitialized, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update replaces the values of an existing settings singleton. The
// installation id is kept. It returns ErrNotInitialized before setup.
func (s *SettingsService) Update(ctx context.Context, in SettingsInput) (*models.Settings, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var settings models.Settings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !tx.Migrator().HasTable(&models.Settings{}) {
			return ErrNotInitialized
		}
		if err := tx.First(&settings, models.SettingsID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotInitialized
			}
			return err
		}
		in.apply(&settings)
		return tx.Save(&settings).Error
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (in SettingsInput) apply(settings *models.Settings) {
	locale := in.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	settings.OrganizationName = strings.TrimSpace(in.OrganizationName)
	settings.OrganizationContactEmail = strings.ToLower(strings.TrimSpace(in.OrganizationContactEmail))
	settings.OrganizationURL = in.OrganizationURL
	settings.Locale = locale
	settings.AllowRegistration = in.AllowRegistration
	settings.CustomCSSURL = in.CustomCSSURL
}
