package models

import "time"

// SettingsID is the primary key of the one and only settings row.
// The primary key doubles as the storage-level guard against two
// concurrent setups inserting competing configurations.
const SettingsID uint = 1

// Settings is the persisted instance configuration. A row with ID ==
// SettingsID means the instance has been initialized.
type Settings struct {
	ID                       uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InstallationID           string    `gorm:"size:36;uniqueIndex;not null" json:"installation_id"`
	OrganizationName         string    `gorm:"size:200;not null" json:"organization_name"`
	OrganizationContactEmail string    `gorm:"size:255;not null" json:"organization_contact_email"`
	OrganizationURL          string    `gorm:"size:500" json:"organization_url"`
	Locale                   string    `gorm:"size:20;default:en-US" json:"locale"`
	AllowRegistration        bool      `gorm:"default:false" json:"allow_registration"`
	CustomCSSURL             string    `gorm:"size:500" json:"custom_css_url"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (Settings) TableName() string { return "settings" }
