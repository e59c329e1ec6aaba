package models

import "time"

// SchemaMigration records a migration unit that has been applied.
type SchemaMigration struct {
	Name      string    `gorm:"primaryKey;size:200" json:"name"`
	AppliedAt time.Time `gorm:"not null" json:"applied_at"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }
