package migrations

import (
	"github.com/huangang/setupd/internal/models"
	"gorm.io/gorm"
)

// Migration is a named schema change. Up runs inside a transaction.
type Migration struct {
	Name string
	Up   func(tx *gorm.DB) error
}

// All returns every known migration in the order it must be applied.
func All() []Migration {
	return []Migration{
		{
			Name: "0001_create_users",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().AutoMigrate(&models.User{})
			},
		},
		{
			Name: "0002_create_settings",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().AutoMigrate(&models.Settings{})
			},
		},
		{
			Name: "0003_create_system_logs",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().AutoMigrate(&models.SystemLog{})
			},
		},
		{
			Name: "0004_users_role_index",
			Up: func(tx *gorm.DB) error {
				if tx.Migrator().HasIndex(&models.User{}, "idx_users_role") {
					return nil
				}
				return tx.Exec("CREATE INDEX idx_users_role ON users (role)").Error
			},
		},
	}
}
