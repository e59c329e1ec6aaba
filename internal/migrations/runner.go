package migrations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huangang/setupd/internal/models"
	"github.com/huangang/setupd/pkg/logger"
	"gorm.io/gorm"
)

// Runner discovers and applies migrations against a gorm database.
// Applied units are tracked in the schema_migrations table.
type Runner struct {
	db         *gorm.DB
	migrations []Migration
	mu         sync.Mutex
}

func NewRunner(db *gorm.DB, migrations []Migration) *Runner {
	return &Runner{db: db, migrations: migrations}
}

// ListPending returns the migrations that have not been applied yet, in
// registry order.
func (r *Runner) ListPending(ctx context.Context) ([]Migration, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, m := range r.migrations {
		if !applied[m.Name] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Run applies the given migrations in order. A unit that is already recorded
// is skipped, so running the same list twice is harmless. Units applied
// before a failure stay applied. Concurrent calls on one Runner run one
// after the other.
func (r *Runner) Run(ctx context.Context, pending []Migration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureTable(ctx); err != nil {
		return err
	}

	for _, m := range pending {
		start := time.Now()
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.SchemaMigration{}).Where("name = ?", m.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaMigration{Name: m.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		logger.Info().Str("migration", m.Name).Dur("took", time.Since(start)).Msg("applied migration")
	}
	return nil
}

func (r *Runner) ensureTable(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.SchemaMigration{})
}

func (r *Runner) applied(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)
	if !r.db.WithContext(ctx).Migrator().HasTable(&models.SchemaMigration{}) {
		return applied, nil
	}

	var rows []models.SchemaMigration
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		applied[row.Name] = true
	}
	return applied, nil
}
