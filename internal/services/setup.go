package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/setupd/internal/migrations"
	"github.com/huangang/setupd/internal/models"
	"github.com/huangang/setupd/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MigrationRunner lists and applies outstanding schema migrations.
type MigrationRunner interface {
	ListPending(ctx context.Context) ([]migrations.Migration, error)
	Run(ctx context.Context, pending []migrations.Migration) error
}

// InstallationStatusReader answers whether the settings singleton exists.
type InstallationStatusReader interface {
	InstallationStatus(ctx context.Context) (bool, error)
}

// ConfigStore persists the settings singleton. Create must fail with
// ErrAlreadyInitialized rather than overwrite an existing row.
type ConfigStore interface {
	InstallationStatusReader
	Create(ctx context.Context, in SettingsInput) (*models.Settings, error)
}

// CredentialChecker validates usernames and passwords.
type CredentialChecker interface {
	IsValidUsername(ctx context.Context, username string, strict bool) error
	IsValidPassword(password string) error
}

// AccountStore creates and mutates user accounts.
type AccountStore interface {
	CredentialChecker
	CreateLocalUser(ctx context.Context, email, password, username string) (*models.User, error)
	SetRole(ctx context.Context, userID uint, role string) (*models.User, error)
	ConfirmEmail(ctx context.Context, userID uint, email string) (*models.User, error)
}

type SetupUserInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type SetupInput struct {
	Settings SettingsInput  `json:"settings"`
	User     SetupUserInput `json:"user"`
}

type SetupResult struct {
	Settings *models.Settings `json:"settings"`
	User     *models.User     `json:"user"`
}

// Availability is the outcome of an installation check.
type Availability int

const (
	AvailabilityAvailable Availability = iota
	AvailabilityLocked
	AvailabilityInitialized
)

func (a Availability) String() string {
	switch a {
	case AvailabilityAvailable:
		return "available"
	case AvailabilityLocked:
		return "locked"
	case AvailabilityInitialized:
		return "already_initialized"
	default:
		return "unknown"
	}
}

// Err maps a non-available outcome to its sentinel error.
func (a Availability) Err() error {
	switch a {
	case AvailabilityLocked:
		return ErrLocked
	case AvailabilityInitialized:
		return ErrAlreadyInitialized
	default:
		return nil
	}
}

// InstallationGate decides whether setup may run. It reads, it does not
// lock: two callers can both see AvailabilityAvailable.
type InstallationGate struct {
	locked bool
	store  InstallationStatusReader
}

func NewInstallationGate(locked bool, store InstallationStatusReader) *InstallationGate {
	return &InstallationGate{locked: locked, store: store}
}

// Check returns the availability. The error is only set when the store
// could not be read.
func (g *InstallationGate) Check(ctx context.Context) (Availability, error) {
	if g.locked {
		return AvailabilityLocked, nil
	}

	initialized, err := g.store.InstallationStatus(ctx)
	if err != nil {
		return AvailabilityAvailable, err
	}
	if initialized {
		return AvailabilityInitialized, nil
	}
	return AvailabilityAvailable, nil
}

// SetupValidator checks a setup payload.
type SetupValidator struct {
	credentials CredentialChecker
}

func NewSetupValidator(credentials CredentialChecker) *SetupValidator {
	return &SetupValidator{credentials: credentials}
}

// Validate rejects a missing or malformed email before anything else, then
// runs the username, password and settings checks concurrently and returns
// the first failure.
func (v *SetupValidator) Validate(ctx context.Context, input SetupInput) error {
	email := strings.TrimSpace(input.User.Email)
	if email == "" {
		return ErrMissingEmail
	}
	if err := validate.Var(email, "email"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return v.credentials.IsValidUsername(gctx, input.User.Username, false)
	})
	g.Go(func() error {
		return v.credentials.IsValidPassword(input.User.Password)
	})
	g.Go(func() error {
		return input.Settings.Validate()
	})
	return g.Wait()
}

// Stage names a step of the setup sequence.
type Stage string

const (
	StageChecking        Stage = "checking"
	StageValidating      Stage = "validating"
	StageMigrating       Stage = "migrating"
	StagePersisting      Stage = "persisting"
	StageCreatingAccount Stage = "creating_account"
	StageFinalizing      Stage = "finalizing"
	StageComplete        Stage = "complete"
)

// PartialSetupError is returned when setup fails after the settings were
// persisted. The instance counts as initialized from then on, but the admin
// account may be missing or lack its role or confirmed email. Nothing is
// rolled back; an operator has to repair the account by hand.
type PartialSetupError struct {
	Stage  Stage
	UserID uint
	Err    error
}

func (e *PartialSetupError) Error() string {
	return fmt.Sprintf("setup partially applied, failed while %s: %v", e.Stage, e.Err)
}

func (e *PartialSetupError) Unwrap() error {
	return e.Err
}

// SetupService runs the one-time instance bootstrap.
type SetupService struct {
	gate       *InstallationGate
	validator  *SetupValidator
	migrations MigrationRunner
	config     ConfigStore
	accounts   AccountStore
	audit      *SystemLogService
	log        zerolog.Logger
}

// NewSetupService wires the orchestrator. locked is the deployment's
// installation lock and never changes for the life of the service.
func NewSetupService(locked bool, runner MigrationRunner, config ConfigStore, accounts AccountStore) *SetupService {
	return &SetupService{
		gate:       NewInstallationGate(locked, config),
		validator:  NewSetupValidator(accounts),
		migrations: runner,
		config:     config,
		accounts:   accounts,
		log:        logger.Component("setup"),
	}
}

// WithAuditLog records setup outcomes to the system log.
func (s *SetupService) WithAuditLog(audit *SystemLogService) *SetupService {
	s.audit = audit
	return s
}

// Status reports the installation availability.
func (s *SetupService) Status(ctx context.Context) (Availability, error) {
	return s.gate.Check(ctx)
}

// IsAvailable returns nil when setup may proceed, ErrLocked or
// ErrAlreadyInitialized when it may not, or the store's read error.
func (s *SetupService) IsAvailable(ctx context.Context) error {
	availability, err := s.gate.Check(ctx)
	if err != nil {
		return err
	}
	return availability.Err()
}

func (s *SetupService) Validate(ctx context.Context, input SetupInput) error {
	return s.validator.Validate(ctx, input)
}

// Setup bootstraps the instance. Each stage runs only if the previous one
// succeeded and the first failure is returned as is. Failures after the
// settings are written come back as *PartialSetupError.
func (s *SetupService) Setup(ctx context.Context, input SetupInput) (result *SetupResult, err error) {
	started := time.Now()
	stage := StageChecking
	defer func() {
		s.finish(ctx, stage, started, result, err)
	}()

	if err = s.IsAvailable(ctx); err != nil {
		return nil, err
	}

	stage = s.enter(StageValidating, started)
	if err = s.validator.Validate(ctx, input); err != nil {
		return nil, err
	}

	stage = s.enter(StageMigrating, started)
	pending, err := s.migrations.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if err = s.migrations.Run(ctx, pending); err != nil {
		return nil, err
	}

	stage = s.enter(StagePersisting, started)
	settings, err := s.config.Create(ctx, input.Settings)
	if err != nil {
		return nil, err
	}

	stage = s.enter(StageCreatingAccount, started)
	user, err := s.accounts.CreateLocalUser(ctx, input.User.Email, input.User.Password, input.User.Username)
	if err != nil {
		return nil, &PartialSetupError{Stage: stage, Err: err}
	}

	stage = s.enter(StageFinalizing, started)
	admin, err := s.finalize(ctx, user, input.User.Email)
	if err != nil {
		return nil, &PartialSetupError{Stage: stage, UserID: user.ID, Err: err}
	}

	stage = StageComplete
	return &SetupResult{Settings: settings, User: admin}, nil
}

// finalize grants the admin role and confirms the email concurrently.
func (s *SetupService) finalize(ctx context.Context, user *models.User, email string) (*models.User, error) {
	var promoted, confirmed *models.User

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.accounts.SetRole(gctx, user.ID, models.RoleAdmin)
		promoted = u
		return err
	})
	g.Go(func() error {
		u, err := s.accounts.ConfirmEmail(gctx, user.ID, email)
		confirmed = u
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	admin := *user
	admin.Role = promoted.Role
	admin.EmailConfirmed = confirmed.EmailConfirmed
	admin.EmailConfirmedAt = confirmed.EmailConfirmedAt
	admin.UpdatedAt = promoted.UpdatedAt
	if confirmed.UpdatedAt.After(admin.UpdatedAt) {
		admin.UpdatedAt = confirmed.UpdatedAt
	}
	return &admin, nil
}

func (s *SetupService) enter(stage Stage, started time.Time) Stage {
	s.log.Debug().Str("stage", string(stage)).Dur("elapsed", time.Since(started)).Msg("setup stage")
	return stage
}

func (s *SetupService) finish(ctx context.Context, stage Stage, started time.Time, result *SetupResult, err error) {
	took := time.Since(started)
	if err != nil {
		s.log.Error().Err(err).Str("stage", string(stage)).Dur("took", took).Msg("setup aborted")
		if s.audit != nil {
			var userID *uint
			var partial *PartialSetupError
			if errors.As(err, &partial) && partial.UserID != 0 {
				userID = &partial.UserID
			}
			s.audit.Error(ctx, "setup", stage, err.Error(), userID, nil)
		}
		return
	}

	s.log.Info().
		Uint("user_id", result.User.ID).
		Str("installation_id", result.Settings.InstallationID).
		Dur("took", took).
		Msg("setup complete")
	if s.audit != nil {
		s.audit.Info(ctx, "setup", stage, "instance initialized", &result.User.ID, map[string]string{
			"username":        result.User.Username,
			"installation_id": result.Settings.InstallationID,
		})
	}
}
