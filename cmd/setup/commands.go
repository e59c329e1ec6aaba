package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/huangang/setupd/internal/app"
	"github.com/huangang/setupd/internal/config"
	"github.com/huangang/setupd/internal/services"
	"github.com/huangang/setupd/pkg/logger"
)

var errNoTerminal = errors.New("no terminal available for interactive password prompt (use --password)")

type runOptions struct {
	input       services.SetupInput
	password    string
	writeConfig bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "setup",
		Short:         "Initialize a fresh instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to config.yaml")

	root.AddCommand(newStatusCmd(&cfgPath), newRunCmd(&cfgPath))
	return root
}

// openApp loads configuration and connects to the database. Logs go to
// stderr so command output stays on stdout.
func openApp(cfgPath string) (*app.App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.InitWithWriter(cfg.Log.Level, os.Stderr)

	return app.New(cfg)
}

func newStatusCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether setup can run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Setup.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printStatus(out io.Writer, status services.Availability) {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, "Installation: ")

	switch status {
	case services.AvailabilityAvailable:
		color.New(color.FgGreen).Fprintln(out, "available")
	case services.AvailabilityLocked:
		color.New(color.FgYellow).Fprintln(out, "locked by configuration")
	case services.AvailabilityInitialized:
		color.New(color.FgYellow).Fprintln(out, "already initialized")
	default:
		fmt.Fprintln(out, status.String())
	}
}

func newRunCmd(cfgPath *string) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run setup and create the administrator account",
		Example: strings.TrimSpace(`
  setup run --email admin@example.com --username admin_user \
    --org-name "Example Inc" --org-contact-email ops@example.com`),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := runSetup(cmd.Context(), cmd.OutOrStdout(), a.Setup, opts); err != nil {
				return err
			}
			if opts.writeConfig {
				return lockConfig(cmd.OutOrStdout(), a.Config, *cfgPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.writeConfig, "write-config", false, "set setup.locked in the config file after a successful run")
	addUserFlags(cmd.Flags(), opts)
	addSettingsFlags(cmd.Flags(), &opts.input.Settings)
	return cmd
}

func addUserFlags(fs *pflag.FlagSet, opts *runOptions) {
	fs.StringVar(&opts.input.User.Email, "email", "", "administrator email (required)")
	fs.StringVar(&opts.input.User.Username, "username", "", "administrator username")
	fs.StringVar(&opts.password, "password", "", "administrator password (prompted when omitted)")
}

func addSettingsFlags(fs *pflag.FlagSet, in *services.SettingsInput) {
	fs.StringVar(&in.OrganizationName, "org-name", "", "organization name")
	fs.StringVar(&in.OrganizationContactEmail, "org-contact-email", "", "organization contact email")
	fs.StringVar(&in.OrganizationURL, "org-url", "", "organization website")
	fs.StringVar(&in.Locale, "locale", services.DefaultLocale, "default locale")
	fs.BoolVar(&in.AllowRegistration, "allow-registration", false, "allow self sign-up")
	fs.StringVar(&in.CustomCSSURL, "custom-css-url", "", "stylesheet applied to the UI")
}

// setupRunner is the part of services.SetupService the run command needs.
type setupRunner interface {
	IsAvailable(ctx context.Context) error
	Setup(ctx context.Context, input services.SetupInput) (*services.SetupResult, error)
}

func runSetup(ctx context.Context, out io.Writer, setup setupRunner, opts *runOptions) error {
	ctx = services.WithRequestInfo(ctx, services.SourceCLI, "")

	// Fail before prompting when setup cannot run anyway.
	if err := setup.IsAvailable(ctx); err != nil {
		return err
	}

	input := opts.input
	input.User.Password = opts.password
	if input.User.Password == "" {
		password, err := promptPassword()
		if err != nil {
			return err
		}
		input.User.Password = password
	}

	result, err := setup.Setup(ctx, input)
	if err != nil {
		var partial *services.PartialSetupError
		if errors.As(err, &partial) {
			color.New(color.FgYellow).Fprintln(out, "Settings were saved but the administrator account is incomplete; repair it manually.")
		}
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	green.Fprintln(out, "Setup complete")
	cyan.Fprint(out, "  Installation ID: ")
	fmt.Fprintln(out, result.Settings.InstallationID)
	cyan.Fprint(out, "  Organization:    ")
	fmt.Fprintln(out, result.Settings.OrganizationName)
	cyan.Fprint(out, "  Administrator:   ")
	fmt.Fprintf(out, "%s <%s> (id %d)\n", result.User.Username, result.User.Email, result.User.ID)
	return nil
}

// lockConfig persists setup.locked so later starts refuse setup from
// configuration alone.
func lockConfig(out io.Writer, cfg *config.Config, cfgPath string) error {
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg.Setup.Locked = true
	if err := cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	color.New(color.FgCyan).Fprint(out, "  Config:          ")
	fmt.Fprintf(out, "%s (setup.locked: true)\n", cfgPath)
	return nil
}

// promptPassword reads the password twice from the terminal with echo off.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}

	fmt.Fprint(os.Stderr, "Administrator password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
