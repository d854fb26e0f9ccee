package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/record"
)

// PasswordEnv is read when --password is not given.
const PasswordEnv = "ROLLBOOK_PASSWORD"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides database.path from config
	User       string
	Password   string

	// Clock and NewTraceID are fixed by tests; nil selects the defaults.
	Clock      record.Clock
	NewTraceID func() string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rollbook CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollbook",
		Short: "rollbook - student records",
		Long: `Manage student records, user accounts and student edit requests
stored in a local SQLite database.

Admins add, update and delete students and approve or reject the edit
requests students file against their own records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	pf.StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	pf.StringVarP(&opts.User, "user", "u", "", "username to act as")
	pf.StringVar(&opts.Password, "password", "", "password for --user (default $"+PasswordEnv+")")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewPasswdCommand(opts))
	cmd.AddCommand(NewResetPasswordCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewStudentCommand(opts))
	cmd.AddCommand(NewRequestCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// formatter builds the output formatter for one command invocation.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	gen := o.NewTraceID
	if gen == nil {
		gen = newTraceID
	}
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
		TraceID:   gen(),
	}
}
