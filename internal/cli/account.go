package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/record"
)

// InitResult is the data payload of the init command.
type InitResult struct {
	Database            string `json:"database"`
	DefaultAdminCreated bool   `json:"default_admin_created"`
	Username            string `json:"username,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and the default admin account",
		Long: `Create or migrate the database and seed the default admin account
if no accounts exist yet.

Every command does this on open; init only reports what happened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	result := InitResult{
		Database:            a.cfg.Database.Path,
		DefaultAdminCreated: a.bootstrap.DefaultAdminCreated,
		Username:            a.bootstrap.Username,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Database ready: %s\n", result.Database)
	if result.DefaultAdminCreated {
		fmt.Fprintf(formatter.Writer, "Created default admin %q. Change its password with 'rollbook passwd'.\n", result.Username)
	}
	return nil
}

// LoginResult is the data payload of the login command.
type LoginResult struct {
	Username           string      `json:"username"`
	Role               record.Role `json:"role"`
	StudentID          string      `json:"student_id,omitempty"`
	MustChangePassword bool        `json:"must_change_password"`
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials",
		Long: `Check the credentials given by --user and --password and report
the account's role.

With --role the account must also hold that role.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(rootOpts, record.Role(role), cmd)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "required role (admin|student)")
	return cmd
}

func runLogin(opts *RootOptions, role record.Role, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if role != "" && !role.Valid() {
		return formatter.Fail(NewExitError(ExitCommandError, fmt.Sprintf("invalid role %q: must be admin or student", role)))
	}

	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	roles := []record.Role{record.RoleAdmin, record.RoleStudent}
	if role != "" {
		roles = []record.Role{role}
	}
	res, err := a.login(cmd.Context(), roles...)
	if err != nil {
		return formatter.Fail(err)
	}

	result := LoginResult{
		Username:           res.Username,
		Role:               res.Role,
		StudentID:          res.StudentID,
		MustChangePassword: res.MustChangePassword,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Logged in as %s (%s)\n", result.Username, result.Role)
	if result.MustChangePassword {
		fmt.Fprintln(formatter.Writer, "Password change required. Run 'rollbook passwd'.")
	}
	return nil
}

// NewPasswdCommand creates the passwd command.
func NewPasswdCommand(rootOpts *RootOptions) *cobra.Command {
	var newPassword string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change your own password",
		Long: `Change the password of --user. The current password is given by
--password or $ROLLBOOK_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasswd(rootOpts, newPassword, cmd)
		},
	}

	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	return cmd
}

func runPasswd(opts *RootOptions, newPassword string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if opts.User == "" {
		return formatter.Fail(NewExitError(ExitCommandError, "--user is required"))
	}

	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if err := a.auth.ChangePassword(cmd.Context(), opts.User, opts.password(), newPassword); err != nil {
		return formatter.Fail(err)
	}
	a.logger.Info("password changed", "username", opts.User)

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"username": opts.User})
	}
	fmt.Fprintf(formatter.Writer, "Password changed for %s\n", opts.User)
	return nil
}

// NewResetPasswordCommand creates the reset-password command.
func NewResetPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	var newPassword string

	cmd := &cobra.Command{
		Use:   "reset-password <username>",
		Short: "Set another user's password (admin)",
		Long: `Overwrite the password of <username>. --user must be an admin.

The user must change the new password on next login.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetPassword(rootOpts, args[0], newPassword, cmd)
		},
	}

	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	return cmd
}

func runResetPassword(opts *RootOptions, target, newPassword string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if opts.User == "" {
		return formatter.Fail(NewExitError(ExitCommandError, "--user is required"))
	}

	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if err := a.auth.ResetPassword(cmd.Context(), opts.User, opts.password(), target, newPassword); err != nil {
		return formatter.Fail(err)
	}
	a.logger.Info("password reset", "admin", opts.User, "username", target)

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"username": target})
	}
	fmt.Fprintf(formatter.Writer, "Password reset for %s\n", target)
	return nil
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect login accounts (admin)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Long:  `List every login account ordered by username. Password hashes are never shown.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(rootOpts, cmd)
		},
	})
	return cmd
}

func runUserList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if _, err := a.login(cmd.Context(), record.RoleAdmin); err != nil {
		return formatter.Fail(err)
	}

	users, err := a.store.ListUsers(cmd.Context())
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(users)
	}
	rows := make([][]string, len(users))
	for i, u := range users {
		rows[i] = []string{u.Username, string(u.Role), u.StudentID, strconv.FormatBool(u.MustChangePassword)}
	}
	formatter.Table([]string{"Username", "Role", "Student", "Must Change"}, rows)
	return nil
}
