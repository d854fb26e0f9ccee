package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/record"
	"github.com/roach88/rollbook/internal/roster"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <roster.yaml>",
		Short: "Import students from a roster file (admin)",
		Long: `Insert every student listed in a YAML roster file and create their
logins, in file order.

The whole file is checked before anything is written. Import stops at the
first student that cannot be inserted; students before it are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	students, err := roster.Load(path)
	if err != nil {
		return formatter.Fail(err)
	}
	formatter.VerboseLog("Loaded %d student(s) from %s", len(students), path)

	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if _, err := a.login(cmd.Context(), record.RoleAdmin); err != nil {
		return formatter.Fail(err)
	}

	sum, err := roster.Import(cmd.Context(), a.store, a.auth, students)
	a.logger.Info("roster imported", "path", path, "imported", sum.Imported, "accounts_created", sum.AccountsCreated)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(sum)
	}
	fmt.Fprintf(formatter.Writer, "Imported %d student(s), created %d login(s)\n", sum.Imported, sum.AccountsCreated)
	return nil
}
