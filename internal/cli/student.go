package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/rollbook/internal/record"
)

// studentFlags binds one flag per editable student column.
type studentFlags struct {
	name, father, dob, gender string
	email, phone, address     string
	course, semester, section string
}

func (sf *studentFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&sf.name, "name", "", "student name")
	fs.StringVar(&sf.father, "father", "", "father's name")
	fs.StringVar(&sf.dob, "dob", "", "date of birth (YYYY-MM-DD)")
	fs.StringVar(&sf.gender, "gender", "", "gender")
	fs.StringVar(&sf.email, "email", "", "e-mail address")
	fs.StringVar(&sf.phone, "phone", "", "phone number")
	fs.StringVar(&sf.address, "address", "", "postal address")
	fs.StringVar(&sf.course, "course", "", "course")
	fs.StringVar(&sf.semester, "semester", "", "semester")
	fs.StringVar(&sf.section, "section", "", `combined course and semester, e.g. "B.Tech - 3"`)
}

// apply copies the flags that were set on the command line onto st.
// Unset flags leave the existing value alone.
func (sf *studentFlags) apply(fs *pflag.FlagSet, st *record.Student) error {
	if fs.Changed("section") && (fs.Changed("course") || fs.Changed("semester")) {
		return NewExitError(ExitCommandError, "--section cannot be combined with --course or --semester")
	}
	set := func(flag string, dst *string, val string) {
		if fs.Changed(flag) {
			*dst = val
		}
	}
	set("name", &st.Name, sf.name)
	set("father", &st.FatherName, sf.father)
	set("dob", &st.DOB, strings.TrimSpace(sf.dob))
	set("gender", &st.Gender, sf.gender)
	set("email", &st.Email, sf.email)
	set("phone", &st.Phone, sf.phone)
	set("address", &st.Address, sf.address)
	set("course", &st.Course, sf.course)
	set("semester", &st.Semester, sf.semester)
	if fs.Changed("section") {
		st.Course, st.Semester = record.ParseSection(sf.section)
	}
	return nil
}

// NewStudentCommand creates the student command group.
func NewStudentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Manage student records",
		Long: `Add, update, delete, show, list and search student records.

All subcommands need an admin account except show, which a student may
run against their own record.`,
	}

	cmd.AddCommand(newStudentAddCommand(rootOpts))
	cmd.AddCommand(newStudentUpdateCommand(rootOpts))
	cmd.AddCommand(newStudentDeleteCommand(rootOpts))
	cmd.AddCommand(newStudentShowCommand(rootOpts))
	cmd.AddCommand(newStudentListCommand(rootOpts))
	cmd.AddCommand(newStudentSearchCommand(rootOpts))
	return cmd
}

// StudentAddResult is the data payload of student add.
type StudentAddResult struct {
	Student        record.Student `json:"student"`
	AccountCreated bool           `json:"account_created"`
}

func newStudentAddCommand(rootOpts *RootOptions) *cobra.Command {
	var sf studentFlags

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a student and create their login",
		Long: `Add a student record. Age is computed from --dob.

A student account named <id> is created with <id> as its initial
password, which must be changed on first login.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudentAdd(rootOpts, &sf, args[0], cmd)
		},
	}

	sf.bind(cmd.Flags())
	return cmd
}

func runStudentAdd(opts *RootOptions, sf *studentFlags, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st := record.Student{ID: id}
	if err := sf.apply(cmd.Flags(), &st); err != nil {
		return formatter.Fail(err)
	}

	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if _, err := a.login(cmd.Context(), record.RoleAdmin); err != nil {
		return formatter.Fail(err)
	}

	stored, err := a.store.InsertStudent(cmd.Context(), st)
	if err != nil {
		return formatter.Fail(err)
	}
	created, err := a.auth.ProvisionStudent(cmd.Context(), stored.ID)
	if err != nil {
		return formatter.Fail(err)
	}
	a.logger.Info("student added", "id", stored.ID, "account_created", created)

	if formatter.Format == "json" {
		return formatter.Success(StudentAddResult{Student: stored, AccountCreated: created})
	}
	fmt.Fprintf(formatter.Writer, "Added student %s\n", stored.ID)
	if created {
		fmt.Fprintf(formatter.Writer, "Created login %q (initial password is the student id)\n", stored.ID)
	}
	return nil
}

func newStudentUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var sf studentFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a student",
		Long: `Update the fields given as flags. Fields without a flag keep their
current value. Age is recomputed from the date of birth.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudentUpdate(rootOpts, &sf, args[0], cmd)
		},
	}

	sf.bind(cmd.Flags())
	return cmd
}

func runStudentUpdate(opts *RootOptions, sf *studentFlags, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if _, err := a.login(cmd.Context(), record.RoleAdmin); err != nil {
		return formatter.Fail(err)
	}

	st, err := a.store.GetStudent(cmd.Context(), strings.TrimSpace(id))
	if err != nil {
		return formatter.Fail(err)
	}
	if err := sf.apply(cmd.Flags(), &st); err != nil {
		return formatter.Fail(err)
	}
	stored, err := a.store.UpdateStudent(cmd.Context(), st)
	if err != nil {
		return formatter.Fail(err)
	}
	a.logger.Info("student updated", "id", stored.ID)

	if formatter.Format == "json" {
		return formatter.Success(stored)
	}
	fmt.Fprintf(formatter.Writer, "Updated student %s\n", stored.ID)
	return nil
}

func newStudentDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a student",
		Long: `Delete a student record. The student's login and edit requests
are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudentDelete(rootOpts, args[0], cmd)
		},
	}
}

func runStudentDelete(opts *RootOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if _, err := a.login(cmd.Context(), record.RoleAdmin); err != nil {
		return formatter.Fail(err)
	}
	if err := a.store.DeleteStudent(cmd.Context(), id); err != nil {
		return formatter.Fail(err)
	}
	a.logger.Info("student deleted", "id", id)

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"id": id})
	}
	fmt.Fprintf(formatter.Writer, "Deleted student %s\n", id)
	return nil
}

func newStudentShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one student",
		Long: `Show one student record. Students may omit [id] and see their own
record; admins must name one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runStudentShow(rootOpts, id, cmd)
		},
	}
}

func runStudentShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	res, err := a.login(cmd.Context(), record.RoleAdmin, record.RoleStudent)
	if err != nil {
		return formatter.Fail(err)
	}
	id, err = ownStudentID(res, id)
	if err != nil {
		return formatter.Fail(err)
	}

	st, err := a.store.GetStudent(cmd.Context(), id)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(st)
	}
	row := st.Row()
	rows := make([][]string, len(record.StudentColumns))
	for i, col := range record.StudentColumns {
		rows[i] = []string{col, row[i]}
	}
	formatter.Table([]string{"Field", "Value"}, rows)
	return nil
}

func newStudentListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all students",
		Long:  `List all students ordered by name, case-insensitively, then by id.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudentQuery(rootOpts, "", false, cmd)
		},
	}
}

func newStudentSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search students",
		Long: `List students whose id, name, father's name, course, semester,
phone, e-mail or address contains <text>, ignoring case.

Empty text lists every student.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudentQuery(rootOpts, args[0], true, cmd)
		},
	}
}

func runStudentQuery(opts *RootOptions, query string, search bool, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	if _, err := a.login(cmd.Context(), record.RoleAdmin); err != nil {
		return formatter.Fail(err)
	}

	var students []record.Student
	if search {
		students, err = a.store.SearchStudents(cmd.Context(), query)
	} else {
		students, err = a.store.ListStudents(cmd.Context())
	}
	if err != nil {
		return formatter.Fail(err)
	}
	formatter.VerboseLog("%d student(s)", len(students))

	if formatter.Format == "json" {
		if students == nil {
			students = []record.Student{}
		}
		return formatter.Success(students)
	}
	rows := make([][]string, len(students))
	for i, st := range students {
		rows[i] = st.Row()
	}
	formatter.Table(record.StudentColumns, rows)
	return nil
}
