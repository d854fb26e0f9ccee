package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/rollbook/internal/record"
)

// requestColumns heads the edit request table.
var requestColumns = []string{"ID", "Student", "Field", "New Value", "Status", "Created", "Handled By"}

const requestTimeLayout = "2006-01-02 15:04"

func requestRow(r record.EditRequest) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.StudentID,
		r.Field,
		r.NewValue,
		string(r.Status),
		r.CreatedAt.Format(requestTimeLayout),
		r.HandledBy,
	}
}

// NewRequestCommand creates the request command group.
func NewRequestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "File and handle student edit requests",
		Long: `Students file edit requests against their own record; admins list,
approve and reject them.

An approved request writes the new value to the student record in the
same transaction that closes it. Approved and rejected requests are final.`,
	}

	cmd.AddCommand(newRequestCreateCommand(rootOpts))
	cmd.AddCommand(newRequestListCommand(rootOpts))
	cmd.AddCommand(newRequestMineCommand(rootOpts))
	cmd.AddCommand(newRequestApproveCommand(rootOpts))
	cmd.AddCommand(newRequestRejectCommand(rootOpts))
	return cmd
}

func newRequestCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var field, value, message, student string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Ask for a change to a student record",
		Long: `File an edit request for one field. Students file against their own
record; admins must name the student with --student.

Editable fields: ` + fmt.Sprint(record.EditableFields),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestCreate(rootOpts, student, field, value, message, cmd)
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "field to change")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	cmd.Flags().StringVar(&message, "message", "", "note for the admin")
	cmd.Flags().StringVar(&student, "student", "", "student id (admins only)")
	return cmd
}

func runRequestCreate(opts *RootOptions, student, field, value, message string, cmd *cobra.Command) error {
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
	studentID, err := ownStudentID(res, student)
	if err != nil {
		return formatter.Fail(err)
	}

	r, err := a.requests.Create(cmd.Context(), studentID, field, value, message)
	if err != nil {
		return formatter.Fail(err)
	}
	a.logger.Info("edit request filed", "id", r.ID, "student", r.StudentID, "field", r.Field)

	if formatter.Format == "json" {
		return formatter.Success(r)
	}
	fmt.Fprintf(formatter.Writer, "Filed edit request %d (%s)\n", r.ID, r.Field)
	return nil
}

func newRequestListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all edit requests (admin)",
		Long:  `List edit requests, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestList(rootOpts, record.Status(status), false, cmd)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only requests in this status (OPEN|APPROVED|REJECTED)")
	return cmd
}

func newRequestMineCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your own edit requests (student)",
		Long:  `List the edit requests filed against your record, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestList(rootOpts, "", true, cmd)
		},
	}
}

func runRequestList(opts *RootOptions, status record.Status, mine bool, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	switch status {
	case "", record.StatusOpen, record.StatusApproved, record.StatusRejected:
	default:
		return formatter.Fail(NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q", status)))
	}

	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	var requests []record.EditRequest
	if mine {
		res, err := a.login(cmd.Context(), record.RoleStudent)
		if err != nil {
			return formatter.Fail(err)
		}
		studentID, err := ownStudentID(res, "")
		if err != nil {
			return formatter.Fail(err)
		}
		requests, err = a.requests.ListForStudent(cmd.Context(), studentID)
		if err != nil {
			return formatter.Fail(err)
		}
	} else {
		if _, err := a.login(cmd.Context(), record.RoleAdmin); err != nil {
			return formatter.Fail(err)
		}
		requests, err = a.requests.List(cmd.Context())
		if err != nil {
			return formatter.Fail(err)
		}
	}

	filtered := make([]record.EditRequest, 0, len(requests))
	for _, r := range requests {
		if status == "" || r.Status == status {
			filtered = append(filtered, r)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(filtered)
	}
	rows := make([][]string, len(filtered))
	for i, r := range filtered {
		rows[i] = requestRow(r)
	}
	formatter.Table(requestColumns, rows)
	return nil
}

func newRequestApproveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve an open edit request (admin)",
		Long: `Write the request's new value to the student record and mark the
request APPROVED, in one transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestHandle(rootOpts, args[0], record.StatusApproved, "", cmd)
		},
	}
}

func newRequestRejectCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an open edit request (admin)",
		Long:  `Mark the request REJECTED. The student record is not changed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestHandle(rootOpts, args[0], record.StatusRejected, reason, cmd)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the student")
	return cmd
}

func runRequestHandle(opts *RootOptions, rawID string, status record.Status, reason string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return formatter.Fail(NewExitError(ExitCommandError, fmt.Sprintf("invalid request id %q", rawID)))
	}

	a, err := openApp(cmd.Context(), opts, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(err)
	}
	defer a.close()

	res, err := a.login(cmd.Context(), record.RoleAdmin)
	if err != nil {
		return formatter.Fail(err)
	}

	var handled record.EditRequest
	if status == record.StatusApproved {
		handled, err = a.requests.Approve(cmd.Context(), id, res.Username)
	} else if err = a.requests.Reject(cmd.Context(), id, res.Username, reason); err == nil {
		handled, err = a.requests.Get(cmd.Context(), id)
	}
	if err != nil {
		return formatter.Fail(err)
	}
	a.logger.Info("edit request handled", "id", id, "status", handled.Status, "admin", res.Username)

	if formatter.Format == "json" {
		return formatter.Success(handled)
	}
	fmt.Fprintf(formatter.Writer, "Request %d %s\n", handled.ID, handled.Status)
	return nil
}
