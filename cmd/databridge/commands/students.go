package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/databridge/cmd/databridge/output"
	"github.com/marshallshelly/databridge/pkg/editor"
	"github.com/marshallshelly/databridge/pkg/model"
)

// addStudentBatchCmds adds bulk delete and upload to the students group.
func addStudentBatchCmds(students *cobra.Command, ec *entityCommand[model.Student]) {
	deleteBulkCmd := &cobra.Command{
		Use:   "delete-bulk ID...",
		Short: "Delete several students with one request",
		Long: `Delete several students with one request.

Ids the backend does not know are reported as missing; the others are
still deleted.

Examples:
  databridge students delete-bulk 3 7 12
  databridge students delete-bulk 3 7 12 --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteBulk(cmd, ec, args)
		},
	}
	deleteBulkCmd.Flags().BoolVarP(&ec.yes, "yes", "y", false, "Delete without asking")

	uploadCmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Import students from an Excel (.xlsx) or CSV (.csv) file",
		Long: `Import students from a spreadsheet.

The first row names the columns studentName, age and deptName. Rows for
students that already exist are skipped.

Examples:
  databridge students upload ./students.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, ec, args[0])
		},
	}

	students.AddCommand(deleteBulkCmd, uploadCmd)
}

func runDeleteBulk(cmd *cobra.Command, ec *entityCommand[model.Student], args []string) error {
	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	ed := ec.newEditor()
	defer ed.Close()

	// Load first: loading drops selected ids that are not listed.
	if err := ed.Activate(cmd.Context()); err != nil {
		return reported(err)
	}
	for _, id := range ids {
		if !ed.Snapshot().IsSelected(id) {
			ed.ToggleSelect(id)
		}
	}

	result, err := ed.DeleteSelected(cmd.Context())
	if errors.Is(err, editor.ErrDeclined) {
		output.Warning("Delete cancelled")
		return nil
	}
	if err != nil {
		return reported(err)
	}
	if jsonOutput {
		return printJSON(result)
	}
	return nil
}

func runUpload(cmd *cobra.Command, ec *entityCommand[model.Student], path string) error {
	ed := ec.newEditor()
	defer ed.Close()

	if err := ed.OpenUpload(); err != nil {
		return err
	}
	if err := ed.SelectFile(path); err != nil {
		output.Error("%s", ed.Snapshot().Upload.FileError)
		return reported(err)
	}

	result, err := ed.Upload(cmd.Context())
	if err != nil {
		if errors.Is(err, editor.ErrNoFile) {
			return fmt.Errorf("%s", ed.Snapshot().Upload.FileError)
		}
		return reported(err)
	}
	if jsonOutput {
		return printJSON(result)
	}
	return nil
}
