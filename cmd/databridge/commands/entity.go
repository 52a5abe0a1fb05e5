package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marshallshelly/databridge/cmd/databridge/output"
	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/editor"
	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
)

// opener builds the editor of one entity from the resolved client.
type opener[T model.Entity] func(c *client.Client, opts ...editor.Option) *editor.Editor[T]

// entityCommand serves the list/create/update/delete subcommands of one
// entity.
type entityCommand[T model.Entity] struct {
	open opener[T]
	sets []string
	yes  bool
}

// newEntityCmd returns the command group of one entity.
func newEntityCmd[T model.Entity](use, singular string, open opener[T]) (*cobra.Command, *entityCommand[T]) {
	ec := &entityCommand[T]{open: open}

	group := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage %s", use),
		Long: fmt.Sprintf(`Manage %[1]s through the backend API.

Subcommands:
  list    - Show every %[2]s
  create  - Create a %[2]s from --set field=value pairs
  update  - Change fields of an existing %[2]s
  delete  - Delete a %[2]s after confirmation`, use, strings.ToLower(singular)),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ec.runList(cmd.Context())
		},
	}

	createCmd := &cobra.Command{
		Use:     "create",
		Short:   fmt.Sprintf("Create a %s", strings.ToLower(singular)),
		Example: fmt.Sprintf("  databridge %s create %s", use, exampleSets[T]()),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ec.runCreate(cmd.Context())
		},
	}
	createCmd.Flags().StringArrayVar(&ec.sets, "set", nil, "Field value as field=value (repeatable)")

	updateCmd := &cobra.Command{
		Use:   "update ID",
		Short: fmt.Sprintf("Update a %s", strings.ToLower(singular)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ec.runUpdate(cmd.Context(), id)
		},
	}
	updateCmd.Flags().StringArrayVar(&ec.sets, "set", nil, "Field value as field=value (repeatable)")

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: fmt.Sprintf("Delete a %s", strings.ToLower(singular)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ec.runDelete(cmd.Context(), id)
		},
	}
	deleteCmd.Flags().BoolVarP(&ec.yes, "yes", "y", false, "Delete without asking")

	group.AddCommand(listCmd, createCmd, updateCmd, deleteCmd)
	return group, ec
}

func init() {
	products, _ := newEntityCmd("products", "Product", openProducts)
	students, studentsEC := newEntityCmd("students", "Student", openStudents)
	employees, _ := newEntityCmd("employees", "Employee", openEmployees)
	members, _ := newEntityCmd("members", "Member", openMembers)

	addStudentBatchCmds(students, studentsEC)
	rootCmd.AddCommand(products, students, employees, members)
}

func openProducts(c *client.Client, opts ...editor.Option) *editor.Editor[model.Product] {
	return editor.NewProductEditor(client.NewProductService(c), opts...)
}

func openStudents(c *client.Client, opts ...editor.Option) *editor.Editor[model.Student] {
	return editor.NewStudentEditor(client.NewStudentService(c), opts...)
}

func openEmployees(c *client.Client, opts ...editor.Option) *editor.Editor[model.Employee] {
	return editor.NewEmployeeEditor(client.NewEmployeeService(c), opts...)
}

func openMembers(c *client.Client, opts ...editor.Option) *editor.Editor[model.Member] {
	return editor.NewMemberEditor(client.NewMemberService(c), opts...)
}

// newEditor returns a fresh editor wired to console notifications and prompts.
func (ec *entityCommand[T]) newEditor() *editor.Editor[T] {
	confirm := editor.ConfirmerFunc(promptConfirm)
	if ec.yes {
		confirm = func(context.Context, string, string) bool { return true }
	}
	return ec.open(api,
		editor.WithNotifier(editor.NotifierFunc(output.Notify)),
		editor.WithConfirmer(confirm),
		editor.WithLogger(logger.WithField("component", "editor")),
		editor.WithToastLife(cfg.Toast.Life.Std(), cfg.Toast.WarnLife.Std()),
	)
}

func (ec *entityCommand[T]) runList(ctx context.Context) error {
	ed := ec.newEditor()
	defer ed.Close()

	if err := ed.Activate(ctx); err != nil {
		return reported(err)
	}
	items := ed.Snapshot().Items

	if jsonOutput {
		return printJSON(items)
	}
	if len(items) == 0 {
		output.Muted("No %s found", ed.Descriptor().Plural)
		return nil
	}

	table := ed.Table()
	headers := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		headers[i] = col.Label
	}
	rows := make([][]string, len(items))
	for i, item := range items {
		row := make([]string, len(table.Columns))
		for j := range table.Columns {
			row[j] = table.Format(item, &table.Columns[j])
		}
		rows[i] = row
	}
	return output.Table(os.Stdout, headers, rows)
}

func (ec *entityCommand[T]) runCreate(ctx context.Context) error {
	ed := ec.newEditor()
	defer ed.Close()

	ed.OpenNew()
	return ec.save(ctx, ed)
}

func (ec *entityCommand[T]) runUpdate(ctx context.Context, id int64) error {
	if len(ec.sets) == 0 {
		return errors.New("nothing to update: pass at least one --set field=value")
	}

	ed := ec.newEditor()
	defer ed.Close()

	row, err := ec.find(ctx, ed, id)
	if err != nil {
		return err
	}
	ed.OpenEdit(row)
	return ec.save(ctx, ed)
}

func (ec *entityCommand[T]) runDelete(ctx context.Context, id int64) error {
	ed := ec.newEditor()
	defer ed.Close()

	row, err := ec.find(ctx, ed, id)
	if err != nil {
		return err
	}

	err = ed.RequestDelete(ctx, row)
	if errors.Is(err, editor.ErrDeclined) {
		output.Warning("Delete cancelled")
		return nil
	}
	return reported(err)
}

// find loads the list and returns the record with key id.
func (ec *entityCommand[T]) find(ctx context.Context, ed *editor.Editor[T], id int64) (T, error) {
	var zero T
	if err := ed.Activate(ctx); err != nil {
		return zero, reported(err)
	}
	for _, item := range ed.Snapshot().Items {
		if item.Key() == id {
			return item, nil
		}
	}
	return zero, fmt.Errorf("no %s with id %d", strings.ToLower(ed.Descriptor().Singular), id)
}

// save applies the --set pairs to the open draft and submits it. Field
// errors, local or from the server, are printed one per line.
func (ec *entityCommand[T]) save(ctx context.Context, ed *editor.Editor[T]) error {
	for _, pair := range ec.sets {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: want field=value", pair)
		}
		name = strings.TrimSpace(name)
		if err := ed.SetField(name, value); err != nil {
			fields := ed.Snapshot().FieldErrors
			if col := ed.Table().Field(name); col != nil && fields[col.JSONName] != "" {
				printFieldErrors(fields)
				return reported(err)
			}
			return fmt.Errorf("--set %s: %w (fields: %s)", name, err, strings.Join(editableFields[T](), ", "))
		}
	}

	if err := ed.Save(ctx); err != nil {
		printFieldErrors(ed.Snapshot().FieldErrors)
		return reported(err)
	}
	return nil
}

func printFieldErrors(fields map[string]string) {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		output.Error("%s: %s", name, fields[name])
	}
}

func editableFields[T model.Entity]() []string {
	cols := registry.For[T]().EditableColumns()
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.JSONName
	}
	return names
}

func exampleSets[T model.Entity]() string {
	var b strings.Builder
	for i, name := range editableFields[T]() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "--set %s=...", name)
	}
	return b.String()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// promptConfirm asks on the terminal. Without a terminal there is nobody to
// ask, so the answer is no.
func promptConfirm(ctx context.Context, header, message string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		output.Warning("%s (pass --yes to confirm without a terminal)", message)
		return false
	}

	fmt.Fprintf(output.Out, "%s [y/N]: ", message)
	answer := make(chan string, 1)
	// Stdin reads cannot be interrupted. If ctx ends first the reader stays
	// blocked until the process exits, which follows right after: each
	// command asks at most once.
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case a := <-answer:
		return a == "y" || a == "yes"
	case <-ctx.Done():
		return false
	}
}
