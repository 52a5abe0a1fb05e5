package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/marshallshelly/databridge/pkg/editor"
	"github.com/marshallshelly/databridge/pkg/model"
)

// screen is one entity tab.
type screen interface {
	Title() string
	// Init activates the screen the first time it is shown.
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, spin string) string
	// Modal reports whether a dialog owns the keyboard.
	Modal() bool
	Close()
}

// ScreenMode represents what an entity screen is showing
type ScreenMode int

const (
	ModeTable ScreenMode = iota
	ModeForm
	ModeUpload
)

// opDoneMsg reports the end of an editor operation started by a screen.
type opDoneMsg struct {
	tab int
	op  string
	err error
}

// entityScreen shows the list of one entity and drives its editor.
type entityScreen[T model.Entity] struct {
	tab       int
	ed        *editor.Editor[T]
	log       logrus.FieldLogger
	table     table.Model
	form      *FormDialog
	upload    *UploadDialog
	activated bool
	status    string
}

func newEntityScreen[T model.Entity](tab int, ed *editor.Editor[T], log logrus.FieldLogger) *entityScreen[T] {
	meta := ed.Table()
	var cols []table.Column
	if ed.SupportsBatch() {
		cols = append(cols, table.Column{Title: " ", Width: 1})
	}
	for _, col := range meta.Columns {
		width := col.Width
		if width <= 0 {
			width = max(len(col.Label), 12)
		}
		cols = append(cols, table.Column{Title: col.Label, Width: width})
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return &entityScreen[T]{
		tab:   tab,
		ed:    ed,
		log:   log.WithField("tab", ed.Descriptor().Plural),
		table: t,
	}
}

func (s *entityScreen[T]) Title() string {
	return strings.ToUpper(s.ed.Descriptor().Plural[:1]) + s.ed.Descriptor().Plural[1:]
}

func (s *entityScreen[T]) Init() tea.Cmd {
	if s.activated {
		return nil
	}
	s.activated = true
	return s.run("load", s.ed.Activate)
}

func (s *entityScreen[T]) Modal() bool {
	return s.mode() != ModeTable
}

func (s *entityScreen[T]) Close() {
	s.ed.Close()
}

func (s *entityScreen[T]) mode() ScreenMode {
	switch {
	case s.form != nil:
		return ModeForm
	case s.upload != nil:
		return ModeUpload
	default:
		return ModeTable
	}
}

// run executes fn off the UI loop and reports back with an opDoneMsg.
func (s *entityScreen[T]) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	tab := s.tab
	return func() tea.Msg {
		return opDoneMsg{tab: tab, op: op, err: fn(context.Background())}
	}
}

func (s *entityScreen[T]) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.table.SetHeight(max(msg.Height-12, 3))
		return nil

	case opDoneMsg:
		if msg.tab != s.tab {
			return nil
		}
		s.status = ""
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, editor.ErrBusy):
			s.status = "Still working on the previous request"
		case errors.Is(msg.err, editor.ErrDeclined), errors.Is(msg.err, editor.ErrInvalid),
			errors.Is(msg.err, editor.ErrNoFile), errors.Is(msg.err, editor.ErrClosed):
		default:
			s.log.WithError(msg.err).WithField("op", msg.op).Debug("operation failed")
		}
		s.refresh()
		return nil

	case tea.KeyMsg:
		switch s.mode() {
		case ModeForm:
			return s.updateForm(msg)
		case ModeUpload:
			return s.updateUpload(msg)
		default:
			return s.updateTable(msg)
		}
	}
	return nil
}

func (s *entityScreen[T]) updateTable(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "n":
		s.ed.OpenNew()
		s.openForm()
		return nil

	case "e", "enter":
		row, ok := s.current()
		if !ok {
			return nil
		}
		s.ed.OpenEdit(row)
		s.openForm()
		return nil

	case "d", "delete":
		row, ok := s.current()
		if !ok {
			return nil
		}
		return s.run("delete", func(ctx context.Context) error {
			return s.ed.RequestDelete(ctx, row)
		})

	case " ":
		if !s.ed.SupportsBatch() {
			return nil
		}
		if row, ok := s.current(); ok {
			s.ed.ToggleSelect(row.Key())
			s.refresh()
		}
		return nil

	case "D":
		if !s.ed.SupportsBatch() {
			return nil
		}
		return s.run("delete-bulk", func(ctx context.Context) error {
			_, err := s.ed.DeleteSelected(ctx)
			return err
		})

	case "u":
		if err := s.ed.OpenUpload(); err != nil {
			return nil
		}
		s.upload = NewUploadDialog(fmt.Sprintf("Upload %s", s.ed.Descriptor().Plural))
		return nil

	case "r":
		return s.run("reload", s.ed.Reload)
	}

	var cmd tea.Cmd
	s.table, cmd = s.table.Update(msg)
	return cmd
}

func (s *entityScreen[T]) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		s.ed.HideDialog()
		s.form = nil
		return nil
	case "tab", "down":
		return s.form.Next()
	case "shift+tab", "up":
		return s.form.Prev()
	case "ctrl+s":
		return s.submit()
	case "enter":
		if s.form.OnLast() {
			return s.submit()
		}
		return s.form.Next()
	}
	return s.form.Update(msg)
}

// submit copies the form into the draft and saves it. Text that does not
// parse stays in the form with its error and nothing is sent.
func (s *entityScreen[T]) submit() tea.Cmd {
	if s.ed.Snapshot().Busy {
		return nil
	}
	parsed := true
	for _, kv := range s.form.Values() {
		if err := s.ed.SetField(kv[0], kv[1]); err != nil {
			parsed = false
		}
	}
	if !parsed {
		s.form.SetErrors(s.ed.Snapshot().FieldErrors)
		return nil
	}
	return s.run("save", s.ed.Save)
}

func (s *entityScreen[T]) updateUpload(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		s.ed.HideUpload()
		s.upload = nil
		return nil
	case "enter":
		if s.ed.Snapshot().Busy {
			return nil
		}
		if path := s.upload.Path(); path != "" {
			if err := s.ed.SelectFile(path); err != nil {
				s.upload.SetError(s.ed.Snapshot().Upload.FileError)
				return nil
			}
		}
		return s.run("upload", func(ctx context.Context) error {
			_, err := s.ed.Upload(ctx)
			return err
		})
	}
	return s.upload.Update(msg)
}

func (s *entityScreen[T]) openForm() {
	st := s.ed.Snapshot()
	title := "New " + s.ed.Descriptor().Singular
	if st.Mode == editor.ModeEdit {
		title = fmt.Sprintf("Edit %s #%d", s.ed.Descriptor().Singular, st.Draft.Key())
	}
	s.form = NewFormDialog(title, s.ed.Table(), st.Draft)
}

// current returns the record under the table cursor.
func (s *entityScreen[T]) current() (T, bool) {
	var zero T
	items := s.ed.Snapshot().Items
	i := s.table.Cursor()
	if i < 0 || i >= len(items) {
		return zero, false
	}
	return items[i], true
}

// refresh rebuilds the rows and dialogs from the editor state.
func (s *entityScreen[T]) refresh() {
	st := s.ed.Snapshot()
	meta := s.ed.Table()

	rows := make([]table.Row, len(st.Items))
	for i, item := range st.Items {
		row := make(table.Row, 0, len(meta.Columns)+1)
		if s.ed.SupportsBatch() {
			mark := " "
			if st.IsSelected(item.Key()) {
				mark = "●"
			}
			row = append(row, mark)
		}
		for j := range meta.Columns {
			row = append(row, meta.Format(item, &meta.Columns[j]))
		}
		rows[i] = row
	}
	s.table.SetRows(rows)
	if s.table.Cursor() >= len(rows) {
		s.table.SetCursor(max(len(rows)-1, 0))
	}

	if s.form != nil {
		if st.DialogVisible() {
			s.form.SetErrors(st.FieldErrors)
		} else {
			s.form = nil
		}
	}
	if s.upload != nil {
		if st.Upload.Open {
			s.upload.SetError(st.Upload.FileError)
		} else {
			s.upload = nil
		}
	}
}

func (s *entityScreen[T]) View(width, height int, spin string) string {
	st := s.ed.Snapshot()

	switch s.mode() {
	case ModeForm:
		status := ""
		if st.Busy {
			status = spin + " Saving..."
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, s.form.View(status))
	case ModeUpload:
		status := ""
		if st.Busy {
			status = spin + " Uploading..."
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, s.upload.View(status))
	}

	var b strings.Builder
	b.WriteString(s.table.View())
	b.WriteString("\n")

	switch {
	case st.Loading:
		b.WriteString(infoStyle.Render(spin + " Loading " + s.ed.Descriptor().Plural + "..."))
	case st.Busy:
		b.WriteString(infoStyle.Render(spin + " Working..."))
	case len(st.Items) == 0:
		b.WriteString(mutedStyle.Render("No " + s.ed.Descriptor().Plural + " found"))
	default:
		summary := fmt.Sprintf("%d %s", len(st.Items), s.ed.Descriptor().Plural)
		if n := len(st.Selected); n > 0 {
			summary += fmt.Sprintf(" • %d selected", n)
		}
		b.WriteString(mutedStyle.Render(summary))
	}
	if s.status != "" {
		b.WriteString("  ")
		b.WriteString(warningStyle.Render(s.status))
	}

	keys := []string{
		FormatKey("↑/↓", "navigate"),
		FormatKey("n", "new"),
		FormatKey("e", "edit"),
		FormatKey("d", "delete"),
	}
	if s.ed.SupportsBatch() {
		keys = append(keys,
			FormatKey("space", "select"),
			FormatKey("D", "delete selected"),
			FormatKey("u", "upload"),
		)
	}
	keys = append(keys, FormatKey("r", "reload"))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(strings.Join(keys, " • ")))

	return b.String()
}
