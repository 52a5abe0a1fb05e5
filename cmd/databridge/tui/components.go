package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/databridge/pkg/editor"
	"github.com/marshallshelly/databridge/pkg/schema"
)

// ConfirmationDialog represents a yes/no confirmation dialog
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
	OnConfirm   func() tea.Cmd
	OnCancel    func() tea.Cmd
}

// NewConfirmationDialog creates a new confirmation dialog
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{
		Title:       title,
		Message:     message,
		YesSelected: false,
	}
}

// Update handles confirmation dialog updates
func (d *ConfirmationDialog) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			d.YesSelected = true
			return nil
		case "right", "l":
			d.YesSelected = false
			return nil
		case "y":
			d.YesSelected = true
			return d.choose()
		case "n":
			d.YesSelected = false
			return d.choose()
		case "enter":
			return d.choose()
		}
	}
	return nil
}

func (d *ConfirmationDialog) choose() tea.Cmd {
	if d.YesSelected && d.OnConfirm != nil {
		return d.OnConfirm()
	}
	if !d.YesSelected && d.OnCancel != nil {
		return d.OnCancel()
	}
	return nil
}

// View renders the confirmation dialog
func (d ConfirmationDialog) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yesButton := inactiveButtonStyle.Render("Yes")
	noButton := inactiveButtonStyle.Render("No")

	if d.YesSelected {
		yesButton = activeButtonStyle.Render("Yes")
	} else {
		noButton = activeButtonStyle.Render("No")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yesButton, "  ", noButton))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "navigate") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc", "cancel")))

	return boxStyle.Render(b.String())
}

// toastExpiredMsg removes a toast once its life is over.
type toastExpiredMsg struct {
	id int
}

type toast struct {
	id int
	n  editor.Notification
}

// ToastStack holds the notifications currently on screen, newest last.
type ToastStack struct {
	MaxLen int
	next   int
	items  []toast
}

// NewToastStack creates a stack that shows at most maxLen toasts.
func NewToastStack(maxLen int) ToastStack {
	return ToastStack{MaxLen: maxLen}
}

// Push shows n and returns the command that expires it.
func (s *ToastStack) Push(n editor.Notification) tea.Cmd {
	s.next++
	id := s.next
	s.items = append(s.items, toast{id: id, n: n})
	if s.MaxLen > 0 && len(s.items) > s.MaxLen {
		s.items = s.items[len(s.items)-s.MaxLen:]
	}

	life := n.Life
	if life <= 0 {
		life = editor.DefaultLife
	}
	return tea.Tick(life, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

// Expire removes the toast with the given id.
func (s *ToastStack) Expire(id int) {
	for i, t := range s.items {
		if t.id == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of toasts on screen.
func (s ToastStack) Len() int {
	return len(s.items)
}

// View renders the toasts stacked vertically.
func (s ToastStack) View() string {
	if len(s.items) == 0 {
		return ""
	}

	views := make([]string, len(s.items))
	for i, t := range s.items {
		accent := severityStyle(t.n.Severity)
		body := accent.Render(severityIcon(t.n.Severity) + " " + t.n.Summary)
		if t.n.Detail != "" {
			body += "\n" + t.n.Detail
		}
		views[i] = toastStyle.BorderForeground(accent.GetForeground()).Render(body)
	}
	return lipgloss.JoinVertical(lipgloss.Right, views...)
}

type formField struct {
	col   schema.ColumnMetadata
	input textinput.Model
	err   string
}

// FormDialog edits the fields of one record with a text input per column.
type FormDialog struct {
	Title  string
	fields []formField
	focus  int
}

// NewFormDialog builds a form for the editable columns of table, prefilled
// from draft.
func NewFormDialog(title string, table *schema.TableMetadata, draft any) *FormDialog {
	cols := table.EditableColumns()
	f := &FormDialog{Title: title, fields: make([]formField, len(cols))}
	for i := range cols {
		ti := textinput.New()
		ti.Prompt = "› "
		ti.Placeholder = cols[i].Label
		ti.Width = 36
		ti.CharLimit = 255
		ti.SetValue(table.Format(draft, &cols[i]))
		f.fields[i] = formField{col: cols[i], input: ti}
	}
	if len(f.fields) > 0 {
		f.fields[0].input.Focus()
	}
	return f
}

// Focused returns the wire name of the focused field.
func (f *FormDialog) Focused() string {
	if len(f.fields) == 0 {
		return ""
	}
	return f.fields[f.focus].col.JSONName
}

// OnLast reports whether the last field has focus.
func (f *FormDialog) OnLast() bool {
	return f.focus == len(f.fields)-1
}

// Next moves focus to the next field, wrapping around.
func (f *FormDialog) Next() tea.Cmd {
	return f.move(1)
}

// Prev moves focus to the previous field, wrapping around.
func (f *FormDialog) Prev() tea.Cmd {
	return f.move(-1)
}

func (f *FormDialog) move(delta int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.fields[f.focus].input.Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	return f.fields[f.focus].input.Focus()
}

// Values returns the field texts as wire name/value pairs in column order.
func (f *FormDialog) Values() [][2]string {
	values := make([][2]string, len(f.fields))
	for i, field := range f.fields {
		values[i] = [2]string{field.col.JSONName, field.input.Value()}
	}
	return values
}

// SetValue replaces the text of a field.
func (f *FormDialog) SetValue(name, value string) {
	for i := range f.fields {
		if f.fields[i].col.JSONName == name {
			f.fields[i].input.SetValue(value)
		}
	}
}

// SetErrors shows errs under the matching fields and clears the others.
func (f *FormDialog) SetErrors(errs map[string]string) {
	for i := range f.fields {
		f.fields[i].err = errs[f.fields[i].col.JSONName]
	}
}

// Update passes msg to the focused input.
func (f *FormDialog) Update(msg tea.Msg) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

// View renders the form. A submitting form shows status instead of the help.
func (f *FormDialog) View(status string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(f.Title))
	b.WriteString("\n")

	for i, field := range f.fields {
		label := labelStyle.Render(field.col.Label)
		if i == f.focus {
			label = focusedLabelStyle.Render(field.col.Label)
		}
		if field.col.Required {
			label += requiredStyle.Render(" *")
		}
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(field.input.View())
		b.WriteString("\n")
		if field.err != "" {
			b.WriteString(fieldErrorStyle.Render(field.err))
			b.WriteString("\n")
		}
	}

	if status != "" {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(status))
	} else {
		b.WriteString(helpStyle.Render(
			FormatKey("tab/↓", "next") + " • " +
				FormatKey("shift+tab/↑", "previous") + " • " +
				FormatKey("ctrl+s", "save") + " • " +
				FormatKey("esc", "cancel"),
		))
	}

	return activeBoxStyle.Render(b.String())
}

// UploadDialog asks for the path of a spreadsheet to upload.
type UploadDialog struct {
	Title string
	input textinput.Model
	err   string
}

// NewUploadDialog creates a focused upload dialog.
func NewUploadDialog(title string) *UploadDialog {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "./students.xlsx"
	ti.Width = 48
	ti.Focus()
	return &UploadDialog{Title: title, input: ti}
}

// Path returns the entered path without surrounding blanks.
func (d *UploadDialog) Path() string {
	return strings.TrimSpace(d.input.Value())
}

// SetError shows err under the input; an empty err clears it.
func (d *UploadDialog) SetError(err string) {
	d.err = err
}

// Update passes msg to the path input.
func (d *UploadDialog) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	return cmd
}

// View renders the dialog.
func (d *UploadDialog) View(status string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("Excel (.xlsx) or CSV (.csv) with columns studentName, age, deptName"))
	b.WriteString("\n\n")
	b.WriteString(d.input.View())
	b.WriteString("\n")
	if d.err != "" {
		b.WriteString(fieldErrorStyle.Render(d.err))
		b.WriteString("\n")
	}

	if status != "" {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(status))
	} else {
		b.WriteString(helpStyle.Render(FormatKey("enter", "upload") + " • " + FormatKey("esc", "cancel")))
	}

	return activeBoxStyle.Render(b.String())
}
