package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/editor"
)

// Tabs in display order.
var Tabs = []string{"products", "students", "employees", "members"}

// Options configures the editor UI.
type Options struct {
	Client   *client.Client
	Start    string // initial tab, one of Tabs
	Life     time.Duration
	WarnLife time.Duration
	Logger   logrus.FieldLogger
}

// AppModel is the Bubbletea model of the editor UI
type AppModel struct {
	screens []screen
	active  int
	bridge  *bridge
	toasts  ToastStack
	confirm *ConfirmationDialog
	reply   chan<- bool
	spinner spinner.Model
	width   int
	height  int
}

// NewAppModel creates the editor UI for every entity.
func NewAppModel(opts Options) (*AppModel, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	b := newBridge()
	edOpts := []editor.Option{
		editor.WithNotifier(b),
		editor.WithConfirmer(b),
		editor.WithLogger(log.WithField("component", "editor")),
		editor.WithToastLife(opts.Life, opts.WarnLife),
	}

	c := opts.Client
	screens := []screen{
		newEntityScreen(0, editor.NewProductEditor(client.NewProductService(c), edOpts...), log),
		newEntityScreen(1, editor.NewStudentEditor(client.NewStudentService(c), edOpts...), log),
		newEntityScreen(2, editor.NewEmployeeEditor(client.NewEmployeeService(c), edOpts...), log),
		newEntityScreen(3, editor.NewMemberEditor(client.NewMemberService(c), edOpts...), log),
	}

	m := newAppModel(screens, b)
	if opts.Start != "" {
		i := tabIndex(opts.Start)
		if i < 0 {
			m.quit()
			return nil, fmt.Errorf("unknown tab %q (want one of %s)", opts.Start, strings.Join(Tabs, ", "))
		}
		m.active = i
	}
	return m, nil
}

func newAppModel(screens []screen, b *bridge) *AppModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = infoStyle

	return &AppModel{
		screens: screens,
		bridge:  b,
		toasts:  NewToastStack(4),
		spinner: s,
	}
}

func tabIndex(name string) int {
	for i, tab := range Tabs {
		if strings.EqualFold(tab, name) {
			return i
		}
	}
	return -1
}

// Init initializes the model
func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.wait(),
		m.spinner.Tick,
		m.screens[m.active].Init(),
	)
}

// Update handles messages
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		var cmds []tea.Cmd
		for _, s := range m.screens {
			cmds = append(cmds, s.Update(msg))
		}
		return m, tea.Batch(cmds...)

	case toastMsg:
		return m, tea.Batch(m.toasts.Push(msg.n), m.bridge.wait())

	case toastExpiredMsg:
		m.toasts.Expire(msg.id)
		return m, nil

	case confirmRequestMsg:
		m.ask(msg)
		return m, m.bridge.wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case opDoneMsg:
		if msg.tab >= 0 && msg.tab < len(m.screens) {
			return m, m.screens[msg.tab].Update(msg)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quit()
			return m, tea.Quit
		}

		if m.confirm != nil {
			if msg.String() == "esc" || msg.String() == "q" {
				m.answer(false)
				return m, nil
			}
			return m, m.confirm.Update(msg)
		}

		current := m.screens[m.active]
		if current.Modal() {
			return m, current.Update(msg)
		}

		switch msg.String() {
		case "q":
			m.quit()
			return m, tea.Quit
		case "tab", "right", "l":
			return m, m.switchTo((m.active + 1) % len(m.screens))
		case "shift+tab", "left", "h":
			return m, m.switchTo((m.active + len(m.screens) - 1) % len(m.screens))
		case "1", "2", "3", "4":
			i := int(msg.String()[0] - '1')
			if i < len(m.screens) {
				return m, m.switchTo(i)
			}
			return m, nil
		}
		return m, current.Update(msg)
	}

	return m, nil
}

func (m *AppModel) switchTo(i int) tea.Cmd {
	m.active = i
	return m.screens[i].Init()
}

// ask shows the confirmation dialog for a request. A second request while
// one is showing is declined.
func (m *AppModel) ask(req confirmRequestMsg) {
	if m.confirm != nil {
		req.reply <- false
		return
	}
	d := NewConfirmationDialog(req.header, req.message)
	d.OnConfirm = func() tea.Cmd {
		m.answer(true)
		return nil
	}
	d.OnCancel = func() tea.Cmd {
		m.answer(false)
		return nil
	}
	m.confirm = &d
	m.reply = req.reply
}

func (m *AppModel) answer(yes bool) {
	if m.reply != nil {
		m.reply <- yes
	}
	m.confirm = nil
	m.reply = nil
}

// quit declines a pending confirmation, releases the bridge and closes
// every editor.
func (m *AppModel) quit() {
	if m.confirm != nil {
		m.answer(false)
	}
	m.bridge.stop()
	for _, s := range m.screens {
		s.Close()
	}
}

// View renders the UI
func (m *AppModel) View() string {
	tabs := make([]string, len(m.screens))
	for i, s := range m.screens {
		label := fmt.Sprintf("%d %s", i+1, s.Title())
		if i == m.active {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = inactiveTabStyle.Render(label)
		}
	}
	header := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("databridge"),
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
	)

	bodyHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(m.toasts.View())-3, 0)
	var body string
	if m.confirm != nil {
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.confirm.View())
	} else {
		body = m.screens[m.active].View(m.width, bodyHeight, m.spinner.View())
	}

	footer := helpStyle.Render(FormatKey("tab/←/→", "switch") + " • " + FormatKey("q", "quit"))
	if m.toasts.Len() == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, "", body, footer)
	}
	toasts := lipgloss.PlaceHorizontal(m.width, lipgloss.Right, m.toasts.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, toasts, body, footer)
}

// Run starts the interactive editor UI and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	m, err := NewAppModel(opts)
	if err != nil {
		return err
	}
	defer m.quit()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
