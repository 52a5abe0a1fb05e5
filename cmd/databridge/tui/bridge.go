package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marshallshelly/databridge/pkg/editor"
)

// Messages delivered from editor goroutines to the UI loop.
type toastMsg struct {
	n editor.Notification
}

type confirmRequestMsg struct {
	header  string
	message string
	reply   chan<- bool
}

// bridge carries notifications and confirmation requests from editor
// operations, which run inside tea.Cmd goroutines, to the UI loop. It
// implements editor.Notifier and editor.Confirmer.
type bridge struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once
}

func newBridge() *bridge {
	return &bridge{
		events: make(chan tea.Msg, 16),
		done:   make(chan struct{}),
	}
}

// Notify queues n for display.
func (b *bridge) Notify(n editor.Notification) {
	b.send(toastMsg{n: n})
}

// Confirm asks the UI and blocks until the user answers, ctx is done or the
// UI has stopped.
func (b *bridge) Confirm(ctx context.Context, header, message string) bool {
	reply := make(chan bool, 1)
	if !b.send(confirmRequestMsg{header: header, message: message, reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	}
}

func (b *bridge) send(msg tea.Msg) bool {
	select {
	case b.events <- msg:
		return true
	case <-b.done:
		return false
	}
}

// wait returns the command that delivers the next event. The UI re-arms it
// after every event.
func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return msg
		case <-b.done:
			return nil
		}
	}
}

// stop releases every goroutine blocked on the bridge.
func (b *bridge) stop() {
	b.once.Do(func() { close(b.done) })
}
