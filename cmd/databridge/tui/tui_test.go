package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/editor"
	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
)

type productStore struct {
	mu    sync.Mutex
	items []model.Product
}

func (p *productStore) List(ctx context.Context) ([]model.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Product(nil), p.items...), nil
}

func (p *productStore) Create(ctx context.Context, draft model.Product) (client.CreatedResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	draft.ID = int64(len(p.items) + 1)
	p.items = append(p.items, draft)
	return client.CreatedResult{ID: draft.ID}, nil
}

func (p *productStore) Update(ctx context.Context, id int64, draft model.Product) (client.UpdatedResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.items {
		if p.items[i].ID == id {
			p.items[i] = draft
		}
	}
	return client.UpdatedResult{}, nil
}

func (p *productStore) Delete(ctx context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.items {
		if p.items[i].ID == id {
			p.items = append(p.items[:i], p.items[i+1:]...)
			break
		}
	}
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConfirmationDialog(t *testing.T) {
	t.Run("defaults to no", func(t *testing.T) {
		d := NewConfirmationDialog("Confirm", "Delete it?")
		var confirmed, cancelled bool
		d.OnConfirm = func() tea.Cmd { confirmed = true; return nil }
		d.OnCancel = func() tea.Cmd { cancelled = true; return nil }

		d.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.False(t, confirmed)
		assert.True(t, cancelled)
	})

	t.Run("left selects yes", func(t *testing.T) {
		d := NewConfirmationDialog("Confirm", "Delete it?")
		var confirmed bool
		d.OnConfirm = func() tea.Cmd { confirmed = true; return nil }

		d.Update(tea.KeyMsg{Type: tea.KeyLeft})
		assert.True(t, d.YesSelected)
		d.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.True(t, confirmed)
	})

	t.Run("y answers directly", func(t *testing.T) {
		d := NewConfirmationDialog("Confirm", "Delete it?")
		var confirmed bool
		d.OnConfirm = func() tea.Cmd { confirmed = true; return nil }

		d.Update(runes("y"))
		assert.True(t, confirmed)
	})

	t.Run("view", func(t *testing.T) {
		view := NewConfirmationDialog("Confirm", "Delete it?").View()
		assert.Contains(t, view, "Delete it?")
		assert.Contains(t, view, "Yes")
		assert.Contains(t, view, "No")
	})
}

func TestToastStack(t *testing.T) {
	s := NewToastStack(2)
	require.NotNil(t, s.Push(editor.Notification{Severity: editor.SeverityInfo, Summary: "first"}))
	s.Push(editor.Notification{Severity: editor.SeveritySuccess, Summary: "second", Detail: "saved"})
	s.Push(editor.Notification{Severity: editor.SeverityError, Summary: "third", Life: time.Second})

	assert.Equal(t, 2, s.Len())
	view := s.View()
	assert.NotContains(t, view, "first")
	assert.Contains(t, view, "second")
	assert.Contains(t, view, "saved")
	assert.Contains(t, view, "third")

	s.Expire(2)
	assert.Equal(t, 1, s.Len())
	s.Expire(42)
	assert.Equal(t, 1, s.Len())
	s.Expire(3)
	assert.Empty(t, s.View())
}

func TestFormDialog(t *testing.T) {
	table := registry.For[model.Product]()
	f := NewFormDialog("Edit Product", table, model.Product{ID: 7, Name: "Pen", Stock: 3})

	values := f.Values()
	require.Len(t, values, 4)
	assert.Equal(t, [2]string{"name", "Pen"}, values[0])
	assert.Equal(t, "description", values[1][0])
	assert.Equal(t, "price", values[2][0])
	assert.Equal(t, [2]string{"stock", "3"}, values[3])

	assert.Equal(t, "name", f.Focused())
	f.Prev()
	assert.Equal(t, "stock", f.Focused())
	assert.True(t, f.OnLast())
	f.Next()
	assert.Equal(t, "name", f.Focused())

	f.SetErrors(map[string]string{"name": "Name is required"})
	assert.Contains(t, f.View(""), "Name is required")
	f.SetErrors(nil)
	assert.NotContains(t, f.View(""), "Name is required")
	assert.Contains(t, f.View("Saving..."), "Saving...")
}

func TestBridge(t *testing.T) {
	t.Run("confirm waits for the reply", func(t *testing.T) {
		b := newBridge()
		defer b.stop()

		answer := make(chan bool)
		go func() { answer <- b.Confirm(context.Background(), "Confirm", "Delete?") }()

		msg, ok := b.wait()().(confirmRequestMsg)
		require.True(t, ok)
		assert.Equal(t, "Delete?", msg.message)
		msg.reply <- true
		assert.True(t, <-answer)
	})

	t.Run("stopped bridge declines", func(t *testing.T) {
		b := newBridge()
		b.stop()
		assert.False(t, b.Confirm(context.Background(), "Confirm", "Delete?"))
		assert.Nil(t, b.wait()())
	})

	t.Run("notify queues a toast", func(t *testing.T) {
		b := newBridge()
		defer b.stop()
		b.Notify(editor.Notification{Summary: "Successful"})
		msg, ok := b.wait()().(toastMsg)
		require.True(t, ok)
		assert.Equal(t, "Successful", msg.n.Summary)
	})
}

func newProductScreen(t *testing.T, items ...model.Product) (*entityScreen[model.Product], *productStore, *bridge) {
	t.Helper()
	store := &productStore{items: items}
	b := newBridge()
	ed := editor.NewProductEditor(store, editor.WithNotifier(b), editor.WithConfirmer(b))
	s := newEntityScreen(0, ed, logrus.New())
	t.Cleanup(func() {
		b.stop()
		s.Close()
	})

	done, ok := s.Init()().(opDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	s.Update(done)
	return s, store, b
}

func TestEntityScreen(t *testing.T) {
	t.Run("lists records", func(t *testing.T) {
		s, _, _ := newProductScreen(t, model.Product{ID: 1, Name: "Pen"}, model.Product{ID: 2, Name: "Ink"})
		assert.Len(t, s.table.Rows(), 2)
		assert.Nil(t, s.Init())
		assert.Contains(t, s.View(80, 24, ""), "2 products")
	})

	t.Run("form opens and cancels", func(t *testing.T) {
		s, _, _ := newProductScreen(t)
		s.Update(runes("n"))
		assert.True(t, s.Modal())
		assert.Contains(t, s.View(80, 24, ""), "New Product")

		s.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.False(t, s.Modal())
		assert.False(t, s.ed.Snapshot().DialogVisible())
	})

	t.Run("unparsable text stays in the form", func(t *testing.T) {
		s, store, _ := newProductScreen(t)
		s.Update(runes("n"))
		s.form.SetValue("name", "Lamp")
		s.form.SetValue("price", "cheap")

		assert.Nil(t, s.Update(tea.KeyMsg{Type: tea.KeyCtrlS}))
		assert.True(t, s.Modal())
		assert.NotEmpty(t, s.ed.Snapshot().FieldErrors["price"])
		assert.Empty(t, store.items)
	})

	t.Run("save creates and closes the form", func(t *testing.T) {
		s, store, b := newProductScreen(t)
		s.Update(runes("n"))
		s.form.SetValue("name", "Lamp")
		s.form.SetValue("price", "4.5")

		cmd := s.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
		require.NotNil(t, cmd)
		done := cmd().(opDoneMsg)
		require.NoError(t, done.err)
		s.Update(done)

		assert.False(t, s.Modal())
		require.Len(t, store.items, 1)
		assert.Equal(t, "Lamp", store.items[0].Name)
		assert.Len(t, s.table.Rows(), 1)

		toast := b.wait()().(toastMsg)
		assert.Equal(t, "Product created successfully", toast.n.Detail)
	})

	t.Run("delete asks first", func(t *testing.T) {
		s, store, b := newProductScreen(t, model.Product{ID: 1, Name: "Pen"})

		cmd := s.Update(runes("d"))
		require.NotNil(t, cmd)
		result := make(chan tea.Msg)
		go func() { result <- cmd() }()

		req := b.wait()().(confirmRequestMsg)
		assert.True(t, strings.HasPrefix(req.message, "Are you sure you want to delete"))
		req.reply <- true

		done := (<-result).(opDoneMsg)
		require.NoError(t, done.err)
		s.Update(done)
		assert.Empty(t, store.items)
		assert.Empty(t, s.table.Rows())
	})

	t.Run("no batch keys for products", func(t *testing.T) {
		s, _, _ := newProductScreen(t, model.Product{ID: 1, Name: "Pen"})
		assert.Nil(t, s.Update(runes("u")))
		assert.False(t, s.Modal())
		assert.NotContains(t, s.View(80, 24, ""), "upload")
	})
}

func TestAppModelConfirm(t *testing.T) {
	s, _, b := newProductScreen(t)
	m := newAppModel([]screen{s}, b)

	t.Run("yes", func(t *testing.T) {
		reply := make(chan bool, 1)
		m.Update(confirmRequestMsg{header: "Confirm", message: "Delete?", reply: reply})
		require.NotNil(t, m.confirm)
		assert.Contains(t, m.View(), "Delete?")

		m.Update(tea.KeyMsg{Type: tea.KeyLeft})
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.True(t, <-reply)
		assert.Nil(t, m.confirm)
	})

	t.Run("esc declines", func(t *testing.T) {
		reply := make(chan bool, 1)
		m.Update(confirmRequestMsg{header: "Confirm", message: "Delete?", reply: reply})
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.False(t, <-reply)
	})

	t.Run("second request is declined", func(t *testing.T) {
		first := make(chan bool, 1)
		second := make(chan bool, 1)
		m.Update(confirmRequestMsg{message: "first", reply: first})
		m.Update(confirmRequestMsg{message: "second", reply: second})
		assert.False(t, <-second)

		m.quit()
		assert.False(t, <-first)
	})
}
