package editor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/model"
)

// fakeService is an in-memory Service that records every call.
type fakeService[T model.Entity] struct {
	mu      sync.Mutex
	items   []T
	calls   []string
	listErr error
	saveErr error
	delErr  error
	block   chan struct{}
}

func (f *fakeService[T]) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeService[T]) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService[T]) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeService[T]) List(ctx context.Context) ([]T, error) {
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.items...), nil
}

func (f *fakeService[T]) Create(ctx context.Context, draft T) (client.CreatedResult, error) {
	f.record("create")
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return client.CreatedResult{}, ctx.Err()
		}
	}
	if f.saveErr != nil {
		return client.CreatedResult{}, f.saveErr
	}
	return client.CreatedResult{ID: 99, Message: "created"}, nil
}

func (f *fakeService[T]) Update(ctx context.Context, id int64, draft T) (client.UpdatedResult, error) {
	f.record("update")
	if f.saveErr != nil {
		return client.UpdatedResult{}, f.saveErr
	}
	return client.UpdatedResult{Message: "updated"}, nil
}

func (f *fakeService[T]) Delete(ctx context.Context, id int64) error {
	f.record("delete")
	return f.delErr
}

// fakeBatch is an in-memory BatchService.
type fakeBatch struct {
	bulk      client.BulkDeleteResult
	bulkErr   error
	upload    client.UploadResult
	uploadErr error
	gotIDs    []int64
	gotFile   string
	calls     int
}

func (b *fakeBatch) DeleteBulk(ctx context.Context, ids []int64) (client.BulkDeleteResult, error) {
	b.calls++
	b.gotIDs = ids
	return b.bulk, b.bulkErr
}

func (b *fakeBatch) Upload(ctx context.Context, filename string, content io.Reader) (client.UploadResult, error) {
	b.calls++
	b.gotFile = filename
	return b.upload, b.uploadErr
}

// recorder collects notifications and answers confirmations.
type recorder struct {
	mu      sync.Mutex
	toasts  []Notification
	prompts []string
	answer  bool
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.toasts = append(r.toasts, n)
	r.mu.Unlock()
}

func (r *recorder) Confirm(ctx context.Context, header, message string) bool {
	r.mu.Lock()
	r.prompts = append(r.prompts, message)
	r.mu.Unlock()
	return r.answer
}

func (r *recorder) last(t *testing.T) Notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.toasts, "expected a notification")
	return r.toasts[len(r.toasts)-1]
}

func newStudentEditor(svc *fakeService[model.Student], batch *fakeBatch, rec *recorder) *Editor[model.Student] {
	opts := []Option{WithNotifier(rec), WithConfirmer(rec)}
	if batch != nil {
		opts = append(opts, WithBatch(batch))
	}
	return New[model.Student](svc, StudentDescriptor, opts...)
}

func TestEditor_ActivateLoadsList(t *testing.T) {
	svc := &fakeService[model.Product]{items: []model.Product{{ID: 1, Name: "Desk"}}}
	rec := &recorder{}
	ed := New[model.Product](svc, ProductDescriptor, WithNotifier(rec))

	require.NoError(t, ed.Activate(context.Background()))

	state := ed.Snapshot()
	assert.Equal(t, []model.Product{{ID: 1, Name: "Desk"}}, state.Items)
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.False(t, state.Loading)
	assert.Empty(t, rec.toasts)
}

func TestEditor_LoadFailureKeepsList(t *testing.T) {
	svc := &fakeService[model.Product]{items: []model.Product{{ID: 1, Name: "Desk"}}}
	rec := &recorder{}
	ed := New[model.Product](svc, ProductDescriptor, WithNotifier(rec))
	require.NoError(t, ed.Activate(context.Background()))

	svc.listErr = &client.TransportError{Method: "GET", URL: "x", Err: errors.New("refused")}
	assert.Error(t, ed.Reload(context.Background()))

	assert.Len(t, ed.Snapshot().Items, 1)
	toast := rec.last(t)
	assert.Equal(t, SeverityError, toast.Severity)
	assert.Equal(t, "Failed to load products", toast.Detail)
}

func TestEditor_SaveInvalidDraftStaysOpen(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T) ([]string, State[model.Student])
	}{
		{
			name: "empty student",
			run: func(t *testing.T) ([]string, State[model.Student]) {
				svc := &fakeService[model.Student]{}
				ed := newStudentEditor(svc, nil, &recorder{})
				ed.OpenNew()
				err := ed.Save(context.Background())
				assert.ErrorIs(t, err, ErrInvalid)
				return svc.Calls(), ed.Snapshot()
			},
		},
		{
			name: "blank name after edit",
			run: func(t *testing.T) ([]string, State[model.Student]) {
				svc := &fakeService[model.Student]{}
				ed := newStudentEditor(svc, nil, &recorder{})
				ed.OpenEdit(model.Student{ID: 3, StudentName: "Ana", Age: 20, DeptName: "CSE"})
				require.NoError(t, ed.SetField("studentName", "  "))
				err := ed.Save(context.Background())
				assert.ErrorIs(t, err, ErrInvalid)
				return svc.Calls(), ed.Snapshot()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, state := tt.run(t)
			assert.Empty(t, calls, "no request may be issued")
			assert.Equal(t, PhaseSubmitting, state.Phase)
			assert.True(t, state.DialogVisible())
			assert.Equal(t, "Name is required", state.FieldErrors["studentName"])
		})
	}
}

func TestEditor_SaveRoutesByPersistedID(t *testing.T) {
	t.Run("new draft is created", func(t *testing.T) {
		svc := &fakeService[model.Employee]{}
		rec := &recorder{}
		ed := New[model.Employee](svc, EmployeeDescriptor, WithNotifier(rec))

		ed.OpenNew()
		require.NoError(t, ed.SetField("empName", "Raj"))
		require.NoError(t, ed.SetField("deptName", "IT"))
		require.NoError(t, ed.Save(context.Background()))

		assert.Equal(t, []string{"create", "list"}, svc.Calls())
		assert.Equal(t, PhaseIdle, ed.Snapshot().Phase)
		toast := rec.last(t)
		assert.Equal(t, SeveritySuccess, toast.Severity)
		assert.Equal(t, "Employee created successfully", toast.Detail)
		assert.Equal(t, DefaultLife, toast.Life)
	})

	t.Run("listed row saved unchanged is updated", func(t *testing.T) {
		svc := &fakeService[model.Member]{items: []model.Member{{MemberID: 4, Bookname: "Dune", MemberName: "Lee", MemberAge: 30}}}
		rec := &recorder{}
		ed := New[model.Member](svc, MemberDescriptor, WithNotifier(rec))
		require.NoError(t, ed.Activate(context.Background()))

		ed.OpenEdit(ed.Snapshot().Items[0])
		assert.Equal(t, ModeEdit, ed.Snapshot().Mode)
		require.NoError(t, ed.Save(context.Background()))

		assert.Equal(t, []string{"list", "update", "list"}, svc.Calls())
		assert.Equal(t, 1, svc.count("update"))
		assert.Equal(t, 0, svc.count("create"))
		assert.Equal(t, "Member updated successfully", rec.last(t).Detail)
	})

	t.Run("editing the key is refused", func(t *testing.T) {
		ed := New[model.Employee](&fakeService[model.Employee]{}, EmployeeDescriptor)
		ed.OpenNew()
		assert.Error(t, ed.SetField("empId", "7"))
		assert.Zero(t, ed.Snapshot().Draft.EmpID)
	})
}

func TestEditor_SaveWithUnparsedField(t *testing.T) {
	t.Run("nothing is sent and the parse error stays", func(t *testing.T) {
		svc := &fakeService[model.Student]{}
		ed := newStudentEditor(svc, nil, &recorder{})

		ed.OpenEdit(model.Student{ID: 4, StudentName: "Ana", Age: 20, DeptName: "CSE"})
		require.Error(t, ed.SetField("age", "abc"))

		err := ed.Save(context.Background())
		assert.ErrorIs(t, err, ErrInvalid)
		assert.Empty(t, svc.Calls())

		state := ed.Snapshot()
		assert.True(t, state.DialogVisible())
		assert.Equal(t, map[string]string{"age": "Age must be a whole number"}, state.FieldErrors)
		assert.Equal(t, 20, state.Draft.Age)
	})

	t.Run("parse and validation errors are both reported", func(t *testing.T) {
		svc := &fakeService[model.Student]{}
		ed := newStudentEditor(svc, nil, &recorder{})

		ed.OpenNew()
		require.Error(t, ed.SetField("age", "twenty"))

		assert.ErrorIs(t, ed.Save(context.Background()), ErrInvalid)
		assert.Empty(t, svc.Calls())
		fields := ed.Snapshot().FieldErrors
		assert.Equal(t, "Age must be a whole number", fields["age"])
		assert.Contains(t, fields, "studentName")
		assert.Contains(t, fields, "deptName")
	})

	t.Run("setting the field again unblocks save", func(t *testing.T) {
		svc := &fakeService[model.Student]{}
		ed := newStudentEditor(svc, nil, &recorder{})

		ed.OpenEdit(model.Student{ID: 4, StudentName: "Ana", Age: 20, DeptName: "CSE"})
		require.Error(t, ed.SetField("age", "abc"))
		require.NoError(t, ed.SetField("age", "21"))

		require.NoError(t, ed.Save(context.Background()))
		assert.Equal(t, []string{"update", "list"}, svc.Calls())
	})

	t.Run("reopening the dialog forgets the parse error", func(t *testing.T) {
		svc := &fakeService[model.Student]{}
		ed := newStudentEditor(svc, nil, &recorder{})

		ed.OpenEdit(model.Student{ID: 4, StudentName: "Ana", Age: 20, DeptName: "CSE"})
		require.Error(t, ed.SetField("age", "abc"))
		ed.HideDialog()
		ed.OpenEdit(model.Student{ID: 4, StudentName: "Ana", Age: 20, DeptName: "CSE"})

		require.NoError(t, ed.Save(context.Background()))
		assert.Equal(t, []string{"update", "list"}, svc.Calls())
	})
}

func TestEditor_SaveServerFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantFields map[string]string
		wantToast  string
	}{
		{
			name:       "unknown department goes to the department field",
			err:        &client.APIError{Status: http.StatusConflict, Message: "Department 'Physics' does not exist"},
			wantFields: map[string]string{"deptName": "Department 'Physics' does not exist"},
		},
		{
			name:      "duplicate is a conflict toast",
			err:       &client.APIError{Status: http.StatusConflict, Message: "Student 'Ana' already exists"},
			wantToast: "Conflict",
		},
		{
			name: "model state",
			err: &client.APIError{Status: http.StatusBadRequest, FieldErrors: map[string][]string{
				"StudentName": {"The StudentName field is required."},
				"Age":         {"Age must be between 1 and 120."},
			}},
			wantFields: map[string]string{
				"studentName": "The StudentName field is required.",
				"age":         "Age must be between 1 and 120.",
			},
		},
		{
			name:      "transport failure",
			err:       &client.TransportError{Method: "POST", URL: "x", Err: errors.New("refused")},
			wantToast: "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService[model.Student]{saveErr: tt.err}
			rec := &recorder{}
			ed := newStudentEditor(svc, nil, rec)

			ed.OpenNew()
			require.NoError(t, ed.SetField("studentName", "Ana"))
			require.NoError(t, ed.SetField("age", "20"))
			require.NoError(t, ed.SetField("deptName", "Physics"))
			assert.Error(t, ed.Save(context.Background()))

			state := ed.Snapshot()
			assert.Equal(t, PhaseDialogOpen, state.Phase)
			assert.Equal(t, []string{"create"}, svc.Calls(), "no re-fetch after a failure")
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, state.FieldErrors)
				assert.Empty(t, rec.toasts)
			}
			if tt.wantToast != "" {
				assert.Equal(t, tt.wantToast, rec.last(t).Summary)
			}
		})
	}
}

func TestEditor_RequestDelete(t *testing.T) {
	row := model.Product{ID: 5, Name: "Desk"}

	t.Run("unset id issues nothing", func(t *testing.T) {
		svc := &fakeService[model.Product]{}
		rec := &recorder{answer: true}
		ed := New[model.Product](svc, ProductDescriptor, WithNotifier(rec), WithConfirmer(rec))

		err := ed.RequestDelete(context.Background(), model.Product{Name: "Draft"})
		assert.ErrorIs(t, err, client.ErrNotPersisted)
		assert.Empty(t, svc.Calls())
		assert.Empty(t, rec.prompts)
	})

	t.Run("declined", func(t *testing.T) {
		svc := &fakeService[model.Product]{}
		rec := &recorder{answer: false}
		ed := New[model.Product](svc, ProductDescriptor, WithNotifier(rec), WithConfirmer(rec))

		assert.ErrorIs(t, ed.RequestDelete(context.Background(), row), ErrDeclined)
		assert.Empty(t, svc.Calls())
		assert.Equal(t, []string{"Are you sure you want to delete Desk?"}, rec.prompts)
	})

	t.Run("confirmed", func(t *testing.T) {
		svc := &fakeService[model.Product]{}
		rec := &recorder{answer: true}
		ed := New[model.Product](svc, ProductDescriptor, WithNotifier(rec), WithConfirmer(rec))

		require.NoError(t, ed.RequestDelete(context.Background(), row))
		assert.Equal(t, []string{"delete", "list"}, svc.Calls())
		assert.Equal(t, "Product deleted successfully", rec.last(t).Detail)
	})

	t.Run("failure keeps the list", func(t *testing.T) {
		svc := &fakeService[model.Product]{items: []model.Product{row}}
		rec := &recorder{answer: true}
		ed := New[model.Product](svc, ProductDescriptor, WithNotifier(rec), WithConfirmer(rec))
		require.NoError(t, ed.Activate(context.Background()))

		svc.delErr = &client.APIError{Status: http.StatusNotFound}
		assert.Error(t, ed.RequestDelete(context.Background(), row))
		assert.Equal(t, []model.Product{row}, ed.Snapshot().Items)
		assert.Equal(t, SeverityError, rec.last(t).Severity)
		assert.Equal(t, []string{"list", "delete"}, svc.Calls())
	})

	t.Run("no confirmer declines", func(t *testing.T) {
		svc := &fakeService[model.Product]{}
		ed := New[model.Product](svc, ProductDescriptor)
		assert.ErrorIs(t, ed.RequestDelete(context.Background(), row), ErrDeclined)
		assert.Empty(t, svc.Calls())
	})
}

func TestEditor_DeleteSelected(t *testing.T) {
	students := []model.Student{
		{ID: 1, StudentName: "Ana", Age: 20, DeptName: "CSE"},
		{ID: 2, StudentName: "Ben", Age: 21, DeptName: "CSE"},
		{ID: 3, StudentName: "Cai", Age: 22, DeptName: "EEE"},
	}

	t.Run("partial success", func(t *testing.T) {
		svc := &fakeService[model.Student]{items: students}
		batch := &fakeBatch{bulk: client.BulkDeleteResult{DeletedRows: 2, MissingIDs: []int64{3}}}
		rec := &recorder{answer: true}
		ed := newStudentEditor(svc, batch, rec)
		require.NoError(t, ed.Activate(context.Background()))

		for _, id := range []int64{3, 1, 2} {
			ed.ToggleSelect(id)
		}
		assert.Equal(t, []int64{1, 2, 3}, ed.Selection())

		result, err := ed.DeleteSelected(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, result.DeletedRows)
		assert.Equal(t, []int64{1, 2, 3}, batch.gotIDs)
		assert.Equal(t, []string{"Are you sure you want to delete 3 selected student(s)?"}, rec.prompts)

		toast := rec.last(t)
		assert.Equal(t, SeverityWarn, toast.Severity)
		assert.Equal(t, "Partial Success", toast.Summary)
		assert.Equal(t, "2 deleted. Missing IDs: 3", toast.Detail)
		assert.Equal(t, DefaultWarnLife, toast.Life)
		assert.Empty(t, ed.Selection())
		assert.Equal(t, 2, svc.count("list"))
	})

	t.Run("full success", func(t *testing.T) {
		svc := &fakeService[model.Student]{items: students}
		batch := &fakeBatch{bulk: client.BulkDeleteResult{DeletedRows: 2}}
		rec := &recorder{answer: true}
		ed := newStudentEditor(svc, batch, rec)
		require.NoError(t, ed.Activate(context.Background()))
		ed.ToggleSelect(1)
		ed.ToggleSelect(2)

		_, err := ed.DeleteSelected(context.Background())
		require.NoError(t, err)
		toast := rec.last(t)
		assert.Equal(t, SeveritySuccess, toast.Severity)
		assert.Equal(t, "2 student(s) deleted successfully", toast.Detail)
	})

	t.Run("failure keeps the selection", func(t *testing.T) {
		svc := &fakeService[model.Student]{items: students}
		batch := &fakeBatch{bulkErr: &client.APIError{Status: http.StatusInternalServerError}}
		rec := &recorder{answer: true}
		ed := newStudentEditor(svc, batch, rec)
		require.NoError(t, ed.Activate(context.Background()))
		ed.ToggleSelect(2)

		_, err := ed.DeleteSelected(context.Background())
		assert.Error(t, err)
		assert.Equal(t, "Bulk delete failed", rec.last(t).Detail)
		assert.Equal(t, []int64{2}, ed.Selection())
	})

	t.Run("empty selection is a no-op", func(t *testing.T) {
		batch := &fakeBatch{}
		rec := &recorder{answer: true}
		ed := newStudentEditor(&fakeService[model.Student]{}, batch, rec)

		_, err := ed.DeleteSelected(context.Background())
		assert.NoError(t, err)
		assert.Zero(t, batch.calls)
		assert.Empty(t, rec.prompts)
	})

	t.Run("toggle twice deselects", func(t *testing.T) {
		ed := newStudentEditor(&fakeService[model.Student]{}, &fakeBatch{}, &recorder{})
		ed.ToggleSelect(4)
		ed.ToggleSelect(4)
		ed.ToggleSelect(0)
		assert.Empty(t, ed.Selection())
	})

	t.Run("unsupported without batch service", func(t *testing.T) {
		ed := New[model.Product](&fakeService[model.Product]{}, ProductDescriptor)
		_, err := ed.DeleteSelected(context.Background())
		assert.ErrorIs(t, err, ErrUnsupported)
		assert.ErrorIs(t, ed.OpenUpload(), ErrUnsupported)
	})
}

func TestEditor_Upload(t *testing.T) {
	opener := func(path string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("studentName,age,deptName\n")), nil
	}

	t.Run("text file rejected before network", func(t *testing.T) {
		batch := &fakeBatch{}
		rec := &recorder{}
		ed := newStudentEditor(&fakeService[model.Student]{}, batch, rec)
		require.NoError(t, ed.OpenUpload())

		assert.ErrorIs(t, ed.SelectFile("notes.txt"), ErrFileType)
		state := ed.Snapshot()
		assert.Equal(t, "Only Excel (.xlsx) and CSV (.csv) files are supported.", state.Upload.FileError)
		assert.Empty(t, state.Upload.File)

		_, err := ed.Upload(context.Background())
		assert.ErrorIs(t, err, ErrNoFile)
		assert.Equal(t, "Please choose a file to upload.", ed.Snapshot().Upload.FileError)
		assert.Zero(t, batch.calls)
	})

	t.Run("csv with zero inserted is a success", func(t *testing.T) {
		svc := &fakeService[model.Student]{}
		batch := &fakeBatch{upload: client.UploadResult{RecordsInserted: 0}}
		rec := &recorder{}
		ed := New[model.Student](svc, StudentDescriptor,
			WithBatch(batch), WithNotifier(rec), WithFileOpener(opener))
		require.NoError(t, ed.OpenUpload())
		require.NoError(t, ed.SelectFile("/data/Students.CSV"))

		result, err := ed.Upload(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.RecordsInserted)
		assert.Equal(t, "/data/Students.CSV", batch.gotFile)

		toast := rec.last(t)
		assert.Equal(t, SeveritySuccess, toast.Severity)
		assert.Equal(t, "0 records inserted. All students already exist.", toast.Detail)
		assert.False(t, ed.Snapshot().Upload.Open)
		assert.Equal(t, []string{"list"}, svc.Calls())
	})

	t.Run("records inserted", func(t *testing.T) {
		batch := &fakeBatch{upload: client.UploadResult{RecordsInserted: 3}}
		rec := &recorder{}
		ed := New[model.Student](&fakeService[model.Student]{}, StudentDescriptor,
			WithBatch(batch), WithNotifier(rec), WithFileOpener(opener))
		require.NoError(t, ed.SelectFile("students.xlsx"))

		_, err := ed.Upload(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "3 record(s) inserted successfully", rec.last(t).Detail)
	})

	t.Run("failure", func(t *testing.T) {
		batch := &fakeBatch{uploadErr: &client.APIError{Status: http.StatusUnsupportedMediaType}}
		rec := &recorder{}
		ed := New[model.Student](&fakeService[model.Student]{}, StudentDescriptor,
			WithBatch(batch), WithNotifier(rec), WithFileOpener(opener))
		require.NoError(t, ed.OpenUpload())
		require.NoError(t, ed.SelectFile("students.xlsx"))

		_, err := ed.Upload(context.Background())
		assert.Error(t, err)
		toast := rec.last(t)
		assert.Equal(t, "Upload Failed", toast.Summary)
		assert.Equal(t, "Unable to upload the selected file", toast.Detail)
		assert.True(t, ed.Snapshot().Upload.Open)
	})
}

func TestEditor_InFlightGuard(t *testing.T) {
	svc := &fakeService[model.Product]{block: make(chan struct{})}
	ed := New[model.Product](svc, ProductDescriptor)
	ed.OpenNew()
	require.NoError(t, ed.SetField("name", "Desk"))

	done := make(chan error, 1)
	go func() { done <- ed.Save(context.Background()) }()

	require.Eventually(t, func() bool { return svc.count("create") == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, ed.Snapshot().Busy)
	assert.ErrorIs(t, ed.Save(context.Background()), ErrBusy)
	assert.ErrorIs(t, ed.RequestDelete(context.Background(), model.Product{ID: 1}), ErrBusy)

	close(svc.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, svc.count("create"))
	assert.False(t, ed.Snapshot().Busy)
}

func TestEditor_CloseSuppressesLateUpdates(t *testing.T) {
	svc := &fakeService[model.Product]{block: make(chan struct{})}
	rec := &recorder{}
	ed := New[model.Product](svc, ProductDescriptor, WithNotifier(rec))
	ed.OpenNew()
	require.NoError(t, ed.SetField("name", "Desk"))

	done := make(chan error, 1)
	go func() { done <- ed.Save(context.Background()) }()
	require.Eventually(t, func() bool { return svc.count("create") == 1 }, time.Second, 5*time.Millisecond)

	ed.Close()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, rec.toasts)
	assert.Equal(t, PhaseSubmitting, ed.Snapshot().Phase)
	assert.ErrorIs(t, ed.Reload(context.Background()), ErrClosed)
	assert.Equal(t, 0, svc.count("list"))
}
