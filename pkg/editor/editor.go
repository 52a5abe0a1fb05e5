// Package editor implements the per-entity editing workflow: load the list,
// edit one draft in a dialog, validate locally, send the mutation, and re-fetch
// the list after every successful change.
//
// An Editor is safe for concurrent use. At most one request per editor is
// outstanding at any time; a second mutating call returns ErrBusy without
// touching the network.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
	"github.com/marshallshelly/databridge/pkg/schema"
)

var (
	// ErrBusy is returned when another request of the same editor is in flight.
	ErrBusy = errors.New("a request is already in flight")

	// ErrClosed is returned once the editor has been closed.
	ErrClosed = errors.New("editor closed")

	// ErrNoDialog is returned by draft operations while no dialog is open.
	ErrNoDialog = errors.New("no dialog is open")

	// ErrInvalid wraps local validation failures.
	ErrInvalid = errors.New("draft failed validation")

	// ErrDeclined is returned when the user answers no to a confirmation.
	ErrDeclined = errors.New("declined by user")

	// ErrUnsupported is returned by batch operations on entities without them.
	ErrUnsupported = errors.New("operation not supported for this entity")

	// ErrNoFile is returned by Upload when no file has been selected.
	ErrNoFile = errors.New("no file selected")

	// ErrFileType is returned by SelectFile for extensions outside the allow-list.
	ErrFileType = errors.New("unsupported file type")
)

// UploadExtensions are the file extensions accepted for batch ingestion.
var UploadExtensions = []string{".xlsx", ".csv"}

// Upload dialog messages.
const (
	msgFileType   = "Only Excel (.xlsx) and CSV (.csv) files are supported."
	msgChooseFile = "Please choose a file to upload."
)

// Service is the request/response contract of one entity.
type Service[T model.Entity] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, draft T) (client.CreatedResult, error)
	Update(ctx context.Context, id int64, draft T) (client.UpdatedResult, error)
	Delete(ctx context.Context, id int64) error
}

// BatchService is implemented by entities with bulk delete and file upload.
type BatchService interface {
	DeleteBulk(ctx context.Context, ids []int64) (client.BulkDeleteResult, error)
	Upload(ctx context.Context, filename string, content io.Reader) (client.UploadResult, error)
}

// Phase is the dialog state of an editor.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDialogOpen
	PhaseSubmitting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDialogOpen:
		return "dialog-open"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Mode tells whether the open dialog creates or edits a record.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// UploadState is the state of the file upload dialog.
type UploadState struct {
	Open      bool
	File      string
	FileError string
}

// State is a point-in-time copy of an editor, safe to read without locking.
type State[T model.Entity] struct {
	Phase       Phase
	Mode        Mode
	Items       []T
	Draft       T
	FieldErrors map[string]string
	Selected    []int64
	Loading     bool
	Busy        bool
	Upload      UploadState
}

// DialogVisible reports whether the edit dialog is shown.
func (s State[T]) DialogVisible() bool {
	return s.Phase != PhaseIdle
}

// IsSelected reports whether id is part of the bulk selection.
func (s State[T]) IsSelected(id int64) bool {
	return slices.Contains(s.Selected, id)
}

// Descriptor names an entity for messages and lists its error hints.
type Descriptor struct {
	Singular string // "Student"
	Plural   string // "students"
	Hints    []Hint
}

// Editor runs the editing workflow for one entity type.
type Editor[T model.Entity] struct {
	svc   Service[T]
	batch BatchService
	desc  Descriptor
	table *schema.TableMetadata
	rules Rules
	opts  options
	log   logrus.FieldLogger

	inFlight *abool.AtomicBool
	closed   *abool.AtomicBool
	life     context.Context
	cancel   context.CancelFunc

	mu          sync.Mutex
	phase       Phase
	mode        Mode
	items       []T
	draft       T
	fieldErrors map[string]string
	parseErrors map[string]string
	selected    map[int64]struct{}
	loading     bool
	upload      UploadState
}

// New creates an editor for svc.
func New[T model.Entity](svc Service[T], desc Descriptor, opts ...Option) *Editor[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	table := registry.For[T]()
	var fields []string
	for _, col := range table.EditableColumns() {
		fields = append(fields, col.JSONName)
	}

	life, cancel := context.WithCancel(context.Background())
	return &Editor[T]{
		svc:         svc,
		batch:       o.batch,
		desc:        desc,
		table:       table,
		rules:       Rules{Fields: fields, Hints: desc.Hints},
		opts:        o,
		log:         o.log.WithField("entity", table.Name),
		inFlight:    abool.New(),
		closed:      abool.New(),
		life:        life,
		cancel:      cancel,
		items:       []T{},
		fieldErrors: make(map[string]string),
		parseErrors: make(map[string]string),
		selected:    make(map[int64]struct{}),
	}
}

// Descriptor returns the entity descriptor.
func (e *Editor[T]) Descriptor() Descriptor {
	return e.desc
}

// Table returns the record metadata of T.
func (e *Editor[T]) Table() *schema.TableMetadata {
	return e.table
}

// SupportsBatch reports whether bulk delete and upload are available.
func (e *Editor[T]) SupportsBatch() bool {
	return e.batch != nil
}

// Snapshot returns a copy of the current state.
func (e *Editor[T]) Snapshot() State[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State[T]{
		Phase:       e.phase,
		Mode:        e.mode,
		Items:       slices.Clone(e.items),
		Draft:       e.draft,
		FieldErrors: make(map[string]string, len(e.fieldErrors)),
		Selected:    e.selection(),
		Loading:     e.loading,
		Busy:        e.inFlight.IsSet(),
		Upload:      e.upload,
	}
	for k, v := range e.fieldErrors {
		s.FieldErrors[k] = v
	}
	return s
}

// Close cancels any outstanding request and stops all further state updates
// and notifications. It is safe to call more than once.
func (e *Editor[T]) Close() {
	e.mu.Lock()
	e.closed.Set()
	e.mu.Unlock()
	e.cancel()
}

// Activate loads the list for the first time.
func (e *Editor[T]) Activate(ctx context.Context) error {
	return e.Reload(ctx)
}

// Reload replaces the list with a fresh server read. On failure the previous
// list is kept.
func (e *Editor[T]) Reload(ctx context.Context) error {
	ctx, end, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer end()
	return e.load(ctx)
}

// OpenNew resets the draft and opens the dialog in create mode.
func (e *Editor[T]) OpenNew() {
	e.apply(func() {
		var zero T
		e.draft = zero
		e.resetErrors()
		e.mode = ModeCreate
		e.phase = PhaseDialogOpen
	})
}

// OpenEdit copies row into the draft and opens the dialog in edit mode.
func (e *Editor[T]) OpenEdit(row T) {
	e.apply(func() {
		e.draft = row
		e.resetErrors()
		e.mode = ModeEdit
		e.phase = PhaseDialogOpen
	})
}

// HideDialog closes the dialog without saving.
func (e *Editor[T]) HideDialog() {
	e.apply(func() {
		e.phase = PhaseIdle
		e.resetErrors()
	})
}

// SetField parses value into the draft field with the given wire name and
// clears that field's error. A parse failure is stored as the field error,
// leaves the draft field unchanged and blocks Save until the field is set
// again.
func (e *Editor[T]) SetField(name, value string) error {
	col := e.table.Field(name)
	if col == nil {
		return fmt.Errorf("unknown field %q", name)
	}
	if col.Key {
		return fmt.Errorf("field %q is assigned by the server", col.JSONName)
	}

	var err error
	ok := e.apply(func() {
		if e.phase == PhaseIdle {
			err = ErrNoDialog
			return
		}
		if err = e.table.SetFromString(&e.draft, col, value); err != nil {
			e.fieldErrors[col.JSONName] = err.Error()
			e.parseErrors[col.JSONName] = err.Error()
			return
		}
		delete(e.fieldErrors, col.JSONName)
		delete(e.parseErrors, col.JSONName)
	})
	if !ok {
		return ErrClosed
	}
	return err
}

// Save validates the draft and sends it. Drafts with a persisted id are
// updated, all others are created. A draft that fails validation never
// reaches the network and leaves the dialog in PhaseSubmitting with field
// errors set. A server failure keeps the dialog open.
func (e *Editor[T]) Save(ctx context.Context) error {
	ctx, end, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	var draft T
	var stateErr error
	if !e.apply(func() {
		if e.phase == PhaseIdle {
			stateErr = ErrNoDialog
			return
		}
		e.phase = PhaseSubmitting
		draft = e.draft
		verr := draft.Validate()
		e.fieldErrors = model.FieldErrors(verr)
		for field, msg := range e.parseErrors {
			e.fieldErrors[field] = msg
		}
		switch {
		case verr != nil:
			stateErr = fmt.Errorf("%w: %w", ErrInvalid, verr)
		case len(e.parseErrors) > 0:
			stateErr = fmt.Errorf("%w: %d field(s) could not be parsed", ErrInvalid, len(e.parseErrors))
		}
	}) {
		return ErrClosed
	}
	if stateErr != nil {
		return stateErr
	}

	id := draft.Key()
	op, action := "create", "created"
	if id != 0 {
		op, action = "update", "updated"
		_, err = e.svc.Update(ctx, id, draft)
	} else {
		_, err = e.svc.Create(ctx, draft)
	}
	log := e.log.WithFields(logrus.Fields{"op": op, "id": id})

	if err != nil {
		c := Classify(err, e.rules)
		log.WithError(err).WithField("kind", c.Kind).Debug("save failed")
		e.apply(func() {
			e.phase = PhaseDialogOpen
			for field, msg := range c.Fields {
				e.fieldErrors[field] = msg
			}
		})
		if c.Kind != KindField {
			e.notify(SeverityError, c.Summary, c.Detail)
		}
		return err
	}
	log.Debug("save succeeded")

	_ = e.load(ctx)
	if !e.apply(func() {
		var zero T
		e.draft = zero
		e.phase = PhaseIdle
		e.resetErrors()
	}) {
		return ErrClosed
	}
	e.notify(SeveritySuccess, "Successful", fmt.Sprintf("%s %s successfully", e.desc.Singular, action))
	return nil
}

// RequestDelete asks for confirmation and deletes row. Rows without a
// persisted id return client.ErrNotPersisted without prompting.
func (e *Editor[T]) RequestDelete(ctx context.Context, row T) error {
	id := row.Key()
	if id == 0 {
		return client.ErrNotPersisted
	}

	ctx, end, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	if !e.confirm(ctx, fmt.Sprintf("Are you sure you want to delete %s?", e.describe(row))) {
		return ErrDeclined
	}

	log := e.log.WithFields(logrus.Fields{"op": "delete", "id": id})
	if err := e.svc.Delete(ctx, id); err != nil {
		log.WithError(err).Debug("delete failed")
		e.notify(SeverityError, "Error", "Failed to delete "+e.lower())
		return err
	}
	log.Debug("delete succeeded")

	_ = e.load(ctx)
	e.notify(SeveritySuccess, "Successful", e.desc.Singular+" deleted successfully")
	return nil
}

// ToggleSelect adds id to or removes it from the bulk selection.
func (e *Editor[T]) ToggleSelect(id int64) {
	if id == 0 {
		return
	}
	e.apply(func() {
		if _, ok := e.selected[id]; ok {
			delete(e.selected, id)
			return
		}
		e.selected[id] = struct{}{}
	})
}

// Selection returns the selected ids in ascending order.
func (e *Editor[T]) Selection() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection()
}

// ClearSelection empties the bulk selection.
func (e *Editor[T]) ClearSelection() {
	e.apply(func() {
		e.selected = make(map[int64]struct{})
	})
}

// DeleteSelected confirms and deletes every selected record with one
// request. An empty selection is a no-op. Missing ids in the response are
// reported as a partial success.
func (e *Editor[T]) DeleteSelected(ctx context.Context) (client.BulkDeleteResult, error) {
	if e.batch == nil {
		return client.BulkDeleteResult{}, ErrUnsupported
	}
	ids := e.Selection()
	if len(ids) == 0 {
		return client.BulkDeleteResult{}, nil
	}

	ctx, end, err := e.begin(ctx)
	if err != nil {
		return client.BulkDeleteResult{}, err
	}
	defer end()

	prompt := fmt.Sprintf("Are you sure you want to delete %d selected %s(s)?", len(ids), e.lower())
	if !e.confirm(ctx, prompt) {
		return client.BulkDeleteResult{}, ErrDeclined
	}

	log := e.log.WithFields(logrus.Fields{"op": "delete-bulk", "count": len(ids)})
	result, err := e.batch.DeleteBulk(ctx, ids)
	if err != nil {
		log.WithError(err).Debug("bulk delete failed")
		e.notify(SeverityError, "Error", "Bulk delete failed")
		return result, err
	}
	log.WithField("missing", len(result.MissingIDs)).Debug("bulk delete succeeded")

	_ = e.load(ctx)
	e.apply(func() {
		e.selected = make(map[int64]struct{})
	})

	if len(result.MissingIDs) > 0 {
		missing := make([]string, len(result.MissingIDs))
		for i, id := range result.MissingIDs {
			missing[i] = fmt.Sprint(id)
		}
		e.notify(SeverityWarn, "Partial Success",
			fmt.Sprintf("%d deleted. Missing IDs: %s", result.DeletedRows, strings.Join(missing, ", ")))
	} else {
		e.notify(SeveritySuccess, "Successful",
			fmt.Sprintf("%d %s(s) deleted successfully", result.DeletedRows, e.lower()))
	}
	return result, nil
}

// OpenUpload shows the upload dialog with no file chosen.
func (e *Editor[T]) OpenUpload() error {
	if e.batch == nil {
		return ErrUnsupported
	}
	e.apply(func() {
		e.upload = UploadState{Open: true}
	})
	return nil
}

// HideUpload closes the upload dialog.
func (e *Editor[T]) HideUpload() {
	e.apply(func() {
		e.upload = UploadState{}
	})
}

// SelectFile chooses the file to upload. Files whose extension is not in
// UploadExtensions are rejected and leave no file selected.
func (e *Editor[T]) SelectFile(path string) error {
	if e.batch == nil {
		return ErrUnsupported
	}
	if !allowedUpload(path) {
		e.apply(func() {
			e.upload.File = ""
			e.upload.FileError = msgFileType
		})
		return fmt.Errorf("%w: %s", ErrFileType, filepath.Ext(path))
	}
	e.apply(func() {
		e.upload.File = path
		e.upload.FileError = ""
	})
	return nil
}

// Upload sends the selected file. On success the upload dialog closes and
// the list is re-fetched; zero inserted records is a success.
func (e *Editor[T]) Upload(ctx context.Context) (client.UploadResult, error) {
	if e.batch == nil {
		return client.UploadResult{}, ErrUnsupported
	}

	e.mu.Lock()
	path := e.upload.File
	e.mu.Unlock()
	if path == "" || !allowedUpload(path) {
		e.apply(func() {
			e.upload.FileError = msgChooseFile
		})
		return client.UploadResult{}, ErrNoFile
	}

	ctx, end, err := e.begin(ctx)
	if err != nil {
		return client.UploadResult{}, err
	}
	defer end()

	log := e.log.WithFields(logrus.Fields{"op": "upload", "file": filepath.Base(path)})
	result, err := e.sendFile(ctx, path)
	if err != nil {
		log.WithError(err).Debug("upload failed")
		e.notify(SeverityError, "Upload Failed", "Unable to upload the selected file")
		return result, err
	}
	log.WithField("inserted", result.RecordsInserted).Debug("upload succeeded")

	e.apply(func() {
		e.upload = UploadState{}
	})
	if result.RecordsInserted == 0 {
		e.notify(SeveritySuccess, "Upload Complete",
			fmt.Sprintf("0 records inserted. All %s already exist.", e.desc.Plural))
	} else {
		e.notify(SeveritySuccess, "Upload Complete",
			fmt.Sprintf("%d record(s) inserted successfully", result.RecordsInserted))
	}
	_ = e.load(ctx)
	return result, nil
}

func (e *Editor[T]) sendFile(ctx context.Context, path string) (client.UploadResult, error) {
	f, err := e.opts.open(path)
	if err != nil {
		return client.UploadResult{}, fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()
	return e.batch.Upload(ctx, path, f)
}

// begin claims the in-flight slot. The returned context is cancelled by the
// returned func or by Close, whichever comes first.
func (e *Editor[T]) begin(ctx context.Context) (context.Context, func(), error) {
	if e.closed.IsSet() {
		return nil, nil, ErrClosed
	}
	if !e.inFlight.SetToIf(false, true) {
		return nil, nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.life, cancel)
	return ctx, func() {
		stop()
		cancel()
		e.inFlight.UnSet()
	}, nil
}

// load replaces the list. The caller holds the in-flight slot.
func (e *Editor[T]) load(ctx context.Context) error {
	e.apply(func() { e.loading = true })

	items, err := e.svc.List(ctx)
	if err != nil {
		e.apply(func() { e.loading = false })
		e.log.WithError(err).WithField("op", "list").Debug("load failed")
		e.notify(SeverityError, "Error", "Failed to load "+e.desc.Plural)
		return err
	}
	if items == nil {
		items = []T{}
	}

	if !e.apply(func() {
		e.items = items
		e.loading = false
		present := make(map[int64]struct{}, len(items))
		for _, item := range items {
			present[item.Key()] = struct{}{}
		}
		for id := range e.selected {
			if _, ok := present[id]; !ok {
				delete(e.selected, id)
			}
		}
	}) {
		return ErrClosed
	}
	e.log.WithFields(logrus.Fields{"op": "list", "count": len(items)}).Debug("list loaded")
	return nil
}

// apply runs fn under the state lock unless the editor has been closed.
func (e *Editor[T]) apply(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.IsSet() {
		return false
	}
	fn()
	return true
}

func (e *Editor[T]) notify(severity Severity, summary, detail string) {
	if e.closed.IsSet() {
		return
	}
	life := e.opts.life
	if severity == SeverityWarn {
		life = e.opts.warnLife
	}
	e.opts.notifier.Notify(Notification{
		Severity: severity,
		Summary:  summary,
		Detail:   detail,
		Life:     life,
	})
}

func (e *Editor[T]) confirm(ctx context.Context, message string) bool {
	if e.opts.confirmer == nil || e.closed.IsSet() {
		return false
	}
	return e.opts.confirmer.Confirm(ctx, "Confirm", message)
}

// resetErrors clears field and parse errors. Callers hold e.mu.
func (e *Editor[T]) resetErrors() {
	e.fieldErrors = make(map[string]string)
	e.parseErrors = make(map[string]string)
}

func (e *Editor[T]) selection() []int64 {
	ids := make([]int64, 0, len(e.selected))
	for id := range e.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (e *Editor[T]) describe(row T) string {
	if label := strings.TrimSpace(row.Label()); label != "" {
		return label
	}
	return fmt.Sprintf("%s #%d", e.lower(), row.Key())
}

func (e *Editor[T]) lower() string {
	return strings.ToLower(e.desc.Singular)
}

func allowedUpload(path string) bool {
	return slices.Contains(UploadExtensions, strings.ToLower(filepath.Ext(path)))
}

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// options collects the collaborators of an editor.
type options struct {
	notifier  Notifier
	confirmer Confirmer
	batch     BatchService
	log       logrus.FieldLogger
	life      time.Duration
	warnLife  time.Duration
	open      func(path string) (io.ReadCloser, error)
}

func defaultOptions() options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return options{
		notifier: NotifierFunc(func(Notification) {}),
		log:      discard,
		life:     DefaultLife,
		warnLife: DefaultWarnLife,
		open:     openFile,
	}
}

// Option configures an Editor.
type Option func(*options)

// WithNotifier sets the toast collaborator.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithConfirmer sets the yes/no collaborator. Without one every
// confirmation is declined.
func WithConfirmer(c Confirmer) Option {
	return func(o *options) {
		o.confirmer = c
	}
}

// WithBatch enables bulk delete and upload.
func WithBatch(b BatchService) Option {
	return func(o *options) {
		o.batch = b
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithToastLife sets how long notifications stay visible. Warnings use
// warnLife.
func WithToastLife(life, warnLife time.Duration) Option {
	return func(o *options) {
		if life > 0 {
			o.life = life
		}
		if warnLife > 0 {
			o.warnLife = warnLife
		}
	}
}

// WithFileOpener replaces os.Open for uploads.
func WithFileOpener(open func(path string) (io.ReadCloser, error)) Option {
	return func(o *options) {
		o.open = open
	}
}
