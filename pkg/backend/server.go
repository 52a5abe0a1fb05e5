package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
)

// APIPrefix is the path every endpoint is mounted under.
const APIPrefix = "/api"

// maxUploadSize bounds the multipart body of an upload.
const maxUploadSize = 10 << 20

// Server serves the REST contract from a Store.
type Server struct {
	store       *Store
	departments []string
	log         logrus.FieldLogger
	router      *mux.Router

	// mu serializes mutations so that rule checks and writes are atomic.
	mu sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithDepartments sets the departments students and employees may refer to.
func WithDepartments(departments []string) ServerOption {
	return func(s *Server) {
		s.departments = departments
	}
}

// WithServerLogger sets the request logger.
func WithServerLogger(l logrus.FieldLogger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a server for store.
func NewServer(store *Store, opts ...ServerOption) *Server {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Server{
		store: store,
		log:   discard,
	}
	for _, opt := range opts {
		opt(s)
	}

	router := mux.NewRouter()
	router.Use(s.requestID, s.requestLogger, s.requestMetrics)
	router.HandleFunc("/metrics", serveMetrics).Methods(http.MethodGet)

	api := router.PathPrefix(APIPrefix).Subrouter()
	// Batch routes first so "bulk" is never taken for an id.
	api.HandleFunc(client.StudentBulkDeletePath, s.deleteStudentsBulk).Methods(http.MethodDelete)
	api.HandleFunc(client.StudentUploadPath, s.uploadStudents).Methods(http.MethodPost)

	mount(s, api, client.ProductRoutes, store.Products, productPolicy)
	mount(s, api, client.StudentRoutes, store.Students, studentPolicy)
	mount(s, api, client.EmployeeRoutes, store.Employees, employeePolicy)
	mount(s, api, client.MemberRoutes, store.Members, memberPolicy)

	s.router = router
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.WithFields(logrus.Fields{"addr": ln.Addr().String(), "store": s.store.Kind}).Info("backend listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.log.Info("backend shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// resource serves the CRUD routes of one entity.
type resource[T model.Entity] struct {
	server *Server
	table  Table[T]
	policy policy[T]
	idKey  string
}

func mount[T model.Entity](s *Server, r *mux.Router, routes client.Routes, table Table[T], p policy[T]) {
	res := &resource[T]{
		server: s,
		table:  table,
		policy: p,
		idKey:  registry.For[T]().KeyColumn().JSONName,
	}
	r.HandleFunc(routes.List, res.list).Methods(http.MethodGet)
	r.HandleFunc(routes.Create, res.create).Methods(http.MethodPost)
	r.HandleFunc(idRoute(routes.Update), res.update).Methods(http.MethodPut)
	r.HandleFunc(idRoute(routes.Delete), res.delete).Methods(http.MethodDelete)
}

// idRoute restricts the {id} placeholder to digits.
func idRoute(tmpl string) string {
	return strings.ReplaceAll(tmpl, "{id}", "{id:[0-9]+}")
}

func (res *resource[T]) list(w http.ResponseWriter, r *http.Request) {
	items, err := res.table.List(r.Context())
	if err != nil {
		res.server.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (res *resource[T]) create(w http.ResponseWriter, r *http.Request) {
	var rec T
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		res.server.fail(w, r, badRequest("Invalid request body"))
		return
	}

	s := res.server
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := res.table.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if herr := res.policy.check(&rec, existing, 0, s.departments); herr != nil {
		s.fail(w, r, herr)
		return
	}

	id, err := res.table.Insert(r.Context(), rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		res.idKey: id,
		"message": res.policy.singular + " created successfully",
	})
}

func (res *resource[T]) update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	var rec T
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		res.server.fail(w, r, badRequest("Invalid request body"))
		return
	}

	s := res.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := res.table.Get(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(res.policy.singular, id)
		}
		s.fail(w, r, err)
		return
	}

	existing, err := res.table.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if herr := res.policy.check(&rec, existing, id, s.departments); herr != nil {
		s.fail(w, r, herr)
		return
	}

	if err := res.table.Update(r.Context(), id, rec); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": res.policy.singular + " updated successfully"})
}

func (res *resource[T]) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	s := res.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := res.table.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(res.policy.singular, id)
		}
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteStudentsBulk(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil || len(ids) == 0 {
		s.fail(w, r, badRequest("A non-empty array of ids is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := client.BulkDeleteResult{MissingIDs: []int64{}}
	for _, id := range ids {
		err := s.store.Students.Delete(r.Context(), id)
		switch {
		case errors.Is(err, ErrNotFound):
			result.MissingIDs = append(result.MissingIDs, id)
		case err != nil:
			s.fail(w, r, err)
			return
		default:
			result.DeletedRows++
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) uploadStudents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile(client.UploadFieldName)
	if err != nil {
		s.fail(w, r, badRequest("A file is required in form field '%s'", client.UploadFieldName))
		return
	}
	defer file.Close()

	switch ext := strings.ToLower(fileExt(header.Filename)); ext {
	case ".csv":
	case ".xlsx":
		s.fail(w, r, &HTTPError{
			Status:  http.StatusUnsupportedMediaType,
			Message: "Excel workbooks are not supported by this server; upload a CSV export instead",
		})
		return
	default:
		s.fail(w, r, badRequest("Only Excel (.xlsx) and CSV (.csv) files are supported."))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := ingestStudents(r.Context(), s.store.Students, file, s.departments)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := report.invalid.ErrorOrNil(); err != nil {
		requestLog(s.log, r).WithField("file", header.Filename).WithError(err).Warn("skipped invalid rows")
	}
	writeJSON(w, http.StatusOK, report)
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// fail writes err as a JSON error response. Errors that are not *HTTPError
// become a 500 and are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var herr *HTTPError
	if !errors.As(err, &herr) {
		requestLog(s.log, r).WithError(err).Error("request failed")
		herr = &HTTPError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}

	body := map[string]any{"message": herr.Message}
	if len(herr.Fields) > 0 {
		body = map[string]any{
			"title":  herr.Message,
			"status": herr.Status,
			"errors": herr.Fields,
		}
	}
	writeJSON(w, herr.Status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serveMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	metrics.WritePrometheus(w, true)
}
