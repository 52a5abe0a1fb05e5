package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/marshallshelly/databridge/pkg/client"
)

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusWriter records the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	Status int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, Status: http.StatusOK}
}

// WriteHeader records the code and forwards it.
func (sw *statusWriter) WriteHeader(code int) {
	sw.Status = code
	sw.ResponseWriter.WriteHeader(code)
}

// requestID echoes the caller's request id or assigns a new one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(client.RequestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV4()).String()
		}
		w.Header().Set(client.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := newStatusWriter(w)
		start := time.Now()
		next.ServeHTTP(sw, r)

		entry := requestLog(s.log, r).WithFields(logrus.Fields{
			"status":   sw.Status,
			"duration": time.Since(start),
		})
		if sw.Status >= http.StatusInternalServerError {
			entry.Warn("api request")
		} else {
			entry.Info("api request")
		}
	})
}

func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := newStatusWriter(w)
		start := time.Now()
		next.ServeHTTP(sw, r)

		route := routeTemplate(r)
		metrics.GetOrCreateCounter(fmt.Sprintf(`databridge_server_requests_total{method=%q,route=%q,status="%d"}`, r.Method, route, sw.Status)).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`databridge_server_request_duration_seconds{method=%q,route=%q}`, r.Method, route)).UpdateDuration(start)
	})
}

func requestLog(l logrus.FieldLogger, r *http.Request) logrus.FieldLogger {
	return l.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
		"request_id": RequestID(r.Context()),
	})
}

// routeTemplate keeps metric labels bounded by using the matched template
// instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
