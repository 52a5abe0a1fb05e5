package client

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotPersisted is returned when an operation addressed by id is
	// attempted on a record without a server-assigned id.
	ErrNotPersisted = errors.New("record has no server-assigned id")

	// ErrNoIDs is returned by bulk operations called with an empty id list.
	ErrNoIDs = errors.New("no ids given")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method      string
	URL         string
	Status      int
	Message     string
	FieldErrors map[string][]string
	Body        []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
}

// FieldNames returns the keys of FieldErrors, sorted.
func (e *APIError) FieldNames() []string {
	names := make([]string, 0, len(e.FieldErrors))
	for name := range e.FieldErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransportError is a request that never produced a response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an
// *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// messageKeys are tried in order to find the human readable message in an
// error body. ASP.NET problem details put it in "title".
var messageKeys = []string{"message", "Message", "detail", "title", "error"}

// parseAPIError builds an APIError from a response body. Bodies may be a JSON
// object with a free-text message, an ASP.NET ModelState object, a bare JSON
// string, or plain text.
func parseAPIError(method, url string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Method: method,
		URL:    url,
		Status: status,
		Body:   body,
	}

	if !gjson.ValidBytes(body) {
		text := strings.TrimSpace(string(body))
		if len(text) <= 512 {
			apiErr.Message = text
		}
		return apiErr
	}

	result := gjson.ParseBytes(body)
	if result.Type == gjson.String {
		apiErr.Message = result.String()
		return apiErr
	}

	for _, key := range messageKeys {
		if msg := result.Get(key); msg.Type == gjson.String && msg.String() != "" {
			apiErr.Message = msg.String()
			break
		}
	}

	if fields := result.Get("errors"); fields.IsObject() {
		apiErr.FieldErrors = make(map[string][]string)
		fields.ForEach(func(key, value gjson.Result) bool {
			var messages []string
			if value.IsArray() {
				for _, m := range value.Array() {
					messages = append(messages, m.String())
				}
			} else {
				messages = append(messages, value.String())
			}
			apiErr.FieldErrors[key.String()] = messages
			return true
		})
	}

	return apiErr
}
