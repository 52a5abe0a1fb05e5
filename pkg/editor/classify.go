package editor

import (
	"errors"
	"net/http"
	"strings"

	"github.com/marshallshelly/databridge/pkg/client"
)

// Kind is the outcome of classifying a failed mutation.
type Kind int

const (
	// KindTransport means no response was received.
	KindTransport Kind = iota
	// KindField means the failure was attached to one or more draft fields.
	KindField
	// KindConflict is a 409 whose message matched no field.
	KindConflict
	// KindValidation is a 400 whose message matched no field.
	KindValidation
	// KindUnknown covers every other failure.
	KindUnknown
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindField:
		return "field"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// genericDetail is shown when nothing better is known about a failure.
const genericDetail = "Unexpected error occurred."

// Hint routes server messages containing Substring to the draft field Field.
// A zero Status matches every 4xx response; otherwise only that status.
type Hint struct {
	Status    int
	Substring string
	Field     string
}

// Rules tell Classify which fields a draft has and how to route free-text
// messages onto them. Hints are tried in order.
type Rules struct {
	Fields []string
	Hints  []Hint
}

// Classification is the decision taken for one failure. Fields is set for
// KindField; Summary and Detail describe the toast for every other kind.
type Classification struct {
	Kind    Kind
	Fields  map[string]string
	Summary string
	Detail  string
}

// Classify decides how a failed create or update is reported. Only client
// errors (4xx) reach a field: ModelState field errors on a 400 win over
// message hints, and message hints win over the status-based toasts.
func Classify(err error, rules Rules) Classification {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return Classification{Kind: KindTransport, Summary: "Error", Detail: genericDetail}
	}
	if apiErr.Status < 400 || apiErr.Status >= 500 {
		return Classification{Kind: KindUnknown, Summary: "Error", Detail: genericDetail}
	}

	if apiErr.Status == http.StatusBadRequest {
		if fields := rules.fromModelState(apiErr.FieldErrors); len(fields) > 0 {
			return Classification{Kind: KindField, Fields: fields}
		}
	}

	msg := strings.TrimSpace(apiErr.Message)
	if msg != "" {
		if field, ok := rules.match(apiErr.Status, msg); ok {
			return Classification{Kind: KindField, Fields: map[string]string{field: msg}}
		}
		switch apiErr.Status {
		case http.StatusConflict:
			return Classification{Kind: KindConflict, Summary: "Conflict", Detail: msg}
		case http.StatusBadRequest:
			return Classification{Kind: KindValidation, Summary: "Validation Error", Detail: msg}
		}
	}

	return Classification{Kind: KindUnknown, Summary: "Error", Detail: genericDetail}
}

// fromModelState maps ModelState keys onto draft fields, case-insensitively.
func (r Rules) fromModelState(state map[string][]string) map[string]string {
	fields := make(map[string]string)
	for key, messages := range state {
		field, ok := r.field(key)
		if !ok || len(messages) == 0 {
			continue
		}
		fields[field] = messages[0]
	}
	return fields
}

func (r Rules) match(status int, msg string) (string, bool) {
	lower := strings.ToLower(msg)
	for _, hint := range r.Hints {
		if hint.Status != 0 && hint.Status != status {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(hint.Substring)) {
			continue
		}
		if field, ok := r.field(hint.Field); ok {
			return field, true
		}
	}
	return "", false
}

func (r Rules) field(name string) (string, bool) {
	for _, f := range r.Fields {
		if strings.EqualFold(f, name) {
			return f, true
		}
	}
	return "", false
}
