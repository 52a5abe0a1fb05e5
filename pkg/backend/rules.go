package backend

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marshallshelly/databridge/pkg/model"
)

// HTTPError is a request failure with its response status. It is written as
// {"message": ...} or, when Fields is set, as an ASP.NET style ModelState
// object.
type HTTPError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func conflict(format string, args ...any) *HTTPError {
	return &HTTPError{Status: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

func badRequest(format string, args ...any) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func notFound(singular string, id int64) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s with id %d not found", singular, id)}
}

// invalid converts local validation failures into a 400 with ModelState keys
// in PascalCase, the way ASP.NET reports them.
func invalid(err error) *HTTPError {
	fields := make(map[string][]string)
	for field, msg := range model.FieldErrors(err) {
		fields[pascal(field)] = []string{msg}
	}
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Message: "One or more validation errors occurred.",
		Fields:  fields,
	}
}

func pascal(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// policy holds the server-side rules of one entity.
type policy[T model.Entity] struct {
	singular string
	// department returns the department a record refers to, if any.
	department func(T) string
	// setDepartment stores the canonical spelling of the department.
	setDepartment func(*T, string)
	// same reports whether two records describe the same real-world thing.
	same func(a, b T) bool
	// duplicate is the conflict message for rec.
	duplicate func(rec T) string
}

func fold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

var productPolicy = policy[model.Product]{
	singular: "Product",
	same:     func(a, b model.Product) bool { return fold(a.Name, b.Name) },
	duplicate: func(p model.Product) string {
		return fmt.Sprintf("Product '%s' already exists", p.Name)
	},
}

var studentPolicy = policy[model.Student]{
	singular:      "Student",
	department:    func(s model.Student) string { return s.DeptName },
	setDepartment: func(s *model.Student, d string) { s.DeptName = d },
	same: func(a, b model.Student) bool {
		return fold(a.StudentName, b.StudentName) && fold(a.DeptName, b.DeptName)
	},
	duplicate: func(model.Student) string { return "Student already exists" },
}

var employeePolicy = policy[model.Employee]{
	singular:      "Employee",
	department:    func(e model.Employee) string { return e.DeptName },
	setDepartment: func(e *model.Employee, d string) { e.DeptName = d },
	same:          func(a, b model.Employee) bool { return fold(a.EmpName, b.EmpName) },
	duplicate: func(e model.Employee) string {
		return fmt.Sprintf("Employee '%s' already exists", e.EmpName)
	},
}

var memberPolicy = policy[model.Member]{
	singular: "Member",
	same: func(a, b model.Member) bool {
		return fold(a.MemberName, b.MemberName) && fold(a.Bookname, b.Bookname)
	},
	duplicate: func(m model.Member) string {
		return fmt.Sprintf("Member '%s' already exists for '%s'", m.MemberName, m.Bookname)
	},
}

// check validates rec against the existing rows, ignoring the row with key
// self. It canonicalizes the department spelling in place.
func (p policy[T]) check(rec *T, existing []T, self int64, departments []string) *HTTPError {
	if err := (*rec).Validate(); err != nil {
		return invalid(err)
	}

	if p.department != nil {
		name := strings.TrimSpace(p.department(*rec))
		canonical, ok := lookupDepartment(departments, name)
		if !ok {
			return conflict("Department '%s' does not exist", name)
		}
		p.setDepartment(rec, canonical)
	}

	for _, other := range existing {
		if other.Key() != self && p.same(*rec, other) {
			return conflict("%s", p.duplicate(*rec))
		}
	}
	return nil
}

func lookupDepartment(departments []string, name string) (string, bool) {
	for _, d := range departments {
		if strings.EqualFold(d, name) {
			return d, true
		}
	}
	return "", false
}
