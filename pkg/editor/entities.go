package editor

import (
	"net/http"

	"github.com/marshallshelly/databridge/pkg/client"
	"github.com/marshallshelly/databridge/pkg/model"
)

// Entity descriptors. Hints are ordered: the first match for the response
// status wins.
var (
	ProductDescriptor = Descriptor{
		Singular: "Product",
		Plural:   "products",
		Hints: []Hint{
			{Substring: "already exists", Field: "name"},
		},
	}

	StudentDescriptor = Descriptor{
		Singular: "Student",
		Plural:   "students",
		Hints: []Hint{
			{Status: http.StatusConflict, Substring: "department", Field: "deptName"},
			{Status: http.StatusBadRequest, Substring: "name", Field: "studentName"},
			{Status: http.StatusBadRequest, Substring: "age", Field: "age"},
			{Status: http.StatusBadRequest, Substring: "department", Field: "deptName"},
		},
	}

	EmployeeDescriptor = Descriptor{
		Singular: "Employee",
		Plural:   "employees",
		Hints: []Hint{
			{Substring: "department", Field: "deptName"},
			{Substring: "already exists", Field: "empName"},
		},
	}

	MemberDescriptor = Descriptor{
		Singular: "Member",
		Plural:   "members",
		Hints: []Hint{
			{Substring: "already exists", Field: "memberName"},
		},
	}
)

// NewProductEditor returns the product editor.
func NewProductEditor(svc Service[model.Product], opts ...Option) *Editor[model.Product] {
	return New(svc, ProductDescriptor, opts...)
}

// NewStudentEditor returns the student editor with bulk delete and upload.
func NewStudentEditor(svc *client.StudentService, opts ...Option) *Editor[model.Student] {
	return New[model.Student](svc, StudentDescriptor, append([]Option{WithBatch(svc)}, opts...)...)
}

// NewEmployeeEditor returns the employee editor.
func NewEmployeeEditor(svc Service[model.Employee], opts ...Option) *Editor[model.Employee] {
	return New(svc, EmployeeDescriptor, opts...)
}

// NewMemberEditor returns the member editor.
func NewMemberEditor(svc Service[model.Member], opts ...Option) *Editor[model.Member] {
	return New(svc, MemberDescriptor, opts...)
}
