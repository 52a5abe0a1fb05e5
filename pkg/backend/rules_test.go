package backend

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/databridge/pkg/model"
)

var testDepartments = []string{"CSE", "ECE", "IT"}

func TestPolicyCheck(t *testing.T) {
	t.Run("validation failure lists every field", func(t *testing.T) {
		rec := model.Student{}
		herr := studentPolicy.check(&rec, nil, 0, testDepartments)
		require.NotNil(t, herr)
		assert.Equal(t, http.StatusBadRequest, herr.Status)
		assert.Equal(t, map[string][]string{
			"StudentName": {"Name is required"},
			"Age":         {"Valid age is required"},
			"DeptName":    {"Department is required"},
		}, herr.Fields)
	})

	t.Run("unknown department", func(t *testing.T) {
		rec := model.Employee{EmpName: "Raj", DeptName: "HR"}
		herr := employeePolicy.check(&rec, nil, 0, testDepartments)
		require.NotNil(t, herr)
		assert.Equal(t, http.StatusConflict, herr.Status)
		assert.Equal(t, "Department 'HR' does not exist", herr.Message)
	})

	t.Run("department spelling is canonicalized", func(t *testing.T) {
		rec := model.Employee{EmpName: "Raj", DeptName: " it "}
		require.Nil(t, employeePolicy.check(&rec, nil, 0, testDepartments))
		assert.Equal(t, "IT", rec.DeptName)
	})

	t.Run("duplicates", func(t *testing.T) {
		existing := []model.Product{{ID: 1, Name: "Pen"}, {ID: 2, Name: "Ink"}}

		rec := model.Product{Name: "pen"}
		herr := productPolicy.check(&rec, existing, 0, nil)
		require.NotNil(t, herr)
		assert.Equal(t, http.StatusConflict, herr.Status)
		assert.Equal(t, "Product 'pen' already exists", herr.Message)

		// A record never conflicts with itself.
		assert.Nil(t, productPolicy.check(&model.Product{Name: "Pen"}, existing, 1, nil))
	})

	t.Run("student duplicate needs name and department", func(t *testing.T) {
		existing := []model.Student{{ID: 1, StudentName: "Asha", Age: 20, DeptName: "CSE"}}

		other := model.Student{StudentName: "Asha", Age: 21, DeptName: "ECE"}
		assert.Nil(t, studentPolicy.check(&other, existing, 0, testDepartments))

		dup := model.Student{StudentName: "asha", Age: 21, DeptName: "cse"}
		herr := studentPolicy.check(&dup, existing, 0, testDepartments)
		require.NotNil(t, herr)
		assert.Equal(t, "Student already exists", herr.Message)
	})

	t.Run("member duplicate needs name and book", func(t *testing.T) {
		existing := []model.Member{{MemberID: 3, Bookname: "Dune", MemberName: "Lee", MemberAge: 30}}

		rec := model.Member{Bookname: "Dune", MemberName: "Lee", MemberAge: 31}
		herr := memberPolicy.check(&rec, existing, 0, nil)
		require.NotNil(t, herr)
		assert.Equal(t, "Member 'Lee' already exists for 'Dune'", herr.Message)

		rec.Bookname = "Emma"
		assert.Nil(t, memberPolicy.check(&rec, existing, 0, nil))
	})
}

func TestIngestStudents(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new rows and skips duplicates", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.Students.Insert(ctx, model.Student{StudentName: "Asha", Age: 20, DeptName: "CSE"})
		require.NoError(t, err)

		doc := "StudentName,Age,DeptName\n" +
			"Asha,20,CSE\n" +
			"Ben,22,ece\n" +
			"ben,23,ECE\n" +
			"\n" +
			"Cara,x,IT\n" +
			"Dev,19,HR\n"
		report, err := ingestStudents(ctx, store.Students, strings.NewReader(doc), testDepartments)
		require.NoError(t, err)

		assert.Equal(t, 1, report.RecordsInserted)
		assert.Equal(t, 2, report.Skipped)
		assert.Equal(t, []string{
			`row 6: age "x" is not a number`,
			"row 7: Department 'HR' does not exist",
		}, report.RowErrors)
		assert.Error(t, report.invalid.ErrorOrNil())

		items, err := store.Students.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "ECE", items[1].DeptName)
	})

	t.Run("all rows present", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.Students.Insert(ctx, model.Student{StudentName: "Asha", Age: 20, DeptName: "CSE"})
		require.NoError(t, err)

		report, err := ingestStudents(ctx, store.Students, strings.NewReader("studentName,age,deptName\nAsha,20,CSE\n"), testDepartments)
		require.NoError(t, err)
		assert.Zero(t, report.RecordsInserted)
		assert.Nil(t, report.invalid.ErrorOrNil())
	})

	t.Run("field errors are joined", func(t *testing.T) {
		report, err := ingestStudents(ctx, NewMemoryStore().Students, strings.NewReader("studentName,age,deptName\n,0,CSE\n"), testDepartments)
		require.NoError(t, err)
		assert.Equal(t, []string{"row 2: Valid age is required; Name is required"}, report.RowErrors)
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := ingestStudents(ctx, NewMemoryStore().Students, strings.NewReader("name,age\nAsha,20\n"), testDepartments)
		var herr *HTTPError
		require.ErrorAs(t, err, &herr)
		assert.Equal(t, http.StatusBadRequest, herr.Status)
		assert.Equal(t, "Missing column(s): studentName, deptName", herr.Message)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ingestStudents(ctx, NewMemoryStore().Students, strings.NewReader(""), testDepartments)
		assert.ErrorContains(t, err, "empty")
	})
}
