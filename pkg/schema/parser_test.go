package schema

import (
	"reflect"
	"testing"
)

type TestUser struct {
	ID      int64   `json:"id,omitempty" db:"id,key"`
	Name    string  `json:"name" db:"name,required,label(Full Name)"`
	Age     int     `json:"age" db:"age"`
	Balance float64 `json:"balance" db:"balance,width(12)"`
	Notes   string  `json:"notes" db:"notes,multiline"`
	ignored string
	Skipped string `json:"skipped"`
}

type TestCourse struct {
	CourseID int64  `json:"courseId,omitempty" db:"course_id,key"`
	Title    string `json:"title" db:"title"`
}

func (TestCourse) TableName() string { return "courses" }

type noKey struct {
	Name string `db:"name"`
}

type badKey struct {
	ID string `db:"id,key"`
}

type badType struct {
	ID    int64    `db:"id,key"`
	Flags []string `db:"flags"`
}

func TestParser_Parse(t *testing.T) {
	parser := NewParser()

	t.Run("basic struct parsing", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(TestUser{}))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		if table.Name != "test_user" {
			t.Errorf("expected table name 'test_user', got '%s'", table.Name)
		}

		if len(table.Columns) != 5 {
			t.Errorf("expected 5 columns, got %d", len(table.Columns))
		}

		key := table.KeyColumn()
		if key == nil || key.Name != "id" {
			t.Fatalf("expected key column 'id', got %v", key)
		}
	})

	t.Run("column metadata", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(&TestUser{}))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		name := table.GetColumnByName("name")
		if name == nil {
			t.Fatal("name column not found")
		}
		if !name.Required {
			t.Error("expected name to be required")
		}
		if name.Label != "Full Name" {
			t.Errorf("expected label 'Full Name', got '%s'", name.Label)
		}
		if name.JSONName != "name" {
			t.Errorf("expected json name 'name', got '%s'", name.JSONName)
		}

		balance := table.Field("BALANCE")
		if balance == nil || balance.Kind != KindFloat || balance.Width != 12 {
			t.Errorf("unexpected balance column: %+v", balance)
		}

		if notes := table.Field("notes"); notes == nil || !notes.Multiline {
			t.Errorf("expected notes to be multiline: %+v", notes)
		}

		if age := table.Field("age"); age == nil || age.Label != "Age" || age.Kind != KindInt {
			t.Errorf("unexpected age column: %+v", age)
		}
	})

	t.Run("custom table name", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(TestCourse{}))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if table.Name != "courses" {
			t.Errorf("expected table name 'courses', got '%s'", table.Name)
		}
		if table.KeyColumn().JSONName != "courseId" {
			t.Errorf("expected key json name 'courseId', got '%s'", table.KeyColumn().JSONName)
		}
	})

	t.Run("invalid models", func(t *testing.T) {
		for _, model := range []any{"not a struct", noKey{}, badKey{}, badType{}} {
			if _, err := parser.Parse(reflect.TypeOf(model)); err == nil {
				t.Errorf("expected error for %T", model)
			}
		}
	})
}

func TestTableMetadata_Values(t *testing.T) {
	table, err := NewParser().Parse(reflect.TypeOf(TestUser{}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	user := TestUser{ID: 7, Name: "Ada", Age: 36, Balance: 12.5}

	t.Run("key access", func(t *testing.T) {
		if got := table.Key(user); got != 7 {
			t.Errorf("expected key 7, got %d", got)
		}
		if err := table.SetKey(&user, 9); err != nil {
			t.Fatalf("SetKey failed: %v", err)
		}
		if user.ID != 9 {
			t.Errorf("expected ID 9, got %d", user.ID)
		}
		if err := table.SetKey(user, 1); err == nil {
			t.Error("expected error when setting key on a value")
		}
	})

	t.Run("format and parse", func(t *testing.T) {
		age := table.Field("age")
		if got := table.Format(user, age); got != "36" {
			t.Errorf("expected '36', got '%s'", got)
		}
		if err := table.SetFromString(&user, age, " 41 "); err != nil {
			t.Fatalf("SetFromString failed: %v", err)
		}
		if user.Age != 41 {
			t.Errorf("expected age 41, got %d", user.Age)
		}
		if err := table.SetFromString(&user, age, "forty"); err == nil {
			t.Error("expected parse error")
		}
		if err := table.SetFromString(&user, age, ""); err != nil || user.Age != 0 {
			t.Errorf("expected blank to store zero, got %d (%v)", user.Age, err)
		}

		balance := table.Field("balance")
		if err := table.SetFromString(&user, balance, "3.25"); err != nil {
			t.Fatalf("SetFromString failed: %v", err)
		}
		if got := table.Format(user, balance); got != "3.25" {
			t.Errorf("expected '3.25', got '%s'", got)
		}
	})

	t.Run("scan targets", func(t *testing.T) {
		cols := table.EditableColumns()
		targets, err := table.ScanTargets(&user, cols)
		if err != nil {
			t.Fatalf("ScanTargets failed: %v", err)
		}
		if len(targets) != len(cols) {
			t.Fatalf("expected %d targets, got %d", len(cols), len(targets))
		}
		*(targets[0].(*string)) = "Grace"
		if user.Name != "Grace" {
			t.Errorf("expected scan target to alias Name, got '%s'", user.Name)
		}
	})
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Product":     "product",
		"TestUser":    "test_user",
		"MemberEntry": "member_entry",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
