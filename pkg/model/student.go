package model

// Student is an enrolled student.
type Student struct {
	ID          int64  `json:"id,omitempty" db:"id,key"`
	StudentName string `json:"studentName" db:"student_name,required,label(Name)"`
	Age         int    `json:"age" db:"age,required"`
	DeptName    string `json:"deptName" db:"dept_name,required,label(Department)"`
}

// TableName returns the storage table name.
func (Student) TableName() string { return "students" }

// Key returns the server-assigned id.
func (s Student) Key() int64 { return s.ID }

// Label returns the student name.
func (s Student) Label() string { return s.StudentName }

// Validate checks the student locally.
func (s Student) Validate() error {
	var v validator
	v.required("studentName", s.StudentName, "Name is required")
	v.check(s.Age > 0, "age", "Valid age is required")
	v.required("deptName", s.DeptName, "Department is required")
	return v.result()
}
