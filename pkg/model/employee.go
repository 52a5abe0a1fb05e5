package model

// Employee is a staff member assigned to a department.
type Employee struct {
	EmpID    int64  `json:"empId,omitempty" db:"emp_id,key,label(ID)"`
	EmpName  string `json:"empName" db:"emp_name,required,label(Name)"`
	DeptName string `json:"deptName" db:"dept_name,required,label(Department)"`
}

// TableName returns the storage table name.
func (Employee) TableName() string { return "employees" }

// Key returns the employee id; 0 means unset.
func (e Employee) Key() int64 { return e.EmpID }

// Label returns the employee name.
func (e Employee) Label() string { return e.EmpName }

// Validate checks the employee locally.
func (e Employee) Validate() error {
	var v validator
	v.required("empName", e.EmpName, "Name is required")
	v.required("deptName", e.DeptName, "Department is required")
	return v.result()
}
