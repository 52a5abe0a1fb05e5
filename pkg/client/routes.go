package client

import (
	"strconv"
	"strings"
)

// Routes are the path templates of one entity's endpoints, relative to the
// base URL. Update and Delete contain an "{id}" placeholder.
type Routes struct {
	List   string
	Create string
	Update string
	Delete string
}

// Item expands the {id} placeholder of tmpl.
func (r Routes) Item(tmpl string, id int64) string {
	return strings.ReplaceAll(tmpl, "{id}", strconv.FormatInt(id, 10))
}

// Canonical backend contract per entity.
var (
	ProductRoutes = Routes{
		List:   "/Products",
		Create: "/Products",
		Update: "/Products/{id}",
		Delete: "/Products/{id}",
	}

	StudentRoutes = Routes{
		List:   "/Student",
		Create: "/Student",
		Update: "/Student/{id}",
		Delete: "/Student/{id}",
	}

	EmployeeRoutes = Routes{
		List:   "/Employees",
		Create: "/Employees/add-employee",
		Update: "/Employees/update-employee/{id}",
		Delete: "/Employees/delete-employee/{id}",
	}

	MemberRoutes = Routes{
		List:   "/Member",
		Create: "/Member",
		Update: "/Member/{id}",
		Delete: "/Member/{id}",
	}
)

// Student batch endpoints.
const (
	StudentBulkDeletePath = "/Student/bulk"
	StudentUploadPath     = "/Student/upload-excel"
	// UploadFieldName is the multipart field carrying the uploaded file.
	UploadFieldName = "file"
)
