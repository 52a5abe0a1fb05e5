package model

// Product is an inventory item.
type Product struct {
	ID          int64   `json:"id,omitempty" db:"id,key"`
	Name        string  `json:"name" db:"name,required"`
	Description string  `json:"description" db:"description,multiline,width(32)"`
	Price       float64 `json:"price" db:"price"`
	Stock       int     `json:"stock" db:"stock"`
}

// TableName returns the storage table name.
func (Product) TableName() string { return "products" }

// Key returns the server-assigned id.
func (p Product) Key() int64 { return p.ID }

// Label returns the product name.
func (p Product) Label() string { return p.Name }

// Validate checks the product locally.
func (p Product) Validate() error {
	var v validator
	v.required("name", p.Name, "Name is required")
	v.check(p.Price >= 0, "price", "Price cannot be negative")
	v.check(p.Stock >= 0, "stock", "Stock cannot be negative")
	return v.result()
}
