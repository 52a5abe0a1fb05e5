package model

// Member is a library member together with the book they hold.
type Member struct {
	MemberID   int64  `json:"memberid,omitempty" db:"member_id,key,label(ID)"`
	Bookname   string `json:"bookname" db:"bookname,required,label(Book)"`
	MemberName string `json:"memberName" db:"member_name,required,label(Name)"`
	MemberAge  int    `json:"memberAge" db:"member_age,required,label(Age)"`
}

// TableName returns the storage table name.
func (Member) TableName() string { return "members" }

// Key returns the member id.
func (m Member) Key() int64 { return m.MemberID }

// Label returns the member name.
func (m Member) Label() string { return m.MemberName }

// Validate checks the member locally.
func (m Member) Validate() error {
	var v validator
	v.required("bookname", m.Bookname, "Book name is required")
	v.required("memberName", m.MemberName, "Name is required")
	v.check(m.MemberAge > 0, "memberAge", "Valid age is required")
	return v.result()
}
