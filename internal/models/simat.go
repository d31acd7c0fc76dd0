package models

import "time"

// SimatScope tells whether a filing covers a whole school or one group.
type SimatScope string

const (
	SimatScopeSchool SimatScope = "SCHOOL"
	SimatScopeGroup  SimatScope = "GROUP"
)

// Valid reports whether s is a known scope.
func (s SimatScope) Valid() bool {
	return s == SimatScopeSchool || s == SimatScopeGroup
}

// SimatStatus is the administrator's verdict on a filing.
type SimatStatus string

const (
	SimatStatusPending  SimatStatus = "PENDING"
	SimatStatusApproved SimatStatus = "APPROVED"
	SimatStatusRejected SimatStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s SimatStatus) Valid() bool {
	switch s {
	case SimatStatusPending, SimatStatusApproved, SimatStatusRejected:
		return true
	}
	return false
}

// SimatFiling is the national enrollment-system export a liaison teacher
// files for a school or group, pending administrator approval.
type SimatFiling struct {
	ID         string      `db:"id" json:"id"`
	Scope      SimatScope  `db:"scope" json:"scope"`
	SchoolID   string      `db:"school_id" json:"school_id"`
	GroupID    *string     `db:"group_id" json:"group_id,omitempty"`
	UploadedBy *string     `db:"uploaded_by" json:"uploaded_by,omitempty"`
	FileName   string      `db:"file_name" json:"file_name"`
	FilePath   string      `db:"file_path" json:"-"`
	SizeBytes  int64       `db:"size_bytes" json:"size_bytes"`
	Extension  string      `db:"extension" json:"extension"`
	Status     SimatStatus `db:"status" json:"status"`
	Remark     *string     `db:"remark" json:"remark,omitempty"`
	ReviewedBy *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// SimatFilter narrows a filing listing.
type SimatFilter struct {
	Scope    AccessScope
	Status   SimatStatus
	SchoolID string
}

// SimatStats counts filings per status.
type SimatStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
