package models

import "time"

// EnrollmentState is the lifecycle state of an enrollment record.
type EnrollmentState string

const (
	EnrollmentStateDraft       EnrollmentState = "DRAFT"
	EnrollmentStateSubmitted   EnrollmentState = "SUBMITTED"
	EnrollmentStatePending     EnrollmentState = "PENDING"
	EnrollmentStateComplete    EnrollmentState = "COMPLETE"
	EnrollmentStatePreEnrolled EnrollmentState = "PRE_ENROLLED"
	EnrollmentStateEnrolled    EnrollmentState = "ENROLLED"
	EnrollmentStateRejected    EnrollmentState = "REJECTED"
)

// EnrollmentStates returns every state in lifecycle order.
func EnrollmentStates() []EnrollmentState {
	return []EnrollmentState{
		EnrollmentStateDraft,
		EnrollmentStateSubmitted,
		EnrollmentStatePending,
		EnrollmentStateComplete,
		EnrollmentStatePreEnrolled,
		EnrollmentStateEnrolled,
		EnrollmentStateRejected,
	}
}

// Valid reports whether s is one of the known states.
func (s EnrollmentState) Valid() bool {
	for _, known := range EnrollmentStates() {
		if s == known {
			return true
		}
	}
	return false
}

// Promotable reports whether automatic promotion to PRE_ENROLLED may start from s.
func (s EnrollmentState) Promotable() bool {
	switch s {
	case EnrollmentStateDraft, EnrollmentStateSubmitted, EnrollmentStatePending, EnrollmentStateComplete:
		return true
	}
	return false
}

// Tier identifies which approval authority acted on an enrollment.
type Tier string

const (
	TierTeacher Tier = "TEACHER"
	TierAdmin   Tier = "ADMIN"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierTeacher || t == TierAdmin
}

// ValidationStamp is the record a tier leaves when it validates an enrollment.
type ValidationStamp struct {
	ValidatorID string     `json:"validator_id"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	Remark      string     `json:"remark,omitempty"`
}

// Enrollment is the per-student matriculation aggregate.
type Enrollment struct {
	ID                 string          `db:"id" json:"id"`
	StudentID          string          `db:"student_id" json:"student_id"`
	State              EnrollmentState `db:"state" json:"state"`
	TeacherValidatorID *string         `db:"teacher_validator_id" json:"teacher_validator_id,omitempty"`
	TeacherValidatedAt *time.Time      `db:"teacher_validated_at" json:"teacher_validated_at,omitempty"`
	TeacherRemark      *string         `db:"teacher_remark" json:"teacher_remark,omitempty"`
	AdminValidatorID   *string         `db:"admin_validator_id" json:"admin_validator_id,omitempty"`
	AdminValidatedAt   *time.Time      `db:"admin_validated_at" json:"admin_validated_at,omitempty"`
	AdminRemark        *string         `db:"admin_remark" json:"admin_remark,omitempty"`
	ValidatedAt        *time.Time      `db:"validated_at" json:"validated_at,omitempty"`
	SubmittedAt        *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Stamp records a validation by the given tier.
func (e *Enrollment) Stamp(tier Tier, validatorID string, at time.Time, remark string) {
	var note *string
	if remark != "" {
		note = &remark
	}
	switch tier {
	case TierTeacher:
		e.TeacherValidatorID = &validatorID
		e.TeacherValidatedAt = &at
		e.TeacherRemark = note
	case TierAdmin:
		e.AdminValidatorID = &validatorID
		e.AdminValidatedAt = &at
		e.AdminRemark = note
	}
}

// StampOf returns the stamp left by tier, or nil when that tier never validated.
func (e *Enrollment) StampOf(tier Tier) *ValidationStamp {
	var id, remark *string
	var at *time.Time
	switch tier {
	case TierTeacher:
		id, at, remark = e.TeacherValidatorID, e.TeacherValidatedAt, e.TeacherRemark
	case TierAdmin:
		id, at, remark = e.AdminValidatorID, e.AdminValidatedAt, e.AdminRemark
	}
	if id == nil {
		return nil
	}
	stamp := &ValidationStamp{ValidatorID: *id, ValidatedAt: at}
	if remark != nil {
		stamp.Remark = *remark
	}
	return stamp
}

// EnrollmentSnapshot is the consistent view read inside a transition.
type EnrollmentSnapshot struct {
	Enrollment      *Enrollment
	Student         *StudentProfile
	ActiveDocuments []Document
}

// EnrollmentListItem is one row of the staff listing.
type EnrollmentListItem struct {
	Enrollment
	StudentName    string       `db:"student_name" json:"student_name"`
	DocumentType   DocumentType `db:"document_type" json:"document_type"`
	DocumentNumber string       `db:"document_number" json:"document_number"`
	SchoolID       *string      `db:"school_id" json:"school_id,omitempty"`
	SchoolName     *string      `db:"school_name" json:"school_name,omitempty"`
	GroupID        *string      `db:"group_id" json:"group_id,omitempty"`
	GroupName      *string      `db:"group_name" json:"group_name,omitempty"`
}

// EnrollmentFilter narrows the staff listing.
type EnrollmentFilter struct {
	State     EnrollmentState
	SchoolID  string
	GroupID   string
	Search    string
	Scope     AccessScope
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EnrollmentSummary counts enrollments per state.
type EnrollmentSummary struct {
	Total        int                     `json:"total"`
	ByState      map[EnrollmentState]int `json:"by_state"`
	PendingSimat *int                    `json:"pending_simat,omitempty"`
}

// BulkFailure describes one record a bulk operation could not process.
type BulkFailure struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BulkResult aggregates the outcome of a batch operation.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}
