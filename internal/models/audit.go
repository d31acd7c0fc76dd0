package models

import "time"

// Audit actions recorded by the enrollment workflow.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionEnrollmentInit    = "ENROLLMENT_INITIALIZE"
	AuditActionEnrollmentSubmit  = "ENROLLMENT_SUBMIT"
	AuditActionEnrollmentState   = "ENROLLMENT_STATE_CHANGE"
	AuditActionEnrollmentPromote = "ENROLLMENT_PROMOTE"
	AuditActionEnrollmentFinal   = "ENROLLMENT_FINALIZE"
	AuditActionProfileUpdate     = "PROFILE_UPDATE"
	AuditActionDocumentTypeEdit  = "DOCUMENT_TYPE_UPDATE"
	AuditActionDocumentUpload    = "DOCUMENT_UPLOAD"
	AuditActionDocumentReplace   = "DOCUMENT_REPLACE"
	AuditActionDocumentReview    = "DOCUMENT_REVIEW"
	AuditActionDocumentBulk      = "DOCUMENT_APPROVE_ALL"
	AuditActionDocumentPurge     = "DOCUMENT_PURGE"
	AuditActionReportRequest     = "REPORT_REQUEST"
	AuditActionDocumentDownload  = "DOCUMENT_DOWNLOAD_LINK"
	AuditActionSimatUpload       = "SIMAT_UPLOAD"
	AuditActionSimatReview       = "SIMAT_REVIEW"
)

// Audit resources.
const (
	AuditResourceAuth       = "auth"
	AuditResourceEnrollment = "enrollment"
	AuditResourceDocument   = "document"
	AuditResourceStudent    = "student"
	AuditResourceReport     = "report"
	AuditResourceSimat      = "simat_filing"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
