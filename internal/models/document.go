package models

import "time"

// DocumentKind is the closed set of documents an enrollment may require.
type DocumentKind string

const (
	DocumentKindIdentity             DocumentKind = "IDENTITY_DOCUMENT"
	DocumentKindBirthCertificate     DocumentKind = "BIRTH_CERTIFICATE"
	DocumentKindHealthAffiliation    DocumentKind = "HEALTH_AFFILIATION"
	DocumentKindTrainingSystem       DocumentKind = "TRAINING_SYSTEM_CERTIFICATE"
	DocumentKindApprenticeship       DocumentKind = "APPRENTICESHIP_CERTIFICATE"
	DocumentKindGuardianID           DocumentKind = "GUARDIAN_ID"
	DocumentKindDataConsent          DocumentKind = "DATA_CONSENT"
	DocumentKindApprenticeCommitment DocumentKind = "APPRENTICE_COMMITMENT"
)

var documentKindLabels = map[DocumentKind]string{
	DocumentKindIdentity:             "Identity document",
	DocumentKindBirthCertificate:     "Birth certificate",
	DocumentKindHealthAffiliation:    "Health affiliation certificate",
	DocumentKindTrainingSystem:       "Training system certificate",
	DocumentKindApprenticeship:       "Apprenticeship agreement certificate",
	DocumentKindGuardianID:           "Guardian identity document",
	DocumentKindDataConsent:          "Data processing consent",
	DocumentKindApprenticeCommitment: "Apprentice commitment form",
}

// Valid reports whether k is a known kind.
func (k DocumentKind) Valid() bool {
	_, ok := documentKindLabels[k]
	return ok
}

// Label returns the human readable name of the kind.
func (k DocumentKind) Label() string {
	if label, ok := documentKindLabels[k]; ok {
		return label
	}
	return string(k)
}

// DocumentStatus is derived from the review flag and the supersede pointer.
type DocumentStatus string

const (
	DocumentStatusReplaced DocumentStatus = "REPLACED"
	DocumentStatusApproved DocumentStatus = "APPROVED"
	DocumentStatusRejected DocumentStatus = "REJECTED"
	DocumentStatusPending  DocumentStatus = "PENDING"
)

// Document is one uploaded version of a required document.
type Document struct {
	ID           string       `db:"id" json:"id"`
	EnrollmentID string       `db:"enrollment_id" json:"enrollment_id"`
	Kind         DocumentKind `db:"kind" json:"kind"`
	Version      int          `db:"version" json:"version"`
	FileName     string       `db:"file_name" json:"file_name"`
	FilePath     string       `db:"file_path" json:"-"`
	SizeBytes    int64        `db:"size_bytes" json:"size_bytes"`
	Extension    string       `db:"extension" json:"extension"`
	Approved     *bool        `db:"approved" json:"approved"`
	ReviewedBy   *string      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Remark       *string      `db:"remark" json:"remark,omitempty"`
	SupersededBy *string      `db:"superseded_by" json:"superseded_by,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Active reports whether no later version replaced this document.
func (d *Document) Active() bool {
	return d.SupersededBy == nil
}

// IsApproved reports whether the review flag is set to true.
func (d *Document) IsApproved() bool {
	return d.Approved != nil && *d.Approved
}

// Status derives the review status with REPLACED taking precedence.
func (d *Document) Status() DocumentStatus {
	switch {
	case d.SupersededBy != nil:
		return DocumentStatusReplaced
	case d.Approved == nil:
		return DocumentStatusPending
	case *d.Approved:
		return DocumentStatusApproved
	default:
		return DocumentStatusRejected
	}
}

// DocumentReview is the outcome applied to an active document.
type DocumentReview struct {
	Approve    bool
	ReviewerID string
	Remark     string
	ReviewedAt time.Time
}
