package models

import (
	"strings"
	"time"
)

// DocumentType is the identification document code of a person.
type DocumentType string

const (
	DocumentTypeCC  DocumentType = "CC"  // citizenship card
	DocumentTypeTI  DocumentType = "TI"  // identity card for minors
	DocumentTypeCE  DocumentType = "CE"  // foreigner card
	DocumentTypePEP DocumentType = "PEP" // special permanence permit
	DocumentTypePPT DocumentType = "PPT" // temporary protection permit
)

// AdultAge is the age at which a student no longer requires guardian paperwork.
const AdultAge = 18

// DocumentTypes lists every accepted identification code.
func DocumentTypes() []DocumentType {
	return []DocumentType{DocumentTypeCC, DocumentTypeTI, DocumentTypeCE, DocumentTypePEP, DocumentTypePPT}
}

// ParseDocumentType normalises raw input and reports whether it is known.
func ParseDocumentType(raw string) (DocumentType, bool) {
	candidate := DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, t := range DocumentTypes() {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}

// GuardianInfo holds the optional guardian fields attached to a student profile.
type GuardianInfo struct {
	DocType         string `db:"guardian_doc_type" json:"doc_type"`
	Document        string `db:"guardian_document" json:"document"`
	ExpeditionPlace string `db:"guardian_expedition_place" json:"expedition_place"`
	FirstNames      string `db:"guardian_first_names" json:"first_names"`
	LastNames       string `db:"guardian_last_names" json:"last_names"`
	Address         string `db:"guardian_address" json:"address"`
	Phone           string `db:"guardian_phone" json:"phone"`
	Email           string `db:"guardian_email" json:"email"`
}

// StudentProfile is the identity and demographic record of an apprentice.
type StudentProfile struct {
	ID              string       `db:"id" json:"id"`
	UserID          string       `db:"user_id" json:"user_id"`
	FullName        string       `db:"full_name" json:"full_name"`
	DocumentType    DocumentType `db:"document_type" json:"document_type"`
	DocumentNumber  string       `db:"document_number" json:"document_number"`
	BirthDate       *time.Time   `db:"birth_date" json:"birth_date,omitempty"`
	City            string       `db:"city" json:"city"`
	Department      string       `db:"department" json:"department"`
	Address         string       `db:"address" json:"address"`
	GuardianInfo    `json:"guardian"`
	SchoolID        *string      `db:"school_id" json:"school_id,omitempty"`
	GroupID         *string      `db:"group_id" json:"group_id,omitempty"`
	ProgramID       *string      `db:"program_id" json:"program_id,omitempty"`
	ProfileComplete bool         `db:"profile_complete" json:"profile_complete"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// Age returns the age in whole years at now, or -1 when the birth date is unknown.
func (p *StudentProfile) Age(now time.Time) int {
	if p == nil || p.BirthDate == nil {
		return -1
	}
	born := p.BirthDate.UTC()
	now = now.UTC()
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age
}

// IsAdult reports whether the student is at least AdultAge at now.
// An unknown birth date is treated as a minor.
func (p *StudentProfile) IsAdult(now time.Time) bool {
	return p.Age(now) >= AdultAge
}

// OutdatedDocumentType flags adults still registered with a minor's identity card.
func (p *StudentProfile) OutdatedDocumentType(now time.Time) bool {
	return p != nil && p.DocumentType == DocumentTypeTI && p.IsAdult(now)
}

// IsComplete reports whether the profile carries every field staff need.
func (p *StudentProfile) IsComplete() bool {
	if p == nil {
		return false
	}
	required := []string{
		p.City,
		p.Address,
		p.GuardianInfo.Document,
		p.GuardianInfo.FirstNames,
		p.GuardianInfo.LastNames,
		p.GuardianInfo.Address,
		p.GuardianInfo.Phone,
	}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return p.SchoolID != nil && p.GroupID != nil && p.ProgramID != nil
}
