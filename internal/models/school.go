package models

// Group is a cohort of students of one school in an academic year.
type Group struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	SchoolID     string  `db:"school_id" json:"school_id"`
	ProgramID    *string `db:"program_id" json:"program_id,omitempty"`
	Shift        string  `db:"shift" json:"shift"`
	AcademicYear int     `db:"academic_year" json:"academic_year"`
	Active       bool    `db:"active" json:"active"`
}
