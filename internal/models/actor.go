package models

// Actor is the verified caller of a workflow operation.
type Actor struct {
	UserID string
	Role   UserRole
	Scope  AccessScope
}

// AccessScope bounds which enrollments an actor may see or act on.
type AccessScope struct {
	All       bool
	SchoolIDs []string
	StudentID string
}

// CoversStudent reports whether the scope includes a student of the given school.
func (s AccessScope) CoversStudent(studentID string, schoolID *string) bool {
	if s.All {
		return true
	}
	if s.StudentID != "" && s.StudentID == studentID {
		return true
	}
	if schoolID == nil {
		return false
	}
	for _, id := range s.SchoolIDs {
		if id == *schoolID {
			return true
		}
	}
	return false
}

// CoversSchool reports whether the scope reaches every student of a school.
func (s AccessScope) CoversSchool(schoolID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.SchoolIDs {
		if id == schoolID {
			return true
		}
	}
	return false
}

// Tier returns the approval tier an actor acts under. Students have none.
func (a Actor) Tier() (Tier, bool) {
	switch a.Role {
	case RoleAdmin:
		return TierAdmin, true
	case RoleTeacher:
		return TierTeacher, true
	}
	return "", false
}
