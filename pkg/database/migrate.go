package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migration is a single forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrations returns the ordered schema history for the enrollment service.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "identity", UpSQL: identitySchema},
		{Version: 2, Name: "institutions", UpSQL: institutionSchema},
		{Version: 3, Name: "students", UpSQL: studentSchema},
		{Version: 4, Name: "enrollments", UpSQL: enrollmentSchema},
		{Version: 5, Name: "documents", UpSQL: documentSchema},
		{Version: 6, Name: "report_jobs", UpSQL: reportJobSchema},
		{Version: 7, Name: "simat_filings", UpSQL: simatFilingSchema},
	}
}

// Migrate applies pending migrations, each inside its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB, migrations []Migration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations ORDER BY version`); err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
		logger.Info("migration applied", zap.Int("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

const identitySchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	full_name VARCHAR(255) NOT NULL,
	role VARCHAR(20) NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	last_login TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_role_check CHECK (role IN ('STUDENT', 'TEACHER', 'ADMIN'))
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token TEXT NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	revoked BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at TIMESTAMPTZ NULL,
	ip_address VARCHAR(64) NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id UUID PRIMARY KEY,
	user_id UUID NULL,
	action VARCHAR(64) NOT NULL,
	resource VARCHAR(64) NOT NULL,
	resource_id TEXT NULL,
	old_values JSONB NULL,
	new_values JSONB NULL,
	ip_address VARCHAR(64) NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource, resource_id);
`

const institutionSchema = `
CREATE TABLE IF NOT EXISTS schools (
	id UUID PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	kind VARCHAR(20) NOT NULL DEFAULT 'PUBLIC',
	address TEXT NOT NULL DEFAULT '',
	phone VARCHAR(32) NOT NULL DEFAULT '',
	email VARCHAR(255) NOT NULL DEFAULT '',
	rector_id UUID NULL REFERENCES users(id),
	liaison_teacher_id UUID NULL REFERENCES users(id),
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_schools_liaison ON schools(liaison_teacher_id);

CREATE TABLE IF NOT EXISTS programs (
	id UUID PRIMARY KEY,
	code VARCHAR(32) NOT NULL UNIQUE,
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	duration_hours INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS groups (
	id UUID PRIMARY KEY,
	name VARCHAR(64) NOT NULL,
	school_id UUID NOT NULL REFERENCES schools(id),
	program_id UUID NULL REFERENCES programs(id),
	shift VARCHAR(20) NOT NULL DEFAULT '',
	academic_year INTEGER NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	CONSTRAINT groups_name_school_year_key UNIQUE (name, school_id, academic_year)
);
`

const studentSchema = `
CREATE TABLE IF NOT EXISTS students (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL UNIQUE REFERENCES users(id),
	full_name VARCHAR(255) NOT NULL,
	document_type VARCHAR(8) NOT NULL,
	document_number VARCHAR(32) NOT NULL,
	birth_date DATE NULL,
	city VARCHAR(128) NOT NULL DEFAULT '',
	department VARCHAR(128) NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	guardian_doc_type VARCHAR(8) NOT NULL DEFAULT '',
	guardian_document VARCHAR(32) NOT NULL DEFAULT '',
	guardian_expedition_place VARCHAR(128) NOT NULL DEFAULT '',
	guardian_first_names VARCHAR(128) NOT NULL DEFAULT '',
	guardian_last_names VARCHAR(128) NOT NULL DEFAULT '',
	guardian_address TEXT NOT NULL DEFAULT '',
	guardian_phone VARCHAR(32) NOT NULL DEFAULT '',
	guardian_email VARCHAR(255) NOT NULL DEFAULT '',
	school_id UUID NULL REFERENCES schools(id),
	group_id UUID NULL REFERENCES groups(id),
	program_id UUID NULL REFERENCES programs(id),
	profile_complete BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT students_document_type_check CHECK (document_type IN ('CC', 'TI', 'CE', 'PEP', 'PPT'))
);
CREATE INDEX IF NOT EXISTS idx_students_school ON students(school_id);
CREATE INDEX IF NOT EXISTS idx_students_group ON students(group_id);
`

const enrollmentSchema = `
CREATE TABLE IF NOT EXISTS enrollments (
	id UUID PRIMARY KEY,
	student_id UUID NOT NULL UNIQUE REFERENCES students(id) ON DELETE CASCADE,
	state VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
	teacher_validator_id UUID NULL REFERENCES users(id),
	teacher_validated_at TIMESTAMPTZ NULL,
	teacher_remark TEXT NULL,
	admin_validator_id UUID NULL REFERENCES users(id),
	admin_validated_at TIMESTAMPTZ NULL,
	admin_remark TEXT NULL,
	validated_at TIMESTAMPTZ NULL,
	submitted_at TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT enrollments_state_check CHECK (state IN ('DRAFT', 'SUBMITTED', 'PENDING', 'COMPLETE', 'PRE_ENROLLED', 'ENROLLED', 'REJECTED'))
);
CREATE INDEX IF NOT EXISTS idx_enrollments_state ON enrollments(state);
`

const documentSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	enrollment_id UUID NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
	kind VARCHAR(40) NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	file_name VARCHAR(255) NOT NULL,
	file_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	extension VARCHAR(8) NOT NULL,
	approved BOOLEAN NULL,
	reviewed_by UUID NULL REFERENCES users(id),
	reviewed_at TIMESTAMPTZ NULL,
	remark TEXT NULL,
	superseded_by UUID NULL REFERENCES documents(id) DEFERRABLE INITIALLY DEFERRED,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_active_kind ON documents(enrollment_id, kind) WHERE superseded_by IS NULL;
CREATE INDEX IF NOT EXISTS idx_documents_superseded_by ON documents(superseded_by);
`

const reportJobSchema = `
CREATE TABLE IF NOT EXISTS report_jobs (
	id UUID PRIMARY KEY,
	type VARCHAR(32) NOT NULL,
	params JSONB NOT NULL DEFAULT '{}'::jsonb,
	status VARCHAR(20) NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	result_url TEXT NULL,
	created_by UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ NULL,
	error_message TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_report_jobs_status ON report_jobs(status);
`

const simatFilingSchema = `
CREATE TABLE IF NOT EXISTS simat_filings (
	id UUID PRIMARY KEY,
	scope VARCHAR(10) NOT NULL DEFAULT 'SCHOOL',
	school_id UUID NOT NULL REFERENCES schools(id) ON DELETE CASCADE,
	group_id UUID NULL REFERENCES groups(id) ON DELETE SET NULL,
	uploaded_by UUID NULL REFERENCES users(id) ON DELETE SET NULL,
	file_name VARCHAR(255) NOT NULL,
	file_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	extension VARCHAR(8) NOT NULL,
	status VARCHAR(10) NOT NULL DEFAULT 'PENDING',
	remark TEXT NULL,
	reviewed_by UUID NULL REFERENCES users(id) ON DELETE SET NULL,
	reviewed_at TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT simat_filings_scope_check CHECK (scope IN ('SCHOOL', 'GROUP')),
	CONSTRAINT simat_filings_status_check CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED'))
);
CREATE INDEX IF NOT EXISTS idx_simat_filings_school ON simat_filings(school_id);
CREATE INDEX IF NOT EXISTS idx_simat_filings_status ON simat_filings(status);
`
