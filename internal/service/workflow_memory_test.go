package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/internal/repository"
	"github.com/noah-isme/articulacion-api/pkg/storage"
)

// memoryDB backs the workflow fakes with plain maps guarded by one mutex,
// which gives every call the isolation of a serialized transaction.
type memoryDB struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	students    map[string]models.StudentProfile
	documents   map[string]models.Document
	docOrder    []string
	audits      []models.AuditLog
	seq         int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		enrollments: map[string]models.Enrollment{},
		students:    map[string]models.StudentProfile{},
		documents:   map[string]models.Document{},
	}
}

func (db *memoryDB) activeDocuments(enrollmentID string) []models.Document {
	var out []models.Document
	for _, id := range db.docOrder {
		doc := db.documents[id]
		if doc.EnrollmentID == enrollmentID && doc.SupersededBy == nil {
			out = append(out, doc)
		}
	}
	return out
}

func (db *memoryDB) auditActions() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	actions := make([]string, 0, len(db.audits))
	for _, entry := range db.audits {
		actions = append(actions, entry.Action)
	}
	return actions
}

func (db *memoryDB) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.audits = append(db.audits, *log)
	return nil
}

func (db *memoryDB) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.AuditLog
	for i := len(db.audits) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		entry := db.audits[i]
		if entry.Resource == resource && entry.ResourceID != nil && *entry.ResourceID == resourceID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memoryEnrollments struct{ db *memoryDB }

func (m memoryEnrollments) Initialize(ctx context.Context, studentID string) (*models.Enrollment, bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, e := range m.db.enrollments {
		if e.StudentID == studentID {
			copied := e
			return &copied, false, nil
		}
	}
	now := time.Now().UTC()
	e := models.Enrollment{ID: "enr-" + studentID, StudentID: studentID, State: models.EnrollmentStateDraft, CreatedAt: now, UpdatedAt: now}
	m.db.enrollments[e.ID] = e
	return &e, true, nil
}

func (m memoryEnrollments) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m memoryEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentListItem, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var items []models.EnrollmentListItem
	for _, e := range m.db.enrollments {
		student := m.db.students[e.StudentID]
		if !filter.Scope.CoversStudent(student.ID, student.SchoolID) {
			continue
		}
		if filter.State != "" && e.State != filter.State {
			continue
		}
		items = append(items, models.EnrollmentListItem{Enrollment: e, StudentName: student.FullName, SchoolID: student.SchoolID})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (m memoryEnrollments) CountByState(ctx context.Context, scope models.AccessScope, schoolID string) (map[models.EnrollmentState]int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	counts := map[models.EnrollmentState]int{}
	for _, e := range m.db.enrollments {
		student := m.db.students[e.StudentID]
		if !scope.CoversStudent(student.ID, student.SchoolID) {
			continue
		}
		if schoolID != "" && (student.SchoolID == nil || *student.SchoolID != schoolID) {
			continue
		}
		counts[e.State]++
	}
	return counts, nil
}

func (m memoryEnrollments) ListIDsByState(ctx context.Context, state models.EnrollmentState) ([]string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var ids []string
	for id, e := range m.db.enrollments {
		if e.State == state {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m memoryEnrollments) Transition(ctx context.Context, id string, decide repository.TransitionFunc) (*models.Enrollment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	student := m.db.students[e.StudentID]
	snapshot := &models.EnrollmentSnapshot{Enrollment: &e, Student: &student, ActiveDocuments: m.db.activeDocuments(id)}
	changed, err := decide(snapshot)
	if err != nil {
		return nil, err
	}
	if changed {
		snapshot.Enrollment.UpdatedAt = time.Now().UTC()
		m.db.enrollments[id] = *snapshot.Enrollment
	}
	return snapshot.Enrollment, nil
}

type memoryStudents struct{ db *memoryDB }

func (m memoryStudents) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m memoryStudents) UpdateProfile(ctx context.Context, student *models.StudentProfile) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	m.db.students[student.ID] = *student
	return nil
}

func (m memoryStudents) UpdateDocumentType(ctx context.Context, id string, docType models.DocumentType) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.DocumentType = docType
	m.db.students[id] = s
	return nil
}

type memoryDocuments struct{ db *memoryDB }

func (m memoryDocuments) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	doc, ok := m.db.documents[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m memoryDocuments) ListActive(ctx context.Context, enrollmentID string) ([]models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.activeDocuments(enrollmentID), nil
}

func (m memoryDocuments) ListVersions(ctx context.Context, enrollmentID string, kind models.DocumentKind) ([]models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Document
	for _, id := range m.db.docOrder {
		doc, ok := m.db.documents[id]
		if ok && doc.EnrollmentID == enrollmentID && doc.Kind == kind {
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m memoryDocuments) AppendVersion(ctx context.Context, doc *models.Document, guard repository.VersionGuard) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.enrollments[doc.EnrollmentID]; !ok {
		return sql.ErrNoRows
	}
	var current *models.Document
	version := 0
	for _, id := range m.db.docOrder {
		existing, ok := m.db.documents[id]
		if !ok || existing.EnrollmentID != doc.EnrollmentID || existing.Kind != doc.Kind {
			continue
		}
		if existing.Version > version {
			version = existing.Version
		}
		if existing.SupersededBy == nil {
			copied := existing
			current = &copied
		}
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return err
		}
	}
	m.db.seq++
	doc.ID = fmt.Sprintf("doc-%d", m.db.seq)
	doc.Version = version + 1
	doc.CreatedAt = time.Now().UTC()
	if current != nil {
		current.SupersededBy = &doc.ID
		m.db.documents[current.ID] = *current
	}
	m.db.documents[doc.ID] = *doc
	m.db.docOrder = append(m.db.docOrder, doc.ID)
	return nil
}

func (m memoryDocuments) Review(ctx context.Context, id string, review models.DocumentReview) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	doc, ok := m.db.documents[id]
	if !ok || doc.SupersededBy != nil {
		return sql.ErrNoRows
	}
	approve, reviewer, at := review.Approve, review.ReviewerID, review.ReviewedAt
	doc.Approved, doc.ReviewedBy, doc.ReviewedAt = &approve, &reviewer, &at
	doc.Remark = nil
	if review.Remark != "" {
		remark := review.Remark
		doc.Remark = &remark
	}
	m.db.documents[id] = doc
	return nil
}

func (m memoryDocuments) ApproveAllPending(ctx context.Context, enrollmentID, reviewerID string, at time.Time) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var count int64
	for _, doc := range m.db.activeDocuments(enrollmentID) {
		if doc.Approved != nil {
			continue
		}
		approved, reviewer, when := true, reviewerID, at
		doc.Approved, doc.ReviewedBy, doc.ReviewedAt = &approved, &reviewer, &when
		m.db.documents[doc.ID] = doc
		count++
	}
	return count, nil
}

func (m memoryDocuments) Purge(ctx context.Context, id string) (*models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	purged, ok := m.db.documents[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.db.documents, id)
	for otherID, doc := range m.db.documents {
		if doc.SupersededBy != nil && *doc.SupersededBy == id {
			doc.SupersededBy = purged.SupersededBy
			m.db.documents[otherID] = doc
		}
	}
	return &purged, nil
}

type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]models.EnrollmentSummary
	invalidated int
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*dest.(*models.EnrollmentSummary) = entry
	return true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]models.EnrollmentSummary{}
	}
	c.entries[key] = *value.(*models.EnrollmentSummary)
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.invalidated++
	return nil
}

type workflowFixture struct {
	db          *memoryDB
	cache       *memoryCache
	blobs       *storage.LocalStorage
	enrollments *EnrollmentService
	documents   *DocumentService
	groups      groupStub
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	db := newMemoryDB()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	cache := &memoryCache{}
	program := "prog-1"
	groups := groupStub{
		"grp-1": {ID: "grp-1", Name: "11A", SchoolID: "sch-1", ProgramID: &program},
		"grp-2": {ID: "grp-2", Name: "11B", SchoolID: "sch-2"},
	}
	logger := zap.NewNop()
	enrollments := NewEnrollmentService(memoryEnrollments{db}, memoryStudents{db}, memoryDocuments{db}, groups,
		NewRequirementResolver([]string{"CC"}), db, cache, nil, nil, logger, EnrollmentServiceConfig{}, WithAuditHistory(db))
	documents := NewDocumentService(memoryDocuments{db}, blobs, enrollments, storage.NewSignedURLSigner("doc-secret", time.Minute),
		db, nil, logger, DocumentServiceConfig{APIPrefix: "/api/v1", MaxFileSizeBytes: 1024})
	return &workflowFixture{db: db, cache: cache, blobs: blobs, enrollments: enrollments, documents: documents, groups: groups}
}

// addStudent registers a student of school sch-1 and returns the student's actor.
func (fx *workflowFixture) addStudent(id string, docType models.DocumentType, age int) models.Actor {
	school := "sch-1"
	fx.db.mu.Lock()
	fx.db.students[id] = models.StudentProfile{
		ID:             id,
		UserID:         "user-" + id,
		FullName:       "Student " + id,
		DocumentType:   docType,
		DocumentNumber: "100" + id,
		BirthDate:      birthDateForAge(time.Now(), age),
		SchoolID:       &school,
	}
	fx.db.mu.Unlock()
	return models.Actor{UserID: "user-" + id, Role: models.RoleStudent, Scope: models.AccessScope{StudentID: id}}
}

func pdfUpload(name string) UploadFile {
	payload := []byte("%PDF-1.4 test document")
	return UploadFile{Name: name, Size: int64(len(payload)), Reader: bytes.NewReader(payload)}
}

// uploadKinds uploads one PDF per kind and returns the documents keyed by kind.
func (fx *workflowFixture) uploadKinds(t *testing.T, actor models.Actor, kinds []models.DocumentKind) map[models.DocumentKind]*models.Document {
	t.Helper()
	out := make(map[models.DocumentKind]*models.Document, len(kinds))
	for _, kind := range kinds {
		doc, err := fx.documents.Upload(context.Background(), actor, kind, pdfUpload(string(kind)+".pdf"))
		require.NoError(t, err)
		out[kind] = doc
	}
	return out
}

func (fx *workflowFixture) enrollment(t *testing.T, id string) models.Enrollment {
	t.Helper()
	fx.db.mu.Lock()
	defer fx.db.mu.Unlock()
	e, ok := fx.db.enrollments[id]
	require.True(t, ok, "enrollment %s", id)
	return e
}

func (fx *workflowFixture) setState(id string, state models.EnrollmentState) {
	fx.db.mu.Lock()
	defer fx.db.mu.Unlock()
	e := fx.db.enrollments[id]
	e.State = state
	fx.db.enrollments[id] = e
}
