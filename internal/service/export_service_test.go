package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/pkg/storage"
)

type rosterStub struct {
	rows   []models.ReportRow
	params models.ReportJobParams
}

func (r *rosterStub) ListReportRows(ctx context.Context, params models.ReportJobParams) ([]models.ReportRow, error) {
	r.params = params
	return r.rows, nil
}

type bundleStub struct {
	entries []models.BundleEntry
}

func (b bundleStub) ListBundleEntries(ctx context.Context, groupID string) ([]models.BundleEntry, error) {
	return b.entries, nil
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func ptrString(s string) *string {
	return &s
}

type exportFixture struct {
	svc       *ExportService
	exports   *storage.LocalStorage
	documents *storage.LocalStorage
	roster    *rosterStub
}

func newExportServiceForTest(t *testing.T, entries ...models.BundleEntry) exportFixture {
	t.Helper()
	exports, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	documents, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	roster := &rosterStub{rows: []models.ReportRow{{
		EnrollmentID:   "enr-1",
		StudentName:    "Ana Perez",
		DocumentType:   models.DocumentTypeCC,
		DocumentNumber: "1001",
		SchoolName:     ptrString("Central"),
		State:          models.EnrollmentStatePreEnrolled,
		SubmittedAt:    ptrTime(time.Now()),
	}}}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(roster, bundleStub{entries: entries}, documents, exports, signer,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), ExportRenderers{})
	return exportFixture{svc: svc, exports: exports, documents: documents, roster: roster}
}

func readExport(t *testing.T, store *storage.LocalStorage, relPath string) []byte {
	t.Helper()
	file, err := store.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	return data
}

func TestExportServiceGenerateRosterCSV(t *testing.T) {
	fx := newExportServiceForTest(t)
	state := models.EnrollmentStatePreEnrolled
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{SchoolID: ptrString("sch-1"), State: &state, Format: models.ReportFormatCSV},
	}
	result, err := fx.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasPrefix(result.RelativePath, "roster_sch-1_"))
	require.NotNil(t, fx.roster.params.State)

	body := string(readExport(t, fx.exports, result.RelativePath))
	assert.Contains(t, body, "Student,ID Type,ID Number,School,Group,State,Submitted At,Validated At")
	assert.Contains(t, body, "Ana Perez,CC,1001,Central,,PRE_ENROLLED")

	jobID, relPath, _, err := fx.svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGenerateRosterPDF(t *testing.T) {
	fx := newExportServiceForTest(t)
	job := &models.ReportJob{ID: "job-2", Type: models.ReportTypeRoster, Params: models.ReportJobParams{Format: models.ReportFormatPDF}}
	result, err := fx.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)
	assert.True(t, bytes.HasPrefix(readExport(t, fx.exports, result.RelativePath), []byte("%PDF")))
}

func TestExportServiceRejectsMismatchedFormat(t *testing.T) {
	fx := newExportServiceForTest(t)
	_, err := fx.svc.Generate(context.Background(), &models.ReportJob{ID: "job-3", Type: models.ReportTypeRoster, Params: models.ReportJobParams{Format: models.ReportFormatZIP}})
	assert.Error(t, err)
}

func TestExportServiceBundlesStoredDocumentsOnly(t *testing.T) {
	fx := newExportServiceForTest(t,
		models.BundleEntry{DocumentID: "doc-1", StudentName: "Ana Perez", DocumentNumber: "1001", Kind: models.DocumentKindIdentity, FilePath: "enrollments/enr-1/id.pdf", Extension: "pdf"},
		models.BundleEntry{DocumentID: "doc-2", StudentName: "Ana Perez", DocumentNumber: "1001", Kind: models.DocumentKindDataConsent, FilePath: "enrollments/enr-1/missing.pdf", Extension: "pdf"},
	)
	_, err := fx.documents.Save("enrollments/enr-1/id.pdf", []byte("%PDF-1.4 fake"))
	require.NoError(t, err)

	job := &models.ReportJob{ID: "job-4", Type: models.ReportTypeDocumentBundle, Params: models.ReportJobParams{GroupID: ptrString("grp-1"), Format: models.ReportFormatZIP}}
	result, err := fx.svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload := readExport(t, fx.exports, result.RelativePath)
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	require.Len(t, reader.File, 1)
	assert.Equal(t, "1001_Ana_Perez/IDENTITY_DOCUMENT.pdf", reader.File[0].Name)
}

func TestExportServiceBundleWithoutFilesFails(t *testing.T) {
	fx := newExportServiceForTest(t)
	job := &models.ReportJob{ID: "job-5", Type: models.ReportTypeDocumentBundle, Params: models.ReportJobParams{GroupID: ptrString("grp-1"), Format: models.ReportFormatZIP}}
	_, err := fx.svc.Generate(context.Background(), job)
	assert.Error(t, err)
}
