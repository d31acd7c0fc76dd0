package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/models"
	"github.com/noah-isme/articulacion-api/pkg/export"
	"github.com/noah-isme/articulacion-api/pkg/storage"
)

type rosterSource interface {
	ListReportRows(ctx context.Context, params models.ReportJobParams) ([]models.ReportRow, error)
}

type bundleSource interface {
	ListBundleEntries(ctx context.Context, groupID string) ([]models.BundleEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type documentFiles interface {
	Open(filename string) (*os.File, error)
	Exists(filename string) bool
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type zipRenderer interface {
	Render(files []export.BundleFile) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportRenderers groups the file renderers. Nil members fall back to defaults.
type ExportRenderers struct {
	CSV csvRenderer
	PDF pdfRenderer
	ZIP zipRenderer
}

// ExportService builds roster datasets and document bundles and persists the rendered files.
type ExportService struct {
	roster    rosterSource
	bundles   bundleSource
	documents documentFiles
	storage   fileStorage
	renderers ExportRenderers
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(roster rosterSource, bundles bundleSource, documents documentFiles, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, renderers ExportRenderers) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderers.CSV == nil {
		renderers.CSV = export.NewSpreadsheetCSVExporter()
	}
	if renderers.PDF == nil {
		renderers.PDF = export.NewPDFExporter()
	}
	if renderers.ZIP == nil {
		renderers.ZIP = export.NewZipBundler()
	}
	return &ExportService{
		roster:    roster,
		bundles:   bundles,
		documents: documents,
		storage:   store,
		renderers: renderers,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate renders the job output, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}

	var (
		payload []byte
		err     error
	)
	switch job.Type {
	case models.ReportTypeRoster:
		payload, err = s.renderRoster(ctx, job.Params)
	case models.ReportTypeDocumentBundle:
		payload, err = s.renderBundle(ctx, job.Params)
	default:
		err = fmt.Errorf("unsupported report type %s", job.Type)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

var rosterHeaders = []string{"Student", "ID Type", "ID Number", "School", "Group", "State", "Submitted At", "Validated At"}

func (s *ExportService) renderRoster(ctx context.Context, params models.ReportJobParams) ([]byte, error) {
	rows, err := s.roster.ListReportRows(ctx, params)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":      row.StudentName,
			"ID Type":      string(row.DocumentType),
			"ID Number":    row.DocumentNumber,
			"School":       deref(row.SchoolName),
			"Group":        deref(row.GroupName),
			"State":        string(row.State),
			"Submitted At": formatReportTime(row.SubmittedAt),
			"Validated At": formatReportTime(row.ValidatedAt),
		})
	}

	switch params.Format {
	case models.ReportFormatCSV:
		return s.renderers.CSV.Render(dataset)
	case models.ReportFormatPDF:
		return s.renderers.PDF.Render(dataset, rosterTitle(params))
	default:
		return nil, fmt.Errorf("unsupported roster format %s", params.Format)
	}
}

func (s *ExportService) renderBundle(ctx context.Context, params models.ReportJobParams) ([]byte, error) {
	if params.GroupID == nil || *params.GroupID == "" {
		return nil, fmt.Errorf("document bundle requires a group")
	}
	entries, err := s.bundles.ListBundleEntries(ctx, *params.GroupID)
	if err != nil {
		return nil, err
	}

	files := make([]export.BundleFile, 0, len(entries))
	for _, entry := range entries {
		if !s.documents.Exists(entry.FilePath) {
			s.logger.Warn("bundle skips missing document file",
				zap.String("document_id", entry.DocumentID),
				zap.String("path", entry.FilePath))
			continue
		}
		path := entry.FilePath
		files = append(files, export.BundleFile{
			Name: bundleEntryName(entry),
			Open: func() (io.ReadCloser, error) { return s.documents.Open(path) },
		})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("group %s has no stored documents", *params.GroupID)
	}
	return s.renderers.ZIP.Render(files)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := "all"
	switch {
	case job.Params.GroupID != nil:
		scope = sanitizeFilename(*job.Params.GroupID)
	case job.Params.SchoolID != nil:
		scope = sanitizeFilename(*job.Params.SchoolID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func bundleEntryName(entry models.BundleEntry) string {
	folder := sanitizeFilename(entry.DocumentNumber + "_" + entry.StudentName)
	return fmt.Sprintf("%s/%s.%s", folder, entry.Kind, entry.Extension)
}

func rosterTitle(params models.ReportJobParams) string {
	title := "Enrollment roster"
	if params.State != nil {
		title += " " + string(*params.State)
	}
	return title
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
