package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/entitlement"
	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/render"
	"github.com/kapilsaini46/rks/pkg/export"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/jobs"
	"github.com/kapilsaini46/rks/pkg/storage"
)

// CleanupJobType is the queue job that purges expired exports.
const CleanupJobType = "exports.cleanup"

type paperAccess interface {
	Get(ctx context.Context, actor *models.User, id string) (*models.QuestionPaper, error)
}

type downloadCounter interface {
	ConsumeDownload(ctx context.Context, id string, limit int) (int, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type pdfRenderer interface {
	Render(doc render.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	FontPath  string
}

// ExportFile is one stored PDF of a download.
type ExportFile struct {
	Mode         render.Mode `json:"mode"`
	Filename     string      `json:"filename"`
	RelativePath string      `json:"-"`
	Token        string      `json:"token"`
	URL          string      `json:"url"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// DownloadResult is the outcome of a gated download.
type DownloadResult struct {
	PaperID       string       `json:"paper_id"`
	DownloadCount int          `json:"download_count"`
	Files         []ExportFile `json:"files"`
}

// ExportService turns papers into stored PDFs behind signed links and enforces the download allowance.
type ExportService struct {
	papers  paperAccess
	counter downloadCounter
	audits  auditRecorder
	storage fileStorage
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(papers paperAccess, counter downloadCounter, audits auditRecorder, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if pdf == nil {
		pdf = export.NewPaperPDFExporter(cfg.FontPath)
	}
	return &ExportService{
		papers:  papers,
		counter: counter,
		audits:  audits,
		storage: store,
		pdf:     pdf,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Download passes the download gate once and stores the question paper and answer key as PDFs.
// Admin downloads are not counted.
func (s *ExportService) Download(ctx context.Context, actor *models.User, paperID string, meta models.RequestMeta) (*DownloadResult, error) {
	p, err := s.papers.Get(ctx, actor, paperID)
	if err != nil {
		return nil, err
	}
	if !entitlement.CanDownload(p, actor) {
		return nil, s.denied()
	}

	modes := []render.Mode{render.ModePaper, render.ModeAnswerKey}
	payloads := make([][]byte, len(modes))
	for i, mode := range modes {
		payloads[i], err = s.pdf.Render(render.Build(p, mode))
		if errors.Is(err, export.ErrUnicodeFontRequired) {
			s.logger.Error("pdf font missing for non-english paper", zap.String("paper_id", p.ID), zap.String("subject", p.Subject))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pdf export for this language is not configured on the server")
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
	}

	count := p.DownloadCount
	if !actor.IsAdmin() {
		limit := entitlement.DownloadsPerPaper
		if entitlement.UnlimitedDownloads(actor) {
			limit = entitlement.Unlimited
		}
		count, err = s.counter.ConsumeDownload(ctx, p.ID, limit)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, s.denied()
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download")
		}
	}

	exportID := uuid.NewString()
	result := &DownloadResult{PaperID: p.ID, DownloadCount: count}
	for i, mode := range modes {
		file, err := s.store(exportID, render.Filename(p.PaperMeta, mode), payloads[i])
		if err != nil {
			return nil, err
		}
		file.Mode = mode
		result.Files = append(result.Files, file)
	}

	s.metrics.RecordDownload()
	s.audit(ctx, actor, p.ID, meta)
	s.logger.Info("paper downloaded", zap.String("paper_id", p.ID), zap.String("user", actor.Email), zap.Int("download_count", count))
	return result, nil
}

func (s *ExportService) denied() error {
	s.metrics.RecordQuotaDenial(QuotaActionDownload)
	return appErrors.Clone(appErrors.ErrQuotaExceeded, "download limit reached for this paper, upgrade to premium for unlimited downloads")
}

func (s *ExportService) store(exportID, filename string, data []byte) (ExportFile, error) {
	relPath, err := s.storage.Save(path.Join(exportID, filename), data)
	if err != nil {
		return ExportFile{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return ExportFile{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return ExportFile{
		Filename:     filename,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// Open resolves a signed token to the stored file and its download name.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export no longer available")
	}
	return file, path.Base(relPath), nil
}

// Cleanup removes exports older than ttl, or the configured result TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RegisterJobs wires the cleanup handler onto q.
func (s *ExportService) RegisterJobs(q *jobs.Queue) {
	q.Handle(CleanupJobType, func(_ context.Context, job jobs.Job) error {
		removed, err := s.Cleanup(0)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			s.logger.Info("expired exports removed", zap.String("job_id", job.ID), zap.Int("files", len(removed)))
		}
		return nil
	})
}

func (s *ExportService) audit(ctx context.Context, actor *models.User, paperID string, meta models.RequestMeta) {
	if s.audits == nil {
		return
	}
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionPaperDownload,
		Resource:   "papers",
		ResourceID: &paperID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record download audit log", zap.Error(err))
	}
}
