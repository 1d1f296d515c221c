package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

const (
	samplePaperNote   = "\nRefer to the attached Sample Paper document for the exact question style, difficulty, and format. Mimic it closely."
	syllabusNote      = "\nRefer to the attached Syllabus/Blueprint document. Ensure all generated questions strictly fall within the topics and scope defined in this syllabus."
	adminStyleHeading = "Follow the style of these previous questions generated by admin:\n"
	adminStyleSample  = 10
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// PatternID is the storage key of a class and subject pattern.
func PatternID(classNum, subject string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(classNum)+"_"+strings.TrimSpace(subject), "_")
}

type samplePatternRepository interface {
	Get(ctx context.Context, id string) (*models.SamplePattern, error)
	List(ctx context.Context) ([]models.SamplePattern, error)
	Upsert(ctx context.Context, pattern *models.SamplePattern) error
	Delete(ctx context.Context, id string) error
}

type adminPaperReader interface {
	LatestAdminPaper(ctx context.Context, classNum, subject string) (*models.QuestionPaper, error)
}

type blobStorage interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	Delete(name string) error
}

// PatternInput is the admin form for a sample pattern.
type PatternInput struct {
	ClassNum string `json:"class_num" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
	Content  string `json:"content"`
}

// Upload is one attached document.
type Upload struct {
	Kind     models.AttachmentKind
	Name     string
	MimeType string
	Data     []byte
}

// PatternConfig bounds attachments.
type PatternConfig struct {
	MaxUploadBytes int64
	AllowedMIMEs   []string
}

// PatternService manages sample patterns and derives the style context handed to the question bank.
type PatternService struct {
	repo      samplePatternRepository
	papers    adminPaperReader
	storage   blobStorage
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PatternConfig
}

// NewPatternService constructs the service.
func NewPatternService(repo samplePatternRepository, papers adminPaperReader, storage blobStorage, cfg PatternConfig, validate *validator.Validate, logger *zap.Logger) *PatternService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 2 << 20
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/png", "image/jpeg", "image/webp", "text/plain"}
	}
	return &PatternService{repo: repo, papers: papers, storage: storage, validator: validate, logger: logger, cfg: cfg}
}

// List returns every stored pattern.
func (s *PatternService) List(ctx context.Context) ([]models.SamplePattern, error) {
	patterns, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sample patterns")
	}
	return patterns, nil
}

// Get returns the pattern for a class and subject.
func (s *PatternService) Get(ctx context.Context, classNum, subject string) (*models.SamplePattern, error) {
	pattern, err := s.repo.Get(ctx, PatternID(classNum, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sample pattern not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sample pattern")
	}
	return pattern, nil
}

func (s *PatternService) checkUpload(u Upload) error {
	if u.Kind != models.AttachmentSamplePaper && u.Kind != models.AttachmentSyllabus {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attachment kind %q", u.Kind))
	}
	if len(u.Data) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "attachment is empty")
	}
	if int64(len(u.Data)) > s.cfg.MaxUploadBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if u.MimeType == allowed {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment type %s is not allowed", u.MimeType))
}

// Upsert creates or replaces the pattern for a class and subject. An upload replaces any stored
// attachment of the same kind; kinds not uploaded are kept.
func (s *PatternService) Upsert(ctx context.Context, in PatternInput, uploads []Upload) (*models.SamplePattern, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sample pattern")
	}
	for _, u := range uploads {
		if err := s.checkUpload(u); err != nil {
			return nil, err
		}
	}

	id := PatternID(in.ClassNum, in.Subject)
	pattern, err := s.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sample pattern")
	}
	if pattern == nil {
		pattern = &models.SamplePattern{ID: id}
	}
	pattern.ClassNum = strings.TrimSpace(in.ClassNum)
	pattern.Subject = strings.TrimSpace(in.Subject)
	pattern.Content = in.Content

	var stale []string
	for _, u := range uploads {
		name := path.Join("patterns", id, strings.ToLower(string(u.Kind))+path.Ext(u.Name))
		if _, err := s.storage.Save(name, u.Data); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
		}
		att := models.PatternAttachment{Kind: u.Kind, Name: u.Name, MimeType: u.MimeType, Path: name, Size: int64(len(u.Data))}
		pattern.Attachments, stale = replaceAttachment(pattern.Attachments, att, stale)
	}

	if err := s.repo.Upsert(ctx, pattern); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save sample pattern")
	}
	for _, p := range stale {
		if err := s.storage.Delete(p); err != nil {
			s.logger.Warn("failed to remove replaced attachment", zap.String("path", p), zap.Error(err))
		}
	}
	return pattern, nil
}

func replaceAttachment(list models.PatternAttachments, att models.PatternAttachment, stale []string) (models.PatternAttachments, []string) {
	out := make(models.PatternAttachments, 0, len(list)+1)
	for _, existing := range list {
		if existing.Kind == att.Kind {
			if existing.Path != att.Path {
				stale = append(stale, existing.Path)
			}
			continue
		}
		out = append(out, existing)
	}
	return append(out, att), stale
}

// Delete removes a pattern and its attachments.
func (s *PatternService) Delete(ctx context.Context, classNum, subject string) error {
	pattern, err := s.Get(ctx, classNum, subject)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, pattern.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sample pattern")
	}
	for _, att := range pattern.Attachments {
		if err := s.storage.Delete(att.Path); err != nil {
			s.logger.Warn("failed to remove attachment", zap.String("path", att.Path), zap.Error(err))
		}
	}
	return nil
}

// StyleContext builds the generation guidance for a class and subject: the stored pattern when there is
// one, otherwise up to ten questions of the newest admin paper, otherwise nothing.
func (s *PatternService) StyleContext(ctx context.Context, classNum, subject string) (*models.StyleContext, error) {
	pattern, err := s.repo.Get(ctx, PatternID(classNum, subject))
	switch {
	case err == nil:
		return s.patternContext(pattern), nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sample pattern")
	}

	paper, err := s.papers.LatestAdminPaper(ctx, classNum, subject)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &models.StyleContext{}, nil
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin paper")
	}

	var b strings.Builder
	b.WriteString(adminStyleHeading)
	n := 0
	for _, sec := range paper.Sections {
		for _, q := range sec.Questions {
			if n == adminStyleSample {
				break
			}
			if n > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "- (%s) %s", q.Type, q.Text)
			n++
		}
	}
	if n == 0 {
		return &models.StyleContext{}, nil
	}
	return &models.StyleContext{Text: b.String()}, nil
}

func (s *PatternService) patternContext(p *models.SamplePattern) *models.StyleContext {
	sc := &models.StyleContext{}
	var b strings.Builder
	if strings.TrimSpace(p.Content) != "" {
		b.WriteString("Use the following sample paper text as a strict style and difficulty guide:\n\n")
		b.WriteString(p.Content)
		b.WriteString("\n")
	}
	for _, kind := range []models.AttachmentKind{models.AttachmentSamplePaper, models.AttachmentSyllabus} {
		att, ok := p.Attachments.Find(kind)
		if !ok {
			continue
		}
		data, err := s.storage.Read(att.Path)
		if err != nil {
			s.logger.Warn("sample pattern attachment unreadable", zap.String("path", att.Path), zap.Error(err))
			continue
		}
		if kind == models.AttachmentSamplePaper {
			b.WriteString(samplePaperNote)
		} else {
			b.WriteString(syllabusNote)
		}
		sc.Documents = append(sc.Documents, models.StyleDocument{Kind: kind, MimeType: att.MimeType, Data: data})
	}
	sc.Text = b.String()
	return sc
}
