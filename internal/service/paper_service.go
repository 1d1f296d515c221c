package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/blueprint"
	"github.com/kapilsaini46/rks/internal/entitlement"
	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/paper"
	"github.com/kapilsaini46/rks/internal/render"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

const defaultMaxImageBytes = 2 << 20

type paperRepository interface {
	Create(ctx context.Context, p *models.QuestionPaper) error
	FindByID(ctx context.Context, id string) (*models.QuestionPaper, error)
	Update(ctx context.Context, p *models.QuestionPaper) error
	SetVisibility(ctx context.Context, p *models.QuestionPaper) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.PaperFilter) ([]models.QuestionPaper, int, error)
}

type creditLedger interface {
	ConsumeCredit(ctx context.Context, id string) (int, error)
	RefundCredit(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type styleSource interface {
	StyleContext(ctx context.Context, classNum, subject string) (*models.StyleContext, error)
}

type subjectReconciler interface {
	ReconcileSubject(ctx context.Context, classNum, subject string) (string, error)
}

type diagramGenerator interface {
	GenerateImage(ctx context.Context, prompt string) string
}

type keyedLimiter interface {
	Allow(key string) bool
}

// GenerateRequest asks for a full paper compiled from a blueprint.
type GenerateRequest struct {
	Meta  models.PaperMeta       `json:"meta"`
	Items []models.BlueprintItem `json:"items"`
}

// SaveRequest carries a whole paper body from the editor.
type SaveRequest struct {
	Meta     models.PaperMeta `json:"meta"`
	Sections []models.Section `json:"sections"`
}

// PaperQuery narrows a paper listing.
type PaperQuery struct {
	Owner    string
	ClassNum string
	Subject  string
	Page     int
	PageSize int
}

// PaperDeps groups the collaborators of PaperService.
type PaperDeps struct {
	Papers     paperRepository
	Credits    creditLedger
	Compiler   *blueprint.Compiler
	Bank       blueprint.QuestionBank
	Diagrams   diagramGenerator
	Styles     styleSource
	Curriculum subjectReconciler
	Limiter    keyedLimiter
	Metrics    *MetricsService
}

// PaperService runs the generation gate and every edit of a saved paper.
type PaperService struct {
	papers        paperRepository
	credits       creditLedger
	compiler      *blueprint.Compiler
	bank          blueprint.QuestionBank
	diagrams      diagramGenerator
	styles        styleSource
	curriculum    subjectReconciler
	limiter       keyedLimiter
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	maxImageBytes int
	now           func() time.Time
}

// NewPaperService constructs a PaperService.
func NewPaperService(deps PaperDeps, validate *validator.Validate, logger *zap.Logger) *PaperService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	compiler := deps.Compiler
	if compiler == nil {
		compiler = blueprint.NewCompiler(deps.Bank, validate, logger)
	}
	return &PaperService{
		papers:        deps.Papers,
		credits:       deps.Credits,
		compiler:      compiler,
		bank:          deps.Bank,
		diagrams:      deps.Diagrams,
		styles:        deps.Styles,
		curriculum:    deps.Curriculum,
		limiter:       deps.Limiter,
		metrics:       deps.Metrics,
		validator:     validate,
		logger:        logger,
		maxImageBytes: defaultMaxImageBytes,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// GenerateFullPaper compiles a blueprint into a new saved paper. Non-admins are charged one credit, and
// only once the compilation has succeeded.
func (s *PaperService) GenerateFullPaper(ctx context.Context, actor *models.User, req GenerateRequest, meta models.RequestMeta) (*models.QuestionPaper, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !entitlement.CanGenerate(actor) {
		s.metrics.RecordQuotaDenial(QuotaActionGenerate)
		return nil, appErrors.Clone(appErrors.ErrQuotaExceeded, "no credits left, upgrade your plan to generate more papers")
	}
	in := blueprint.Input{
		ClassNum: strings.TrimSpace(req.Meta.ClassNum),
		Subject:  strings.TrimSpace(req.Meta.Subject),
		Items:    req.Items,
	}
	if err := s.compiler.Validate(in); err != nil {
		return nil, err
	}
	if s.limiter != nil && !s.limiter.Allow(actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrRateLimited, "too many generation requests, try again shortly")
	}

	in.Context = s.styleContext(ctx, in.ClassNum, in.Subject)
	started := s.now()
	sections, err := s.compiler.Compile(ctx, in, func(index, total int, item models.BlueprintItem) {
		s.logger.Info("generating section",
			zap.String("user", actor.Email),
			zap.Int("section", index+1),
			zap.Int("of", total),
			zap.String("topic", item.Topic),
		)
	})
	s.metrics.RecordGeneration(err == nil, s.now().Sub(started))
	if err != nil {
		return nil, err
	}

	header := req.Meta
	header.ClassNum, header.Subject = in.ClassNum, in.Subject
	p := paper.New(render.LocalizeMeta(header, render.LanguageForSubject(in.Subject)), sections, actor.Email, s.now())

	charged := false
	if !actor.IsAdmin() {
		remaining, err := s.credits.ConsumeCredit(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.metrics.RecordQuotaDenial(QuotaActionGenerate)
				return nil, appErrors.Clone(appErrors.ErrQuotaExceeded, "no credits left, upgrade your plan to generate more papers")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to charge credit")
		}
		actor.Credits = remaining
		charged = true
	}
	if err := s.papers.Create(ctx, p); err != nil {
		if charged {
			if rerr := s.credits.RefundCredit(ctx, actor.ID); rerr != nil {
				s.logger.Error("failed to refund credit", zap.String("user", actor.Email), zap.Error(rerr))
			} else {
				actor.Credits++
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save paper")
	}

	s.audit(ctx, actor.ID, models.AuditActionPaperGenerate, p.ID, map[string]interface{}{
		"class_num": p.ClassNum,
		"subject":   p.Subject,
		"sections":  len(p.Sections),
		"charged":   charged,
	}, meta)
	return p, nil
}

func (s *PaperService) styleContext(ctx context.Context, classNum, subject string) *models.StyleContext {
	if s.styles == nil {
		return nil
	}
	style, err := s.styles.StyleContext(ctx, classNum, subject)
	if err != nil {
		s.logger.Warn("style context unavailable", zap.String("class", classNum), zap.String("subject", subject), zap.Error(err))
		return nil
	}
	if style.Empty() {
		return nil
	}
	return style
}

// Create stores a paper assembled by hand in the editor.
func (s *PaperService) Create(ctx context.Context, actor *models.User, req SaveRequest) (*models.QuestionPaper, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.Meta.ClassNum) == "" || strings.TrimSpace(req.Meta.Subject) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class and subject are required")
	}
	sess := paper.NewSession(paper.New(req.Meta, nil, actor.Email, s.now()), actor)
	if err := sess.ReplaceContent(req.Meta, req.Sections); err != nil {
		return nil, err
	}
	p := sess.Paper()
	if err := s.papers.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save paper")
	}
	return p, nil
}

// Save replaces the body of an existing paper.
func (s *PaperService) Save(ctx context.Context, actor *models.User, id string, req SaveRequest) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.ReplaceContent(req.Meta, req.Sections)
	})
}

// Get loads a paper the actor may open.
func (s *PaperService) Get(ctx context.Context, actor *models.User, id string) (*models.QuestionPaper, error) {
	p, err := s.papers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
	}
	if !paper.CanAccess(p, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
	}
	return p, nil
}

// List returns the papers visible to the actor: teachers see their own, admins see everything not
// hidden from admins.
func (s *PaperService) List(ctx context.Context, actor *models.User, q PaperQuery) ([]models.QuestionPaper, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.PaperFilter{
		ClassNum: q.ClassNum,
		Subject:  q.Subject,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if actor.IsAdmin() {
		filter.VisibleTo = models.AudienceAdmin
		filter.CreatedBy = strings.ToLower(strings.TrimSpace(q.Owner))
	} else {
		filter.VisibleTo = models.AudienceTeacher
		filter.CreatedBy = actor.Email
	}
	papers, total, err := s.papers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list papers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return papers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// edit opens a session on the stored paper, applies fn and persists the result as one edit.
func (s *PaperService) edit(ctx context.Context, actor *models.User, id string, fn func(*paper.Session) error) (*models.QuestionPaper, error) {
	stored, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	sess := paper.NewSession(stored, actor)
	if err := fn(sess); err != nil {
		return nil, err
	}
	if !sess.Changed() {
		return stored, nil
	}
	p := sess.Paper()
	p.EditCount++
	p.UpdatedAt = s.now()
	if err := s.papers.Update(ctx, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save paper")
	}
	return p, nil
}

// UpdateMeta changes the header. A class change pulls the subject back into the class's list.
func (s *PaperService) UpdateMeta(ctx context.Context, actor *models.User, id string, meta models.PaperMeta) (*models.QuestionPaper, error) {
	if s.curriculum != nil && meta.ClassNum != "" {
		subject, err := s.curriculum.ReconcileSubject(ctx, meta.ClassNum, meta.Subject)
		if err != nil {
			return nil, err
		}
		meta.Subject = subject
	}
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.UpdateMeta(meta)
	})
}

// AddSection appends an empty section.
func (s *PaperService) AddSection(ctx context.Context, actor *models.User, id string) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		_, err := sess.AddSection()
		return err
	})
}

// RenameSection sets a custom section heading.
func (s *PaperService) RenameSection(ctx context.Context, actor *models.User, id, sectionID, title string) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.RenameSection(sectionID, title)
	})
}

// DeleteSection removes a section with its questions.
func (s *PaperService) DeleteSection(ctx context.Context, actor *models.User, id, sectionID string) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.DeleteSection(sectionID)
	})
}

// AddQuestion appends a placeholder question.
func (s *PaperService) AddQuestion(ctx context.Context, actor *models.User, id, sectionID string) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		_, err := sess.AddQuestion(sectionID)
		return err
	})
}

// UpdateQuestion patches one question.
func (s *PaperService) UpdateQuestion(ctx context.Context, actor *models.User, id, sectionID, questionID string, patch paper.QuestionPatch) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.UpdateQuestion(sectionID, questionID, patch)
	})
}

// DeleteQuestion removes one question.
func (s *PaperService) DeleteQuestion(ctx context.Context, actor *models.User, id, sectionID, questionID string) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.DeleteQuestion(sectionID, questionID)
	})
}

// RegenerateQuestion asks the bank for a replacement of one question on the same topic, type and marks.
func (s *PaperService) RegenerateQuestion(ctx context.Context, actor *models.User, id, sectionID, questionID string) (*models.QuestionPaper, error) {
	p, err := s.edit(ctx, actor, id, func(sess *paper.Session) error {
		q, err := sess.CheckRegenerate(sectionID, questionID)
		if err != nil {
			return err
		}
		cur := sess.Paper()
		topic := q.Topic
		if strings.TrimSpace(topic) == "" {
			topic = cur.Subject
		}
		generated, err := s.bank.Generate(ctx, blueprint.Request{
			ClassNum: cur.ClassNum,
			Subject:  cur.Subject,
			Topic:    topic,
			Type:     q.Type,
			Count:    1,
			Marks:    q.Marks,
			Context:  s.styleContext(ctx, cur.ClassNum, cur.Subject),
		})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrGenerationFailed.Code, appErrors.ErrGenerationFailed.Status, "failed to regenerate question")
		}
		if len(generated) == 0 {
			return appErrors.Clone(appErrors.ErrGenerationFailed, "no question returned")
		}
		return sess.ApplyRegeneration(sectionID, questionID, generated[0])
	})
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrQuotaExceeded.Code) {
			s.metrics.RecordQuotaDenial(QuotaActionRegenerate)
		}
		return nil, err
	}
	s.metrics.RecordRegeneration()
	return p, nil
}

// GenerateDiagram attaches an AI drawn figure. An empty prompt falls back to the question text.
func (s *PaperService) GenerateDiagram(ctx context.Context, actor *models.User, id, sectionID, questionID, prompt string) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		if sess.ReadOnly() {
			return appErrors.Clone(appErrors.ErrReadOnly, "paper can no longer be edited on this plan")
		}
		q, err := sess.Question(sectionID, questionID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(prompt) == "" {
			prompt = q.Text
		}
		return sess.AttachImage(sectionID, questionID, s.diagrams.GenerateImage(ctx, prompt))
	})
}

// AttachImage stores a cropped upload, sent as a base64 image data URL.
func (s *PaperService) AttachImage(ctx context.Context, actor *models.User, id, sectionID, questionID, dataURL string) (*models.QuestionPaper, error) {
	if err := s.checkDataURL(dataURL); err != nil {
		return nil, err
	}
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.AttachImage(sectionID, questionID, dataURL)
	})
}

func (s *PaperService) checkDataURL(raw string) error {
	header, payload, ok := strings.Cut(raw, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return appErrors.Clone(appErrors.ErrValidation, "image must be a base64 image data URL")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > s.maxImageBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds %d bytes", s.maxImageBytes))
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "image data is not valid base64")
	}
	return nil
}

// ResizeImage sets the printed width of a question image.
func (s *PaperService) ResizeImage(ctx context.Context, actor *models.User, id, sectionID, questionID string, width int) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.ResizeImage(sectionID, questionID, width)
	})
}

// RemoveImage detaches a question image.
func (s *PaperService) RemoveImage(ctx context.Context, actor *models.User, id, sectionID, questionID string) (*models.QuestionPaper, error) {
	return s.edit(ctx, actor, id, func(sess *paper.Session) error {
		return sess.RemoveImage(sectionID, questionID)
	})
}

// Hide removes the paper from one audience's listings. Teachers may only hide their own papers from
// themselves.
func (s *PaperService) Hide(ctx context.Context, actor *models.User, id string, audience models.Audience) error {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && audience != models.AudienceTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can hide papers from admins")
	}
	if err := paper.Hide(p, audience); err != nil {
		return err
	}
	if err := s.papers.SetVisibility(ctx, p); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hide paper")
	}
	return nil
}

// Purge deletes a paper permanently.
func (s *PaperService) Purge(ctx context.Context, actor *models.User, id string, meta models.RequestMeta) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete papers permanently")
	}
	if err := s.papers.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete paper")
	}
	s.audit(ctx, actor.ID, models.AuditActionPaperPurge, id, nil, meta)
	return nil
}

// Preview renders the printable HTML of a paper.
func (s *PaperService) Preview(ctx context.Context, actor *models.User, id string, mode render.Mode) (string, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	html, err := render.HTML(p, mode)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render paper")
	}
	return html, nil
}

func (s *PaperService) audit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}, meta models.RequestMeta) {
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	if err := s.credits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "papers",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record paper audit log", zap.String("action", action), zap.Error(err))
	}
}
