// Package paper is the question paper document model. All mutations go through a Session, which keeps
// section and paper totals consistent and refuses changes to a paper the actor may no longer edit.
package paper

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kapilsaini46/rks/internal/entitlement"
	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/render"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

// PlaceholderText is the text of a manually added question.
const PlaceholderText = "New Question (Edit me)"

const (
	placeholderMarks = 2
	minImageWidth    = 10
	maxImageWidth    = 100
)

// New builds a fresh paper owned by owner. Both visibility flags start true.
func New(meta models.PaperMeta, sections []models.Section, owner string, now time.Time) *models.QuestionPaper {
	p := &models.QuestionPaper{
		ID:               uuid.NewString(),
		PaperMeta:        meta,
		Sections:         models.Sections(sections),
		CreatedAt:        now,
		CreatedBy:        owner,
		VisibleToTeacher: true,
		VisibleToAdmin:   true,
		UpdatedAt:        now,
	}
	Recompute(p)
	return p
}

// Recompute refreshes every section total and the paper's max marks from the questions.
func Recompute(p *models.QuestionPaper) {
	for i := range p.Sections {
		p.Sections[i].TotalMarks = models.SumMarks(p.Sections[i].Questions)
	}
	p.MaxMarks = p.TotalMarks()
}

// Session is one actor's editing context over a paper.
type Session struct {
	paper    *models.QuestionPaper
	actor    *models.User
	readOnly bool
	changed  bool
}

// NewSession opens p for editing by actor. The paper is deep copied so the caller's value is untouched
// until it persists Paper().
func NewSession(p *models.QuestionPaper, actor *models.User) *Session {
	cp := Clone(p)
	return &Session{paper: cp, actor: actor, readOnly: !entitlement.IsEditable(cp, actor)}
}

// Clone deep copies a paper.
func Clone(p *models.QuestionPaper) *models.QuestionPaper {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Sections = make(models.Sections, len(p.Sections))
	for i, s := range p.Sections {
		cs := s
		cs.Questions = make([]models.Question, len(s.Questions))
		for j, q := range s.Questions {
			cs.Questions[j] = cloneQuestion(q)
		}
		cp.Sections[i] = cs
	}
	return &cp
}

func cloneQuestion(q models.Question) models.Question {
	q.Options = append([]string(nil), q.Options...)
	q.MatchPairs = append([]models.MatchPair(nil), q.MatchPairs...)
	return q
}

// Paper returns the working copy.
func (s *Session) Paper() *models.QuestionPaper { return s.paper }

// ReadOnly reports whether edits are refused.
func (s *Session) ReadOnly() bool { return s.readOnly }

// Changed reports whether any mutation was applied.
func (s *Session) Changed() bool { return s.changed }

// Language is the template language implied by the paper subject.
func (s *Session) Language() render.Language { return render.LanguageForSubject(s.paper.Subject) }

func (s *Session) guard() error {
	if s.readOnly {
		return appErrors.Clone(appErrors.ErrReadOnly, "paper can no longer be edited on this plan")
	}
	return nil
}

func (s *Session) touch() {
	Recompute(s.paper)
	s.changed = true
}

func (s *Session) sectionIndex(id string) (int, error) {
	for i := range s.paper.Sections {
		if s.paper.Sections[i].ID == id {
			return i, nil
		}
	}
	return -1, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", id))
}

func (s *Session) question(sectionID, questionID string) (*models.Question, error) {
	si, err := s.sectionIndex(sectionID)
	if err != nil {
		return nil, err
	}
	qs := s.paper.Sections[si].Questions
	for i := range qs {
		if qs[i].ID == questionID {
			return &qs[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("question %s not found", questionID))
}

// UpdateMeta replaces the header. When the subject switches template language, generated section
// headings and stock header values follow the new language.
func (s *Session) UpdateMeta(meta models.PaperMeta) error {
	if err := s.guard(); err != nil {
		return err
	}
	before := s.Language()
	meta.MaxMarks = s.paper.MaxMarks
	s.paper.PaperMeta = meta
	if after := s.Language(); after != before {
		s.paper.PaperMeta = render.LocalizeMeta(s.paper.PaperMeta, after)
		s.paper.Sections = models.Sections(render.RetemplateSections(s.paper.Sections, after))
	}
	s.touch()
	return nil
}

// AddSection appends an empty section titled by position.
func (s *Session) AddSection() (models.Section, error) {
	if err := s.guard(); err != nil {
		return models.Section{}, err
	}
	if len(s.paper.Sections) >= render.MaxSections {
		return models.Section{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a paper cannot have more than %d sections", render.MaxSections))
	}
	sec := models.Section{
		ID:        uuid.NewString(),
		Title:     render.SectionTitle(s.Language(), len(s.paper.Sections)),
		Questions: []models.Question{},
	}
	s.paper.Sections = append(s.paper.Sections, sec)
	s.touch()
	return sec, nil
}

// RenameSection sets a custom heading.
func (s *Session) RenameSection(id, title string) error {
	if err := s.guard(); err != nil {
		return err
	}
	si, err := s.sectionIndex(id)
	if err != nil {
		return err
	}
	s.paper.Sections[si].Title = strings.TrimSpace(title)
	s.touch()
	return nil
}

// DeleteSection removes a section and its questions.
func (s *Session) DeleteSection(id string) error {
	if err := s.guard(); err != nil {
		return err
	}
	si, err := s.sectionIndex(id)
	if err != nil {
		return err
	}
	s.paper.Sections = append(s.paper.Sections[:si], s.paper.Sections[si+1:]...)
	s.touch()
	return nil
}

// AddQuestion appends a short-answer placeholder to a section.
func (s *Session) AddQuestion(sectionID string) (models.Question, error) {
	if err := s.guard(); err != nil {
		return models.Question{}, err
	}
	si, err := s.sectionIndex(sectionID)
	if err != nil {
		return models.Question{}, err
	}
	q := models.Question{
		ID:    uuid.NewString(),
		Type:  models.QuestionTypeSA,
		Text:  PlaceholderText,
		Marks: placeholderMarks,
		Topic: s.paper.Subject,
	}
	s.paper.Sections[si].Questions = append(s.paper.Sections[si].Questions, q)
	s.touch()
	return q, nil
}

// QuestionPatch carries the fields to change on a question. Nil fields are left alone.
type QuestionPatch struct {
	Type         *models.QuestionType
	Text         *string
	Marks        *float64
	Options      *[]string
	MatchPairs   *[]models.MatchPair
	Answer       *string
	Topic        *string
	CustomNumber *string
	ImagePrompt  *string
}

// UpdateQuestion applies patch to one question.
func (s *Session) UpdateQuestion(sectionID, questionID string, patch QuestionPatch) error {
	if err := s.guard(); err != nil {
		return err
	}
	if patch.Marks != nil && *patch.Marks < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "marks cannot be negative")
	}
	q, err := s.question(sectionID, questionID)
	if err != nil {
		return err
	}
	if patch.Type != nil {
		q.Type = *patch.Type
	}
	if patch.Text != nil {
		q.Text = *patch.Text
	}
	if patch.Marks != nil {
		q.Marks = models.Round2(*patch.Marks)
	}
	if patch.Options != nil {
		q.Options = append([]string(nil), (*patch.Options)...)
	}
	if patch.MatchPairs != nil {
		q.MatchPairs = append([]models.MatchPair(nil), (*patch.MatchPairs)...)
	}
	if patch.Answer != nil {
		q.Answer = *patch.Answer
	}
	if patch.Topic != nil {
		q.Topic = *patch.Topic
	}
	if patch.CustomNumber != nil {
		q.CustomNumber = strings.TrimSpace(*patch.CustomNumber)
	}
	if patch.ImagePrompt != nil {
		q.ImagePrompt = *patch.ImagePrompt
	}
	s.touch()
	return nil
}

// DeleteQuestion removes one question.
func (s *Session) DeleteQuestion(sectionID, questionID string) error {
	if err := s.guard(); err != nil {
		return err
	}
	si, err := s.sectionIndex(sectionID)
	if err != nil {
		return err
	}
	qs := s.paper.Sections[si].Questions
	for i := range qs {
		if qs[i].ID == questionID {
			s.paper.Sections[si].Questions = append(qs[:i], qs[i+1:]...)
			s.touch()
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("question %s not found", questionID))
}

// Question returns a copy of one question.
func (s *Session) Question(sectionID, questionID string) (models.Question, error) {
	q, err := s.question(sectionID, questionID)
	if err != nil {
		return models.Question{}, err
	}
	return cloneQuestion(*q), nil
}

// CheckRegenerate reports whether the actor may regenerate the question.
func (s *Session) CheckRegenerate(sectionID, questionID string) (models.Question, error) {
	if err := s.guard(); err != nil {
		return models.Question{}, err
	}
	q, err := s.question(sectionID, questionID)
	if err != nil {
		return models.Question{}, err
	}
	if !entitlement.CanRegenerate(*q, s.actor) {
		return models.Question{}, appErrors.Clone(appErrors.ErrQuotaExceeded,
			fmt.Sprintf("regeneration limit of %d reached for this question", entitlement.MaxRegenerations(s.actor)))
	}
	return cloneQuestion(*q), nil
}

// ApplyRegeneration swaps in the content of a regenerated question. The original id, type and marks are
// kept and the regeneration count is incremented.
func (s *Session) ApplyRegeneration(sectionID, questionID string, generated models.Question) error {
	if _, err := s.CheckRegenerate(sectionID, questionID); err != nil {
		return err
	}
	q, err := s.question(sectionID, questionID)
	if err != nil {
		return err
	}
	q.Text = generated.Text
	q.Options = append([]string(nil), generated.Options...)
	q.MatchPairs = append([]models.MatchPair(nil), generated.MatchPairs...)
	q.Answer = generated.Answer
	q.ImageURL = generated.ImageURL
	q.ImagePrompt = generated.ImagePrompt
	q.ImageWidth = 0
	if q.ImageURL != "" {
		q.ImageWidth = models.DefaultImageWidth
	}
	q.RegenerateCount++
	s.touch()
	return nil
}

// AttachImage stores an uploaded or generated image at the default width.
func (s *Session) AttachImage(sectionID, questionID, url string) error {
	if err := s.guard(); err != nil {
		return err
	}
	if strings.TrimSpace(url) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "image is required")
	}
	q, err := s.question(sectionID, questionID)
	if err != nil {
		return err
	}
	q.ImageURL = url
	q.ImageWidth = models.DefaultImageWidth
	s.touch()
	return nil
}

// ResizeImage sets the image width percentage.
func (s *Session) ResizeImage(sectionID, questionID string, width int) error {
	if err := s.guard(); err != nil {
		return err
	}
	if width < minImageWidth || width > maxImageWidth {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image width must be between %d and %d", minImageWidth, maxImageWidth))
	}
	q, err := s.question(sectionID, questionID)
	if err != nil {
		return err
	}
	if q.ImageURL == "" {
		return appErrors.Clone(appErrors.ErrValidation, "question has no image")
	}
	q.ImageWidth = width
	s.touch()
	return nil
}

// RemoveImage clears the image of a question.
func (s *Session) RemoveImage(sectionID, questionID string) error {
	if err := s.guard(); err != nil {
		return err
	}
	q, err := s.question(sectionID, questionID)
	if err != nil {
		return err
	}
	q.ImageURL = ""
	q.ImageWidth = 0
	s.touch()
	return nil
}

// ReplaceContent swaps the whole body of the paper, used by full saves from the editor. Regeneration
// counts are carried over by question id and cannot be reset by the client.
func (s *Session) ReplaceContent(meta models.PaperMeta, sections []models.Section) error {
	if err := s.guard(); err != nil {
		return err
	}
	regenerated := make(map[string]int)
	for _, sec := range s.paper.Sections {
		for _, q := range sec.Questions {
			regenerated[q.ID] = q.RegenerateCount
		}
	}
	s.paper.PaperMeta = meta
	s.paper.Sections = make(models.Sections, len(sections))
	for i, sec := range sections {
		if sec.ID == "" {
			sec.ID = uuid.NewString()
		}
		qs := make([]models.Question, len(sec.Questions))
		for j, q := range sec.Questions {
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			q.Marks = models.Round2(q.Marks)
			q.RegenerateCount = regenerated[q.ID]
			qs[j] = cloneQuestion(q)
		}
		sec.Questions = qs
		s.paper.Sections[i] = sec
	}
	s.touch()
	return nil
}
