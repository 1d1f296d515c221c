// Package blueprint turns blueprint items into generated paper sections.
package blueprint

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/render"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

// MaxItems bounds the number of sections one blueprint may request.
const MaxItems = render.MaxSections

// Request is one batch handed to the question bank.
type Request struct {
	ClassNum string
	Subject  string
	Topic    string
	Type     models.QuestionType
	Count    int
	Marks    float64
	Context  *models.StyleContext
}

// QuestionBank produces questions for a request.
type QuestionBank interface {
	Generate(ctx context.Context, req Request) ([]models.Question, error)
}

// Input describes one compilation run.
type Input struct {
	ClassNum string
	Subject  string
	Items    []models.BlueprintItem
	Context  *models.StyleContext
}

// ProgressFunc is told when each item starts.
type ProgressFunc func(index, total int, item models.BlueprintItem)

// Compiler drives the question bank over a blueprint.
type Compiler struct {
	bank      QuestionBank
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCompiler constructs a Compiler.
func NewCompiler(bank QuestionBank, validate *validator.Validate, logger *zap.Logger) *Compiler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{bank: bank, validator: validate, logger: logger}
}

// Validate checks a blueprint before any generation call is made.
func (c *Compiler) Validate(in Input) error {
	if strings.TrimSpace(in.ClassNum) == "" || strings.TrimSpace(in.Subject) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "class and subject are required")
	}
	if len(in.Items) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "blueprint must contain at least one item")
	}
	if len(in.Items) > MaxItems {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("blueprint cannot exceed %d items", MaxItems))
	}
	for i, item := range in.Items {
		if err := c.validator.Struct(item); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("blueprint item %d is invalid", i+1))
		}
	}
	return nil
}

// Compile generates one section per item, in order, one bank call at a time. Any failure discards the
// sections produced so far.
func (c *Compiler) Compile(ctx context.Context, in Input, progress ProgressFunc) ([]models.Section, error) {
	if err := c.Validate(in); err != nil {
		return nil, err
	}
	lang := render.LanguageForSubject(in.Subject)
	sections := make([]models.Section, 0, len(in.Items))
	for i, item := range in.Items {
		if progress != nil {
			progress(i, len(in.Items), item)
		}
		c.logger.Debug("generating section",
			zap.Int("index", i),
			zap.String("topic", item.Topic),
			zap.String("type", string(item.Type)),
			zap.Int("count", item.Count),
		)
		questions, err := c.bank.Generate(ctx, Request{
			ClassNum: in.ClassNum,
			Subject:  in.Subject,
			Topic:    item.Topic,
			Type:     item.Type,
			Count:    item.Count,
			Marks:    item.Marks,
			Context:  in.Context,
		})
		if err != nil {
			c.logger.Warn("section generation failed", zap.Int("index", i), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrGenerationFailed.Code, appErrors.ErrGenerationFailed.Status,
				fmt.Sprintf("failed to generate questions for %q", item.Topic))
		}
		if len(questions) == 0 {
			return nil, appErrors.Clone(appErrors.ErrGenerationFailed, fmt.Sprintf("no questions returned for %q", item.Topic))
		}
		sections = append(sections, buildSection(lang, i, item, questions))
	}
	return sections, nil
}

func buildSection(lang render.Language, index int, item models.BlueprintItem, questions []models.Question) models.Section {
	qs := make([]models.Question, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.Type == "" {
			q.Type = item.Type
		}
		if strings.TrimSpace(q.Topic) == "" {
			q.Topic = item.Topic
		}
		if q.Marks <= 0 {
			q.Marks = item.Marks
		}
		q.Marks = models.Round2(q.Marks)
		q.RegenerateCount = 0
		qs[i] = q
	}
	return models.Section{
		ID:         uuid.NewString(),
		Title:      render.SectionTitle(lang, index),
		Questions:  qs,
		TotalMarks: models.SumMarks(qs),
	}
}
