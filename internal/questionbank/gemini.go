// Package questionbank generates questions and diagrams with Gemini.
package questionbank

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/kapilsaini46/rks/internal/blueprint"
	"github.com/kapilsaini46/rks/internal/models"
)

// Placeholder images returned when a diagram cannot be produced.
const (
	DiagramPlaceholderURL = "https://placehold.co/400x300?text=Diagram+Placeholder"
	DiagramErrorURL       = "https://placehold.co/400x300?text=Image+Generation+Error"
)

// minDiagramPrompt is the shortest image prompt that triggers an automatic diagram.
const minDiagramPrompt = 6

const diagramConcurrency = 4

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// ContentGenerator is the part of the Gemini client the bank needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config controls model selection.
type Config struct {
	TextModel    string
	ImageModel   string
	AutoDiagrams bool
	Timeout      time.Duration
}

// Gemini implements blueprint.QuestionBank and the diagram adapter.
type Gemini struct {
	models ContentGenerator
	cfg    Config
	logger *zap.Logger
}

// NewClient dials the Gemini API.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

// NewGemini constructs the adapter around a content generator, usually client.Models.
func NewGemini(gen ContentGenerator, cfg Config, logger *zap.Logger) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-2.5-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.5-flash-image"
	}
	return &Gemini{models: gen, cfg: cfg, logger: logger}
}

type generatedQuestion struct {
	Text        string             `json:"text"`
	Options     []string           `json:"options"`
	MatchPairs  []models.MatchPair `json:"matchPairs"`
	Answer      string             `json:"answer"`
	ImagePrompt string             `json:"imagePrompt"`
}

var questionSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":    {Type: genai.TypeString},
			"options": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"matchPairs": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"left":  {Type: genai.TypeString},
						"right": {Type: genai.TypeString},
					},
				},
			},
			"answer":      {Type: genai.TypeString},
			"imagePrompt": {Type: genai.TypeString},
		},
		Required: []string{"text", "answer"},
	},
}

func (g *Gemini) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, g.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// Generate asks the text model for req.Count questions.
func (g *Gemini) Generate(ctx context.Context, req blueprint.Request) ([]models.Question, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	parts := make([]*genai.Part, 0, 3)
	if req.Context != nil {
		for _, doc := range req.Context.Documents {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: doc.MimeType, Data: doc.Data}})
		}
	}
	parts = append(parts, &genai.Part{Text: promptText(req)})

	resp, err := g.models.GenerateContent(ctx, g.cfg.TextModel,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction(req)}}},
			ResponseMIMEType:  "application/json",
			ResponseSchema:    questionSchema,
		})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	raw := responseText(resp)
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}
	var generated []generatedQuestion
	if err := json.Unmarshal([]byte(raw), &generated); err != nil {
		return nil, fmt.Errorf("parse generated questions: %w", err)
	}

	questions := make([]models.Question, len(generated))
	for i, q := range generated {
		questions[i] = models.Question{
			ID:          uuid.NewString(),
			Type:        req.Type,
			Text:        q.Text,
			Marks:       req.Marks,
			Options:     q.Options,
			MatchPairs:  q.MatchPairs,
			Answer:      q.Answer,
			ImagePrompt: strings.TrimSpace(q.ImagePrompt),
			Topic:       req.Topic,
		}
	}
	if g.cfg.AutoDiagrams {
		g.attachDiagrams(ctx, questions)
	}
	return questions, nil
}

func (g *Gemini) attachDiagrams(ctx context.Context, questions []models.Question) {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(diagramConcurrency)
	for i := range questions {
		if len(questions[i].ImagePrompt) < minDiagramPrompt {
			continue
		}
		q := &questions[i]
		group.Go(func() error {
			q.ImageURL = g.GenerateImage(gctx, q.ImagePrompt)
			q.ImageWidth = models.DefaultImageWidth
			return nil
		})
	}
	_ = group.Wait()
}

// GenerateImage returns a data URL for a diagram. Failures yield a labelled placeholder image rather than
// an error.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) string {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.models.GenerateContent(ctx, g.cfg.ImageModel,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: diagramPrompt(prompt)}}}}, nil)
	if err != nil {
		g.logger.Warn("diagram generation failed", zap.Error(err))
		return DiagramErrorURL
	}
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return "data:" + part.InlineData.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data)
			}
		}
	}
	return DiagramPlaceholderURL
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
