package questionbank

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kapilsaini46/rks/internal/blueprint"
	"github.com/kapilsaini46/rks/internal/models"
)

type call struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type generatorStub struct {
	mu     sync.Mutex
	calls  []call
	text   string
	image  []byte
	errFor map[string]error
}

func (s *generatorStub) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{model: model, contents: contents, config: config})
	s.mu.Unlock()
	if err := s.errFor[model]; err != nil {
		return nil, err
	}
	part := &genai.Part{Text: s.text}
	if model == "image-model" {
		if s.image == nil {
			part = &genai.Part{Text: "no image"}
		} else {
			part = &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: s.image}}
		}
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{part}}}}}, nil
}

func (s *generatorStub) modelCalls(model string) []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.model == model {
			out = append(out, c)
		}
	}
	return out
}

func cfg() Config {
	return Config{TextModel: "text-model", ImageModel: "image-model", AutoDiagrams: true}
}

func TestGenerateParsesQuestionsAndAttachesDiagrams(t *testing.T) {
	stub := &generatorStub{
		text:  `[{"text":"Label the heart","answer":"See diagram","imagePrompt":"Line diagram of a human heart"},{"text":"Define osmosis","answer":"Movement of water","imagePrompt":"no"}]`,
		image: []byte{1, 2, 3},
	}
	g := NewGemini(stub, cfg(), nil)

	qs, err := g.Generate(context.Background(), blueprint.Request{
		ClassNum: "X", Subject: "Science", Topic: "Life Processes",
		Type: models.QuestionTypeSA, Count: 2, Marks: 3,
		Context: &models.StyleContext{Text: "Use the sample", Documents: []models.StyleDocument{{Kind: models.AttachmentSamplePaper, MimeType: "application/pdf", Data: []byte("%PDF")}}},
	})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "data:image/png;base64,AQID", qs[0].ImageURL)
	assert.Equal(t, models.DefaultImageWidth, qs[0].ImageWidth)
	assert.Empty(t, qs[1].ImageURL)
	for _, q := range qs {
		assert.NotEmpty(t, q.ID)
		assert.Equal(t, float64(3), q.Marks)
		assert.Equal(t, "Life Processes", q.Topic)
		assert.Equal(t, models.QuestionTypeSA, q.Type)
	}

	textCalls := stub.modelCalls("text-model")
	require.Len(t, textCalls, 1)
	c := textCalls[0]
	require.Len(t, c.contents, 1)
	parts := c.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "application/pdf", parts[0].InlineData.MIMEType)
	assert.Contains(t, parts[1].Text, "REFERENCE CONTEXT:\nUse the sample")
	assert.Equal(t, "application/json", c.config.ResponseMIMEType)
	assert.Contains(t, c.config.SystemInstruction.Parts[0].Text, "Class X Students (Science)")
	assert.Len(t, stub.modelCalls("image-model"), 1)
}

func TestGenerateAssertionReasonPrompt(t *testing.T) {
	stub := &generatorStub{text: `[]`}
	g := NewGemini(stub, cfg(), nil)
	qs, err := g.Generate(context.Background(), blueprint.Request{ClassNum: "IX", Subject: "Science", Topic: "Atoms", Type: models.QuestionTypeAssertionReason, Count: 1, Marks: 1})
	require.NoError(t, err)
	assert.Empty(t, qs)
	prompt := stub.calls[0].contents[0].Parts[0].Text
	assert.True(t, strings.Contains(prompt, AssertionReasonOptions[3]))
}

func TestGenerateFailures(t *testing.T) {
	g := NewGemini(&generatorStub{errFor: map[string]error{"text-model": errors.New("quota")}}, cfg(), nil)
	_, err := g.Generate(context.Background(), blueprint.Request{Type: models.QuestionTypeSA, Count: 1, Marks: 1})
	require.Error(t, err)

	g = NewGemini(&generatorStub{text: ""}, cfg(), nil)
	_, err = g.Generate(context.Background(), blueprint.Request{Type: models.QuestionTypeSA, Count: 1, Marks: 1})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	g = NewGemini(&generatorStub{text: "not json"}, cfg(), nil)
	_, err = g.Generate(context.Background(), blueprint.Request{Type: models.QuestionTypeSA, Count: 1, Marks: 1})
	require.Error(t, err)
}

func TestGenerateImagePlaceholders(t *testing.T) {
	g := NewGemini(&generatorStub{errFor: map[string]error{"image-model": errors.New("boom")}}, cfg(), nil)
	assert.Equal(t, DiagramErrorURL, g.GenerateImage(context.Background(), "a triangle"))

	g = NewGemini(&generatorStub{}, cfg(), nil)
	assert.Equal(t, DiagramPlaceholderURL, g.GenerateImage(context.Background(), "a triangle"))
}

func TestMockBank(t *testing.T) {
	qs, err := Mock{}.Generate(context.Background(), blueprint.Request{Topic: "Algebra", Type: models.QuestionTypeMCQ, Count: 3, Marks: 1})
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Len(t, qs[0].Options, 4)
	assert.Equal(t, MockDiagramURL, Mock{}.GenerateImage(context.Background(), "x"))
}
