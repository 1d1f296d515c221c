package questionbank

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kapilsaini46/rks/internal/blueprint"
	"github.com/kapilsaini46/rks/internal/models"
)

// MockDiagramURL is the image handed out by the offline bank.
const MockDiagramURL = "https://placehold.co/400x300?text=Mock+Diagram"

// Mock is an offline bank used when no API key is configured.
type Mock struct{}

// Generate returns deterministic placeholder questions.
func (Mock) Generate(_ context.Context, req blueprint.Request) ([]models.Question, error) {
	out := make([]models.Question, req.Count)
	for i := range out {
		q := models.Question{
			ID:     uuid.NewString(),
			Type:   req.Type,
			Text:   fmt.Sprintf("Mock Question %d for %s (%s)", i+1, req.Topic, req.Type),
			Marks:  req.Marks,
			Answer: "Mock Answer",
			Topic:  req.Topic,
		}
		switch req.Type {
		case models.QuestionTypeMCQ:
			q.Options = []string{"Option A", "Option B", "Option C", "Option D"}
		case models.QuestionTypeAssertionReason:
			q.Options = append([]string(nil), AssertionReasonOptions...)
		case models.QuestionTypeMatch:
			q.MatchPairs = []models.MatchPair{{Left: "A", Right: "1"}, {Left: "B", Right: "2"}}
		}
		out[i] = q
	}
	return out, nil
}

// GenerateImage returns a fixed placeholder.
func (Mock) GenerateImage(context.Context, string) string {
	return MockDiagramURL
}
