package export

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/render"
)

func tinyPNG(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 1, color.Gray{Y: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func paperFixture(t *testing.T) *models.QuestionPaper {
	return &models.QuestionPaper{
		PaperMeta: models.PaperMeta{Title: "Unit Test", SchoolName: "KV No. 1", ClassNum: "X", Subject: "Science", Session: "2024-25", Duration: "1 Hour"},
		Sections: models.Sections{{ID: "s1", Title: "SECTION A", TotalMarks: 4, Questions: []models.Question{
			{ID: "q1", Type: models.QuestionTypeMCQ, Text: "Which is a metal?", Marks: 1, Options: []string{"Iron", "Wood", "Glass", "Paper"}, Answer: "Iron"},
			{ID: "q2", Type: models.QuestionTypeMatch, Text: "Match", Marks: 2, MatchPairs: []models.MatchPair{{Left: "Na", Right: "Sodium"}}},
			{ID: "q3", Type: models.QuestionTypeSA, Text: "Label the diagram", Marks: 1, ImageURL: tinyPNG(t), ImageWidth: 40},
		}}},
	}
}

func TestPaperPDFRendersBothModes(t *testing.T) {
	exporter := NewPaperPDFExporter("")
	for _, mode := range []render.Mode{render.ModePaper, render.ModeAnswerKey} {
		out, err := exporter.Render(render.Build(paperFixture(t), mode))
		require.NoError(t, err, mode)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), mode)
	}
}

func TestPaperPDFFallsBackWhenFontMissing(t *testing.T) {
	exporter := NewPaperPDFExporter("/nonexistent/font.ttf")
	out, err := exporter.Render(render.Build(paperFixture(t), render.ModePaper))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPaperPDFRejectsHindiWithoutUnicodeFont(t *testing.T) {
	p := paperFixture(t)
	p.Subject = "Hindi"
	for _, fontPath := range []string{"", "/nonexistent/font.ttf"} {
		_, err := NewPaperPDFExporter(fontPath).Render(render.Build(p, render.ModePaper))
		assert.ErrorIs(t, err, ErrUnicodeFontRequired, fontPath)
	}
}

func TestCSVExporter(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"email", "plan"},
		Rows:    [][]string{{"a@example.com", "STARTER"}, {"b@example.com", "PLAN, \"GOLD\""}},
	})
	require.NoError(t, err)
	assert.Equal(t, "email,plan\na@example.com,STARTER\nb@example.com,\"PLAN, \"\"GOLD\"\"\"\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewCSVExporter().Render(Dataset{Headers: []string{"email", "plan"}, Rows: [][]string{{"short"}}})
	assert.Error(t, err)
}
