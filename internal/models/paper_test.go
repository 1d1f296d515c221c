package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSections() Sections {
	return Sections{
		{
			ID:    "s1",
			Title: "SECTION A",
			Questions: []Question{
				{ID: "q1", Type: QuestionTypeMCQ, Text: "Solve $x^2 = 4$", Marks: 1, Options: []string{"2", "-2", "4", "0"}, Answer: "2", Topic: "Algebra", RegenerateCount: 1},
				{ID: "q2", Type: QuestionTypeSA, Text: "Define a prime", Marks: 2, Options: []string{}, Topic: "Numbers"},
				{ID: "q3", Type: QuestionTypeMatch, Text: "Match", Marks: 1.5, MatchPairs: []MatchPair{{Left: "H2O", Right: "Water"}}, ImageURL: "data:image/png;base64,AA==", ImageWidth: 50, CustomNumber: "3(a)"},
			},
			TotalMarks: 4.5,
		},
		{ID: "s2", Title: "Custom heading", Questions: []Question{}, TotalMarks: 0},
	}
}

func TestSectionsRoundTrip(t *testing.T) {
	in := sampleSections()

	raw, err := in.Value()
	require.NoError(t, err)

	var fromBytes Sections
	require.NoError(t, fromBytes.Scan(raw))
	assert.Equal(t, in, fromBytes)
	assert.NotNil(t, fromBytes[0].Questions[1].Options)
	assert.Nil(t, fromBytes[0].Questions[0].MatchPairs)

	var fromString Sections
	require.NoError(t, fromString.Scan(string(raw.([]byte))))
	assert.Equal(t, in, fromString)
}

func TestSectionsNilStoresEmptyArray(t *testing.T) {
	raw, err := Sections(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), raw)

	var out Sections
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}
