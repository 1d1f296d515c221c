package curriculum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

func sample() Registry {
	return Registry{
		{Class: "IX", Subjects: []string{"Mathematics", "Science"}},
		{Class: "X", Subjects: []string{"Mathematics", "Hindi"}},
	}
}

func TestAddClassRejectsDuplicate(t *testing.T) {
	r := sample()
	_, err := r.AddClass("IX")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)

	next, err := r.AddClass("XI")
	require.NoError(t, err)
	assert.Equal(t, []string{"IX", "X", "XI"}, next.Classes())
	assert.Len(t, r, 2)
}

func TestDeleteClassCascadesAndReAddIsEmpty(t *testing.T) {
	r := sample()
	next, err := r.DeleteClass("IX")
	require.NoError(t, err)
	_, ok := next.Subjects("IX")
	assert.False(t, ok)

	readded, err := next.AddClass("IX")
	require.NoError(t, err)
	subjects, ok := readded.Subjects("IX")
	require.True(t, ok)
	assert.Empty(t, subjects)

	_, err = r.DeleteClass("XII")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSubjectMutations(t *testing.T) {
	r := sample()
	_, err := r.AddSubject("IX", "Science")
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)
	_, err = r.AddSubject("XII", "Physics")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	next, err := r.AddSubject("IX", "English")
	require.NoError(t, err)
	subjects, _ := next.Subjects("IX")
	assert.Equal(t, []string{"Mathematics", "Science", "English"}, subjects)

	trimmed, err := next.DeleteSubject("IX", "Mathematics")
	require.NoError(t, err)
	subjects, _ = trimmed.Subjects("IX")
	assert.Equal(t, []string{"Science", "English"}, subjects)
	original, _ := next.Subjects("IX")
	assert.Equal(t, []string{"Mathematics", "Science", "English"}, original)

	_, err = r.DeleteSubject("IX", "Art")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReconcileSubject(t *testing.T) {
	r := sample()
	assert.Equal(t, "Hindi", ReconcileSubject(r, "X", "Hindi"))
	assert.Equal(t, "Mathematics", ReconcileSubject(r, "IX", "Hindi"))
	assert.Equal(t, "Hindi", ReconcileSubject(r, "XII", "Hindi"))

	empty := Registry{{Class: "VI", Subjects: []string{}}}
	assert.Equal(t, "Science", ReconcileSubject(empty, "VI", "Science"))
}

func TestQuestionTypes(t *testing.T) {
	q := QuestionTypes{string(models.QuestionTypeMCQ)}
	_, err := q.Add("Multiple Choice")
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)

	next, err := q.Add("Diagram Based")
	require.NoError(t, err)
	assert.True(t, next.Contains("Diagram Based"))
	assert.False(t, q.Contains("Diagram Based"))

	removed, err := next.Delete("Multiple Choice")
	require.NoError(t, err)
	assert.Equal(t, QuestionTypes{"Diagram Based"}, removed)

	_, err = removed.Delete("Essay")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
