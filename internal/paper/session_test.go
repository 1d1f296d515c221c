package paper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/render"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

func owner(plan models.SubscriptionPlan) *models.User {
	return &models.User{Email: "owner@example.com", Role: models.RoleTeacher, SubscriptionPlan: plan}
}

func fixture() *models.QuestionPaper {
	return New(models.PaperMeta{
		Title: "Half Yearly Examination", SchoolName: "Kendriya Vidyalaya", ClassNum: "X",
		Subject: "Mathematics", Duration: "3 Hours",
	}, []models.Section{
		{ID: "s1", Title: "SECTION A", Questions: []models.Question{
			{ID: "q1", Type: models.QuestionTypeMCQ, Text: "2+2?", Marks: 1, Options: []string{"3", "4"}},
			{ID: "q2", Type: models.QuestionTypeMCQ, Text: "3+3?", Marks: 1, Options: []string{"5", "6"}},
		}},
		{ID: "s2", Title: "Reading", Questions: []models.Question{
			{ID: "q3", Type: models.QuestionTypeLA, Text: "Explain", Marks: 5},
		}},
	}, "owner@example.com", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
}

func assertTotals(t *testing.T, p *models.QuestionPaper) {
	t.Helper()
	var sum float64
	for _, s := range p.Sections {
		assert.Equal(t, models.SumMarks(s.Questions), s.TotalMarks, s.ID)
		sum += s.TotalMarks
	}
	assert.Equal(t, models.Round2(sum), p.TotalMarks())
	assert.Equal(t, p.TotalMarks(), p.MaxMarks)
}

func TestNewSetsBookkeeping(t *testing.T) {
	p := fixture()
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.VisibleToTeacher)
	assert.True(t, p.VisibleToAdmin)
	assert.Equal(t, "owner@example.com", p.CreatedBy)
	assert.Equal(t, float64(7), p.MaxMarks)
	assertTotals(t, p)
}

func TestMutationsKeepTotals(t *testing.T) {
	s := NewSession(fixture(), owner(models.PlanStarter))
	require.False(t, s.ReadOnly())

	q, err := s.AddQuestion("s1")
	require.NoError(t, err)
	assert.Equal(t, models.QuestionTypeSA, q.Type)
	assert.Equal(t, PlaceholderText, q.Text)
	assert.Equal(t, float64(2), q.Marks)
	assert.Equal(t, "Mathematics", q.Topic)
	assertTotals(t, s.Paper())
	assert.Equal(t, float64(4), s.Paper().Sections[0].TotalMarks)

	for i := 0; i < 10; i++ {
		m := 0.1 * float64(i+1)
		require.NoError(t, s.UpdateQuestion("s1", "q1", QuestionPatch{Marks: &m}))
	}
	assert.Equal(t, 4.0, s.Paper().Sections[0].TotalMarks)
	assertTotals(t, s.Paper())

	third := 0.3
	require.NoError(t, s.UpdateQuestion("s1", "q2", QuestionPatch{Marks: &third}))
	assert.Equal(t, 3.3, s.Paper().Sections[0].TotalMarks)

	require.NoError(t, s.DeleteQuestion("s1", q.ID))
	assertTotals(t, s.Paper())

	sec, err := s.AddSection()
	require.NoError(t, err)
	assert.Equal(t, "SECTION C", sec.Title)
	require.NoError(t, s.DeleteSection("s2"))
	assertTotals(t, s.Paper())
	assert.Len(t, s.Paper().Sections, 2)
	assert.True(t, s.Changed())

	negative := -1.0
	err = s.UpdateQuestion("s1", "q1", QuestionPatch{Marks: &negative})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	err = s.DeleteQuestion("s1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSessionDoesNotMutateCaller(t *testing.T) {
	p := fixture()
	s := NewSession(p, owner(models.PlanFree))
	text := "changed"
	require.NoError(t, s.UpdateQuestion("s1", "q1", QuestionPatch{Text: &text}))
	assert.Equal(t, "2+2?", p.Sections[0].Questions[0].Text)
	assert.Equal(t, "changed", s.Paper().Sections[0].Questions[0].Text)
}

func TestReadOnlyAfterDownloadIsNoOp(t *testing.T) {
	p := fixture()
	p.DownloadCount = 1
	s := NewSession(p, owner(models.PlanStarter))
	require.True(t, s.ReadOnly())

	text := "edited"
	err := s.UpdateQuestion("s1", "q1", QuestionPatch{Text: &text})
	assert.ErrorIs(t, err, appErrors.ErrReadOnly)
	_, err = s.AddSection()
	assert.ErrorIs(t, err, appErrors.ErrReadOnly)
	assert.False(t, s.Changed())
	assert.Equal(t, "2+2?", s.Paper().Sections[0].Questions[0].Text)

	premium := NewSession(p, owner(models.PlanPremium))
	assert.False(t, premium.ReadOnly())
	adminSession := NewSession(p, &models.User{Email: "admin@example.com", Role: models.RoleAdmin})
	assert.False(t, adminSession.ReadOnly())
}

func TestRegenerationBound(t *testing.T) {
	s := NewSession(fixture(), owner(models.PlanProfessional))
	generated := models.Question{ID: "other", Type: models.QuestionTypeLA, Text: "New text", Marks: 9, Options: []string{"x", "y"}, Answer: "y"}

	require.NoError(t, s.ApplyRegeneration("s1", "q1", generated))
	require.NoError(t, s.ApplyRegeneration("s1", "q1", generated))
	q, err := s.Question("s1", "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)
	assert.Equal(t, models.QuestionTypeMCQ, q.Type)
	assert.Equal(t, float64(1), q.Marks)
	assert.Equal(t, "New text", q.Text)
	assert.Equal(t, 2, q.RegenerateCount)

	err = s.ApplyRegeneration("s1", "q1", generated)
	assert.ErrorIs(t, err, appErrors.ErrQuotaExceeded)
	q, _ = s.Question("s1", "q1")
	assert.Equal(t, 2, q.RegenerateCount)
	assertTotals(t, s.Paper())
}

func TestImageOperations(t *testing.T) {
	s := NewSession(fixture(), owner(models.PlanFree))
	require.NoError(t, s.AttachImage("s2", "q3", "data:image/png;base64,AAAA"))
	q, _ := s.Question("s2", "q3")
	assert.Equal(t, models.DefaultImageWidth, q.ImageWidth)

	require.NoError(t, s.ResizeImage("s2", "q3", 80))
	assert.ErrorIs(t, s.ResizeImage("s2", "q3", 5), appErrors.ErrValidation)
	assert.ErrorIs(t, s.ResizeImage("s2", "q3", 101), appErrors.ErrValidation)
	q, _ = s.Question("s2", "q3")
	assert.Equal(t, 80, q.ImageWidth)

	require.NoError(t, s.RemoveImage("s2", "q3"))
	q, _ = s.Question("s2", "q3")
	assert.Empty(t, q.ImageURL)
	assert.Zero(t, q.ImageWidth)
	assert.ErrorIs(t, s.ResizeImage("s2", "q3", 50), appErrors.ErrValidation)
}

func TestUpdateMetaRetemplatesOnLanguageSwitch(t *testing.T) {
	s := NewSession(fixture(), owner(models.PlanFree))
	meta := s.Paper().PaperMeta
	meta.Subject = "Hindi"
	require.NoError(t, s.UpdateMeta(meta))

	p := s.Paper()
	assert.Equal(t, "खंड अ", p.Sections[0].Title)
	assert.Equal(t, "Reading", p.Sections[1].Title)
	assert.Equal(t, "अर्धवार्षिक परीक्षा", p.Title)
	assert.Equal(t, "केन्द्रीय विद्यालय", p.SchoolName)
	assert.Equal(t, float64(7), p.MaxMarks)

	same := p.PaperMeta
	same.Session = "2025-26"
	require.NoError(t, s.UpdateMeta(same))
	assert.Equal(t, "खंड अ", s.Paper().Sections[0].Title)
}

func TestReplaceContentKeepsRegenerationCounts(t *testing.T) {
	base := fixture()
	base.Sections[0].Questions[0].RegenerateCount = 1
	s := NewSession(base, owner(models.PlanStarter))

	sections := []models.Section{{ID: "s1", Title: "SECTION A", Questions: []models.Question{
		{ID: "q1", Text: "edited", Marks: 1.005, RegenerateCount: 0},
		{Text: "fresh", Marks: 3},
	}}}
	require.NoError(t, s.ReplaceContent(base.PaperMeta, sections))
	p := s.Paper()
	require.Len(t, p.Sections[0].Questions, 2)
	assert.Equal(t, 1, p.Sections[0].Questions[0].RegenerateCount)
	assert.NotEmpty(t, p.Sections[0].Questions[1].ID)
	assertTotals(t, p)
}

func TestHideAndAccess(t *testing.T) {
	p := fixture()
	require.NoError(t, Hide(p, models.AudienceTeacher))
	assert.Equal(t, models.VisibilityHiddenFromOwner, p.Visibility())
	assert.False(t, CanAccess(p, owner(models.PlanFree)))
	assert.True(t, CanAccess(p, &models.User{Role: models.RoleAdmin}))
	assert.True(t, VisibleTo(p, models.AudienceAdmin))

	require.NoError(t, Hide(p, models.AudienceAdmin))
	assert.Equal(t, models.VisibilityHidden, p.Visibility())
	assert.Error(t, Hide(p, models.Audience("GUEST")))

	other := fixture()
	assert.False(t, CanAccess(other, &models.User{Email: "someone@example.com", Role: models.RoleTeacher}))
}

func TestAddSectionStopsAtAlphabetEnd(t *testing.T) {
	s := NewSession(fixture(), owner(models.PlanPremium))
	for len(s.Paper().Sections) < render.MaxSections {
		_, err := s.AddSection()
		require.NoError(t, err)
	}
	assert.Equal(t, "SECTION Z", s.Paper().Sections[render.MaxSections-1].Title)

	_, err := s.AddSection()
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Len(t, s.Paper().Sections, render.MaxSections)
}
