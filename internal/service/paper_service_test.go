package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/blueprint"
	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/paper"
	"github.com/kapilsaini46/rks/internal/render"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type stubBank struct {
	mu       sync.Mutex
	err      error
	requests []blueprint.Request
}

func (b *stubBank) Generate(_ context.Context, req blueprint.Request) ([]models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	out := make([]models.Question, req.Count)
	for i := range out {
		out[i] = models.Question{
			ID:      uuid.NewString(),
			Type:    req.Type,
			Text:    "Generated about " + req.Topic,
			Marks:   req.Marks,
			Options: []string{"(a) one", "(b) two"},
			Answer:  "one",
			Topic:   req.Topic,
		}
	}
	return out, nil
}

type stubDiagrams struct {
	prompts []string
}

func (d *stubDiagrams) GenerateImage(_ context.Context, prompt string) string {
	d.prompts = append(d.prompts, prompt)
	return "data:image/png;base64,AAAA"
}

type stubStyles struct {
	style *models.StyleContext
	err   error
}

func (s stubStyles) StyleContext(context.Context, string, string) (*models.StyleContext, error) {
	return s.style, s.err
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type paperFixture struct {
	svc     *PaperService
	users   *fakeUserStore
	papers  *fakePaperStore
	bank    *stubBank
	metrics *MetricsService
}

func newPaperFixture(t *testing.T, users []*models.User, papers []*models.QuestionPaper, tweak func(*PaperDeps)) *paperFixture {
	t.Helper()
	f := &paperFixture{
		users:   newFakeUserStore(users...),
		papers:  newFakePaperStore(papers...),
		bank:    &stubBank{},
		metrics: NewMetricsService(),
	}
	deps := PaperDeps{
		Papers:   f.papers,
		Credits:  f.users,
		Bank:     f.bank,
		Diagrams: &stubDiagrams{},
		Styles:   stubStyles{},
		Metrics:  f.metrics,
	}
	if tweak != nil {
		tweak(&deps)
	}
	f.svc = NewPaperService(deps, nil, zap.NewNop())
	return f
}

func mathsRequest() GenerateRequest {
	return GenerateRequest{
		Meta:  models.PaperMeta{ClassNum: "X", Subject: "Mathematics", Title: "Unit Test"},
		Items: []models.BlueprintItem{{Topic: "Algebra", Type: models.QuestionTypeMCQ, Count: 2, Marks: 1}},
	}
}

func storedPaper(owner string, downloads int) *models.QuestionPaper {
	sections := []models.Section{{
		ID:    "s1",
		Title: "SECTION A",
		Questions: []models.Question{
			{ID: "q1", Type: models.QuestionTypeSA, Text: "Define force", Marks: 2, Topic: "Motion"},
			{ID: "q2", Type: models.QuestionTypeLA, Text: "Explain inertia", Marks: 5, Topic: "Motion", RegenerateCount: 1},
		},
	}}
	p := paper.New(models.PaperMeta{ClassNum: "IX", Subject: "Science", Title: "Term Test"}, sections, owner, time.Now())
	p.DownloadCount = downloads
	return p
}

func TestGenerateFullPaperChargesOneCredit(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree, Credits: 1}
	f := newPaperFixture(t, []*models.User{teacher}, nil, nil)

	actor := *teacher
	p, err := f.svc.GenerateFullPaper(context.Background(), &actor, mathsRequest(), models.RequestMeta{IP: "127.0.0.1"})
	require.NoError(t, err)

	require.Len(t, p.Sections, 1)
	assert.Equal(t, "SECTION A", p.Sections[0].Title)
	assert.Len(t, p.Sections[0].Questions, 2)
	assert.Equal(t, 2.0, p.Sections[0].TotalMarks)
	assert.Equal(t, 2.0, p.MaxMarks)
	assert.Equal(t, "t@example.com", p.CreatedBy)
	assert.True(t, p.VisibleToTeacher)
	assert.True(t, p.VisibleToAdmin)

	assert.Equal(t, 0, f.users.get("u1").Credits)
	assert.Equal(t, 0, actor.Credits)
	assert.NotNil(t, f.papers.get(p.ID))
	require.Len(t, f.users.auditLogs, 1)
	assert.Equal(t, models.AuditActionPaperGenerate, f.users.auditLogs[0].Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.papersGenerated))
}

func TestGenerateFullPaperWithoutCredits(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree, Credits: 0}
	f := newPaperFixture(t, []*models.User{teacher}, nil, nil)

	p, err := f.svc.GenerateFullPaper(context.Background(), teacher, mathsRequest(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrQuotaExceeded)
	assert.Nil(t, p)
	assert.Empty(t, f.bank.requests)
	assert.Empty(t, f.papers.papers)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.quotaDenials.WithLabelValues(QuotaActionGenerate)))
}

func TestGenerateFullPaperFailureKeepsCredits(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanStarter, Credits: 2}
	f := newPaperFixture(t, []*models.User{teacher}, nil, nil)
	f.bank.err = errors.New("model overloaded")

	_, err := f.svc.GenerateFullPaper(context.Background(), teacher, mathsRequest(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrGenerationFailed)
	assert.Equal(t, 2, f.users.get("u1").Credits)
	assert.Empty(t, f.papers.papers)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.generationFail))
}

func TestGenerateFullPaperRefundsWhenSaveFails(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanStarter, Credits: 2}
	f := newPaperFixture(t, []*models.User{teacher}, nil, nil)
	f.papers.createErr = errors.New("connection reset")

	_, err := f.svc.GenerateFullPaper(context.Background(), teacher, mathsRequest(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Equal(t, 2, f.users.get("u1").Credits)
	assert.Equal(t, 2, teacher.Credits)
}

func TestGenerateFullPaperAdminIsNotCharged(t *testing.T) {
	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin, SubscriptionPlan: models.PlanFree}
	f := newPaperFixture(t, []*models.User{admin}, nil, nil)

	_, err := f.svc.GenerateFullPaper(context.Background(), admin, mathsRequest(), models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.users.get("a1").Credits)
	assert.Len(t, f.papers.papers, 1)
}

func TestGenerateFullPaperRateLimited(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree, Credits: 1}
	f := newPaperFixture(t, []*models.User{teacher}, nil, func(d *PaperDeps) { d.Limiter = denyAll{} })

	_, err := f.svc.GenerateFullPaper(context.Background(), teacher, mathsRequest(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrRateLimited)
	assert.Equal(t, 1, f.users.get("u1").Credits)
}

func TestGenerateFullPaperPassesStyleContext(t *testing.T) {
	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}
	style := &models.StyleContext{Text: "Follow the board pattern"}
	f := newPaperFixture(t, []*models.User{admin}, nil, func(d *PaperDeps) { d.Styles = stubStyles{style: style} })

	_, err := f.svc.GenerateFullPaper(context.Background(), admin, mathsRequest(), models.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, f.bank.requests, 1)
	assert.Equal(t, style, f.bank.requests[0].Context)
	assert.Equal(t, "X", f.bank.requests[0].ClassNum)
}

func TestGenerateFullPaperLocalizesHindiHeader(t *testing.T) {
	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}
	f := newPaperFixture(t, []*models.User{admin}, nil, nil)
	req := mathsRequest()
	req.Meta.Subject = "Hindi"
	req.Meta.Title = ""

	p, err := f.svc.GenerateFullPaper(context.Background(), admin, req, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "अर्धवार्षिक परीक्षा", p.Title)
	assert.Equal(t, render.SectionTitle(render.Hindi, 0), p.Sections[0].Title)
}

func TestRegenerateQuestionRespectsPlanBound(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanProfessional}
	stored := storedPaper("t@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, nil)

	p, err := f.svc.RegenerateQuestion(context.Background(), teacher, stored.ID, "s1", "q2")
	require.NoError(t, err)
	q := p.Sections[0].Questions[1]
	assert.Equal(t, "q2", q.ID)
	assert.Equal(t, 2, q.RegenerateCount)
	assert.Equal(t, 5.0, q.Marks)
	assert.Equal(t, "Generated about Motion", q.Text)
	require.Len(t, f.bank.requests, 1)
	assert.Equal(t, 1, f.bank.requests[0].Count)
	assert.Equal(t, models.QuestionTypeLA, f.bank.requests[0].Type)

	_, err = f.svc.RegenerateQuestion(context.Background(), teacher, stored.ID, "s1", "q2")
	assert.ErrorIs(t, err, appErrors.ErrQuotaExceeded)
	assert.Equal(t, 2, f.papers.get(stored.ID).Sections[0].Questions[1].RegenerateCount)
	assert.Len(t, f.bank.requests, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.regenerations))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.quotaDenials.WithLabelValues(QuotaActionRegenerate)))
}

func TestRegenerateQuestionFailureLeavesPaper(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanPremium}
	stored := storedPaper("t@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, nil)
	f.bank.err = errors.New("timeout")

	_, err := f.svc.RegenerateQuestion(context.Background(), teacher, stored.ID, "s1", "q1")
	assert.ErrorIs(t, err, appErrors.ErrGenerationFailed)
	assert.Equal(t, 0, f.papers.updates)
}

func TestEditAfterDownloadIsReadOnly(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanStarter}
	stored := storedPaper("t@example.com", 1)
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, nil)

	text := "Changed"
	_, err := f.svc.UpdateQuestion(context.Background(), teacher, stored.ID, "s1", "q1", paper.QuestionPatch{Text: &text})
	assert.ErrorIs(t, err, appErrors.ErrReadOnly)
	assert.Equal(t, 0, f.papers.updates)
	assert.Equal(t, "Define force", f.papers.get(stored.ID).Sections[0].Questions[0].Text)

	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}
	p, err := f.svc.UpdateQuestion(context.Background(), admin, stored.ID, "s1", "q1", paper.QuestionPatch{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, "Changed", p.Sections[0].Questions[0].Text)
}

func TestEditsRecomputeTotalsAndCountEdits(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	stored := storedPaper("t@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, nil)
	ctx := context.Background()

	p, err := f.svc.AddQuestion(ctx, teacher, stored.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, p.Sections[0].TotalMarks)
	assert.Equal(t, paper.PlaceholderText, p.Sections[0].Questions[2].Text)

	marks := 1.1
	p, err = f.svc.UpdateQuestion(ctx, teacher, stored.ID, "s1", "q1", paper.QuestionPatch{Marks: &marks})
	require.NoError(t, err)
	assert.Equal(t, 8.1, p.MaxMarks)

	p, err = f.svc.DeleteQuestion(ctx, teacher, stored.ID, "s1", "q2")
	require.NoError(t, err)
	assert.Equal(t, 3.1, p.Sections[0].TotalMarks)
	assert.Equal(t, 3, f.papers.get(stored.ID).EditCount)
}

func TestSaveReplacesBody(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	stored := storedPaper("t@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, nil)

	body := SaveRequest{
		Meta: stored.PaperMeta,
		Sections: []models.Section{{ID: "s1", Title: "Part One", Questions: []models.Question{
			{ID: "q2", Text: "Explain inertia again", Marks: 4, RegenerateCount: 0},
		}}},
	}
	p, err := f.svc.Save(context.Background(), teacher, stored.ID, body)
	require.NoError(t, err)
	assert.Equal(t, 1, p.EditCount)
	assert.Equal(t, 4.0, p.MaxMarks)
	assert.Equal(t, 1, p.Sections[0].Questions[0].RegenerateCount)
}

func TestCreateManualPaper(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	f := newPaperFixture(t, []*models.User{teacher}, nil, nil)

	p, err := f.svc.Create(context.Background(), teacher, SaveRequest{
		Meta:     models.PaperMeta{ClassNum: "VI", Subject: "English"},
		Sections: []models.Section{{Title: "SECTION A", Questions: []models.Question{{Text: "Write a letter", Marks: 5}}}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.Sections[0].ID)
	assert.NotEmpty(t, p.Sections[0].Questions[0].ID)
	assert.Equal(t, 5.0, p.MaxMarks)
	assert.Equal(t, 0, p.EditCount)

	_, err = f.svc.Create(context.Background(), teacher, SaveRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestListAndHideByAudience(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	other := &models.User{ID: "u2", Email: "o@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}
	mine := storedPaper("t@example.com", 0)
	theirs := storedPaper("o@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher, other, admin}, []*models.QuestionPaper{mine, theirs}, nil)
	ctx := context.Background()

	list, page, err := f.svc.List(ctx, teacher, PaperQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)
	assert.Equal(t, 1, page.TotalCount)

	_, err = f.svc.Get(ctx, teacher, theirs.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.ErrorIs(t, f.svc.Hide(ctx, teacher, mine.ID, models.AudienceAdmin), appErrors.ErrForbidden)
	require.NoError(t, f.svc.Hide(ctx, teacher, mine.ID, models.AudienceTeacher))

	_, err = f.svc.Get(ctx, teacher, mine.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	list, _, err = f.svc.List(ctx, admin, PaperQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, f.svc.Hide(ctx, admin, theirs.ID, models.AudienceAdmin))
	list, _, err = f.svc.List(ctx, admin, PaperQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, _, err = f.svc.List(ctx, other, PaperQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPurgeRequiresAdmin(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher}
	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}
	stored := storedPaper("t@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher, admin}, []*models.QuestionPaper{stored}, nil)

	assert.ErrorIs(t, f.svc.Purge(context.Background(), teacher, stored.ID, models.RequestMeta{}), appErrors.ErrForbidden)
	require.NoError(t, f.svc.Purge(context.Background(), admin, stored.ID, models.RequestMeta{}))
	assert.Nil(t, f.papers.get(stored.ID))
	assert.ErrorIs(t, f.svc.Purge(context.Background(), admin, stored.ID, models.RequestMeta{}), appErrors.ErrNotFound)
}

func TestGenerateDiagramFallsBackToQuestionText(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	stored := storedPaper("t@example.com", 0)
	diagrams := &stubDiagrams{}
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, func(d *PaperDeps) { d.Diagrams = diagrams })

	p, err := f.svc.GenerateDiagram(context.Background(), teacher, stored.ID, "s1", "q1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Define force"}, diagrams.prompts)
	assert.Equal(t, "data:image/png;base64,AAAA", p.Sections[0].Questions[0].ImageURL)
	assert.Equal(t, models.DefaultImageWidth, p.Sections[0].Questions[0].ImageWidth)

	p, err = f.svc.ResizeImage(context.Background(), teacher, stored.ID, "s1", "q1", 80)
	require.NoError(t, err)
	assert.Equal(t, 80, p.Sections[0].Questions[0].ImageWidth)
}

func TestAttachImageRequiresDataURL(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	stored := storedPaper("t@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, nil)
	ctx := context.Background()

	_, err := f.svc.AttachImage(ctx, teacher, stored.ID, "s1", "q1", "https://example.com/a.png")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.AttachImage(ctx, teacher, stored.ID, "s1", "q1", "data:image/png;base64,!!!")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	p, err := f.svc.AttachImage(ctx, teacher, stored.ID, "s1", "q1", "data:image/png;base64,iVBORw0KGgo=")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", p.Sections[0].Questions[0].ImageURL)

	p, err = f.svc.RemoveImage(ctx, teacher, stored.ID, "s1", "q1")
	require.NoError(t, err)
	assert.Empty(t, p.Sections[0].Questions[0].ImageURL)
}

func TestPreviewRendersAnswerKey(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	stored := storedPaper("t@example.com", 0)
	f := newPaperFixture(t, []*models.User{teacher}, []*models.QuestionPaper{stored}, nil)

	html, err := f.svc.Preview(context.Background(), teacher, stored.ID, render.ModeAnswerKey)
	require.NoError(t, err)
	assert.Contains(t, html, render.AnswerUnavailable)
}
