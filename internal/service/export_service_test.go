package service

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/render"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/export"
	"github.com/kapilsaini46/rks/pkg/jobs"
	"github.com/kapilsaini46/rks/pkg/storage"
)

type exportFixture struct {
	svc     *ExportService
	papers  *fakePaperStore
	users   *fakeUserStore
	store   *storage.LocalStorage
	metrics *MetricsService
}

func newExportFixture(t *testing.T, users []*models.User, papers ...*models.QuestionPaper) *exportFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := &exportFixture{
		papers:  newFakePaperStore(papers...),
		users:   newFakeUserStore(users...),
		store:   store,
		metrics: NewMetricsService(),
	}
	paperSvc := NewPaperService(PaperDeps{Papers: f.papers, Credits: f.users, Bank: &stubBank{}}, nil, zap.NewNop())
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	f.svc = NewExportService(paperSvc, f.papers, f.users, store, signer, f.metrics,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), nil)
	return f
}

func TestDownloadMeteredPlanOnce(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanStarter}
	stored := storedPaper("t@example.com", 0)
	f := newExportFixture(t, []*models.User{teacher}, stored)
	ctx := context.Background()

	res, err := f.svc.Download(ctx, teacher, stored.ID, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DownloadCount)
	require.Len(t, res.Files, 2)
	assert.Equal(t, render.ModePaper, res.Files[0].Mode)
	assert.Equal(t, "Term_Test_IX_Science.pdf", res.Files[0].Filename)
	assert.Equal(t, "Term_Test_IX_Science_AnswerKey.pdf", res.Files[1].Filename)
	assert.Contains(t, res.Files[0].URL, "/api/v1/exports/")

	_, err = f.svc.Download(ctx, teacher, stored.ID, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrQuotaExceeded)
	assert.Equal(t, 1, f.papers.get(stored.ID).DownloadCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.downloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.quotaDenials.WithLabelValues(QuotaActionDownload)))
	require.Len(t, f.users.auditLogs, 1)
	assert.Equal(t, models.AuditActionPaperDownload, f.users.auditLogs[0].Action)
}

func TestDownloadPremiumIsUnlimited(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanPremium}
	stored := storedPaper("t@example.com", 3)
	f := newExportFixture(t, []*models.User{teacher}, stored)

	res, err := f.svc.Download(context.Background(), teacher, stored.ID, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.DownloadCount)
}

func TestDownloadByAdminIsNotCounted(t *testing.T) {
	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}
	stored := storedPaper("t@example.com", 1)
	f := newExportFixture(t, []*models.User{admin}, stored)

	res, err := f.svc.Download(context.Background(), admin, stored.ID, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DownloadCount)
	assert.Equal(t, 1, f.papers.get(stored.ID).DownloadCount)
}

func TestDownloadHindiWithoutFontConsumesNothing(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanStarter}
	stored := storedPaper("t@example.com", 0)
	stored.Subject = "Hindi"
	f := newExportFixture(t, []*models.User{teacher}, stored)

	_, err := f.svc.Download(context.Background(), teacher, stored.ID, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.ErrorIs(t, err, export.ErrUnicodeFontRequired)
	assert.Equal(t, 0, f.papers.get(stored.ID).DownloadCount)
	assert.Empty(t, f.users.auditLogs)
}

func TestOpenSignedExport(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree}
	stored := storedPaper("t@example.com", 0)
	f := newExportFixture(t, []*models.User{teacher}, stored)

	res, err := f.svc.Download(context.Background(), teacher, stored.ID, models.RequestMeta{})
	require.NoError(t, err)

	file, name, err := f.svc.Open(res.Files[1].Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "Term_Test_IX_Science_AnswerKey.pdf", name)
	head := make([]byte, 4)
	_, err = io.ReadFull(file, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(head))

	_, _, err = f.svc.Open("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCleanupJobRemovesExpiredExports(t *testing.T) {
	teacher := &models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanPremium}
	stored := storedPaper("t@example.com", 0)
	f := newExportFixture(t, []*models.User{teacher}, stored)

	res, err := f.svc.Download(context.Background(), teacher, stored.ID, models.RequestMeta{})
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	for _, file := range res.Files {
		p, err := f.store.Path(file.RelativePath)
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(p, old, old))
	}

	q := jobs.NewQueue("exports-test", jobs.QueueConfig{Workers: 1})
	f.svc.RegisterJobs(q)
	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(jobs.Job{ID: "cleanup-1", Type: CleanupJobType}))

	require.Eventually(t, func() bool {
		p, _ := f.store.Path(res.Files[0].RelativePath)
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}
