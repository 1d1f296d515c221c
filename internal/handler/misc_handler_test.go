package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/repository"
	"github.com/kapilsaini46/rks/internal/service"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type stubExports struct {
	path string
}

func (s stubExports) Open(token string) (*os.File, string, error) {
	if token != "good" {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	f, err := os.Open(s.path)
	return f, "Term_Test_IX_Science.pdf", err
}

func TestExportFetch(t *testing.T) {
	p := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.3 test"), 0o600))
	r := newTestRouter(RouterConfig{Exports: NewExportHandler(stubExports{path: p})})

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/exports/good", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Term_Test_IX_Science.pdf")
	assert.Equal(t, "%PDF-1.3 test", w.Body.String())

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/exports/bad", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubSubscriptions struct {
	subscriptionService

	processed map[string]bool
	filter    repository.PaymentFilter
}

func (s *stubSubscriptions) Plans() []models.PricingTier {
	return []models.PricingTier{{Plan: models.PlanFree}, {Plan: models.PlanStarter, Price: 149}}
}

func (s *stubSubscriptions) PaymentQR(plan models.SubscriptionPlan) ([]byte, error) {
	if plan == models.PlanFree {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan cannot be purchased")
	}
	return []byte("\x89PNG"), nil
}

func (s *stubSubscriptions) ProcessRequest(_ context.Context, id string, approve bool, _ string, _ models.RequestMeta) (*models.PaymentRequest, error) {
	if _, done := s.processed[id]; done {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment request already processed")
	}
	s.processed[id] = approve
	return &models.PaymentRequest{ID: id}, nil
}

func (s *stubSubscriptions) ExportHistoryCSV(_ context.Context, filter repository.PaymentFilter) ([]byte, error) {
	s.filter = filter
	return []byte("ID,User\n"), nil
}

func TestSubscriptionRoutes(t *testing.T) {
	subs := &stubSubscriptions{processed: map[string]bool{}}
	r := newTestRouter(RouterConfig{Subscription: NewSubscriptionHandler(subs)})

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/plans/starter/qr", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/plans/free/qr", nil), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/r1/approve", nil), "teacher-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/r1/approve", nil), "admin-token")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/r1/reject", nil), "admin-token")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, map[string]bool{"r1": true}, subs.processed)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/admin/payments/export?status=pending", nil), "admin-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "payments.csv")
	require.NotNil(t, subs.filter.Status)
	assert.Equal(t, models.SubscriptionPending, *subs.filter.Status)
}

type stubPatterns struct {
	patternService

	input   service.PatternInput
	uploads []service.Upload
}

func (s *stubPatterns) Upsert(_ context.Context, in service.PatternInput, uploads []service.Upload) (*models.SamplePattern, error) {
	s.input = in
	s.uploads = uploads
	return &models.SamplePattern{ID: service.PatternID(in.ClassNum, in.Subject)}, nil
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+fileName+`"`)
		h.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPatternUpsertMultipart(t *testing.T) {
	patterns := &stubPatterns{}
	r := newTestRouter(RouterConfig{Patterns: NewPatternHandler(patterns, 1024)})

	body, contentType := multipartBody(t, map[string]string{"class_num": "X", "subject": "Social Science", "content": "Q1."},
		"syllabus", "syllabus.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/patterns", body)
	req.Header.Set("Content-Type", contentType)
	w := do(r, req, "admin-token")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "X_Social_Science")
	assert.Equal(t, "Social Science", patterns.input.Subject)
	require.Len(t, patterns.uploads, 1)
	assert.Equal(t, models.AttachmentSyllabus, patterns.uploads[0].Kind)
	assert.Equal(t, "application/pdf", patterns.uploads[0].MimeType)
	assert.Equal(t, []byte("%PDF-1.4"), patterns.uploads[0].Data)
}

func TestPatternUploadTooLarge(t *testing.T) {
	r := newTestRouter(RouterConfig{Patterns: NewPatternHandler(&stubPatterns{}, 4)})

	body, contentType := multipartBody(t, map[string]string{"class_num": "X", "subject": "Science"},
		"sample_paper", "paper.pdf", []byte("%PDF-1.4 too big"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/patterns", body)
	req.Header.Set("Content-Type", contentType)
	w := do(r, req, "admin-token")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubContent struct {
	contentService

	status models.TicketStatus
}

func (s *stubContent) CreateTicket(_ context.Context, actor *models.User, in service.TicketInput) (*models.SupportTicket, error) {
	return &models.SupportTicket{ID: "t1", UserEmail: actor.Email, Subject: in.Subject, Status: models.TicketOpen}, nil
}

func (s *stubContent) SetTicketStatus(_ context.Context, _ string, status models.TicketStatus) error {
	s.status = status
	return nil
}

func TestTicketRoutes(t *testing.T) {
	content := &stubContent{}
	r := newTestRouter(RouterConfig{Content: NewContentHandler(content, testUsers)})

	w := do(r, jsonRequest(http.MethodPost, "/api/v1/tickets", service.TicketInput{Subject: "Billing", Message: "Charged twice"}), "teacher-token")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "t@example.com")

	w = do(r, jsonRequest(http.MethodPatch, "/api/v1/tickets/t1", map[string]string{"status": "ARCHIVED"}), "admin-token")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, jsonRequest(http.MethodPatch, "/api/v1/tickets/t1", map[string]string{"status": "RESOLVED"}), "teacher-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, jsonRequest(http.MethodPatch, "/api/v1/tickets/t1", map[string]string{"status": "RESOLVED"}), "admin-token")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.TicketResolved, content.status)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)
}
