package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/service"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAudits struct {
	logs []*models.AuditLog
}

func (r *recordingAudits) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type countingLimiter struct {
	remaining int
}

func (l *countingLimiter) Allow(string) bool {
	if l.remaining == 0 {
		return false
	}
	l.remaining--
	return true
}

var tokens = stubTokens{
	"teacher": {UserID: "u1", Role: models.RoleTeacher},
	"admin":   {UserID: "a1", Role: models.RoleAdmin},
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "forged").Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic teacher")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ok := serve(r, http.MethodGet, "/me", "teacher")
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "u1", ok.Body.String())
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", JWT(tokens), AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", "teacher").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/admin", "admin").Code)
}

func TestRateLimitByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimitByIP(&countingLimiter{remaining: 1}), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login", "").Code)
	w := serve(r, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestAuditRecordsSuccessfulWritesOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audits := &recordingAudits{}
	r := gin.New()
	r.DELETE("/classes/:class", JWT(tokens), Audit(audits, models.AuditActionCurriculumWrite, "curriculum", "class"), func(c *gin.Context) {
		if c.Param("class") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodDelete, "/classes/IX", "admin")
	serve(r, http.MethodDelete, "/classes/missing", "admin")

	require.Len(t, audits.logs, 1)
	log := audits.logs[0]
	assert.Equal(t, models.AuditActionCurriculumWrite, log.Action)
	assert.Equal(t, "IX", *log.ResourceID)
	assert.Equal(t, "a1", *log.UserID)
}

func TestMetricsLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/papers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/papers/p1", "")
	serve(r, http.MethodGet, "/papers/p2", "")
	serve(r, http.MethodGet, "/wp-login.php", "")

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	paths := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" {
					paths[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"/papers/:id": 2, unmatchedRoute: 1}, paths)
}
