package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

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

var testTokens = stubTokens{
	"teacher-token": {UserID: "u1", Role: models.RoleTeacher, Email: "t@example.com"},
	"admin-token":   {UserID: "a1", Role: models.RoleAdmin, Email: "admin@example.com"},
}

type stubUsers map[string]*models.User

func (s stubUsers) CurrentUser(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
}

var testUsers = stubUsers{
	"u1": {ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree, Credits: 1},
	"a1": {ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin},
}

type stubOverview struct{}

func (stubOverview) Overview(context.Context) (*service.Overview, error) {
	return &service.Overview{Users: 3, Teachers: 2}, nil
}

func newTestRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if cfg.Tokens == nil {
		cfg.Tokens = testTokens
	}
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), cfg)
	return r
}

func do(r http.Handler, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(RouterConfig{
		Papers:   NewPaperHandler(&stubPapers{}, nil, testUsers),
		Overview: NewOverviewHandler(stubOverview{}),
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/admin/overview", nil), "teacher-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/admin/overview", nil), "admin-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"teachers":2`)
}

func TestUnknownAccountIsUnauthorized(t *testing.T) {
	tokens := stubTokens{"ghost": {UserID: "gone", Role: models.RoleTeacher}}
	r := newTestRouter(RouterConfig{Tokens: tokens, Papers: NewPaperHandler(&stubPapers{}, nil, testUsers)})

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil), "ghost")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
