package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

func TestUserServiceCreateTeacherDefaults(t *testing.T) {
	repo := newFakeUserStore()
	svc := NewUserService(repo, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "New@Example.com", Name: "New Teacher", Role: models.RoleTeacher, Password: "secret1",
		Plan: models.PlanPremium,
	}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, 1, user.Credits)
	assert.Equal(t, models.PlanFree, user.SubscriptionPlan)
	assert.Equal(t, models.SubscriptionActive, user.SubscriptionStatus)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestUserServiceCreateKeepsExplicitCredits(t *testing.T) {
	svc := NewUserService(newFakeUserStore(), nil, zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "pro@example.com", Name: "Pro", Role: models.RoleTeacher, Password: "secret1",
		Credits: 10, Plan: models.PlanProfessional,
	}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 10, user.Credits)
	assert.Equal(t, models.PlanProfessional, user.SubscriptionPlan)
}

func TestUserServiceCreateDuplicate(t *testing.T) {
	repo := newFakeUserStore(&models.User{ID: "u1", Email: "dup@example.com"})
	svc := NewUserService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "dup@example.com", Name: "D", Role: models.RoleTeacher, Password: "secret1"}, "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)
}

func TestUserServiceUpdateEntitlements(t *testing.T) {
	repo := newFakeUserStore(&models.User{ID: "u1", Email: "t@example.com", Role: models.RoleTeacher, SubscriptionPlan: models.PlanFree, Credits: 1})
	svc := NewUserService(repo, nil, zap.NewNop())

	credits := 12
	plan := models.PlanPremium
	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	user, err := svc.Update(context.Background(), "u1", UpdateUserRequest{Credits: &credits, Plan: &plan, ExpiryDate: &expiry}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 12, user.Credits)

	stored := repo.get("u1")
	assert.Equal(t, models.PlanPremium, stored.SubscriptionPlan)
	require.NotNil(t, stored.SubscriptionExpiryDate)
	assert.Equal(t, expiry, *stored.SubscriptionExpiryDate)
}

func TestUserServiceUpdateRejectsBadPlan(t *testing.T) {
	repo := newFakeUserStore(&models.User{ID: "u1"})
	svc := NewUserService(repo, nil, zap.NewNop())

	plan := models.SubscriptionPlan("GOLD")
	_, err := svc.Update(context.Background(), "u1", UpdateUserRequest{Plan: &plan}, "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceDelete(t *testing.T) {
	repo := newFakeUserStore(&models.User{ID: "admin-1", Role: models.RoleAdmin}, &models.User{ID: "u1", Email: "t@example.com"})
	svc := NewUserService(repo, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "admin-1", "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), "u1", "admin-1", models.RequestMeta{}))
	_, err = svc.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
