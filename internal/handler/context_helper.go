package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/middleware"
	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/response"
)

// userResolver loads the account behind verified claims, applying plan expiry.
type userResolver interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// currentUser writes the error response itself and returns nil when the caller cannot be resolved.
func currentUser(c *gin.Context, users userResolver) *models.User {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	user, err := users.CurrentUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil
	}
	return user
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindJSON(c *gin.Context, dest interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, msg))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return fallback
}
