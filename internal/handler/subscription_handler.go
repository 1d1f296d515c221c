package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/repository"
	"github.com/kapilsaini46/rks/internal/service"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/response"
)

type subscriptionService interface {
	Plans() []models.PricingTier
	PaymentQR(plan models.SubscriptionPlan) ([]byte, error)
	RecordSubscriptionPayment(ctx context.Context, userID string, cb service.PaymentCallback) (*models.User, error)
	CreatePaymentRequest(ctx context.Context, userID string, in service.PaymentRequestInput) (*models.PaymentRequest, error)
	ProcessRequest(ctx context.Context, id string, approve bool, actorID string, meta models.RequestMeta) (*models.PaymentRequest, error)
	History(ctx context.Context, filter repository.PaymentFilter) ([]models.PaymentRequest, error)
	ExportHistoryCSV(ctx context.Context, filter repository.PaymentFilter) ([]byte, error)
}

// SubscriptionHandler exposes plans, checkout callbacks and the manual payment review.
type SubscriptionHandler struct {
	service subscriptionService
}

// NewSubscriptionHandler builds a new handler.
func NewSubscriptionHandler(svc subscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: svc}
}

// Plans godoc
// @Summary Pricing catalog
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Plans(), nil)
}

// QR godoc
// @Summary UPI QR code for a plan price
// @Tags Subscriptions
// @Produce png
// @Param plan path string true "Plan"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /plans/{plan}/qr [get]
func (h *SubscriptionHandler) QR(c *gin.Context) {
	plan := models.SubscriptionPlan(strings.ToUpper(c.Param("plan")))
	png, err := h.service.PaymentQR(plan)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// RecordPayment godoc
// @Summary Activate a plan after checkout
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param payload body service.PaymentCallback true "Checkout result"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /subscriptions/payments [post]
func (h *SubscriptionHandler) RecordPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var cb service.PaymentCallback
	if !bindJSON(c, &cb, "invalid payment payload") {
		return
	}
	user, err := h.service.RecordSubscriptionPayment(c.Request.Context(), claims.UserID, cb)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// CreateRequest godoc
// @Summary Submit a manual payment for review
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param payload body service.PaymentRequestInput true "Plan and proof"
// @Success 201 {object} response.Envelope
// @Router /subscriptions/requests [post]
func (h *SubscriptionHandler) CreateRequest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var in service.PaymentRequestInput
	if !bindJSON(c, &in, "invalid payment request") {
		return
	}
	req, err := h.service.CreatePaymentRequest(c.Request.Context(), claims.UserID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

func paymentFilter(c *gin.Context) repository.PaymentFilter {
	filter := repository.PaymentFilter{UserEmail: strings.ToLower(strings.TrimSpace(c.Query("user")))}
	if status := c.Query("status"); status != "" {
		s := models.SubscriptionStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	return filter
}

// History godoc
// @Summary Payment history
// @Tags Admin
// @Produce json
// @Param status query string false "PENDING, ACTIVE or REJECTED"
// @Param user query string false "User email"
// @Success 200 {object} response.Envelope
// @Router /admin/payments [get]
func (h *SubscriptionHandler) History(c *gin.Context) {
	items, err := h.service.History(c.Request.Context(), paymentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ExportHistory godoc
// @Summary Payment history as CSV
// @Tags Admin
// @Produce text/csv
// @Success 200 {file} file
// @Router /admin/payments/export [get]
func (h *SubscriptionHandler) ExportHistory(c *gin.Context) {
	out, err := h.service.ExportHistoryCSV(c.Request.Context(), paymentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "text/csv", "payments.csv", out)
}

// Approve godoc
// @Summary Approve a manual payment request
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/payments/{id}/approve [post]
func (h *SubscriptionHandler) Approve(c *gin.Context) {
	h.process(c, true)
}

// Reject godoc
// @Summary Reject a manual payment request
// @Tags Admin
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/payments/{id}/reject [post]
func (h *SubscriptionHandler) Reject(c *gin.Context) {
	h.process(c, false)
}

func (h *SubscriptionHandler) process(c *gin.Context, approve bool) {
	req, err := h.service.ProcessRequest(c.Request.Context(), c.Param("id"), approve, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}
