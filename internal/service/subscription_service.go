package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/catalog"
	"github.com/kapilsaini46/rks/internal/entitlement"
	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/repository"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
	"github.com/kapilsaini46/rks/pkg/export"
)

type subscriberRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type paymentRepository interface {
	Create(ctx context.Context, req *models.PaymentRequest) error
	FindByID(ctx context.Context, id string) (*models.PaymentRequest, error)
	UpdateStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
	List(ctx context.Context, filter repository.PaymentFilter) ([]models.PaymentRequest, error)
}

type qrEncoder interface {
	QR(amount int, note string) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// PaymentCallback is reported by the checkout flow once a payment succeeds.
type PaymentCallback struct {
	Plan      models.SubscriptionPlan `json:"plan" validate:"required"`
	PaymentID string                  `json:"payment_id" validate:"required"`
	Amount    int                     `json:"amount" validate:"gte=0"`
}

// PaymentRequestInput is a manual purchase backed by an uploaded payment proof.
type PaymentRequestInput struct {
	Plan     models.SubscriptionPlan `json:"plan" validate:"required"`
	ProofURL string                  `json:"proof_url" validate:"required"`
}

// SubscriptionService sells plans: gateway callbacks, manual requests and their admin review.
type SubscriptionService struct {
	users     subscriberRepository
	payments  paymentRepository
	catalog   *catalog.Catalog
	qr        qrEncoder
	csv       csvRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(users subscriberRepository, payments paymentRepository, cat *catalog.Catalog, qr qrEncoder, validate *validator.Validate, logger *zap.Logger) *SubscriptionService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		users:     users,
		payments:  payments,
		catalog:   cat,
		qr:        qr,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Plans lists the pricing catalog.
func (s *SubscriptionService) Plans() []models.PricingTier {
	return append([]models.PricingTier(nil), s.catalog.Plans...)
}

func (s *SubscriptionService) paidTier(plan models.SubscriptionPlan) (models.PricingTier, error) {
	tier, ok := s.catalog.Tier(plan)
	if !ok || tier.Price <= 0 {
		return models.PricingTier{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("plan %q cannot be purchased", plan))
	}
	return tier, nil
}

// PaymentQR renders the UPI QR code for the price of a plan.
func (s *SubscriptionService) PaymentQR(plan models.SubscriptionPlan) ([]byte, error) {
	tier, err := s.paidTier(plan)
	if err != nil {
		return nil, err
	}
	label := tier.Label
	if label == "" {
		label = string(tier.Plan)
	}
	png, err := s.qr.QR(tier.Price, fmt.Sprintf("%s %s plan", s.catalog.AppName, label))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build payment qr code")
	}
	return png, nil
}

func (s *SubscriptionService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// RecordSubscriptionPayment activates a plan after a confirmed checkout. Credits reset to the plan
// allotment and the validity window restarts.
func (s *SubscriptionService) RecordSubscriptionPayment(ctx context.Context, userID string, cb PaymentCallback) (*models.User, error) {
	if err := s.validator.Struct(cb); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment callback")
	}
	tier, err := s.paidTier(cb.Plan)
	if err != nil {
		return nil, err
	}
	if cb.Amount < tier.Price {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("amount %d is below the %s price", cb.Amount, tier.Plan))
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entitlement.ApplyGatewayPayment(user, tier, now)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate plan")
	}
	record := &models.PaymentRequest{
		UserEmail: user.Email,
		Plan:      tier.Plan,
		Amount:    cb.Amount,
		ProofURL:  cb.PaymentID,
		Status:    models.SubscriptionActive,
		Date:      now,
	}
	if err := s.payments.Create(ctx, record); err != nil {
		s.logger.Error("plan activated but payment record not stored",
			zap.String("user", user.Email), zap.String("payment_id", cb.PaymentID), zap.Error(err))
	}
	s.logger.Info("subscription activated", zap.String("user", user.Email), zap.String("plan", string(tier.Plan)))
	return user, nil
}

// CreatePaymentRequest files a manual purchase for admin review and marks the account pending.
func (s *SubscriptionService) CreatePaymentRequest(ctx context.Context, userID string, in PaymentRequestInput) (*models.PaymentRequest, error) {
	in.ProofURL = strings.TrimSpace(in.ProofURL)
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "payment proof and plan are required")
	}
	tier, err := s.paidTier(in.Plan)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	req := &models.PaymentRequest{
		UserEmail: user.Email,
		Plan:      tier.Plan,
		Amount:    tier.Price,
		ProofURL:  in.ProofURL,
		Status:    models.SubscriptionPending,
		Date:      s.now(),
	}
	if err := s.payments.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store payment request")
	}
	user.SubscriptionStatus = models.SubscriptionPending
	proof := in.ProofURL
	user.PaymentProofURL = &proof
	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account status")
	}
	return req, nil
}

// ProcessRequest approves or rejects a pending request. Approval adds the plan allotment to the
// remaining credits and starts the approval validity window.
func (s *SubscriptionService) ProcessRequest(ctx context.Context, id string, approve bool, actorID string, meta models.RequestMeta) (*models.PaymentRequest, error) {
	req, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment request")
	}
	if req.Status != models.SubscriptionPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment request already processed")
	}
	user, err := s.users.FindByEmail(ctx, req.UserEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requesting user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	tier, ok := s.catalog.Tier(req.Plan)
	if approve && !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("plan %q is no longer sold", req.Plan))
	}

	status, action := models.SubscriptionRejected, models.AuditActionPaymentReject
	if approve {
		status, action = models.SubscriptionActive, models.AuditActionPaymentApprove
	}
	if err := s.payments.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment request")
	}
	req.Status = status

	if approve {
		entitlement.ApplyApprovedRequest(user, tier, s.now())
	} else {
		user.SubscriptionStatus = models.SubscriptionRejected
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}

	payload, _ := json.Marshal(map[string]interface{}{"plan": req.Plan, "user": req.UserEmail, "status": status})
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "payment_requests",
		ResourceID: &req.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record payment audit log", zap.Error(err))
	}
	return req, nil
}

// History lists payment records, newest first.
func (s *SubscriptionService) History(ctx context.Context, filter repository.PaymentFilter) ([]models.PaymentRequest, error) {
	items, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return items, nil
}

var paymentHeaders = []string{"ID", "User", "Plan", "Amount", "Status", "Proof", "Date"}

// ExportHistoryCSV renders the payment history as CSV.
func (s *SubscriptionService) ExportHistoryCSV(ctx context.Context, filter repository.PaymentFilter) ([]byte, error) {
	items, err := s.History(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.UserEmail,
			string(item.Plan),
			strconv.Itoa(item.Amount),
			string(item.Status),
			item.ProofURL,
			item.Date.UTC().Format(time.RFC3339),
		})
	}
	out, err := s.csv.Render(export.Dataset{Headers: paymentHeaders, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export payments")
	}
	return out, nil
}
