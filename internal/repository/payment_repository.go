package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kapilsaini46/rks/internal/models"
)

const paymentColumns = `id, user_email, plan, amount, proof_url, status, date, updated_at`

// PaymentFilter narrows the payment history.
type PaymentFilter struct {
	Status    *models.SubscriptionStatus
	UserEmail string
}

// PaymentRepository persists payment requests and gateway receipts.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create stores a payment record.
func (r *PaymentRepository) Create(ctx context.Context, req *models.PaymentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.Date.IsZero() {
		req.Date = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO payment_requests (` + paymentColumns + `) VALUES (:id, :user_email, :plan, :amount, :proof_url, :status, :date, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create payment request: %w", err)
	}
	return nil
}

// FindByID returns a payment record.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment request: %w", err)
	}
	return &req, nil
}

// UpdateStatus moves a PENDING request to its final status. It returns sql.ErrNoRows when the request
// was already processed.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	const query = `UPDATE payment_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payment request: %w", err)
	}
	return expectAffected(res)
}

// List returns payment records newest first.
func (r *PaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.PaymentRequest, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_requests WHERE 1=1`
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.UserEmail != "" {
		args = append(args, filter.UserEmail)
		query += fmt.Sprintf(" AND user_email = $%d", len(args))
	}
	query += " ORDER BY date DESC"

	var reqs []models.PaymentRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	return reqs, nil
}

// CountByStatus counts records in a status.
func (r *PaymentRepository) CountByStatus(ctx context.Context, status models.SubscriptionStatus) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payment_requests WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("count payment requests: %w", err)
	}
	return total, nil
}
