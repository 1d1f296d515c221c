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

// ContentRepository stores static pages and support tickets.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository constructs the repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// GetPage returns a stored page.
func (r *ContentRepository) GetPage(ctx context.Context, id string) (*models.ContentPage, error) {
	var page models.ContentPage
	if err := r.db.GetContext(ctx, &page, `SELECT id, title, content, last_updated FROM content_pages WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find content page: %w", err)
	}
	return &page, nil
}

// UpsertPage replaces a page.
func (r *ContentRepository) UpsertPage(ctx context.Context, page *models.ContentPage) error {
	const query = `INSERT INTO content_pages (id, title, content, last_updated) VALUES (:id, :title, :content, :last_updated)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, last_updated = EXCLUDED.last_updated`
	page.LastUpdated = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, query, page); err != nil {
		return fmt.Errorf("upsert content page: %w", err)
	}
	return nil
}

// CreateTicket stores a support ticket.
func (r *ContentRepository) CreateTicket(ctx context.Context, ticket *models.SupportTicket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	const query = `INSERT INTO support_tickets (id, user_email, subject, message, status, created_at, updated_at)
VALUES (:id, :user_email, :subject, :message, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		return fmt.Errorf("create support ticket: %w", err)
	}
	return nil
}

// ListTickets returns tickets newest first. An empty email lists every ticket.
func (r *ContentRepository) ListTickets(ctx context.Context, userEmail string) ([]models.SupportTicket, error) {
	query := `SELECT id, user_email, subject, message, status, created_at, updated_at FROM support_tickets`
	var args []interface{}
	if userEmail != "" {
		query += ` WHERE user_email = $1`
		args = append(args, userEmail)
	}
	query += ` ORDER BY created_at DESC`
	var tickets []models.SupportTicket
	if err := r.db.SelectContext(ctx, &tickets, query, args...); err != nil {
		return nil, fmt.Errorf("list support tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicketStatus sets a ticket's status.
func (r *ContentRepository) UpdateTicketStatus(ctx context.Context, id string, status models.TicketStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE support_tickets SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update support ticket: %w", err)
	}
	return expectAffected(res)
}

// CountTickets counts tickets in a status.
func (r *ContentRepository) CountTickets(ctx context.Context, status models.TicketStatus) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM support_tickets WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("count support tickets: %w", err)
	}
	return total, nil
}
