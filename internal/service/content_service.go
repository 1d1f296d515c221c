package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/catalog"
	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type contentRepository interface {
	GetPage(ctx context.Context, id string) (*models.ContentPage, error)
	UpsertPage(ctx context.Context, page *models.ContentPage) error
	CreateTicket(ctx context.Context, ticket *models.SupportTicket) error
	ListTickets(ctx context.Context, userEmail string) ([]models.SupportTicket, error)
	UpdateTicketStatus(ctx context.Context, id string, status models.TicketStatus) error
}

// PageInput is the admin form for a content page.
type PageInput struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}

// TicketInput is a teacher's support message.
type TicketInput struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// ContentService serves the static pages and the support desk.
type ContentService struct {
	repo      contentRepository
	catalog   *catalog.Catalog
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContentService constructs a ContentService.
func NewContentService(repo contentRepository, cat *catalog.Catalog, validate *validator.Validate, logger *zap.Logger) *ContentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentService{repo: repo, catalog: cat, validator: validate, logger: logger}
}

// Page returns a stored page, or the built-in text when the admins never edited it.
func (s *ContentService) Page(ctx context.Context, id string) (*models.ContentPage, error) {
	def, known := s.catalog.DefaultPage(id)
	if !known {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
	}
	page, err := s.repo.GetPage(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.ContentPage{ID: def.ID, Title: def.Title, Content: def.Content}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load page")
	}
	return page, nil
}

// UpsertPage replaces the text of a page.
func (s *ContentService) UpsertPage(ctx context.Context, id string, in PageInput) (*models.ContentPage, error) {
	if _, known := s.catalog.DefaultPage(id); !known {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title and content are required")
	}
	page := &models.ContentPage{ID: id, Title: strings.TrimSpace(in.Title), Content: in.Content}
	if err := s.repo.UpsertPage(ctx, page); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save page")
	}
	return page, nil
}

// CreateTicket opens a support ticket for the actor.
func (s *ContentService) CreateTicket(ctx context.Context, actor *models.User, in TicketInput) (*models.SupportTicket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "subject and message are required")
	}
	ticket := &models.SupportTicket{UserEmail: actor.Email, Subject: in.Subject, Message: in.Message, Status: models.TicketOpen}
	if err := s.repo.CreateTicket(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ticket")
	}
	return ticket, nil
}

// Tickets lists the actor's tickets, or every ticket for admins.
func (s *ContentService) Tickets(ctx context.Context, actor *models.User) ([]models.SupportTicket, error) {
	email := actor.Email
	if actor.IsAdmin() {
		email = ""
	}
	tickets, err := s.repo.ListTickets(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	return tickets, nil
}

// SetTicketStatus moves a ticket through OPEN, RESOLVED and CLOSED.
func (s *ContentService) SetTicketStatus(ctx context.Context, id string, status models.TicketStatus) error {
	switch status {
	case models.TicketOpen, models.TicketResolved, models.TicketClosed:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown ticket status")
	}
	if err := s.repo.UpdateTicketStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ticket")
	}
	s.logger.Info("ticket status changed", zap.String("ticket_id", id), zap.String("status", string(status)))
	return nil
}
