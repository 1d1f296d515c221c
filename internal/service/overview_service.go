package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type userCounter interface {
	CountByRole(ctx context.Context, role *models.UserRole) (int, error)
}

type paperCounter interface {
	Count(ctx context.Context, filter models.PaperFilter) (int, error)
}

type paymentCounter interface {
	CountByStatus(ctx context.Context, status models.SubscriptionStatus) (int, error)
}

type ticketCounter interface {
	CountTickets(ctx context.Context, status models.TicketStatus) (int, error)
}

// Overview is the admin dashboard headline.
type Overview struct {
	Users           int `json:"users"`
	Teachers        int `json:"teachers"`
	Papers          int `json:"papers"`
	PendingPayments int `json:"pending_payments"`
	OpenTickets     int `json:"open_tickets"`
}

// OverviewService gathers the admin dashboard counters.
type OverviewService struct {
	users    userCounter
	papers   paperCounter
	payments paymentCounter
	tickets  ticketCounter
	logger   *zap.Logger
}

// NewOverviewService constructs an OverviewService.
func NewOverviewService(users userCounter, papers paperCounter, payments paymentCounter, tickets ticketCounter, logger *zap.Logger) *OverviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverviewService{users: users, papers: papers, payments: payments, tickets: tickets, logger: logger}
}

// Overview runs every count concurrently and fails if any of them fails.
func (s *OverviewService) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	teacher := models.RoleTeacher
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Users, err = s.users.CountByRole(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		out.Teachers, err = s.users.CountByRole(gctx, &teacher)
		return err
	})
	g.Go(func() (err error) {
		out.Papers, err = s.papers.Count(gctx, models.PaperFilter{})
		return err
	})
	g.Go(func() (err error) {
		out.PendingPayments, err = s.payments.CountByStatus(gctx, models.SubscriptionPending)
		return err
	})
	g.Go(func() (err error) {
		out.OpenTickets, err = s.tickets.CountTickets(gctx, models.TicketOpen)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("overview counts failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overview")
	}
	return &out, nil
}
