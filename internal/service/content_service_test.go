package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/catalog"
	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type fakeContentStore struct {
	pages   map[string]*models.ContentPage
	tickets []*models.SupportTicket
}

func (f *fakeContentStore) GetPage(_ context.Context, id string) (*models.ContentPage, error) {
	p, ok := f.pages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeContentStore) UpsertPage(_ context.Context, page *models.ContentPage) error {
	if f.pages == nil {
		f.pages = map[string]*models.ContentPage{}
	}
	f.pages[page.ID] = page
	return nil
}

func (f *fakeContentStore) CreateTicket(_ context.Context, t *models.SupportTicket) error {
	t.ID = fmt.Sprintf("t%d", len(f.tickets)+1)
	f.tickets = append(f.tickets, t)
	return nil
}

func (f *fakeContentStore) ListTickets(_ context.Context, email string) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, t := range f.tickets {
		if email == "" || t.UserEmail == email {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeContentStore) UpdateTicketStatus(_ context.Context, id string, status models.TicketStatus) error {
	for _, t := range f.tickets {
		if t.ID == id {
			t.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeContentStore) CountTickets(_ context.Context, status models.TicketStatus) (int, error) {
	n := 0
	for _, t := range f.tickets {
		if t.Status == status {
			n++
		}
	}
	return n, nil
}

func TestContentPageDefaultsAndUpsert(t *testing.T) {
	store := &fakeContentStore{}
	svc := NewContentService(store, catalog.Default(), nil, zap.NewNop())
	ctx := context.Background()

	page, err := svc.Page(ctx, "privacy")
	require.NoError(t, err)
	assert.NotEmpty(t, page.Content)

	_, err = svc.Page(ctx, "careers")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.UpsertPage(ctx, "privacy", PageInput{Title: "Privacy"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpsertPage(ctx, "privacy", PageInput{Title: " Privacy Policy ", Content: "We keep nothing."})
	require.NoError(t, err)
	page, err = svc.Page(ctx, "privacy")
	require.NoError(t, err)
	assert.Equal(t, "Privacy Policy", page.Title)
	assert.Equal(t, "We keep nothing.", page.Content)
}

func TestSupportTickets(t *testing.T) {
	store := &fakeContentStore{}
	svc := NewContentService(store, catalog.Default(), nil, zap.NewNop())
	ctx := context.Background()
	teacher := &models.User{Email: "t@example.com", Role: models.RoleTeacher}
	other := &models.User{Email: "o@example.com", Role: models.RoleTeacher}
	admin := &models.User{Email: "admin@example.com", Role: models.RoleAdmin}

	ticket, err := svc.CreateTicket(ctx, teacher, TicketInput{Subject: "PDF font", Message: "Hindi text is garbled"})
	require.NoError(t, err)
	assert.Equal(t, models.TicketOpen, ticket.Status)
	_, err = svc.CreateTicket(ctx, other, TicketInput{Subject: "Credits", Message: "Please top up"})
	require.NoError(t, err)
	_, err = svc.CreateTicket(ctx, other, TicketInput{Subject: " ", Message: "x"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	mine, err := svc.Tickets(ctx, teacher)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	all, err := svc.Tickets(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.SetTicketStatus(ctx, ticket.ID, models.TicketResolved))
	assert.Equal(t, models.TicketResolved, store.tickets[0].Status)
	assert.ErrorIs(t, svc.SetTicketStatus(ctx, ticket.ID, "ARCHIVED"), appErrors.ErrValidation)
	assert.ErrorIs(t, svc.SetTicketStatus(ctx, "missing", models.TicketClosed), appErrors.ErrNotFound)
}
