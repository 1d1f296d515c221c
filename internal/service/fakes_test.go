package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/kapilsaini46/rks/internal/entitlement"
	"github.com/kapilsaini46/rks/internal/models"
	"github.com/kapilsaini46/rks/internal/paper"
	"github.com/kapilsaini46/rks/internal/repository"
)

// fakeUserStore is an in-memory user repository shared by the service tests.
type fakeUserStore struct {
	mu            sync.Mutex
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	auditLogs     []*models.AuditLog
	updates       int
	updateErr     error
	lastLogin     bool
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: map[string]*models.User{}, refreshTokens: map[string]*models.RefreshToken{}}
	for _, u := range users {
		cp := *u
		s.users[u.ID] = &cp
	}
	return s
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *fakeUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *user
	s.users[user.ID] = &cp
	s.updates++
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (s *fakeUserStore) CountByRole(_ context.Context, role *models.UserRole) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if role == nil || u.Role == *role {
			n++
		}
	}
	return n, nil
}

func (s *fakeUserStore) UpdateLastLogin(context.Context, string, time.Time) error {
	s.lastLogin = true
	return nil
}

func (s *fakeUserStore) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	for _, t := range s.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (s *fakeUserStore) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *fakeUserStore) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := s.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (s *fakeUserStore) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, t := range s.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (s *fakeUserStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, log)
	return nil
}

func (s *fakeUserStore) ConsumeCredit(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.Credits <= 0 {
		return 0, sql.ErrNoRows
	}
	entitlement.ConsumeCredit(u)
	return u.Credits, nil
}

func (s *fakeUserStore) RefundCredit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Credits++
	return nil
}

func (s *fakeUserStore) get(id string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

// fakePaperStore is an in-memory paper repository.
type fakePaperStore struct {
	mu        sync.Mutex
	papers    map[string]*models.QuestionPaper
	createErr error
	updates   int
}

func newFakePaperStore(papers ...*models.QuestionPaper) *fakePaperStore {
	s := &fakePaperStore{papers: map[string]*models.QuestionPaper{}}
	for _, p := range papers {
		s.papers[p.ID] = paper.Clone(p)
	}
	return s
}

func (s *fakePaperStore) Create(_ context.Context, p *models.QuestionPaper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.papers[p.ID] = paper.Clone(p)
	return nil
}

func (s *fakePaperStore) FindByID(_ context.Context, id string) (*models.QuestionPaper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return paper.Clone(p), nil
}

func (s *fakePaperStore) Update(_ context.Context, p *models.QuestionPaper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.papers[p.ID]; !ok {
		return sql.ErrNoRows
	}
	s.papers[p.ID] = paper.Clone(p)
	s.updates++
	return nil
}

func (s *fakePaperStore) ConsumeDownload(_ context.Context, id string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok || (limit >= 0 && p.DownloadCount >= limit) {
		return 0, sql.ErrNoRows
	}
	p.DownloadCount++
	return p.DownloadCount, nil
}

func (s *fakePaperStore) SetVisibility(_ context.Context, p *models.QuestionPaper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.papers[p.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.VisibleToTeacher = p.VisibleToTeacher
	stored.VisibleToAdmin = p.VisibleToAdmin
	return nil
}

func (s *fakePaperStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.papers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.papers, id)
	return nil
}

func (s *fakePaperStore) List(_ context.Context, filter models.PaperFilter) ([]models.QuestionPaper, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QuestionPaper
	for _, p := range s.papers {
		if filter.CreatedBy != "" && p.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.VisibleTo != "" && !paper.VisibleTo(p, filter.VisibleTo) {
			continue
		}
		out = append(out, *paper.Clone(p))
	}
	return out, len(out), nil
}

func (s *fakePaperStore) Count(ctx context.Context, filter models.PaperFilter) (int, error) {
	_, n, err := s.List(ctx, filter)
	return n, err
}

func (s *fakePaperStore) get(id string) *models.QuestionPaper {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return nil
	}
	return paper.Clone(p)
}

// fakePaymentStore is an in-memory payment repository.
type fakePaymentStore struct {
	mu       sync.Mutex
	requests map[string]*models.PaymentRequest
	order    []string
}

func newFakePaymentStore(reqs ...*models.PaymentRequest) *fakePaymentStore {
	s := &fakePaymentStore{requests: map[string]*models.PaymentRequest{}}
	for _, r := range reqs {
		s.requests[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *fakePaymentStore) Create(_ context.Context, req *models.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = fmt.Sprintf("pay-%d", len(s.order)+1)
	}
	cp := *req
	s.requests[req.ID] = &cp
	s.order = append(s.order, req.ID)
	return nil
}

func (s *fakePaymentStore) FindByID(_ context.Context, id string) (*models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (s *fakePaymentStore) UpdateStatus(_ context.Context, id string, status models.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != models.SubscriptionPending {
		return sql.ErrNoRows
	}
	r.Status = status
	return nil
}

func (s *fakePaymentStore) List(_ context.Context, filter repository.PaymentFilter) ([]models.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentRequest
	for _, id := range s.order {
		r := s.requests[id]
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.UserEmail != "" && r.UserEmail != filter.UserEmail {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *fakePaymentStore) CountByStatus(ctx context.Context, status models.SubscriptionStatus) (int, error) {
	items, err := s.List(ctx, repository.PaymentFilter{Status: &status})
	return len(items), err
}
