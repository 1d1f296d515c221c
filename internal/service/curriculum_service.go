package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/kapilsaini46/rks/internal/catalog"
	"github.com/kapilsaini46/rks/internal/curriculum"
	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

type configDocumentRepository interface {
	Get(ctx context.Context, key string) (*models.ConfigDocument, error)
	Upsert(ctx context.Context, doc *models.ConfigDocument) error
}

// CurriculumService serves the class/subject registry and the question-type labels. Both are stored as
// whole documents; mutations are serialised in-process and invalidate the cache.
type CurriculumService struct {
	repo    configDocumentRepository
	cache   *CacheService
	catalog *catalog.Catalog
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewCurriculumService constructs the service. cache may be nil.
func NewCurriculumService(repo configDocumentRepository, cache *CacheService, cat *catalog.Catalog, logger *zap.Logger) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &CurriculumService{repo: repo, cache: cache, catalog: cat, logger: logger}
}

func (s *CurriculumService) load(ctx context.Context, key string, dest interface{}, fallback func()) error {
	if s.cache.Get(ctx, key, dest) {
		return nil
	}
	doc, err := s.repo.Get(ctx, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fallback()
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+key)
	default:
		if err := doc.Value.Unmarshal(dest); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored "+key+" is corrupt")
		}
	}
	s.cache.Set(ctx, key, dest)
	return nil
}

func (s *CurriculumService) store(ctx context.Context, key string, value interface{}, actorID string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode "+key)
	}
	doc := &models.ConfigDocument{Key: key, Value: types.JSONText(raw)}
	if actorID != "" {
		doc.UpdatedBy = &actorID
	}
	if err := s.repo.Upsert(ctx, doc); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save "+key)
	}
	s.cache.Invalidate(ctx, key)
	s.logger.Info("curriculum document updated", zap.String("key", key), zap.String("actor_id", actorID))
	return nil
}

// Registry returns the class to subject mapping, falling back to the built-in default.
func (s *CurriculumService) Registry(ctx context.Context) (curriculum.Registry, error) {
	var reg curriculum.Registry
	if err := s.load(ctx, models.ConfigKeyCurriculum, &reg, func() {
		reg = curriculum.Registry(s.catalog.DefaultCurriculum())
	}); err != nil {
		return nil, err
	}
	return reg, nil
}

// QuestionTypes returns the question-type labels, falling back to the built-in default.
func (s *CurriculumService) QuestionTypes(ctx context.Context) (curriculum.QuestionTypes, error) {
	var labels curriculum.QuestionTypes
	if err := s.load(ctx, models.ConfigKeyQuestionTypes, &labels, func() {
		labels = curriculum.QuestionTypes(s.catalog.DefaultQuestionTypes())
	}); err != nil {
		return nil, err
	}
	return labels, nil
}

// ReconcileSubject maps subject onto the class's subject list.
func (s *CurriculumService) ReconcileSubject(ctx context.Context, class, subject string) (string, error) {
	reg, err := s.Registry(ctx)
	if err != nil {
		return "", err
	}
	return curriculum.ReconcileSubject(reg, class, subject), nil
}

func (s *CurriculumService) mutateRegistry(ctx context.Context, actorID string, fn func(curriculum.Registry) (curriculum.Registry, error)) (curriculum.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, err := s.Registry(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(reg)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, models.ConfigKeyCurriculum, next, actorID); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *CurriculumService) mutateTypes(ctx context.Context, actorID string, fn func(curriculum.QuestionTypes) (curriculum.QuestionTypes, error)) (curriculum.QuestionTypes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	labels, err := s.QuestionTypes(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(labels)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, models.ConfigKeyQuestionTypes, next, actorID); err != nil {
		return nil, err
	}
	return next, nil
}

// AddClass appends a class with no subjects.
func (s *CurriculumService) AddClass(ctx context.Context, name, actorID string) (curriculum.Registry, error) {
	return s.mutateRegistry(ctx, actorID, func(r curriculum.Registry) (curriculum.Registry, error) { return r.AddClass(name) })
}

// DeleteClass removes a class.
func (s *CurriculumService) DeleteClass(ctx context.Context, name, actorID string) (curriculum.Registry, error) {
	return s.mutateRegistry(ctx, actorID, func(r curriculum.Registry) (curriculum.Registry, error) { return r.DeleteClass(name) })
}

// AddSubject appends a subject to a class.
func (s *CurriculumService) AddSubject(ctx context.Context, class, subject, actorID string) (curriculum.Registry, error) {
	return s.mutateRegistry(ctx, actorID, func(r curriculum.Registry) (curriculum.Registry, error) { return r.AddSubject(class, subject) })
}

// DeleteSubject removes a subject from a class.
func (s *CurriculumService) DeleteSubject(ctx context.Context, class, subject, actorID string) (curriculum.Registry, error) {
	return s.mutateRegistry(ctx, actorID, func(r curriculum.Registry) (curriculum.Registry, error) { return r.DeleteSubject(class, subject) })
}

// AddQuestionType registers a label.
func (s *CurriculumService) AddQuestionType(ctx context.Context, label, actorID string) (curriculum.QuestionTypes, error) {
	return s.mutateTypes(ctx, actorID, func(q curriculum.QuestionTypes) (curriculum.QuestionTypes, error) { return q.Add(label) })
}

// DeleteQuestionType removes a label.
func (s *CurriculumService) DeleteQuestionType(ctx context.Context, label, actorID string) (curriculum.QuestionTypes, error) {
	return s.mutateTypes(ctx, actorID, func(q curriculum.QuestionTypes) (curriculum.QuestionTypes, error) { return q.Delete(label) })
}
