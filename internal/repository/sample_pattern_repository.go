package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kapilsaini46/rks/internal/models"
)

// SamplePatternRepository persists admin style guidance per class and subject.
type SamplePatternRepository struct {
	db *sqlx.DB
}

// NewSamplePatternRepository constructs the repository.
func NewSamplePatternRepository(db *sqlx.DB) *SamplePatternRepository {
	return &SamplePatternRepository{db: db}
}

// Get returns the pattern stored under id.
func (r *SamplePatternRepository) Get(ctx context.Context, id string) (*models.SamplePattern, error) {
	const query = `SELECT id, class_num, subject, content, attachments, updated_at FROM sample_patterns WHERE id = $1`
	var pattern models.SamplePattern
	if err := r.db.GetContext(ctx, &pattern, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find sample pattern: %w", err)
	}
	return &pattern, nil
}

// List returns every pattern ordered by class and subject.
func (r *SamplePatternRepository) List(ctx context.Context) ([]models.SamplePattern, error) {
	const query = `SELECT id, class_num, subject, content, attachments, updated_at FROM sample_patterns ORDER BY class_num, subject`
	var patterns []models.SamplePattern
	if err := r.db.SelectContext(ctx, &patterns, query); err != nil {
		return nil, fmt.Errorf("list sample patterns: %w", err)
	}
	return patterns, nil
}

// Upsert replaces the pattern stored under pattern.ID.
func (r *SamplePatternRepository) Upsert(ctx context.Context, pattern *models.SamplePattern) error {
	const query = `INSERT INTO sample_patterns (id, class_num, subject, content, attachments, updated_at)
VALUES (:id, :class_num, :subject, :content, :attachments, :updated_at)
ON CONFLICT (id)
DO UPDATE SET class_num = EXCLUDED.class_num, subject = EXCLUDED.subject, content = EXCLUDED.content,
              attachments = EXCLUDED.attachments, updated_at = EXCLUDED.updated_at`
	pattern.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, query, pattern); err != nil {
		return fmt.Errorf("upsert sample pattern: %w", err)
	}
	return nil
}

// Delete removes a pattern.
func (r *SamplePatternRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sample_patterns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sample pattern: %w", err)
	}
	return expectAffected(res)
}
