package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kapilsaini46/rks/internal/models"
)

// ConfigDocumentRepository persists whole JSON configuration documents such as the curriculum.
type ConfigDocumentRepository struct {
	db *sqlx.DB
}

// NewConfigDocumentRepository constructs the repository.
func NewConfigDocumentRepository(db *sqlx.DB) *ConfigDocumentRepository {
	return &ConfigDocumentRepository{db: db}
}

// ListByKeys returns documents whose key is in the provided slice.
func (r *ConfigDocumentRepository) ListByKeys(ctx context.Context, keys []string) ([]models.ConfigDocument, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT key, value, updated_by, updated_at FROM config_documents WHERE key IN (%s) ORDER BY key ASC`, placeholders(len(keys)))
	args := make([]interface{}, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	var docs []models.ConfigDocument
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list config documents: %w", err)
	}
	return docs, nil
}

// Get fetches a single document by key.
func (r *ConfigDocumentRepository) Get(ctx context.Context, key string) (*models.ConfigDocument, error) {
	const query = `SELECT key, value, updated_by, updated_at FROM config_documents WHERE key = $1`
	var doc models.ConfigDocument
	if err := r.db.GetContext(ctx, &doc, query, key); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Upsert replaces the document stored under doc.Key.
func (r *ConfigDocumentRepository) Upsert(ctx context.Context, doc *models.ConfigDocument) error {
	const query = `INSERT INTO config_documents (key, value, updated_by, updated_at)
VALUES (:key, :value, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	doc.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("upsert config document: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	values := make([]string, n)
	for i := 1; i <= n; i++ {
		values[i-1] = fmt.Sprintf("$%d", i)
	}
	return strings.Join(values, ",")
}
