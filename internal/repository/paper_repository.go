package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kapilsaini46/rks/internal/models"
)

const paperColumns = `id, title, school_name, class_num, subject, session, duration, max_marks, general_instructions, sections, created_by, visible_to_teacher, visible_to_admin, edit_count, download_count, created_at, updated_at`

// PaperRepository stores question papers with their sections as a JSONB document.
type PaperRepository struct {
	db *sqlx.DB
}

// NewPaperRepository constructs the repository.
func NewPaperRepository(db *sqlx.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

// Create inserts a new paper.
func (r *PaperRepository) Create(ctx context.Context, paper *models.QuestionPaper) error {
	now := time.Now().UTC()
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = now
	}
	paper.UpdatedAt = now
	const query = `INSERT INTO papers (` + paperColumns + `)
VALUES (:id, :title, :school_name, :class_num, :subject, :session, :duration, :max_marks, :general_instructions, :sections, :created_by, :visible_to_teacher, :visible_to_admin, :edit_count, :download_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, paper); err != nil {
		return fmt.Errorf("create paper: %w", err)
	}
	return nil
}

// FindByID returns a paper by id.
func (r *PaperRepository) FindByID(ctx context.Context, id string) (*models.QuestionPaper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE id = $1`
	var paper models.QuestionPaper
	if err := r.db.GetContext(ctx, &paper, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find paper: %w", err)
	}
	return &paper, nil
}

// Update rewrites the header, sections and edit counter of a paper.
func (r *PaperRepository) Update(ctx context.Context, paper *models.QuestionPaper) error {
	paper.UpdatedAt = time.Now().UTC()
	const query = `UPDATE papers SET title = :title, school_name = :school_name, class_num = :class_num, subject = :subject,
session = :session, duration = :duration, max_marks = :max_marks, general_instructions = :general_instructions,
sections = :sections, edit_count = :edit_count, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, paper)
	if err != nil {
		return fmt.Errorf("update paper: %w", err)
	}
	return expectAffected(res)
}

// ConsumeDownload increments the download counter while it is below limit and returns the new count.
// A negative limit means unlimited. sql.ErrNoRows is returned when the paper is missing or the limit
// is already used up.
func (r *PaperRepository) ConsumeDownload(ctx context.Context, id string, limit int) (int, error) {
	const query = `UPDATE papers SET download_count = download_count + 1, updated_at = $3
WHERE id = $1 AND ($2 < 0 OR download_count < $2) RETURNING download_count`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id, limit, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("consume paper download: %w", err)
	}
	return count, nil
}

// SetVisibility persists both soft-delete flags.
func (r *PaperRepository) SetVisibility(ctx context.Context, paper *models.QuestionPaper) error {
	const query = `UPDATE papers SET visible_to_teacher = $2, visible_to_admin = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, paper.ID, paper.VisibleToTeacher, paper.VisibleToAdmin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set paper visibility: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a paper permanently.
func (r *PaperRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete paper: %w", err)
	}
	return expectAffected(res)
}

func buildPaperConditions(filter models.PaperFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("p.created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.ClassNum != "" {
		conditions = append(conditions, fmt.Sprintf("p.class_num = $%d", len(args)+1))
		args = append(args, filter.ClassNum)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("p.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	switch filter.VisibleTo {
	case models.AudienceTeacher:
		conditions = append(conditions, "p.visible_to_teacher = TRUE")
	case models.AudienceAdmin:
		conditions = append(conditions, "p.visible_to_admin = TRUE")
	}
	if filter.AdminAuthored {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM users u WHERE u.email = p.created_by AND u.role = 'ADMIN')")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// List returns papers matching the filter, newest first, with the total count.
func (r *PaperRepository) List(ctx context.Context, filter models.PaperFilter) ([]models.QuestionPaper, int, error) {
	where, args := buildPaperConditions(filter)
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM papers p%s ORDER BY p.created_at DESC LIMIT %d OFFSET %d", prefixed("p", paperColumns), where, pageSize, (page-1)*pageSize)

	var papers []models.QuestionPaper
	if err := r.db.SelectContext(ctx, &papers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list papers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM papers p"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count papers: %w", err)
	}
	return papers, total, nil
}

// Count counts papers matching the filter.
func (r *PaperRepository) Count(ctx context.Context, filter models.PaperFilter) (int, error) {
	where, args := buildPaperConditions(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM papers p"+where, args...); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return total, nil
}

// LatestAdminPaper returns the newest admin-authored paper for the class and subject that admins still see.
func (r *PaperRepository) LatestAdminPaper(ctx context.Context, classNum, subject string) (*models.QuestionPaper, error) {
	where, args := buildPaperConditions(models.PaperFilter{ClassNum: classNum, Subject: subject, VisibleTo: models.AudienceAdmin, AdminAuthored: true})
	query := fmt.Sprintf("SELECT %s FROM papers p%s ORDER BY p.created_at DESC LIMIT 1", prefixed("p", paperColumns), where)
	var paper models.QuestionPaper
	if err := r.db.GetContext(ctx, &paper, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find latest admin paper: %w", err)
	}
	return &paper, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, col := range parts {
		parts[i] = alias + "." + col
	}
	return strings.Join(parts, ", ")
}
