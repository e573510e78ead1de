package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ace-school-api/internal/models"
)

const gradeItemColumns = `id, subject_id, teacher_id, grade_level, quarter, category, title, description, date_given,
due_date, total_score, item_order, created_at, updated_at`

// GradeComponentRepository persists grade items (activities, quizzes and exams).
type GradeComponentRepository struct {
	db *sqlx.DB
}

// NewGradeComponentRepository creates a repository instance.
func NewGradeComponentRepository(db *sqlx.DB) *GradeComponentRepository {
	return &GradeComponentRepository{db: db}
}

// List returns grade items matching the filter in encoding order.
func (r *GradeComponentRepository) List(ctx context.Context, filter models.GradeItemFilter) ([]models.GradeItem, error) {
	query := fmt.Sprintf("SELECT %s FROM grade_items WHERE 1=1", gradeItemColumns)
	var args []interface{}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.GradeLevel != nil {
		query += fmt.Sprintf(" AND grade_level = $%d", len(args)+1)
		args = append(args, *filter.GradeLevel)
	}
	if filter.Quarter != nil {
		query += fmt.Sprintf(" AND quarter = $%d", len(args)+1)
		args = append(args, *filter.Quarter)
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	query += " ORDER BY quarter, item_order, created_at"

	var items []models.GradeItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list grade items: %w", err)
	}
	return items, nil
}

// FindByID returns a grade item by id.
func (r *GradeComponentRepository) FindByID(ctx context.Context, id string) (*models.GradeItem, error) {
	query := fmt.Sprintf("SELECT %s FROM grade_items WHERE id = $1", gradeItemColumns)
	var item models.GradeItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade item: %w", err)
	}
	return &item, nil
}

// Create inserts a grade item.
func (r *GradeComponentRepository) Create(ctx context.Context, item *models.GradeItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO grade_items (id, subject_id, teacher_id, grade_level, quarter, category, title, description,
        date_given, due_date, total_score, item_order, created_at, updated_at)
        VALUES (:id, :subject_id, :teacher_id, :grade_level, :quarter, :category, :title, :description,
        :date_given, :due_date, :total_score, :item_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create grade item: %w", err)
	}
	return nil
}

// Update saves the mutable fields of a grade item.
func (r *GradeComponentRepository) Update(ctx context.Context, item *models.GradeItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_items SET quarter = :quarter, category = :category, title = :title,
        description = :description, date_given = :date_given, due_date = :due_date, total_score = :total_score,
        item_order = :item_order, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update grade item: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a grade item; its scores cascade.
func (r *GradeComponentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grade_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade item: %w", err)
	}
	return requireAffected(res)
}

// MaxScoreOf returns the highest recorded score on an item, 0 when none.
func (r *GradeComponentRepository) MaxScoreOf(ctx context.Context, itemID string) (float64, error) {
	const query = `SELECT COALESCE(MAX(score), 0) FROM student_scores WHERE grade_item_id = $1`
	var max float64
	if err := r.db.GetContext(ctx, &max, query, itemID); err != nil {
		return 0, fmt.Errorf("max score of grade item: %w", err)
	}
	return max, nil
}
