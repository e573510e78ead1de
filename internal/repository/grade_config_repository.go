package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ace-school-api/internal/models"
)

// GradeConfigRepository persists the per-subject category weights.
type GradeConfigRepository struct {
	db *sqlx.DB
}

// NewGradeConfigRepository creates a new repository instance.
func NewGradeConfigRepository(db *sqlx.DB) *GradeConfigRepository {
	return &GradeConfigRepository{db: db}
}

// FindWeights returns the weights of a subject.
func (r *GradeConfigRepository) FindWeights(ctx context.Context, subjectID string) (*models.GradeWeight, error) {
	const query = `SELECT subject_id, activity, quiz, exam, class_standing, updated_at FROM grade_weights WHERE subject_id = $1`
	var weight models.GradeWeight
	if err := r.db.GetContext(ctx, &weight, query, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade weights: %w", err)
	}
	return &weight, nil
}

// UpsertWeights stores the weights of a subject.
func (r *GradeConfigRepository) UpsertWeights(ctx context.Context, weight *models.GradeWeight) error {
	weight.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO grade_weights (subject_id, activity, quiz, exam, class_standing, updated_at)
        VALUES (:subject_id, :activity, :quiz, :exam, :class_standing, :updated_at)
        ON CONFLICT (subject_id) DO UPDATE SET activity = EXCLUDED.activity, quiz = EXCLUDED.quiz,
        exam = EXCLUDED.exam, class_standing = EXCLUDED.class_standing, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, weight); err != nil {
		return fmt.Errorf("upsert grade weights: %w", err)
	}
	return nil
}
