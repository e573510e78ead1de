package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ace-school-api/internal/models"
)

// GradeRepository handles score and class standing persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListScores returns scores matching the filter. Subject, grade level and
// quarter are matched on the owning grade item.
func (r *GradeRepository) ListScores(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	query := `SELECT s.id, s.student_id, s.grade_item_id, s.score, s.updated_at
        FROM student_scores s
        JOIN grade_items gi ON gi.id = s.grade_item_id
        WHERE 1=1`
	var args []interface{}
	if filter.GradeItemID != "" {
		query += fmt.Sprintf(" AND s.grade_item_id = $%d", len(args)+1)
		args = append(args, filter.GradeItemID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND s.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND gi.subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.GradeLevel != nil {
		query += fmt.Sprintf(" AND gi.grade_level = $%d", len(args)+1)
		args = append(args, *filter.GradeLevel)
	}
	if filter.Quarter != nil {
		query += fmt.Sprintf(" AND gi.quarter = $%d", len(args)+1)
		args = append(args, *filter.Quarter)
	}
	query += " ORDER BY gi.quarter, gi.item_order, s.student_id"

	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}

// UpsertScore inserts or updates a student's score on an item.
func (r *GradeRepository) UpsertScore(ctx context.Context, score *models.Score) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	score.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO student_scores (id, student_id, grade_item_id, score, updated_at)
        VALUES (:id, :student_id, :grade_item_id, :score, :updated_at)
        ON CONFLICT (student_id, grade_item_id)
        DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
        RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, score)
	if err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&score.ID); err != nil {
			return fmt.Errorf("upsert score: %w", err)
		}
	}
	return rows.Err()
}

// ListClassStandings returns class standing rows matching the filter.
func (r *GradeRepository) ListClassStandings(ctx context.Context, filter models.ClassStandingFilter) ([]models.ClassStanding, error) {
	query := `SELECT id, student_id, subject_id, quarter, score, updated_at FROM class_standings WHERE 1=1`
	var args []interface{}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Quarter != nil {
		query += fmt.Sprintf(" AND quarter = $%d", len(args)+1)
		args = append(args, *filter.Quarter)
	}
	query += " ORDER BY quarter, student_id"

	var standings []models.ClassStanding
	if err := r.db.SelectContext(ctx, &standings, query, args...); err != nil {
		return nil, fmt.Errorf("list class standings: %w", err)
	}
	return standings, nil
}

// UpsertClassStanding inserts or updates a class standing score.
func (r *GradeRepository) UpsertClassStanding(ctx context.Context, standing *models.ClassStanding) error {
	if standing.ID == "" {
		standing.ID = uuid.NewString()
	}
	standing.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO class_standings (id, student_id, subject_id, quarter, score, updated_at)
        VALUES (:id, :student_id, :subject_id, :quarter, :score, :updated_at)
        ON CONFLICT (student_id, subject_id, quarter)
        DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
        RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, standing)
	if err != nil {
		return fmt.Errorf("upsert class standing: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&standing.ID); err != nil {
			return fmt.Errorf("upsert class standing: %w", err)
		}
	}
	return rows.Err()
}
