package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
)

const enrollmentColumns = `id, student_number, lrn, first_name, middle_name, last_name, birth_date, gender,
grade_level, education_level, academic_year, status, student_type, payment_mode, email, address,
religion, telephone_number, mobile_number, parent_facebook, parent_user_id, remarks, enrolled_at,
completed_at, created_at, updated_at`

const parentInfoColumns = `enrollment_id, father_name, father_contact, father_occupation, mother_name,
mother_contact, mother_occupation, guardian_name, guardian_contact, guardian_relationship`

// EnrollmentRepository handles persistence of enrollments and their parent info.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentNumber != "" {
		conditions = append(conditions, fmt.Sprintf("student_number = $%d", len(args)+1))
		args = append(args, filter.StudentNumber)
	}
	if filter.GradeLevel != "" {
		conditions = append(conditions, fmt.Sprintf("grade_level = $%d", len(args)+1))
		args = append(args, filter.GradeLevel)
	}
	if len(filter.GradeLevels) > 0 {
		levels := make([]string, len(filter.GradeLevels))
		for i, g := range filter.GradeLevels {
			levels[i] = string(g)
		}
		conditions = append(conditions, fmt.Sprintf("grade_level = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(levels))
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.ParentUserID != "" {
		conditions = append(conditions, fmt.Sprintf("parent_user_id = $%d", len(args)+1))
		args = append(args, filter.ParentUserID)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name || ' ' || last_name) LIKE $%d OR LOWER(email) LIKE $%d OR student_number LIKE $%d OR lrn LIKE $%d)", n, n, n, n))
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Search))+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":     "created_at",
		"last_name":      "last_name",
		"student_number": "student_number",
		"grade_level":    "grade_level",
		"academic_year":  "academic_year",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM enrollments%s ORDER BY %s %s LIMIT %d OFFSET %d", enrollmentColumns, clause, orderBy, order, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM enrollments" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListActiveByGrades returns every ACTIVE enrollment in the given grades,
// optionally restricted to one academic year, ordered by name.
func (r *EnrollmentRepository) ListActiveByGrades(ctx context.Context, grades []lifecycle.GradeCode, academicYear string) ([]models.Enrollment, error) {
	if len(grades) == 0 {
		return []models.Enrollment{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE status = ? AND grade_level IN (?)", enrollmentColumns)
	args := []interface{}{lifecycle.StatusActive, grades}
	if academicYear != "" {
		query += " AND academic_year = ?"
		args = append(args, academicYear)
	}
	query += " ORDER BY last_name, first_name"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build grade roster query: %w", err)
	}
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list grade roster: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment with its parent info.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	parent, err := r.FindParentInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollment.ParentInfo = parent
	return &enrollment, nil
}

// FindParentInfo returns the parent block of an enrollment, nil when none.
func (r *EnrollmentRepository) FindParentInfo(ctx context.Context, enrollmentID string) (*models.ParentInfo, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollment_parent_info WHERE enrollment_id = $1", parentInfoColumns)
	var info models.ParentInfo
	if err := r.db.GetContext(ctx, &info, query, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find parent info: %w", err)
	}
	return &info, nil
}

// Create persists a new enrollment and its parent info in one transaction.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = lifecycle.StatusPending
	}

	const query = `INSERT INTO enrollments (id, student_number, lrn, first_name, middle_name, last_name, birth_date, gender,
        grade_level, education_level, academic_year, status, student_type, payment_mode, email, address, religion,
        telephone_number, mobile_number, parent_facebook, parent_user_id, remarks, enrolled_at, completed_at, created_at, updated_at)
        VALUES (:id, :student_number, :lrn, :first_name, :middle_name, :last_name, :birth_date, :gender,
        :grade_level, :education_level, :academic_year, :status, :student_type, :payment_mode, :email, :address, :religion,
        :telephone_number, :mobile_number, :parent_facebook, :parent_user_id, :remarks, :enrolled_at, :completed_at, :created_at, :updated_at)`

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}
		return upsertParentInfo(ctx, tx, enrollment)
	})
}

// Update saves the editable fields and parent info of an enrollment.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET lrn = :lrn, first_name = :first_name, middle_name = :middle_name,
        last_name = :last_name, birth_date = :birth_date, gender = :gender, grade_level = :grade_level,
        education_level = :education_level, academic_year = :academic_year, student_type = :student_type,
        payment_mode = :payment_mode, email = :email, address = :address, religion = :religion,
        telephone_number = :telephone_number, mobile_number = :mobile_number, parent_facebook = :parent_facebook,
        updated_at = :updated_at WHERE id = :id`

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, query, enrollment)
		if err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		return upsertParentInfo(ctx, tx, enrollment)
	})
}

// UpdateWorkflow saves the fields changed by approve, decline and complete.
func (r *EnrollmentRepository) UpdateWorkflow(ctx context.Context, enrollment *models.Enrollment) error {
	return updateWorkflow(ctx, r.db, enrollment)
}

// Approve saves an approval. When newParent is set the parent account is
// created and linked in the same transaction, so a failed approval never
// leaves an orphan account behind.
func (r *EnrollmentRepository) Approve(ctx context.Context, enrollment *models.Enrollment, newParent *models.User) error {
	if newParent == nil {
		return r.UpdateWorkflow(ctx, enrollment)
	}
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertUser(ctx, tx, newParent); err != nil {
			return err
		}
		enrollment.ParentUserID = &newParent.ID
		return updateWorkflow(ctx, tx, enrollment)
	})
}

func updateWorkflow(ctx context.Context, db sqlx.ExtContext, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, student_number = :student_number,
        parent_user_id = :parent_user_id, remarks = :remarks, enrolled_at = :enrolled_at,
        completed_at = :completed_at, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, db, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment workflow: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an enrollment; parent info cascades.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return requireAffected(res)
}

// MaxStudentNumber returns the highest student number starting with prefix,
// or an empty string when none exists.
func (r *EnrollmentRepository) MaxStudentNumber(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT COALESCE(MAX(student_number), '') FROM enrollments WHERE student_number LIKE $1`
	var max string
	if err := r.db.GetContext(ctx, &max, query, prefix+"%"); err != nil {
		return "", fmt.Errorf("max student number: %w", err)
	}
	return max, nil
}

// CountByStatus groups enrollments by status, optionally within one academic year.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, academicYear string) ([]models.StatusCount, error) {
	query, args := groupCountQuery("status", academicYear)
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	return rows, nil
}

// CountByGrade groups enrollments by grade level, optionally within one academic year.
func (r *EnrollmentRepository) CountByGrade(ctx context.Context, academicYear string) ([]models.GradeCount, error) {
	query, args := groupCountQuery("grade_level", academicYear)
	var rows []models.GradeCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollments by grade: %w", err)
	}
	return rows, nil
}

func groupCountQuery(column, academicYear string) (string, []interface{}) {
	query := fmt.Sprintf("SELECT %s, COUNT(*) AS count FROM enrollments", column)
	var args []interface{}
	if academicYear != "" {
		query += " WHERE academic_year = $1"
		args = append(args, academicYear)
	}
	query += fmt.Sprintf(" GROUP BY %s", column)
	return query, args
}

func upsertParentInfo(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ParentInfo == nil {
		return nil
	}
	enrollment.ParentInfo.EnrollmentID = enrollment.ID
	const query = `INSERT INTO enrollment_parent_info (enrollment_id, father_name, father_contact, father_occupation,
        mother_name, mother_contact, mother_occupation, guardian_name, guardian_contact, guardian_relationship)
        VALUES (:enrollment_id, :father_name, :father_contact, :father_occupation, :mother_name, :mother_contact,
        :mother_occupation, :guardian_name, :guardian_contact, :guardian_relationship)
        ON CONFLICT (enrollment_id) DO UPDATE SET father_name = EXCLUDED.father_name,
        father_contact = EXCLUDED.father_contact, father_occupation = EXCLUDED.father_occupation,
        mother_name = EXCLUDED.mother_name, mother_contact = EXCLUDED.mother_contact,
        mother_occupation = EXCLUDED.mother_occupation, guardian_name = EXCLUDED.guardian_name,
        guardian_contact = EXCLUDED.guardian_contact, guardian_relationship = EXCLUDED.guardian_relationship`
	if _, err := tx.NamedExecContext(ctx, query, enrollment.ParentInfo); err != nil {
		return fmt.Errorf("save parent info: %w", err)
	}
	return nil
}

func (r *EnrollmentRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
