package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var enrollmentColumnNames = []string{"id", "student_number", "lrn", "first_name", "middle_name", "last_name", "birth_date", "gender",
	"grade_level", "education_level", "academic_year", "status", "student_type", "payment_mode", "email", "address",
	"religion", "telephone_number", "mobile_number", "parent_facebook", "parent_user_id", "remarks", "enrolled_at",
	"completed_at", "created_at", "updated_at"}

func enrollmentRow(rows *sqlmock.Rows, id, first, last string, grade lifecycle.GradeCode, status lifecycle.Status) *sqlmock.Rows {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	birth := time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC)
	level, _ := lifecycle.EducationLevelFor(grade)
	return rows.AddRow(id, nil, "", first, "", last, birth, "F",
		string(grade), string(level), "2025-2026", string(status), "new", "cash",
		"parent@example.com", "Quezon City", "", "", "+639171234567", "", nil, "", nil,
		nil, now, now)
}

func TestEnrollmentRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRow(sqlmock.NewRows(enrollmentColumnNames), "enr-1", "Maria", "Reyes", lifecycle.Grade1, lifecycle.StatusPending)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE status = $1 AND academic_year = $2 AND (LOWER(first_name || ' ' || last_name) LIKE $3")).
		WithArgs("PENDING", "2025-2026", "%maria%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE status = $1 AND academic_year = $2")).
		WithArgs("PENDING", "2025-2026", "%maria%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		Status:       lifecycle.StatusPending,
		AcademicYear: "2025-2026",
		Search:       " Maria ",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, lifecycle.Grade1, list[0].GradeLevel)
	require.NotNil(t, list[0].PaymentMode)
	assert.Equal(t, lifecycle.PaymentCash, *list[0].PaymentMode)
	assert.Nil(t, list[0].StudentNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListDefaultsPaging(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments ORDER BY created_at DESC LIMIT 20 OFFSET 20")).
		WillReturnRows(sqlmock.NewRows(enrollmentColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	_, total, err := repo.List(context.Background(), models.EnrollmentFilter{Page: 2, PageSize: 500, SortBy: "password"})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveByGrades(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRow(sqlmock.NewRows(enrollmentColumnNames), "enr-1", "Ana", "Cruz", lifecycle.GradePreK, lifecycle.StatusActive)
	enrollmentRow(rows, "enr-2", "Ben", "Diaz", lifecycle.GradeKinder, lifecycle.StatusActive)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE status = ? AND grade_level IN (?, ?) ORDER BY last_name, first_name")).
		WithArgs("ACTIVE", "prek", "kinder").
		WillReturnRows(rows)

	list, err := repo.ListActiveByGrades(context.Background(), []lifecycle.GradeCode{lifecycle.GradePreK, lifecycle.GradeKinder}, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDLoadsParentInfo(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentColumnNames), "enr-1", "Maria", "Reyes", lifecycle.Grade2, lifecycle.StatusActive))
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_parent_info WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "father_name", "father_contact", "father_occupation", "mother_name",
			"mother_contact", "mother_occupation", "guardian_name", "guardian_contact", "guardian_relationship"}).
			AddRow("enr-1", "Jose Reyes", "+639171234567", "Driver", "", "", "", "", "", ""))

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, enrollment.ParentInfo)
	assert.Equal(t, "Jose Reyes", enrollment.ParentInfo.FatherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithParentInfo(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO enrollment_parent_info").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{
		FirstName:  "Maria",
		LastName:   "Reyes",
		GradeLevel: lifecycle.Grade1,
		ParentInfo: &models.ParentInfo{MotherName: "Liza Reyes", MotherContact: "+639171234567"},
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, lifecycle.StatusPending, enrollment.Status)
	assert.Equal(t, enrollment.ID, enrollment.ParentInfo.EnrollmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO enrollment_parent_info").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Enrollment{ParentInfo: &models.ParentInfo{}})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateWorkflowMissing(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateWorkflow(context.Background(), &models.Enrollment{ID: "gone", Status: lifecycle.StatusActive})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveCreatesParentInTransaction(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{ID: "enr-1", Status: lifecycle.StatusActive}
	parent := &models.User{Username: "mariareyes", Email: "liza@example.com", Role: models.RoleParentStudent, Active: true}
	require.NoError(t, repo.Approve(context.Background(), enrollment, parent))
	require.NotNil(t, enrollment.ParentUserID)
	assert.Equal(t, parent.ID, *enrollment.ParentUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveRollsBackParentOnConflict(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	conflict := &pq.Error{Code: "23505"}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = ?")).WillReturnError(conflict)
	mock.ExpectRollback()

	err := repo.Approve(context.Background(), &models.Enrollment{ID: "enr-1"}, &models.User{Username: "mariareyes"})
	assert.ErrorIs(t, err, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveExistingParent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 1))

	parentID := "p1"
	require.NoError(t, repo.Approve(context.Background(), &models.Enrollment{ID: "enr-1", ParentUserID: &parentID}, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "enr-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMaxStudentNumber(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(student_number), '') FROM enrollments WHERE student_number LIKE $1")).
		WithArgs("2025%").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow("2025000041"))

	max, err := repo.MaxStudentNumber(context.Background(), "2025")
	require.NoError(t, err)
	assert.Equal(t, "2025000041", max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM enrollments WHERE academic_year = $1 GROUP BY status")).
		WithArgs("2025-2026").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("PENDING", 3).AddRow("ACTIVE", 5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT grade_level, COUNT(*) AS count FROM enrollments GROUP BY grade_level")).
		WillReturnRows(sqlmock.NewRows([]string{"grade_level", "count"}).AddRow("grade1", 8))

	byStatus, err := repo.CountByStatus(context.Background(), "2025-2026")
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
	byGrade, err := repo.CountByGrade(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, byGrade, 1)
	assert.Equal(t, lifecycle.Grade1, byGrade[0].GradeLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
