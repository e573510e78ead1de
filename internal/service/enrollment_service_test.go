package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
)

type mockEnrollmentRepo struct {
	items         map[string]*models.Enrollment
	created       []*models.Enrollment
	parents       []*models.User
	workflowSaves int
	maxNumber     string
	uniqueFails   int
	statusCounts  []models.StatusCount
	gradeCounts   []models.GradeCount
	countCalls    int
}

func newMockEnrollmentRepo(items ...*models.Enrollment) *mockEnrollmentRepo {
	m := &mockEnrollmentRepo{items: map[string]*models.Enrollment{}}
	for _, e := range items {
		m.items[e.ID] = e
	}
	return m
}

func (m *mockEnrollmentRepo) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.items {
		if filter.ParentUserID != "" && (e.ParentUserID == nil || *e.ParentUserID != filter.ParentUserID) {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *mockEnrollmentRepo) Create(_ context.Context, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = "enr-new"
	}
	m.created = append(m.created, e)
	m.items[e.ID] = e
	return nil
}

func (m *mockEnrollmentRepo) Update(_ context.Context, e *models.Enrollment) error {
	if _, ok := m.items[e.ID]; !ok {
		return sql.ErrNoRows
	}
	m.items[e.ID] = e
	return nil
}

func (m *mockEnrollmentRepo) UpdateWorkflow(_ context.Context, e *models.Enrollment) error {
	if m.uniqueFails > 0 {
		m.uniqueFails--
		return &pq.Error{Code: "23505"}
	}
	m.workflowSaves++
	m.items[e.ID] = e
	return nil
}

func (m *mockEnrollmentRepo) Approve(ctx context.Context, e *models.Enrollment, newParent *models.User) error {
	if m.uniqueFails > 0 {
		m.uniqueFails--
		return &pq.Error{Code: "23505"}
	}
	if newParent != nil {
		newParent.ID = "parent-" + newParent.Username
		m.parents = append(m.parents, newParent)
		e.ParentUserID = &newParent.ID
	}
	return m.UpdateWorkflow(ctx, e)
}

func (m *mockEnrollmentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockEnrollmentRepo) MaxStudentNumber(_ context.Context, prefix string) (string, error) {
	return m.maxNumber, nil
}

func (m *mockEnrollmentRepo) CountByStatus(_ context.Context, _ string) ([]models.StatusCount, error) {
	m.countCalls++
	return m.statusCounts, nil
}

func (m *mockEnrollmentRepo) CountByGrade(_ context.Context, _ string) ([]models.GradeCount, error) {
	return m.gradeCounts, nil
}

type mockParentAccounts struct {
	byEmail map[string]*models.User
	taken   map[string]bool
}

func (m *mockParentAccounts) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockParentAccounts) UsernameExists(_ context.Context, username string) (bool, error) {
	return m.taken[username], nil
}

type mockNotifier struct {
	approved []EnrollmentNotice
	promoted []EnrollmentNotice
}

func (m *mockNotifier) NotifyApproved(_ context.Context, n EnrollmentNotice) error {
	m.approved = append(m.approved, n)
	return nil
}

func (m *mockNotifier) NotifyPromoted(_ context.Context, n EnrollmentNotice) error {
	m.promoted = append(m.promoted, n)
	return nil
}

var enrollmentTestNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

type enrollmentFixture struct {
	svc      *EnrollmentService
	repo     *mockEnrollmentRepo
	users    *mockParentAccounts
	notifier *mockNotifier
	cache    *memoryCache
}

func newEnrollmentFixture(items ...*models.Enrollment) *enrollmentFixture {
	f := &enrollmentFixture{
		repo:     newMockEnrollmentRepo(items...),
		users:    &mockParentAccounts{byEmail: map[string]*models.User{}, taken: map[string]bool{}},
		notifier: &mockNotifier{},
		cache:    newMemoryCache(),
	}
	evaluator := lifecycle.NewEvaluator(lifecycle.FixedClock(enrollmentTestNow), time.UTC)
	cache := NewCacheService(f.cache, nil, time.Minute, nil, true)
	f.svc = NewEnrollmentService(f.repo, f.users, f.notifier, cache, NewMetricsService(), evaluator, nil, nil, EnrollmentConfig{})
	return f
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func pendingEnrollment(id string) *models.Enrollment {
	mode := lifecycle.PaymentCash
	return &models.Enrollment{
		ID:             id,
		FirstName:      "Maria",
		LastName:       "Reyes",
		BirthDate:      date(2018, 2, 1),
		GradeLevel:     lifecycle.Grade1,
		EducationLevel: lifecycle.LevelElementary,
		AcademicYear:   "2025-2026",
		Status:         lifecycle.StatusPending,
		StudentType:    lifecycle.StudentTypeNew,
		PaymentMode:    &mode,
		Email:          "liza@example.com",
		MobileNumber:   "+639171234567",
		ParentInfo:     &models.ParentInfo{MotherName: "Liza Reyes", MotherContact: "+639171234567"},
	}
}

func validCreateRequest() dto.CreateEnrollmentRequest {
	return dto.CreateEnrollmentRequest{
		FirstName:      "Maria",
		LastName:       "Reyes",
		BirthDate:      &dto.Date{Time: *date(2018, 2, 1)},
		EducationLevel: lifecycle.LevelElementary,
		GradeLevel:     lifecycle.Grade1,
		StudentType:    lifecycle.StudentTypeNew,
		PaymentMode:    lifecycle.PaymentCash,
		MobileNumber:   "0917 123 4567",
	}
}

func TestEnrollmentServiceCreate(t *testing.T) {
	f := newEnrollmentFixture()

	resp, err := f.svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, resp.Status)
	assert.Equal(t, "2025-2026", resp.AcademicYear, "academic year defaults to the current school year")
	assert.Equal(t, "+639171234567", resp.MobileNumber)
	assert.Equal(t, "Maria Reyes", resp.StudentName)
	assert.Empty(t, resp.Warnings)
	require.Len(t, f.repo.created, 1)
}

func TestEnrollmentServiceCreateReturnsSoftWarnings(t *testing.T) {
	f := newEnrollmentFixture()
	req := validCreateRequest()
	req.BirthDate = &dto.Date{Time: *date(2022, 1, 1)}

	resp, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err, "age-for-grade never blocks saving")
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "too young for Grade 1")
}

func TestEnrollmentServiceCreateHardValidation(t *testing.T) {
	f := newEnrollmentFixture()
	req := validCreateRequest()
	req.EducationLevel = lifecycle.LevelPreschool
	req.MobileNumber = ""
	req.AcademicYear = "2025-2027"
	req.ParentInfo = &dto.ParentInfoRequest{FatherName: "Jose Reyes"}

	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	msg := err.Error()
	assert.Contains(t, msg, "For Preschool, grade must be Pre-Kinder or Kinder.")
	assert.Contains(t, msg, "Academic year must be YYYY-YYYY")
	assert.Contains(t, msg, "at least one contact")
	assert.Contains(t, msg, "Parent or guardian contact number is required.")
	assert.Empty(t, f.repo.created)
}

func TestEnrollmentServiceCreateRejectsBadMobile(t *testing.T) {
	f := newEnrollmentFixture()
	req := validCreateRequest()
	req.MobileNumber = "12345"

	_, err := f.svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEnrollmentServiceUpdateExpiredGate(t *testing.T) {
	expired := pendingEnrollment("enr-1")
	expired.Status = lifecycle.StatusActive
	expired.AcademicYear = "2023-2024"
	f := newEnrollmentFixture(expired)
	ctx := context.Background()

	name := "Mara"
	_, err := f.svc.Update(ctx, "enr-1", dto.UpdateEnrollmentRequest{FirstName: &name})
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	year := "2025-2026"
	resp, err := f.svc.Update(ctx, "enr-1", dto.UpdateEnrollmentRequest{AcademicYear: &year})
	require.NoError(t, err)
	assert.Equal(t, "2025-2026", resp.AcademicYear)
	assert.Empty(t, resp.Warnings)

	resp, err = f.svc.Update(ctx, "enr-1", dto.UpdateEnrollmentRequest{FirstName: &name})
	require.NoError(t, err, "editing unblocks once the academic year is current")
	assert.Equal(t, "Mara", resp.FirstName)
}

func TestEnrollmentServiceUpdateOverride(t *testing.T) {
	expired := pendingEnrollment("enr-1")
	expired.AcademicYear = "2023-2024"
	f := newEnrollmentFixture(expired)

	name := "Mara"
	resp, err := f.svc.Update(context.Background(), "enr-1", dto.UpdateEnrollmentRequest{FirstName: &name, Override: true})
	require.NoError(t, err)
	assert.Contains(t, resp.Warnings, "Academic year 2023-2024 has expired.")
}

func TestEnrollmentServiceUpdateGradeDerivesLevelAndRechecksAge(t *testing.T) {
	f := newEnrollmentFixture(pendingEnrollment("enr-1"))

	grade := lifecycle.GradeKinder
	resp, err := f.svc.Update(context.Background(), "enr-1", dto.UpdateEnrollmentRequest{GradeLevel: &grade})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.LevelPreschool, resp.EducationLevel)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "too old for Kindergarten")
}

func TestEnrollmentServiceApproveAssignsFirstNumberAndCreatesParent(t *testing.T) {
	f := newEnrollmentFixture(pendingEnrollment("enr-1"))
	f.users.taken["mariareyes"] = true

	result, err := f.svc.Approve(context.Background(), "enr-1")
	require.NoError(t, err)

	e := result.Enrollment
	assert.Equal(t, lifecycle.StatusActive, e.Status)
	require.NotNil(t, e.StudentNumber)
	assert.Equal(t, "2025000001", *e.StudentNumber)
	assert.Equal(t, RemarkApproved, e.Remarks)
	assert.NotNil(t, e.EnrolledAt)

	require.Len(t, f.repo.parents, 1)
	parent := f.repo.parents[0]
	assert.Equal(t, "mariareyes2", parent.Username)
	assert.Equal(t, "Liza Reyes", parent.FullName)
	assert.Equal(t, models.RoleParentStudent, parent.Role)
	assert.Empty(t, parent.PasswordHash)
	assert.True(t, result.ParentCreated)
	assert.Equal(t, parent.ID, result.ParentUserID)

	assert.True(t, result.NotificationQueued)
	require.Len(t, f.notifier.approved, 1)
	assert.True(t, f.notifier.approved[0].NeedsPassword)
	assert.Equal(t, "2025000001", f.notifier.approved[0].StudentNumber)
}

func TestEnrollmentServiceApproveIncrementsAndRetries(t *testing.T) {
	f := newEnrollmentFixture(pendingEnrollment("enr-1"))
	f.repo.maxNumber = "2025000041"
	f.repo.uniqueFails = 1

	result, err := f.svc.Approve(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "2025000042", *result.Enrollment.StudentNumber)
	assert.Equal(t, 1, f.repo.workflowSaves)
}

func TestEnrollmentServiceApproveFailureLeavesNoParentAccount(t *testing.T) {
	f := newEnrollmentFixture(pendingEnrollment("enr-1"))
	f.repo.uniqueFails = 3

	_, err := f.svc.Approve(context.Background(), "enr-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, f.repo.parents)
	assert.Equal(t, lifecycle.StatusPending, f.repo.items["enr-1"].Status)
	assert.Nil(t, f.repo.items["enr-1"].ParentUserID)
	assert.Empty(t, f.notifier.approved)
}

func TestEnrollmentServiceApproveKeepsExistingNumberAndRemarkOnce(t *testing.T) {
	e := pendingEnrollment("enr-1")
	number := "2024000007"
	e.StudentNumber = &number
	e.Remarks = "Transferee | " + RemarkApproved
	f := newEnrollmentFixture(e)
	f.users.byEmail["liza@example.com"] = &models.User{ID: "p1", Role: models.RoleParentStudent, PasswordHash: "hash"}

	result, err := f.svc.Approve(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "2024000007", *result.Enrollment.StudentNumber)
	assert.Equal(t, "Transferee | "+RemarkApproved, result.Enrollment.Remarks)
	assert.False(t, result.ParentCreated)
	assert.Equal(t, "p1", result.ParentUserID)
	require.Len(t, f.notifier.approved, 1)
	assert.False(t, f.notifier.approved[0].NeedsPassword)
}

func TestEnrollmentServiceApproveReturningStudent(t *testing.T) {
	e := pendingEnrollment("enr-2")
	e.StudentType = lifecycle.StudentTypeOld
	f := newEnrollmentFixture(e)

	result, err := f.svc.Approve(context.Background(), "enr-2")
	require.NoError(t, err)
	assert.Empty(t, f.repo.parents, "returning students never get a new account")
	assert.False(t, result.NotificationQueued)

	e2 := pendingEnrollment("enr-3")
	e2.StudentType = lifecycle.StudentTypeOld
	f = newEnrollmentFixture(e2)
	f.users.byEmail["liza@example.com"] = &models.User{ID: "p1", Role: models.RoleParentStudent, PasswordHash: "hash"}
	result, err = f.svc.Approve(context.Background(), "enr-3")
	require.NoError(t, err)
	assert.Equal(t, "p1", result.ParentUserID)
	require.Len(t, f.notifier.promoted, 1)
	assert.Empty(t, f.notifier.approved)
}

func TestEnrollmentServiceTransitionsRequirePending(t *testing.T) {
	active := pendingEnrollment("enr-1")
	active.Status = lifecycle.StatusActive
	f := newEnrollmentFixture(active)
	ctx := context.Background()

	_, err := f.svc.Decline(ctx, "enr-1")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
	_, err = f.svc.Approve(ctx, "enr-1")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	resp, err := f.svc.Complete(ctx, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, resp.Status)
	assert.NotNil(t, resp.CompletedAt)
	assert.Equal(t, RemarkCompleted, resp.Remarks)

	_, err = f.svc.Complete(ctx, "enr-1")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed, "completed is terminal")
}

func TestEnrollmentServiceDecline(t *testing.T) {
	f := newEnrollmentFixture(pendingEnrollment("enr-1"))

	resp, err := f.svc.Decline(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusDropped, resp.Status)
	assert.Equal(t, RemarkDeclined, resp.Remarks)
	assert.NotNil(t, resp.CompletedAt)
}

func TestEnrollmentServicePromote(t *testing.T) {
	src := pendingEnrollment("enr-1")
	src.Status = lifecycle.StatusCompleted
	number := "2025000001"
	src.StudentNumber = &number
	f := newEnrollmentFixture(src)

	resp, err := f.svc.Promote(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Grade2, resp.GradeLevel)
	assert.Equal(t, "2026-2027", resp.AcademicYear)
	assert.Equal(t, lifecycle.StatusPending, resp.Status)
	assert.Equal(t, lifecycle.StudentTypeOld, resp.StudentType)
	assert.Nil(t, resp.PaymentMode)
	assert.Equal(t, "2025000001", *resp.StudentNumber)
	assert.NotEqual(t, "enr-1", resp.ID)

	original := f.repo.items["enr-1"]
	assert.Equal(t, lifecycle.Grade1, original.GradeLevel)
	assert.Equal(t, lifecycle.StatusCompleted, original.Status)
	require.NotNil(t, resp.ParentInfo)
	assert.NotSame(t, original.ParentInfo, resp.ParentInfo)
}

func TestEnrollmentServicePromoteHighestGrade(t *testing.T) {
	src := pendingEnrollment("enr-6")
	src.GradeLevel = lifecycle.Grade6
	f := newEnrollmentFixture(src)

	_, err := f.svc.Promote(context.Background(), "enr-6")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
	assert.Empty(t, f.repo.created)
}

func TestEnrollmentServiceStatisticsCachedAndZeroFilled(t *testing.T) {
	f := newEnrollmentFixture()
	f.repo.statusCounts = []models.StatusCount{{Status: lifecycle.StatusPending, Count: 3}, {Status: lifecycle.StatusActive, Count: 5}}
	f.repo.gradeCounts = []models.GradeCount{{GradeLevel: lifecycle.Grade1, Count: 8}}
	ctx := context.Background()

	stats, err := f.svc.Statistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Total)
	assert.Equal(t, 0, stats.ByStatus["DROPPED"])
	assert.Equal(t, 8, stats.ByGrade["Grade 1"])
	assert.Equal(t, 0, stats.ByGrade["Pre-Kinder"])

	_, err = f.svc.Statistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.countCalls, "second call is served from cache")

	_, err = f.svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = f.svc.Statistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, f.repo.countCalls, "writes invalidate cached statistics")
}

func TestEnrollmentServiceGetIncludesLifecycle(t *testing.T) {
	e := pendingEnrollment("enr-1")
	e.AcademicYear = "2024-2025"
	e.Status = lifecycle.StatusActive
	f := newEnrollmentFixture(e)

	detail, err := f.svc.Get(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.True(t, detail.Lifecycle.Expired)
	assert.True(t, detail.Lifecycle.Gate.ReadOnly)
	assert.True(t, detail.Lifecycle.Gate.AcademicYearEditable)
	assert.Equal(t, lifecycle.Grade2, detail.Lifecycle.NextGrade)
	assert.Equal(t, "2025-2026", detail.Lifecycle.NextAcademicYear)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnrollmentServiceListForParent(t *testing.T) {
	mine := pendingEnrollment("enr-1")
	parentID := "p1"
	mine.ParentUserID = &parentID
	f := newEnrollmentFixture(mine, pendingEnrollment("enr-2"))

	items, page, err := f.svc.ListForParent(context.Background(), "p1", 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "enr-1", items[0].ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = f.svc.ListForParent(context.Background(), "", 1, 20)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestEnrollmentServiceDeleteMissing(t *testing.T) {
	f := newEnrollmentFixture()
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "nope"), appErrors.ErrNotFound)
}

func TestEnrollmentHelpers(t *testing.T) {
	n, err := nextStudentNumber("2025", "")
	require.NoError(t, err)
	assert.Equal(t, "2025000001", n)
	n, err = nextStudentNumber("2025", "2025000099")
	require.NoError(t, err)
	assert.Equal(t, "2025000100", n)
	_, err = nextStudentNumber("2025", "2025abc")
	assert.Error(t, err)

	assert.Equal(t, "x | "+RemarkDeclined, appendRemark(" x ", RemarkDeclined))
	assert.Equal(t, RemarkDeclined, appendRemark("", RemarkDeclined))
	assert.Equal(t, "anadelacruz", usernameBase("Ana Dela Cruz"))
	assert.Equal(t, "parent", usernameBase(" - "))
	assert.True(t, strings.HasPrefix(parentDisplayName(&models.Enrollment{FirstName: "A", LastName: "B"}), "Parent of"))
}
