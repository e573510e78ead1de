package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
)

// Workflow remarks appended to an enrollment.
const (
	RemarkApproved  = "APPROVED BY ADMIN"
	RemarkDeclined  = "DECLINED BY ADMIN"
	RemarkCompleted = "COMPLETED BY ADMIN"
)

const studentNumberDigits = 6

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	UpdateWorkflow(ctx context.Context, enrollment *models.Enrollment) error
	Approve(ctx context.Context, enrollment *models.Enrollment, newParent *models.User) error
	Delete(ctx context.Context, id string) error
	MaxStudentNumber(ctx context.Context, prefix string) (string, error)
	CountByStatus(ctx context.Context, academicYear string) ([]models.StatusCount, error)
	CountByGrade(ctx context.Context, academicYear string) ([]models.GradeCount, error)
}

type parentAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type enrollmentNotifier interface {
	NotifyApproved(ctx context.Context, notice EnrollmentNotice) error
	NotifyPromoted(ctx context.Context, notice EnrollmentNotice) error
}

// EnrollmentConfig tunes the enrollment service.
type EnrollmentConfig struct {
	StatsCacheTTL time.Duration
}

// EnrollmentService implements the enrollment intake and admin workflow.
type EnrollmentService struct {
	repo      enrollmentRepository
	users     parentAccountRepository
	notifier  enrollmentNotifier
	cache     *CacheService
	metrics   *MetricsService
	evaluator *lifecycle.Evaluator
	validator *validator.Validate
	logger    *zap.Logger
	config    EnrollmentConfig
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, users parentAccountRepository, notifier enrollmentNotifier, cache *CacheService, metrics *MetricsService, evaluator *lifecycle.Evaluator, validate *validator.Validate, logger *zap.Logger, cfg EnrollmentConfig) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = lifecycle.NewEvaluator(nil, nil)
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = 5 * time.Minute
	}
	return &EnrollmentService{
		repo:      repo,
		users:     users,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		evaluator: evaluator,
		validator: validate,
		logger:    logger,
		config:    cfg,
	}
}

// Create validates a submitted enrollment form and stores it as PENDING.
// Hard rule violations reject the request; soft ones come back as warnings.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment := &models.Enrollment{
		LRN:             strings.TrimSpace(req.LRN),
		FirstName:       strings.TrimSpace(req.FirstName),
		MiddleName:      strings.TrimSpace(req.MiddleName),
		LastName:        strings.TrimSpace(req.LastName),
		BirthDate:       req.BirthDate.Ptr(),
		Gender:          req.Gender,
		GradeLevel:      req.GradeLevel,
		EducationLevel:  req.EducationLevel,
		AcademicYear:    strings.TrimSpace(req.AcademicYear),
		Status:          lifecycle.StatusPending,
		StudentType:     req.StudentType,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Address:         strings.TrimSpace(req.Address),
		Religion:        strings.TrimSpace(req.Religion),
		TelephoneNumber: strings.TrimSpace(req.TelephoneNumber),
		MobileNumber:    strings.TrimSpace(req.MobileNumber),
		ParentFacebook:  strings.TrimSpace(req.ParentFacebook),
		ParentInfo:      req.ParentInfo.Model(),
	}
	mode := req.PaymentMode
	enrollment.PaymentMode = &mode
	if enrollment.AcademicYear == "" {
		enrollment.AcademicYear = s.evaluator.CurrentAcademicYear()
	}

	if err := s.validateRecord(enrollment); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an enrollment for this student and academic year already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.afterWrite(ctx, "create")
	s.logger.Info("enrollment submitted",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("grade_level", string(enrollment.GradeLevel)),
		zap.String("academic_year", enrollment.AcademicYear))

	return dto.NewEnrollmentResponse(enrollment, s.evaluator.Warnings(enrollment.Record())), nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]*dto.EnrollmentResponse, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	items := make([]*dto.EnrollmentResponse, 0, len(enrollments))
	for i := range enrollments {
		e := &enrollments[i]
		items = append(items, dto.NewEnrollmentResponse(e, s.evaluator.Warnings(e.Record())))
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListForParent returns the enrollments linked to a parent account.
func (s *EnrollmentService) ListForParent(ctx context.Context, parentUserID string, page, size int) ([]*dto.EnrollmentResponse, *models.Pagination, error) {
	if parentUserID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing parent account")
	}
	return s.List(ctx, models.EnrollmentFilter{ParentUserID: parentUserID, Page: page, PageSize: size, SortBy: "academic_year"})
}

// Statistics counts enrollments by status and grade, optionally within one
// academic year. Results are cached briefly.
func (s *EnrollmentService) Statistics(ctx context.Context, academicYear string) (*models.EnrollmentStatistics, error) {
	key := statisticsCacheKey(academicYear)
	var cached models.EnrollmentStatistics
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	byStatus, err := s.repo.CountByStatus(ctx, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	byGrade, err := s.repo.CountByGrade(ctx, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}

	stats := &models.EnrollmentStatistics{
		ByStatus: map[string]int{},
		ByGrade:  map[string]int{},
	}
	for _, st := range []lifecycle.Status{lifecycle.StatusPending, lifecycle.StatusActive, lifecycle.StatusDropped, lifecycle.StatusCompleted} {
		stats.ByStatus[string(st)] = 0
	}
	for _, g := range lifecycle.Grades() {
		stats.ByGrade[lifecycle.GradeLabel(g)] = 0
	}
	for _, row := range byStatus {
		stats.ByStatus[string(row.Status)] += row.Count
		stats.Total += row.Count
	}
	for _, row := range byGrade {
		stats.ByGrade[lifecycle.GradeLabel(row.GradeLevel)] += row.Count
	}

	_ = s.cache.Set(ctx, key, stats, s.config.StatsCacheTTL)
	return stats, nil
}

// Get returns an enrollment with parent info and its lifecycle evaluation.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*dto.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	record := enrollment.Record()
	return &dto.EnrollmentDetail{
		EnrollmentResponse: dto.NewEnrollmentResponse(enrollment, s.evaluator.Warnings(record)),
		Lifecycle:          s.evaluator.Evaluate(record),
	}, nil
}

// Lifecycle evaluates the lifecycle rules for an enrollment.
func (s *EnrollmentService) Lifecycle(ctx context.Context, id string) (*lifecycle.Evaluation, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := s.evaluator.Evaluate(enrollment.Record())
	return &ev, nil
}

// Update applies a partial edit. Records whose academic year has expired only
// accept an academic year change unless the caller sets Override.
func (s *EnrollmentService) Update(ctx context.Context, id string, req dto.UpdateEnrollmentRequest) (*dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	gate := s.evaluator.Gate(enrollment.Record(), false)
	if gate.ReadOnly && !req.OnlyAcademicYear() && !req.Override {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("Academic year %s has expired; update the academic year first or save with override.", enrollment.AcademicYear))
	}

	applyEnrollmentPatch(enrollment, req)
	if err := s.validateRecord(enrollment); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used in that academic year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	if gate.ReadOnly && req.Override {
		s.logger.Warn("expired enrollment edited with override", zap.String("enrollment_id", id))
	}
	s.afterWrite(ctx, "update")
	return dto.NewEnrollmentResponse(enrollment, s.evaluator.Warnings(enrollment.Record())), nil
}

// Delete removes an enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	s.afterWrite(ctx, "delete")
	return nil
}

// Approve activates a PENDING enrollment. It assigns a student number when
// the student has none, links or creates the parent account and queues the
// parent notification.
func (s *EnrollmentService) Approve(ctx context.Context, id string) (*dto.ApproveResult, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(enrollment, lifecycle.StatusActive); err != nil {
		return nil, err
	}

	now := s.evaluator.Now()
	enrollment.Status = lifecycle.StatusActive
	enrollment.Remarks = appendRemark(enrollment.Remarks, RemarkApproved)
	if enrollment.EnrolledAt == nil {
		enrolledAt := now.UTC()
		enrollment.EnrolledAt = &enrolledAt
	}

	parent, created, err := s.resolveParent(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	if parent != nil && !created {
		enrollment.ParentUserID = &parent.ID
	}
	var newParent *models.User
	if created {
		newParent = parent
	}

	if err := s.saveApproval(ctx, enrollment, newParent, now); err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("parent account created", zap.String("user_id", parent.ID), zap.String("enrollment_id", enrollment.ID))
	}

	result := &dto.ApproveResult{ParentCreated: created}
	if parent != nil {
		result.ParentUserID = parent.ID
	}

	s.afterWrite(ctx, "approve")
	result.Enrollment = dto.NewEnrollmentResponse(enrollment, s.evaluator.Warnings(enrollment.Record()))
	result.NotificationQueued = s.notifyApproval(ctx, enrollment, parent)
	return result, nil
}

// Decline drops a PENDING enrollment.
func (s *EnrollmentService) Decline(ctx context.Context, id string) (*dto.EnrollmentResponse, error) {
	return s.close(ctx, id, lifecycle.StatusDropped, RemarkDeclined, "decline")
}

// Complete marks a non-terminal enrollment COMPLETED.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*dto.EnrollmentResponse, error) {
	return s.close(ctx, id, lifecycle.StatusCompleted, RemarkCompleted, "complete")
}

// Promote stages the next-grade enrollment for the student and stores it as
// a new PENDING record. The source record is left untouched.
func (s *EnrollmentService) Promote(ctx context.Context, id string) (*dto.EnrollmentResponse, error) {
	source, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	staged, err := s.evaluator.Promote(source.Record())
	if err != nil {
		if errors.Is(err, lifecycle.ErrHighestGrade) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Student is already at the highest grade level.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote enrollment")
	}

	promoted := models.EnrollmentFromRecord(staged)
	if err := s.repo.Create(ctx, promoted); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student already has an enrollment for %s", promoted.AcademicYear))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save promoted enrollment")
	}

	s.afterWrite(ctx, "promote")
	s.logger.Info("enrollment promoted",
		zap.String("source_id", source.ID),
		zap.String("enrollment_id", promoted.ID),
		zap.String("grade_level", string(promoted.GradeLevel)),
		zap.String("academic_year", promoted.AcademicYear))

	return dto.NewEnrollmentResponse(promoted, s.evaluator.Warnings(promoted.Record())), nil
}

func (s *EnrollmentService) close(ctx context.Context, id string, to lifecycle.Status, remark, action string) (*dto.EnrollmentResponse, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(enrollment, to); err != nil {
		return nil, err
	}

	completedAt := s.evaluator.Now().UTC()
	enrollment.Status = to
	enrollment.CompletedAt = &completedAt
	enrollment.Remarks = appendRemark(enrollment.Remarks, remark)

	if err := s.repo.UpdateWorkflow(ctx, enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	s.afterWrite(ctx, action)
	return dto.NewEnrollmentResponse(enrollment, nil), nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) checkTransition(e *models.Enrollment, to lifecycle.Status) error {
	if lifecycle.CanTransition(e.Status, to) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrPreconditionFailed,
		fmt.Sprintf("Cannot change a %s enrollment to %s.", lifecycle.StatusLabel(e.Status), lifecycle.StatusLabel(to)))
}

// saveApproval persists the approval together with a new parent account,
// assigning the next student number of the current calendar year when
// needed. A concurrent approval can take the same number, so the assignment
// is retried on unique violations.
func (s *EnrollmentService) saveApproval(ctx context.Context, e *models.Enrollment, newParent *models.User, now time.Time) error {
	assign := e.StudentNumber == nil || *e.StudentNumber == ""
	prefix := strconv.Itoa(now.Year())

	const attempts = 3
	for attempt := 1; ; attempt++ {
		if assign {
			max, err := s.repo.MaxStudentNumber(ctx, prefix)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student number")
			}
			number, err := nextStudentNumber(prefix, max)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student number")
			}
			e.StudentNumber = &number
		}

		err := s.repo.Approve(ctx, e, newParent)
		if err == nil {
			return nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		if isUniqueViolation(err) {
			if assign && attempt < attempts {
				s.logger.Warn("student number taken, retrying", zap.String("student_number", *e.StudentNumber))
				continue
			}
			return appErrors.Clone(appErrors.ErrConflict, "student number already used in this academic year")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
	}
}

// resolveParent finds the parent account for an approved enrollment by its
// email. Returning students are only linked to an existing account. For new
// students it prepares an account without a usable password; the account is
// stored by saveApproval in the same transaction as the approval.
func (s *EnrollmentService) resolveParent(ctx context.Context, e *models.Enrollment) (*models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(e.Email))
	if email == "" || s.users == nil {
		return nil, false, nil
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up parent account")
	}
	if existing != nil {
		if existing.Role != models.RoleParentStudent {
			s.logger.Warn("enrollment email belongs to a staff account; not linking",
				zap.String("enrollment_id", e.ID), zap.String("role", string(existing.Role)))
			return nil, false, nil
		}
		return existing, false, nil
	}

	if e.StudentType == lifecycle.StudentTypeOld {
		s.logger.Warn("returning student approved without an existing parent account",
			zap.String("enrollment_id", e.ID))
		return nil, false, nil
	}

	username, err := s.uniqueUsername(ctx, e)
	if err != nil {
		return nil, false, err
	}
	user := &models.User{
		Username: username,
		Email:    email,
		FullName: parentDisplayName(e),
		Role:     models.RoleParentStudent,
		Active:   true,
	}
	return user, true, nil
}

func (s *EnrollmentService) uniqueUsername(ctx context.Context, e *models.Enrollment) (string, error) {
	base := usernameBase(e.FirstName + e.LastName)
	candidate := base
	for i := 2; i < 1000; i++ {
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not allocate a parent username")
}

func (s *EnrollmentService) notifyApproval(ctx context.Context, e *models.Enrollment, parent *models.User) bool {
	if s.notifier == nil || e.Email == "" {
		return false
	}
	notice := EnrollmentNotice{
		EnrollmentID: e.ID,
		StudentName:  e.StudentName(),
		GradeLabel:   e.GradeLabel(),
		AcademicYear: e.AcademicYear,
		Email:        e.Email,
	}
	if e.StudentNumber != nil {
		notice.StudentNumber = *e.StudentNumber
	}

	var err error
	if e.StudentType == lifecycle.StudentTypeOld {
		if parent == nil {
			return false
		}
		notice.ParentUserID = parent.ID
		err = s.notifier.NotifyPromoted(ctx, notice)
	} else {
		if parent != nil {
			notice.ParentUserID = parent.ID
			notice.Username = parent.Username
			notice.NeedsPassword = !parent.HasUsablePassword()
		}
		err = s.notifier.NotifyApproved(ctx, notice)
	}
	if err != nil {
		s.logger.Warn("failed to queue enrollment notification", zap.String("enrollment_id", e.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *EnrollmentService) afterWrite(ctx context.Context, action string) {
	s.metrics.RecordEnrollmentEvent(action)
	_ = s.cache.Invalidate(ctx, statisticsPattern())
}

// validateRecord applies the hard rules; every violation is reported at once.
func (s *EnrollmentService) validateRecord(e *models.Enrollment) error {
	var reasons []string

	if v := lifecycle.ValidateGradeForLevel(e.EducationLevel, e.GradeLevel); !v.OK {
		reasons = append(reasons, v.Reason)
	}
	if _, err := lifecycle.ParseAcademicYear(e.AcademicYear); err != nil {
		reasons = append(reasons, "Academic year must be YYYY-YYYY with consecutive years.")
	}
	if v := s.evaluator.ValidateBirthDate(e.BirthDate); !v.OK {
		reasons = append(reasons, v.Reason)
	}
	if e.Email == "" && e.MobileNumber == "" && e.TelephoneNumber == "" {
		reasons = append(reasons, "Provide at least one contact: email, mobile or telephone number.")
	}
	if e.MobileNumber != "" {
		normalized, ok := lifecycle.NormalizePHMobile(e.MobileNumber)
		if ok {
			e.MobileNumber = normalized
		} else {
			reasons = append(reasons, "Mobile number must be 09XXXXXXXXX or +639XXXXXXXXX.")
		}
	}
	if e.ParentInfo != nil {
		parent := e.Record().Parent
		if parent.HasNames() && !parent.HasContact() {
			reasons = append(reasons, "Parent or guardian contact number is required.")
		}
	}

	if len(reasons) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, strings.Join(reasons, " "))
	}
	return nil
}

func applyEnrollmentPatch(e *models.Enrollment, req dto.UpdateEnrollmentRequest) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&e.LRN, req.LRN)
	setString(&e.FirstName, req.FirstName)
	setString(&e.MiddleName, req.MiddleName)
	setString(&e.LastName, req.LastName)
	setString(&e.Gender, req.Gender)
	setString(&e.AcademicYear, req.AcademicYear)
	setString(&e.Address, req.Address)
	setString(&e.Religion, req.Religion)
	setString(&e.TelephoneNumber, req.TelephoneNumber)
	setString(&e.MobileNumber, req.MobileNumber)
	setString(&e.ParentFacebook, req.ParentFacebook)
	if req.Email != nil {
		e.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.BirthDate != nil {
		e.BirthDate = req.BirthDate.Ptr()
	}
	if req.GradeLevel != nil {
		e.GradeLevel = *req.GradeLevel
		if req.EducationLevel == nil {
			if level, ok := lifecycle.EducationLevelFor(e.GradeLevel); ok {
				e.EducationLevel = level
			}
		}
	}
	if req.EducationLevel != nil {
		e.EducationLevel = *req.EducationLevel
	}
	if req.StudentType != nil {
		e.StudentType = *req.StudentType
	}
	if req.PaymentMode != nil {
		mode := *req.PaymentMode
		e.PaymentMode = &mode
	}
	if req.ParentInfo != nil {
		e.ParentInfo = req.ParentInfo.Model()
	}
}

// appendRemark adds note to remarks once, separated by " | ".
func appendRemark(remarks, note string) string {
	remarks = strings.TrimSpace(remarks)
	if strings.Contains(remarks, note) {
		return remarks
	}
	if remarks == "" {
		return note
	}
	return remarks + " | " + note
}

// nextStudentNumber returns prefix followed by the next zero-padded sequence
// after max.
func nextStudentNumber(prefix, max string) (string, error) {
	seq := 0
	if max != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(max, prefix))
		if err != nil {
			return "", fmt.Errorf("parse student number %q: %w", max, err)
		}
		seq = n
	}
	return fmt.Sprintf("%s%0*d", prefix, studentNumberDigits, seq+1), nil
}

func usernameBase(name string) string {
	base := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	if base == "" {
		return "parent"
	}
	return base
}

func parentDisplayName(e *models.Enrollment) string {
	if p := e.ParentInfo; p != nil {
		for _, name := range []string{p.GuardianName, p.MotherName, p.FatherName} {
			if name = strings.TrimSpace(name); name != "" {
				return name
			}
		}
	}
	return "Parent of " + e.StudentName()
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
