package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/grading"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
)

type gradeWeightRepository interface {
	FindWeights(ctx context.Context, subjectID string) (*models.GradeWeight, error)
	UpsertWeights(ctx context.Context, weight *models.GradeWeight) error
}

type gradeItemRepository interface {
	List(ctx context.Context, filter models.GradeItemFilter) ([]models.GradeItem, error)
	FindByID(ctx context.Context, id string) (*models.GradeItem, error)
	Create(ctx context.Context, item *models.GradeItem) error
	Update(ctx context.Context, item *models.GradeItem) error
	Delete(ctx context.Context, id string) error
	MaxScoreOf(ctx context.Context, itemID string) (float64, error)
}

type gradeScoreRepository interface {
	ListScores(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
	UpsertScore(ctx context.Context, score *models.Score) error
	ListClassStandings(ctx context.Context, filter models.ClassStandingFilter) ([]models.ClassStanding, error)
	UpsertClassStanding(ctx context.Context, standing *models.ClassStanding) error
}

type gradeStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	ListActiveByGrades(ctx context.Context, grades []lifecycle.GradeCode, academicYear string) ([]models.Enrollment, error)
}

type subjectReader interface {
	List(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type gradeUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Caller is the authenticated user a grade request runs as.
type Caller struct {
	UserID string
	Role   models.UserRole
}

// GradeServiceConfig tunes the grade service.
type GradeServiceConfig struct {
	CacheTTL time.Duration
}

// GradeService implements grade encoding and quarter grade computation.
// Students are enrollment records; scores and class standings are keyed by
// enrollment id.
type GradeService struct {
	weights   gradeWeightRepository
	items     gradeItemRepository
	scores    gradeScoreRepository
	students  gradeStudentRepository
	subjects  subjectReader
	users     gradeUserReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	config    GradeServiceConfig
}

// NewGradeService constructs GradeService.
func NewGradeService(weights gradeWeightRepository, items gradeItemRepository, scores gradeScoreRepository, students gradeStudentRepository, subjects subjectReader, users gradeUserReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg GradeServiceConfig) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &GradeService{
		weights:   weights,
		items:     items,
		scores:    scores,
		students:  students,
		subjects:  subjects,
		users:     users,
		cache:     cache,
		validator: validate,
		logger:    logger,
		config:    cfg,
	}
}

// ListScores returns recorded scores.
func (s *GradeService) ListScores(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	scores, err := s.scores.ListScores(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	return scores, nil
}

// UpsertScore records a student's score on a grade item. The score must be
// between 0 and the item's total score.
func (s *GradeService) UpsertScore(ctx context.Context, caller Caller, req dto.UpsertScoreRequest) (*models.Score, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	item, err := s.loadItem(ctx, req.GradeItemID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSubject(ctx, caller, item.SubjectID); err != nil {
		return nil, err
	}
	if *req.Score > item.TotalScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Score must be between 0 and %g.", item.TotalScore))
	}
	if _, err := s.loadStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	score := &models.Score{StudentID: req.StudentID, GradeItemID: item.ID, Score: *req.Score}
	if err := s.scores.UpsertScore(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save score")
	}
	_ = s.cache.Delete(ctx, gradesCacheKey(req.StudentID, item.SubjectID))
	return score, nil
}

// ListClassStandings returns class standing scores.
func (s *GradeService) ListClassStandings(ctx context.Context, filter models.ClassStandingFilter) ([]models.ClassStanding, error) {
	standings, err := s.scores.ListClassStandings(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class standings")
	}
	return standings, nil
}

// UpsertClassStanding records a 0-100 class standing for a quarter.
func (s *GradeService) UpsertClassStanding(ctx context.Context, caller Caller, req dto.UpsertClassStandingRequest) (*models.ClassStanding, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class standing payload")
	}
	if err := s.authorizeSubject(ctx, caller, req.SubjectID); err != nil {
		return nil, err
	}
	if _, err := s.loadStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	standing := &models.ClassStanding{StudentID: req.StudentID, SubjectID: req.SubjectID, Quarter: req.Quarter, Score: *req.Score}
	if err := s.scores.UpsertClassStanding(ctx, standing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save class standing")
	}
	_ = s.cache.Delete(ctx, gradesCacheKey(req.StudentID, req.SubjectID))
	return standing, nil
}

// StudentsByGrade lists the active students of a numeric grade level.
// Level 0 covers both preschool grades.
func (s *GradeService) StudentsByGrade(ctx context.Context, gradeLevel int) ([]dto.GradeStudent, error) {
	enrollments, err := s.activeStudents(ctx, gradeLevel)
	if err != nil {
		return nil, err
	}
	out := make([]dto.GradeStudent, 0, len(enrollments))
	for i := range enrollments {
		out = append(out, gradeStudent(&enrollments[i]))
	}
	return out, nil
}

// Sheet builds the encoding view of a subject, grade level and quarter:
// every active student with their item scores and quarter breakdown.
func (s *GradeService) Sheet(ctx context.Context, subjectID string, gradeLevel, quarter int) (*dto.GradeSheet, error) {
	if quarter < 1 || quarter > 4 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Quarter must be between 1 and 4.")
	}
	students, err := s.activeStudents(ctx, gradeLevel)
	if err != nil {
		return nil, err
	}
	weights, err := s.currentWeights(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.List(ctx, models.GradeItemFilter{SubjectID: subjectID, GradeLevel: &gradeLevel, Quarter: &quarter})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade items")
	}
	scores, err := s.scores.ListScores(ctx, models.ScoreFilter{SubjectID: subjectID, GradeLevel: &gradeLevel, Quarter: &quarter})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}
	standings, err := s.scores.ListClassStandings(ctx, models.ClassStandingFilter{SubjectID: subjectID, Quarter: &quarter})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class standings")
	}

	sheet := buildSheet(items, scores, standings, quarter, weights)
	out := &dto.GradeSheet{
		SubjectID:  subjectID,
		GradeLevel: gradeLevel,
		Quarter:    quarter,
		Weights:    weights,
		Items:      items,
		Rows:       make([]dto.SheetRow, 0, len(students)),
	}
	for i := range students {
		student := &students[i]
		row := dto.SheetRow{
			GradeStudent:  gradeStudent(student),
			Scores:        make(map[string]*float64, len(items)),
			QuarterGrades: quarterGrades(grading.Breakdown(sheet, student.ID)),
		}
		for _, item := range items {
			if v, ok := sheet.Score(item.ID, student.ID); ok {
				row.Scores[item.ID] = &v
			} else {
				row.Scores[item.ID] = nil
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Compute returns the four quarters, final grade and remark of a student in
// a subject. Parents may only see their own children.
func (s *GradeService) Compute(ctx context.Context, caller Caller, studentID, subjectID string) (*models.SubjectGrades, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeStudent(caller, student); err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return s.subjectGrades(ctx, student, subject)
}

// ReportCard lists a student's computed grades across every subject.
func (s *GradeService) ReportCard(ctx context.Context, caller Caller, studentID string) (*models.ReportCard, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeStudent(caller, student); err != nil {
		return nil, err
	}
	return s.reportCard(ctx, student)
}

// MyGrades returns a report card for each active child linked to the
// calling parent account.
func (s *GradeService) MyGrades(ctx context.Context, caller Caller) ([]models.ReportCard, error) {
	if caller.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	children, _, err := s.students.List(ctx, models.EnrollmentFilter{
		ParentUserID: caller.UserID,
		Status:       lifecycle.StatusActive,
		PageSize:     100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load linked students")
	}
	cards := make([]models.ReportCard, 0, len(children))
	for i := range children {
		card, err := s.reportCard(ctx, &children[i])
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

func (s *GradeService) reportCard(ctx context.Context, student *models.Enrollment) (*models.ReportCard, error) {
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	card := &models.ReportCard{
		StudentID:    student.ID,
		StudentName:  student.StudentName(),
		GradeLevel:   student.GradeLabel(),
		AcademicYear: student.AcademicYear,
		Subjects:     make([]models.SubjectGrades, 0, len(subjects)),
	}
	if student.StudentNumber != nil {
		card.StudentNumber = *student.StudentNumber
	}
	finals := make([]*float64, 0, len(subjects))
	for i := range subjects {
		grades, err := s.subjectGrades(ctx, student, &subjects[i])
		if err != nil {
			return nil, err
		}
		card.Subjects = append(card.Subjects, *grades)
		finals = append(finals, grades.FinalGrade)
	}
	card.GeneralAverage = grading.FinalGrade(finals)
	card.AverageDisplay = grading.Display(card.GeneralAverage)
	return card, nil
}

// subjectGrades computes a student's grades in one subject, served from the
// cache when possible.
func (s *GradeService) subjectGrades(ctx context.Context, student *models.Enrollment, subject *models.Subject) (*models.SubjectGrades, error) {
	key := gradesCacheKey(student.ID, subject.ID)
	var cached models.SubjectGrades
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	level, ok := lifecycle.GradeNumber(student.GradeLevel)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student has an unknown grade level")
	}
	weights, err := s.currentWeights(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.List(ctx, models.GradeItemFilter{SubjectID: subject.ID, GradeLevel: &level})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade items")
	}
	scores, err := s.scores.ListScores(ctx, models.ScoreFilter{StudentID: student.ID, SubjectID: subject.ID, GradeLevel: &level})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}
	standings, err := s.scores.ListClassStandings(ctx, models.ClassStandingFilter{SubjectID: subject.ID, StudentID: student.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class standings")
	}

	out := &models.SubjectGrades{StudentID: student.ID, SubjectID: subject.ID, SubjectName: subject.Name}
	quarters := []*models.QuarterGrades{&out.Q1, &out.Q2, &out.Q3, &out.Q4}
	results := make([]*float64, 0, len(quarters))
	for i, q := range quarters {
		sheet := buildSheet(items, scores, standings, i+1, weights)
		*q = quarterGrades(grading.Breakdown(sheet, student.ID))
		results = append(results, q.QuarterGrade)
	}
	out.FinalGrade = grading.FinalGrade(results)
	out.FinalDisplay = grading.Display(out.FinalGrade)
	out.Remark = grading.RemarkFor(out.FinalGrade)

	if err := s.cache.Set(ctx, key, out, s.config.CacheTTL); err != nil {
		s.logger.Debug("grade cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (s *GradeService) activeStudents(ctx context.Context, gradeLevel int) ([]models.Enrollment, error) {
	grades := gradesForLevel(gradeLevel)
	if len(grades) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Grade level must be between 0 and 6.")
	}
	students, err := s.students.ListActiveByGrades(ctx, grades, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

func (s *GradeService) loadStudent(ctx context.Context, id string) (*models.Enrollment, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// authorizeSubject limits teachers to their assigned subject. Admins pass.
func (s *GradeService) authorizeSubject(ctx context.Context, caller Caller, subjectID string) error {
	if caller.Role != models.RoleTeacher {
		return nil
	}
	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrUnauthorized
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if user.SubjectID == nil || *user.SubjectID != subjectID {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only manage grades for your assigned subject.")
	}
	return nil
}

func authorizeStudent(caller Caller, student *models.Enrollment) error {
	if caller.Role != models.RoleParentStudent {
		return nil
	}
	if student.ParentUserID == nil || *student.ParentUserID != caller.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only view grades of your own children.")
	}
	return nil
}

// buildSheet narrows the student's items, scores and standings to one quarter.
func buildSheet(items []models.GradeItem, scores []models.Score, standings []models.ClassStanding, quarter int, weights grading.Weights) grading.Sheet {
	sheet := grading.Sheet{
		Scores:        map[string]map[string]float64{},
		ClassStanding: map[string]float64{},
		Weights:       weights,
	}
	inQuarter := map[string]bool{}
	for _, item := range items {
		if item.Quarter != quarter {
			continue
		}
		inQuarter[item.ID] = true
		sheet.Items = append(sheet.Items, grading.Item{ID: item.ID, Category: item.Category, TotalScore: item.TotalScore})
	}
	for _, sc := range scores {
		if !inQuarter[sc.GradeItemID] {
			continue
		}
		byStudent, ok := sheet.Scores[sc.GradeItemID]
		if !ok {
			byStudent = map[string]float64{}
			sheet.Scores[sc.GradeItemID] = byStudent
		}
		byStudent[sc.StudentID] = sc.Score
	}
	for _, st := range standings {
		if st.Quarter == quarter {
			sheet.ClassStanding[st.StudentID] = st.Score
		}
	}
	return sheet
}

func quarterGrades(res grading.QuarterResult) models.QuarterGrades {
	return models.QuarterGrades{QuarterResult: res, Display: grading.Display(res.QuarterGrade)}
}

// gradesForLevel maps a numeric grade level back to the grade codes that
// share it.
func gradesForLevel(level int) []lifecycle.GradeCode {
	var out []lifecycle.GradeCode
	for _, g := range lifecycle.Grades() {
		if n, ok := lifecycle.GradeNumber(g); ok && n == level {
			out = append(out, g)
		}
	}
	return out
}

func gradeStudent(e *models.Enrollment) dto.GradeStudent {
	out := dto.GradeStudent{ID: e.ID, StudentName: e.StudentName(), GradeLevel: e.GradeLabel()}
	if e.StudentNumber != nil {
		out.StudentNumber = *e.StudentNumber
	}
	return out
}
