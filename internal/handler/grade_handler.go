package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/internal/service"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/response"
)

type gradeService interface {
	TeacherInfo(ctx context.Context, caller service.Caller) (*dto.TeacherInfo, error)
	Weights(ctx context.Context, subjectID string) (*models.GradeWeight, error)
	UpdateWeights(ctx context.Context, caller service.Caller, subjectID string, req dto.UpdateWeightsRequest) (*models.GradeWeight, error)
	ListItems(ctx context.Context, filter models.GradeItemFilter) ([]models.GradeItem, error)
	GetItem(ctx context.Context, id string) (*models.GradeItem, error)
	CreateItem(ctx context.Context, caller service.Caller, req dto.CreateGradeItemRequest) (*models.GradeItem, error)
	UpdateItem(ctx context.Context, caller service.Caller, id string, req dto.UpdateGradeItemRequest) (*models.GradeItem, error)
	DeleteItem(ctx context.Context, caller service.Caller, id string) error
	ListScores(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
	UpsertScore(ctx context.Context, caller service.Caller, req dto.UpsertScoreRequest) (*models.Score, error)
	ListClassStandings(ctx context.Context, filter models.ClassStandingFilter) ([]models.ClassStanding, error)
	UpsertClassStanding(ctx context.Context, caller service.Caller, req dto.UpsertClassStandingRequest) (*models.ClassStanding, error)
	StudentsByGrade(ctx context.Context, gradeLevel int) ([]dto.GradeStudent, error)
	Sheet(ctx context.Context, subjectID string, gradeLevel, quarter int) (*dto.GradeSheet, error)
	Compute(ctx context.Context, caller service.Caller, studentID, subjectID string) (*models.SubjectGrades, error)
	MyGrades(ctx context.Context, caller service.Caller) ([]models.ReportCard, error)
}

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// TeacherInfo godoc
// @Summary Subject assigned to the signed-in teacher
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/teacher-info [get]
func (h *GradeHandler) TeacherInfo(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info, err := h.grades.TeacherInfo(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// ListScores godoc
// @Summary List scores
// @Tags Grades
// @Produce json
// @Param grade_item query string false "Filter by grade item"
// @Param student query string false "Filter by student"
// @Param subject query string false "Filter by subject"
// @Param grade_level query int false "Filter by grade level (0-6)"
// @Param quarter query int false "Filter by quarter (1-4)"
// @Success 200 {object} response.Envelope
// @Router /grades/scores [get]
func (h *GradeHandler) ListScores(c *gin.Context) {
	gradeLevel, err := optionalIntQuery(c, "grade_level")
	if err != nil {
		response.Error(c, err)
		return
	}
	quarter, err := optionalIntQuery(c, "quarter")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ScoreFilter{
		GradeItemID: c.Query("grade_item"),
		StudentID:   c.Query("student"),
		SubjectID:   c.Query("subject"),
		GradeLevel:  gradeLevel,
		Quarter:     quarter,
	}
	scores, err := h.grades.ListScores(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}

// UpsertScore godoc
// @Summary Record a score
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.UpsertScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/scores [post]
func (h *GradeHandler) UpsertScore(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.grades.UpsertScore(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// ListClassStandings godoc
// @Summary List class standing scores
// @Tags Grades
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param quarter query int false "Filter by quarter (1-4)"
// @Param student query string false "Filter by student"
// @Success 200 {object} response.Envelope
// @Router /grades/class-standing [get]
func (h *GradeHandler) ListClassStandings(c *gin.Context) {
	quarter, err := optionalIntQuery(c, "quarter")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ClassStandingFilter{SubjectID: c.Query("subject"), StudentID: c.Query("student"), Quarter: quarter}
	standings, err := h.grades.ListClassStandings(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// UpsertClassStanding godoc
// @Summary Record a class standing score
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.UpsertClassStandingRequest true "Class standing payload"
// @Success 200 {object} response.Envelope
// @Router /grades/class-standing [post]
func (h *GradeHandler) UpsertClassStanding(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertClassStandingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	standing, err := h.grades.UpsertClassStanding(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}

// StudentsByGrade godoc
// @Summary Active students of a grade level
// @Tags Grades
// @Produce json
// @Param gradeLevel path int true "Grade level (0-6)"
// @Success 200 {object} response.Envelope
// @Router /grades/students/{gradeLevel} [get]
func (h *GradeHandler) StudentsByGrade(c *gin.Context) {
	gradeLevel, err := strconv.Atoi(c.Param("gradeLevel"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "grade level must be a number"))
		return
	}
	students, err := h.grades.StudentsByGrade(c.Request.Context(), gradeLevel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Sheet godoc
// @Summary Grade encoding sheet
// @Description Per-student item scores and quarter breakdown for one subject, grade level and quarter.
// @Tags Grades
// @Produce json
// @Param subject query string true "Subject ID"
// @Param grade_level query int true "Grade level (0-6)"
// @Param quarter query int true "Quarter (1-4)"
// @Success 200 {object} response.Envelope
// @Router /grades/sheet [get]
func (h *GradeHandler) Sheet(c *gin.Context) {
	subjectID := strings.TrimSpace(c.Query("subject"))
	if subjectID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subject is required"))
		return
	}
	gradeLevel, err := requiredIntQuery(c, "grade_level")
	if err != nil {
		response.Error(c, err)
		return
	}
	quarter, err := requiredIntQuery(c, "quarter")
	if err != nil {
		response.Error(c, err)
		return
	}
	sheet, err := h.grades.Sheet(c.Request.Context(), subjectID, gradeLevel, quarter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Compute godoc
// @Summary Quarter and final grades of a student in a subject
// @Tags Grades
// @Produce json
// @Param studentId path string true "Student (enrollment) ID"
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades/compute/{studentId}/{subjectId} [get]
func (h *GradeHandler) Compute(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	grades, err := h.grades.Compute(c.Request.Context(), caller, c.Param("studentId"), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// MyGrades godoc
// @Summary Report cards of the signed-in parent's children
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/my-grades [get]
func (h *GradeHandler) MyGrades(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	cards, err := h.grades.MyGrades(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, nil)
}

func optionalIntQuery(c *gin.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, name+" must be a number")
	}
	return &v, nil
}

func requiredIntQuery(c *gin.Context, name string) (int, error) {
	v, err := optionalIntQuery(c, name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" is required")
	}
	return *v, nil
}
