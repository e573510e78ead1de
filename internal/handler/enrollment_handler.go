package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
	"github.com/noah-isme/ace-school-api/pkg/response"
)

type enrollmentService interface {
	Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*dto.EnrollmentResponse, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]*dto.EnrollmentResponse, *models.Pagination, error)
	ListForParent(ctx context.Context, parentUserID string, page, size int) ([]*dto.EnrollmentResponse, *models.Pagination, error)
	Statistics(ctx context.Context, academicYear string) (*models.EnrollmentStatistics, error)
	Get(ctx context.Context, id string) (*dto.EnrollmentDetail, error)
	Lifecycle(ctx context.Context, id string) (*lifecycle.Evaluation, error)
	Update(ctx context.Context, id string, req dto.UpdateEnrollmentRequest) (*dto.EnrollmentResponse, error)
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) (*dto.ApproveResult, error)
	Decline(ctx context.Context, id string) (*dto.EnrollmentResponse, error)
	Complete(ctx context.Context, id string) (*dto.EnrollmentResponse, error)
	Promote(ctx context.Context, id string) (*dto.EnrollmentResponse, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Create godoc
// @Summary Submit an enrollment form
// @Description Public endpoint. Returns the PENDING record with soft validation warnings.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment form"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment, response.Warnings(enrollment.Warnings))
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_number query string false "Filter by student number"
// @Param grade_level query string false "Filter by grade code"
// @Param status query string false "Filter by status"
// @Param academic_year query string false "Filter by academic year"
// @Param search query string false "Name, LRN or email"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentNumber: strings.TrimSpace(c.Query("student_number")),
		GradeLevel:    lifecycle.GradeCode(strings.ToLower(strings.TrimSpace(c.Query("grade_level")))),
		Status:        lifecycle.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		AcademicYear:  strings.TrimSpace(c.Query("academic_year")),
		Search:        strings.TrimSpace(c.Query("search")),
		SortBy:        c.Query("sort"),
		SortOrder:     c.Query("order"),
	}
	if filter.GradeLevel != "" && !filter.GradeLevel.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown grade_level"))
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status"))
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Statistics godoc
// @Summary Enrollment counts by status and grade
// @Tags Enrollments
// @Produce json
// @Param academic_year query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Router /enrollments/statistics [get]
func (h *EnrollmentHandler) Statistics(c *gin.Context) {
	stats, err := h.enrollments.Statistics(c.Request.Context(), strings.TrimSpace(c.Query("academic_year")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Enrollment detail with lifecycle evaluation
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Lifecycle godoc
// @Summary Lifecycle checks for an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/lifecycle [get]
func (h *EnrollmentHandler) Lifecycle(c *gin.Context) {
	evaluation, err := h.enrollments.Lifecycle(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Update godoc
// @Summary Edit an enrollment
// @Description Locked records reject edits with 412 unless only academic_year changes or override is set.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpdateEnrollmentRequest true "Partial update"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id} [patch]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	var req dto.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil, response.Warnings(enrollment.Warnings))
}

// Delete godoc
// @Summary Delete an enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Approve godoc
// @Summary Approve a pending enrollment
// @Description Assigns the student number, links or creates the parent account and queues the notice.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	result, err := h.enrollments.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Decline godoc
// @Summary Decline a pending enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/decline [post]
func (h *EnrollmentHandler) Decline(c *gin.Context) {
	h.transition(c, h.enrollments.Decline)
}

// Complete godoc
// @Summary Mark an enrollment completed
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	h.transition(c, h.enrollments.Complete)
}

// Promote godoc
// @Summary Stage next year's enrollment
// @Description Creates a PENDING record for the next grade and academic year.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/promote [post]
func (h *EnrollmentHandler) Promote(c *gin.Context) {
	enrollment, err := h.enrollments.Promote(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment, response.Warnings(enrollment.Warnings))
}

// ParentEnrollments godoc
// @Summary Enrollments linked to the signed-in parent
// @Tags Parents
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /parents/me/enrollments [get]
func (h *EnrollmentHandler) ParentEnrollments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, size := pageParams(c)
	enrollments, pagination, err := h.enrollments.ListForParent(c.Request.Context(), claims.UserID, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

func (h *EnrollmentHandler) transition(c *gin.Context, fn func(context.Context, string) (*dto.EnrollmentResponse, error)) {
	enrollment, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || size < 1 {
		size = 20
	}
	return page, size
}
