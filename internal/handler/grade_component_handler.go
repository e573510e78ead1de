package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/grading"
	"github.com/noah-isme/ace-school-api/pkg/response"
)

// ListItems godoc
// @Summary List grade items
// @Tags Grade Items
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param grade_level query int false "Filter by grade level (0-6)"
// @Param quarter query int false "Filter by quarter (1-4)"
// @Param category query string false "ACTIVITY, QUIZ or EXAM"
// @Success 200 {object} response.Envelope
// @Router /grades/items [get]
func (h *GradeHandler) ListItems(c *gin.Context) {
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
	filter := models.GradeItemFilter{
		SubjectID:  c.Query("subject"),
		GradeLevel: gradeLevel,
		Quarter:    quarter,
		Category:   grading.Category(strings.ToUpper(strings.TrimSpace(c.Query("category")))),
	}
	items, err := h.grades.ListItems(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// GetItem godoc
// @Summary Grade item detail
// @Tags Grade Items
// @Produce json
// @Param id path string true "Grade item ID"
// @Success 200 {object} response.Envelope
// @Router /grades/items/{id} [get]
func (h *GradeHandler) GetItem(c *gin.Context) {
	item, err := h.grades.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// CreateItem godoc
// @Summary Create an activity, quiz or exam
// @Tags Grade Items
// @Accept json
// @Produce json
// @Param payload body dto.CreateGradeItemRequest true "Grade item"
// @Success 201 {object} response.Envelope
// @Router /grades/items [post]
func (h *GradeHandler) CreateItem(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateGradeItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.grades.CreateItem(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateItem godoc
// @Summary Update a grade item
// @Tags Grade Items
// @Accept json
// @Produce json
// @Param id path string true "Grade item ID"
// @Param payload body dto.UpdateGradeItemRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /grades/items/{id} [put]
func (h *GradeHandler) UpdateItem(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateGradeItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.grades.UpdateItem(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteItem godoc
// @Summary Delete a grade item and its scores
// @Tags Grade Items
// @Param id path string true "Grade item ID"
// @Success 204
// @Router /grades/items/{id} [delete]
func (h *GradeHandler) DeleteItem(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.grades.DeleteItem(c.Request.Context(), caller, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
