package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-school-api/internal/dto"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/response"
)

// Weights godoc
// @Summary Category weights of a subject
// @Description Creates the default 40/20/20/20 weights on first access.
// @Tags Grade Weights
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /grades/weights/{subjectId} [get]
func (h *GradeHandler) Weights(c *gin.Context) {
	weights, err := h.grades.Weights(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weights, nil)
}

// UpdateWeights godoc
// @Summary Update category weights
// @Description Partial update; the merged weights must sum to 100.
// @Tags Grade Weights
// @Accept json
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Param payload body dto.UpdateWeightsRequest true "Weights"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/weights/{subjectId} [put]
func (h *GradeHandler) UpdateWeights(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateWeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	weights, err := h.grades.UpdateWeights(c.Request.Context(), caller, c.Param("subjectId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weights, nil)
}
