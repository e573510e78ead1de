package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/service"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/response"
)

type exportService interface {
	ExportReportCard(ctx context.Context, caller service.Caller, studentID, rawFormat string) (*dto.ExportResponse, error)
	Open(token string) (*service.Download, error)
}

// ExportHandler serves report card exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ExportReportCard godoc
// @Summary Export a report card
// @Description Renders the report card as CSV or PDF and returns a signed download link.
// @Tags Exports
// @Produce json
// @Param studentId path string true "Student (enrollment) ID"
// @Param format query string false "csv or pdf" default(pdf)
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades/report-card/{studentId}/export [post]
func (h *ExportHandler) ExportReportCard(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := strings.TrimSpace(c.DefaultQuery("format", "pdf"))
	result, err := h.exports.ExportReportCard(c.Request.Context(), caller, c.Param("studentId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, download.Info.Size(), download.ContentType, download.File, nil)
}
