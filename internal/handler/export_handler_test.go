package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/internal/service"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
)

type fakeExportSrv struct {
	caller   service.Caller
	student  string
	format   string
	download *service.Download
	openErr  error
}

func (f *fakeExportSrv) ExportReportCard(_ context.Context, caller service.Caller, studentID, rawFormat string) (*dto.ExportResponse, error) {
	f.caller = caller
	f.student = studentID
	f.format = rawFormat
	return &dto.ExportResponse{Token: "tok", Filename: "report_card_2025000001.csv", Format: rawFormat}, nil
}

func (f *fakeExportSrv) Open(token string) (*service.Download, error) {
	return f.download, f.openErr
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

var _ io.ReadSeekCloser = nopSeekCloser{}

func TestExportHandlerExportReportCard(t *testing.T) {
	srv := &fakeExportSrv{}
	h := NewExportHandler(srv)
	r := newTestRouter(parentClaims())
	r.POST("/grades/report-card/:studentId/export", h.ExportReportCard)

	rec, _ := perform(t, r, http.MethodPost, "/grades/report-card/s1/export?format=csv", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "s1", srv.student)
	assert.Equal(t, "csv", srv.format)
	assert.Equal(t, models.RoleParentStudent, srv.caller.Role)

	rec, _ = perform(t, r, http.MethodPost, "/grades/report-card/s1/export", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pdf", srv.format)
}

func TestExportHandlerDownloadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.csv")
	content := []byte("Subject,Q1\nMath,86.3\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	info, err := os.Stat(path)
	require.NoError(t, err)

	srv := &fakeExportSrv{download: &service.Download{
		File:        nopSeekCloser{bytes.NewReader(content)},
		Info:        info,
		Filename:    "card.csv",
		ContentType: "text/csv",
	}}
	h := NewExportHandler(srv)
	r := newTestRouter(nil)
	r.GET("/exports/download", h.Download)

	rec, _ := perform(t, r, http.MethodGet, "/exports/download?token=tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "card.csv")
	assert.Equal(t, string(content), rec.Body.String())
}

func TestExportHandlerDownloadErrors(t *testing.T) {
	srv := &fakeExportSrv{openErr: appErrors.Clone(appErrors.ErrUnauthorized, "download link has expired")}
	h := NewExportHandler(srv)
	r := newTestRouter(nil)
	r.GET("/exports/download", h.Download)

	rec, _ := perform(t, r, http.MethodGet, "/exports/download", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := perform(t, r, http.MethodGet, "/exports/download?token=old", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "download link has expired", env.Error.Message)
}
