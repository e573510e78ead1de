package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ace-school-api/internal/dto"
	"github.com/noah-isme/ace-school-api/internal/models"
	appErrors "github.com/noah-isme/ace-school-api/pkg/errors"
	"github.com/noah-isme/ace-school-api/pkg/export"
	"github.com/noah-isme/ace-school-api/pkg/storage"
)

const reportCardDir = "report-cards"

type reportCardSource interface {
	ReportCard(ctx context.Context, caller Caller, studentID string) (*models.ReportCard, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (io.ReadSeekCloser, os.FileInfo, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// Download is an opened export ready to stream.
type Download struct {
	File        io.ReadSeekCloser
	Info        os.FileInfo
	Filename    string
	ContentType string
}

// ExportService renders report cards and serves them through signed links.
type ExportService struct {
	cards   reportCardSource
	storage fileStorage
	signer  *storage.SignedURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(cards reportCardSource, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		cards:   cards,
		storage: store,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ExportReportCard renders a student's report card as CSV or PDF, stores it
// and returns a signed download link.
func (s *ExportService) ExportReportCard(ctx context.Context, caller Caller, studentID, rawFormat string) (*dto.ExportResponse, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	card, err := s.cards.ReportCard(ctx, caller, studentID)
	if err != nil {
		return nil, err
	}

	payload, err := export.Render(format, reportCardDataset(card))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report card")
	}

	filename := s.filename(card, format)
	relPath, err := s.storage.Save(path.Join(reportCardDir, filename), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report card")
	}
	token, expiresAt, err := s.signer.Generate(card.StudentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.metrics.RecordExport(string(format))
	s.logger.Info("report card exported",
		zap.String("student_id", card.StudentID),
		zap.String("format", string(format)),
		zap.String("path", relPath))

	return &dto.ExportResponse{
		Token:     token,
		URL:       fmt.Sprintf("%s/exports/download?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		Filename:  filename,
		Format:    string(format),
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and opens the referenced file.
func (s *ExportService) Open(token string) (*Download, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token is required")
	}
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	file, info, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	name := path.Base(relPath)
	return &Download{File: file, Info: info, Filename: name, ContentType: contentTypeOf(name)}, nil
}

// Cleanup removes exports older than ttl, or the configured TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RunCleanup deletes expired exports every CleanupInterval until ctx ends.
func (s *ExportService) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup(0)
			if err != nil {
				s.metrics.RecordJobOutcome("export_cleanup", "failure")
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			s.metrics.RecordJobOutcome("export_cleanup", "success")
			if len(removed) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}

func (s *ExportService) filename(card *models.ReportCard, format export.Format) string {
	owner := card.StudentNumber
	if owner == "" {
		owner = card.StudentID
	}
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("report_card_%s_%s.%s", sanitizeFilename(owner), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func contentTypeOf(name string) string {
	if strings.HasSuffix(name, "."+string(export.FormatCSV)) {
		return export.FormatCSV.ContentType()
	}
	return export.FormatPDF.ContentType()
}

func reportCardDataset(card *models.ReportCard) export.Dataset {
	headers := []string{"Subject", "Q1", "Q2", "Q3", "Q4", "Final", "Remark"}
	rows := make([]map[string]string, 0, len(card.Subjects))
	for _, subj := range card.Subjects {
		rows = append(rows, map[string]string{
			"Subject": subj.SubjectName,
			"Q1":      subj.Q1.Display,
			"Q2":      subj.Q2.Display,
			"Q3":      subj.Q3.Display,
			"Q4":      subj.Q4.Display,
			"Final":   subj.FinalDisplay,
			"Remark":  string(subj.Remark),
		})
	}
	fields := []export.Field{{Label: "Student", Value: card.StudentName}}
	if card.StudentNumber != "" {
		fields = append(fields, export.Field{Label: "Student Number", Value: card.StudentNumber})
	}
	fields = append(fields,
		export.Field{Label: "Grade Level", Value: card.GradeLevel},
		export.Field{Label: "Academic Year", Value: card.AcademicYear},
	)
	return export.Dataset{
		Title:   "Report Card",
		Fields:  fields,
		Headers: headers,
		Rows:    rows,
		Footer:  []export.Field{{Label: "General Average", Value: card.AverageDisplay}},
	}
}
