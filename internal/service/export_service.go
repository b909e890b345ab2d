package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/pkg/export"
	"github.com/noah-isme/campus-routine-api/pkg/storage"
)

type routineSource interface {
	Entries(ctx context.Context, day models.Weekday) ([]models.ScheduleEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders routine reports and persists them behind signed download tokens.
type ExportService struct {
	routine   routineSource
	storage   fileStorage
	renderers map[models.ReportFormat]datasetRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers default to the pkg/export implementations.
func NewExportService(routine routineSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	renderers := map[models.ReportFormat]datasetRenderer{
		models.ReportFormatCSV: csv,
		models.ReportFormatPDF: pdf,
	}
	return &ExportService{
		routine:   routine,
		storage:   storage,
		renderers: renderers,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate renders the report described by job, stores it and signs a download link for it.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("generate export: nil job")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", job.Params.Format)
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s %s: %w", job.Type, job.Params.Format, err)
	}
	relPath, err := s.storage.Save(exportFilename(job, time.Now().UTC()), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("report rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          s.cfg.APIPrefix + "/export/" + token,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// exportFilename names a rendered file <type>_<day|week>_<job>_<stamp>.<format>. Job ids are uuids,
// so only their first group is kept.
func exportFilename(job *models.ReportJob, at time.Time) string {
	scope := "week"
	if job.Params.Day != "" {
		scope = strings.ToLower(string(job.Params.Day))
	}
	ref, _, _ := strings.Cut(job.ID, "-")
	ref = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, ref)
	if ref == "" {
		ref = "job"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", job.Type, scope, ref, at.Format("20060102_150405"), job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	entries, err := s.routine.Entries(ctx, job.Params.Day)
	if err != nil {
		return export.Dataset{}, err
	}
	scope := "Full Week"
	if job.Params.Day != "" {
		scope = string(job.Params.Day)
	}

	switch job.Type {
	case models.ReportTypeTeachers:
		return utilizationDataset(fmt.Sprintf("Teacher Load %s", scope), "Teacher",
			BuildUtilization(ReportDimensionTeachers, entries, job.Params.Day)), nil
	case models.ReportTypeRooms:
		return utilizationDataset(fmt.Sprintf("Room Utilization %s", scope), "Room",
			BuildUtilization(ReportDimensionRooms, entries, job.Params.Day)), nil
	case models.ReportTypeTimetable:
		return timetableDataset(fmt.Sprintf("Timetable %s", scope), entries), nil
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func utilizationDataset(title, keyHeader string, report models.UtilizationReport) export.Dataset {
	data := export.Dataset{Title: title, Headers: []string{keyHeader, "Classes", "Minutes", "Hours"}}
	for _, row := range report.Rows {
		data.AddRow(row.Key, strconv.Itoa(row.Count), strconv.Itoa(row.Minutes), fmt.Sprintf("%.1f", float64(row.Minutes)/60))
	}
	return data
}

func timetableDataset(title string, entries []models.ScheduleEntry) export.Dataset {
	data := export.Dataset{Title: title, Headers: []string{"Day", "Start", "End", "Course", "Section", "Teacher", "Room", "Building"}}
	for _, e := range entries {
		data.AddRow(string(e.Day), e.StartTime, e.EndTime, e.CourseCode, e.Section, e.Teacher, e.Room, e.Building)
	}
	return data
}
