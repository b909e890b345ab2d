package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/models"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
	"github.com/noah-isme/campus-routine-api/pkg/export"
)

// TemplateHeaders are the bulk upload columns in template order.
var TemplateHeaders = []string{"CourseCode", "Section", "Day", "StartTime", "EndTime", "Room", "Building", "Teacher"}

var templateExample = []string{"CSE101", "A", "Monday", "09:00", "10:30", "201", "Building A", "Dr. Rahman"}

type importColumn struct {
	header   string
	alias    string
	fallback string

	// maxLen mirrors the max= rule on dto.RoutineEntryRequest and the varchar width; 0 means unchecked.
	maxLen int
}

// Column lookup is case-insensitive, so "CourseCode" also covers "courseCode" and "COURSECODE".
var importColumns = []importColumn{
	{header: "CourseCode", alias: "course_code", fallback: "CSE101", maxLen: 32},
	{header: "Section", alias: "section", fallback: "A", maxLen: 16},
	{header: "Day", alias: "day", fallback: "Monday"},
	{header: "StartTime", alias: "start_time", fallback: "09:00"},
	{header: "EndTime", alias: "end_time", fallback: "10:30"},
	{header: "Room", alias: "room", fallback: "201", maxLen: 32},
	{header: "Building", alias: "building", fallback: "Building A", maxLen: 64},
	{header: "Teacher", alias: "teacher", fallback: "TBD", maxLen: 128},
}

// ParseTable reads comma-separated text with a header row into header-keyed rows.
// Cells are trimmed, short rows yield empty strings and blank lines are skipped.
func ParseTable(text string) ([]map[string]string, error) {
	return parseCSV(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
}

func parseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsToRows(records), nil
}

// ReadXLS reads the first sheet of a legacy Excel workbook using the same header rules as ParseTable.
func ReadXLS(r io.ReadSeeker) ([]map[string]string, error) {
	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("xls open: %w", err)
	}
	if book == nil {
		return nil, errors.New("xls open: no workbook stream")
	}
	if book.NumSheets() == 0 {
		return nil, errors.New("xls workbook has no sheets")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("xls first sheet unreadable")
	}

	records := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			continue
		}
		record := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			record = append(record, row.Col(c))
		}
		records = append(records, record)
	}
	return recordsToRows(records), nil
}

// xlsRow returns nil for a row the sheet never wrote; WorkSheet.Row dereferences the missing row and panics.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func recordsToRows(records [][]string) []map[string]string {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			row[h] = value
		}
		rows = append(rows, row)
	}
	return rows
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// lookupColumn prefers the exact header, then a case-folded header, then the alias, so a file carrying
// both "Room" and "room" always resolves the same way.
func lookupColumn(row map[string]string, col importColumn) (string, bool) {
	if value := strings.TrimSpace(row[col.header]); value != "" {
		return value, true
	}
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, name := range []string{col.header, col.alias} {
		for _, key := range keys {
			if !strings.EqualFold(key, name) {
				continue
			}
			if value := strings.TrimSpace(row[key]); value != "" {
				return value, true
			}
		}
	}
	return "", false
}

// BuildEntriesFromRows maps rows to entries, substituting the fallback default for any missing column.
// Values are not validated.
func BuildEntriesFromRows(rows []map[string]string) []models.ScheduleEntry {
	entries := make([]models.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entry, _ := entryFromRow(row)
		entries = append(entries, entry)
	}
	return entries
}

func entryFromRow(row map[string]string) (models.ScheduleEntry, []string) {
	values := make([]string, len(importColumns))
	var missing []string
	for i, col := range importColumns {
		value, ok := lookupColumn(row, col)
		if !ok {
			value = col.fallback
			missing = append(missing, col.header)
		}
		values[i] = value
	}
	return models.ScheduleEntry{
		CourseCode: values[0],
		Section:    values[1],
		Day:        models.Weekday(values[2]),
		StartTime:  values[3],
		EndTime:    values[4],
		Room:       values[5],
		Building:   values[6],
		Teacher:    values[7],
	}, missing
}

// BuildImportRecords turns rows into validated, normalised entries. In strict mode a missing or blank column
// is an error; otherwise it takes the fallback default. Weekday, times and end after start are always checked.
func BuildImportRecords(rows []map[string]string, strict bool) ([]models.ScheduleEntry, []models.RowError) {
	entries := make([]models.ScheduleEntry, 0, len(rows))
	var rowErrs []models.RowError
	for i, row := range rows {
		rowNum := i + 1
		entry, missing := entryFromRow(row)
		if strict && len(missing) > 0 {
			for _, header := range missing {
				rowErrs = append(rowErrs, models.RowError{Row: rowNum, Field: header, Message: "missing value"})
			}
			continue
		}

		valid := true
		for _, col := range importColumns {
			if col.maxLen > 0 && utf8.RuneCountInString(entryField(entry, col.header)) > col.maxLen {
				rowErrs = append(rowErrs, models.RowError{Row: rowNum, Field: col.header, Message: fmt.Sprintf("exceeds %d characters", col.maxLen)})
				valid = false
			}
		}
		day, ok := models.ParseWeekday(string(entry.Day))
		if !ok {
			rowErrs = append(rowErrs, models.RowError{Row: rowNum, Field: "Day", Message: fmt.Sprintf("%q is not a weekday (Monday-Friday)", entry.Day)})
			valid = false
		}
		start, startErr := normaliseClock(entry.StartTime)
		if startErr != nil {
			rowErrs = append(rowErrs, models.RowError{Row: rowNum, Field: "StartTime", Message: startErr.Error()})
			valid = false
		}
		end, endErr := normaliseClock(entry.EndTime)
		if endErr != nil {
			rowErrs = append(rowErrs, models.RowError{Row: rowNum, Field: "EndTime", Message: endErr.Error()})
			valid = false
		}
		if startErr == nil && endErr == nil && end <= start {
			rowErrs = append(rowErrs, models.RowError{Row: rowNum, Field: "EndTime", Message: "end time must be after start time"})
			valid = false
		}
		if !valid {
			continue
		}

		entry.Day = day
		entry.StartTime = start
		entry.EndTime = end
		entries = append(entries, entry)
	}
	return entries, rowErrs
}

func entryField(entry models.ScheduleEntry, header string) string {
	switch header {
	case "CourseCode":
		return entry.CourseCode
	case "Section":
		return entry.Section
	case "Room":
		return entry.Room
	case "Building":
		return entry.Building
	case "Teacher":
		return entry.Teacher
	}
	return ""
}

// TemplateCSV renders the upload template: the header row and one example row.
func TemplateCSV() ([]byte, error) {
	data := export.Dataset{Headers: TemplateHeaders}
	data.AddRow(templateExample...)
	return export.NewCSVExporter().Render(data)
}

type routineImportStore interface {
	ListAll(ctx context.Context) ([]models.ScheduleEntry, error)
	BulkCreate(ctx context.Context, entries []models.ScheduleEntry) error
}

// ImportServiceConfig tunes bulk import.
type ImportServiceConfig struct {
	// CrossCheck also checks each row against the rows before it in the same upload.
	CrossCheck bool
	MaxRows    int
}

// ImportService validates uploads and commits them all-or-nothing.
type ImportService struct {
	repo     routineImportStore
	detector *ConflictDetector
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ImportServiceConfig
}

// NewImportService constructs ImportService.
func NewImportService(repo routineImportStore, detector *ConflictDetector, cache *CacheService, metrics *MetricsService, cfg ImportServiceConfig, logger *zap.Logger) *ImportService {
	if detector == nil {
		detector = NewConflictDetector(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 2000
	}
	return &ImportService{repo: repo, detector: detector, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// Import parses data, validates every row, checks each candidate against the committed routine and commits
// the batch in one transaction. Any invalid or conflicting row rejects the whole batch.
func (s *ImportService) Import(ctx context.Context, data []byte, opts dto.ImportOptions) (*models.ImportResult, error) {
	rows, err := s.parse(data, opts.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to parse upload")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "upload contains no data rows")
	}
	if len(rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("upload exceeds %d rows", s.cfg.MaxRows))
	}

	entries, rowErrs := BuildImportRecords(rows, opts.Strict)
	if len(rowErrs) > 0 {
		s.metrics.RecordImport("invalid", len(rows))
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "upload contains invalid rows", rowErrs)
	}

	committed, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routine")
	}

	var conflicts []models.RowConflict
	against := committed
	for i, candidate := range entries {
		issues := s.detector.Check(candidate, against, "")
		if len(issues) > 0 {
			s.metrics.RecordConflicts(issues)
			conflicts = append(conflicts, models.RowConflict{Row: i + 1, Entry: candidate, Issues: issues})
		}
		if s.cfg.CrossCheck {
			against = append(against, candidate)
		}
	}
	if len(conflicts) > 0 {
		s.metrics.RecordImport("rejected", len(entries))
		s.logger.Info("routine import rejected", zap.Int("rows", len(entries)), zap.Int("conflicting_rows", len(conflicts)))
		return nil, appErrors.WithDetails(appErrors.ErrImportRejected, "", conflicts)
	}

	if opts.DryRun {
		return &models.ImportResult{Committed: false, Count: len(entries), Entries: entries}, nil
	}

	if err := s.repo.BulkCreate(ctx, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit import")
	}
	s.metrics.RecordImport("committed", len(entries))
	_ = s.cache.InvalidateRoutine(ctx)
	s.logger.Info("routine import committed", zap.Int("rows", len(entries)))

	return &models.ImportResult{Committed: true, Count: len(entries), Entries: entries}, nil
}

func (s *ImportService) parse(data []byte, format models.ImportFormat) ([]map[string]string, error) {
	if format == models.ImportFormatXLS {
		return ReadXLS(bytes.NewReader(data))
	}
	return ParseTable(string(data))
}
