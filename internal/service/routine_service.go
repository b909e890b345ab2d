package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/repository"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
)

type routineRepository interface {
	List(ctx context.Context, filter models.ScheduleEntryFilter) ([]models.ScheduleEntry, int, error)
	ListByDay(ctx context.Context, day models.Weekday) ([]models.ScheduleEntry, error)
	ListAll(ctx context.Context) ([]models.ScheduleEntry, error)
	ListByTeacher(ctx context.Context, teacher string) ([]models.ScheduleEntry, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	Create(ctx context.Context, entry *models.ScheduleEntry) error
	Update(ctx context.Context, entry *models.ScheduleEntry) error
	Delete(ctx context.Context, id string) error
}

// RoutineServiceParams groups RoutineService dependencies.
type RoutineServiceParams struct {
	Repo      routineRepository
	Detector  *ConflictDetector
	Validator *validator.Validate
	Cache     *CacheService
	Metrics   *MetricsService
	Layout    models.GridLayout
	Logger    *zap.Logger
}

// RoutineService coordinates timetable reads and conflict-checked writes.
type RoutineService struct {
	repo      routineRepository
	detector  *ConflictDetector
	validator *validator.Validate
	cache     *CacheService
	metrics   *MetricsService
	layout    models.GridLayout
	logger    *zap.Logger
}

// NewRoutineService instantiates RoutineService.
func NewRoutineService(params RoutineServiceParams) *RoutineService {
	if params.Detector == nil {
		params.Detector = NewConflictDetector(0, 0)
	}
	if params.Validator == nil {
		params.Validator = NewValidator()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if len(params.Layout.Rooms) == 0 || len(params.Layout.TimeSlots) == 0 {
		params.Layout = NewGridLayout(params.Layout.Rooms, params.Layout.TimeSlots)
	}
	return &RoutineService{
		repo:      params.Repo,
		detector:  params.Detector,
		validator: params.Validator,
		cache:     params.Cache,
		metrics:   params.Metrics,
		layout:    params.Layout,
		logger:    params.Logger,
	}
}

// List returns entries with pagination metadata.
func (s *RoutineService) List(ctx context.Context, filter models.ScheduleEntryFilter) ([]models.ScheduleEntry, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list routine entries")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one entry.
func (s *RoutineService) Get(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	if !isEntryID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "routine entry not found")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "routine entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routine entry")
	}
	return entry, nil
}

// ListForTeacher returns the week for the named teacher.
func (s *RoutineService) ListForTeacher(ctx context.Context, teacher string) ([]models.ScheduleEntry, error) {
	if strings.TrimSpace(teacher) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher name is required")
	}
	entries, err := s.repo.ListByTeacher(ctx, teacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher routine")
	}
	return entries, nil
}

// Check reports the issues a save would raise without writing anything.
func (s *RoutineService) Check(ctx context.Context, req dto.CheckRoutineEntryRequest) (*dto.CheckRoutineEntryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid routine entry payload")
	}
	candidate := entryFromRequest(req.RoutineEntryRequest)
	issues, err := s.detect(ctx, candidate, req.ExcludeID)
	if err != nil {
		return nil, err
	}
	return &dto.CheckRoutineEntryResponse{OK: len(issues) == 0, Issues: issues}, nil
}

// Create validates, runs the conflict check and stores the entry.
func (s *RoutineService) Create(ctx context.Context, req dto.RoutineEntryRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid routine entry payload")
	}
	entry := entryFromRequest(req)
	if err := s.ensureNoConflict(ctx, entry, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create routine entry")
	}
	_ = s.cache.InvalidateRoutine(ctx)
	return &entry, nil
}

// Update replaces an entry when version matches the stored version.
func (s *RoutineService) Update(ctx context.Context, id string, req dto.UpdateRoutineEntryRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid routine entry payload")
	}
	if req.Version <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "version is required (body or If-Match header)")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Version != req.Version {
		return nil, staleVersionError(existing.Version)
	}

	entry := entryFromRequest(req.RoutineEntryRequest)
	entry.ID = existing.ID
	entry.Version = existing.Version
	entry.CreatedAt = existing.CreatedAt
	if err := s.ensureNoConflict(ctx, entry, entry.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &entry); err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			return nil, staleVersionError(0)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update routine entry")
	}
	_ = s.cache.InvalidateRoutine(ctx)
	return &entry, nil
}

// Delete removes an entry.
func (s *RoutineService) Delete(ctx context.Context, id string) error {
	if !isEntryID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "routine entry not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "routine entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete routine entry")
	}
	_ = s.cache.InvalidateRoutine(ctx)
	return nil
}

// Grid projects the committed routine onto the slot grid. The bool reports a cache hit.
func (s *RoutineService) Grid(ctx context.Context, day models.Weekday) (*models.GridView, bool, error) {
	view, hit, err := readThrough(ctx, s.cache, GridCacheKey(day), func(ctx context.Context) (models.GridView, error) {
		entries, err := s.loadEntries(ctx, day)
		if err != nil {
			return models.GridView{}, err
		}
		return BuildGrid(s.layout, entries, day), nil
	})
	if err != nil {
		return nil, false, err
	}
	return &view, hit, nil
}

// Report aggregates the routine by teacher or by room. The bool reports a cache hit.
func (s *RoutineService) Report(ctx context.Context, dimension string, day models.Weekday) (*models.UtilizationReport, bool, error) {
	if dimension != ReportDimensionTeachers && dimension != ReportDimensionRooms {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unsupported report dimension")
	}
	report, hit, err := readThrough(ctx, s.cache, ReportCacheKey(dimension, day), func(ctx context.Context) (models.UtilizationReport, error) {
		entries, err := s.loadEntries(ctx, day)
		if err != nil {
			return models.UtilizationReport{}, err
		}
		return BuildUtilization(dimension, entries, day), nil
	})
	if err != nil {
		return nil, false, err
	}
	return &report, hit, nil
}

// Entries returns the committed routine, optionally limited to one day.
func (s *RoutineService) Entries(ctx context.Context, day models.Weekday) ([]models.ScheduleEntry, error) {
	return s.loadEntries(ctx, day)
}

// Layout exposes the configured grid layout.
func (s *RoutineService) Layout() models.GridLayout {
	return s.layout
}

func (s *RoutineService) loadEntries(ctx context.Context, day models.Weekday) ([]models.ScheduleEntry, error) {
	var (
		entries []models.ScheduleEntry
		err     error
		label   = "routine_list_all"
	)
	start := time.Now()
	if day != "" {
		label = "routine_list_by_day"
		entries, err = s.repo.ListByDay(ctx, day)
	} else {
		entries, err = s.repo.ListAll(ctx)
	}
	s.metrics.ObserveDBQuery(label, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routine")
	}
	return entries, nil
}

func (s *RoutineService) detect(ctx context.Context, candidate models.ScheduleEntry, excludeID string) ([]models.ConflictIssue, error) {
	existing, err := s.repo.ListByDay(ctx, candidate.Day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load routine for conflict check")
	}
	issues := s.detector.Check(candidate, existing, excludeID)
	s.metrics.RecordConflicts(issues)
	return issues, nil
}

func (s *RoutineService) ensureNoConflict(ctx context.Context, candidate models.ScheduleEntry, excludeID string) error {
	issues, err := s.detect(ctx, candidate, excludeID)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		s.logger.Debug("routine entry rejected", zap.String("course_code", candidate.CourseCode), zap.Int("issues", len(issues)))
		return appErrors.WithDetails(appErrors.ErrScheduleConflict, "", issues)
	}
	return nil
}

// isEntryID reports whether id can name a stored entry. The id column is a uuid, so anything else
// would fail the cast in Postgres instead of matching no row.
func isEntryID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func staleVersionError(current int) error {
	if current > 0 {
		return appErrors.WithDetails(appErrors.ErrPreconditionFailed, "routine entry was modified by another request", map[string]int{"current_version": current})
	}
	return appErrors.Clone(appErrors.ErrPreconditionFailed, "routine entry was modified by another request")
}

// entryFromRequest normalises a validated request.
func entryFromRequest(req dto.RoutineEntryRequest) models.ScheduleEntry {
	day, _ := models.ParseWeekday(req.Day)
	start, _ := normaliseClock(req.StartTime)
	end, _ := normaliseClock(req.EndTime)
	return models.ScheduleEntry{
		CourseCode: strings.TrimSpace(req.CourseCode),
		Section:    strings.TrimSpace(req.Section),
		Teacher:    strings.TrimSpace(req.Teacher),
		Day:        day,
		StartTime:  start,
		EndTime:    end,
		Room:       strings.TrimSpace(req.Room),
		Building:   strings.TrimSpace(req.Building),
	}
}
