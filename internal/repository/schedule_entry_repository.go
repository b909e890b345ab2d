package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

// ErrVersionMismatch is returned when an update targets a stale version.
var ErrVersionMismatch = errors.New("schedule entry version mismatch")

const scheduleEntryColumns = "id, course_code, section, teacher, day, start_time, end_time, room, building, version, created_at, updated_at"

const dayOrderExpr = "CASE day WHEN 'Monday' THEN 1 WHEN 'Tuesday' THEN 2 WHEN 'Wednesday' THEN 3 WHEN 'Thursday' THEN 4 WHEN 'Friday' THEN 5 ELSE 6 END"

const insertScheduleEntryQuery = `INSERT INTO schedule_entries (id, course_code, section, teacher, day, start_time, end_time, room, building, version, created_at, updated_at) VALUES (:id, :course_code, :section, :teacher, :day, :start_time, :end_time, :room, :building, :version, :created_at, :updated_at)`

// ScheduleEntryRepository persists routine placements.
type ScheduleEntryRepository struct {
	db *sqlx.DB
}

// NewScheduleEntryRepository creates a new schedule entry repository.
func NewScheduleEntryRepository(db *sqlx.DB) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{db: db}
}

// List returns entries with optional filtering and pagination.
func (r *ScheduleEntryRepository) List(ctx context.Context, filter models.ScheduleEntryFilter) ([]models.ScheduleEntry, int, error) {
	base := "FROM schedule_entries WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Day != "" {
		conditions = append(conditions, fmt.Sprintf("day = $%d", len(args)+1))
		args = append(args, filter.Day)
	}
	if filter.Room != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(room) = LOWER($%d)", len(args)+1))
		args = append(args, filter.Room)
	}
	if filter.Building != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(building) = LOWER($%d)", len(args)+1))
		args = append(args, filter.Building)
	}
	if filter.Teacher != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(teacher) = LOWER($%d)", len(args)+1))
		args = append(args, filter.Teacher)
	}
	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(course_code) = LOWER($%d)", len(args)+1))
		args = append(args, filter.CourseCode)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"day":         dayOrderExpr,
		"start_time":  "start_time",
		"room":        "room",
		"teacher":     "teacher",
		"course_code": "course_code",
		"created_at":  "created_at",
	}
	sortExpr, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortExpr = dayOrderExpr
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC, id ASC LIMIT %d OFFSET %d", scheduleEntryColumns, base, sortExpr, order, size, offset)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule entries: %w", err)
	}

	return entries, total, nil
}

// ListByDay returns every entry on a day in a stable start-time order.
func (r *ScheduleEntryRepository) ListByDay(ctx context.Context, day models.Weekday) ([]models.ScheduleEntry, error) {
	query := "SELECT " + scheduleEntryColumns + " FROM schedule_entries WHERE day = $1 ORDER BY start_time ASC, created_at ASC, id ASC"
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, day); err != nil {
		return nil, fmt.Errorf("list schedule entries by day: %w", err)
	}
	return entries, nil
}

// ListAll returns the whole committed routine ordered by day and start time.
func (r *ScheduleEntryRepository) ListAll(ctx context.Context) ([]models.ScheduleEntry, error) {
	query := "SELECT " + scheduleEntryColumns + " FROM schedule_entries ORDER BY " + dayOrderExpr + " ASC, start_time ASC, created_at ASC, id ASC"
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}

// ListByTeacher returns entries taught by the named teacher.
func (r *ScheduleEntryRepository) ListByTeacher(ctx context.Context, teacher string) ([]models.ScheduleEntry, error) {
	query := "SELECT " + scheduleEntryColumns + " FROM schedule_entries WHERE LOWER(teacher) = LOWER($1) ORDER BY " + dayOrderExpr + " ASC, start_time ASC, id ASC"
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, strings.TrimSpace(teacher)); err != nil {
		return nil, fmt.Errorf("list schedule entries by teacher: %w", err)
	}
	return entries, nil
}

// FindByID loads an entry by id.
func (r *ScheduleEntryRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := "SELECT " + scheduleEntryColumns + " FROM schedule_entries WHERE id = $1"
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create stores a new entry at version 1.
func (r *ScheduleEntryRepository) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	prepareInsert(entry, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertScheduleEntryQuery, entry); err != nil {
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}

// BulkCreate inserts every entry in one transaction; any failure rolls the batch back.
func (r *ScheduleEntryRepository) BulkCreate(ctx context.Context, entries []models.ScheduleEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create schedule entries: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range entries {
		payload := entries[i]
		prepareInsert(&payload, now)
		if _, err = sqlx.NamedExecContext(ctx, tx, insertScheduleEntryQuery, &payload); err != nil {
			return fmt.Errorf("bulk insert schedule entry %d: %w", i+1, err)
		}
		entries[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create schedule entries: %w", err)
	}
	return nil
}

// Update writes entry when the stored version still equals entry.Version and bumps the version.
func (r *ScheduleEntryRepository) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_entries SET course_code = :course_code, section = :section, teacher = :teacher, day = :day, start_time = :start_time, end_time = :end_time, room = :room, building = :building, version = version + 1, updated_at = :updated_at WHERE id = :id AND version = :version`
	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule entry rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionMismatch
	}
	entry.Version++
	return nil
}

// Delete removes an entry by id.
func (r *ScheduleEntryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule entry rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func prepareInsert(entry *models.ScheduleEntry, now time.Time) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Version == 0 {
		entry.Version = 1
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
}
