package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

func newScheduleEntryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func scheduleEntryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "course_code", "section", "teacher", "day", "start_time", "end_time", "room", "building", "version", "created_at", "updated_at"})
}

func TestScheduleEntryRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	now := time.Now()
	rows := scheduleEntryRows().AddRow("e1", "CSE101", "A", "Dr. Rahman", "Monday", "09:00", "10:30", "201", "Building A", 1, now, now)
	listQuery := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE 1=1 AND day = $1 AND LOWER(room) = LOWER($2) ORDER BY start_time DESC, start_time ASC, id ASC LIMIT 10 OFFSET 10", scheduleEntryColumns)
	mock.ExpectQuery(regexp.QuoteMeta(listQuery)).
		WithArgs(models.Monday, "201").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_entries WHERE 1=1 AND day = $1 AND LOWER(room) = LOWER($2)")).
		WithArgs(models.Monday, "201").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	list, total, err := repo.List(context.Background(), models.ScheduleEntryFilter{
		Day: models.Monday, Room: "201", Page: 2, PageSize: 10, SortBy: "start_time", SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, models.Monday, list[0].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryListDefaultsToDayOrder(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf("ORDER BY %s ASC, start_time ASC, id ASC LIMIT 20 OFFSET 0", dayOrderExpr))).
		WillReturnRows(scheduleEntryRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_entries WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.ScheduleEntryFilter{SortBy: "DROP TABLE"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryListByDay(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	now := time.Now()
	rows := scheduleEntryRows().
		AddRow("e1", "CSE101", "A", "Dr. Rahman", "Monday", "09:00", "10:30", "201", "Building A", 1, now, now).
		AddRow("e2", "MAT201", "B", "Dr. Karim", "Monday", "11:00", "12:00", "202", "Building A", 3, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries WHERE day = $1 ORDER BY start_time ASC")).
		WithArgs(models.Monday).
		WillReturnRows(rows)

	entries, err := repo.ListByDay(context.Background(), models.Monday)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(sqlmock.AnyArg(), "CSE101", "A", "Dr. Rahman", models.Monday, "09:00", "10:30", "201", "Building A", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.ScheduleEntry{CourseCode: "CSE101", Section: "A", Teacher: "Dr. Rahman", Day: models.Monday, StartTime: "09:00", EndTime: "10:30", Room: "201", Building: "Building A"}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, entry.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryBulkCreateCommits(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO schedule_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO schedule_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entries := []models.ScheduleEntry{
		{CourseCode: "CSE101", Section: "A", Teacher: "X", Day: models.Monday, StartTime: "09:00", EndTime: "10:00", Room: "201", Building: "Building A"},
		{CourseCode: "CSE102", Section: "B", Teacher: "Y", Day: models.Tuesday, StartTime: "09:00", EndTime: "10:00", Room: "202", Building: "Building A"},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), entries))
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryBulkCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO schedule_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO schedule_entries").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	entries := []models.ScheduleEntry{
		{CourseCode: "CSE101", Day: models.Monday, StartTime: "09:00", EndTime: "10:00"},
		{CourseCode: "CSE102", Day: models.Monday, StartTime: "11:00", EndTime: "12:00"},
	}
	err := repo.BulkCreate(context.Background(), entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk insert schedule entry 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryUpdateVersion(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_entries SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	entry := &models.ScheduleEntry{ID: "e1", Day: models.Monday, StartTime: "09:00", EndTime: "10:00", Version: 2}
	require.NoError(t, repo.Update(context.Background(), entry))
	assert.Equal(t, 3, entry.Version)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_entries SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), entry)
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newScheduleEntryRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "e1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
