package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

func findCell(view models.GridView, day models.Weekday, room, slot string) *models.GridCell {
	for i := range view.Cells {
		c := view.Cells[i]
		if c.Day == day && c.Room == room && c.TimeSlot == slot {
			return &view.Cells[i]
		}
	}
	return nil
}

func TestNewGridLayoutDefaults(t *testing.T) {
	layout := NewGridLayout(nil, nil)
	assert.Equal(t, models.Weekdays, layout.Days)
	assert.Equal(t, []string{"201", "202", "203", "301", "302"}, layout.Rooms)
	assert.Len(t, layout.TimeSlots, 9)
	assert.Equal(t, "08:00", layout.TimeSlots[0])

	custom := NewGridLayout([]string{"Lab 1"}, []string{"8:00", "bogus", "9:30"})
	assert.Equal(t, []string{"08:00", "09:30"}, custom.TimeSlots)
}

func TestBuildGridExactSlotMatch(t *testing.T) {
	layout := NewGridLayout(nil, nil)
	entries := []models.ScheduleEntry{
		{ID: "on", Day: models.Monday, StartTime: "09:00", EndTime: "10:30", Room: "201"},
		{ID: "between", Day: models.Monday, StartTime: "09:30", EndTime: "10:30", Room: "202"},
		{ID: "elsewhere", Day: models.Tuesday, StartTime: "10:00", EndTime: "11:00", Room: "999"},
	}

	view := BuildGrid(layout, entries, "")
	require.Len(t, view.Cells, 5*5*9)

	cell := findCell(view, models.Monday, "201", "09:00")
	require.NotNil(t, cell)
	require.NotNil(t, cell.Entry)
	assert.Equal(t, "on", cell.Entry.ID)

	assert.Nil(t, findCell(view, models.Monday, "201", "10:00").Entry)
	assert.Nil(t, findCell(view, models.Monday, "202", "09:00").Entry)
	assert.Equal(t, 2, view.OffGrid)
}

func TestBuildGridSingleDay(t *testing.T) {
	layout := NewGridLayout([]string{"201"}, []string{"09:00"})
	entries := []models.ScheduleEntry{
		{ID: "mon", Day: models.Monday, StartTime: "09:00", EndTime: "10:00", Room: "201"},
		{ID: "wed", Day: models.Wednesday, StartTime: "09:00", EndTime: "10:00", Room: "201"},
	}

	view := BuildGrid(layout, entries, models.Wednesday)
	require.Len(t, view.Cells, 1)
	require.NotNil(t, view.Cells[0].Entry)
	assert.Equal(t, "wed", view.Cells[0].Entry.ID)
	assert.Equal(t, []models.Weekday{models.Wednesday}, view.Days)
	assert.Zero(t, view.OffGrid)
}

func TestBuildUtilization(t *testing.T) {
	entries := []models.ScheduleEntry{
		{Teacher: "Dr. Khan", Day: models.Monday, StartTime: "09:00", EndTime: "10:30", Room: "201", Building: "Building A"},
		{Teacher: "Dr. Ali", Day: models.Monday, StartTime: "11:00", EndTime: "12:00", Room: "201", Building: "Building A"},
		{Teacher: "Dr. Khan", Day: models.Tuesday, StartTime: "09:00", EndTime: "10:00", Room: "202", Building: "Building B"},
	}

	assert.Equal(t, map[string]int{"Dr. Khan": 2, "Dr. Ali": 1}, ByTeacher(entries))
	assert.Equal(t, map[string]int{"Building A 201": 2, "Building B 202": 1}, ByRoom(entries))

	report := BuildUtilization(ReportDimensionTeachers, entries, "")
	require.Len(t, report.Rows, 2)
	assert.Equal(t, models.UtilizationRow{Key: "Dr. Khan", Count: 2, Minutes: 150}, report.Rows[0])
	assert.Equal(t, 3, report.Total)

	monday := BuildUtilization(ReportDimensionRooms, entries, models.Monday)
	require.Len(t, monday.Rows, 1)
	assert.Equal(t, "Building A 201", monday.Rows[0].Key)
	assert.Equal(t, 150, monday.Rows[0].Minutes)
}

func TestBuildUtilizationTieBreaksByKey(t *testing.T) {
	entries := []models.ScheduleEntry{
		{Teacher: "Zed", Day: models.Monday, StartTime: "09:00", EndTime: "10:00"},
		{Teacher: "Amy", Day: models.Monday, StartTime: "11:00", EndTime: "12:00"},
	}
	report := BuildUtilization(ReportDimensionTeachers, entries, "")
	require.Len(t, report.Rows, 2)
	assert.Equal(t, "Amy", report.Rows[0].Key)
}

func TestBuildUtilizationAgreesWithCounters(t *testing.T) {
	entries := []models.ScheduleEntry{
		{Teacher: "Dr. Khan", Day: models.Monday, StartTime: "09:00", EndTime: "10:00", Room: "201"},
		{Teacher: "Dr. Khan", Day: models.Monday, StartTime: "10:00", EndTime: "11:00", Room: "201", Building: "Annex"},
		{Teacher: "Dr. Ali", Day: models.Friday, StartTime: "09:00", EndTime: "10:00", Room: " 305"},
	}

	for dimension, counter := range map[string]func([]models.ScheduleEntry) map[string]int{
		ReportDimensionTeachers: ByTeacher,
		ReportDimensionRooms:    ByRoom,
	} {
		report := BuildUtilization(dimension, entries, "")
		got := make(map[string]int, len(report.Rows))
		for _, row := range report.Rows {
			got[row.Key] = row.Count
		}
		assert.Equal(t, counter(entries), got, dimension)
	}

	rooms := BuildUtilization(ReportDimensionRooms, entries, "")
	keys := make([]string, 0, len(rooms.Rows))
	for _, row := range rooms.Rows {
		keys = append(keys, row.Key)
	}
	assert.ElementsMatch(t, []string{"201", "Annex 201", "305"}, keys)
}
