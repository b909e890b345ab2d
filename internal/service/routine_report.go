package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

const (
	ReportDimensionTeachers = "teachers"
	ReportDimensionRooms    = "rooms"
)

// ByTeacher counts placements per teacher.
func ByTeacher(entries []models.ScheduleEntry) map[string]int {
	return countBy(entries, teacherKey)
}

// ByRoom counts placements per "building room" label.
func ByRoom(entries []models.ScheduleEntry) map[string]int {
	return countBy(entries, roomLabel)
}

func countBy(entries []models.ScheduleEntry, key func(models.ScheduleEntry) string) map[string]int {
	counts := make(map[string]int)
	for _, entry := range entries {
		counts[key(entry)]++
	}
	return counts
}

// BuildUtilization aggregates entries for a dimension into rows sorted by count desc then key asc.
// Counts come from ByTeacher or ByRoom; minutes are summed under the same key.
func BuildUtilization(dimension string, entries []models.ScheduleEntry, day models.Weekday) models.UtilizationReport {
	key, count := teacherKey, ByTeacher
	if dimension == ReportDimensionRooms {
		key, count = roomLabel, ByRoom
	}

	selected := entries
	if day != "" {
		selected = make([]models.ScheduleEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.Day == day {
				selected = append(selected, entry)
			}
		}
	}

	minutes := make(map[string]int)
	for _, entry := range selected {
		minutes[key(entry)] += entryMinutes(entry)
	}

	total := 0
	rows := make([]models.UtilizationRow, 0)
	for k, n := range count(selected) {
		rows = append(rows, models.UtilizationRow{Key: k, Count: n, Minutes: minutes[k]})
		total += n
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})

	return models.UtilizationReport{
		Dimension:   dimension,
		Day:         day,
		Rows:        rows,
		Total:       total,
		GeneratedAt: time.Now().UTC(),
	}
}

func teacherKey(entry models.ScheduleEntry) string {
	return entry.Teacher
}

func roomLabel(entry models.ScheduleEntry) string {
	return strings.TrimSpace(entry.Building + " " + entry.Room)
}

func entryMinutes(entry models.ScheduleEntry) int {
	start, err := parseClock(entry.StartTime)
	if err != nil {
		return 0
	}
	end, err := parseClock(entry.EndTime)
	if err != nil || end < start {
		return 0
	}
	return end - start
}
