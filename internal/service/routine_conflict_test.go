package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

func mondayKhan() []models.ScheduleEntry {
	return []models.ScheduleEntry{{
		ID: "e1", CourseCode: "CSE101", Section: "A", Teacher: "Dr. Khan",
		Day: models.Monday, StartTime: "09:00", EndTime: "10:30", Room: "201", Building: "Building A",
	}}
}

func TestCheckConflictsRoomOverlap(t *testing.T) {
	candidate := models.ScheduleEntry{Day: models.Monday, StartTime: "10:00", EndTime: "11:00", Room: "201", Teacher: "Dr. Ali"}

	issues := CheckConflicts(candidate, mondayKhan(), "")
	require.Len(t, issues, 1)
	assert.Equal(t, models.ConflictRoom, issues[0].Kind)
	assert.Equal(t, "e1", issues[0].EntryID)
	assert.Contains(t, issues[0].Message, "09:00 to 10:30")
}

func TestCheckConflictsGapWithoutOverlap(t *testing.T) {
	candidate := models.ScheduleEntry{Day: models.Monday, StartTime: "10:35", EndTime: "11:30", Room: "202", Teacher: "Dr. Khan"}

	issues := CheckConflicts(candidate, mondayKhan(), "")
	require.Len(t, issues, 1)
	assert.Equal(t, models.ConflictGap, issues[0].Kind)
	assert.Equal(t, "Less than 15 minutes gap with CSE101 (A) 09:00-10:30", issues[0].Message)
}

func TestCheckConflictsDurationCap(t *testing.T) {
	candidate := models.ScheduleEntry{Day: models.Tuesday, StartTime: "09:00", EndTime: "13:00", Room: "301", Teacher: "Dr. Ali"}

	for _, existing := range [][]models.ScheduleEntry{nil, mondayKhan()} {
		issues := CheckConflicts(candidate, existing, "")
		require.Len(t, issues, 1)
		assert.Equal(t, models.ConflictDuration, issues[0].Kind)
		assert.Equal(t, "Duration exceeds 3 hours.", issues[0].Message)
		assert.Empty(t, issues[0].EntryID)
	}
}

func TestCheckConflictsTeacherOverlapIsCaseInsensitive(t *testing.T) {
	candidate := models.ScheduleEntry{Day: models.Monday, StartTime: "09:30", EndTime: "10:00", Room: "302", Teacher: "  dr. khan "}

	issues := CheckConflicts(candidate, mondayKhan(), "")
	require.Len(t, issues, 1)
	assert.Equal(t, models.ConflictTeacher, issues[0].Kind)
}

func TestCheckConflictsGapFiresAlongsideOverlap(t *testing.T) {
	// Identical interval in the same room with the same teacher: gap is 90 on both sides, so only overlaps fire.
	candidate := models.ScheduleEntry{Day: models.Monday, StartTime: "09:00", EndTime: "10:30", Room: "201", Teacher: "Dr. Khan"}
	issues := CheckConflicts(candidate, mondayKhan(), "")
	require.Len(t, issues, 2)
	assert.Equal(t, models.ConflictRoom, issues[0].Kind)
	assert.Equal(t, models.ConflictTeacher, issues[1].Kind)

	// Starting 10 minutes before the existing end overlaps and violates the gap.
	candidate = models.ScheduleEntry{Day: models.Monday, StartTime: "10:20", EndTime: "10:25", Room: "201", Teacher: "Dr. Ali"}
	issues = CheckConflicts(candidate, mondayKhan(), "")
	require.Len(t, issues, 2)
	assert.Equal(t, models.ConflictRoom, issues[0].Kind)
	assert.Equal(t, models.ConflictGap, issues[1].Kind)
}

func TestCheckConflictsOrderingAndDurationFirst(t *testing.T) {
	existing := append(mondayKhan(), models.ScheduleEntry{
		ID: "e2", CourseCode: "MAT201", Section: "B", Teacher: "Dr. Ali",
		Day: models.Monday, StartTime: "11:00", EndTime: "12:00", Room: "202",
	})
	candidate := models.ScheduleEntry{Day: models.Monday, StartTime: "08:00", EndTime: "11:30", Room: "201", Teacher: "Dr. Ali"}

	issues := CheckConflicts(candidate, existing, "")
	kinds := make([]models.ConflictKind, 0, len(issues))
	for _, issue := range issues {
		kinds = append(kinds, issue.Kind)
	}
	assert.Equal(t, []models.ConflictKind{models.ConflictDuration, models.ConflictRoom, models.ConflictTeacher}, kinds)
	assert.Equal(t, "e1", issues[1].EntryID)
	assert.Equal(t, "e2", issues[2].EntryID)
}

func TestCheckConflictsIgnoresOtherDays(t *testing.T) {
	candidate := models.ScheduleEntry{Day: models.Tuesday, StartTime: "09:00", EndTime: "10:30", Room: "201", Teacher: "Dr. Khan"}
	assert.Empty(t, CheckConflicts(candidate, mondayKhan(), ""))
}

func TestCheckConflictsExcludesEditedEntry(t *testing.T) {
	candidate := models.ScheduleEntry{ID: "e1", Day: models.Monday, StartTime: "09:15", EndTime: "10:45", Room: "201", Teacher: "Dr. Khan"}

	assert.NotEmpty(t, CheckConflicts(candidate, mondayKhan(), ""))
	assert.Empty(t, CheckConflicts(candidate, mondayKhan(), "e1"))
}

func TestCheckConflictsIsIdempotent(t *testing.T) {
	existing := mondayKhan()
	candidate := models.ScheduleEntry{Day: models.Monday, StartTime: "10:00", EndTime: "13:30", Room: "201", Teacher: "Dr. Khan"}

	first := CheckConflicts(candidate, existing, "")
	second := CheckConflicts(candidate, existing, "")
	assert.Equal(t, first, second)
	assert.Equal(t, mondayKhan(), existing)
}

func TestConflictDetectorCustomLimits(t *testing.T) {
	detector := NewConflictDetector(60, 30)
	candidate := models.ScheduleEntry{Day: models.Monday, StartTime: "10:50", EndTime: "12:00", Room: "202", Teacher: "Dr. Khan"}

	issues := detector.Check(candidate, mondayKhan(), "")
	require.Len(t, issues, 2)
	assert.Equal(t, "Duration exceeds 1 hours.", issues[0].Message)
	assert.Equal(t, models.ConflictGap, issues[1].Kind)
	assert.Contains(t, issues[1].Message, "Less than 30 minutes")
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{"09:00": 540, "9:05": 545, "23:59": 1439, " 00:00 ": 0}
	for raw, want := range cases {
		got, err := parseClock(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "24:00", "12:60", "12", "12:5", "ab:cd", "123:00"} {
		_, err := parseClock(raw)
		assert.Error(t, err, raw)
	}
}
