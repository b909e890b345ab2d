package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

const (
	// DefaultMaxDurationMinutes caps a single placement.
	DefaultMaxDurationMinutes = 180
	// DefaultMinGapMinutes is the turnover required between placements sharing a room or teacher.
	DefaultMinGapMinutes = 15
)

// ConflictDetector checks a candidate placement against committed placements.
// It holds no state beyond its limits and is safe for concurrent use.
type ConflictDetector struct {
	MaxDurationMinutes int
	MinGapMinutes      int
}

// NewConflictDetector builds a detector; non-positive limits fall back to the defaults.
func NewConflictDetector(maxDuration, minGap int) *ConflictDetector {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDurationMinutes
	}
	if minGap <= 0 {
		minGap = DefaultMinGapMinutes
	}
	return &ConflictDetector{MaxDurationMinutes: maxDuration, MinGapMinutes: minGap}
}

// CheckConflicts runs the default limits.
func CheckConflicts(candidate models.ScheduleEntry, existing []models.ScheduleEntry, excludeID string) []models.ConflictIssue {
	return NewConflictDetector(0, 0).Check(candidate, existing, excludeID)
}

// Check returns every issue for candidate: the duration issue first, then per existing entry
// (in the given order) room overlap, teacher overlap and gap. The entry whose ID equals excludeID
// is ignored. A candidate with unparsable times yields no issues; callers validate shape first.
func (d *ConflictDetector) Check(candidate models.ScheduleEntry, existing []models.ScheduleEntry, excludeID string) []models.ConflictIssue {
	cs, err := parseClock(candidate.StartTime)
	if err != nil {
		return nil
	}
	ce, err := parseClock(candidate.EndTime)
	if err != nil {
		return nil
	}

	issues := make([]models.ConflictIssue, 0)
	if ce-cs > d.MaxDurationMinutes {
		issues = append(issues, models.ConflictIssue{
			Kind:    models.ConflictDuration,
			Message: durationMessage(d.MaxDurationMinutes),
		})
	}

	room := normaliseKey(candidate.Room)
	teacher := normaliseKey(candidate.Teacher)

	for _, entry := range existing {
		if excludeID != "" && entry.ID == excludeID {
			continue
		}
		if entry.Day != candidate.Day {
			continue
		}
		es, err := parseClock(entry.StartTime)
		if err != nil {
			continue
		}
		ee, err := parseClock(entry.EndTime)
		if err != nil {
			continue
		}

		sameRoom := room != "" && normaliseKey(entry.Room) == room
		sameTeacher := teacher != "" && normaliseKey(entry.Teacher) == teacher
		overlaps := cs < ee && ce > es

		if sameRoom && overlaps {
			issues = append(issues, newIssue(models.ConflictRoom, entry,
				fmt.Sprintf("Room %s is already booked for %s (%s) from %s to %s", entry.Room, entry.CourseCode, entry.Section, entry.StartTime, entry.EndTime)))
		}
		if sameTeacher && overlaps {
			issues = append(issues, newIssue(models.ConflictTeacher, entry,
				fmt.Sprintf("Teacher %s is already teaching %s (%s) from %s to %s", entry.Teacher, entry.CourseCode, entry.Section, entry.StartTime, entry.EndTime)))
		}
		if sameRoom || sameTeacher {
			gap := minInt(absInt(cs-ee), absInt(es-ce))
			if gap < d.MinGapMinutes {
				issues = append(issues, newIssue(models.ConflictGap, entry,
					fmt.Sprintf("Less than %d minutes gap with %s (%s) %s-%s", d.MinGapMinutes, entry.CourseCode, entry.Section, entry.StartTime, entry.EndTime)))
			}
		}
	}
	return issues
}

func newIssue(kind models.ConflictKind, entry models.ScheduleEntry, message string) models.ConflictIssue {
	return models.ConflictIssue{
		Kind:       kind,
		Message:    message,
		EntryID:    entry.ID,
		CourseCode: entry.CourseCode,
		Section:    entry.Section,
		Day:        entry.Day,
		StartTime:  entry.StartTime,
		EndTime:    entry.EndTime,
		Room:       entry.Room,
		Teacher:    entry.Teacher,
	}
}

func durationMessage(maxMinutes int) string {
	if maxMinutes%60 == 0 {
		return fmt.Sprintf("Duration exceeds %d hours.", maxMinutes/60)
	}
	return fmt.Sprintf("Duration exceeds %d minutes.", maxMinutes)
}

// parseClock converts "H:MM" or "HH:MM" into minutes since midnight.
func parseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || parts[0] == "" || len(parts[0]) > 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h*60 + m, nil
}

// normaliseClock renders a parsable time in zero-padded HH:MM form.
func normaliseClock(raw string) (string, error) {
	minutes, err := parseClock(raw)
	if err != nil {
		return "", err
	}
	return formatClock(minutes), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func normaliseKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
