package models

import (
	"strings"
	"time"
)

// Weekday is a teaching day. Only Monday through Friday are schedulable.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
)

// Weekdays lists the schedulable days in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// ParseWeekday matches raw case-insensitively against the schedulable days.
func ParseWeekday(raw string) (Weekday, bool) {
	raw = strings.TrimSpace(raw)
	for _, d := range Weekdays {
		if strings.EqualFold(raw, string(d)) {
			return d, true
		}
	}
	return "", false
}

// Index returns the calendar position of d, or -1 when d is not schedulable.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// ScheduleEntry is one class placement in the weekly routine.
type ScheduleEntry struct {
	ID         string    `db:"id" json:"id"`
	CourseCode string    `db:"course_code" json:"course_code"`
	Section    string    `db:"section" json:"section"`
	Teacher    string    `db:"teacher" json:"teacher"`
	Day        Weekday   `db:"day" json:"day"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	Room       string    `db:"room" json:"room"`
	Building   string    `db:"building" json:"building"`
	Version    int       `db:"version" json:"version"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleEntryFilter describes query params for listing entries.
type ScheduleEntryFilter struct {
	Day        Weekday
	Room       string
	Building   string
	Teacher    string
	CourseCode string
	Section    string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ConflictKind classifies a scheduling rule violation.
type ConflictKind string

const (
	ConflictDuration ConflictKind = "DURATION"
	ConflictRoom     ConflictKind = "ROOM"
	ConflictTeacher  ConflictKind = "TEACHER"
	ConflictGap      ConflictKind = "GAP"
)

// ConflictIssue describes one violation between a candidate and an existing entry.
// Duration issues carry no entry reference.
type ConflictIssue struct {
	Kind       ConflictKind `json:"kind"`
	Message    string       `json:"message"`
	EntryID    string       `json:"entry_id,omitempty"`
	CourseCode string       `json:"course_code,omitempty"`
	Section    string       `json:"section,omitempty"`
	Day        Weekday      `json:"day,omitempty"`
	StartTime  string       `json:"start_time,omitempty"`
	EndTime    string       `json:"end_time,omitempty"`
	Room       string       `json:"room,omitempty"`
	Teacher    string       `json:"teacher,omitempty"`
}
