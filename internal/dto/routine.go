package dto

import "github.com/noah-isme/campus-routine-api/internal/models"

// RoutineEntryRequest is the payload for creating or checking a placement.
type RoutineEntryRequest struct {
	CourseCode string `json:"course_code" validate:"required,max=32"`
	Section    string `json:"section" validate:"required,max=16"`
	Teacher    string `json:"teacher" validate:"required,max=128"`
	Day        string `json:"day" validate:"required,weekday"`
	StartTime  string `json:"start_time" validate:"required,clock"`
	EndTime    string `json:"end_time" validate:"required,clock,clockafter=StartTime"`
	Room       string `json:"room" validate:"required,max=32"`
	Building   string `json:"building" validate:"max=64"`
}

// UpdateRoutineEntryRequest replaces a placement. Version must equal the stored version; it may also
// be supplied through the If-Match header.
type UpdateRoutineEntryRequest struct {
	RoutineEntryRequest
	Version int `json:"version" validate:"omitempty,min=1"`
}

// CheckRoutineEntryRequest runs the conflict detector without saving. ExcludeID skips the entry being edited.
type CheckRoutineEntryRequest struct {
	RoutineEntryRequest
	ExcludeID string `json:"exclude_id" validate:"omitempty,uuid"`
}

// CheckRoutineEntryResponse lists the issues a save would raise.
type CheckRoutineEntryResponse struct {
	OK     bool                   `json:"ok"`
	Issues []models.ConflictIssue `json:"issues"`
}

// ImportOptions controls bulk import behaviour.
type ImportOptions struct {
	Strict bool
	DryRun bool
	Format models.ImportFormat
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}
