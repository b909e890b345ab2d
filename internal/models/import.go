package models

// ImportFormat enumerates accepted bulk upload encodings.
type ImportFormat string

const (
	ImportFormatCSV ImportFormat = "csv"
	ImportFormatXLS ImportFormat = "xls"
)

// RowError is a shape or validation problem on one uploaded row. Row is 1-based and excludes the header.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// RowConflict lists the issues raised by one uploaded row.
type RowConflict struct {
	Row    int             `json:"row"`
	Entry  ScheduleEntry   `json:"entry"`
	Issues []ConflictIssue `json:"issues"`
}

// ImportResult summarises an accepted (or dry-run) batch.
type ImportResult struct {
	Committed bool            `json:"committed"`
	Count     int             `json:"count"`
	Entries   []ScheduleEntry `json:"entries"`
}
