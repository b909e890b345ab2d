package models

import "time"

// UtilizationRow is one aggregated key (a teacher or a "building room" label).
type UtilizationRow struct {
	Key     string `json:"key"`
	Count   int    `json:"count"`
	Minutes int    `json:"minutes"`
}

// UtilizationReport groups rows for a single dimension.
type UtilizationReport struct {
	Dimension   string           `json:"dimension"`
	Day         Weekday          `json:"day,omitempty"`
	Rows        []UtilizationRow `json:"rows"`
	Total       int              `json:"total"`
	GeneratedAt time.Time        `json:"generated_at"`
}
