package models

// GridLayout is the fixed set of days, rooms and hourly marks rendered by the grid view.
type GridLayout struct {
	Days      []Weekday `json:"days"`
	Rooms     []string  `json:"rooms"`
	TimeSlots []string  `json:"time_slots"`
}

// GridCell is one (day, room, slot) cell. Entry is nil for an empty cell.
type GridCell struct {
	Day      Weekday        `json:"day"`
	Room     string         `json:"room"`
	TimeSlot string         `json:"time_slot"`
	Entry    *ScheduleEntry `json:"entry,omitempty"`
}

// GridView projects entries onto the layout. OffGrid counts entries not shown in any cell.
type GridView struct {
	GridLayout
	Cells   []GridCell `json:"cells"`
	OffGrid int        `json:"off_grid"`
}
