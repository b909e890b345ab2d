package service

import (
	"github.com/noah-isme/campus-routine-api/internal/models"
)

var (
	defaultGridRooms     = []string{"201", "202", "203", "301", "302"}
	defaultGridTimeSlots = []string{"08:00", "09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}
)

// NewGridLayout builds the weekly layout; empty inputs fall back to the default rooms and hourly slots.
// Slots are normalised to HH:MM and unparsable slots are dropped.
func NewGridLayout(rooms, timeSlots []string) models.GridLayout {
	if len(rooms) == 0 {
		rooms = defaultGridRooms
	}
	if len(timeSlots) == 0 {
		timeSlots = defaultGridTimeSlots
	}
	slots := make([]string, 0, len(timeSlots))
	for _, slot := range timeSlots {
		if normalised, err := normaliseClock(slot); err == nil {
			slots = append(slots, normalised)
		}
	}
	days := make([]models.Weekday, len(models.Weekdays))
	copy(days, models.Weekdays)
	return models.GridLayout{
		Days:      days,
		Rooms:     append([]string(nil), rooms...),
		TimeSlots: slots,
	}
}

// BuildGrid projects entries onto the layout. A cell shows the first entry on that day whose room matches and
// whose start time equals the slot exactly; entries starting between slots are counted as off-grid.
// When day is set only that day's cells are produced.
func BuildGrid(layout models.GridLayout, entries []models.ScheduleEntry, day models.Weekday) models.GridView {
	days := layout.Days
	if day != "" {
		days = []models.Weekday{day}
	}

	type cellKey struct {
		day  models.Weekday
		room string
		slot string
	}
	placed := make(map[cellKey]int, len(entries))
	offGrid := 0
	for i, entry := range entries {
		if day != "" && entry.Day != day {
			continue
		}
		start, err := normaliseClock(entry.StartTime)
		if err != nil {
			offGrid++
			continue
		}
		key := cellKey{day: entry.Day, room: normaliseKey(entry.Room), slot: start}
		if _, taken := placed[key]; taken {
			offGrid++
			continue
		}
		placed[key] = i
	}

	view := models.GridView{
		GridLayout: models.GridLayout{Days: days, Rooms: layout.Rooms, TimeSlots: layout.TimeSlots},
		Cells:      make([]models.GridCell, 0, len(days)*len(layout.Rooms)*len(layout.TimeSlots)),
	}
	shown := 0
	for _, d := range days {
		for _, room := range layout.Rooms {
			for _, slot := range layout.TimeSlots {
				cell := models.GridCell{Day: d, Room: room, TimeSlot: slot}
				if idx, ok := placed[cellKey{day: d, room: normaliseKey(room), slot: slot}]; ok {
					entry := entries[idx]
					cell.Entry = &entry
					shown++
				}
				view.Cells = append(view.Cells, cell)
			}
		}
	}
	view.OffGrid = offGrid + (len(placed) - shown)
	return view
}
