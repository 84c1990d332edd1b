package stats

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	dayLayout    = "2006-01-02"
	heatmapDays  = 365
	heatmapWeeks = 53
	// Each week column takes a cell plus a gap.
	heatmapColumn = 2
)

var (
	heatmapCells    = []rune{'·', '░', '▒', '▓', '█'}
	heatmapWeekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
)

func dayKey(t time.Time) string {
	return t.Local().Format(dayLayout)
}

func heatmapCell(tests int) rune {
	switch {
	case tests <= 0:
		return heatmapCells[0]
	case tests <= 2:
		return heatmapCells[1]
	case tests <= 5:
		return heatmapCells[2]
	case tests <= 10:
		return heatmapCells[3]
	default:
		return heatmapCells[4]
	}
}

// HeatmapWeeks is the number of week columns that fit in width. A
// non-positive width uses the terminal width.
func HeatmapWeeks(width int) int {
	if width <= 0 {
		width = terminalWidth()
	}
	return min(max((width-len(heatmapWeekdays[0]))/heatmapColumn, 1), heatmapWeeks)
}

// RenderHeatmap prints tests per day over the last year as a grid with one
// row per weekday and one column per week. The last column is the week of
// today; days after today stay blank. Activity is keyed like
// Profile.Activity.
func RenderHeatmap(w io.Writer, activity map[string]int, today time.Time, weeks int) error {
	weeks = min(max(weeks, 1), heatmapWeeks)
	today = today.Local()
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	sinceMonday := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -sinceMonday-7*(weeks-1))
	first := day.AddDate(0, 0, -(heatmapDays - 1))

	total := 0
	for i := 0; i < heatmapDays; i++ {
		total += activity[first.AddDate(0, 0, i).Format(dayLayout)]
	}
	lines := make([]string, 0, len(heatmapWeekdays)+1)
	lines = append(lines, fmt.Sprintf("Activity (%dd): %d tests", heatmapDays, total))
	for weekday, label := range heatmapWeekdays {
		var b strings.Builder
		b.WriteString(label)
		for week := 0; week < weeks; week++ {
			date := start.AddDate(0, 0, 7*week+weekday)
			b.WriteByte(' ')
			if date.After(day) || date.Before(first) {
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(heatmapCell(activity[date.Format(dayLayout)]))
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return writeLines(w, lines)
}
