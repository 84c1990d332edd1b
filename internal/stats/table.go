package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typist/internal/model"
)

const timestampLayout = "2006-01-02 15:04"

// RenderHistory prints results as a table, in the order given.
func RenderHistory(w io.Writer, results []model.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	headers := []string{"ID", "Finished", "Mode", "WPM", "Raw", "Acc", "Chars", "Errors"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			r.FinishedAt.Local().Format(timestampLayout),
			r.Mode.String(),
			fmt.Sprintf("%.1f", r.WPM),
			fmt.Sprintf("%.1f", r.RawWPM),
			fmt.Sprintf("%.1f%%", r.Accuracy),
			fmt.Sprintf("%d", r.CharCount),
			fmt.Sprintf("%d", r.ErrorCount),
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{0: true, 3: true, 4: true, 5: true, 6: true, 7: true}))
}

// RenderLeaderboard prints ranked results.
func RenderLeaderboard(w io.Writer, mode model.Mode, results []model.Result) error {
	if _, err := fmt.Fprintf(w, "Leaderboard %s\n", mode); err != nil {
		return err
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	headers := []string{"#", "WPM", "Acc", "Raw", "Consistency", "Finished"}
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.1f", r.WPM),
			fmt.Sprintf("%.1f%%", r.Accuracy),
			fmt.Sprintf("%.1f", r.RawWPM),
			fmt.Sprintf("%.0f%%", r.Consistency),
			r.FinishedAt.Local().Format(timestampLayout),
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		colCount = max(colCount, len(row))
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	padding := width - runewidth.StringWidth(value)
	if padding <= 0 {
		return value
	}
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}
