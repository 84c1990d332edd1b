package stats

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/typist/internal/model"
)

const (
	recentWindow        = 10
	terminalWidthBackup = 80
	chartLabelWidth     = 10
)

// ResultLister loads stored results oldest first.
type ResultLister interface {
	ListResults(ctx context.Context, cfg model.StatsConfig) ([]model.Result, error)
}

// Profile summarises a set of results.
type Profile struct {
	Results        []model.Result
	Tests          int
	TimeTyping     time.Duration
	AvgWPM         float64
	BestWPM        float64
	AvgRaw         float64
	AvgAccuracy    float64
	AvgConsistency float64
	RecentWPM      float64
	RecentAccuracy float64

	// BestMode is the mode of the result holding BestWPM.
	BestMode        model.Mode
	BestRaw         float64
	BestAccuracy    float64
	BestConsistency float64
	// EstWords is typed characters over five.
	EstWords float64
	// Activity counts results per local day, keyed by dayKey.
	Activity map[string]int
}

// BuildProfile loads results matching cfg and aggregates them.
func BuildProfile(ctx context.Context, lister ResultLister, cfg model.StatsConfig) (Profile, error) {
	results, err := lister.ListResults(ctx, cfg)
	if err != nil {
		return Profile{}, err
	}
	if cfg.Last > 0 && len(results) > cfg.Last {
		results = results[len(results)-cfg.Last:]
	}
	p := Profile{Results: results, Tests: len(results), Activity: make(map[string]int)}
	if len(results) == 0 {
		return p, nil
	}
	for i, r := range results {
		p.TimeTyping += r.Duration
		p.AvgWPM += r.WPM
		p.AvgRaw += r.RawWPM
		p.AvgAccuracy += r.Accuracy
		p.AvgConsistency += r.Consistency
		p.EstWords += float64(r.CharCount) / 5
		p.Activity[dayKey(r.FinishedAt)]++
		if i == 0 || r.WPM > p.BestWPM {
			p.BestWPM = r.WPM
			p.BestMode = r.Mode
		}
		p.BestRaw = max(p.BestRaw, r.RawWPM)
		p.BestAccuracy = max(p.BestAccuracy, r.Accuracy)
		p.BestConsistency = max(p.BestConsistency, r.Consistency)
	}
	n := float64(len(results))
	p.AvgWPM /= n
	p.AvgRaw /= n
	p.AvgAccuracy /= n
	p.AvgConsistency /= n

	recent := results[max(0, len(results)-recentWindow):]
	for _, r := range recent {
		p.RecentWPM += r.WPM
		p.RecentAccuracy += r.Accuracy
	}
	p.RecentWPM /= float64(len(recent))
	p.RecentAccuracy /= float64(len(recent))
	return p, nil
}

// RenderSummary prints the profile summary.
func RenderSummary(w io.Writer, p Profile) error {
	if p.Tests == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	lines := [][2]string{
		{"Tests", fmt.Sprintf("%d", p.Tests)},
		{"Time typing", p.TimeTyping.Round(time.Second).String()},
		{"Est. words", fmt.Sprintf("%.0f", p.EstWords)},
		{"Avg WPM", fmt.Sprintf("%.2f", p.AvgWPM)},
		{"Best WPM", fmt.Sprintf("%.2f (%s)", p.BestWPM, p.BestMode)},
		{"Avg Raw", fmt.Sprintf("%.2f", p.AvgRaw)},
		{"Best Raw", fmt.Sprintf("%.2f", p.BestRaw)},
		{"Avg Accuracy", fmt.Sprintf("%.2f%%", p.AvgAccuracy)},
		{"Best Accuracy", fmt.Sprintf("%.2f%%", p.BestAccuracy)},
		{"Avg Consistency", fmt.Sprintf("%.2f%%", p.AvgConsistency)},
		{"Best Consistency", fmt.Sprintf("%.2f%%", p.BestConsistency)},
		{fmt.Sprintf("Last %d WPM", min(recentWindow, p.Tests)), fmt.Sprintf("%.2f", p.RecentWPM)},
		{fmt.Sprintf("Last %d Accuracy", min(recentWindow, p.Tests)), fmt.Sprintf("%.2f%%", p.RecentAccuracy)},
	}
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{l[0] + ":", l[1]})
	}
	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	return writeLines(w, formatTable(nil, rows, map[int]bool{1: true}))
}

// RenderCurve prints a sparkline of values fitted to width columns. A
// non-positive width uses the terminal width.
func RenderCurve(w io.Writer, label string, values []float64, width int) error {
	if len(values) == 0 {
		return nil
	}
	if width <= 0 {
		width = terminalWidth() - chartLabelWidth - 1
	}
	width = max(width, 1)
	line := Sparkline(resample(values, width))
	_, err := fmt.Fprintf(w, "%-*s %s\n", chartLabelWidth, label, line)
	return err
}

// RenderLearningCurve prints a moving average of WPM and accuracy across results.
func RenderLearningCurve(w io.Writer, results []model.Result, window, width int) error {
	if len(results) == 0 {
		return nil
	}
	wpms := make([]float64, len(results))
	accs := make([]float64, len(results))
	for i, r := range results {
		wpms[i] = r.WPM
		accs[i] = r.Accuracy
	}
	if err := RenderCurve(w, "WPM", MovingAverage(wpms, window), width); err != nil {
		return err
	}
	return RenderCurve(w, "Accuracy", MovingAverage(accs, window), width)
}

// SparklineFit renders values as a sparkline no wider than width. Longer
// series are compressed; shorter ones keep one column per value.
func SparklineFit(values []float64, width int) string {
	if width > 0 && len(values) > width {
		values = resample(values, width)
	}
	return Sparkline(values)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// resample stretches or compresses values to exactly width points by
// averaging (compression) or nearest-neighbour repetition (stretching).
func resample(values []float64, width int) []float64 {
	if len(values) == width || len(values) == 0 {
		return append([]float64(nil), values...)
	}
	out := make([]float64, width)
	if len(values) < width {
		for i := range out {
			out[i] = values[i*len(values)/width]
		}
		return out
	}
	for i := range out {
		start := i * len(values) / width
		end := max((i+1)*len(values)/width, start+1)
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
