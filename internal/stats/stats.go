// Package stats contains statistics calculations and reporting.
package stats

import (
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/typist/internal/model"
)

// CharsPerWord is the standard word length used for WPM.
const CharsPerWord = 5.0

const sparkChars = " .:-=+*#%@"

// Compute derives speed and accuracy from the current typed state.
// correct counts typed runes that are currently correct, typed counts all
// typed runes. At zero elapsed time both speeds are zero.
func Compute(correct, typed int, elapsed time.Duration) model.Sample {
	sample := model.Sample{Elapsed: elapsed}
	den := typed
	if den < 1 {
		den = 1
	}
	sample.Accuracy = 100 * float64(correct) / float64(den)
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		return sample
	}
	sample.WPM = (float64(correct) / CharsPerWord) / minutes
	sample.RawWPM = (float64(typed) / CharsPerWord) / minutes
	return sample
}

// Consistency returns 100*min/max over the WPM of a series, or 0 when the
// series is empty or never moved off zero.
func Consistency(series []model.Sample) float64 {
	if len(series) == 0 {
		return 0
	}
	minVal := series[0].WPM
	maxVal := series[0].WPM
	for _, s := range series[1:] {
		minVal = math.Min(minVal, s.WPM)
		maxVal = math.Max(maxVal, s.WPM)
	}
	if maxVal <= 0 {
		return 0
	}
	return 100 * minVal / maxVal
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// WPMValues extracts the WPM of every sample.
func WPMValues(series []model.Sample) []float64 {
	out := make([]float64, len(series))
	for i, s := range series {
		out[i] = s.WPM
	}
	return out
}
