package stats

import (
	"time"

	"github.com/verte-zerg/typist/internal/model"
)

// DefaultSampleInterval is the sampling cadence used when none is configured.
const DefaultSampleInterval = time.Second

// Sampler records a metrics sample each time elapsed time crosses an
// interval boundary. The series is append-only.
type Sampler struct {
	interval time.Duration
	next     time.Duration
	series   []model.Sample
	final    bool
}

// NewSampler returns a sampler with the given cadence. Non-positive
// intervals fall back to DefaultSampleInterval.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{interval: interval, next: interval}
}

// Interval returns the sampling cadence.
func (s *Sampler) Interval() time.Duration { return s.interval }

// Observe records a sample if elapsed has reached the next boundary. Ticks
// that arrive late produce a single sample at their actual elapsed time.
func (s *Sampler) Observe(elapsed time.Duration, correct, typed int) (model.Sample, bool) {
	if s.final || elapsed < s.next {
		return model.Sample{}, false
	}
	sample := Compute(correct, typed, elapsed)
	s.series = append(s.series, sample)
	s.next = (elapsed/s.interval + 1) * s.interval
	return sample, true
}

// Finalize forces a closing sample at the frozen elapsed time. Further
// calls to Observe or Finalize are no-ops.
func (s *Sampler) Finalize(elapsed time.Duration, correct, typed int) model.Sample {
	if s.final {
		last, _ := s.Last()
		return last
	}
	s.final = true
	sample := Compute(correct, typed, elapsed)
	if last, ok := s.Last(); ok && last == sample {
		return sample
	}
	s.series = append(s.series, sample)
	return sample
}

// Last returns the most recent sample.
func (s *Sampler) Last() (model.Sample, bool) {
	if len(s.series) == 0 {
		return model.Sample{}, false
	}
	return s.series[len(s.series)-1], true
}

// Series returns a copy of the recorded samples.
func (s *Sampler) Series() []model.Sample {
	return append([]model.Sample(nil), s.series...)
}
