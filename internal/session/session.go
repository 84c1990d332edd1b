// Package session runs a single typing test: it feeds keys to the diff
// tracker, applies the mode's completion rule, keeps the clock and the
// metrics series, and produces the result record when the test ends.
//
// A Session is not safe for concurrent use. The owner must deliver keys and
// ticks from a single event loop, in arrival order.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/typist/internal/audio"
	"github.com/verte-zerg/typist/internal/diff"
	"github.com/verte-zerg/typist/internal/generator"
	"github.com/verte-zerg/typist/internal/logging"
	"github.com/verte-zerg/typist/internal/model"
	"github.com/verte-zerg/typist/internal/stats"
)

// Status is the lifecycle state of a session.
type Status int

// Statuses.
const (
	Pending Status = iota
	Running
	Finished
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Clock supplies the current time. Readings from time.Now carry a monotonic
// component, so differences are immune to wall-clock adjustments.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the process clock.
func SystemClock() Clock { return systemClock{} }

const (
	// DefaultLowWater is the number of untyped runes below which more text
	// is requested in time and zen modes.
	DefaultLowWater = 24
	// DefaultRefillWords is the number of words requested per refill.
	DefaultRefillWords = 15

	zenInitialWords = 50
	minTimedWords   = 12
	timedSlackWords = 8
)

// Options configure a session. Zero values select defaults.
type Options struct {
	Mode           model.Mode
	Lang           string
	SampleInterval time.Duration
	LowWater       int
	RefillWords    int
	Clock          Clock
	Notifier       audio.Notifier
	Logger         *slog.Logger
}

type charStat struct {
	correct      int
	incorrect    int
	latencySumMs int64
	latencyCount int64
}

// Session is one typing test.
type Session struct {
	id     string
	mode   model.Mode
	lang   string
	src    generator.Source
	clock  Clock
	notify audio.Notifier
	logger *slog.Logger

	lowWater    int
	refillWords int

	tracker *diff.Tracker
	sampler *stats.Sampler

	status    Status
	startedAt time.Time
	elapsed   time.Duration
	exhausted bool

	charStats     map[rune]*charStat
	prevCorrectAt time.Time

	result *model.Result
}

// New builds a pending session and requests its initial text from src.
func New(src generator.Source, opts Options) (*Session, error) {
	if err := opts.Mode.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("text source is required")
	}
	s := &Session{
		id:          uuid.NewString(),
		mode:        opts.Mode,
		lang:        opts.Lang,
		src:         src,
		clock:       opts.Clock,
		notify:      opts.Notifier,
		logger:      opts.Logger,
		lowWater:    opts.LowWater,
		refillWords: opts.RefillWords,
		sampler:     stats.NewSampler(opts.SampleInterval),
		charStats:   map[rune]*charStat{},
	}
	if s.clock == nil {
		s.clock = SystemClock()
	}
	if s.notify == nil {
		s.notify = audio.Nop{}
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.lowWater <= 0 {
		s.lowWater = DefaultLowWater
	}
	if s.refillWords <= 0 {
		s.refillWords = DefaultRefillWords
	}
	s.logger = s.logger.With("session", s.id, "mode", s.mode.String())

	want := initialWords(s.mode)
	words, err := s.src.Request(s.lang, want)
	if err != nil {
		if !errors.Is(err, generator.ErrExhausted) {
			return nil, fmt.Errorf("failed to request text: %w", err)
		}
		s.markExhausted(err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("text source returned no words")
	}
	if len(words) < want {
		s.logger.Warn("text source returned fewer words than requested", "want", want, "got", len(words))
	}
	if s.mode.Kind == model.ModeWords && len(words) > want {
		words = words[:want]
	}
	s.tracker = diff.New([]rune(strings.Join(words, " ")))
	s.refill()
	return s, nil
}

func initialWords(mode model.Mode) int {
	switch mode.Kind {
	case model.ModeTime:
		// One word per second covers 60 WPM; refills handle faster typists.
		return max(mode.Value+timedSlackWords, minTimedWords)
	case model.ModeWords:
		return mode.Value
	case model.ModeZen:
		return zenInitialWords
	}
	return 0
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// Mode returns the session mode.
func (s *Session) Mode() model.Mode { return s.mode }

// Status returns the lifecycle state.
func (s *Session) Status() Status { return s.status }

// Elapsed returns the session clock: zero while pending, frozen once finished.
func (s *Session) Elapsed() time.Duration { return s.elapsed }

// Exhausted reports whether the text source ran dry during the session.
func (s *Session) Exhausted() bool { return s.exhausted }

// Key applies a character key.
func (s *Session) Key(r rune) diff.Outcome {
	switch s.status {
	case Finished:
		return diff.Ignored
	case Running:
		if s.advance() {
			return diff.Ignored
		}
	}
	outcome := s.tracker.Type(r)
	if !outcome.Typed() {
		return outcome
	}
	now := s.clock.Now()
	if s.status == Pending {
		s.status = Running
		s.startedAt = now
		s.logger.Debug("session started")
	}
	s.recordChar(outcome, now)
	if outcome == diff.Accepted {
		s.emit(audio.KeyAccepted)
	} else {
		s.emit(audio.KeyRejected)
	}
	s.refill()
	if s.completed() {
		s.finish()
	}
	return outcome
}

// Backspace removes the last typed character. It never changes the status
// by itself, but a timed session whose deadline has passed finishes first.
func (s *Session) Backspace() diff.Outcome {
	switch s.status {
	case Finished:
		return diff.Ignored
	case Running:
		if s.advance() {
			return diff.Ignored
		}
	}
	return s.tracker.Backspace()
}

// Tick advances the clock, finishes a timed session whose deadline has
// passed, and records a metrics sample on interval boundaries. It reports
// whether the tick finished the session.
func (s *Session) Tick() bool {
	if s.status != Running {
		return false
	}
	if s.advance() {
		return true
	}
	s.sampler.Observe(s.elapsed, s.tracker.Correct(), s.tracker.Caret())
	return false
}

// End finishes a running zen session. Other modes only end through their
// own completion rule, and a pending session has nothing to record.
func (s *Session) End() bool {
	if s.status != Running || s.mode.Kind != model.ModeZen {
		return false
	}
	s.updateElapsed()
	s.finish()
	return true
}

// Result returns the record built when the session finished.
func (s *Session) Result() (model.Result, bool) {
	if s.result == nil {
		return model.Result{}, false
	}
	res := *s.result
	res.Series = append([]model.Sample(nil), s.result.Series...)
	res.Chars = append([]model.CharStats(nil), s.result.Chars...)
	return res, true
}

// advance updates the clock and finishes the session if the completion rule
// now holds. It reports whether the session is finished.
func (s *Session) advance() bool {
	s.updateElapsed()
	if s.completed() {
		s.finish()
		return true
	}
	return false
}

func (s *Session) updateElapsed() {
	if elapsed := s.clock.Now().Sub(s.startedAt); elapsed > s.elapsed {
		s.elapsed = elapsed
	}
}

func (s *Session) completed() bool {
	switch s.mode.Kind {
	case model.ModeTime:
		if s.elapsed >= s.mode.Duration() {
			return true
		}
		return s.exhausted && s.tracker.AtEnd()
	case model.ModeWords:
		return s.tracker.CompletedWords() >= s.mode.Value || s.tracker.AtEnd()
	case model.ModeZen:
		return s.exhausted && s.tracker.AtEnd()
	}
	return false
}

func (s *Session) finish() {
	if s.mode.Kind == model.ModeTime && s.elapsed > s.mode.Duration() {
		s.elapsed = s.mode.Duration()
	}
	s.status = Finished
	correct, typed := s.tracker.Correct(), s.tracker.Caret()
	final := s.sampler.Finalize(s.elapsed, correct, typed)
	series := s.sampler.Series()
	started := s.startedAt.Round(0)
	s.result = &model.Result{
		SessionID:   s.id,
		StartedAt:   started,
		FinishedAt:  started.Add(s.elapsed),
		Mode:        s.mode,
		Lang:        s.lang,
		WPM:         final.WPM,
		RawWPM:      final.RawWPM,
		Accuracy:    final.Accuracy,
		Consistency: stats.Consistency(series),
		CharCount:   typed,
		ErrorCount:  s.tracker.Errors(),
		Duration:    s.elapsed,
		Series:      series,
		Chars:       s.collectCharStats(),
	}
	s.logger.Info("session finished",
		"elapsed", s.elapsed,
		"wpm", final.WPM,
		"accuracy", final.Accuracy,
		"chars", typed,
		"errors", s.tracker.Errors())
	s.emit(audio.TestFinished)
}

func (s *Session) refill() {
	if s.mode.Kind == model.ModeWords || s.exhausted {
		return
	}
	if s.tracker.Remaining() >= s.lowWater {
		return
	}
	words, err := s.src.Request(s.lang, s.refillWords)
	if len(words) > 0 {
		s.tracker.Extend([]rune(" " + strings.Join(words, " ")))
	}
	if err != nil {
		s.markExhausted(err)
		return
	}
	if len(words) == 0 {
		s.markExhausted(generator.ErrExhausted)
	}
}

func (s *Session) markExhausted(err error) {
	if s.exhausted {
		return
	}
	s.exhausted = true
	s.logger.Warn("text source exhausted; the test ends with the remaining text", "err", err)
}

func (s *Session) recordChar(outcome diff.Outcome, now time.Time) {
	last, ok := s.tracker.Last()
	if !ok || last.Expected == ' ' {
		return
	}
	entry, ok := s.charStats[last.Expected]
	if !ok {
		entry = &charStat{}
		s.charStats[last.Expected] = entry
	}
	if outcome != diff.Accepted {
		entry.incorrect++
		return
	}
	entry.correct++
	if !s.prevCorrectAt.IsZero() {
		entry.latencySumMs += now.Sub(s.prevCorrectAt).Milliseconds()
		entry.latencyCount++
	}
	s.prevCorrectAt = now
}

func (s *Session) collectCharStats() []model.CharStats {
	out := make([]model.CharStats, 0, len(s.charStats))
	for ch, entry := range s.charStats {
		out = append(out, model.CharStats{
			Char:         string(ch),
			Correct:      entry.correct,
			Incorrect:    entry.incorrect,
			LatencySumMs: entry.latencySumMs,
			LatencyCount: entry.latencyCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

func (s *Session) emit(e audio.Event) {
	if err := s.notify.Notify(e); err != nil {
		s.logger.Debug("audio notification failed", "event", e.String(), "err", err)
	}
}
