package session

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typist/internal/audio"
	"github.com/verte-zerg/typist/internal/diff"
	"github.com/verte-zerg/typist/internal/generator"
	"github.com/verte-zerg/typist/internal/model"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// cycleSource hands out its words in a loop and counts requests.
type cycleSource struct {
	words    []string
	next     int
	requests []int
}

func (s *cycleSource) Request(_ string, minWords int) ([]string, error) {
	s.requests = append(s.requests, minWords)
	out := make([]string, 0, minWords)
	for i := 0; i < minWords; i++ {
		out = append(out, s.words[s.next%len(s.words)])
		s.next++
	}
	return out, nil
}

type errSource struct{ err error }

func (s errSource) Request(string, int) ([]string, error) { return nil, s.err }

func newSession(t *testing.T, src generator.Source, mode model.Mode, clock Clock, mutate ...func(*Options)) *Session {
	t.Helper()
	opts := Options{Mode: mode, Lang: "en", Clock: clock, SampleInterval: time.Second}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := New(src, opts)
	require.NoError(t, err)
	return s
}

func typeAll(s *Session, text string) []diff.Outcome {
	out := make([]diff.Outcome, 0, len(text))
	for _, r := range text {
		out = append(out, s.Key(r))
	}
	return out
}

func TestFirstKeystrokeStartsSession(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"cat"}}, model.TimeMode(15), clock)
	assert.Equal(t, Pending, s.Status())

	clock.Advance(10 * time.Second)
	assert.Equal(t, diff.Ignored, s.Backspace())
	assert.Equal(t, Pending, s.Status())

	assert.Equal(t, diff.Accepted, s.Key('c'))
	assert.Equal(t, Running, s.Status())
	assert.Zero(t, s.Elapsed())

	clock.Advance(2 * time.Second)
	s.Tick()
	assert.Equal(t, 2*time.Second, s.Elapsed())
}

func TestPendingNeverTimesOut(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"cat"}}, model.TimeMode(15), clock)
	clock.Advance(15 * time.Second)
	assert.False(t, s.Tick())
	assert.Equal(t, Pending, s.Status())
	_, ok := s.Result()
	assert.False(t, ok)

	s.Key('c')
	clock.Advance(15 * time.Second)
	assert.True(t, s.Tick())
	assert.Equal(t, Finished, s.Status())
}

func TestTimeModeClampsLateTick(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"cat"}}, model.TimeMode(15), clock)
	typeAll(s, "ca")
	clock.Advance(15400 * time.Millisecond)
	require.True(t, s.Tick())
	assert.Equal(t, 15*time.Second, s.Elapsed())

	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, res.Duration)
	require.NotEmpty(t, res.Series)
	assert.Equal(t, 15*time.Second, res.Series[len(res.Series)-1].Elapsed)
	assert.Equal(t, res.StartedAt.Add(15*time.Second), res.FinishedAt)
}

func TestKeyAfterDeadlineFinishesInsteadOfTyping(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"cat"}}, model.TimeMode(15), clock)
	s.Key('c')
	clock.Advance(16 * time.Second)
	assert.Equal(t, diff.Ignored, s.Key('a'))
	assert.Equal(t, Finished, s.Status())
	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 1, res.CharCount)
}

func TestWordCountFinishesRegardlessOfCorrectness(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"ab"}}, model.WordsMode(10), clock)
	view := s.View()
	require.Equal(t, strings.TrimSpace(strings.Repeat("ab ", 10)), string(view.Target))
	require.Equal(t, 10, view.WordsTotal)

	typed := strings.TrimSpace(strings.Repeat("xx ", 10))
	for i, r := range typed {
		clock.Advance(100 * time.Millisecond)
		s.Key(r)
		if i < len(typed)-1 {
			require.Equal(t, Running, s.Status(), "finished early at %d", i)
		}
	}
	assert.Equal(t, Finished, s.Status())
	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 20, res.ErrorCount)
	assert.Equal(t, 29, res.CharCount)
	assert.Equal(t, 10, s.View().WordsDone)
}

func TestCatDigResult(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"cat", "dog"}}, model.WordsMode(2), clock)
	for _, r := range "cat dig" {
		clock.Advance(200 * time.Millisecond)
		s.Key(r)
	}
	require.Equal(t, Finished, s.Status())
	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 7, res.CharCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.InDelta(t, 85.7, res.Accuracy, 0.05)
	assert.Equal(t, model.WordsMode(2), res.Mode)
	assert.Equal(t, s.ID(), res.SessionID)
}

func TestFinishedIsTerminal(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"a"}}, model.WordsMode(1), clock)
	s.Key('a')
	require.Equal(t, Finished, s.Status())
	frozen := s.Elapsed()

	clock.Advance(time.Minute)
	assert.Equal(t, diff.Ignored, s.Key('b'))
	assert.Equal(t, diff.Ignored, s.Backspace())
	assert.False(t, s.Tick())
	assert.Equal(t, frozen, s.Elapsed())
}

func TestSeriesEndsAtFrozenClock(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"abc"}}, model.WordsMode(3), clock)
	typeAll(s, "abc ")
	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		s.Tick()
	}
	clock.Advance(500 * time.Millisecond)
	typeAll(s, "abc abc")
	require.Equal(t, Finished, s.Status())

	res, ok := s.Result()
	require.True(t, ok)
	require.Len(t, res.Series, 3)
	assert.Equal(t, time.Second, res.Series[0].Elapsed)
	assert.Equal(t, 2*time.Second, res.Series[1].Elapsed)
	assert.Equal(t, 2500*time.Millisecond, res.Series[2].Elapsed)
	assert.Equal(t, s.Elapsed(), res.Series[2].Elapsed)
	assert.InDelta(t, res.WPM, res.Series[2].WPM, 1e-9)
}

func TestZenOnlyEndsExplicitly(t *testing.T) {
	clock := newFakeClock()
	src := &cycleSource{words: []string{"go"}}
	s := newSession(t, src, model.ZenMode(), clock)
	assert.False(t, s.End())

	for i := 0; i < 500; i++ {
		clock.Advance(50 * time.Millisecond)
		r := []rune("go ")[i%3]
		s.Key(r)
		s.Tick()
	}
	assert.Equal(t, Running, s.Status())
	assert.Greater(t, s.View().Caret, 400)
	assert.Greater(t, len(src.requests), 1)

	assert.True(t, s.End())
	assert.Equal(t, Finished, s.Status())
	assert.False(t, s.End())
}

func TestEndIgnoredOutsideZen(t *testing.T) {
	s := newSession(t, &cycleSource{words: []string{"cat"}}, model.TimeMode(30), newFakeClock())
	s.Key('c')
	assert.False(t, s.End())
	assert.Equal(t, Running, s.Status())
}

func TestTimedModeRefillsBeforeRunningOut(t *testing.T) {
	clock := newFakeClock()
	src := &cycleSource{words: []string{"ab"}}
	s := newSession(t, src, model.TimeMode(15), clock, func(o *Options) {
		o.LowWater = 10
		o.RefillWords = 5
	})
	require.Equal(t, []int{23}, src.requests)
	initialLen := len(s.View().Target)

	for i := 0; i < 200; i++ {
		clock.Advance(10 * time.Millisecond)
		s.Key([]rune("ab ")[i%3])
		view := s.View()
		require.GreaterOrEqual(t, len(view.Target)-view.Caret, 10-1)
	}
	assert.Greater(t, len(s.View().Target), initialLen)
	assert.Greater(t, len(src.requests), 1)
	for _, n := range src.requests[1:] {
		assert.Equal(t, 5, n)
	}
}

func TestWordsModeNeverRefills(t *testing.T) {
	src := &cycleSource{words: []string{"ab"}}
	s := newSession(t, src, model.WordsMode(3), newFakeClock())
	typeAll(s, "ab ab a")
	assert.Equal(t, []int{3}, src.requests)
}

func TestExhaustionEndsTimedTestWithRemainingText(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	src, err := generator.NewPassageSource("one two")
	require.NoError(t, err)
	clock := newFakeClock()
	s := newSession(t, src, model.TimeMode(60), clock, func(o *Options) { o.Logger = logger })

	assert.True(t, s.Exhausted())
	assert.True(t, s.View().Exhausted)
	assert.Contains(t, logs.String(), "text source exhausted")

	for _, r := range "one two" {
		clock.Advance(100 * time.Millisecond)
		s.Key(r)
	}
	assert.Equal(t, Finished, s.Status())
	assert.Less(t, s.Elapsed(), 60*time.Second)
}

func TestExhaustionDuringRefill(t *testing.T) {
	src, err := generator.NewPassageSource(strings.Repeat("word ", 54))
	require.NoError(t, err)
	s := newSession(t, src, model.ZenMode(), newFakeClock())
	assert.False(t, s.Exhausted())

	typeAll(s, strings.TrimSpace(strings.Repeat("word ", 54)))
	assert.True(t, s.Exhausted())
	assert.Equal(t, Finished, s.Status())
}

func TestNewFailsOnSourceError(t *testing.T) {
	_, err := New(errSource{err: errors.New("disk on fire")}, Options{Mode: model.TimeMode(15), Lang: "en"})
	assert.Error(t, err)

	_, err = New(errSource{err: generator.ErrExhausted}, Options{Mode: model.TimeMode(15), Lang: "en"})
	assert.Error(t, err)
}

func TestNewRejectsInvalidMode(t *testing.T) {
	_, err := New(&cycleSource{words: []string{"a"}}, Options{Mode: model.WordsMode(0)})
	assert.Error(t, err)
}

func TestAudioEvents(t *testing.T) {
	var rec audio.Recorder
	s := newSession(t, &cycleSource{words: []string{"ab"}}, model.WordsMode(1), newFakeClock(), func(o *Options) {
		o.Notifier = &rec
	})
	s.Key('a')
	s.Backspace()
	s.Key('x')
	s.Backspace()
	s.Key('a')
	s.Key('b')
	s.Key('c')
	assert.Equal(t, []audio.Event{
		audio.KeyAccepted,
		audio.KeyRejected,
		audio.KeyAccepted,
		audio.KeyAccepted,
		audio.TestFinished,
	}, rec.Events())
}

func TestAudioFailureDoesNotAffectState(t *testing.T) {
	failing := audio.NotifierFunc(func(audio.Event) error { return errors.New("no audio device") })
	s := newSession(t, &cycleSource{words: []string{"ab"}}, model.WordsMode(1), newFakeClock(), func(o *Options) {
		o.Notifier = failing
	})
	typeAll(s, "ab")
	assert.Equal(t, Finished, s.Status())
	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 2, res.CharCount)
}

type jumpyClock struct {
	times []time.Time
	i     int
}

func (c *jumpyClock) Now() time.Time {
	t := c.times[min(c.i, len(c.times)-1)]
	c.i++
	return t
}

func TestElapsedNeverDecreases(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &jumpyClock{times: []time.Time{
		base,
		base.Add(3 * time.Second),
		base.Add(1 * time.Second),
		base.Add(-time.Minute),
		base.Add(4 * time.Second),
	}}
	s := newSession(t, &cycleSource{words: []string{"abc"}}, model.ZenMode(), clock)
	s.Key('a')
	var last time.Duration
	for i := 0; i < 4; i++ {
		s.Tick()
		require.GreaterOrEqual(t, s.Elapsed(), last)
		last = s.Elapsed()
	}
	assert.Equal(t, 4*time.Second, last)
}

func TestBackspaceRetypeKeepsCounts(t *testing.T) {
	s := newSession(t, &cycleSource{words: []string{"cat"}}, model.WordsMode(2), newFakeClock())
	typeAll(s, "cx")
	before := s.View()
	s.Backspace()
	s.Key('x')
	after := s.View()
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, before.Errors, after.Errors)
}

func TestCharStatsCountEveryKeystroke(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"ab"}}, model.WordsMode(1), clock)
	s.Key('x')
	s.Backspace()
	clock.Advance(100 * time.Millisecond)
	s.Key('a')
	clock.Advance(300 * time.Millisecond)
	s.Key('b')

	res, ok := s.Result()
	require.True(t, ok)
	require.Len(t, res.Chars, 2)
	assert.Equal(t, model.CharStats{Char: "a", Correct: 1, Incorrect: 1}, res.Chars[0])
	assert.Equal(t, model.CharStats{Char: "b", Correct: 1, LatencySumMs: 300, LatencyCount: 1}, res.Chars[1])
}

func TestResultIsACopy(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"ab"}}, model.WordsMode(1), clock)
	s.Key('a')
	clock.Advance(time.Second)
	s.Key('b')
	res, ok := s.Result()
	require.True(t, ok)
	require.NotEmpty(t, res.Series)
	res.Series[0].WPM = -1
	again, _ := s.Result()
	assert.NotEqual(t, -1.0, again.Series[0].WPM)
}

func TestViewIsDetached(t *testing.T) {
	s := newSession(t, &cycleSource{words: []string{"ab"}}, model.WordsMode(2), newFakeClock())
	s.Key('a')
	view := s.View()
	view.Target[0] = 'z'
	view.Entries[0].Typed = 'z'
	again := s.View()
	assert.Equal(t, 'a', again.Target[0])
	assert.Equal(t, 'a', again.Entries[0].Typed)
}

func TestViewTimeLeft(t *testing.T) {
	clock := newFakeClock()
	s := newSession(t, &cycleSource{words: []string{"ab"}}, model.TimeMode(30), clock)
	assert.Equal(t, 30*time.Second, s.View().TimeLeft)
	s.Key('a')
	clock.Advance(12 * time.Second)
	s.Tick()
	assert.Equal(t, 18*time.Second, s.View().TimeLeft)
}
