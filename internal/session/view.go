package session

import (
	"time"

	"github.com/verte-zerg/typist/internal/diff"
	"github.com/verte-zerg/typist/internal/model"
	"github.com/verte-zerg/typist/internal/stats"
)

// View is a read-only snapshot of a session for renderers. It shares no
// memory with the session.
type View struct {
	ID         string
	Mode       model.Mode
	Status     Status
	Target     []rune
	Entries    []diff.Entry
	Caret      int
	Elapsed    time.Duration
	TimeLeft   time.Duration
	WordsDone int
	// WordsTotal counts the words currently generated into Target.
	WordsTotal int
	Errors     int
	Exhausted  bool

	// Live is computed from the current typed state at Elapsed.
	Live model.Sample
	// Latest is the last recorded sample, valid when HasLatest is set.
	Latest    model.Sample
	HasLatest bool
	Series    []model.Sample
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	v := View{
		ID:         s.id,
		Mode:       s.mode,
		Status:     s.status,
		Target:     s.tracker.Target(),
		Entries:    s.tracker.Entries(),
		Caret:      s.tracker.Caret(),
		Elapsed:    s.elapsed,
		WordsDone:  s.tracker.CompletedWords(),
		WordsTotal: s.tracker.WordCount(),
		Errors:     s.tracker.Errors(),
		Exhausted:  s.exhausted,
		Series:     s.sampler.Series(),
	}
	if s.mode.Kind == model.ModeTime {
		v.TimeLeft = max(s.mode.Duration()-s.elapsed, 0)
	}
	v.Live = stats.Compute(s.tracker.Correct(), s.tracker.Caret(), s.elapsed)
	v.Latest, v.HasLatest = s.sampler.Last()
	return v
}
