// Package model defines shared data structures.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ModeKind selects the completion rule of a test.
type ModeKind int

// Mode kinds.
const (
	ModeTime ModeKind = iota
	ModeWords
	ModeZen
)

// String returns the stable name used in config files and the database.
func (k ModeKind) String() string {
	switch k {
	case ModeTime:
		return "time"
	case ModeWords:
		return "words"
	case ModeZen:
		return "zen"
	default:
		return fmt.Sprintf("mode(%d)", int(k))
	}
}

// ParseModeKind parses a mode name.
func ParseModeKind(s string) (ModeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time":
		return ModeTime, nil
	case "words":
		return ModeWords, nil
	case "zen":
		return ModeZen, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want time, words or zen)", s)
	}
}

// Mode is a test mode. Value is the duration in seconds for ModeTime and
// the word count for ModeWords; it is always zero for ModeZen.
type Mode struct {
	Kind  ModeKind
	Value int
}

// TimeMode returns a timed test of the given length.
func TimeMode(seconds int) Mode {
	return Mode{Kind: ModeTime, Value: seconds}
}

// WordsMode returns a test of a fixed number of words.
func WordsMode(count int) Mode {
	return Mode{Kind: ModeWords, Value: count}
}

// ZenMode returns an open-ended test.
func ZenMode() Mode {
	return Mode{Kind: ModeZen}
}

// ParseMode builds a mode from its kind name and value.
func ParseMode(kind string, value int) (Mode, error) {
	k, err := ParseModeKind(kind)
	if err != nil {
		return Mode{}, err
	}
	m := Mode{Kind: k, Value: value}
	if k == ModeZen {
		m.Value = 0
	}
	if err := m.Validate(); err != nil {
		return Mode{}, err
	}
	return m, nil
}

// Validate reports whether the mode carries the data its kind needs.
func (m Mode) Validate() error {
	switch m.Kind {
	case ModeTime:
		if m.Value <= 0 {
			return fmt.Errorf("time mode needs a positive duration, got %d", m.Value)
		}
	case ModeWords:
		if m.Value <= 0 {
			return fmt.Errorf("words mode needs a positive word count, got %d", m.Value)
		}
	case ModeZen:
		if m.Value != 0 {
			return fmt.Errorf("zen mode takes no value, got %d", m.Value)
		}
	default:
		return fmt.Errorf("unknown mode kind %d", int(m.Kind))
	}
	return nil
}

// Duration returns the time limit of a timed test, zero otherwise.
func (m Mode) Duration() time.Duration {
	if m.Kind != ModeTime {
		return 0
	}
	return time.Duration(m.Value) * time.Second
}

// String formats the mode as "time:30", "words:25" or "zen".
func (m Mode) String() string {
	if m.Kind == ModeZen {
		return m.Kind.String()
	}
	return m.Kind.String() + ":" + strconv.Itoa(m.Value)
}

// ParseModeString parses the form produced by Mode.String.
func ParseModeString(s string) (Mode, error) {
	kind, value, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return ParseMode(kind, 0)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return Mode{}, fmt.Errorf("invalid mode value %q: %w", value, err)
	}
	return ParseMode(kind, n)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseModeString(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Presets returns the values offered for quick selection.
func (k ModeKind) Presets() []int {
	switch k {
	case ModeTime:
		return []int{15, 30, 60, 100}
	case ModeWords:
		return []int{10, 25, 50, 100}
	default:
		return nil
	}
}

// Config defines practice settings.
type Config struct {
	Mode           Mode
	Lang           string
	SampleInterval time.Duration
	CapsPct        float64
	PunctPct       float64
	PunctSet       string
	FocusWeak      bool
	WeakTop        int
	WeakFactor     float64
	WeakWindow     int
	Audio          bool
	TextFile       string
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Lang        string
	Mode        *Mode
	Since       *time.Time
	Last        int
	CurveWindow int
}

// Sample is one point of the metrics series of a session.
type Sample struct {
	Elapsed  time.Duration `json:"elapsed"`
	WPM      float64       `json:"wpm"`
	RawWPM   float64       `json:"raw_wpm"`
	Accuracy float64       `json:"accuracy"`
}

// ElapsedSeconds returns the sample time in seconds.
func (s Sample) ElapsedSeconds() float64 {
	return s.Elapsed.Seconds()
}

// CharStats stores per-character keystroke stats for a session.
type CharStats struct {
	Char         string `json:"char"`
	Correct      int    `json:"correct"`
	Incorrect    int    `json:"incorrect"`
	LatencySumMs int64  `json:"latency_sum_ms"`
	LatencyCount int64  `json:"latency_count"`
}

// Result is the immutable summary of one finished session.
type Result struct {
	ID          int64         `json:"id,omitempty"`
	SessionID   string        `json:"session_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Mode        Mode          `json:"mode"`
	Lang        string        `json:"lang"`
	WPM         float64       `json:"wpm"`
	RawWPM      float64       `json:"raw_wpm"`
	Accuracy    float64       `json:"accuracy"`
	Consistency float64       `json:"consistency"`
	CharCount   int           `json:"char_count"`
	ErrorCount  int           `json:"error_count"`
	Duration    time.Duration `json:"duration"`
	Series      []Sample      `json:"series"`
	Chars       []CharStats   `json:"chars,omitempty"`
}

// CharAggregate aggregates character stats across sessions.
type CharAggregate struct {
	Char         string
	Correct      int
	Incorrect    int
	LatencySumMs int64
	LatencyCount int64
}

// HistoryQuery selects one page of the history, newest first. AsOf pins
// the page set to records with an id at or below it; zero means "latest".
type HistoryQuery struct {
	Page     int
	PageSize int
	AsOf     int64
}

// HistoryPage is one page of results together with the snapshot it was
// read from. Pass AsOf back to fetch further pages of the same snapshot.
type HistoryPage struct {
	Records []Result
	Page    int
	AsOf    int64
	Total   int
}
