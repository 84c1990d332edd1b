// Package tui provides the Bubble Tea typing interface.
//
// The Bubble Tea program is the session's event loop: key messages and clock
// ticks are delivered one at a time through Update, in arrival order, so the
// session needs no locking.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typist/internal/audio"
	"github.com/verte-zerg/typist/internal/generator"
	"github.com/verte-zerg/typist/internal/logging"
	"github.com/verte-zerg/typist/internal/model"
	"github.com/verte-zerg/typist/internal/session"
	statsPkg "github.com/verte-zerg/typist/internal/stats"
	"github.com/verte-zerg/typist/internal/store"
)

const (
	tickInterval  = 100 * time.Millisecond
	visibleLines  = 3
	contentRatio  = 0.70
	sparkMaxWidth = 60
)

// ResultReader loads the stats shown around a test.
type ResultReader interface {
	ModeStats(ctx context.Context, mode model.Mode) (store.Stats, error)
	GetWeakChars(ctx context.Context, window int, lang string) ([]model.CharAggregate, error)
}

// ResultWriter saves finished results in the background.
type ResultWriter interface {
	Submit(ctx context.Context, res model.Result) <-chan store.SaveOutcome
}

// SourceFunc builds the text source for a new test. weakSet is empty unless
// weak-character focus is enabled and stats exist.
type SourceFunc func(weakSet map[rune]struct{}) (generator.Source, error)

// Options wire the model to its collaborators.
type Options struct {
	Config    model.Config
	Reader    ResultReader
	Writer    ResultWriter
	NewSource SourceFunc
	Notifier  audio.Notifier
	Clock     session.Clock
	Logger    *slog.Logger
}

type saveState int

const (
	saving saveState = iota
	saved
	saveFailed
)

type record struct {
	result model.Result
	state  saveState
	id     int64
	err    error
}

type tickMsg struct{}

type saveDoneMsg store.SaveOutcome

// Model implements the Bubble Tea typing UI.
type Model struct {
	config    model.Config
	reader    ResultReader
	writer    ResultWriter
	newSource SourceFunc
	notifier  audio.Notifier
	clock     session.Clock
	logger    *slog.Logger

	width  int
	height int

	mode      model.Mode
	presetIdx int
	sess      *session.Session
	err       error

	weakSet           map[rune]struct{}
	weakNoticePrinted bool

	// current is the record of the finished session on screen.
	current *record
	// pending holds every result not yet known to be saved, in finish order.
	pending []*record

	lastWPM   float64
	lastAcc   float64
	hasLast   bool
	modeStats store.Stats
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = currentWordStyle.Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// NewModel constructs a typing TUI model and its first session.
func NewModel(opts Options) *Model {
	m := &Model{
		config:    opts.Config,
		reader:    opts.Reader,
		writer:    opts.Writer,
		newSource: opts.NewSource,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		logger:    opts.Logger,
		mode:      opts.Config.Mode,
		weakSet:   map[rune]struct{}{},
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	m.presetIdx = presetIndex(m.mode)
	if m.config.FocusWeak {
		m.refreshWeakSet()
	}
	m.loadModeStats()
	m.restart()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Err returns the error that stopped the model from building a session.
func (m *Model) Err() error { return m.err }

// Unsaved returns results whose save failed or had not been confirmed when
// the program stopped.
func (m *Model) Unsaved() []model.Result {
	out := make([]model.Result, 0, len(m.pending))
	for _, rec := range m.pending {
		out = append(out, rec.result)
	}
	return out
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.sess != nil && m.sess.Tick() {
			return m, tea.Batch(m.onFinished(), tick())
		}
		return m, tick()
	case saveDoneMsg:
		m.onSaved(store.SaveOutcome(msg))
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEsc:
		m.restart()
		return nil
	}
	if m.sess == nil {
		return nil
	}

	switch m.sess.Status() {
	case session.Finished:
		return m.handleResultsKey(msg)
	case session.Pending:
		if m.handleModeKey(msg) {
			return nil
		}
	}

	before := m.sess.Status()
	switch msg.Type {
	case tea.KeyEnter:
		m.sess.End()
	case tea.KeyBackspace, tea.KeyDelete:
		m.sess.Backspace()
	case tea.KeySpace:
		m.sess.Key(' ')
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.sess.Key(r)
			if m.sess.Status() == session.Finished {
				break
			}
		}
	}
	if before != session.Finished && m.sess.Status() == session.Finished {
		return m.onFinished()
	}
	return nil
}

func (m *Model) handleResultsKey(msg tea.KeyMsg) tea.Cmd {
	if m.handleModeKey(msg) {
		return nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		m.restart()
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "r":
			return m.retrySave()
		case "1":
			m.selectKind(model.ModeTime)
		case "2":
			m.selectKind(model.ModeWords)
		case "3":
			m.selectKind(model.ModeZen)
		}
	}
	return nil
}

// handleModeKey applies mode selection keys that never collide with typing.
func (m *Model) handleModeKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyTab:
		m.selectKind((m.mode.Kind + 1) % 3)
	case tea.KeyLeft:
		m.shiftPreset(-1)
	case tea.KeyRight:
		m.shiftPreset(1)
	default:
		return false
	}
	return true
}

func presetIndex(mode model.Mode) int {
	for i, v := range mode.Kind.Presets() {
		if v == mode.Value {
			return i
		}
	}
	return -1
}

func (m *Model) selectKind(kind model.ModeKind) {
	presets := kind.Presets()
	switch {
	case kind == m.config.Mode.Kind:
		m.mode = m.config.Mode
		m.presetIdx = presetIndex(m.mode)
	case len(presets) == 0:
		m.mode = model.Mode{Kind: kind}
		m.presetIdx = -1
	default:
		m.presetIdx = min(max(m.presetIdx, 0), len(presets)-1)
		m.mode = model.Mode{Kind: kind, Value: presets[m.presetIdx]}
	}
	m.loadModeStats()
	m.restart()
}

func (m *Model) shiftPreset(delta int) {
	presets := m.mode.Kind.Presets()
	if len(presets) == 0 {
		return
	}
	idx := m.presetIdx + delta
	if m.presetIdx < 0 {
		idx = 0
	}
	idx = min(max(idx, 0), len(presets)-1)
	if idx == m.presetIdx {
		return
	}
	m.presetIdx = idx
	m.mode = model.Mode{Kind: m.mode.Kind, Value: presets[idx]}
	m.loadModeStats()
	m.restart()
}

// restart replaces the session with a fresh pending one in the current mode.
func (m *Model) restart() {
	m.current = nil
	src, err := m.newSource(m.weakSet)
	if err == nil {
		m.sess, err = session.New(src, session.Options{
			Mode:           m.mode,
			Lang:           m.config.Lang,
			SampleInterval: m.config.SampleInterval,
			Clock:          m.clock,
			Notifier:       m.notifier,
			Logger:         m.logger,
		})
	}
	if err != nil {
		m.sess = nil
		m.err = fmt.Errorf("failed to start test: %w", err)
		m.logger.Error("failed to start test", "mode", m.mode.String(), "err", err)
		return
	}
	m.err = nil
}

func (m *Model) onFinished() tea.Cmd {
	res, ok := m.sess.Result()
	if !ok {
		return nil
	}
	m.lastWPM = res.WPM
	m.lastAcc = res.Accuracy
	m.hasLast = true
	rec := &record{result: res, state: saving}
	m.current = rec
	m.pending = append(m.pending, rec)
	return m.save(rec)
}

func (m *Model) save(rec *record) tea.Cmd {
	rec.state = saving
	rec.err = nil
	done := m.writer.Submit(context.Background(), rec.result)
	return func() tea.Msg {
		return saveDoneMsg(<-done)
	}
}

func (m *Model) retrySave() tea.Cmd {
	if m.current == nil || m.current.state != saveFailed {
		return nil
	}
	m.logger.Info("retrying result save", "session", m.current.result.SessionID)
	return m.save(m.current)
}

func (m *Model) onSaved(outcome store.SaveOutcome) {
	idx := -1
	for i, rec := range m.pending {
		if rec.result.SessionID == outcome.Result.SessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	rec := m.pending[idx]
	if outcome.Err != nil {
		rec.state = saveFailed
		rec.err = outcome.Err
		return
	}
	rec.state = saved
	rec.id = outcome.ID
	m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
	if rec.result.Mode == m.mode {
		m.loadModeStats()
	}
	if m.config.FocusWeak {
		m.refreshWeakSet()
	}
}

func (m *Model) loadModeStats() {
	if m.reader == nil {
		return
	}
	st, err := m.reader.ModeStats(context.Background(), m.mode)
	if err != nil {
		m.logger.Warn("failed to load mode stats", "mode", m.mode.String(), "err", err)
		return
	}
	m.modeStats = st
}

func (m *Model) refreshWeakSet() {
	if m.reader == nil {
		return
	}
	aggs, err := m.reader.GetWeakChars(context.Background(), m.config.WeakWindow, m.config.Lang)
	if err != nil {
		m.logger.Warn("failed to load weak chars", "err", err)
		return
	}
	if len(aggs) == 0 {
		if !m.weakNoticePrinted {
			m.logger.Info("no stats available for weak-char focus yet; using normal generator")
			m.weakNoticePrinted = true
		}
		m.weakSet = map[rune]struct{}{}
		return
	}
	m.weakSet = statsPkg.SelectWeakChars(aggs, m.config.WeakTop)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.err != nil || m.sess == nil {
		msg := "no test"
		if m.err != nil {
			msg = m.err.Error()
		}
		return errorStyle.Render(msg) + "\n" + footerStyle.Render("Esc retry · Ctrl+C quit")
	}
	view := m.sess.View()
	var content string
	if view.Status == session.Finished {
		content = m.renderResults(view)
	} else {
		content = m.renderTyping(view)
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := ""
	if view.Status != session.Finished {
		footer = m.renderFooter(view)
	}
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	return max(int(float64(m.width)*contentRatio), 1)
}

func (m *Model) renderTyping(view session.View) string {
	cursorIndex := -1
	if view.Caret < len(view.Target) {
		cursorIndex = view.Caret
	}
	styled := buildStyledRunes(view.Target, view.Entries, cursorIndex)
	width := m.contentWidth()
	text := visibleWindow(styled, cursorIndex, width, visibleLines)
	header := m.renderModeBar()
	if width > 0 {
		text = lipgloss.NewStyle().Width(width).Render(text)
	}
	return header + "\n\n" + text
}

func (m *Model) renderModeBar() string {
	kinds := []model.ModeKind{model.ModeTime, model.ModeWords, model.ModeZen}
	parts := make([]string, 0, len(kinds)+4)
	for _, k := range kinds {
		style := footerStyle
		if k == m.mode.Kind {
			style = selectedStyle
		}
		parts = append(parts, style.Render(k.String()))
	}
	for i, v := range m.mode.Kind.Presets() {
		style := footerStyle
		if i == m.presetIdx {
			style = selectedStyle
		}
		parts = append(parts, style.Render(fmt.Sprint(v)))
	}
	if m.presetIdx < 0 && m.mode.Kind != model.ModeZen {
		parts = append(parts, selectedStyle.Render(fmt.Sprint(m.mode.Value)))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderFooter(view session.View) string {
	segments := []string{progressSegment(view)}
	if view.Status == session.Running {
		segments = append(segments, fmt.Sprintf("%.1f WPM · %.1f%%", view.Live.WPM, view.Live.Accuracy))
	}
	if view.Exhausted {
		segments = append(segments, "text exhausted")
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f WPM · %.1f%%", m.lastWPM, m.lastAcc))
	}
	if m.modeStats.Tests > 0 {
		segments = append(segments, fmt.Sprintf("Best %.1f · Avg %.1f WPM (%d tests)",
			m.modeStats.BestWPM, m.modeStats.AvgWPM, m.modeStats.Tests))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func progressSegment(view session.View) string {
	switch view.Mode.Kind {
	case model.ModeTime:
		return fmt.Sprintf("%ds left", int((view.TimeLeft + time.Second - 1) / time.Second))
	case model.ModeWords:
		goal := view.Mode.Value
		if view.Exhausted {
			goal = min(goal, view.WordsTotal)
		}
		return fmt.Sprintf("%d/%d words", view.WordsDone, goal)
	case model.ModeZen:
		if view.Status == session.Running {
			return fmt.Sprintf("zen · %d words · Enter to finish", view.WordsDone)
		}
		return "zen"
	}
	return ""
}

func (m *Model) renderResults(view session.View) string {
	res, ok := m.sess.Result()
	if !ok {
		return ""
	}
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s · %s", res.Mode, res.Lang)),
		fmt.Sprintf("WPM %.1f   raw %.1f   acc %.1f%%   consistency %.0f%%",
			res.WPM, res.RawWPM, res.Accuracy, res.Consistency),
		fmt.Sprintf("chars %d   errors %d   time %.1fs", res.CharCount, res.ErrorCount, res.Duration.Seconds()),
	}
	width := sparkMaxWidth
	if cw := m.contentWidth(); cw > 0 {
		width = min(width, cw)
	}
	if spark := statsPkg.SparklineFit(statsPkg.WPMValues(view.Series), width); spark != "" {
		lines = append(lines, "", selectedStyle.Render(spark))
	}
	lines = append(lines, "", m.renderSaveStatus())
	lines = append(lines, footerStyle.Render("Esc/Enter restart · 1/2/3 mode · ←/→ preset · Ctrl+C quit"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderSaveStatus() string {
	if m.current == nil {
		return ""
	}
	switch m.current.state {
	case saving:
		return footerStyle.Render("saving…")
	case saved:
		return footerStyle.Render(fmt.Sprintf("saved #%d", m.current.id))
	case saveFailed:
		return errorStyle.Render(fmt.Sprintf("save failed: %v (r to retry)", m.current.err))
	}
	return ""
}
