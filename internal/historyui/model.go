// Package historyui provides the Bubble Tea browser for stored results.
package historyui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/verte-zerg/typist/internal/model"
	"github.com/verte-zerg/typist/internal/stats"
	"github.com/verte-zerg/typist/internal/store"
)

// Tabs.
const (
	TabHistory = iota
	TabLeaderboard
	TabProfile
)

const (
	timeLayout         = "2006-01-02 15:04"
	defaultCurveWindow = 10
	fallbackWidth      = 80
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

type keyMap struct {
	Quit       key.Binding
	NextTab    key.Binding
	PrevTab    key.Binding
	NextPage   key.Binding
	PrevPage   key.Binding
	Refresh    key.Binding
	Delete     key.Binding
	Confirm    key.Binding
	Time       key.Binding
	Words      key.Binding
	Zen        key.Binding
	PrevPreset key.Binding
	NextPreset key.Binding
	Wider      key.Binding
	Narrower   key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c")),
	NextTab:    key.NewBinding(key.WithKeys("tab")),
	PrevTab:    key.NewBinding(key.WithKeys("shift+tab")),
	NextPage:   key.NewBinding(key.WithKeys("n", "right", "l")),
	PrevPage:   key.NewBinding(key.WithKeys("p", "left", "h")),
	Refresh:    key.NewBinding(key.WithKeys("R")),
	Delete:     key.NewBinding(key.WithKeys("x", "delete")),
	Confirm:    key.NewBinding(key.WithKeys("y")),
	Time:       key.NewBinding(key.WithKeys("1")),
	Words:      key.NewBinding(key.WithKeys("2")),
	Zen:        key.NewBinding(key.WithKeys("3")),
	PrevPreset: key.NewBinding(key.WithKeys("left", "h")),
	NextPreset: key.NewBinding(key.WithKeys("right", "l")),
	Wider:      key.NewBinding(key.WithKeys("=", "+")),
	Narrower:   key.NewBinding(key.WithKeys("-")),
}

// Store is the part of the result store the browser reads and edits.
type Store interface {
	ListHistory(ctx context.Context, q model.HistoryQuery) (model.HistoryPage, error)
	Leaderboard(ctx context.Context, mode model.Mode, limit int) ([]model.Result, error)
	ListResults(ctx context.Context, cfg model.StatsConfig) ([]model.Result, error)
	Delete(ctx context.Context, id int64) error
}

// Config selects what the browser shows first.
type Config struct {
	Tab      int
	PageSize int
	Mode     model.Mode
	Limit    int
	Stats    model.StatsConfig
}

// Model implements the Bubble Tea result browser.
type Model struct {
	store Store
	cfg   Config

	tabs      []string
	activeTab int

	width  int
	height int

	page    model.HistoryPage
	history table.Model

	board      []model.Result
	boardTable table.Model

	profile   viewport.Model
	statusMsg string
	errMsg    string

	confirmDelete int64
}

// NewModel constructs a result browser and loads its first pages.
func NewModel(st Store, cfg Config) *Model {
	if cfg.PageSize <= 0 {
		cfg.PageSize = store.DefaultPageSize
	}
	if cfg.Limit <= 0 {
		cfg.Limit = store.DefaultLeaderboardLimit
	}
	if cfg.Stats.CurveWindow <= 0 {
		cfg.Stats.CurveWindow = defaultCurveWindow
	}
	if cfg.Mode.Validate() != nil {
		cfg.Mode = model.TimeMode(30)
	}
	m := &Model{
		store:      st,
		cfg:        cfg,
		tabs:       []string{"History", "Leaderboard", "Profile"},
		activeTab:  min(max(cfg.Tab, 0), TabProfile),
		history:    newTable(historyColumns()),
		boardTable: newTable(leaderboardColumns()),
		profile:    viewport.New(0, 0),
	}
	m.loadHistory(0, 0)
	m.loadLeaderboard()
	m.loadProfile()
	m.focusActive()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.confirmDelete != 0 {
			m.updateConfirm(msg)
			return m, nil
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.NextTab):
			m.moveTab(1)
			return m, tea.ClearScreen
		case key.Matches(msg, keys.PrevTab):
			m.moveTab(-1)
			return m, tea.ClearScreen
		}
		switch m.activeTab {
		case TabHistory:
			return m, m.updateHistory(msg)
		case TabLeaderboard:
			return m, m.updateLeaderboard(msg)
		default:
			return m, m.updateProfile(msg)
		}
	}
	return m, nil
}

func (m *Model) updateHistory(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.NextPage):
		if (m.page.Page+1)*m.cfg.PageSize < m.page.Total {
			m.loadHistory(m.page.Page+1, m.page.AsOf)
		}
		return nil
	case key.Matches(msg, keys.PrevPage):
		if m.page.Page > 0 {
			m.loadHistory(m.page.Page-1, m.page.AsOf)
		}
		return nil
	case key.Matches(msg, keys.Refresh):
		// A new snapshot picks up results saved since the browser opened.
		m.loadHistory(0, 0)
		m.loadLeaderboard()
		m.loadProfile()
		return nil
	case key.Matches(msg, keys.Delete):
		if rec, ok := m.selectedHistory(); ok {
			m.confirmDelete = rec.ID
		}
		return nil
	}
	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return cmd
}

func (m *Model) updateLeaderboard(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Time):
		m.setBoardKind(model.ModeTime)
		return nil
	case key.Matches(msg, keys.Words):
		m.setBoardKind(model.ModeWords)
		return nil
	case key.Matches(msg, keys.Zen):
		m.setBoardKind(model.ModeZen)
		return nil
	case key.Matches(msg, keys.PrevPreset):
		m.shiftBoardPreset(-1)
		return nil
	case key.Matches(msg, keys.NextPreset):
		m.shiftBoardPreset(1)
		return nil
	}
	var cmd tea.Cmd
	m.boardTable, cmd = m.boardTable.Update(msg)
	return cmd
}

func (m *Model) updateProfile(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Wider):
		m.cfg.Stats.CurveWindow = nextCurveWindow(m.cfg.Stats.CurveWindow)
		m.loadProfile()
		return nil
	case key.Matches(msg, keys.Narrower):
		m.cfg.Stats.CurveWindow = prevCurveWindow(m.cfg.Stats.CurveWindow)
		m.loadProfile()
		return nil
	}
	var cmd tea.Cmd
	m.profile, cmd = m.profile.Update(msg)
	return cmd
}

func (m *Model) updateConfirm(msg tea.KeyMsg) {
	id := m.confirmDelete
	m.confirmDelete = 0
	if !key.Matches(msg, keys.Confirm) {
		m.statusMsg = "delete cancelled"
		return
	}
	err := m.store.Delete(context.Background(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.errMsg = fmt.Sprintf("result #%d no longer exists", id)
	case err != nil:
		m.errMsg = fmt.Sprintf("failed to delete #%d: %v", id, err)
	default:
		m.statusMsg = fmt.Sprintf("deleted #%d", id)
		m.errMsg = ""
	}
	m.loadHistory(m.page.Page, m.page.AsOf)
	if len(m.page.Records) == 0 && m.page.Page > 0 {
		m.loadHistory(m.page.Page-1, m.page.AsOf)
	}
	m.loadLeaderboard()
	m.loadProfile()
}

func (m *Model) selectedHistory() (model.Result, bool) {
	idx := m.history.Cursor()
	if idx < 0 || idx >= len(m.page.Records) {
		return model.Result{}, false
	}
	return m.page.Records[idx], true
}

func (m *Model) setBoardKind(kind model.ModeKind) {
	mode := model.Mode{Kind: kind}
	if presets := kind.Presets(); len(presets) > 0 {
		mode.Value = presets[0]
		if kind == m.cfg.Mode.Kind {
			mode.Value = m.cfg.Mode.Value
		}
	}
	m.cfg.Mode = mode
	m.loadLeaderboard()
}

func (m *Model) shiftBoardPreset(delta int) {
	presets := m.cfg.Mode.Kind.Presets()
	if len(presets) == 0 {
		return
	}
	idx := 0
	for i, v := range presets {
		if v <= m.cfg.Mode.Value {
			idx = i
		}
	}
	if presets[idx] != m.cfg.Mode.Value && delta > 0 {
		// A custom value sits between presets; moving right lands on the next one.
		delta = 0
		for i, v := range presets {
			if v > m.cfg.Mode.Value {
				idx = i
				break
			}
		}
	}
	idx = min(max(idx+delta, 0), len(presets)-1)
	m.cfg.Mode.Value = presets[idx]
	m.loadLeaderboard()
}

func (m *Model) loadHistory(page int, asOf int64) {
	result, err := m.store.ListHistory(context.Background(), model.HistoryQuery{
		Page:     page,
		PageSize: m.cfg.PageSize,
		AsOf:     asOf,
	})
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load history: %v", err)
		return
	}
	m.page = result
	m.history.SetRows(historyRows(result.Records))
	m.history.SetCursor(0)
}

func (m *Model) loadLeaderboard() {
	board, err := m.store.Leaderboard(context.Background(), m.cfg.Mode, m.cfg.Limit)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load leaderboard: %v", err)
		return
	}
	m.board = board
	m.boardTable.SetRows(leaderboardRows(board))
	m.boardTable.SetCursor(0)
}

func (m *Model) loadProfile() {
	p, err := stats.BuildProfile(context.Background(), m.store, m.cfg.Stats)
	if err != nil {
		m.profile.SetContent("Failed to load stats.")
		m.errMsg = fmt.Sprintf("failed to load profile: %v", err)
		return
	}
	width := m.width
	if width <= 0 {
		width = fallbackWidth
	}
	var buf bytes.Buffer
	if err := stats.RenderSummary(&buf, p); err != nil {
		m.errMsg = err.Error()
		return
	}
	if len(p.Results) > 0 {
		buf.WriteString("\n")
		curveWidth := max(width-12, 10)
		if err := stats.RenderLearningCurve(&buf, p.Results, m.cfg.Stats.CurveWindow, curveWidth); err != nil {
			m.errMsg = err.Error()
			return
		}
		buf.WriteString("\n")
		if err := stats.RenderHeatmap(&buf, p.Activity, time.Now(), stats.HeatmapWeeks(width)); err != nil {
			m.errMsg = err.Error()
			return
		}
	}
	m.profile.SetContent(buf.String())
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.focusActive()
}

func (m *Model) focusActive() {
	m.history.Blur()
	m.boardTable.Blur()
	switch m.activeTab {
	case TabHistory:
		m.history.Focus()
	case TabLeaderboard:
		m.boardTable.Focus()
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(lipgloss.Height(activeNavStyle.Render("X")), 1)
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" || m.statusMsg != "" || m.confirmDelete != 0 {
		footerHeight++
	}
	bodyHeight = max(m.height-headerHeight-footerHeight, 1)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.history.SetWidth(m.width)
	m.history.SetHeight(max(bodyHeight-1, 1))
	m.boardTable.SetWidth(m.width)
	m.boardTable.SetHeight(max(bodyHeight-1, 1))
	m.profile.Width = m.width
	m.profile.Height = bodyHeight
	m.loadProfile()
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	return m.renderTabs() + "\n" + headerStyle.Render(truncateLine(m.renderSummary(), m.width))
}

func (m *Model) renderSummary() string {
	switch m.activeTab {
	case TabHistory:
		pages := max((m.page.Total+m.cfg.PageSize-1)/m.cfg.PageSize, 1)
		return fmt.Sprintf("Page %d/%d  ·  %d results", m.page.Page+1, pages, m.page.Total)
	case TabLeaderboard:
		return fmt.Sprintf("Mode %s  ·  top %d", m.cfg.Mode, m.cfg.Limit)
	default:
		lang := m.cfg.Stats.Lang
		if lang == "" {
			lang = "any"
		}
		return fmt.Sprintf("lang=%s  window=%d", lang, m.cfg.Stats.CurveWindow)
	}
}

func (m *Model) renderBody() string {
	switch m.activeTab {
	case TabHistory:
		if len(m.page.Records) == 0 {
			return "No results found."
		}
		return tableMutedStyle.Render(m.history.View())
	case TabLeaderboard:
		if len(m.board) == 0 {
			return fmt.Sprintf("No %s results yet.", m.cfg.Mode)
		}
		return tableMutedStyle.Render(m.boardTable.View())
	default:
		return m.profile.View()
	}
}

func (m *Model) renderHelp() string {
	var help string
	switch m.activeTab {
	case TabHistory:
		help = "Tabs: tab  Move: up/down  Page: n/p  Refresh: R  Delete: x  Quit: q"
	case TabLeaderboard:
		help = "Tabs: tab  Mode: 1/2/3  Preset: left/right  Move: up/down  Quit: q"
	default:
		help = "Tabs: tab  Scroll: up/down/pgup/pgdn  Window: -/=  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	lines := []string{m.renderHelp()}
	switch {
	case m.confirmDelete != 0:
		lines = append(lines, promptStyle.Render(fmt.Sprintf("Delete result #%d? y/n", m.confirmDelete)))
	case m.errMsg != "":
		lines = append(lines, errorStyle.Render(m.errMsg))
	case m.statusMsg != "":
		lines = append(lines, headerStyle.Render(m.statusMsg))
	}
	return strings.Join(lines, "\n")
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func historyColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Finished", Width: 16},
		{Title: "Mode", Width: 10},
		{Title: "Lang", Width: 5},
		{Title: "WPM", Width: 7},
		{Title: "Raw", Width: 7},
		{Title: "Acc", Width: 7},
		{Title: "Cons", Width: 6},
		{Title: "Chars", Width: 6},
		{Title: "Err", Width: 5},
	}
}

func historyRows(results []model.Result) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", r.ID),
			r.FinishedAt.Local().Format(timeLayout),
			r.Mode.String(),
			r.Lang,
			fmt.Sprintf("%.1f", r.WPM),
			fmt.Sprintf("%.1f", r.RawWPM),
			fmt.Sprintf("%.1f%%", r.Accuracy),
			fmt.Sprintf("%.0f%%", r.Consistency),
			fmt.Sprintf("%d", r.CharCount),
			fmt.Sprintf("%d", r.ErrorCount),
		})
	}
	return rows
}

func leaderboardColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "WPM", Width: 7},
		{Title: "Acc", Width: 7},
		{Title: "Raw", Width: 7},
		{Title: "Cons", Width: 6},
		{Title: "Finished", Width: 16},
		{Title: "ID", Width: 6},
	}
}

func leaderboardRows(results []model.Result) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for i, r := range results {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.1f", r.WPM),
			fmt.Sprintf("%.1f%%", r.Accuracy),
			fmt.Sprintf("%.1f", r.RawWPM),
			fmt.Sprintf("%.0f%%", r.Consistency),
			r.FinishedAt.Local().Format(timeLayout),
			fmt.Sprintf("%d", r.ID),
		})
	}
	return rows
}

func nextCurveWindow(n int) int {
	switch {
	case n < 5:
		return 5
	case n < 10:
		return 10
	case n < 20:
		return 20
	default:
		return 50
	}
}

func prevCurveWindow(n int) int {
	switch {
	case n > 20:
		return 20
	case n > 10:
		return 10
	case n > 5:
		return 5
	default:
		return 1
	}
}

func fitLines(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, line := range lines {
		lines[i] = padLine(truncateLine(line, width), width)
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}

func truncateLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "")
}
