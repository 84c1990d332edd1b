package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typist/internal/config"
	"github.com/verte-zerg/typist/internal/historyui"
	"github.com/verte-zerg/typist/internal/model"
	"github.com/verte-zerg/typist/internal/stats"
	"github.com/verte-zerg/typist/internal/store"
	"github.com/verte-zerg/typist/internal/wordlist"
)

const defaultCurveWindow = 10

var (
	historyPage     int
	historyPageSize int
	historyPlain    bool

	boardMode  string
	boardValue int
	boardLimit int
	boardPlain bool

	statsLang        string
	statsMode        string
	statsValue       int
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	wordlistLang  string
	wordlistForce bool
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List available word list languages",
		Args:  cobra.NoArgs,
		RunE:  runLangsCmd,
	}
}

func runLangsCmd(cmd *cobra.Command, _ []string) error {
	langs, err := availableLangs(config.DefaultWordListDir())
	if err != nil {
		return err
	}
	for _, lang := range langs {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), lang); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// availableLangs merges the bundled languages with user lists in dir.
func availableLangs(dir string) ([]string, error) {
	seen := map[string]struct{}{}
	for _, lang := range wordlist.BuiltinLangs() {
		seen[lang] = struct{}{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read wordlist directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		seen[strings.TrimSuffix(entry.Name(), ".txt")] = struct{}{}
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

func newWordlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordlist",
		Short: "Copy a bundled word list into the config directory for editing",
		Args:  cobra.NoArgs,
		RunE:  runWordlistCmd,
	}
	cmd.Flags().StringVar(&wordlistLang, "lang", defaultLang, "language code")
	cmd.Flags().BoolVar(&wordlistForce, "force", false, "overwrite existing files")
	return cmd
}

func runWordlistCmd(_ *cobra.Command, _ []string) error {
	lang := strings.TrimSpace(strings.ToLower(wordlistLang))
	if lang == "" {
		return fmt.Errorf("--lang must not be empty")
	}
	words, err := wordlist.Load(lang, "")
	if err != nil {
		if errors.Is(err, wordlist.ErrUnknownLang) {
			return fmt.Errorf("no bundled word list for %q (bundled: %s)", lang, strings.Join(wordlist.BuiltinLangs(), ", "))
		}
		return err
	}
	outPath := config.DefaultWordListPath(lang)
	if !wordlistForce {
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("word list already exists: %s (use --force to overwrite)", outPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat word list: %w", err)
		}
	}
	if err := writeWordList(outPath, words); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	logErrf("Wrote %s\n", outPath)
	return nil
}

func writeWordList(path string, words []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create word list dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "wordlist-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create temp word list: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	for _, word := range words {
		if _, err := fmt.Fprintln(writer, word); err != nil {
			return fmt.Errorf("failed to write word list: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush word list: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close word list: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write word list: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past results, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyPage, "page", 0, "page number, starting at 0 (with --plain)")
	cmd.Flags().IntVar(&historyPageSize, "page-size", store.DefaultPageSize, "results per page")
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print a table instead of opening the browser")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyPage < 0 {
		return fmt.Errorf("--page must be >= 0")
	}
	if historyPageSize <= 0 {
		return fmt.Errorf("--page-size must be > 0")
	}
	return withStore(func(st *store.Store) error {
		if !historyPlain {
			return runBrowser(st, historyui.Config{Tab: historyui.TabHistory, PageSize: historyPageSize})
		}
		page, err := st.ListHistory(context.Background(), model.HistoryQuery{
			Page:     historyPage,
			PageSize: historyPageSize,
		})
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), page, historyPageSize)
	})
}

func printHistory(w io.Writer, page model.HistoryPage, pageSize int) error {
	if err := stats.RenderHistory(w, page.Records); err != nil {
		return err
	}
	pages := max((page.Total+pageSize-1)/pageSize, 1)
	_, err := fmt.Fprintf(w, "Page %d/%d (%d results)\n", page.Page+1, pages, page.Total)
	return err
}

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the best results for a mode",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
	cmd.Flags().StringVar(&boardMode, "mode", defaultMode, "test mode: time, words or zen")
	cmd.Flags().IntVar(&boardValue, "value", defaultValue, "seconds for time mode, words for words mode")
	cmd.Flags().IntVar(&boardLimit, "limit", store.DefaultLeaderboardLimit, "number of results")
	cmd.Flags().BoolVar(&boardPlain, "plain", false, "print a table instead of opening the browser")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	mode, err := model.ParseMode(boardMode, boardValue)
	if err != nil {
		return fmt.Errorf("invalid --mode/--value: %w", err)
	}
	if boardLimit <= 0 {
		return fmt.Errorf("--limit must be > 0")
	}
	return withStore(func(st *store.Store) error {
		if !boardPlain {
			return runBrowser(st, historyui.Config{Tab: historyui.TabLeaderboard, Mode: mode, Limit: boardLimit})
		}
		results, err := st.Leaderboard(context.Background(), mode, boardLimit)
		if err != nil {
			return err
		}
		return stats.RenderLeaderboard(cmd.OutOrStdout(), mode, results)
	})
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show profile stats and learning curves",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsLang, "lang", "", "language filter")
	cmd.Flags().StringVar(&statsMode, "mode", "", "mode filter: time, words or zen")
	cmd.Flags().IntVar(&statsValue, "value", 0, "mode value filter (with --mode)")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N results")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print instead of opening the browser")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := statsConfig()
	if err != nil {
		return err
	}
	return withStore(func(st *store.Store) error {
		if !statsPlain {
			return runBrowser(st, historyui.Config{Tab: historyui.TabProfile, Stats: cfg})
		}
		p, err := stats.BuildProfile(context.Background(), st, cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := stats.RenderSummary(out, p); err != nil {
			return err
		}
		if err := stats.RenderLearningCurve(out, p.Results, cfg.CurveWindow, 0); err != nil {
			return err
		}
		if p.Tests == 0 {
			return nil
		}
		fmt.Fprintln(out)
		return stats.RenderHeatmap(out, p.Activity, time.Now(), stats.HeatmapWeeks(0))
	})
}

func statsConfig() (model.StatsConfig, error) {
	cfg := model.StatsConfig{
		Lang:        statsLang,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}
	if statsCurveWindow <= 0 {
		return cfg, fmt.Errorf("--curve-window must be > 0")
	}
	if statsLast < 0 {
		return cfg, fmt.Errorf("--last must be >= 0")
	}
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return cfg, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	if statsMode != "" {
		mode, err := model.ParseMode(statsMode, statsValue)
		if err != nil {
			return cfg, fmt.Errorf("invalid --mode/--value: %w", err)
		}
		cfg.Mode = &mode
	}
	return cfg, nil
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored result",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCmd,
	}
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid result id %q", args[0])
	}
	return withStore(func(st *store.Store) error {
		if err := st.Delete(context.Background(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("result #%d not found", id)
			}
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted result #%d\n", id)
		return err
	})
}

func withStore(fn func(st *store.Store) error) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return fn(st)
}

func runBrowser(st historyui.Store, cfg historyui.Config) error {
	program := tea.NewProgram(historyui.NewModel(st, cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run browser: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typist configuration
# Uncomment a value to enable it. CLI flags override config values.

[test]
# mode = %q             # time, words or zen
# value = %d              # Seconds for time mode, words for words mode
# lang = %q               # Language code
# sample-interval = %q    # Interval between speed samples
# caps = %.2f             # Probability of capitalized first letter (0-1)
# punct = %.2f            # Punctuation probability per word (0-1)
# punct-set = %q          # Punctuation set
# focus-weak = false      # Bias practice toward weak characters
# weak-top = %d           # Number of weak characters to focus on
# weak-factor = %.1f      # Weight factor for weak characters
# weak-window = %d        # Number of recent tests to compute weak chars
# audio = %t              # Ring the terminal bell on mistakes and on finish

[log]
# level = %q              # debug, info, warn or error
# file = ""               # Log file (default under $XDG_STATE_HOME)
`,
		defaultMode,
		defaultValue,
		defaultLang,
		defaultSampleInterval.String(),
		defaultCaps,
		defaultPunct,
		defaultPunctSet,
		defaultWeakTop,
		defaultWeakFactor,
		defaultWeakWindow,
		defaultAudio,
		defaultLogLevel,
	)
}

func wordListLoadError(lang, path string, err error) error {
	lines := []string{
		fmt.Sprintf("failed to load word list: %v", err),
		fmt.Sprintf("expected word list at: %s", path),
		fmt.Sprintf("language %q not found", lang),
		"Run: typist langs",
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}
