// Package main provides the CLI entrypoint for typist.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typist/internal/audio"
	"github.com/verte-zerg/typist/internal/config"
	"github.com/verte-zerg/typist/internal/generator"
	"github.com/verte-zerg/typist/internal/logging"
	"github.com/verte-zerg/typist/internal/model"
	"github.com/verte-zerg/typist/internal/store"
	"github.com/verte-zerg/typist/internal/tui"
	"github.com/verte-zerg/typist/internal/wordlist"
)

const (
	defaultMode           = "time"
	defaultValue          = 30
	defaultLang           = "en"
	defaultSampleInterval = time.Second
	defaultCaps           = 0.0
	defaultPunct          = 0.0
	defaultWeakTop        = 8
	defaultWeakFactor     = 2.0
	defaultWeakWindow     = 20
	defaultAudio          = true
	defaultLogLevel       = "info"
)

const defaultPunctSet = ".,!?;:\"'()-"

var (
	practiceMode           string
	practiceValue          int
	practiceLang           string
	practiceSampleInterval time.Duration
	practiceCaps           float64
	practicePunct          float64
	practicePunctSet       string
	practiceFocusWeak      bool
	practiceWeakTop        int
	practiceWeakFactor     float64
	practiceWeakWindow     int
	practiceAudio          bool
	practiceTextFile       string

	logLevel string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typist",
		Short:         "Terminal typing test",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.Flags().StringVar(&practiceMode, "mode", defaultMode, "test mode: time, words or zen")
	rootCmd.Flags().IntVar(&practiceValue, "value", defaultValue, "seconds for time mode, words for words mode")
	rootCmd.Flags().StringVar(&practiceLang, "lang", defaultLang, "language code")
	rootCmd.Flags().DurationVar(&practiceSampleInterval, "sample-interval", defaultSampleInterval, "interval between speed samples")
	rootCmd.Flags().Float64Var(&practiceCaps, "caps", defaultCaps, "probability of capitalized first letter (0-1)")
	rootCmd.Flags().Float64Var(&practicePunct, "punct", defaultPunct, "punctuation probability per word (0-1)")
	rootCmd.Flags().StringVar(&practicePunctSet, "punct-set", defaultPunctSet, "punctuation set")
	rootCmd.Flags().BoolVar(&practiceFocusWeak, "focus-weak", false, "bias practice toward weak characters")
	rootCmd.Flags().IntVar(&practiceWeakTop, "weak-top", defaultWeakTop, "number of weak characters to focus on")
	rootCmd.Flags().Float64Var(&practiceWeakFactor, "weak-factor", defaultWeakFactor, "weight factor for weak characters")
	rootCmd.Flags().IntVar(&practiceWeakWindow, "weak-window", defaultWeakWindow, "number of recent tests to compute weak chars")
	rootCmd.Flags().BoolVar(&practiceAudio, "audio", defaultAudio, "ring the terminal bell on mistakes and on finish")
	rootCmd.Flags().StringVar(&practiceTextFile, "text-file", "", "type a fixed passage from this file instead of random words")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level: debug, info, warn or error")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLangsCmd())
	rootCmd.AddCommand(newWordlistCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newDeleteCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := practiceConfig(cmd, fileCfg)
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(cmd, fileCfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog.Close(); cerr != nil {
			_ = cerr
		}
	}()

	newSource, err := sourceFactory(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	exportDir := config.DefaultExportDir()
	if n, err := store.ImportExports(context.Background(), st, exportDir, logger); err != nil {
		logErrf("failed to import unsaved results: %v\n", err)
	} else if n > 0 {
		logger.Info("imported unsaved results", "count", n)
	}

	writer := store.NewWriter(st, logger)

	var notifier audio.Notifier = audio.Nop{}
	if cfg.Audio {
		bell, err := audio.OpenBell(audio.TerminalPath)
		if err != nil {
			logger.Warn("audio cues disabled", "err", err)
		} else {
			notifier = bell
			defer func() {
				if cerr := bell.Close(); cerr != nil {
					logger.Warn("failed to close bell", "err", cerr)
				}
			}()
		}
	}

	m := tui.NewModel(tui.Options{
		Config:    cfg,
		Reader:    st,
		Writer:    writer,
		NewSource: newSource,
		Notifier:  notifier,
		Logger:    logger,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	_, runErr := program.Run()

	// Close drains saves still queued, so only results whose outcome never
	// arrived or failed need to be written out.
	writer.Close()
	exportUnsaved(m.Unsaved(), exportDir, logger)

	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return m.Err()
}

func practiceConfig(cmd *cobra.Command, fileCfg config.FileConfig) (model.Config, error) {
	applyStringConfig(cmd, "mode", &practiceMode, fileCfg.Test.Mode)
	applyIntConfig(cmd, "value", &practiceValue, fileCfg.Test.Value)
	applyStringConfig(cmd, "lang", &practiceLang, fileCfg.Test.Lang)
	if fileCfg.Test.SampleInterval != nil {
		applyDurationConfig(cmd, "sample-interval", &practiceSampleInterval, &fileCfg.Test.SampleInterval.Duration)
	}
	applyFloatConfig(cmd, "caps", &practiceCaps, fileCfg.Test.CapsPct)
	applyFloatConfig(cmd, "punct", &practicePunct, fileCfg.Test.PunctPct)
	applyStringConfig(cmd, "punct-set", &practicePunctSet, fileCfg.Test.PunctSet)
	applyBoolConfig(cmd, "focus-weak", &practiceFocusWeak, fileCfg.Test.FocusWeak)
	applyIntConfig(cmd, "weak-top", &practiceWeakTop, fileCfg.Test.WeakTop)
	applyFloatConfig(cmd, "weak-factor", &practiceWeakFactor, fileCfg.Test.WeakFactor)
	applyIntConfig(cmd, "weak-window", &practiceWeakWindow, fileCfg.Test.WeakWindow)
	applyBoolConfig(cmd, "audio", &practiceAudio, fileCfg.Test.Audio)

	mode, err := model.ParseMode(practiceMode, practiceValue)
	if err != nil {
		return model.Config{}, fmt.Errorf("invalid --mode/--value: %w", err)
	}

	cfg := model.Config{
		Mode:           mode,
		Lang:           practiceLang,
		SampleInterval: practiceSampleInterval,
		CapsPct:        practiceCaps,
		PunctPct:       practicePunct,
		PunctSet:       practicePunctSet,
		FocusWeak:      practiceFocusWeak,
		WeakTop:        practiceWeakTop,
		WeakFactor:     practiceWeakFactor,
		WeakWindow:     practiceWeakWindow,
		Audio:          practiceAudio,
		TextFile:       practiceTextFile,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func openLogger(cmd *cobra.Command, fileCfg config.FileConfig) (*slog.Logger, io.Closer, error) {
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	path := config.DefaultLogPath()
	if fileCfg.Log.File != nil && *fileCfg.Log.File != "" {
		path = *fileCfg.Log.File
	}
	return logging.New(logging.Config{Level: level, FilePath: path})
}

// sourceFactory builds a text source per test. Word lists are loaded once;
// each source gets the weak set current at the time it is built.
func sourceFactory(cfg model.Config) (tui.SourceFunc, error) {
	if cfg.TextFile != "" {
		data, err := os.ReadFile(cfg.TextFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read text file: %w", err)
		}
		text := string(data)
		if _, err := generator.NewPassageSource(text); err != nil {
			return nil, fmt.Errorf("invalid text file %s: %w", cfg.TextFile, err)
		}
		return func(map[rune]struct{}) (generator.Source, error) {
			return generator.NewPassageSource(text)
		}, nil
	}

	wordPath := config.DefaultWordListPath(cfg.Lang)
	words, err := wordlist.Load(cfg.Lang, wordPath)
	if err != nil {
		return nil, wordListLoadError(cfg.Lang, wordPath, err)
	}
	gen := generator.New()
	deco := generator.Decoration{
		CapsPct:  cfg.CapsPct,
		PunctPct: cfg.PunctPct,
		PunctSet: []rune(cfg.PunctSet),
	}
	return func(weakSet map[rune]struct{}) (generator.Source, error) {
		src, err := generator.NewRandomSource(gen, cfg.Lang, words, deco)
		if err != nil {
			return nil, err
		}
		if cfg.FocusWeak && len(weakSet) > 0 {
			src.FocusWeak(weakSet, cfg.WeakFactor)
		}
		return src, nil
	}, nil
}

func exportUnsaved(results []model.Result, dir string, logger *slog.Logger) {
	for _, res := range results {
		path, err := store.Export(dir, res)
		if err != nil {
			logErrf("failed to keep unsaved result %s: %v\n", res.SessionID, err)
			continue
		}
		logger.Warn("exported unsaved result", "session", res.SessionID, "path", path)
		logErrf("Result not saved yet; kept at %s and retried on next start\n", path)
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func validateConfig(cfg model.Config) error {
	if err := cfg.Mode.Validate(); err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}
	if cfg.SampleInterval <= 0 {
		return fmt.Errorf("--sample-interval must be > 0")
	}
	if cfg.CapsPct < 0 || cfg.CapsPct > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if cfg.PunctPct < 0 || cfg.PunctPct > 1 {
		return fmt.Errorf("--punct must be between 0 and 1")
	}
	if cfg.PunctPct > 0 && cfg.PunctSet == "" {
		return fmt.Errorf("--punct-set must not be empty")
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if cfg.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if cfg.WeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
