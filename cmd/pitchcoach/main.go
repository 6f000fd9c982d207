// Package main provides the CLI entrypoint for pitchcoach.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/pitchcoach/internal/analyzer"
	"github.com/verte-zerg/pitchcoach/internal/audio"
	"github.com/verte-zerg/pitchcoach/internal/audio/mic"
	"github.com/verte-zerg/pitchcoach/internal/config"
	"github.com/verte-zerg/pitchcoach/internal/i18n"
	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/observe"
	"github.com/verte-zerg/pitchcoach/internal/session"
	"github.com/verte-zerg/pitchcoach/internal/store"
	"github.com/verte-zerg/pitchcoach/internal/tui"
)

const version = "0.1.0"

const (
	defaultUser        = "local"
	defaultLang        = "en-US"
	defaultMinutes     = 5
	defaultSampleRate  = 16000
	defaultFrames      = 1024
	defaultCurveWindow = 10
)

var (
	userID      string
	logFile     string
	withMetrics bool

	practicePitch      string
	practiceLang       = defaultLang
	practiceMinutes    = defaultMinutes
	practiceMic        = true
	practiceSampleRate = defaultSampleRate

	maxWPM       float64
	pauseWindow  time.Duration
	minChars     int
	stressVolume float64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pitchcoach",
		Short:         "Terminal pitch rehearsal trainer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runPracticeCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&userID, "user", defaultUser, "user id owning pitches and history")
	pf.StringVar(&logFile, "log-file", "", "write diagnostics to this file")
	pf.BoolVar(&withMetrics, "metrics", false, "print session metrics on exit")
	pf.Float64Var(&maxWPM, "max-wpm", 0, "words per minute above which the too-fast alert is raised (0: default)")
	pf.DurationVar(&pauseWindow, "pause-window", 0, "speech more recent than this counts as no pause (0: default)")
	pf.IntVar(&minChars, "min-chars", 0, "transcript length before the no-pauses alert applies (0: default)")
	pf.Float64Var(&stressVolume, "stress-volume", 0, "volume level (0-255) above which the stressed-voice alert is raised (0: default)")

	addPracticeFlags(rootCmd)
	rootCmd.Flags().StringVar(&practicePitch, "pitch", "", "pitch id to rehearse")

	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newPitchCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addPracticeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&practiceMic, "mic", true, "read the microphone level for voice alerts")
	cmd.Flags().IntVar(&practiceSampleRate, "sample-rate", defaultSampleRate, "microphone sample rate in Hz")
}

func newPracticeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice <pitch-id>",
		Short: "Rehearse a pitch",
		Args:  cobra.ExactArgs(1),
		RunE:  runPracticeCmd,
	}
	addPracticeFlags(cmd)
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	pitchID := practicePitch
	if len(args) == 1 {
		pitchID = args[0]
	}
	if pitchID == "" {
		return fmt.Errorf("a pitch id is required (see: pitchcoach pitch list)")
	}

	logger, closeLog, err := openLogger(cfg.LogFile, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()
	metrics := startMetrics()
	defer metrics.finish(cmd.Context())

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	catalog, err := i18n.NewCatalog()
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	typed := tui.NewTypedTranscript(nil)
	var levels session.AudioLevelStream
	if cfg.Mic {
		levels = audio.NewMeter(mic.Opener(float64(cfg.SampleRate), defaultFrames), logger)
	}
	changes, notify := tui.Notifier()
	s := session.New(typed, levels,
		session.WithLogger(logger),
		session.WithCounter(st),
		session.WithRecorder(st),
		session.WithPitchStore(st),
		session.WithThresholds(thresholdsFor(cfg)),
		session.WithOnChange(notify),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.LoadPitch(ctx, cfg.UserID, pitchID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("pitch %q not found for user %q", pitchID, cfg.UserID)
		}
		return err
	}

	view := tui.NewModel(ctx, s, typed, catalog, changes)
	program := tea.NewProgram(view, tea.WithAltScreen())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		program.Quit()
		return nil
	})
	err = g.Wait()
	// A signal cancels ctx; pending keyword edits must still reach the store.
	closeErr := s.Close(context.WithoutCancel(ctx))
	return errors.Join(err, view.Err(), closeErr)
}

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
		if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
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

// loadSettings resolves settings from dotenv files, the TOML config and the
// environment, then lets explicitly set flags win.
func loadSettings(cmd *cobra.Command) (model.Config, error) {
	if err := config.LoadDotenv(config.DefaultEnvPath(), ".env"); err != nil {
		return model.Config{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyEnv(&fileCfg); err != nil {
		return model.Config{}, fmt.Errorf("invalid environment: %w", err)
	}
	applyStringConfig(cmd, "user", &userID, fileCfg.Practice.User)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Practice.LogFile)
	applyStringConfig(cmd, "lang", &practiceLang, fileCfg.Practice.Lang)
	applyIntConfig(cmd, "duration", &practiceMinutes, fileCfg.Practice.Duration)
	applyBoolConfig(cmd, "mic", &practiceMic, fileCfg.Practice.Mic)
	applyIntConfig(cmd, "sample-rate", &practiceSampleRate, fileCfg.Practice.SampleRate)
	applyFloatConfig(cmd, "max-wpm", &maxWPM, fileCfg.Thresholds.MaxWPM)
	applyIntConfig(cmd, "min-chars", &minChars, fileCfg.Thresholds.MinTranscriptChars)
	applyFloatConfig(cmd, "stress-volume", &stressVolume, fileCfg.Thresholds.StressVolume)
	if fileCfg.Thresholds.PauseWindow != nil {
		// Already validated by LoadConfig and ApplyEnv.
		d, _ := fileCfg.Thresholds.PauseWindowDuration()
		applyDurationConfig(cmd, "pause-window", &pauseWindow, &d)
	}

	userID = strings.TrimSpace(userID)
	cfg := model.Config{
		UserID:     userID,
		Lang:       practiceLang,
		Minutes:    practiceMinutes,
		Mic:        practiceMic,
		SampleRate: practiceSampleRate,
		LogFile:    logFile,
		Thresholds: model.ThresholdConfig{
			MaxWordsPerMinute:  maxWPM,
			PauseWindow:        pauseWindow,
			MinTranscriptChars: minChars,
			StressVolume:       stressVolume,
		},
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg model.Config) error {
	if cfg.UserID == "" {
		return fmt.Errorf("--user must not be empty")
	}
	if cfg.Minutes != 0 && !slices.Contains(model.Durations, cfg.Minutes) {
		return fmt.Errorf("--duration must be one of %v", model.Durations)
	}
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("--sample-rate must be > 0")
	}
	t := cfg.Thresholds
	if t.MaxWordsPerMinute < 0 {
		return fmt.Errorf("--max-wpm must be >= 0")
	}
	if t.PauseWindow < 0 {
		return fmt.Errorf("--pause-window must be >= 0")
	}
	if t.MinTranscriptChars < 0 {
		return fmt.Errorf("--min-chars must be >= 0")
	}
	if t.StressVolume < 0 || t.StressVolume > 255 {
		return fmt.Errorf("--stress-volume must be between 0 and 255")
	}
	return nil
}

func thresholdsFor(cfg model.Config) analyzer.Thresholds {
	return analyzer.Thresholds{
		MaxWordsPerMinute:  cfg.Thresholds.MaxWordsPerMinute,
		PauseWindow:        cfg.Thresholds.PauseWindow,
		MinTranscriptChars: cfg.Thresholds.MinTranscriptChars,
		StressVolume:       cfg.Thresholds.StressVolume,
	}.WithDefaults()
}

// openLogger returns a logger writing to path, or to fallback when path is
// empty. The TUI passes io.Discard so diagnostics never draw over the screen.
func openLogger(path string, fallback io.Writer) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(fallback, &slog.HandlerOptions{Level: slog.LevelWarn})), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}, nil
}

type metricsSink struct {
	provider *observe.Provider
}

func startMetrics() metricsSink {
	if !withMetrics {
		return metricsSink{}
	}
	return metricsSink{provider: observe.InitProvider(version)}
}

func (m metricsSink) finish(ctx context.Context) {
	if m.provider == nil {
		return
	}
	if err := m.provider.WriteSummary(ctx, os.Stderr); err != nil {
		logErrf("%v\n", err)
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		logErrf("failed to shut down metrics: %v\n", err)
	}
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
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

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
