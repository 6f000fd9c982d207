package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/stats"
	"github.com/verte-zerg/pitchcoach/internal/statsui"
)

const missedTop = 5

var (
	historyPitch       string
	historySince       string
	historyLast        int
	historyCurveWindow int
	historyPlain       bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show practice history",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyPitch, "pitch", "", "pitch id filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&historyCurveWindow, "window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print a text report instead of the interactive view")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyCurveWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	histCfg := model.HistoryConfig{
		UserID:      cfg.UserID,
		PitchID:     historyPitch,
		Since:       sinceTime,
		Last:        historyLast,
		CurveWindow: historyCurveWindow,
	}
	w := cmd.OutOrStdout()
	if !historyPlain && isTerminal(w) {
		program := tea.NewProgram(statsui.NewModel(cmd.Context(), st, histCfg), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		_, err := program.Run()
		return err
	}

	report, err := stats.BuildReport(cmd.Context(), st, histCfg)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	return renderHistory(w, report, historyCurveWindow)
}

func renderHistory(w io.Writer, report stats.Report, window int) error {
	if len(report.Sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	if err := stats.RenderSummary(w, report.Sessions); err != nil {
		return err
	}
	if err := stats.RenderCurves(w, report.Sessions, window); err != nil {
		return err
	}
	if err := stats.RenderKeywordTable(w, report.KeywordsAll); err != nil {
		return err
	}
	if missed := stats.MissedKeywords(report.KeywordsWindow, missedTop); len(missed) > 0 {
		_, err := fmt.Fprintf(w, "Most missed in the last %d sessions: %s\n", report.WindowSessions, strings.Join(missed, ", "))
		return err
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
