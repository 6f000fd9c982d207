package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/pitchcoach/internal/i18n"
	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/replay"
	"github.com/verte-zerg/pitchcoach/internal/session"
	"github.com/verte-zerg/pitchcoach/internal/stats"
	"github.com/verte-zerg/pitchcoach/internal/store"
)

var (
	replayPitch string
	replaySave  bool
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run a scripted practice session headlessly",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().StringVar(&replayPitch, "pitch", "", "stored pitch id (default: the script's inline pitch)")
	cmd.Flags().BoolVar(&replaySave, "save", false, "record the session in history")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	script, err := replay.Load(args[0])
	if err != nil {
		return err
	}
	logger, closeLog, err := openLogger(cfg.LogFile, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	metrics := startMetrics()
	defer metrics.finish(cmd.Context())

	catalog, err := i18n.NewCatalog()
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	ctx := cmd.Context()
	player := replay.NewPlayer(script, time.Now())
	opts := append(player.SessionOptions(),
		session.WithLogger(logger),
		session.WithThresholds(thresholdsFor(cfg)),
	)

	var pitch model.PitchConfig
	var st *store.Store
	if replayPitch != "" || replaySave {
		if st, err = openStore(); err != nil {
			return err
		}
		defer closeStore(st)
	}
	if replaySave {
		opts = append(opts, session.WithCounter(st), session.WithRecorder(st))
	}
	switch {
	case replayPitch != "":
		if pitch, err = getPitch(ctx, st, replayPitch); err != nil {
			return err
		}
	default:
		var ok bool
		if pitch, ok = script.PitchConfig(cfg.UserID); !ok {
			return fmt.Errorf("script has no inline pitch; pass --pitch <id>")
		}
	}

	s := session.New(player.Transcript(), player.Audio(), opts...)
	if err := s.Configure(pitch); err != nil {
		return err
	}
	result, err := player.Run(ctx, s)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	rec, outcomes, _ := s.LastRecord()
	return printResult(cmd.OutOrStdout(), catalog.For(pitch.Language), result, rec, outcomes)
}

func printResult(w io.Writer, loc *i18n.Localizer, r stats.Result, rec model.PracticeRecord, outcomes []model.KeywordOutcome) error {
	summary := loc.T("result_summary", map[string]any{
		"Hits":       r.Hits,
		"Total":      r.Total,
		"Percentage": fmt.Sprintf("%.0f", r.Percentage),
		"Clock":      stats.FormatClock(r.PracticeSeconds),
	})
	lines := []string{
		r.StarString() + "  " + summary,
		loc.Tier(string(r.Tier)),
		"",
	}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		status, at := "missed", "-"
		if o.Spoken {
			status = "out of order"
			if o.InOrder {
				status = "in order"
			}
			at = stats.FormatClock(o.AtSecond)
		}
		kw := o.Keyword
		if o.Flagged {
			kw = "*" + kw
		}
		rows = append(rows, []string{kw, status, at})
	}
	lines = append(lines, stats.FormatTable([]string{"Keyword", "Status", "At"}, rows, map[int]bool{2: true})...)
	lines = append(lines, "",
		fmt.Sprintf("Peak WPM %.1f  %s %d  %s %d  %s %d",
			rec.PeakWPM,
			loc.Alert("too_fast"), rec.TooFastAlerts,
			loc.Alert("no_pauses"), rec.NoPauseAlerts,
			loc.Alert("stressed_voice"), rec.StressAlerts),
	)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
