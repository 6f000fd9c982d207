// Package stats scores practice sessions and renders practice history.
package stats

import (
	"fmt"
	"io"
	"sort"

	"github.com/verte-zerg/pitchcoach/internal/model"
)

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// RenderSummary prints a summary block for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No practice sessions found.")
		return err
	}
	var totalPct, totalWPM float64
	bestPct := 0.0
	practiceSeconds := 0
	perfect := 0
	for _, s := range sessions {
		totalPct += s.Percentage
		totalWPM += s.PeakWPM
		practiceSeconds += s.PracticeSeconds
		if s.Percentage > bestPct {
			bestPct = s.Percentage
		}
		if TierFor(s.Percentage) == TierPerfect {
			perfect++
		}
	}
	count := float64(len(sessions))
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Avg hit rate: %.1f%%", totalPct/count),
		fmt.Sprintf("Best hit rate: %.1f%%", bestPct),
		fmt.Sprintf("Perfect runs: %d", perfect),
		fmt.Sprintf("Avg peak WPM: %.1f", totalWPM/count),
		fmt.Sprintf("Practice time: %s", FormatClock(practiceSeconds)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves plots hit rate and peak WPM per session, smoothed over window.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window int) error {
	return RenderCurvesWithSize(w, sessions, window, 0, 0, false)
}

// RenderCurvesWithSize is RenderCurves sized for a given total width and plot
// height; zero picks the terminal width and the default height.
func RenderCurvesWithSize(w io.Writer, sessions []model.SessionAggregate, window, totalWidth, height int, useColor bool) error {
	if len(sessions) == 0 {
		return nil
	}
	pcts := make([]float64, len(sessions))
	wpms := make([]float64, len(sessions))
	for i, s := range sessions {
		pcts[i] = s.Percentage
		wpms[i] = s.PeakWPM
	}
	series := []Series{
		{Name: "Hit rate", Unit: "%", Values: MovingAverage(pcts, window), Ceil: 100},
		{Name: "Peak WPM", Unit: "wpm", Values: MovingAverage(wpms, window)},
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	title := fmt.Sprintf("Learning Curves (last %.1f%% hit, %.1f peak WPM)", series[0].Values[len(pcts)-1], series[1].Values[len(wpms)-1])
	return PlotSeriesWithColor(w, title, series, width, height, useColor)
}

// RenderKeywordCurvesWithSize plots one chart per keyword: how often it was
// spoken and how often in order, over the sessions that included it.
// outcomes maps keyword to session id to outcome.
func RenderKeywordCurvesWithSize(w io.Writer, sessions []model.SessionAggregate, outcomes map[string]map[string]model.KeywordOutcome, keywords []string, window, totalWidth, height int, useColor bool) error {
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	for _, kw := range keywords {
		bySession := outcomes[kw]
		var spoken, inOrder []float64
		for _, s := range sessions {
			o, ok := bySession[s.SessionID]
			if !ok {
				continue
			}
			spoken = append(spoken, boolPercent(o.Spoken))
			inOrder = append(inOrder, boolPercent(o.InOrder))
		}
		if len(spoken) == 0 {
			if _, err := fmt.Fprintf(w, "%s: no sessions\n\n", kw); err != nil {
				return err
			}
			continue
		}
		series := []Series{
			{Name: "Spoken", Unit: "%", Values: MovingAverage(spoken, window), Ceil: 100},
			{Name: "In order", Unit: "%", Values: MovingAverage(inOrder, window), Ceil: 100},
		}
		title := fmt.Sprintf("%s (%d sessions)", kw, len(spoken))
		if err := PlotSeriesWithColor(w, title, series, width, height, useColor); err != nil {
			return err
		}
	}
	return nil
}

func boolPercent(b bool) float64 {
	if b {
		return 100
	}
	return 0
}

// RenderKeywordTable prints per-keyword aggregates, most missed first.
func RenderKeywordTable(w io.Writer, aggs []model.KeywordAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No keyword stats found.")
		return err
	}
	rows := SortByHitRate(aggs)

	if _, err := fmt.Fprintln(w, "Per-Keyword"); err != nil {
		return err
	}
	headers := []string{"Keyword", "Hit rate", "In order", "Spoken", "Sessions"}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{
			r.Keyword,
			fmt.Sprintf("%.1f%%", HitRate(r)*100),
			fmt.Sprintf("%d", r.InOrder),
			fmt.Sprintf("%d", r.Spoken),
			fmt.Sprintf("%d", r.Sessions),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true}
	for _, line := range FormatTable(headers, tableRows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// HitRate is the share of sessions in which the keyword was spoken.
func HitRate(agg model.KeywordAggregate) float64 {
	if agg.Sessions == 0 {
		return 1.0
	}
	return float64(agg.Spoken) / float64(agg.Sessions)
}

// SortByHitRate returns a copy of aggs, most missed first, ties by keyword.
func SortByHitRate(aggs []model.KeywordAggregate) []model.KeywordAggregate {
	rows := make([]model.KeywordAggregate, len(aggs))
	copy(rows, aggs)
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := HitRate(rows[i]), HitRate(rows[j])
		if ri == rj {
			return rows[i].Keyword < rows[j].Keyword
		}
		return ri < rj
	})
	return rows
}
