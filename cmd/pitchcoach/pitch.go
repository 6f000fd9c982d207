package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/pitchcoach/internal/keywords"
	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/stats"
	"github.com/verte-zerg/pitchcoach/internal/store"
)

var (
	addKeywords []string
	addFlagged  []string
	addFile     string
)

func newPitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pitch",
		Short: "Manage pitches",
	}
	cmd.AddCommand(newPitchAddCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pitches",
		Args:  cobra.NoArgs,
		RunE:  withStore(runPitchList),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <pitch-id>",
		Short: "Show a pitch and the keywords a session would use",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(runPitchShow),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <pitch-id>",
		Short: "Delete a pitch",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(runPitchRemove),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "flag <pitch-id> <keyword>",
		Short: "Toggle the must-include mark of a keyword",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
			return editPitch(ctx, st, args[0], func(p model.PitchConfig) (model.PitchConfig, error) {
				return keywords.ToggleFlag(p, args[1])
			})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "duration <pitch-id> <minutes>",
		Short: "Set the target duration",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
			minutes, err := strconv.Atoi(args[1])
			if err != nil || !slices.Contains(model.Durations, minutes) {
				return fmt.Errorf("minutes must be one of %v", model.Durations)
			}
			return editPitch(ctx, st, args[0], func(p model.PitchConfig) (model.PitchConfig, error) {
				p.TargetMinutes = minutes
				return p, nil
			})
		}),
	})
	cmd.AddCommand(newPitchKeywordCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "check <pitch-id>",
		Short: "Validate a pitch and warn about keywords that sound alike",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(runPitchCheck),
	})
	return cmd
}

func newPitchAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a pitch",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(runPitchAdd),
	}
	cmd.Flags().StringSliceVarP(&addKeywords, "keyword", "k", nil, "keyword (repeatable or comma separated)")
	cmd.Flags().StringSliceVar(&addFlagged, "flag", nil, "must-include keyword (repeatable)")
	cmd.Flags().StringVarP(&addFile, "file", "f", "", "file with one keyword per line; a trailing ! flags it")
	cmd.Flags().StringVar(&practiceLang, "lang", defaultLang, "pitch language (BCP-47)")
	cmd.Flags().IntVar(&practiceMinutes, "duration", defaultMinutes, "target duration in minutes")
	return cmd
}

func newPitchKeywordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyword",
		Short: "Add, remove or move keywords",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <pitch-id> <keyword>",
		Short: "Append a keyword",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
			return editPitch(ctx, st, args[0], func(p model.PitchConfig) (model.PitchConfig, error) {
				return keywords.Add(p, args[1])
			})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <pitch-id> <keyword>",
		Short: "Remove a keyword",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
			return editPitch(ctx, st, args[0], func(p model.PitchConfig) (model.PitchConfig, error) {
				return keywords.Remove(p, args[1])
			})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "mv <pitch-id> <from> <to>",
		Short: "Move a keyword (1-based positions)",
		Args:  cobra.ExactArgs(3),
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
			from, ferr := strconv.Atoi(args[1])
			to, terr := strconv.Atoi(args[2])
			if ferr != nil || terr != nil {
				return fmt.Errorf("positions must be numbers")
			}
			return editPitch(ctx, st, args[0], func(p model.PitchConfig) (model.PitchConfig, error) {
				return keywords.Move(p, from-1, to-1)
			})
		}),
	})
	return cmd
}

type storeRunner func(ctx context.Context, st *store.Store, w io.Writer, args []string) error

// withStore resolves settings, opens the store for the duration of fn and
// closes it afterwards.
func withStore(fn storeRunner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, err := loadSettings(cmd); err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(st)
		return fn(cmd.Context(), st, cmd.OutOrStdout(), args)
	}
}

func runPitchAdd(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
	words := append([]string(nil), addKeywords...)
	flagged := append([]string(nil), addFlagged...)
	if addFile != "" {
		fileWords, fileFlagged, err := keywords.LoadFile(addFile)
		if err != nil {
			return fmt.Errorf("failed to load keywords: %w", err)
		}
		words = append(words, fileWords...)
		flagged = append(flagged, fileFlagged...)
	}
	p := keywords.Normalize(model.PitchConfig{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         args[0],
		Keywords:      words,
		Flagged:       flagged,
		TargetMinutes: practiceMinutes,
		Language:      practiceLang,
	})
	if err := keywords.Validate(p); err != nil {
		return fmt.Errorf("invalid pitch:\n%w", err)
	}
	if err := st.SavePitch(ctx, p); err != nil {
		return err
	}
	warnConfusable(p.Keywords)
	_, err := fmt.Fprintln(w, p.ID)
	return err
}

func runPitchList(ctx context.Context, st *store.Store, w io.Writer, _ []string) error {
	pitches, err := st.ListPitches(ctx, userID)
	if err != nil {
		return err
	}
	if len(pitches) == 0 {
		logErrln("No pitches yet. Create one with: pitchcoach pitch add <title> -k <keyword>")
		return nil
	}
	rows := make([][]string, 0, len(pitches))
	for _, p := range pitches {
		rows = append(rows, []string{
			p.ID,
			p.Title,
			strconv.Itoa(len(p.Keywords)),
			fmt.Sprintf("%d min", p.TargetMinutes),
			p.Language,
		})
	}
	headers := []string{"ID", "Title", "Keywords", "Duration", "Lang"}
	for _, line := range stats.FormatTable(headers, rows, map[int]bool{2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func runPitchShow(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
	p, err := getPitch(ctx, st, args[0])
	if err != nil {
		return err
	}
	count, err := st.PracticeCount(ctx, userID)
	if err != nil {
		return err
	}
	active := keywords.Prioritize(p.Keywords, p.Flagged, p.TargetMinutes)
	lines := []string{
		p.Title,
		fmt.Sprintf("Duration: %d min  Lang: %s  Sessions practiced (all pitches): %d", p.TargetMinutes, p.Language, count),
		"",
		"Keywords (* must include, > rehearsed):",
	}
	for i, kw := range p.Keywords {
		mark := " "
		if p.IsFlagged(kw) {
			mark = "*"
		}
		used := " "
		if slices.Contains(active, kw) {
			used = ">"
		}
		lines = append(lines, fmt.Sprintf("%s%s %2d. %s", used, mark, i+1, kw))
	}
	_, err = fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func runPitchRemove(ctx context.Context, st *store.Store, _ io.Writer, args []string) error {
	if err := st.DeletePitch(ctx, userID, args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("pitch %q not found", args[0])
		}
		return err
	}
	return nil
}

func runPitchCheck(ctx context.Context, st *store.Store, w io.Writer, args []string) error {
	p, err := getPitch(ctx, st, args[0])
	if err != nil {
		return err
	}
	if err := keywords.Validate(p); err != nil {
		return fmt.Errorf("invalid pitch:\n%w", err)
	}
	pairs := keywords.Confusable(p.Keywords)
	if len(pairs) == 0 {
		_, err := fmt.Fprintln(w, "OK")
		return err
	}
	for _, pair := range pairs {
		if _, err := fmt.Fprintf(w, "%q and %q may be confused by speech recognition (%.2f)\n", pair.A, pair.B, pair.Score); err != nil {
			return err
		}
	}
	return nil
}

func getPitch(ctx context.Context, st *store.Store, id string) (model.PitchConfig, error) {
	p, err := st.GetPitch(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.PitchConfig{}, fmt.Errorf("pitch %q not found", id)
		}
		return model.PitchConfig{}, err
	}
	return p, nil
}

// editPitch loads a pitch, applies fn, validates and saves the result.
func editPitch(ctx context.Context, st *store.Store, id string, fn func(model.PitchConfig) (model.PitchConfig, error)) error {
	p, err := getPitch(ctx, st, id)
	if err != nil {
		return err
	}
	next, err := fn(p)
	if err != nil {
		return err
	}
	next = keywords.Normalize(next)
	if err := keywords.Validate(next); err != nil {
		return fmt.Errorf("invalid pitch:\n%w", err)
	}
	return st.SavePitch(ctx, next)
}

func warnConfusable(words []string) {
	for _, pair := range keywords.Confusable(words) {
		logErrf("warning: %q and %q may be confused by speech recognition\n", pair.A, pair.B)
	}
}
