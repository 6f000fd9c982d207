package stats

import (
	"context"

	"github.com/verte-zerg/pitchcoach/internal/model"
)

// HistorySource is the subset of the store the report needs.
type HistorySource interface {
	ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.SessionAggregate, error)
	KeywordAggregates(ctx context.Context, sessionIDs []string) ([]model.KeywordAggregate, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Sessions       []model.SessionAggregate
	KeywordsAll    []model.KeywordAggregate
	KeywordsWindow []model.KeywordAggregate
	// WindowSessions is how many sessions KeywordsWindow covers.
	WindowSessions int
}

// BuildReport loads and prepares data for history rendering.
func BuildReport(ctx context.Context, src HistorySource, cfg model.HistoryConfig) (Report, error) {
	sessions, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}

	all, err := src.KeywordAggregates(ctx, sessionIDs(sessions))
	if err != nil {
		return Report{}, err
	}
	windowIDs := lastSessionIDs(sessions, cfg.CurveWindow)
	window, err := src.KeywordAggregates(ctx, windowIDs)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Sessions:       sessions,
		KeywordsAll:    all,
		KeywordsWindow: window,
		WindowSessions: len(windowIDs),
	}, nil
}

func sessionIDs(sessions []model.SessionAggregate) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.SessionID
	}
	return ids
}

func lastSessionIDs(sessions []model.SessionAggregate, window int) []string {
	if window <= 0 || len(sessions) <= window {
		return sessionIDs(sessions)
	}
	return sessionIDs(sessions[len(sessions)-window:])
}
